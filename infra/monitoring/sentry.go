// Package monitoring reports pipeline failures to Sentry.
package monitoring

import (
	"regexp"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/MarcinPiech/DHLAI/config"
	coremon "github.com/MarcinPiech/DHLAI/core/monitoring"
)

var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

// NewSentryMonitor initializes Sentry and returns a Monitor. An empty DSN
// yields a NopMonitor. Recipient addresses are masked in every event.
func NewSentryMonitor(cfg config.SentryConfig) (coremon.Monitor, error) {
	if cfg.DSN == "" {
		return coremon.NopMonitor{}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       cfg.SampleRate,
		ServerName:       "dhlai",
		AttachStacktrace: true,
		BeforeSend: func(ev *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return scrub(ev)
		},
	})
	if err != nil {
		return nil, err
	}
	return &sentryMonitor{}, nil
}

// scrub masks email addresses in the message, the exception values and
// the tags of ev.
func scrub(ev *sentry.Event) *sentry.Event {
	if ev == nil {
		return nil
	}
	ev.Message = maskEmails(ev.Message)
	for i := range ev.Exception {
		ev.Exception[i].Value = maskEmails(ev.Exception[i].Value)
	}
	for k, v := range ev.Tags {
		ev.Tags[k] = maskEmails(v)
	}
	return ev
}

func maskEmails(s string) string {
	return emailPattern.ReplaceAllStringFunc(s, func(addr string) string {
		at := strings.IndexByte(addr, '@')
		if at <= 1 {
			return "***" + addr[at:]
		}
		return addr[:1] + "***" + addr[at:]
	})
}

type sentryMonitor struct{}

func (s *sentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		sentry.CaptureException(err)
	})
}

func (s *sentryMonitor) Recover() {
	if r := recover(); r != nil {
		sentry.CurrentHub().Recover(r)
		sentry.Flush(2 * time.Second)
		panic(r)
	}
}

func (s *sentryMonitor) Flush(timeout time.Duration) { sentry.Flush(timeout) }
