package config

import (
	"fmt"
	"net/url"

	"github.com/MarcinPiech/DHLAI/core/contacts"
	"github.com/MarcinPiech/DHLAI/core/dispatch"
	"github.com/MarcinPiech/DHLAI/core/factory"
)

// MailConfig configures outbound delivery.
type MailConfig struct {
	Relay           factory.ModuleConfig `json:"relay"`
	From            FromConfig           `json:"from"`
	DefaultCC       []string             `json:"default_cc"`
	TrackingBaseURL string               `json:"tracking_base_url"`
	Options         MailOptions          `json:"options"`
	Limits          dispatch.Limits      `json:"limits"`
	RateLimiter     RateLimiterConfig    `json:"rate_limiter"`
}

type FromConfig struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// MailOptions toggles the optional delivery features. RetryFailed is a
// pointer so that an explicit false survives defaulting.
type MailOptions struct {
	ReadReceipt   bool  `json:"read_receipt"`
	TrackingPixel bool  `json:"tracking_pixel"`
	RetryFailed   *bool `json:"retry_failed"`
	MaxRetries    int   `json:"max_retries"`
}

// RateLimiterConfig selects where send counters live.
type RateLimiterConfig struct {
	// Backend is "memory" or "redis".
	Backend   string `json:"backend"`
	RedisURL  string `json:"redis_url"`
	KeyPrefix string `json:"key_prefix"`
}

func (c *MailConfig) SetDefaults() {
	if c.Relay.Type == "" {
		c.Relay.Type = "log"
	}
	if c.From.Name == "" {
		c.From.Name = "DHL AI"
	}
	if c.Options.RetryFailed == nil {
		retry := true
		c.Options.RetryFailed = &retry
	}
	if c.Options.MaxRetries == 0 {
		c.Options.MaxRetries = dispatch.DefaultMaxRetries
	}
	// zero means unset; a negative limit disables its window
	if c.Limits.PerMinute == 0 {
		c.Limits.PerMinute = 30
	}
	if c.Limits.PerHour == 0 {
		c.Limits.PerHour = 100
	}
	if c.RateLimiter.Backend == "" {
		c.RateLimiter.Backend = "memory"
	}
}

func (c MailConfig) Validate() error {
	if c.Relay.Type != "log" && !contacts.ValidEmail(c.From.Address) {
		return fmt.Errorf("from.address %q is not a valid email", c.From.Address)
	}
	for _, cc := range c.DefaultCC {
		if !contacts.ValidEmail(cc) {
			return fmt.Errorf("default_cc: %q is not a valid email", cc)
		}
	}
	if c.TrackingBaseURL != "" {
		u, err := url.Parse(c.TrackingBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("tracking_base_url %q is not an absolute URL", c.TrackingBaseURL)
		}
	}
	if c.Options.MaxRetries < 0 {
		return fmt.Errorf("options.max_retries must not be negative")
	}
	switch c.RateLimiter.Backend {
	case "memory":
	case "redis":
		if c.RateLimiter.RedisURL == "" {
			return fmt.Errorf("rate_limiter.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown rate_limiter.backend %q", c.RateLimiter.Backend)
	}
	return nil
}

// Dispatch returns the dispatch engine settings.
func (c MailConfig) Dispatch() dispatch.Config {
	retry := true
	if c.Options.RetryFailed != nil {
		retry = *c.Options.RetryFailed
	}
	return dispatch.Config{
		FromAddress:     c.From.Address,
		FromName:        c.From.Name,
		TrackingBaseURL: c.TrackingBaseURL,
		TrackingPixel:   c.Options.TrackingPixel,
		ReadReceipt:     c.Options.ReadReceipt,
		RetryFailed:     retry,
		MaxRetries:      c.Options.MaxRetries,
	}
}
