// Package mail implements the delivery relays: SMTP through go-mail and a
// log-only relay for dry runs.
package mail

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	gomail "github.com/wneessen/go-mail"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/MarcinPiech/DHLAI/core/dispatch"
	"github.com/MarcinPiech/DHLAI/core/logger"
)

// SMTPRelay submits messages to an SMTP server. A connection is dialled per
// message.
type SMTPRelay struct {
	cfg    SMTPConfig
	log    logger.Logger
	tokens oauth2.TokenSource

	mu     sync.Mutex
	client *gomail.Client
}

// NewSMTPRelay validates cfg and prepares the client.
func NewSMTPRelay(cfg SMTPConfig, log logger.Logger) (*SMTPRelay, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := gomail.NewClient(cfg.Host, clientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("smtp: %w", err)
	}
	r := &SMTPRelay{cfg: cfg, log: log, client: client}
	if cfg.Auth == AuthXOAUTH2 && cfg.OAuth2.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.OAuth2.ClientID,
			ClientSecret: cfg.OAuth2.ClientSecret,
			TokenURL:     cfg.OAuth2.TokenURL,
			Scopes:       cfg.OAuth2.Scopes,
		}
		r.tokens = cc.TokenSource(context.Background())
	}
	return r, nil
}

func clientOptions(cfg SMTPConfig) []gomail.Option {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTimeout(cfg.Timeout),
	}
	switch cfg.TLS {
	case TLSNone:
		opts = append(opts, gomail.WithTLSPortPolicy(gomail.NoTLS))
	case TLSOpportunistic:
		opts = append(opts, gomail.WithTLSPortPolicy(gomail.TLSOpportunistic))
	default:
		opts = append(opts, gomail.WithTLSPortPolicy(gomail.TLSMandatory))
	}
	if cfg.SSL {
		opts = append(opts, gomail.WithSSLPort(false))
	}
	switch cfg.Auth {
	case AuthPlain:
		opts = append(opts, gomail.WithSMTPAuth(gomail.SMTPAuthPlain))
	case AuthLogin:
		opts = append(opts, gomail.WithSMTPAuth(gomail.SMTPAuthLogin))
	case AuthXOAUTH2:
		opts = append(opts, gomail.WithSMTPAuth(gomail.SMTPAuthXOAUTH2))
	}
	if cfg.Auth != AuthNone {
		opts = append(opts, gomail.WithUsername(cfg.Username), gomail.WithPassword(cfg.Password))
	}
	return opts
}

// Send builds the MIME message and submits it. The returned Message-ID is
// generated locally.
func (r *SMTPRelay) Send(ctx context.Context, msg *dispatch.OutboundMessage) (string, error) {
	id := fmt.Sprintf("%s@%s", uuid.NewString(), r.cfg.Domain)
	m, err := buildMessage(msg, id)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tokens != nil {
		tok, err := r.tokens.Token()
		if err != nil {
			return "", fmt.Errorf("smtp: oauth2 token: %w", err)
		}
		r.client.SetPassword(tok.AccessToken)
	}
	if err := r.client.DialAndSendWithContext(ctx, m); err != nil {
		return "", fmt.Errorf("smtp: send draft %d: %w", msg.DraftID, err)
	}
	r.log.Debugf("draft %d submitted to %s as %s", msg.DraftID, r.cfg.Host, id)
	return id, nil
}

// buildMessage renders msg as a go-mail message with the given Message-ID.
// Attachments missing on disk are left out.
func buildMessage(msg *dispatch.OutboundMessage, messageID string) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.FromFormat(msg.FromName, msg.FromAddress); err != nil {
		return nil, fmt.Errorf("smtp: from: %w", err)
	}
	if err := m.AddToFormat(msg.ToName, msg.To); err != nil {
		return nil, fmt.Errorf("smtp: to: %w", err)
	}
	if len(msg.CC) > 0 {
		if err := m.Cc(msg.CC...); err != nil {
			return nil, fmt.Errorf("smtp: cc: %w", err)
		}
	}
	m.Subject(msg.Subject)
	m.SetMessageIDWithValue(messageID)
	m.SetDate()
	for name, value := range msg.Headers {
		m.SetGenHeader(gomail.Header(name), value)
	}

	// multipart/alternative lists the preferred part last
	if msg.Plain != "" {
		m.SetBodyString(gomail.TypeTextPlain, msg.Plain)
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTML)
	} else {
		m.SetBodyString(gomail.TypeTextHTML, msg.HTML)
	}
	for _, a := range msg.Attachments {
		if _, err := os.Stat(a.Path); err != nil {
			continue
		}
		opts := []gomail.FileOption{gomail.WithFileName(a.Name)}
		if a.MimeType != "" {
			opts = append(opts, gomail.WithFileContentType(gomail.ContentType(a.MimeType)))
		}
		m.AttachFile(a.Path, opts...)
	}
	return m, nil
}
