package mail

import (
	"fmt"
	"strings"
	"time"
)

// Auth mechanisms understood by the SMTP relay.
const (
	AuthNone    = "none"
	AuthPlain   = "plain"
	AuthLogin   = "login"
	AuthXOAUTH2 = "xoauth2"
)

// TLS policies understood by the SMTP relay.
const (
	TLSMandatory     = "mandatory"
	TLSOpportunistic = "opportunistic"
	TLSNone          = "none"
)

// OAuth2Config describes the client-credentials grant used for XOAUTH2.
type OAuth2Config struct {
	TokenURL     string   `json:"token_url"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	Scopes       []string `json:"scopes"`
}

// SMTPConfig configures the SMTP relay.
type SMTPConfig struct {
	Host     string        `json:"host"`
	Port     int           `json:"port"`
	Username string        `json:"username"`
	Password string        `json:"password"`
	Auth     string        `json:"auth"`
	TLS      string        `json:"tls"`
	SSL      bool          `json:"ssl"`
	Timeout  time.Duration `json:"timeout"`
	// Domain is the right-hand side of generated Message-IDs. It defaults
	// to Host.
	Domain string       `json:"domain"`
	OAuth2 OAuth2Config `json:"oauth2"`
}

// SetDefaults fills unset values.
func (c *SMTPConfig) SetDefaults() {
	if c.Port == 0 {
		c.Port = 587
	}
	if c.Auth == "" {
		c.Auth = AuthPlain
	}
	if c.TLS == "" {
		c.TLS = TLSMandatory
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Domain == "" {
		c.Domain = c.Host
	}
	c.Auth = strings.ToLower(c.Auth)
	c.TLS = strings.ToLower(c.TLS)
}

// Validate reports configuration errors.
func (c SMTPConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("smtp: host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("smtp: invalid port %d", c.Port)
	}
	switch c.Auth {
	case AuthNone:
	case AuthPlain, AuthLogin:
		if c.Username == "" {
			return fmt.Errorf("smtp: %s auth requires a username", c.Auth)
		}
	case AuthXOAUTH2:
		if c.Username == "" {
			return fmt.Errorf("smtp: xoauth2 requires a username")
		}
		if c.Password == "" && (c.OAuth2.TokenURL == "" || c.OAuth2.ClientID == "") {
			return fmt.Errorf("smtp: xoauth2 requires a token or oauth2 client credentials")
		}
	default:
		return fmt.Errorf("smtp: unknown auth %q", c.Auth)
	}
	switch c.TLS {
	case TLSMandatory, TLSOpportunistic, TLSNone:
	default:
		return fmt.Errorf("smtp: unknown tls policy %q", c.TLS)
	}
	return nil
}
