package config

import "fmt"

// SentryConfig defines settings for Sentry error monitoring.
type SentryConfig struct {
	DSN         string  `json:"dsn"`
	Environment string  `json:"environment"`
	Release     string  `json:"release"`
	SampleRate  float64 `json:"sample_rate"`
}

// SetDefaults applies sane defaults.
func (c *SentryConfig) SetDefaults() {
	if c.Environment == "" {
		c.Environment = "production"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1
	}
}

// Validate checks the sample rate bounds.
func (c SentryConfig) Validate() error {
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("sample_rate must be within [0,1]")
	}
	return nil
}
