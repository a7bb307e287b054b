package config

import (
	"fmt"
	"strings"
)

// LoggingConfig sets the log level and the delivery journal rotation.
type LoggingConfig struct {
	Level   string        `json:"level"`
	Journal JournalConfig `json:"journal"`
}

// JournalConfig defines settings for the delivery journal and its rotation.
type JournalConfig struct {
	// Path is the file location of the journal. Empty disables it.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	c.Level = strings.ToLower(c.Level)
	if c.Journal.Path == "" {
		c.Journal.Path = "data/deliveries.jsonl"
	}
	if c.Journal.MaxSizeMB == 0 {
		c.Journal.MaxSizeMB = 10
	}
}

// Validate checks mandatory fields.
func (c LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown level %s", c.Level)
	}
	if c.Journal.MaxSizeMB < 0 || c.Journal.MaxBackups < 0 || c.Journal.MaxAgeDays < 0 {
		return fmt.Errorf("journal rotation values must not be negative")
	}
	return nil
}
