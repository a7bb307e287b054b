package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/MarcinPiech/DHLAI/core/metrics"
)

type Config struct {
	App       AppConfig       `json:"app"`
	Storage   StorageConfig   `json:"storage"`
	Ingest    IngestConfig    `json:"ingest"`
	Templates TemplatesConfig `json:"templates"`
	Mail      MailConfig      `json:"mail"`
	Routing   RoutingConfig   `json:"routing"`
	Logging   LoggingConfig   `json:"logging"`
	Metrics   metrics.Config  `json:"metrics"`
	Sentry    SentryConfig    `json:"sentry"`
	HTTP      HTTPConfig      `json:"http"`
}

// Load reads the optional .env file, then the config file at path (YAML or
// JSON, skipped when path is empty), then K_ prefixed environment overrides
// where __ separates levels, e.g. K_MAIL__FROM__ADDRESS.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	k := koanf.New(".")
	if path != "" {
		var parser koanf.Parser
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.App.SetDefaults()
	c.Storage.SetDefaults()
	c.Ingest.SetDefaults()
	c.Templates.SetDefaults()
	c.Mail.SetDefaults()
	c.Routing.SetDefaults()
	c.Logging.SetDefaults()
	if c.Metrics.PrometheusEnabled && c.Metrics.PrometheusAddr == "" {
		c.Metrics.PrometheusAddr = ":9100"
	}
	c.Sentry.SetDefaults()
	c.HTTP.SetDefaults()
}

// Validate reports the first invalid section.
func (c Config) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"app", c.App.Validate},
		{"storage", c.Storage.Validate},
		{"ingest", c.Ingest.Validate},
		{"templates", c.Templates.Validate},
		{"mail", c.Mail.Validate},
		{"routing", c.Routing.Validate},
		{"logging", c.Logging.Validate},
		{"sentry", c.Sentry.Validate},
		{"http", c.HTTP.Validate},
	}
	for _, ch := range checks {
		if err := ch.fn(); err != nil {
			return fmt.Errorf("%s: %w", ch.name, err)
		}
	}
	return nil
}
