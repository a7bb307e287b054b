package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// AppConfig holds process-wide settings.
type AppConfig struct {
	Timezone          string   `json:"timezone"`
	AllowedExtensions []string `json:"allowed_extensions"`
	MaxUploadMB       int      `json:"max_upload_mb"`
}

func (c *AppConfig) SetDefaults() {
	if c.Timezone == "" {
		c.Timezone = "Europe/Warsaw"
	}
	if len(c.AllowedExtensions) == 0 {
		c.AllowedExtensions = []string{"xlsx", "xls"}
	}
	if c.MaxUploadMB == 0 {
		c.MaxUploadMB = 10
	}
}

func (c AppConfig) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	if c.MaxUploadMB < 0 {
		return fmt.Errorf("max_upload_mb must be positive")
	}
	return nil
}

// Location returns the configured time zone.
func (c AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CheckUpload rejects files whose extension is not allowed or that exceed
// the upload size.
func (c AppConfig) CheckUpload(path string, size int64) error {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	allowed := false
	for _, a := range c.AllowedExtensions {
		if strings.EqualFold(a, ext) {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("file type %q not allowed (want %s)", ext, strings.Join(c.AllowedExtensions, ", "))
	}
	if c.MaxUploadMB > 0 && size > int64(c.MaxUploadMB)<<20 {
		return fmt.Errorf("file is %d bytes, limit is %d MB", size, c.MaxUploadMB)
	}
	return nil
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	Path string `json:"path"`
}

func (c *StorageConfig) SetDefaults() {
	if c.Path == "" {
		c.Path = "data/dhlai.db"
	}
}

func (c StorageConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

// IngestConfig configures plan and bag ingestion.
type IngestConfig struct {
	PlanSheet  string `json:"plan_sheet"`
	UploadsDir string `json:"uploads_dir"`
	// EvidenceDir holds protocols and photos under <label>-<year>/<row>/.
	EvidenceDir string `json:"evidence_dir"`
}

func (c *IngestConfig) SetDefaults() {
	if c.PlanSheet == "" {
		c.PlanSheet = "PLAN"
	}
	if c.UploadsDir == "" {
		c.UploadsDir = "data/uploads"
	}
	if c.EvidenceDir == "" {
		c.EvidenceDir = "data/evidence"
	}
}

func (c IngestConfig) Validate() error {
	if strings.TrimSpace(c.PlanSheet) == "" {
		return fmt.Errorf("plan_sheet is required")
	}
	return nil
}

// TemplatesConfig locates the email templates.
type TemplatesConfig struct {
	Dir string `json:"dir"`
}

func (c *TemplatesConfig) SetDefaults() {
	if c.Dir == "" {
		c.Dir = "templates/emails"
	}
}

func (c TemplatesConfig) Validate() error { return nil }

// HTTPConfig configures the serve command.
type HTTPConfig struct {
	Addr  string `json:"addr"`
	Token string `json:"token"`
}

func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

func (c HTTPConfig) Validate() error { return nil }
