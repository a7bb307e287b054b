package config

import (
	"fmt"

	"github.com/MarcinPiech/DHLAI/core/contacts"
	"github.com/MarcinPiech/DHLAI/core/routing"
)

// RoutingConfig holds the company routing table.
type RoutingConfig struct {
	// File is an optional YAML table. It takes precedence over Companies.
	File             string            `json:"file"`
	Companies        []routing.Company `json:"companies"`
	BagFallbackEmail string            `json:"bag_fallback_email"`
}

func (c *RoutingConfig) SetDefaults() {
	if c.File == "" && len(c.Companies) == 0 {
		c.Companies = routing.DefaultCompanies()
	}
}

func (c RoutingConfig) Validate() error {
	if c.BagFallbackEmail != "" && !contacts.ValidEmail(c.BagFallbackEmail) {
		return fmt.Errorf("bag_fallback_email %q is not a valid email", c.BagFallbackEmail)
	}
	if c.File != "" {
		return nil
	}
	_, err := routing.NewStaticTable(c.Companies)
	return err
}

// Table builds the routing table.
func (c RoutingConfig) Table() (*routing.StaticTable, error) {
	if c.File != "" {
		return routing.LoadFile(c.File)
	}
	return routing.NewStaticTable(c.Companies)
}
