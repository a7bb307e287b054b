// Package routing maps transport and handling company names to their
// addresses and evidence requirements.
package routing

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Company is one entry of the routing table.
type Company struct {
	Name           string `json:"name" yaml:"name"`
	Email          string `json:"email" yaml:"email"`
	RequiresPhotos bool   `json:"requires_photos" yaml:"requires_photos"`
}

// Table resolves a company name to its routing entry.
type Table interface {
	Lookup(name string) (Company, bool)
	Companies() []Company
}

// StaticTable is an ordered in-memory Table. Lookups ignore case and
// surrounding whitespace.
type StaticTable struct {
	companies []Company
	index     map[string]int
}

// NewStaticTable validates and indexes companies.
func NewStaticTable(companies []Company) (*StaticTable, error) {
	t := &StaticTable{index: make(map[string]int, len(companies))}
	for _, c := range companies {
		key := normalize(c.Name)
		if key == "" {
			return nil, fmt.Errorf("routing: company without name")
		}
		if c.Email == "" {
			return nil, fmt.Errorf("routing: company %q has no email", c.Name)
		}
		if _, dup := t.index[key]; dup {
			return nil, fmt.Errorf("routing: duplicate company %q", c.Name)
		}
		t.index[key] = len(t.companies)
		t.companies = append(t.companies, c)
	}
	return t, nil
}

// DefaultCompanies is the built-in carrier table.
func DefaultCompanies() []Company {
	return []Company{
		{Name: "WAŁĘGA BĘDZIN", Email: "walegatransport@gmail.com"},
		{Name: "HUBTRANS", Email: "hubert_czub@op.pl", RequiresPhotos: true},
		{Name: "STYPCZYŃSCY", Email: "biuro@stypczynski.pl"},
	}
}

func (t *StaticTable) Lookup(name string) (Company, bool) {
	i, ok := t.index[normalize(name)]
	if !ok {
		return Company{}, false
	}
	return t.companies[i], true
}

func (t *StaticTable) Companies() []Company { return append([]Company(nil), t.companies...) }

// RequiresPhotos reports whether name is a photo-required company.
func RequiresPhotos(t Table, name string) bool {
	c, ok := t.Lookup(name)
	return ok && c.RequiresPhotos
}

type fileTable struct {
	Companies []Company `yaml:"companies"`
}

// LoadFile reads a YAML table of the form `companies: [{name, email, requires_photos}]`.
func LoadFile(path string) (*StaticTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("routing: %w", err)
	}
	var ft fileTable
	if err := yaml.Unmarshal(data, &ft); err != nil {
		return nil, fmt.Errorf("routing: decode %s: %w", path, err)
	}
	return NewStaticTable(ft.Companies)
}

func normalize(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
