package model

import (
	"fmt"
	"strings"
)

// OutOfCodeSentinel marks a primary code cell for sites without a code; the
// address then falls back to street, postal code and city.
const OutOfCodeSentinel = "poza HS"

// TransportData holds a transport leg's auxiliary cells keyed by column letter.
type TransportData map[string]string

// LocationRecord is one normalized plan row.
type LocationRecord struct {
	ID        int64 `json:"id"`
	PeriodID  int64 `json:"period_id"`
	VersionID int64 `json:"version_id"`
	// RowIndex is the 1-based sheet row and identifies the record across versions.
	RowIndex int `json:"row_index"`

	PrimaryCode string `json:"primary_code"`
	Street      string `json:"street,omitempty"`
	City        string `json:"city,omitempty"`
	Postal      string `json:"postal,omitempty"`
	Coordinates string `json:"coordinates,omitempty"`

	Substrate string `json:"substrate,omitempty"`
	Electric  string `json:"electric,omitempty"`
	Service   string `json:"service,omitempty"`
	Assembly1 string `json:"assembly_1,omitempty"`
	Assembly2 string `json:"assembly_2,omitempty"`
	Assembly3 string `json:"assembly_3,omitempty"`

	AutoCompany  string        `json:"auto_company,omitempty"`
	AutoData     TransportData `json:"auto_data,omitempty"`
	JumboCompany string        `json:"jumbo_company,omitempty"`
	JumboData    TransportData `json:"jumbo_data,omitempty"`

	ProtocolPath string   `json:"protocol_path,omitempty"`
	Photos       []string `json:"photos,omitempty"`
}

// FullAddress resolves the display address: the primary code unless it is
// the out-of-code sentinel, otherwise the non-empty street, postal code and
// city joined with ", ".
func (r *LocationRecord) FullAddress() string {
	code := strings.TrimSpace(r.PrimaryCode)
	if code != "" && !strings.EqualFold(code, OutOfCodeSentinel) {
		return code
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{r.Street, r.Postal, r.City} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// HasAddress reports whether FullAddress resolves to something.
func (r *LocationRecord) HasAddress() bool { return r.FullAddress() != "" }

// CrewMembers returns the distinct names filled in the crew slots, in slot order.
func (r *LocationRecord) CrewMembers() []string {
	var out []string
	seen := make(map[string]struct{}, len(CrewFields))
	for _, f := range CrewFields {
		name := r.Get(f)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// HasCrew reports whether at least one crew slot is filled.
func (r *LocationRecord) HasCrew() bool { return len(r.CrewMembers()) > 0 }

// Field identifies a named scalar attribute of a LocationRecord.
type Field int

const (
	FieldPrimaryCode Field = iota
	FieldStreet
	FieldCity
	FieldPostal
	FieldCoordinates
	FieldSubstrate
	FieldElectric
	FieldService
	FieldAssembly1
	FieldAssembly2
	FieldAssembly3
	FieldAutoCompany
	FieldJumboCompany
	fieldCount
)

var fieldNames = [fieldCount]string{
	FieldPrimaryCode:  "primary_code",
	FieldStreet:       "street",
	FieldCity:         "city",
	FieldPostal:       "postal",
	FieldCoordinates:  "coordinates",
	FieldSubstrate:    "substrate",
	FieldElectric:     "electric",
	FieldService:      "service",
	FieldAssembly1:    "assembly_1",
	FieldAssembly2:    "assembly_2",
	FieldAssembly3:    "assembly_3",
	FieldAutoCompany:  "auto_company",
	FieldJumboCompany: "jumbo_company",
}

var fieldGetters = [fieldCount]func(*LocationRecord) string{
	FieldPrimaryCode:  func(r *LocationRecord) string { return r.PrimaryCode },
	FieldStreet:       func(r *LocationRecord) string { return r.Street },
	FieldCity:         func(r *LocationRecord) string { return r.City },
	FieldPostal:       func(r *LocationRecord) string { return r.Postal },
	FieldCoordinates:  func(r *LocationRecord) string { return r.Coordinates },
	FieldSubstrate:    func(r *LocationRecord) string { return r.Substrate },
	FieldElectric:     func(r *LocationRecord) string { return r.Electric },
	FieldService:      func(r *LocationRecord) string { return r.Service },
	FieldAssembly1:    func(r *LocationRecord) string { return r.Assembly1 },
	FieldAssembly2:    func(r *LocationRecord) string { return r.Assembly2 },
	FieldAssembly3:    func(r *LocationRecord) string { return r.Assembly3 },
	FieldAutoCompany:  func(r *LocationRecord) string { return r.AutoCompany },
	FieldJumboCompany: func(r *LocationRecord) string { return r.JumboCompany },
}

// CrewFields lists the six crew role slots.
var CrewFields = []Field{FieldSubstrate, FieldElectric, FieldService, FieldAssembly1, FieldAssembly2, FieldAssembly3}

// TrackedFields are compared when diffing two versions.
var TrackedFields = []Field{
	FieldPrimaryCode, FieldStreet, FieldCity, FieldPostal,
	FieldSubstrate, FieldElectric, FieldService, FieldAssembly1, FieldAssembly2, FieldAssembly3,
	FieldAutoCompany, FieldJumboCompany,
}

func (f Field) String() string {
	if f < 0 || f >= fieldCount {
		return fmt.Sprintf("field(%d)", int(f))
	}
	return fieldNames[f]
}

// ParseField resolves a field by its name.
func ParseField(name string) (Field, error) {
	for i, n := range fieldNames {
		if n == name {
			return Field(i), nil
		}
	}
	return 0, fmt.Errorf("unknown field %q", name)
}

// Get returns the value of f, or "" for an unknown field.
func (r *LocationRecord) Get(f Field) string {
	if f < 0 || f >= fieldCount {
		return ""
	}
	return fieldGetters[f](r)
}
