package drafts

import (
	"github.com/MarcinPiech/DHLAI/core/model"
)

// Column is one displayed column of a category's row table.
type Column struct {
	Header string
	Value  func(*model.LocationRecord) string
}

// Entry describes how one category is grouped, titled and rendered.
type Entry struct {
	Category model.Category
	Priority int
	// Subject is a fmt pattern receiving the period label, and the company
	// for transport and bag categories.
	Subject  string
	Template string
	// Fields are the crew slots grouped on; empty for company categories.
	Fields  []model.Field
	Columns []Column
}

func field(header string, f model.Field) Column {
	return Column{Header: header, Value: func(r *model.LocationRecord) string { return r.Get(f) }}
}

func autoCell(header, col string) Column {
	return Column{Header: header, Value: func(r *model.LocationRecord) string { return r.AutoData[col] }}
}

func jumboCell(header, col string) Column {
	return Column{Header: header, Value: func(r *model.LocationRecord) string { return r.JumboData[col] }}
}

var addressColumn = Column{Header: "Adres", Value: func(r *model.LocationRecord) string { return r.FullAddress() }}

var (
	siteColumns = []Column{
		field("Kod HS", model.FieldPrimaryCode),
		addressColumn,
		field("Kod pocztowy", model.FieldPostal),
		field("Miasto", model.FieldCity),
		field("Współrzędne", model.FieldCoordinates),
	}
	crewColumns = []Column{
		field("Podłoże", model.FieldSubstrate),
		field("Prąd", model.FieldElectric),
		field("Serwis", model.FieldService),
	}
)

func join(groups ...[]Column) []Column {
	var out []Column
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// Catalog lists the six categories in generation order.
var Catalog = []Entry{
	{
		Category: model.CategorySubstrate,
		Priority: 1,
		Subject:  "Plan prac %s - Podłoże/Prąd",
		Template: "team_substrate.html",
		Fields:   []model.Field{model.FieldSubstrate, model.FieldElectric},
		Columns:  join(siteColumns, crewColumns),
	},
	{
		Category: model.CategoryService,
		Priority: 1,
		Subject:  "Plan prac %s - Serwis",
		Template: "team_service.html",
		Fields:   []model.Field{model.FieldService},
		Columns:  join(siteColumns, crewColumns),
	},
	{
		Category: model.CategoryAssembly,
		Priority: 1,
		Subject:  "Plan prac %s - Montaż",
		Template: "team_assembly.html",
		Fields:   []model.Field{model.FieldAssembly1, model.FieldAssembly2, model.FieldAssembly3},
		Columns: join(siteColumns, []Column{
			field("Montaż 1", model.FieldAssembly1),
			field("Montaż 2", model.FieldAssembly2),
			field("Montaż 3", model.FieldAssembly3),
			field("Transport", model.FieldAutoCompany),
			autoCell("Uwagi", "BL"),
		}),
	},
	{
		Category: model.CategoryAuto,
		Priority: 2,
		Subject:  "Transport automatów %s - %s",
		Template: "transport_auto.html",
		Columns: join([]Column{autoCell("Nr", "B")}, siteColumns, []Column{
			autoCell("S", "S"),
			autoCell("T", "T"),
			autoCell("U", "U"),
			autoCell("AB", "AB"),
			autoCell("AC", "AC"),
			autoCell("AD", "AD"),
			field("Przewoźnik", model.FieldAutoCompany),
			autoCell("Uwagi", "BL"),
		}),
	},
	{
		Category: model.CategoryJumbo,
		Priority: 2,
		Subject:  "Transport płyt jumbo %s - %s",
		Template: "transport_jumbo.html",
		Columns: join([]Column{jumboCell("Nr", "B")}, siteColumns, []Column{
			jumboCell("X", "X"),
			jumboCell("Y", "Y"),
			field("Przewoźnik", model.FieldJumboCompany),
		}),
	},
	{
		Category: model.CategoryBags,
		Priority: 3,
		Subject:  "Odbiór big-bagów %s - %s",
		Template: "bags.html",
	},
}

// EntryFor returns the catalogue entry of c.
func EntryFor(c model.Category) (Entry, bool) {
	for _, s := range Catalog {
		if s.Category == c {
			return s, true
		}
	}
	return Entry{}, false
}
