package ingest

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ColumnRange is an inclusive range of sheet columns, e.g. B..H.
type ColumnRange struct {
	From string
	To   string
}

// Layout is the positional column map of the plan and bag workbooks.
// Reshuffling any column here is a breaking change for uploaded files.
type Layout struct {
	HeaderRows int

	PrimaryCode string
	Street      string
	City        string
	Postal      string
	Coordinates string

	Substrate string
	Electric  string
	Service   string
	Assembly  [3]string

	// AutoCompany is read first for the auto leg; JumboCompany is both the
	// jumbo leg and the auto leg's fallback, and the other way round.
	AutoCompany  string
	JumboCompany string
	AutoRanges   []ColumnRange
	JumboRanges  []ColumnRange

	BagLoadDate string
	BagCompany  string
	BagDetails  ColumnRange
}

// DefaultLayout returns the layout of the weekly plan export.
func DefaultLayout() Layout {
	return Layout{
		HeaderRows:   1,
		PrimaryCode:  "C",
		Street:       "E",
		City:         "F",
		Postal:       "G",
		Coordinates:  "H",
		Substrate:    "O",
		Electric:     "P",
		Service:      "Q",
		Assembly:     [3]string{"U", "V", "W"},
		AutoCompany:  "Z",
		JumboCompany: "AE",
		AutoRanges:   []ColumnRange{{"B", "H"}, {"S", "U"}, {"AB", "AE"}, {"BL", "BL"}},
		JumboRanges:  []ColumnRange{{"B", "H"}, {"X", "Z"}},
		BagLoadDate:  "I",
		BagCompany:   "J",
		BagDetails:   ColumnRange{"A", "Z"},
	}
}

// column is a resolved sheet column: its letter and 0-based slice index.
type column struct {
	name  string
	index int
}

func resolve(name string) (column, error) {
	n, err := excelize.ColumnNameToNumber(name)
	if err != nil {
		return column{}, fmt.Errorf("column %q: %w", name, err)
	}
	return column{name: name, index: n - 1}, nil
}

func resolveRange(r ColumnRange) ([]column, error) {
	from, err := excelize.ColumnNameToNumber(r.From)
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", r.From, err)
	}
	to, err := excelize.ColumnNameToNumber(r.To)
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", r.To, err)
	}
	if to < from {
		return nil, fmt.Errorf("column range %s..%s is reversed", r.From, r.To)
	}
	out := make([]column, 0, to-from+1)
	for n := from; n <= to; n++ {
		name, err := excelize.ColumnNumberToName(n)
		if err != nil {
			return nil, err
		}
		out = append(out, column{name: name, index: n - 1})
	}
	return out, nil
}

func resolveRanges(rs []ColumnRange) ([]column, error) {
	var out []column
	seen := make(map[string]struct{})
	for _, r := range rs {
		cols, err := resolveRange(r)
		if err != nil {
			return nil, err
		}
		for _, c := range cols {
			if _, ok := seen[c.name]; ok {
				continue
			}
			seen[c.name] = struct{}{}
			out = append(out, c)
		}
	}
	return out, nil
}
