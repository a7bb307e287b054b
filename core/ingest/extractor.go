package ingest

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/MarcinPiech/DHLAI/core/model"
)

// RowReader streams the rows of one sheet, header included.
type RowReader interface {
	Next() bool
	Columns() ([]string, error)
	Error() error
	Close() error
}

// Workbook gives access to the sheets of an opened spreadsheet file.
type Workbook interface {
	// Sheet returns a reader for the named sheet or an error wrapping
	// ErrSheetNotFound.
	Sheet(name string) (RowReader, error)
	ActiveSheet() (RowReader, error)
	Close() error
}

// WorkbookOpener opens the spreadsheet at path.
type WorkbookOpener func(path string) (Workbook, error)

// SkippedRow records a sheet row that produced no record.
type SkippedRow struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Extractor decodes plan and bag rows according to a Layout.
type Extractor struct {
	headerRows int

	primary, street, city, postal, coords column
	substrate, electric, service          column
	assembly                              [3]column
	autoCompany, jumboCompany             column
	autoData, jumboData                   []column

	bagDate, bagCompany column
	bagDetails          []column
}

// NewExtractor resolves the column letters of l.
func NewExtractor(l Layout) (*Extractor, error) {
	e := &Extractor{headerRows: l.HeaderRows}
	singles := []struct {
		dst  *column
		name string
	}{
		{&e.primary, l.PrimaryCode},
		{&e.street, l.Street},
		{&e.city, l.City},
		{&e.postal, l.Postal},
		{&e.coords, l.Coordinates},
		{&e.substrate, l.Substrate},
		{&e.electric, l.Electric},
		{&e.service, l.Service},
		{&e.assembly[0], l.Assembly[0]},
		{&e.assembly[1], l.Assembly[1]},
		{&e.assembly[2], l.Assembly[2]},
		{&e.autoCompany, l.AutoCompany},
		{&e.jumboCompany, l.JumboCompany},
		{&e.bagDate, l.BagLoadDate},
		{&e.bagCompany, l.BagCompany},
	}
	for _, s := range singles {
		c, err := resolve(s.name)
		if err != nil {
			return nil, err
		}
		*s.dst = c
	}
	var err error
	if e.autoData, err = resolveRanges(l.AutoRanges); err != nil {
		return nil, err
	}
	if e.jumboData, err = resolveRanges(l.JumboRanges); err != nil {
		return nil, err
	}
	if e.bagDetails, err = resolveRange(l.BagDetails); err != nil {
		return nil, err
	}
	return e, nil
}

// Locations yields one record per data row whose primary code column is
// filled. Rows are read lazily from r; onSkip, when set, receives the rows
// that carried data but were not emitted.
func (e *Extractor) Locations(r RowReader, onSkip func(SkippedRow)) iter.Seq2[model.LocationRecord, error] {
	return func(yield func(model.LocationRecord, error) bool) {
		row := 0
		for r.Next() {
			row++
			if row <= e.headerRows {
				continue
			}
			cells, err := r.Columns()
			if err != nil {
				skip(onSkip, row, fmt.Sprintf("unreadable row: %v", err))
				continue
			}
			if cell(cells, e.primary) == "" {
				if !blank(cells) {
					skip(onSkip, row, fmt.Sprintf("column %s is empty", e.primary.name))
				}
				continue
			}
			if !yield(e.decodeLocation(row, cells), nil) {
				return
			}
		}
		if err := r.Error(); err != nil {
			yield(model.LocationRecord{}, err)
		}
	}
}

func (e *Extractor) decodeLocation(row int, cells []string) model.LocationRecord {
	rec := model.LocationRecord{
		RowIndex:    row,
		PrimaryCode: cell(cells, e.primary),
		Street:      cell(cells, e.street),
		City:        cell(cells, e.city),
		Postal:      cell(cells, e.postal),
		Coordinates: cell(cells, e.coords),
		Substrate:   cell(cells, e.substrate),
		Electric:    cell(cells, e.electric),
		Service:     cell(cells, e.service),
		Assembly1:   cell(cells, e.assembly[0]),
		Assembly2:   cell(cells, e.assembly[1]),
		Assembly3:   cell(cells, e.assembly[2]),
	}
	auto, jumbo := cell(cells, e.autoCompany), cell(cells, e.jumboCompany)
	rec.AutoCompany = firstNonEmpty(auto, jumbo)
	rec.JumboCompany = firstNonEmpty(jumbo, auto)
	rec.AutoData = collect(cells, e.autoData)
	rec.JumboData = collect(cells, e.jumboData)
	return rec
}

// Bags yields the bag rows whose load date falls in the given ISO week.
func (e *Extractor) Bags(r RowReader, year, week int, onSkip func(SkippedRow)) iter.Seq2[model.BagRecord, error] {
	return func(yield func(model.BagRecord, error) bool) {
		row := 0
		for r.Next() {
			row++
			if row <= e.headerRows {
				continue
			}
			cells, err := r.Columns()
			if err != nil {
				skip(onSkip, row, fmt.Sprintf("unreadable row: %v", err))
				continue
			}
			if blank(cells) {
				continue
			}
			raw := cell(cells, e.bagDate)
			date, ok := ParseLoadDate(raw)
			if !ok {
				skip(onSkip, row, fmt.Sprintf("column %s: no load date in %q", e.bagDate.name, raw))
				continue
			}
			if y, w := date.ISOWeek(); y != year || w != week {
				continue
			}
			bag := model.BagRecord{
				RowIndex:        row,
				LoadDate:        date,
				HandlingCompany: cell(cells, e.bagCompany),
				Details:         collect(cells, e.bagDetails),
			}
			if !yield(bag, nil) {
				return
			}
		}
		if err := r.Error(); err != nil {
			yield(model.BagRecord{}, err)
		}
	}
}

var loadDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"02.01.2006",
	"2.1.2006",
	"02.01.2006 15:04",
}

// ParseLoadDate accepts ISO and Polish dotted dates as well as raw Excel
// date serials.
func ParseLoadDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range loadDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	serial, err := strconv.ParseFloat(s, 64)
	if err != nil || serial <= 0 {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func cell(cells []string, c column) string {
	if c.index < 0 || c.index >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[c.index])
}

func collect(cells []string, cols []column) model.TransportData {
	var out model.TransportData
	for _, c := range cols {
		v := cell(cells, c)
		if v == "" {
			continue
		}
		if out == nil {
			out = make(model.TransportData)
		}
		out[c.name] = v
	}
	return out
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func skip(fn func(SkippedRow), row int, reason string) {
	if fn != nil {
		fn(SkippedRow{Row: row, Reason: reason})
	}
}
