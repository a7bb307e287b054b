package ingest

import (
	"errors"
	"testing"
	"time"

	"github.com/MarcinPiech/DHLAI/core/model"
)

// sliceReader serves fixed rows as a RowReader.
type sliceReader struct {
	rows [][]string
	pos  int
	err  error
}

func (r *sliceReader) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *sliceReader) Columns() ([]string, error) { return r.rows[r.pos-1], nil }
func (r *sliceReader) Error() error               { return r.err }
func (r *sliceReader) Close() error               { return nil }

// planRow builds a plan row with cells placed by column letter.
func planRow(cells map[string]string) []string {
	row := make([]string, 64)
	for col, v := range cells {
		c, err := resolve(col)
		if err != nil {
			panic(err)
		}
		row[c.index] = v
	}
	return row
}

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := NewExtractor(DefaultLayout())
	if err != nil {
		t.Fatalf("extractor: %v", err)
	}
	return e
}

func TestExtractorSkipsRowsWithoutPrimaryCode(t *testing.T) {
	e := newTestExtractor(t)
	r := &sliceReader{rows: [][]string{
		planRow(map[string]string{"C": "HS code", "E": "Street"}),
		planRow(map[string]string{"C": "HS-1", "O": "Nowak"}),
		planRow(map[string]string{"E": "Długa 1", "F": "Katowice", "G": "40-100"}),
		planRow(map[string]string{"C": "poza HS", "E": "Krótka 2", "F": "Bytom"}),
		planRow(nil),
	}}
	var skipped []SkippedRow
	var got []model.LocationRecord
	for rec, err := range e.Locations(r, func(s SkippedRow) { skipped = append(skipped, s) }) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, rec)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].RowIndex != 2 || got[1].RowIndex != 4 {
		t.Fatalf("unexpected row indexes %d, %d", got[0].RowIndex, got[1].RowIndex)
	}
	if got[1].FullAddress() != "Krótka 2, Bytom" {
		t.Fatalf("unexpected address %q", got[1].FullAddress())
	}
	if len(skipped) != 1 || skipped[0].Row != 3 {
		t.Fatalf("expected row 3 skipped once, got %+v", skipped)
	}
}

func TestExtractorDecodesColumns(t *testing.T) {
	e := newTestExtractor(t)
	r := &sliceReader{rows: [][]string{
		{"header"},
		planRow(map[string]string{
			"B": "ZL/1", "C": " HS-7 ", "E": "Polna 3", "F": "Zabrze", "G": "41-800", "H": "50.3,18.7",
			"O": "Nowak", "P": "  ", "Q": "Lis", "U": "Kowalski", "W": "Wójcik",
			"S": "2", "AB": "x", "BL": "uwagi", "X": "12", "Z": "",
			"AE": "HUBTRANS",
		}),
	}}
	var rec model.LocationRecord
	for got, err := range e.Locations(r, nil) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		rec = got
	}
	if rec.PrimaryCode != "HS-7" || rec.Electric != "" || rec.Service != "Lis" || rec.Assembly2 != "" || rec.Assembly3 != "Wójcik" {
		t.Fatalf("unexpected decode: %+v", rec)
	}
	if rec.AutoCompany != "HUBTRANS" || rec.JumboCompany != "HUBTRANS" {
		t.Fatalf("fallback company not applied: %q %q", rec.AutoCompany, rec.JumboCompany)
	}
	wantAuto := map[string]string{"B": "ZL/1", "C": "HS-7", "E": "Polna 3", "F": "Zabrze", "G": "41-800", "H": "50.3,18.7", "S": "2", "U": "Kowalski", "AB": "x", "AE": "HUBTRANS", "BL": "uwagi"}
	if len(rec.AutoData) != len(wantAuto) {
		t.Fatalf("auto data = %v", rec.AutoData)
	}
	for k, v := range wantAuto {
		if rec.AutoData[k] != v {
			t.Fatalf("auto data %s = %q want %q", k, rec.AutoData[k], v)
		}
	}
	if rec.JumboData["X"] != "12" {
		t.Fatalf("jumbo data = %v", rec.JumboData)
	}
	if _, ok := rec.JumboData["Z"]; ok {
		t.Fatalf("empty column must be omitted")
	}
}

func TestExtractorSeparateLegCompanies(t *testing.T) {
	e := newTestExtractor(t)
	r := &sliceReader{rows: [][]string{
		{"header"},
		planRow(map[string]string{"C": "HS-1", "Z": "WAŁĘGA BĘDZIN", "AE": "STYPCZYŃSCY"}),
	}}
	for rec, err := range e.Locations(r, nil) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.AutoCompany != "WAŁĘGA BĘDZIN" || rec.JumboCompany != "STYPCZYŃSCY" {
			t.Fatalf("unexpected companies %q %q", rec.AutoCompany, rec.JumboCompany)
		}
	}
}

func TestExtractorPropagatesReaderError(t *testing.T) {
	e := newTestExtractor(t)
	boom := errors.New("boom")
	r := &sliceReader{rows: [][]string{{"h"}}, err: boom}
	var got error
	for _, err := range e.Locations(r, nil) {
		got = err
	}
	if !errors.Is(got, boom) {
		t.Fatalf("expected reader error, got %v", got)
	}
}

func TestExtractorBagsFilteredByWeek(t *testing.T) {
	e := newTestExtractor(t)
	r := &sliceReader{rows: [][]string{
		{"header"},
		planRow(map[string]string{"A": "1", "I": "2025-08-25", "J": "HDS Katowice"}),
		planRow(map[string]string{"A": "2", "I": "01.09.2025", "J": "HDS Gliwice"}),
		planRow(map[string]string{"A": "3", "I": "45897", "J": "HDS Bytom"}),
		planRow(map[string]string{"A": "4", "I": "jutro", "J": "HDS Bytom"}),
	}}
	var skipped []SkippedRow
	var got []model.BagRecord
	for bag, err := range e.Bags(r, 2025, 35, func(s SkippedRow) { skipped = append(skipped, s) }) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, bag)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 bags in week 35, got %+v", got)
	}
	if got[0].HandlingCompany != "HDS Katowice" || got[0].Details["A"] != "1" {
		t.Fatalf("unexpected first bag %+v", got[0])
	}
	if got[1].RowIndex != 4 {
		t.Fatalf("expected serial date row 4, got %d", got[1].RowIndex)
	}
	if len(skipped) != 1 || skipped[0].Row != 5 {
		t.Fatalf("expected row 5 skipped, got %+v", skipped)
	}
}

func TestParseLoadDate(t *testing.T) {
	want := time.Date(2025, 8, 27, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2025-08-27", "27.08.2025", "27.8.2025", "45896"} {
		got, ok := ParseLoadDate(in)
		if !ok || !got.Equal(want) {
			t.Errorf("%q: got %v %v", in, got, ok)
		}
	}
	if _, ok := ParseLoadDate(""); ok {
		t.Errorf("empty input parsed")
	}
}
