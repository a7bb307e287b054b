package ingest

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MarcinPiech/DHLAI/core/model"
)

func TestDiffRecords(t *testing.T) {
	oldRecs := []model.LocationRecord{
		{RowIndex: 2, PrimaryCode: "HS-1", Substrate: "Nowak"},
		{RowIndex: 3, PrimaryCode: "HS-2", AutoCompany: "HUBTRANS"},
		{RowIndex: 4, PrimaryCode: "HS-3"},
		{RowIndex: 5, PrimaryCode: "HS-4", Coordinates: "1,1"},
	}
	newRecs := []model.LocationRecord{
		{RowIndex: 2, PrimaryCode: "HS-1", Substrate: "Lis"},
		{RowIndex: 3, PrimaryCode: "HS-2", AutoCompany: "HUBTRANS"},
		{RowIndex: 5, PrimaryCode: "HS-4", Coordinates: "2,2"},
		{RowIndex: 6, PrimaryCode: "HS-5"},
	}
	d := DiffRecords(oldRecs, newRecs)

	want := []RowChange{{Row: 2, Changes: map[string]FieldChange{"substrate": {Old: "Nowak", New: "Lis"}}}}
	if diff := cmp.Diff(want, d.Modified); diff != "" {
		t.Fatalf("modified mismatch (-want +got):\n%s", diff)
	}
	if len(d.Added) != 1 || d.Added[0].RowIndex != 6 {
		t.Fatalf("unexpected added %+v", d.Added)
	}
	if len(d.Removed) != 1 || d.Removed[0].RowIndex != 4 {
		t.Fatalf("unexpected removed %+v", d.Removed)
	}
}

func TestDiffRecordsIdenticalIsEmpty(t *testing.T) {
	recs := []model.LocationRecord{
		{RowIndex: 2, PrimaryCode: "HS-1", Assembly1: "A", JumboCompany: "STYPCZYŃSCY"},
		{RowIndex: 3, PrimaryCode: "poza HS", Street: "Długa 1"},
	}
	copyRecs := append([]model.LocationRecord(nil), recs...)
	if d := DiffRecords(recs, copyRecs); !d.Empty() {
		t.Fatalf("expected empty diff, got %+v", d)
	}
}
