package routing

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultTableLookup(t *testing.T) {
	tbl, err := NewStaticTable(DefaultCompanies())
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	c, ok := tbl.Lookup(" hubtrans ")
	if !ok || c.Email != "hubert_czub@op.pl" || !c.RequiresPhotos {
		t.Fatalf("unexpected lookup %+v %v", c, ok)
	}
	if RequiresPhotos(tbl, "STYPCZYŃSCY") {
		t.Fatalf("STYPCZYŃSCY should not require photos")
	}
	if _, ok := tbl.Lookup("UNKNOWN"); ok {
		t.Fatalf("unexpected match")
	}
	if got := tbl.Companies(); len(got) != 3 || got[0].Name != "WAŁĘGA BĘDZIN" {
		t.Fatalf("unexpected order %+v", got)
	}
}

func TestNewStaticTableRejectsInvalid(t *testing.T) {
	cases := [][]Company{
		{{Name: "", Email: "a@b.pl"}},
		{{Name: "X"}},
		{{Name: "X", Email: "a@b.pl"}, {Name: "x", Email: "c@d.pl"}},
	}
	for i, c := range cases {
		if _, err := NewStaticTable(c); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.yaml")
	data := "companies:\n  - name: NOWY PRZEWOŹNIK\n    email: kontakt@nowy.pl\n    requires_photos: true\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	tbl, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !RequiresPhotos(tbl, "nowy przewoźnik") {
		t.Fatalf("expected photo requirement from file")
	}
}
