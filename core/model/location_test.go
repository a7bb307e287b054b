package model

import "testing"

func TestFullAddress(t *testing.T) {
	tests := []struct {
		name string
		rec  LocationRecord
		want string
	}{
		{"primary code wins", LocationRecord{PrimaryCode: "HS-0142", Street: "Długa 1"}, "HS-0142"},
		{"sentinel falls back", LocationRecord{PrimaryCode: "poza HS", Street: "Długa 1", Postal: "40-100", City: "Katowice"}, "Długa 1, 40-100, Katowice"},
		{"sentinel case insensitive", LocationRecord{PrimaryCode: "POZA HS", City: "Bytom"}, "Bytom"},
		{"sentinel with nothing", LocationRecord{PrimaryCode: "poza HS"}, ""},
		{"empty code falls back", LocationRecord{Street: " Krótka 2 ", City: "Gliwice"}, "Krótka 2, Gliwice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.FullAddress(); got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestCrewMembersDistinctInSlotOrder(t *testing.T) {
	r := LocationRecord{Substrate: "Nowak", Electric: "Nowak", Assembly2: "Kowalski", Assembly3: "Wiśniewski"}
	got := r.CrewMembers()
	want := []string{"Nowak", "Kowalski", "Wiśniewski"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
	if (&LocationRecord{}).HasCrew() {
		t.Fatalf("empty record reports crew")
	}
}

func TestFieldAccessorTable(t *testing.T) {
	r := LocationRecord{Assembly1: "A", AutoCompany: "HUBTRANS", Postal: "41-200"}
	for _, f := range TrackedFields {
		parsed, err := ParseField(f.String())
		if err != nil || parsed != f {
			t.Fatalf("round trip %v: %v %v", f, parsed, err)
		}
	}
	if r.Get(FieldAssembly1) != "A" || r.Get(FieldAutoCompany) != "HUBTRANS" || r.Get(FieldPostal) != "41-200" {
		t.Fatalf("unexpected getter values")
	}
	if r.Get(Field(99)) != "" {
		t.Fatalf("unknown field should be empty")
	}
	if _, err := ParseField("nope"); err == nil {
		t.Fatalf("expected error")
	}
}
