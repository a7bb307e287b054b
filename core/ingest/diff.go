package ingest

import (
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/MarcinPiech/DHLAI/core/model"
)

// FieldChange is the before/after value of one tracked field.
type FieldChange struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// RowChange lists the tracked fields that changed on one row.
type RowChange struct {
	Row     int                    `json:"row"`
	Changes map[string]FieldChange `json:"changes"`
}

// VersionDiff is the row-level difference between two versions.
type VersionDiff struct {
	Added    []model.LocationRecord `json:"added"`
	Removed  []model.LocationRecord `json:"removed"`
	Modified []RowChange            `json:"modified"`
}

// Empty reports whether the two versions are equal on the tracked fields.
func (d VersionDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0
}

// DiffRecords matches records by row index. Output is ordered by row.
func DiffRecords(oldRecs, newRecs []model.LocationRecord) VersionDiff {
	oldByRow := indexByRow(oldRecs)
	newByRow := indexByRow(newRecs)
	d := VersionDiff{
		Added:    []model.LocationRecord{},
		Removed:  []model.LocationRecord{},
		Modified: []RowChange{},
	}

	for _, row := range sortedRows(newByRow) {
		n := newByRow[row]
		o, ok := oldByRow[row]
		if !ok {
			d.Added = append(d.Added, *n)
			continue
		}
		if fingerprint(o) == fingerprint(n) {
			continue
		}
		if changes := compare(o, n); len(changes) > 0 {
			d.Modified = append(d.Modified, RowChange{Row: row, Changes: changes})
		}
	}
	for _, row := range sortedRows(oldByRow) {
		if _, ok := newByRow[row]; !ok {
			d.Removed = append(d.Removed, *oldByRow[row])
		}
	}
	return d
}

func compare(o, n *model.LocationRecord) map[string]FieldChange {
	var changes map[string]FieldChange
	for _, f := range model.TrackedFields {
		ov, nv := o.Get(f), n.Get(f)
		if ov == nv {
			continue
		}
		if changes == nil {
			changes = make(map[string]FieldChange)
		}
		changes[f.String()] = FieldChange{Old: ov, New: nv}
	}
	return changes
}

// fingerprint hashes the tracked fields so unchanged rows skip the
// field-by-field comparison.
func fingerprint(r *model.LocationRecord) uint64 {
	d := xxhash.New()
	for _, f := range model.TrackedFields {
		_, _ = d.WriteString(r.Get(f))
		_, _ = d.Write([]byte{0})
	}
	return d.Sum64()
}

func indexByRow(recs []model.LocationRecord) map[int]*model.LocationRecord {
	out := make(map[int]*model.LocationRecord, len(recs))
	for i := range recs {
		out[recs[i].RowIndex] = &recs[i]
	}
	return out
}

func sortedRows(m map[int]*model.LocationRecord) []int {
	rows := make([]int, 0, len(m))
	for r := range m {
		rows = append(rows, r)
	}
	sort.Ints(rows)
	return rows
}
