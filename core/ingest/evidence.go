package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/MarcinPiech/DHLAI/core/model"
)

// EvidenceLocator finds the signed protocol and photo files of a record.
type EvidenceLocator interface {
	Locate(period model.Period, rec model.LocationRecord) (protocol string, photos []string)
}

// NoEvidence attaches nothing.
type NoEvidence struct{}

func (NoEvidence) Locate(model.Period, model.LocationRecord) (string, []string) { return "", nil }

var photoExt = []string{".jpg", ".jpeg", ".png", ".heic", ".webp"}

// DirEvidence looks up evidence in Root/<label>-<year>/<row>/: the first PDF
// is the protocol and every image is a photo.
type DirEvidence struct {
	Root string
}

func (d DirEvidence) Dir(period model.Period, row int) string {
	return filepath.Join(d.Root, fmt.Sprintf("%s-%d", period.Label, period.Year), strconv.Itoa(row))
}

func (d DirEvidence) Locate(period model.Period, rec model.LocationRecord) (string, []string) {
	if d.Root == "" {
		return "", nil
	}
	dir := d.Dir(period, rec.RowIndex)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", nil
	}
	var protocol string
	var photos []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		switch {
		case ext == ".pdf" && protocol == "":
			protocol = filepath.Join(dir, e.Name())
		case slices.Contains(photoExt, ext):
			photos = append(photos, filepath.Join(dir, e.Name()))
		}
	}
	return protocol, photos
}
