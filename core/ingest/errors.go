package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrSheetNotFound is returned when the workbook lacks the expected sheet.
	ErrSheetNotFound = errors.New("sheet not found")
	// ErrPeriodNotFound is returned when bags are uploaded for an unknown period.
	ErrPeriodNotFound = errors.New("period not found")
	// ErrVersionConflict signals that another upload took the same version
	// number for the period.
	ErrVersionConflict = errors.New("version number already taken")
)

// IngestError aborts an ingestion. Partial writes have been rolled back.
type IngestError struct {
	Op   string
	Path string
	Err  error
}

func (e *IngestError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("ingest %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("ingest %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }
