// Package xlsx adapts excelize workbooks to the ingest row readers.
package xlsx

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/MarcinPiech/DHLAI/core/ingest"
)

// Workbook is an opened spreadsheet file.
type Workbook struct {
	f *excelize.File
}

// Open opens the workbook at path. It satisfies ingest.WorkbookOpener.
func Open(path string) (ingest.Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	return &Workbook{f: f}, nil
}

// Sheet streams the named sheet.
func (w *Workbook) Sheet(name string) (ingest.RowReader, error) {
	if idx, err := w.f.GetSheetIndex(name); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %q (have %v)", ingest.ErrSheetNotFound, name, w.f.GetSheetList())
	}
	return w.rows(name)
}

// ActiveSheet streams the sheet that was active when the file was saved.
func (w *Workbook) ActiveSheet() (ingest.RowReader, error) {
	name := w.f.GetSheetName(w.f.GetActiveSheetIndex())
	if name == "" {
		return nil, fmt.Errorf("%w: no active sheet", ingest.ErrSheetNotFound)
	}
	return w.rows(name)
}

func (w *Workbook) rows(name string) (ingest.RowReader, error) {
	r, err := w.f.Rows(name)
	if err != nil {
		return nil, err
	}
	return &rowReader{rows: r}, nil
}

// Close releases the file and its temporary resources.
func (w *Workbook) Close() error { return w.f.Close() }

// rowReader returns raw cell values so dates arrive as serial numbers
// rather than in the display format of the cell.
type rowReader struct {
	rows *excelize.Rows
}

func (r *rowReader) Next() bool { return r.rows.Next() }

func (r *rowReader) Columns() ([]string, error) {
	return r.rows.Columns(excelize.Options{RawCellValue: true})
}

func (r *rowReader) Error() error { return r.rows.Error() }
func (r *rowReader) Close() error { return r.rows.Close() }
