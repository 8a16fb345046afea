// Package xlsx is the spreadsheet collaborator: it reads the row-major data
// the parser and extractor consume and writes per-cell outcomes back.
package xlsx

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"sheetdrive/internal/logging"
)

// Workbook wraps one sheet of an xlsx file.
type Workbook struct {
	file      *excelize.File
	path      string
	sheetName string
	log       *logging.Logger
}

// Open opens path and binds to sheetName, or the active sheet when empty.
func Open(path, sheetName string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	if sheetName == "" {
		sheetName = f.GetSheetName(f.GetActiveSheetIndex())
	}
	if idx, err := f.GetSheetIndex(sheetName); err != nil || idx < 0 {
		_ = f.Close()
		return nil, fmt.Errorf("workbook %s has no sheet %q", path, sheetName)
	}
	return &Workbook{
		file:      f,
		path:      path,
		sheetName: sheetName,
		log:       logging.Get(logging.CategorySheet),
	}, nil
}

// SheetName returns the bound sheet's name.
func (w *Workbook) SheetName() string { return w.sheetName }

// Rows returns the sheet's cells row-major as strings. Trailing empty cells
// are absent from each row, which the parser and extractor tolerate.
func (w *Workbook) Rows() ([][]string, error) {
	rows, err := w.file.GetRows(w.sheetName)
	if err != nil {
		return nil, fmt.Errorf("read rows from %s: %w", w.sheetName, err)
	}
	return rows, nil
}

// WriteCell sets one cell by 1-based row and column.
func (w *Workbook) WriteCell(row, column int, value string) error {
	cell, err := excelize.CoordinatesToCellName(column, row)
	if err != nil {
		return fmt.Errorf("cell coordinates (%d,%d): %w", row, column, err)
	}
	if err := w.file.SetCellValue(w.sheetName, cell, value); err != nil {
		return fmt.Errorf("write cell %s: %w", cell, err)
	}
	w.log.Debug("wrote %s!%s", w.sheetName, cell)
	return nil
}

// WriteResult implements the run controller's write-back for result and
// error columns.
func (w *Workbook) WriteResult(row, column int, text string) error {
	return w.WriteCell(row, column, text)
}

// WriteStatus implements the run controller's write-back for status markers.
func (w *Workbook) WriteStatus(row, column int, text string) error {
	return w.WriteCell(row, column, text)
}

// Save flushes pending writes back to the file.
func (w *Workbook) Save() error {
	if err := w.file.Save(); err != nil {
		return fmt.Errorf("save workbook %s: %w", w.path, err)
	}
	return nil
}

// Close releases the underlying file without saving.
func (w *Workbook) Close() error {
	return w.file.Close()
}
