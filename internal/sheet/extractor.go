package sheet

import (
	"strconv"
	"strings"

	"sheetdrive/internal/logging"
)

// Extractor walks the data rows beneath a parsed structure and emits one
// pending WorkUnit per (row, work-column) pair that still needs processing.
type Extractor struct {
	cfg *RunConfig
	log *logging.Logger
}

// NewExtractor builds an extractor bound to a run config.
func NewExtractor(cfg *RunConfig) *Extractor {
	return &Extractor{
		cfg: cfg,
		log: logging.Get(logging.CategorySheet),
	}
}

// Extract emits work units in row-major order, then column order as the
// parser discovered them. The run controller relies on this ordering for
// intra-service sequencing.
//
// Row rules:
//   - a blank first cell ends the scan entirely (end-of-data sentinel)
//   - a non-numeric first cell skips that row only
//   - a unit is emitted only when the work cell has text and the status cell
//     is empty or still holds the pending marker, which makes extraction
//     idempotent across repeated runs on partially-completed sheets
func (e *Extractor) Extract(structure *SheetStructure, rows [][]string) []*WorkUnit {
	var units []*WorkUnit

	for i := structure.DataStartRow - 1; i < len(rows); i++ {
		rowNumber := i + 1 // 1-based
		row := rows[i]

		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			e.log.Info("blank first cell at row %d, extraction stops", rowNumber)
			break
		}

		if _, err := strconv.Atoi(strings.TrimSpace(row[0])); err != nil {
			e.log.Warn("row %d: first cell %q is not a sequence number, skipping row", rowNumber, row[0])
			continue
		}

		for _, pos := range structure.WorkColumns {
			if unit := e.extractUnit(row, rowNumber, pos); unit != nil {
				units = append(units, unit)
			}
		}
	}

	e.log.Info("extracted %d work units", len(units))
	return units
}

// extractUnit applies the per-cell skip rules for one (row, column) pair.
func (e *Extractor) extractUnit(row []string, rowNumber int, pos ColumnPosition) *WorkUnit {
	workText := cellAt(row, pos.Work)
	if workText == "" {
		e.log.Debug("row %d column %s: empty work cell, skipping", rowNumber, pos.Letter())
		return nil
	}

	status := cellAt(row, pos.Status)
	if status != "" && status != e.cfg.Markers.StatusPending {
		e.log.Debug("row %d column %s: status %q, already handled, skipping", rowNumber, pos.Letter(), status)
		return nil
	}

	cfg := e.cfg.ConfigFor(pos.Work)
	return NewWorkUnit(rowNumber, pos, workText, cfg)
}

// cellAt reads a 1-based column from a row, returning "" past the row's end.
func cellAt(row []string, column int) string {
	if column < 1 || column > len(row) {
		return ""
	}
	return strings.TrimSpace(row[column-1])
}
