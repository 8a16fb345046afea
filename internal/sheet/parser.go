package sheet

import (
	"fmt"
	"strings"

	"sheetdrive/internal/logging"
)

// headerScanLimit bounds how many leading rows are searched for the section
// marker. A sheet without a header within this window fails fast instead of
// forcing a full scan.
const headerScanLimit = 10

// Parser turns raw row-major sheet data into a validated SheetStructure.
type Parser struct {
	markers Markers
	log     *logging.Logger
}

// NewParser builds a parser for the given marker set.
func NewParser(markers Markers) *Parser {
	return &Parser{
		markers: markers,
		log:     logging.Get(logging.CategorySheet),
	}
}

// Parse locates the header row and all work columns.
//
// The section marker is matched by substring against the first cell of each
// row in the scan window, so trailing annotation text in that cell is
// tolerated. Work columns are matched by exact cell equality. A work column
// whose satellite positions would fall outside the sheet is skipped with a
// warning rather than failing the parse.
func (p *Parser) Parse(rows [][]string) (*SheetStructure, error) {
	if len(rows) == 0 {
		return nil, ErrHeaderNotFound
	}

	headerIdx := p.findHeaderRow(rows)
	if headerIdx < 0 {
		return nil, fmt.Errorf("%w: no row in the first %d rows has %q in its first cell",
			ErrHeaderNotFound, headerScanLimit, p.markers.Section)
	}

	headers := rows[headerIdx]
	headerRow := headerIdx + 1 // 1-based

	workColumns := p.findWorkColumns(headers)
	if len(workColumns) == 0 {
		return nil, fmt.Errorf("%w: header row %d has no %q cell with valid satellite columns",
			ErrNoWorkColumns, headerRow, p.markers.Work)
	}

	structure := &SheetStructure{
		HeaderRow:    headerRow,
		DataStartRow: headerRow + 1,
		WorkColumns:  workColumns,
		Headers:      headers,
		RowCount:     len(rows),
		ColumnCount:  len(headers),
	}

	p.log.Info("parsed structure: header row %d, data start row %d, %d work columns",
		structure.HeaderRow, structure.DataStartRow, len(structure.WorkColumns))

	return structure, nil
}

// findHeaderRow returns the 0-based index of the first row within the scan
// window whose first cell contains the section marker, or -1.
func (p *Parser) findHeaderRow(rows [][]string) int {
	limit := len(rows)
	if limit > headerScanLimit {
		limit = headerScanLimit
	}
	for i := 0; i < limit; i++ {
		row := rows[i]
		if len(row) == 0 {
			continue
		}
		cell := strings.TrimSpace(row[0])
		if cell != "" && strings.Contains(cell, p.markers.Section) {
			p.log.Debug("section marker %q found at row %d (cell %q)", p.markers.Section, i+1, cell)
			return i
		}
	}
	return -1
}

// findWorkColumns scans the header row for exact work-marker matches and
// derives each match's satellite positions.
func (p *Parser) findWorkColumns(headers []string) []ColumnPosition {
	var columns []ColumnPosition
	for i, cell := range headers {
		if strings.TrimSpace(cell) != p.markers.Work {
			continue
		}
		workColumn := i + 1 // 1-based

		pos, err := NewColumnPosition(workColumn)
		if err != nil {
			p.log.Warn("skipping work column %d: %v", workColumn, err)
			continue
		}
		if pos.Result > len(headers) {
			p.log.Warn("skipping work column %d: result column %d is beyond the last column %d",
				workColumn, pos.Result, len(headers))
			continue
		}

		columns = append(columns, pos)
		p.log.Debug("work column %s: status=%d error=%d result=%d",
			pos.Letter(), pos.Status, pos.Error, pos.Result)
	}
	return columns
}

// ValidateStructure re-checks a structure's invariants. Used before a run
// starts on a structure that was persisted or assembled by hand.
func ValidateStructure(s *SheetStructure) []string {
	var problems []string
	if s == nil {
		return []string{"structure is nil"}
	}
	if s.HeaderRow < 1 {
		problems = append(problems, "header row is invalid")
	}
	if s.DataStartRow != s.HeaderRow+1 {
		problems = append(problems, "data start row must immediately follow the header row")
	}
	if len(s.WorkColumns) == 0 {
		problems = append(problems, "no work columns")
	}
	for i, pos := range s.WorkColumns {
		if pos.Status < 1 || pos.Error < 1 {
			problems = append(problems, fmt.Sprintf("work column %d: satellite columns out of range", i+1))
		}
		if pos.Result > s.ColumnCount {
			problems = append(problems, fmt.Sprintf("work column %d: result column beyond sheet width", i+1))
		}
	}
	if s.RowCount < s.DataStartRow {
		problems = append(problems, "sheet has no data rows")
	}
	return problems
}
