// Package spreadsheet implements a narrow mutation contract over an
// OOXML workbook, via excelize.
package spreadsheet

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ternarybob/statement-agent/internal/domain"
)

var cellRefPattern = regexp.MustCompile(`^[A-Z]+[0-9]+$`)

// Mutator owns one open workbook for the duration of one ticker run.
type Mutator struct {
	file     *excelize.File
	inserted map[string]bool // sheet -> insert_new_period_column already called this run
}

// Open parses workbook bytes into a live, mutable handle.
func Open(data []byte) (*Mutator, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	return &Mutator{file: f, inserted: map[string]bool{}}, nil
}

func (m *Mutator) SheetNames() []string {
	return m.file.GetSheetList()
}

// ReadStructure returns the read-only inspection view of one sheet.
func (m *Mutator) ReadStructure(sheet string) (domain.SheetStructure, error) {
	rows, err := m.file.GetRows(sheet)
	if err != nil {
		return domain.SheetStructure{}, fmt.Errorf("read rows: %w", err)
	}
	cols, err := m.file.GetCols(sheet)
	if err != nil {
		return domain.SheetStructure{}, fmt.Errorf("read cols: %w", err)
	}

	structure := domain.SheetStructure{
		SheetName: sheet,
		RowCount:  len(rows),
		ColCount:  len(cols),
	}

	if len(rows) >= 1 {
		structure.Row1 = rows[0]
	}
	if len(rows) >= 2 {
		structure.Row2 = rows[1]
	}
	if len(cols) >= 1 {
		structure.ColumnA = cols[0]
	}

	structure.Grid = make([][]domain.CellValue, len(rows))
	for r, row := range rows {
		grid := make([]domain.CellValue, len(row))
		for c, v := range row {
			ref, _ := excelize.CoordinatesToCellName(c+1, r+1)
			grid[c] = domain.CellValue{
				Reference: ref,
				Value:     v,
				Empty:     strings.TrimSpace(v) == "",
			}
		}
		structure.Grid[r] = grid
	}

	return structure, nil
}

// IsEmpty reports whether cellRef currently holds no value.
func (m *Mutator) IsEmpty(sheet, cellRef string) (bool, error) {
	if !cellRefPattern.MatchString(cellRef) {
		return false, domain.ErrInvalidReference
	}
	v, err := m.file.GetCellValue(sheet, cellRef)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrInvalidReference, err)
	}
	return strings.TrimSpace(v) == "", nil
}

// UpdateCell writes value into cellRef. A write to column B clones the
// cell's style from the same row's column C first.
func (m *Mutator) UpdateCell(sheet, cellRef, value string) error {
	if !cellRefPattern.MatchString(cellRef) {
		return domain.ErrInvalidReference
	}

	empty, err := m.IsEmpty(sheet, cellRef)
	if err != nil {
		return err
	}
	if !empty {
		return domain.ErrCellConflict
	}

	col, row, err := excelize.CellNameToCoordinates(cellRef)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidReference, err)
	}

	if col == 2 { // column B
		srcRef, _ := excelize.CoordinatesToCellName(3, row) // column C, same row
		styleID, err := m.file.GetCellStyle(sheet, srcRef)
		if err == nil {
			_ = m.file.SetCellStyle(sheet, cellRef, cellRef, styleID)
		}
	}

	if err := m.file.SetCellValue(sheet, cellRef, value); err != nil {
		return fmt.Errorf("set cell value: %w", err)
	}
	return nil
}

// InsertNewPeriodColumn shifts existing data one column right, writes
// the new B1/B2 headers, re-applies header and data styles that the
// underlying engine's insert-column primitive does not always carry
// faithfully, and returns the row map of rows the agent must fill.
func (m *Mutator) InsertNewPeriodColumn(sheet, dateHeader, periodHeader string) ([]domain.RowMapEntry, error) {
	if m.inserted[sheet] {
		return nil, domain.ErrAlreadyInserted
	}

	rows, err := m.file.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read rows before insert: %w", err)
	}

	// Capture pre-shift styles for every populated cell in columns A..
	// last, keyed by (row, col), so they can be re-applied verbatim
	// after InsertCols shifts B.. right by one.
	type cellStyle struct {
		row, col int
		styleID  int
	}
	var styles []cellStyle
	maxCol := 0
	for _, row := range rows {
		if len(row) > maxCol {
			maxCol = len(row)
		}
	}
	for r := 1; r <= len(rows); r++ {
		for c := 1; c <= maxCol; c++ {
			ref, _ := excelize.CoordinatesToCellName(c, r)
			sid, err := m.file.GetCellStyle(sheet, ref)
			if err == nil && sid != 0 {
				styles = append(styles, cellStyle{row: r, col: c, styleID: sid})
			}
		}
	}

	if err := m.file.InsertCols(sheet, "B", 1); err != nil {
		return nil, fmt.Errorf("insert column: %w", err)
	}

	// Re-apply styles to their shifted destination: columns >= 2 moved
	// one right, column A (1) is unaffected.
	for _, s := range styles {
		destCol := s.col
		if destCol >= 2 {
			destCol++
		}
		ref, _ := excelize.CoordinatesToCellName(destCol, s.row)
		_ = m.file.SetCellStyle(sheet, ref, ref, s.styleID)
	}

	// Header styles for the new B1/B2 are cloned from the now-shifted
	// C1/C2 cells, which held the previous B1/B2 styling.
	for _, pair := range [][2]string{{"C1", "B1"}, {"C2", "B2"}} {
		sid, err := m.file.GetCellStyle(sheet, pair[0])
		if err == nil {
			_ = m.file.SetCellStyle(sheet, pair[1], pair[1], sid)
		}
	}

	if err := m.file.SetCellValue(sheet, "B1", dateHeader); err != nil {
		return nil, fmt.Errorf("write B1: %w", err)
	}
	if err := m.file.SetCellValue(sheet, "B2", periodHeader); err != nil {
		return nil, fmt.Errorf("write B2: %w", err)
	}

	var rowMap []domain.RowMapEntry
	for r := 3; r <= len(rows); r++ { // data rows start after the two header rows
		cRef, _ := excelize.CoordinatesToCellName(3, r)
		cVal, err := m.file.GetCellValue(sheet, cRef)
		if err != nil {
			continue
		}
		if strings.TrimSpace(cVal) == "" {
			continue
		}
		label, _ := m.file.GetCellValue(sheet, fmt.Sprintf("A%d", r))
		bRef, _ := excelize.CoordinatesToCellName(2, r)
		rowMap = append(rowMap, domain.RowMapEntry{
			RowNumber:     r,
			Label:         label,
			CellReference: bRef,
		})
	}

	m.inserted[sheet] = true
	return rowMap, nil
}

// Save serializes the workbook to bytes for upload.
func (m *Mutator) Save() ([]byte, error) {
	buf, err := m.file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (m *Mutator) Close() error {
	return m.file.Close()
}
