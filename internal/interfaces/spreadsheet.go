package interfaces

import "github.com/ternarybob/statement-agent/internal/domain"

// SpreadsheetMutator owns one open workbook and exposes a narrow
// mutation contract. A mutator instance is scoped to a single file for
// the lifetime of one ticker run.
type SpreadsheetMutator interface {
	// ReadStructure returns the inspection view of one sheet.
	ReadStructure(sheet string) (domain.SheetStructure, error)

	// SheetNames lists the sheets present in the open workbook.
	SheetNames() []string

	// IsEmpty reports whether cellRef currently holds no value.
	// InvalidReference is returned for a malformed address.
	IsEmpty(sheet, cellRef string) (bool, error)

	// UpdateCell writes value into cellRef. Fails with ErrCellConflict
	// if the cell holds a value at the time of the call, which covers
	// every cell non-empty on load and every cell already written this
	// run. A write to column B clones its
	// format from the same row's column C before the value is stored.
	UpdateCell(sheet, cellRef, value string) error

	// InsertNewPeriodColumn shifts existing data one column right,
	// writes dateHeader/periodHeader into the new B1/B2, clones header
	// styles from the now-shifted C1/C2, and returns the row map of
	// every row whose shifted column-C cell is non-empty. A second
	// call on the same sheet within one run fails with
	// ErrAlreadyInserted.
	InsertNewPeriodColumn(sheet, dateHeader, periodHeader string) ([]domain.RowMapEntry, error)

	// Save serializes the workbook to bytes for upload.
	Save() ([]byte, error)

	// Close releases the underlying workbook handle.
	Close() error
}
