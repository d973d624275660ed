package domain

import "errors"

// Error taxonomy shared across the browser, vision, search, and
// spreadsheet layers and the agent orchestrator.
var (
	// ErrInputInvalid — malformed ingress payload; refused at the boundary.
	ErrInputInvalid = errors.New("input invalid")

	// ErrNotFound — a spreadsheet is absent in the object store; that
	// file is recorded as skipped, processing continues.
	ErrNotFound = errors.New("resource missing")

	// ErrLoginFailed — browser could not authenticate after retry; the
	// whole ticker fails.
	ErrLoginFailed = errors.New("login failed")

	// ErrNavigationFailed / ErrExtractionFailed — transient; the tool
	// call returns a structured error to the LLM, not fatal.
	ErrNavigationFailed = errors.New("navigation failed")
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrExtractionMalformed — vision output contained no parseable
	// table.
	ErrExtractionMalformed = errors.New("extraction malformed: no table found")

	// ErrInvalidReference — malformed cell address.
	ErrInvalidReference = errors.New("invalid cell reference")

	// ErrCellConflict — the agent attempted to overwrite a non-empty
	// cell; the mutator refuses.
	ErrCellConflict = errors.New("cell conflict: target was non-empty on load")

	// ErrAlreadyInserted — a second insert_new_period_column call on
	// the same sheet within one run.
	ErrAlreadyInserted = errors.New("period column already inserted this run")

	// ErrNumericFormatRejected — update_excel_cell value failed the
	// fully-written-integer guard.
	ErrNumericFormatRejected = errors.New("numeric format rejected: value looks abbreviated")

	// ErrIterationBudgetExceeded — per-file iteration cap reached.
	ErrIterationBudgetExceeded = errors.New("iteration budget exceeded")

	// ErrTimeoutExceeded — per-ticker wall-clock budget exceeded.
	ErrTimeoutExceeded = errors.New("ticker timeout exceeded")

	// ErrTransport — on callback post; retried once, then logged and
	// swallowed.
	ErrTransport = errors.New("transport error")
)
