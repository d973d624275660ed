// Package domain holds the data model shared across the object-store
// client, spreadsheet mutator, browser session, vision/search clients,
// and the agent orchestrator.
package domain

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Timing is whether an earnings report was released before market open
// or after market close.
type Timing string

const (
	TimingPremarket Timing = "premarket"
	TimingAfterhours Timing = "afterhours"
)

// TickerJob is the per-invocation input the orchestrator receives. The
// tuple (Ticker, ReportDate, Timing) is the external identity and must
// be echoed verbatim in the callback.
type TickerJob struct {
	Ticker          string `json:"ticker" validate:"required,alpha,uppercase"`
	ReportDate      string `json:"report_date" validate:"required"`
	FiscalPeriodEnd string `json:"fiscal_period_end,omitempty"`
	Timing          Timing `json:"timing" validate:"required,oneof=premarket afterhours"`
	// CallbackURL falls back to the envelope's CallbackURL when empty,
	// so it is validated as optional here; RunEnvelope.Validate checks
	// that at least one of the two is set.
	CallbackURL string `json:"callback_url,omitempty" validate:"omitempty,url"`
}

// EffectiveDateHeader returns FiscalPeriodEnd when present, else
// ReportDate. The orchestrator always uses this value as the inserted
// column's date header, overriding whatever the model supplies.
func (t TickerJob) EffectiveDateHeader() string {
	if t.FiscalPeriodEnd != "" {
		return t.FiscalPeriodEnd
	}
	return t.ReportDate
}

// RunEnvelope is the HTTP ingress payload: a batch of ticker jobs
// sharing one callback URL.
type RunEnvelope struct {
	Tickers     []TickerJob `json:"tickers" validate:"required,min=1,dive"`
	CallbackURL string      `json:"callback_url,omitempty" validate:"omitempty,url"`
}

// Validate checks the struct tags with go-playground/validator, then
// the one cross-field rule tags can't express on a slice element: every
// ticker must resolve a callback URL from itself or the envelope.
func (e RunEnvelope) Validate() error {
	if err := validator.New().Struct(e); err != nil {
		return err
	}
	if e.CallbackURL != "" {
		return nil
	}
	for _, job := range e.Tickers {
		if job.CallbackURL == "" {
			return fmt.Errorf("callback_url is required at the envelope or ticker level (missing for %s)", job.Ticker)
		}
	}
	return nil
}

// StatementType is the financial statement a target file covers.
type StatementType string

const (
	StatementIncome   StatementType = "income"
	StatementBalance  StatementType = "balance"
	StatementCashflow StatementType = "cashflow"
)

// Period is whether a target file is the quarterly or annual variant.
type Period string

const (
	PeriodQuarterly Period = "quarterly"
	PeriodAnnual    Period = "annual"
)

// DataType is the display mode requested from the financial-data site.
// The tool surface only ever requests AsReported.
type DataType string

const (
	DataTypeAsReported DataType = "as-reported"
)

// TargetFile identifies one of the six spreadsheets an agent run
// processes, in the fixed order FileOrder below.
type TargetFile struct {
	Bucket    string
	Statement StatementType
	Period    Period
	DataType  DataType
}

func (f TargetFile) Key(ticker string) string {
	return ticker
}

// FileOrder is the fixed processing order: quarterly files first, then
// annual files. Quarterly files are always processed; annual files are
// gated by the Q4 rule (skipped unless the detected quarterly period
// is Q4).
var FileOrder = []TargetFile{
	{Bucket: "financials-quarterly-income", Statement: StatementIncome, Period: PeriodQuarterly, DataType: DataTypeAsReported},
	{Bucket: "financials-quarterly-balance", Statement: StatementBalance, Period: PeriodQuarterly, DataType: DataTypeAsReported},
	{Bucket: "financials-quarterly-cashflow", Statement: StatementCashflow, Period: PeriodQuarterly, DataType: DataTypeAsReported},
	{Bucket: "financials-annual-income", Statement: StatementIncome, Period: PeriodAnnual, DataType: DataTypeAsReported},
	{Bucket: "financials-annual-balance", Statement: StatementBalance, Period: PeriodAnnual, DataType: DataTypeAsReported},
	{Bucket: "financials-annual-cashflow", Statement: StatementCashflow, Period: PeriodAnnual, DataType: DataTypeAsReported},
}

// NoteCategory tags an entry in the agent's append-only scratchpad.
type NoteCategory string

const (
	NoteDataGathered  NoteCategory = "data_gathered"
	NoteEmptyCells    NoteCategory = "empty_cells"
	NoteValidation    NoteCategory = "validation"
	NoteDecision      NoteCategory = "decision"
	NoteError         NoteCategory = "error"
	NoteFileSkipped   NoteCategory = "file_skipped"
	NoteFileCompleted NoteCategory = "file_completed"
)

// Note is one scratchpad entry. The scratchpad is append-only and
// summarized into subsequent per-file prompts for continuity.
type Note struct {
	Category  NoteCategory `json:"category"`
	Text      string       `json:"text"`
	File      string       `json:"file,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// RowMapEntry identifies one row expecting a value in the newly
// inserted column.
type RowMapEntry struct {
	RowNumber     int    `json:"row_number"`
	Label         string `json:"label"`
	CellReference string `json:"cell_reference"`
}

// CellValue reports a single cell's contents, distinguishing a
// genuinely blank cell from a zero value.
type CellValue struct {
	Reference string `json:"reference"`
	Value     string `json:"value"`
	Empty     bool   `json:"empty"`
}

// SheetStructure is the read-only inspection result returned by the
// analyze_excel tool.
type SheetStructure struct {
	SheetName string      `json:"sheet_name"`
	RowCount  int         `json:"row_count"`
	ColCount  int         `json:"col_count"`
	Row1      []string    `json:"row1"`
	Row2      []string    `json:"row2"`
	ColumnA   []string    `json:"column_a"`
	Grid      [][]CellValue `json:"grid"`
}

// ProgressEvent is emitted to the status stream at tool-dispatch
// boundaries. RunID correlates every event from one ticker run, since
// multiple runs can be in flight concurrently.
type ProgressEvent struct {
	RunID     string    `json:"run_id"`
	Ticker    string    `json:"ticker"`
	File      string    `json:"file,omitempty"`
	Tool      string    `json:"tool,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// RunStatus is the terminal state of a ticker run, reported in the
// egress callback.
type RunStatus string

const (
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// CallbackPayload is posted to TickerJob.CallbackURL on terminal state.
type CallbackPayload struct {
	Ticker          string    `json:"ticker"`
	ReportDate      string    `json:"report_date"`
	Timing          Timing    `json:"timing"`
	Status          RunStatus `json:"status"`
	FilesUpdated    int       `json:"files_updated"`
	DataSourcesUsed []string  `json:"data_sources_used"`
	ErrorMessage    string    `json:"error_message,omitempty"`
}
