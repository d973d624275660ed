package agent

import (
	"fmt"
	"strings"

	"github.com/ternarybob/statement-agent/internal/domain"
)

// workflowRules is the fixed portion of every per-file system prompt.
const workflowRules = `Rules you must follow:
- Never overwrite a non-empty cell. You may only populate empty cells, or cells in a newly inserted column.
- Every value you write must be a fully written absolute integer (e.g. 394328000000). Never round or abbreviate (no "B"/"M"/"K").
- Match row labels carefully to the extracted markdown table. If you cannot confidently match a row, leave the cell blank.
- When inserting a new column, use the leftmost data-column header of the extracted markdown table as the period_header. The date_header you supply will be ignored and overridden.
- The vision-extracted markdown table is your primary data source. Use web_search only to validate or fill a gap.
- When you are done with this file, simply stop making tool calls.`

// SystemPrompt builds the per-file system prompt: file identifier,
// ticker, dates, browse parameters, scratchpad summary, and workflow
// rules.
func SystemPrompt(job domain.TickerJob, file domain.TargetFile, scratchpad string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are updating the %s spreadsheet for ticker %s.\n", file.Bucket, job.Ticker)
	fmt.Fprintf(&sb, "Report date: %s. Fiscal period end: %s. Timing: %s.\n", job.ReportDate, job.EffectiveDateHeader(), job.Timing)
	fmt.Fprintf(&sb, "Browse parameters: statement_type=%s, period=%s, data_type=%s.\n\n", file.Statement, file.Period, file.DataType)
	sb.WriteString("Notes from previous files this run:\n")
	sb.WriteString(scratchpad)
	sb.WriteString("\n\n")
	sb.WriteString(workflowRules)
	return sb.String()
}

// UserPrompt builds the first user message for a file: the full grid
// plus an explicit empty-cells list. When a new column is about to be
// inserted (insertPending), the empty-cells reminder is restricted to
// column B and historical blanks are explicitly ignored.
func UserPrompt(structure domain.SheetStructure, insertPending bool) string {
	var sb strings.Builder
	sb.WriteString("Current sheet structure:\n")
	fmt.Fprintf(&sb, "Sheet: %s (%d rows x %d cols)\n", structure.SheetName, structure.RowCount, structure.ColCount)
	sb.WriteString("Row 1 (dates): ")
	sb.WriteString(strings.Join(structure.Row1, " | "))
	sb.WriteString("\nRow 2 (periods): ")
	sb.WriteString(strings.Join(structure.Row2, " | "))
	sb.WriteString("\nColumn A (labels): ")
	sb.WriteString(strings.Join(structure.ColumnA, " | "))
	sb.WriteString("\n\n")

	if insertPending {
		sb.WriteString("A new leftmost period column is expected. After inserting it, the empty cells you are responsible for filling are in column B only. Ignore any other historically empty cells.\n")
	} else {
		sb.WriteString("Empty cells you may fill (ignore historically empty cells not relevant to the newest period):\n")
		for _, row := range structure.Grid {
			for _, cell := range row {
				if cell.Empty {
					sb.WriteString(cell.Reference)
					sb.WriteString(" ")
				}
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
