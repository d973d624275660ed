package agent

import (
	"encoding/json"
)

// Tool names exposed to the chat model.
const (
	ToolAnalyzeExcel         = "analyze_excel"
	ToolBrowseStockAnalysis  = "browse_stockanalysis"
	ToolExtractPageVision    = "extract_page_with_vision"
	ToolWebSearch            = "web_search"
	ToolNoteFinding          = "note_finding"
	ToolInsertPeriodColumn   = "insert_new_period_column"
	ToolUpdateExcelCell      = "update_excel_cell"
	ToolSaveAllFiles         = "save_all_files"
)

func mustSchema(raw string) json.RawMessage {
	return json.RawMessage(raw)
}

// toolDefinitions returns the fixed, JSON-schema-described toolset the
// orchestrator publishes to the chat LLM every iteration.
var toolDefinitions = []struct {
	Name        string
	Description string
	Schema      json.RawMessage
}{
	{
		Name:        ToolAnalyzeExcel,
		Description: "Returns the per-sheet structure of the current file only (row/column counts, headers, and a grid of cell values). Read-only; does not widen scope to other files.",
		Schema: mustSchema(`{
			"type": "object",
			"properties": {
				"sheet": {"type": "string", "description": "Sheet name to inspect; defaults to the first sheet if omitted."}
			}
		}`),
	},
	{
		Name:        ToolBrowseStockAnalysis,
		Description: "Logs in if needed, navigates to the ticker's statement page, selects raw number units, and captures a screenshot.",
		Schema: mustSchema(`{
			"type": "object",
			"properties": {
				"statement_type": {"type": "string", "enum": ["income", "balance", "cashflow"]},
				"period": {"type": "string", "enum": ["quarterly", "annual"]},
				"data_type": {"type": "string", "enum": ["as-reported"]}
			},
			"required": ["statement_type", "period", "data_type"]
		}`),
	},
	{
		Name:        ToolExtractPageVision,
		Description: "Sends the latest screenshot to the vision model and returns a markdown table. No agent-supplied prompt is used; the extraction instruction is fixed.",
		Schema:      mustSchema(`{"type": "object", "properties": {}}`),
	},
	{
		Name:        ToolWebSearch,
		Description: "Calls the secondary search API for validation or gap-filling. Use sparingly; the vision-extracted table is the primary data source.",
		Schema: mustSchema(`{
			"type": "object",
			"properties": {"query": {"type": "string"}},
			"required": ["query"]
		}`),
	},
	{
		Name:        ToolNoteFinding,
		Description: "Appends a note to the scratchpad. Does not alter the workbook.",
		Schema: mustSchema(`{
			"type": "object",
			"properties": {
				"category": {"type": "string", "enum": ["data_gathered", "empty_cells", "validation", "decision", "error", "file_skipped", "file_completed"]},
				"text": {"type": "string"}
			},
			"required": ["category", "text"]
		}`),
	},
	{
		Name:        ToolInsertPeriodColumn,
		Description: "Performs the structural insert-new-leftmost-period-column operation in the current file. The date_header you supply is overridden server-side with the fiscal period end (or report date fallback); supply the period_header using the leftmost data-column header of the extracted markdown table.",
		Schema: mustSchema(`{
			"type": "object",
			"properties": {
				"sheet": {"type": "string"},
				"date_header": {"type": "string", "description": "Ignored; overridden server-side."},
				"period_header": {"type": "string"}
			},
			"required": ["sheet", "date_header", "period_header"]
		}`),
	},
	{
		Name:        ToolUpdateExcelCell,
		Description: "Writes one cell in the current file. Rejected if the target cell was non-empty on load, or if the value is not a fully written absolute integer.",
		Schema: mustSchema(`{
			"type": "object",
			"properties": {
				"sheet": {"type": "string"},
				"cell_reference": {"type": "string"},
				"value": {"type": "string"}
			},
			"required": ["sheet", "cell_reference", "value"]
		}`),
	},
	{
		Name:        ToolSaveAllFiles,
		Description: "No-op sentinel signaling the current file is ready to finalize. The real save/upload happens after the tool loop exits.",
		Schema:      mustSchema(`{"type": "object", "properties": {}}`),
	},
}
