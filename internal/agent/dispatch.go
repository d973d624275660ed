package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/statement-agent/internal/domain"
	"github.com/ternarybob/statement-agent/internal/interfaces"
)

// Dispatcher translates tool calls into component calls and marshals
// results back as JSON-serialized strings.
type Dispatcher struct {
	agentCtx *Context
	vision   interfaces.VisionExtractor
	search   interfaces.SearchClient
	progress func(domain.ProgressEvent)
	logger   arbor.ILogger
}

func NewDispatcher(agentCtx *Context, vision interfaces.VisionExtractor, search interfaces.SearchClient, progress func(domain.ProgressEvent), logger arbor.ILogger) *Dispatcher {
	return &Dispatcher{agentCtx: agentCtx, vision: vision, search: search, progress: progress, logger: logger}
}

// Dispatch executes one tool call and returns its structured result.
// Recoverable errors are encoded into the result content as IsError so
// the model can adapt; they are never returned as a Go error.
func (d *Dispatcher) Dispatch(ctx context.Context, call interfaces.ToolCall) interfaces.ToolResult {
	d.emitProgress(call.Name, "dispatching "+call.Name)

	content, isError := d.execute(ctx, call)

	return interfaces.ToolResult{
		ToolCallID: call.ID,
		Content:    content,
		IsError:    isError,
	}
}

func (d *Dispatcher) execute(ctx context.Context, call interfaces.ToolCall) (string, bool) {
	switch call.Name {
	case ToolAnalyzeExcel:
		return d.analyzeExcel(call.Input)
	case ToolBrowseStockAnalysis:
		return d.browseStockAnalysis(ctx, call.Input)
	case ToolExtractPageVision:
		return d.extractPageWithVision(ctx)
	case ToolWebSearch:
		return d.webSearch(ctx, call.Input)
	case ToolNoteFinding:
		return d.noteFinding(call.Input)
	case ToolInsertPeriodColumn:
		return d.insertPeriodColumn(call.Input)
	case ToolUpdateExcelCell:
		return d.updateExcelCell(call.Input)
	case ToolSaveAllFiles:
		return jsonResult(map[string]string{"status": "ack"}), false
	default:
		return jsonResult(map[string]string{"error": "unknown tool: " + call.Name}), true
	}
}

func (d *Dispatcher) currentMutator() (interfaces.SpreadsheetMutator, bool) {
	return d.agentCtx.Mutator(d.agentCtx.CurrentFile)
}

func (d *Dispatcher) analyzeExcel(input json.RawMessage) (string, bool) {
	var args struct {
		Sheet string `json:"sheet"`
	}
	_ = json.Unmarshal(input, &args)

	m, ok := d.currentMutator()
	if !ok {
		return jsonResult(map[string]string{"error": "current file has no open workbook"}), true
	}

	sheet := args.Sheet
	if sheet == "" {
		names := m.SheetNames()
		if len(names) == 0 {
			return jsonResult(map[string]string{"error": "workbook has no sheets"}), true
		}
		sheet = names[0]
	}

	structure, err := m.ReadStructure(sheet)
	if err != nil {
		return jsonResult(map[string]string{"error": err.Error()}), true
	}
	return jsonResult(structure), false
}

func (d *Dispatcher) browseStockAnalysis(ctx context.Context, input json.RawMessage) (string, bool) {
	var args struct {
		StatementType string `json:"statement_type"`
		Period        string `json:"period"`
		DataType      string `json:"data_type"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return jsonResult(map[string]string{"error": "malformed input: " + err.Error()}), true
	}
	if args.DataType != string(domain.DataTypeAsReported) {
		return jsonResult(map[string]string{"error": "data_type must be as-reported"}), true
	}

	if err := d.agentCtx.Browser.EnsureLoggedIn(ctx); err != nil {
		if errors.Is(err, domain.ErrLoginFailed) {
			// LoginFailed is not recoverable by the model: it fails the
			// whole ticker.
			d.agentCtx.SetFatalErr(err)
		}
		return jsonResult(map[string]string{"error": err.Error()}), true
	}

	statement := domain.StatementType(args.StatementType)
	period := domain.Period(args.Period)

	if err := d.agentCtx.Browser.NavigateToFinancials(ctx, d.agentCtx.Job.Ticker, statement, period, domain.DataTypeAsReported); err != nil {
		return jsonResult(map[string]string{"error": err.Error()}), true
	}
	if err := d.agentCtx.Browser.SelectRawUnits(ctx); err != nil {
		return jsonResult(map[string]string{"error": err.Error()}), true
	}
	shot, err := d.agentCtx.Browser.Screenshot(ctx)
	if err != nil {
		return jsonResult(map[string]string{"error": err.Error()}), true
	}

	return jsonResult(map[string]interface{}{
		"status":          "ok",
		"screenshot_bytes": len(shot),
	}), false
}

func (d *Dispatcher) extractPageWithVision(ctx context.Context) (string, bool) {
	shot, err := d.agentCtx.Browser.Screenshot(ctx)
	if err != nil {
		return jsonResult(map[string]string{"error": err.Error()}), true
	}

	markdown, err := d.vision.Extract(ctx, shot)
	if err != nil {
		if errors.Is(err, domain.ErrExtractionMalformed) {
			return jsonResult(map[string]string{"error": "extraction malformed: no table found"}), true
		}
		return jsonResult(map[string]string{"error": err.Error()}), true
	}

	d.agentCtx.AddDataSource("vision:stockanalysis.com")
	return jsonResult(map[string]string{"markdown_table": markdown}), false
}

func (d *Dispatcher) webSearch(ctx context.Context, input json.RawMessage) (string, bool) {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(input, &args); err != nil || args.Query == "" {
		return jsonResult(map[string]string{"error": "query is required"}), true
	}

	result, err := d.search.Search(ctx, args.Query)
	if err != nil {
		return jsonResult(map[string]string{"error": err.Error()}), true
	}

	d.agentCtx.AddDataSource("web_search")
	return jsonResult(result), false
}

func (d *Dispatcher) noteFinding(input json.RawMessage) (string, bool) {
	var args struct {
		Category string `json:"category"`
		Text     string `json:"text"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return jsonResult(map[string]string{"error": "malformed input: " + err.Error()}), true
	}

	d.agentCtx.AddNote(domain.NoteCategory(args.Category), args.Text)
	return jsonResult(map[string]string{"status": "noted"}), false
}

func (d *Dispatcher) insertPeriodColumn(input json.RawMessage) (string, bool) {
	var args struct {
		Sheet        string `json:"sheet"`
		DateHeader   string `json:"date_header"`
		PeriodHeader string `json:"period_header"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return jsonResult(map[string]string{"error": "malformed input: " + err.Error()}), true
	}

	m, ok := d.currentMutator()
	if !ok {
		return jsonResult(map[string]string{"error": "current file has no open workbook"}), true
	}

	// The agent-supplied date_header is ignored; the server overrides
	// it with fiscal_period_end (or report_date fallback).
	dateHeader := d.agentCtx.Job.EffectiveDateHeader()

	rowMap, err := m.InsertNewPeriodColumn(args.Sheet, dateHeader, args.PeriodHeader)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyInserted) {
			return jsonResult(map[string]string{"error": "period column already inserted in this sheet this run"}), true
		}
		return jsonResult(map[string]string{"error": err.Error()}), true
	}

	currentIsQuarterly := fileIsQuarterly(d.agentCtx.CurrentFile)
	if currentIsQuarterly {
		d.agentCtx.RecordDetectedQuarter(args.PeriodHeader)
	}

	return jsonResult(map[string]interface{}{
		"date_header":   dateHeader,
		"period_header": args.PeriodHeader,
		"row_map":       rowMap,
	}), false
}

func (d *Dispatcher) updateExcelCell(input json.RawMessage) (string, bool) {
	var args struct {
		Sheet         string `json:"sheet"`
		CellReference string `json:"cell_reference"`
		Value         string `json:"value"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return jsonResult(map[string]string{"error": "malformed input: " + err.Error()}), true
	}

	if !isFullyWrittenNumber(args.Value) {
		return jsonResult(map[string]string{
			"error": fmt.Sprintf("%v: %q looks abbreviated; write the fully written absolute integer", domain.ErrNumericFormatRejected, args.Value),
		}), true
	}

	m, ok := d.currentMutator()
	if !ok {
		return jsonResult(map[string]string{"error": "current file has no open workbook"}), true
	}

	if err := m.UpdateCell(args.Sheet, args.CellReference, args.Value); err != nil {
		if errors.Is(err, domain.ErrCellConflict) {
			return jsonResult(map[string]string{"error": "cell conflict: target was non-empty on load, choose a different cell"}), true
		}
		return jsonResult(map[string]string{"error": err.Error()}), true
	}

	count := d.agentCtx.IncrementCellsWritten(d.agentCtx.CurrentFile)
	return jsonResult(map[string]interface{}{"status": "written", "cells_written_count": count}), false
}

func (d *Dispatcher) emitProgress(tool, message string) {
	if d.progress == nil {
		return
	}
	d.progress(domain.ProgressEvent{
		RunID:     d.agentCtx.RunID,
		Ticker:    d.agentCtx.Job.Ticker,
		File:      d.agentCtx.CurrentFile,
		Tool:      tool,
		Message:   message,
		Timestamp: time.Now(),
	})
}

func jsonResult(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `{"error":"failed to marshal tool result"}`
	}
	return string(b)
}

func fileIsQuarterly(bucket string) bool {
	for _, f := range domain.FileOrder {
		if f.Bucket == bucket {
			return f.Period == domain.PeriodQuarterly
		}
	}
	return false
}
