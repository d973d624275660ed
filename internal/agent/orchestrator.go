package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/statement-agent/internal/common"
	"github.com/ternarybob/statement-agent/internal/domain"
	"github.com/ternarybob/statement-agent/internal/interfaces"
	browsersvc "github.com/ternarybob/statement-agent/internal/services/browser"
	cachesvc "github.com/ternarybob/statement-agent/internal/services/cache"
	searchsvc "github.com/ternarybob/statement-agent/internal/services/search"
	"github.com/ternarybob/statement-agent/internal/services/spreadsheet"
	visionsvc "github.com/ternarybob/statement-agent/internal/services/vision"
)

// browserFactory builds the per-run browser session. Extracted as a
// field (rather than a direct call to browsersvc.New) so tests can
// substitute a fake session without launching headless Chrome.
type browserFactory func(ctx context.Context, cfg common.FinancialSiteConfig, workDir string, logger arbor.ILogger) (interfaces.BrowserSession, error)

// visionFactory and searchFactory build per-run vision/search clients
// bound to that run's response cache. Built fresh per ticker (rather
// than shared on the Orchestrator) because the cache they consult is
// itself per-run and must never be shared across tickers.
type visionFactory func(ctx context.Context, cfg common.VisionConfig, cache interfaces.ResponseCache, logger arbor.ILogger) (interfaces.VisionExtractor, error)
type searchFactory func(cfg common.SearchConfig, cache interfaces.ResponseCache, logger arbor.ILogger) interfaces.SearchClient

// Orchestrator runs the per-ticker control flow: download, per-file
// tool-calling loop, upload, terminal callback.
type Orchestrator struct {
	cfg         *common.Config
	objectStore interfaces.ObjectStore
	chat        interfaces.ChatService
	callback    *CallbackPoster
	progress    func(domain.ProgressEvent)
	logger      arbor.ILogger
	newBrowser  browserFactory
	newVision   visionFactory
	newSearch   searchFactory
}

func NewOrchestrator(
	cfg *common.Config,
	objectStore interfaces.ObjectStore,
	chat interfaces.ChatService,
	progress func(domain.ProgressEvent),
	logger arbor.ILogger,
) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		objectStore: objectStore,
		chat:        chat,
		callback:    NewCallbackPoster(cfg.Callback, logger),
		progress:    progress,
		logger:      logger,
		newBrowser: func(ctx context.Context, finCfg common.FinancialSiteConfig, workDir string, logger arbor.ILogger) (interfaces.BrowserSession, error) {
			return browsersvc.New(ctx, finCfg, workDir, logger)
		},
		newVision: func(ctx context.Context, visionCfg common.VisionConfig, cache interfaces.ResponseCache, logger arbor.ILogger) (interfaces.VisionExtractor, error) {
			return visionsvc.New(ctx, visionCfg, cache, logger)
		},
		newSearch: func(searchCfg common.SearchConfig, cache interfaces.ResponseCache, logger arbor.ILogger) interfaces.SearchClient {
			return searchsvc.New(searchCfg, cache, logger)
		},
	}
}

// Run executes one ticker end to end: download, per-file tool loop,
// upload, close resources, post the terminal callback. It never
// returns an error — every outcome is reported via the callback.
func (o *Orchestrator) Run(parentCtx context.Context, job domain.TickerJob) {
	timeout := common.Duration(o.cfg.Agent.TickerTimeout, 0)
	runCtx, cancel := context.WithTimeout(parentCtx, timeout)
	defer cancel()

	runID := uuid.New().String()

	workDir := filepath.Join(o.cfg.Agent.WorkDir, "run-"+job.Ticker+"-"+runID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		o.postFailure(parentCtx, job, fmt.Sprintf("failed to create working directory: %v", err), 0, nil)
		return
	}
	defer os.RemoveAll(workDir)

	agentCtx := NewContext(runID, job, workDir)

	cache, err := cachesvc.Open(workDir)
	if err != nil {
		o.logger.Warn().Err(err).Msg("response cache unavailable for this run; proceeding without it")
	} else {
		agentCtx.Cache = cache
		defer cache.Close()
	}

	browserSession, err := o.newBrowser(runCtx, o.cfg.FinSite, workDir, o.logger)
	if err != nil {
		o.postFailure(runCtx, job, fmt.Sprintf("failed to start browser session: %v", err), 0, nil)
		return
	}
	agentCtx.Browser = browserSession
	defer browserSession.Close()

	visionClient, err := o.newVision(runCtx, o.cfg.Vision, agentCtx.Cache, o.logger)
	if err != nil {
		o.postFailure(runCtx, job, fmt.Sprintf("failed to start vision client: %v", err), 0, nil)
		return
	}
	defer visionClient.Close()
	searchClient := o.newSearch(o.cfg.Search, agentCtx.Cache, o.logger)

	defer func() {
		for _, m := range agentCtx.AllMutators() {
			_ = m.Close()
		}
	}()

	if err := o.downloadAll(runCtx, agentCtx); err != nil {
		o.postFailure(runCtx, job, err.Error(), agentCtx.FilesUpdatedCount(), agentCtx.DataSources)
		return
	}

	dispatcher := NewDispatcher(agentCtx, visionClient, searchClient, o.progress, o.logger)

	var fatalErr error
	for _, file := range domain.FileOrder {
		if _, ok := agentCtx.Mutator(file.Bucket); !ok {
			continue // ResourceMissing: recorded and skipped at download time
		}

		if file.Period == domain.PeriodAnnual && agentCtx.DetectedQuarter != "" && !strings.Contains(strings.ToUpper(agentCtx.DetectedQuarter), "Q4") {
			agentCtx.CurrentFile = file.Bucket
			agentCtx.AddNote(domain.NoteFileSkipped, "annual file skipped: detected quarter "+agentCtx.DetectedQuarter+" is not Q4")
			continue
		}

		if err := o.processFile(runCtx, agentCtx, dispatcher, file); err != nil {
			if errors.Is(err, domain.ErrLoginFailed) {
				fatalErr = err
				break
			}
			o.logger.Warn().Err(err).Str("file", file.Bucket).Msg("file processing ended with a non-fatal error")
		}
	}

	if fatalErr != nil {
		o.postFailure(runCtx, job, fatalErr.Error(), agentCtx.FilesUpdatedCount(), agentCtx.DataSources)
		return
	}

	if err := runCtx.Err(); err != nil {
		o.postFailure(parentCtx, job, domain.ErrTimeoutExceeded.Error(), agentCtx.FilesUpdatedCount(), agentCtx.DataSources)
		return
	}

	o.postSuccess(parentCtx, job, agentCtx)
}

// downloadAll fetches every target file in the fixed order. A missing
// file is recorded and skipped.
func (o *Orchestrator) downloadAll(ctx context.Context, agentCtx *Context) error {
	for _, file := range domain.FileOrder {
		data, err := o.objectStore.Download(ctx, file.Bucket, agentCtx.Job.Ticker)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				agentCtx.CurrentFile = file.Bucket
				agentCtx.AddNote(domain.NoteFileSkipped, "file missing in object store")
				continue
			}
			return fmt.Errorf("download %s: %w", file.Bucket, err)
		}

		m, err := spreadsheet.Open(data)
		if err != nil {
			agentCtx.CurrentFile = file.Bucket
			agentCtx.AddNote(domain.NoteError, "failed to open workbook: "+err.Error())
			continue
		}
		agentCtx.SetMutator(file.Bucket, m)
	}
	return nil
}

// processFile runs the bounded tool-call loop for one file, then
// uploads iff at least one cell was written (the upload-gate
// invariant).
func (o *Orchestrator) processFile(ctx context.Context, agentCtx *Context, dispatcher *Dispatcher, file domain.TargetFile) error {
	agentCtx.CurrentFile = file.Bucket
	m, _ := agentCtx.Mutator(file.Bucket)

	sheetNames := m.SheetNames()
	sheet := "Sheet1"
	if len(sheetNames) > 0 {
		sheet = sheetNames[0]
	}
	structure, err := m.ReadStructure(sheet)
	if err != nil {
		agentCtx.AddNote(domain.NoteError, "read structure failed: "+err.Error())
		return nil
	}

	history := []interfaces.ChatMessage{
		{Role: interfaces.RoleSystem, Text: SystemPrompt(agentCtx.Job, file, agentCtx.ScratchpadSummary())},
		{Role: interfaces.RoleUser, Text: UserPrompt(structure, true)},
	}

	tools := make([]interfaces.ToolDefinition, 0, len(toolDefinitions))
	for _, t := range toolDefinitions {
		tools = append(tools, interfaces.ToolDefinition{Name: t.Name, Description: t.Description, InputSchema: t.Schema})
	}

	maxIterations := o.cfg.Agent.MaxIterations

	for iteration := 0; iteration < maxIterations; iteration++ {
		resp, err := o.chat.Chat(ctx, interfaces.ChatRequest{
			Messages:        history,
			Tools:           tools,
			MaxOutputTokens: o.cfg.Claude.MaxTokens,
			Thinking:        o.cfg.Claude.Thinking,
		})
		if err != nil {
			return fmt.Errorf("chat call failed on file %s: %w", file.Bucket, err)
		}

		assistantMsg := interfaces.ChatMessage{
			Role:      interfaces.RoleAssistant,
			ToolCalls: resp.ToolCalls,
			Opaque:    resp.Opaque,
		}
		if len(resp.TextBlocks) > 0 {
			assistantMsg.Text = strings.Join(resp.TextBlocks, "\n")
		}
		history = append(history, assistantMsg)

		if len(resp.ToolCalls) == 0 {
			break // finish reason "stop"/"end_turn": exit the loop
		}

		var toolResults []interfaces.ToolResult
		for _, call := range resp.ToolCalls {
			toolResults = append(toolResults, dispatcher.Dispatch(ctx, call))
		}
		history = append(history, interfaces.ChatMessage{Role: interfaces.RoleTool, ToolResults: toolResults})

		if fatalErr := agentCtx.FatalErr(); fatalErr != nil {
			return fatalErr
		}

		if iteration == maxIterations-1 {
			agentCtx.AddNote(domain.NoteError, domain.ErrIterationBudgetExceeded.Error())
		}
	}

	written := agentCtx.CellsWritten(file.Bucket)
	if written == 0 {
		o.logger.Warn().Str("file", file.Bucket).Msg("no cells written; skipping upload even if a column was inserted")
		agentCtx.AddNote(domain.NoteFileSkipped, "no cells written; upload skipped")
		return nil
	}

	data, err := m.Save()
	if err != nil {
		return fmt.Errorf("save %s: %w", file.Bucket, err)
	}
	if err := o.objectStore.Upload(ctx, file.Bucket, agentCtx.Job.Ticker, data); err != nil {
		return fmt.Errorf("upload %s: %w", file.Bucket, err)
	}

	agentCtx.AddNote(domain.NoteFileCompleted, fmt.Sprintf("uploaded with %d cells written", written))
	return nil
}

func (o *Orchestrator) postSuccess(ctx context.Context, job domain.TickerJob, agentCtx *Context) {
	o.callback.Post(ctx, job.CallbackURL, domain.CallbackPayload{
		Ticker:          job.Ticker,
		ReportDate:      job.ReportDate,
		Timing:          job.Timing,
		Status:          domain.StatusCompleted,
		FilesUpdated:    agentCtx.FilesUpdatedCount(),
		DataSourcesUsed: agentCtx.DataSources,
	})
}

func (o *Orchestrator) postFailure(ctx context.Context, job domain.TickerJob, message string, filesUpdated int, dataSources []string) {
	o.callback.Post(ctx, job.CallbackURL, domain.CallbackPayload{
		Ticker:          job.Ticker,
		ReportDate:      job.ReportDate,
		Timing:          job.Timing,
		Status:          domain.StatusFailed,
		FilesUpdated:    filesUpdated,
		DataSourcesUsed: dataSources,
		ErrorMessage:    message,
	})
}

// ensure the spreadsheet package's exported Mutator matches the
// interfaces.SpreadsheetMutator contract the orchestrator depends on.
var _ interfaces.SpreadsheetMutator = (*spreadsheet.Mutator)(nil)
