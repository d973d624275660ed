package agent

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/xuri/excelize/v2"

	"github.com/ternarybob/statement-agent/internal/common"
	"github.com/ternarybob/statement-agent/internal/domain"
	"github.com/ternarybob/statement-agent/internal/interfaces"
)

func fixtureWorkbookBytes(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	rows := [][]string{
		{"", "2025-10-31", "2025-07-31"},
		{"", "Q3 2026", "Q2 2026"},
		{"Revenue", "1000000000", "900000000"},
		{"Total Assets", "", "500000000"},
	}
	for r, row := range rows {
		for c, v := range row {
			ref, _ := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, f.SetCellValue("Sheet1", ref, v))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

// fakeStore serves a fixed workbook for every bucket except those
// listed in missing, which report domain.ErrNotFound.
type fakeStore struct {
	mu       sync.Mutex
	fixture  []byte
	missing  map[string]bool
	uploaded map[string]bool
}

func newFakeStore(t *testing.T, missing ...string) *fakeStore {
	m := map[string]bool{}
	for _, b := range missing {
		m[b] = true
	}
	return &fakeStore{fixture: fixtureWorkbookBytes(t), missing: m, uploaded: map[string]bool{}}
}

func (f *fakeStore) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	if f.missing[bucket] {
		return nil, domain.ErrNotFound
	}
	return f.fixture, nil
}

func (f *fakeStore) Upload(ctx context.Context, bucket, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded[bucket] = true
	return nil
}

func (f *fakeStore) wasUploaded(bucket string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploaded[bucket]
}

// scriptedChat returns a canned ChatResponse sequence per bucket,
// identified from the system prompt text (which always names the
// bucket), and an empty end-turn response once a bucket's script is
// exhausted.
type scriptedChat struct {
	mu      sync.Mutex
	scripts map[string][]interfaces.ChatResponse
	calls   map[string]int
}

func (s *scriptedChat) Chat(ctx context.Context, req interfaces.ChatRequest) (interfaces.ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := ""
	for _, m := range req.Messages {
		if m.Role != interfaces.RoleSystem {
			continue
		}
		for b := range s.scripts {
			if strings.Contains(m.Text, b) {
				bucket = b
			}
		}
	}

	idx := s.calls[bucket]
	s.calls[bucket] = idx + 1

	script := s.scripts[bucket]
	if idx >= len(script) {
		return interfaces.ChatResponse{FinishReason: "end_turn"}, nil
	}
	return script[idx], nil
}

func (s *scriptedChat) HealthCheck(ctx context.Context) error { return nil }
func (s *scriptedChat) GetMode() interfaces.LLMMode            { return interfaces.LLMModeCloud }
func (s *scriptedChat) Close() error                           { return nil }

type stubBrowser struct {
	loginErr error
}

func (b *stubBrowser) EnsureLoggedIn(ctx context.Context) error { return b.loginErr }
func (b *stubBrowser) NavigateToFinancials(ctx context.Context, ticker string, statement domain.StatementType, period domain.Period, dataType domain.DataType) error {
	return nil
}
func (b *stubBrowser) SelectRawUnits(ctx context.Context) error       { return nil }
func (b *stubBrowser) Screenshot(ctx context.Context) ([]byte, error) { return []byte("png"), nil }
func (b *stubBrowser) Close() error                                   { return nil }

type stubVision struct{}

func (stubVision) Extract(ctx context.Context, screenshot []byte) (string, error) {
	return "| Revenue |\n|---|\n| 450000000 |", nil
}
func (stubVision) Close() error { return nil }

type stubSearch struct{}

func (stubSearch) Search(ctx context.Context, query string) (interfaces.SearchResult, error) {
	return interfaces.SearchResult{AnswerText: "n/a"}, nil
}

func toolCallResponse(id, name, input string) interfaces.ChatResponse {
	return interfaces.ChatResponse{
		ToolCalls:    []interfaces.ToolCall{{ID: id, Name: name, Input: []byte(input)}},
		FinishReason: "tool_use",
	}
}

func endTurn() interfaces.ChatResponse {
	return interfaces.ChatResponse{FinishReason: "end_turn"}
}

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	return &common.Config{
		Agent: common.AgentConfig{
			MaxIterations: 6,
			TickerTimeout: "10s",
			WorkDir:       t.TempDir(),
		},
		Callback: common.CallbackConfig{Timeout: "2s", RetryDelay: "1ms"},
		Claude:   common.ClaudeConfig{MaxTokens: 1000},
	}
}

func newTestOrchestrator(t *testing.T, store interfaces.ObjectStore, chat interfaces.ChatService, browser interfaces.BrowserSession) *Orchestrator {
	t.Helper()
	orch := NewOrchestrator(testConfig(t), store, chat, nil, common.GetLogger())
	orch.newBrowser = func(ctx context.Context, cfg common.FinancialSiteConfig, workDir string, logger arbor.ILogger) (interfaces.BrowserSession, error) {
		return browser, nil
	}
	orch.newVision = func(ctx context.Context, cfg common.VisionConfig, cache interfaces.ResponseCache, logger arbor.ILogger) (interfaces.VisionExtractor, error) {
		return stubVision{}, nil
	}
	orch.newSearch = func(cfg common.SearchConfig, cache interfaces.ResponseCache, logger arbor.ILogger) interfaces.SearchClient {
		return stubSearch{}
	}
	return orch
}

// TestOrchestrator_UploadGate verifies that a file where the model
// never calls update_excel_cell is never uploaded, even when a period
// column was inserted.
func TestOrchestrator_UploadGate(t *testing.T) {
	store := newFakeStore(t,
		"financials-annual-income", "financials-annual-balance", "financials-annual-cashflow",
	)
	chat := &scriptedChat{
		calls: map[string]int{},
		scripts: map[string][]interfaces.ChatResponse{
			"financials-quarterly-income": {
				toolCallResponse("c1", ToolInsertPeriodColumn, `{"sheet":"Sheet1","date_header":"x","period_header":"Q1 2026"}`),
				endTurn(),
			},
			"financials-quarterly-balance":  {endTurn()},
			"financials-quarterly-cashflow": {endTurn()},
		},
	}

	orch := newTestOrchestrator(t, store, chat, &stubBrowser{})

	job := domain.TickerJob{
		Ticker:      "ZM",
		ReportDate:  "2026-03-01",
		Timing:      domain.TimingAfterhours,
		CallbackURL: "http://127.0.0.1:0/unreachable",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	orch.Run(ctx, job)

	assert.False(t, store.wasUploaded("financials-quarterly-income"), "upload must be gated on at least one cell write")
}

// TestOrchestrator_Q4Gate verifies that annual files are skipped when
// the quarterly file's detected period is not Q4.
func TestOrchestrator_Q4Gate(t *testing.T) {
	store := newFakeStore(t)
	chat := &scriptedChat{
		calls: map[string]int{},
		scripts: map[string][]interfaces.ChatResponse{
			"financials-quarterly-income": {
				toolCallResponse("c1", ToolInsertPeriodColumn, `{"sheet":"Sheet1","date_header":"x","period_header":"Q1 2026"}`),
				toolCallResponse("c2", ToolUpdateExcelCell, `{"sheet":"Sheet1","cell_reference":"B4","value":"450000000"}`),
				endTurn(),
			},
			"financials-quarterly-balance":  {endTurn()},
			"financials-quarterly-cashflow": {endTurn()},
		},
	}

	orch := newTestOrchestrator(t, store, chat, &stubBrowser{})

	job := domain.TickerJob{
		Ticker:      "ZM",
		ReportDate:  "2026-03-01",
		Timing:      domain.TimingAfterhours,
		CallbackURL: "http://127.0.0.1:0/unreachable",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	orch.Run(ctx, job)

	assert.True(t, store.wasUploaded("financials-quarterly-income"))
	assert.False(t, store.wasUploaded("financials-annual-income"), "annual file must be skipped when detected quarter is not Q4")
}

// TestOrchestrator_LoginFailureIsFatal verifies that a login failure
// during the first file's browse call aborts the run without panicking
// and without uploading that file, per scenario S5.
func TestOrchestrator_LoginFailureIsFatal(t *testing.T) {
	store := newFakeStore(t)
	chat := &scriptedChat{
		calls: map[string]int{},
		scripts: map[string][]interfaces.ChatResponse{
			"financials-quarterly-income": {
				toolCallResponse("c1", ToolBrowseStockAnalysis, `{"statement_type":"income","period":"quarterly","data_type":"as-reported"}`),
				endTurn(),
			},
		},
	}

	orch := newTestOrchestrator(t, store, chat, &stubBrowser{loginErr: domain.ErrLoginFailed})

	job := domain.TickerJob{
		Ticker:      "ZM",
		ReportDate:  "2026-03-01",
		Timing:      domain.TimingAfterhours,
		CallbackURL: "http://127.0.0.1:0/unreachable",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NotPanics(t, func() { orch.Run(ctx, job) })

	assert.False(t, store.wasUploaded("financials-quarterly-income"))
}
