// Package app wires together the long-lived, process-wide components:
// configuration, logger, object store, chat model, and the orchestrator
// that spins up a fresh browser/vision/search/cache stack per ticker.
package app

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/statement-agent/internal/agent"
	"github.com/ternarybob/statement-agent/internal/common"
	"github.com/ternarybob/statement-agent/internal/domain"
	"github.com/ternarybob/statement-agent/internal/interfaces"
	"github.com/ternarybob/statement-agent/internal/services/llm"
	"github.com/ternarybob/statement-agent/internal/services/objectstore"
)

// App holds every component the HTTP server needs to accept a ticker
// batch and fan it out to the orchestrator.
type App struct {
	Config       *common.Config
	Logger       arbor.ILogger
	Orchestrator *agent.Orchestrator
	Status       *StatusHub
	chat         interfaces.ChatService
}

// New constructs the process-wide App. The object store and chat
// service are shared across tickers (they hold no per-run state); the
// browser, vision, and search clients are not — the orchestrator builds
// those fresh per ticker.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	store := objectstore.New(config.ObjectStore, logger)

	chat, err := llm.NewClaudeService(&config.Claude, logger)
	if err != nil {
		return nil, err
	}

	status := NewStatusHub(logger)

	orch := agent.NewOrchestrator(config, store, chat, status.Publish, logger)

	return &App{
		Config:       config,
		Logger:       logger,
		Orchestrator: orch,
		Status:       status,
		chat:         chat,
	}, nil
}

// Close releases process-wide resources. Per-ticker resources (browser,
// cache, vision/search clients) are already closed by the orchestrator
// at the end of each run.
func (a *App) Close() error {
	return a.chat.Close()
}

// compile-time check: Orchestrator.Run's progress callback shape.
var _ func(domain.ProgressEvent) = (*StatusHub)(nil).Publish
