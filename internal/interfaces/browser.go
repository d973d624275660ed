package interfaces

import (
	"context"

	"github.com/ternarybob/statement-agent/internal/domain"
)

// BrowserSession is a long-lived headless-browser wrapper persisting
// across every tool call of a single ticker run. Owned exclusively by
// one agent context; never shared across tickers.
type BrowserSession interface {
	// EnsureLoggedIn navigates to the login URL and authenticates if
	// not already. Retries twice; on second failure captures a debug
	// screenshot and returns ErrLoginFailed.
	EnsureLoggedIn(ctx context.Context) error

	// NavigateToFinancials builds the statement URL deterministically
	// and waits for the data table to render.
	NavigateToFinancials(ctx context.Context, ticker string, statement domain.StatementType, period domain.Period, dataType domain.DataType) error

	// SelectRawUnits opens the units dropdown and selects "Raw".
	// Silent if units are already raw.
	SelectRawUnits(ctx context.Context) error

	// Screenshot captures the full page and caches the bytes on the
	// session; only NavigateToFinancials is required beforehand.
	Screenshot(ctx context.Context) ([]byte, error)

	// Close tears down the underlying browser process. Called by the
	// orchestrator at ticker completion and on any fatal error.
	Close() error
}
