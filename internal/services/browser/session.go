// Package browser implements a single persistent headless-browser
// session over chromedp. One Session is created per ticker run and
// torn down at completion or on any fatal error; it is never pooled or
// shared across tickers.
package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/statement-agent/internal/common"
	"github.com/ternarybob/statement-agent/internal/domain"
)

const loginURLPath = "/login/"

// Session is a long-lived headless-Chrome tab. Screenshot reuses the
// last-navigated state; only NavigateToFinancials is required first.
type Session struct {
	ctx        context.Context
	cancelTab  context.CancelFunc
	cancelAllc context.CancelFunc

	cfg     common.FinancialSiteConfig
	workDir string
	logger  arbor.ILogger

	loggedIn     bool
	lastScreenshot []byte
}

// New starts a fresh headless-Chrome allocator and tab scoped to one
// ticker's working directory. The browser is lazily navigated, not
// lazily launched: launching up front keeps the allocator/tab error
// surface in one place.
func New(ctx context.Context, cfg common.FinancialSiteConfig, workDir string, logger arbor.ILogger) (*Session, error) {
	allocCtx, cancelAllc := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.WindowSize(1920, 1080),
		)...,
	)

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(tabCtx, emulation.SetDeviceMetricsOverride(1920, 1080, 1, false)); err != nil {
		cancelTab()
		cancelAllc()
		return nil, fmt.Errorf("start browser tab: %w", err)
	}

	return &Session{
		ctx:        tabCtx,
		cancelTab:  cancelTab,
		cancelAllc: cancelAllc,
		cfg:        cfg,
		workDir:    workDir,
		logger:     logger,
	}, nil
}

// EnsureLoggedIn authenticates against the financial-data site: email
// field by id "email", password field by id "password", submit
// addressed by accessible name "Log In".
func (s *Session) EnsureLoggedIn(ctx context.Context) error {
	if s.loggedIn {
		return nil
	}

	loginURL := strings.TrimRight(s.cfg.BaseURL, "/") + loginURLPath

	var attemptErr error
	for attempt := 1; attempt <= 2; attempt++ {
		attemptErr = chromedp.Run(s.ctx,
			chromedp.Navigate(loginURL),
			chromedp.WaitVisible(`#email`, chromedp.ByID),
			chromedp.SendKeys(`#email`, s.cfg.Username, chromedp.ByID),
			chromedp.SendKeys(`#password`, s.cfg.Password, chromedp.ByID),
			chromedp.Click(`//button[normalize-space(text())="Log In" or @aria-label="Log In"]`, chromedp.BySearch),
			chromedp.Sleep(2*time.Second),
		)

		if attemptErr == nil {
			var currentURL string
			if err := chromedp.Run(s.ctx, chromedp.Location(&currentURL)); err == nil {
				if !strings.Contains(strings.ToLower(currentURL), "login") {
					s.loggedIn = true
					s.logger.Info().Str("ticker_work_dir", s.workDir).Msg("financial site login succeeded")
					return nil
				}
			}
		}

		s.logger.Warn().Int("attempt", attempt).Err(attemptErr).Msg("financial site login attempt failed")
	}

	debugPath := filepath.Join(s.workDir, "login_debug.png")
	var shot []byte
	if err := chromedp.Run(s.ctx, chromedp.FullScreenshot(&shot, 90)); err == nil {
		_ = os.WriteFile(debugPath, shot, 0o644)
		s.logger.Warn().Str("path", debugPath).Msg("saved login debug screenshot")
	}

	return fmt.Errorf("%w: %v", domain.ErrLoginFailed, attemptErr)
}

// NavigateToFinancials builds the statement URL deterministically and
// waits for the data table to render.
func (s *Session) NavigateToFinancials(ctx context.Context, ticker string, statement domain.StatementType, period domain.Period, dataType domain.DataType) error {
	if err := s.EnsureLoggedIn(ctx); err != nil {
		return err
	}

	url := buildFinancialsURL(s.cfg.BaseURL, ticker, statement, period, dataType)

	err := chromedp.Run(s.ctx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(`table`, chromedp.ByQuery),
		chromedp.Sleep(1*time.Second),
	)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrNavigationFailed, url, err)
	}
	return nil
}

func buildFinancialsURL(baseURL, ticker string, statement domain.StatementType, period domain.Period, dataType domain.DataType) string {
	base := strings.TrimRight(baseURL, "/") + "/stocks/" + strings.ToLower(ticker) + "/financials"

	pathSuffix := map[domain.StatementType]string{
		domain.StatementIncome:   "",
		domain.StatementBalance:  "/balance-sheet",
		domain.StatementCashflow: "/cash-flow-statement",
	}[statement]

	url := base + pathSuffix + "/"

	var params []string
	if period == domain.PeriodQuarterly {
		params = append(params, "p=quarterly")
	}
	if dataType == domain.DataTypeAsReported {
		params = append(params, "type=as-reported")
	}
	if len(params) > 0 {
		url += "?" + strings.Join(params, "&")
	}
	return url
}

// SelectRawUnits opens the units dropdown and selects "Raw". Silent if
// the dropdown is absent or already on Raw.
func (s *Session) SelectRawUnits(ctx context.Context) error {
	err := chromedp.Run(s.ctx,
		chromedp.Click(`button[title="Change number units"]`, chromedp.ByQuery),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.Click(`//button[contains(., "Raw")]`, chromedp.BySearch),
		chromedp.Sleep(500*time.Millisecond),
	)
	if err != nil {
		s.logger.Debug().Err(err).Msg("raw units toggle not applied, continuing")
	}
	return nil
}

// Screenshot captures the full page and caches the bytes on the
// session.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var shot []byte
	if err := chromedp.Run(s.ctx, chromedp.FullScreenshot(&shot, 90)); err != nil {
		return nil, fmt.Errorf("%w: screenshot: %v", domain.ErrNavigationFailed, err)
	}
	s.lastScreenshot = shot
	return shot, nil
}

// Close tears down the tab and allocator.
func (s *Session) Close() error {
	s.cancelTab()
	s.cancelAllc()
	return nil
}
