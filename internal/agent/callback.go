package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/statement-agent/internal/common"
	"github.com/ternarybob/statement-agent/internal/domain"
)

// CallbackPoster posts the terminal callback with a single retry on
// transport failure, using a 2-attempt / 5-second-sleep pattern.
type CallbackPoster struct {
	httpClient *http.Client
	bearer     string
	retryDelay time.Duration
	logger     arbor.ILogger
}

func NewCallbackPoster(cfg common.CallbackConfig, logger arbor.ILogger) *CallbackPoster {
	return &CallbackPoster{
		httpClient: &http.Client{Timeout: common.Duration(cfg.Timeout, 30 * time.Second)},
		bearer:     cfg.BearerToken,
		retryDelay: common.Duration(cfg.RetryDelay, 5 * time.Second),
		logger:     logger,
	}
}

// Post sends the callback payload to url, retrying once after
// RetryDelay on transport failure. Final failure is logged but never
// returned: retried once, then logged and swallowed.
func (p *CallbackPoster) Post(ctx context.Context, url string, payload domain.CallbackPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error().Err(err).Str("ticker", payload.Ticker).Msg("failed to marshal callback payload")
		return
	}

	for attempt := 0; attempt < 2; attempt++ {
		err := p.send(ctx, url, body)
		if err == nil {
			p.logger.Info().Str("ticker", payload.Ticker).Str("status", string(payload.Status)).Msg("callback delivered")
			return
		}

		p.logger.Warn().Err(err).Int("attempt", attempt+1).Str("ticker", payload.Ticker).Msg("callback attempt failed")
		if attempt == 0 {
			select {
			case <-time.After(p.retryDelay):
			case <-ctx.Done():
				p.logger.Error().Str("ticker", payload.Ticker).Msg("callback delivery abandoned: context cancelled")
				return
			}
		}
	}

	p.logger.Error().Str("ticker", payload.Ticker).Msg("callback delivery failed after retry; swallowing")
}

func (p *CallbackPoster) send(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+p.bearer)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: callback returned %d", domain.ErrTransport, resp.StatusCode)
	}
	return nil
}
