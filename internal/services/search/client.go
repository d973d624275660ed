// Package search implements a web-search corroboration client against
// a search-grounded chat API.
package search

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/statement-agent/internal/common"
	"github.com/ternarybob/statement-agent/internal/domain"
	"github.com/ternarybob/statement-agent/internal/interfaces"
)

// numericFormatSystemMessage pins the "fully written numbers" contract
// on every search call.
const numericFormatSystemMessage = `You are a financial-data search assistant. All numeric figures in your
answer must be rendered fully written (e.g. 394328000000), never abbreviated
with "B"/"M"/"K" suffixes.`

// Client implements interfaces.SearchClient over a chat-style
// search-grounded API (e.g. Perplexity's sonar models), rate limited
// and cache-consulting.
type Client struct {
	httpClient *http.Client
	cfg        common.SearchConfig
	limiter    *rate.Limiter
	cache      interfaces.ResponseCache
	logger     arbor.ILogger
}

func New(cfg common.SearchConfig, cache interfaces.ResponseCache, logger arbor.ILogger) *Client {
	rps := rate.Every(common.Duration(cfg.RateLimit, 0))
	return &Client{
		httpClient: &http.Client{Timeout: common.Duration(cfg.Timeout, 0)},
		cfg:        cfg,
		limiter:    rate.NewLimiter(rps, 1),
		cache:      cache,
		logger:     logger,
	}
}

type searchAPIRequest struct {
	Model    string              `json:"model"`
	Messages []searchAPIMessage  `json:"messages"`
}

type searchAPIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type searchAPIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

// Search issues a free-form textual query.
func (c *Client) Search(ctx context.Context, query string) (interfaces.SearchResult, error) {
	key := "search:" + digest([]byte(query))

	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			var result interfaces.SearchResult
			if err := json.Unmarshal([]byte(cached), &result); err == nil {
				c.logger.Debug().Str("key", key).Msg("search response served from cache")
				return result, nil
			}
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return interfaces.SearchResult{}, fmt.Errorf("%w: rate limiter: %v", domain.ErrTransport, err)
	}

	reqBody, err := json.Marshal(searchAPIRequest{
		Model: c.cfg.Model,
		Messages: []searchAPIMessage{
			{Role: "system", Content: numericFormatSystemMessage},
			{Role: "user", Content: query},
		},
	})
	if err != nil {
		return interfaces.SearchResult{}, fmt.Errorf("marshal search request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return interfaces.SearchResult{}, fmt.Errorf("build search request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return interfaces.SearchResult{}, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return interfaces.SearchResult{}, fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return interfaces.SearchResult{}, fmt.Errorf("%w: search API returned %d: %s", domain.ErrTransport, resp.StatusCode, string(body))
	}

	var apiResp searchAPIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return interfaces.SearchResult{}, fmt.Errorf("decode search response: %w", err)
	}

	result := interfaces.SearchResult{Citations: apiResp.Citations}
	if len(apiResp.Choices) > 0 {
		result.AnswerText = apiResp.Choices[0].Message.Content
	}

	if c.cache != nil {
		if encoded, err := json.Marshal(result); err == nil {
			_ = c.cache.Set(key, string(encoded))
		}
	}

	return result, nil
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
