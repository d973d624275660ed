// Package vision implements a multimodal extraction client over
// Gemini. The web-search corroboration client lives in package search.
package vision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/ternarybob/statement-agent/internal/common"
	"github.com/ternarybob/statement-agent/internal/domain"
	"github.com/ternarybob/statement-agent/internal/interfaces"
)

// extractionInstruction is fixed at the infrastructure level: never
// agent-supplied.
const extractionInstruction = `You are extracting a financial statement table from a screenshot.
Return ONLY a markdown table containing exactly the leftmost row-label column
plus the three newest data columns. Preserve column headers exactly as shown.
Preserve numeric formatting: use parentheses for negative numbers and a dash
for blank cells. Never round or abbreviate a number (no "B"/"M"/"K" suffixes;
write the value fully, e.g. 394328000000, not 394.3B). Do not include any
prose before or after the table.`

// Client implements interfaces.VisionExtractor over Gemini, rate
// limited and cache-consulting.
type Client struct {
	genaiClient *genai.Client
	model       string
	maxTokens   int32
	limiter     *rate.Limiter
	cache       interfaces.ResponseCache
	logger      arbor.ILogger
}

// New builds a vision client against the Gemini API.
func New(ctx context.Context, cfg common.VisionConfig, cache interfaces.ResponseCache, logger arbor.ILogger) (*Client, error) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	rps := rate.Every(common.Duration(cfg.RateLimit, 0))

	return &Client{
		genaiClient: c,
		model:       cfg.Model,
		maxTokens:   int32(cfg.MaxOutputTokens),
		limiter:     rate.NewLimiter(rps, 1),
		cache:       cache,
		logger:      logger,
	}, nil
}

// Extract sends screenshot bytes to the vision model and returns raw
// markdown text. Identical screenshot bytes within one run hit the
// cache instead of the API.
func (c *Client) Extract(ctx context.Context, screenshot []byte) (string, error) {
	key := "vision:" + digest(screenshot)

	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			c.logger.Debug().Str("key", key).Msg("vision extraction served from cache")
			return cached, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limiter: %v", domain.ErrExtractionFailed, err)
	}

	resp, err := c.genaiClient.Models.GenerateContent(ctx, c.model, []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{InlineData: &genai.Blob{MIMEType: "image/png", Data: screenshot}},
				{Text: extractionInstruction},
			},
		},
	}, &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(0)),
		MaxOutputTokens: c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err)
	}

	markdown := extractText(resp)
	if !containsTable(markdown) {
		return "", domain.ErrExtractionMalformed
	}

	if c.cache != nil {
		_ = c.cache.Set(key, markdown)
	}

	return markdown, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// containsTable parses markdown with goldmark and reports whether the
// document contains at least one table node: a prompt-only extraction
// contract has no safeguard against malformed output otherwise.
func containsTable(markdown string) bool {
	if strings.TrimSpace(markdown) == "" {
		return false
	}
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	reader := text.NewReader([]byte(markdown))
	doc := md.Parser().Parse(reader)

	found := false
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && n.Kind() == extast.KindTable {
			found = true
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	if found {
		return true
	}
	// Belt-and-suspenders fallback for near-miss table syntax the
	// extension's strict parser rejects but is still unambiguously a
	// pipe table, matching what the fixed prompt asks the model to
	// produce.
	return looksLikePipeTable(markdown)
}

func looksLikePipeTable(markdown string) bool {
	lines := strings.Split(markdown, "\n")
	for i := 0; i < len(lines)-1; i++ {
		if strings.Contains(lines[i], "|") && isSeparatorLine(lines[i+1]) {
			return true
		}
	}
	return false
}

func isSeparatorLine(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	for _, ch := range line {
		if ch != '|' && ch != '-' && ch != ':' && ch != ' ' {
			return false
		}
	}
	return strings.Contains(line, "-")
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (c *Client) Close() error {
	return nil
}
