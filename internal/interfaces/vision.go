package interfaces

import "context"

// SearchResult is the web-search client's response shape.
type SearchResult struct {
	AnswerText string
	Citations  []string
}

// VisionExtractor sends a screenshot to a multimodal model with a
// fixed, infrastructure-level extraction instruction and returns raw
// markdown text. The prompt is never agent-supplied.
type VisionExtractor interface {
	// Extract returns the markdown table for screenshot bytes. Malformed
	// output (no parseable table) is surfaced as ErrExtractionMalformed;
	// upstream API failure as ErrExtractionFailed. Both are non-fatal:
	// callers return them to the model as structured tool errors.
	Extract(ctx context.Context, screenshot []byte) (string, error)

	// Close releases the underlying model client at run end.
	Close() error
}

// SearchClient issues a free-form query to a search-grounded chat API
// configured for financial-data grounding.
type SearchClient interface {
	Search(ctx context.Context, query string) (SearchResult, error)
}
