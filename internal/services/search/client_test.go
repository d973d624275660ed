package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/statement-agent/internal/common"
)

func TestClient_Search_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Revenue was 1234000000."}}],"citations":["https://example.com"]}`))
	}))
	defer srv.Close()

	c := New(common.SearchConfig{BaseURL: srv.URL, APIKey: "test-key", Model: "sonar", RateLimit: "1ms"}, nil, common.GetLogger())

	result, err := c.Search(context.Background(), "What was ZM revenue in Q1 2026?")
	require.NoError(t, err)
	assert.Equal(t, "Revenue was 1234000000.", result.AnswerText)
	assert.Equal(t, []string{"https://example.com"}, result.Citations)
}
