package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/statement-agent/internal/app"
	"github.com/ternarybob/statement-agent/internal/common"
)

func newTestServer(t *testing.T, ingressToken string) *Server {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Server.IngressToken = ingressToken
	cfg.Agent.WorkDir = t.TempDir()
	cfg.Claude.APIKey = "test-key"
	cfg.Claude.Timeout = "30s"

	application, err := app.New(cfg, common.GetLogger())
	require.NoError(t, err)

	return New(application)
}

func postTickers(s *Server, token string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/tickers", bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handleIngestTickers(rec, req)
	return rec
}

func TestHandleIngestTickers_RejectsMissingToken(t *testing.T) {
	s := newTestServer(t, "secret")
	rec := postTickers(s, "", []byte(`{}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleIngestTickers_RejectsMalformedJSON(t *testing.T) {
	s := newTestServer(t, "")
	rec := postTickers(s, "", []byte(`not json`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleIngestTickers_RejectsEmptyTickerList(t *testing.T) {
	s := newTestServer(t, "")
	body, _ := json.Marshal(map[string]interface{}{
		"tickers":      []interface{}{},
		"callback_url": "http://example.com/callback",
	})
	rec := postTickers(s, "", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleIngestTickers_AcceptsValidEnvelope(t *testing.T) {
	s := newTestServer(t, "secret")
	body, _ := json.Marshal(map[string]interface{}{
		"tickers": []map[string]string{
			{"ticker": "ZM", "report_date": "2026-03-01", "timing": "afterhours"},
			{"ticker": "NFLX", "report_date": "2026-03-01", "timing": "premarket"},
		},
		"callback_url": "http://example.com/callback",
	})
	rec := postTickers(s, "secret", body)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp["scheduled"])
}

func TestHandleIngestTickers_RejectsWrongMethod(t *testing.T) {
	s := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/v1/tickers", nil)
	rec := httptest.NewRecorder()
	s.handleIngestTickers(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
