package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ternarybob/statement-agent/internal/common"
	"github.com/ternarybob/statement-agent/internal/domain"
)

// setupRoutes registers the ingress and status routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/tickers", s.handleIngestTickers)
	mux.HandleFunc("/v1/ws", s.handleStatusStream)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleIngestTickers accepts POST /v1/tickers: a bearer-authenticated
// batch of ticker jobs. It validates the envelope at the boundary,
// before any orchestrator run starts, and dispatches each job to its
// own goroutine so the request never blocks on completion.
func (s *Server) handleIngestTickers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var envelope domain.RunEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		s.writeInputInvalid(w, "malformed JSON body: "+err.Error())
		return
	}

	if err := envelope.Validate(); err != nil {
		s.writeInputInvalid(w, err.Error())
		return
	}

	for i := range envelope.Tickers {
		job := envelope.Tickers[i]
		if job.CallbackURL == "" {
			job.CallbackURL = envelope.CallbackURL
		}
		s.app.Logger.Info().Str("ticker", job.Ticker).Msg("scheduling ticker run")

		// A fresh background context, not r.Context(): the run must
		// outlive this request, which returns 202 immediately.
		common.SafeGo(s.app.Logger, "ticker:"+job.Ticker, func() {
			s.app.Orchestrator.Run(context.Background(), job)
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"scheduled": len(envelope.Tickers),
	})
}

func (s *Server) authorized(r *http.Request) bool {
	token := s.app.Config.Server.IngressToken
	if token == "" {
		return true
	}
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	return strings.TrimPrefix(header, prefix) == token
}

func (s *Server) writeInputInvalid(w http.ResponseWriter, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   domain.ErrInputInvalid.Error(),
		"message": reason,
	})
}

