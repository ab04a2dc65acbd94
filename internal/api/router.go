// Package api exposes the governance decision pipeline over HTTP: a single
// authenticated decision endpoint plus unauthenticated audit-trail queries
// for the operations dashboard.
package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/arbiterhq/gatehouse/internal/auth"
	"github.com/arbiterhq/gatehouse/internal/chread"
	"github.com/arbiterhq/gatehouse/internal/governor"
)

// Dependencies holds shared state injected into all HTTP handlers.
type Dependencies struct {
	Governor *governor.Service
	Auth     auth.Authenticator
	Reader   *chread.Reader // nil if ClickHouse unavailable
	Logger   *zap.Logger
}

// NewRouter builds the HTTP mux with all routes wired up.
func NewRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	// Decision endpoint (auth required via Bearer ghk_ token)
	mux.HandleFunc("POST /v1/decisions", deps.authMiddleware(deps.handleDecide))

	// Audit trail queries (no auth — dashboard auth added later)
	mux.HandleFunc("GET /api/gatehouse/decisions", deps.handleListEvents)
	mux.HandleFunc("GET /api/gatehouse/decisions/{decision_id}", deps.handleGetDecision)

	// Health check
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return corsMiddleware(requestLogging(mux, deps.Logger))
}
