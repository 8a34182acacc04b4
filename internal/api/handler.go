package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"betmarket-backend/internal/config"
	"betmarket-backend/internal/engine"
	"betmarket-backend/internal/market"
	"betmarket-backend/internal/settlement"
)

// Server holds all dependencies for the HTTP server
type Server struct {
	cfg        *config.Config
	registry   *market.Registry
	ledger     *engine.Ledger
	reconciler *settlement.Reconciler
	wsHub      *Hub
}

// NewServer creates a new API server
func NewServer(
	cfg *config.Config,
	registry *market.Registry,
	ledger *engine.Ledger,
	reconciler *settlement.Reconciler,
) *Server {
	s := &Server{
		cfg:        cfg,
		registry:   registry,
		ledger:     ledger,
		reconciler: reconciler,
		wsHub:      NewHub(),
	}

	// Every ledger event goes out over the websocket hub.
	ledger.AddNotifier(engine.NotifierFunc(func(e engine.Event) {
		s.wsHub.Broadcast(Message{Type: e.Type, Data: e})
	}))

	return s
}

// RegisterRoutes registers all HTTP routes
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /api/health", s.handleHealth)

	// Market endpoints
	mux.HandleFunc("POST /api/market", s.handleCreateMarket)
	mux.HandleFunc("POST /api/markets", s.handleCreateMarkets)
	mux.HandleFunc("GET /api/markets", s.handleListMarkets)
	mux.HandleFunc("GET /api/market/{id}", s.handleGetMarket)
	mux.HandleFunc("GET /api/markets/pair/{pair}", s.handleMarketsByPair)
	mux.HandleFunc("POST /api/market/{id}/resolve", s.handleResolveMarket)
	mux.HandleFunc("POST /api/market/{id}/cancel", s.handleCancelMarket)
	mux.HandleFunc("POST /api/market/{id}/sweep", s.handleSweepRemainder)

	// Position endpoints
	mux.HandleFunc("POST /api/position", s.handleOpenPosition)
	mux.HandleFunc("GET /api/position/{marketID}/{user}", s.handleGetPosition)
	mux.HandleFunc("POST /api/claim", s.handleClaim)
	mux.HandleFunc("POST /api/withdraw", s.handleWithdraw)

	// Settlement reconciliation endpoints
	mux.HandleFunc("POST /api/settlement", s.handleRecordSettlement)
	mux.HandleFunc("POST /api/settlement/{id}/finalize", s.handleFinalizeSettlement)
	mux.HandleFunc("DELETE /api/settlement/{id}", s.handleCloseSession)
	mux.HandleFunc("GET /api/settlement/{id}", s.handleGetSettlement)
	mux.HandleFunc("GET /api/settlements/{user}", s.handleUserSessions)

	// WebSocket endpoint
	mux.HandleFunc("GET /ws", s.handleWebSocket)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	go s.wsHub.Run()

	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	handler := corsMiddleware(mux)

	addr := ":" + s.cfg.ServerPort
	log.Printf("Server starting on %s", addr)
	return http.ListenAndServe(addr, handler)
}

// handleHealth is the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps an engine/settlement error to its HTTP status. The
// error kind tells the caller whether to fix the input, re-check state, or
// retry later.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, market.ErrMarketNotFound),
		errors.Is(err, settlement.ErrSessionNotFound),
		errors.Is(err, engine.ErrNoPosition):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrZeroAmount),
		errors.Is(err, engine.ErrInvalidSide),
		errors.Is(err, settlement.ErrZeroAmount),
		errors.Is(err, market.ErrInvalidResolutionTime),
		errors.Is(err, market.ErrBatchMismatch):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, market.ErrNotOwner):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, engine.ErrSideMismatch),
		errors.Is(err, engine.ErrMarketNotActive),
		errors.Is(err, engine.ErrMarketNotCancelled),
		errors.Is(err, engine.ErrNotResolved),
		errors.Is(err, engine.ErrAlreadyClaimed),
		errors.Is(err, engine.ErrAlreadyWithdrawn),
		errors.Is(err, engine.ErrWinnersOutstanding),
		errors.Is(err, settlement.ErrSessionAlreadyExists),
		errors.Is(err, settlement.ErrAlreadyFinalized),
		errors.Is(err, settlement.ErrSettlementNotFinalized),
		errors.Is(err, settlement.ErrSessionClosed),
		errors.Is(err, settlement.ErrAttestationRejected):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
