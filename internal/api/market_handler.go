package api

import (
	"encoding/json"
	"net/http"
	"time"

	"betmarket-backend/internal/market"
)

// CreateMarketRequest is the request to create a new market
type CreateMarketRequest struct {
	Pair           string `json:"pair"`
	Collateral     string `json:"collateral,omitempty"`
	TargetPrice    int64  `json:"target_price"`    // 8-decimal fixed point
	ResolutionTime string `json:"resolution_time"` // RFC3339 format
}

// handleCreateMarket handles POST /api/market
func (s *Server) handleCreateMarket(w http.ResponseWriter, r *http.Request) {
	var req CreateMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Pair == "" {
		writeError(w, http.StatusBadRequest, "pair is required")
		return
	}
	if req.TargetPrice <= 0 {
		writeError(w, http.StatusBadRequest, "target_price must be positive")
		return
	}

	resolutionTime, err := time.Parse(time.RFC3339, req.ResolutionTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid resolution_time format, use RFC3339")
		return
	}

	collateral := req.Collateral
	if collateral == "" {
		collateral = s.cfg.CollateralToken
	}

	m, err := s.registry.CreateMarket(r.Context(), req.Pair, collateral, req.TargetPrice, resolutionTime)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, m.ToJSON())
}

// CreateMarketsRequest creates one market per pair, all sharing the same
// collateral and resolution time. Atomic: any invalid element fails the batch.
type CreateMarketsRequest struct {
	Pairs          []string `json:"pairs"`
	Collateral     string   `json:"collateral,omitempty"`
	TargetPrices   []int64  `json:"target_prices"`
	ResolutionTime string   `json:"resolution_time"` // RFC3339 format
}

// handleCreateMarkets handles POST /api/markets
func (s *Server) handleCreateMarkets(w http.ResponseWriter, r *http.Request) {
	var req CreateMarketsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.Pairs) == 0 {
		writeError(w, http.StatusBadRequest, "pairs is required")
		return
	}

	resolutionTime, err := time.Parse(time.RFC3339, req.ResolutionTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid resolution_time format, use RFC3339")
		return
	}

	collateral := req.Collateral
	if collateral == "" {
		collateral = s.cfg.CollateralToken
	}

	markets, err := s.registry.CreateMarkets(r.Context(), req.Pairs, collateral, req.TargetPrices, resolutionTime)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	result := make([]market.MarketJSON, 0, len(markets))
	for _, m := range markets {
		result = append(result, m.ToJSON())
	}
	writeJSON(w, http.StatusCreated, result)
}

// handleListMarkets handles GET /api/markets
func (s *Server) handleListMarkets(w http.ResponseWriter, r *http.Request) {
	markets := s.registry.List()

	result := make([]market.MarketJSON, 0, len(markets))
	for _, m := range markets {
		result = append(result, m.ToJSON())
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetMarket handles GET /api/market/{id}
func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	marketID := r.PathValue("id")
	if marketID == "" {
		writeError(w, http.StatusBadRequest, "market id required")
		return
	}

	m, ok := s.registry.Get(marketID)
	if !ok {
		writeError(w, http.StatusNotFound, "market not found")
		return
	}

	writeJSON(w, http.StatusOK, m.ToJSON())
}

// handleMarketsByPair handles GET /api/markets/pair/{pair}
func (s *Server) handleMarketsByPair(w http.ResponseWriter, r *http.Request) {
	pair := r.PathValue("pair")
	if pair == "" {
		writeError(w, http.StatusBadRequest, "pair required")
		return
	}

	markets := s.registry.ListByPair(pair)
	result := make([]market.MarketJSON, 0, len(markets))
	for _, m := range markets {
		result = append(result, m.ToJSON())
	}

	writeJSON(w, http.StatusOK, result)
}

// ResolveMarketRequest is the request to resolve a market at a final price
type ResolveMarketRequest struct {
	FinalPrice int64 `json:"final_price"` // 8-decimal fixed point
}

// handleResolveMarket handles POST /api/market/{id}/resolve
func (s *Server) handleResolveMarket(w http.ResponseWriter, r *http.Request) {
	marketID := r.PathValue("id")
	if marketID == "" {
		writeError(w, http.StatusBadRequest, "market id required")
		return
	}

	var req ResolveMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FinalPrice < 0 {
		writeError(w, http.StatusBadRequest, "final_price must be non-negative")
		return
	}

	m, err := s.ledger.Resolve(marketID, req.FinalPrice)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, m.ToJSON())
}

// handleCancelMarket handles POST /api/market/{id}/cancel
func (s *Server) handleCancelMarket(w http.ResponseWriter, r *http.Request) {
	marketID := r.PathValue("id")
	if marketID == "" {
		writeError(w, http.StatusBadRequest, "market id required")
		return
	}

	m, err := s.ledger.Cancel(marketID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, m.ToJSON())
}

// SweepRequest asks for a resolved market's unclaimed remainder
type SweepRequest struct {
	Caller string `json:"caller"`
}

// handleSweepRemainder handles POST /api/market/{id}/sweep. Owner only, and
// only once every winning position has claimed.
func (s *Server) handleSweepRemainder(w http.ResponseWriter, r *http.Request) {
	marketID := r.PathValue("id")
	if marketID == "" {
		writeError(w, http.StatusBadRequest, "market id required")
		return
	}

	var req SweepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Caller != s.registry.Owner() {
		writeEngineError(w, market.ErrNotOwner)
		return
	}

	swept, err := s.ledger.SweepRemainder(r.Context(), marketID, req.Caller)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": marketID,
		"swept":     swept,
	})
}
