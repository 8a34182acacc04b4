package api

import (
	"encoding/json"
	"net/http"

	"betmarket-backend/internal/engine"
)

// OpenPositionRequest opens a new position or adds to an existing one
type OpenPositionRequest struct {
	MarketID string `json:"market_id"`
	User     string `json:"user"`
	Side     string `json:"side"`   // "LONG" or "SHORT"
	Amount   uint64 `json:"amount"` // collateral smallest unit
}

// handleOpenPosition handles POST /api/position
func (s *Server) handleOpenPosition(w http.ResponseWriter, r *http.Request) {
	var req OpenPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.MarketID == "" || req.User == "" {
		writeError(w, http.StatusBadRequest, "market_id and user are required")
		return
	}

	side := engine.Side(req.Side)
	if !side.Valid() {
		writeError(w, http.StatusBadRequest, "invalid side: must be 'LONG' or 'SHORT'")
		return
	}

	pos, err := s.ledger.OpenPosition(r.Context(), req.MarketID, req.User, side, req.Amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pos)
}

// PositionResponse is a position with its payout preview
type PositionResponse struct {
	Position      *engine.Position `json:"position"`
	PayoutPreview uint64           `json:"payout_preview"` // zero before resolution
}

// handleGetPosition handles GET /api/position/{marketID}/{user}
func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	marketID := r.PathValue("marketID")
	user := r.PathValue("user")
	if marketID == "" || user == "" {
		writeError(w, http.StatusBadRequest, "market id and user required")
		return
	}

	pos, ok := s.ledger.Position(marketID, user)
	if !ok {
		writeError(w, http.StatusNotFound, "no position for user in market")
		return
	}

	writeJSON(w, http.StatusOK, PositionResponse{
		Position:      pos,
		PayoutPreview: s.ledger.PreviewPayout(marketID, user),
	})
}

// ClaimRequest claims a resolved position's payout
type ClaimRequest struct {
	MarketID string `json:"market_id"`
	User     string `json:"user"`
}

// handleClaim handles POST /api/claim
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.MarketID == "" || req.User == "" {
		writeError(w, http.StatusBadRequest, "market_id and user are required")
		return
	}

	payout, err := s.ledger.Claim(r.Context(), req.MarketID, req.User)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": req.MarketID,
		"user":      req.User,
		"payout":    payout,
	})
}

// WithdrawRequest recovers a stake from a cancelled market
type WithdrawRequest struct {
	MarketID string `json:"market_id"`
	User     string `json:"user"`
}

// handleWithdraw handles POST /api/withdraw
func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.MarketID == "" || req.User == "" {
		writeError(w, http.StatusBadRequest, "market_id and user are required")
		return
	}

	refund, err := s.ledger.EmergencyWithdraw(r.Context(), req.MarketID, req.User)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": req.MarketID,
		"user":      req.User,
		"refund":    refund,
	})
}
