package api

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
)

// RecordSettlementRequest registers a fast-path bet under a session id
type RecordSettlementRequest struct {
	SessionID string `json:"session_id"`
	User      string `json:"user"`
	MarketID  string `json:"market_id"`
	Amount    uint64 `json:"amount"`
}

// handleRecordSettlement handles POST /api/settlement
func (s *Server) handleRecordSettlement(w http.ResponseWriter, r *http.Request) {
	var req RecordSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.SessionID == "" || req.User == "" || req.MarketID == "" {
		writeError(w, http.StatusBadRequest, "session_id, user and market_id are required")
		return
	}

	rec, err := s.reconciler.RecordPosition(req.SessionID, req.User, req.MarketID, req.Amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

// FinalizeSettlementRequest fixes the payout and attestation on a session
type FinalizeSettlementRequest struct {
	Payout      uint64 `json:"payout"`
	Attestation string `json:"attestation"` // hex-encoded
}

// handleFinalizeSettlement handles POST /api/settlement/{id}/finalize
func (s *Server) handleFinalizeSettlement(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session id required")
		return
	}

	var req FinalizeSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	attestation, err := decodeHex(req.Attestation)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid attestation hex")
		return
	}

	rec, err := s.reconciler.FinalizeSettlement(sessionID, req.Payout, attestation)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// handleCloseSession handles DELETE /api/settlement/{id}
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session id required")
		return
	}

	if err := s.reconciler.CloseSession(sessionID); err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "closed",
		"session_id": sessionID,
	})
}

// handleGetSettlement handles GET /api/settlement/{id}
func (s *Server) handleGetSettlement(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session id required")
		return
	}

	rec, ok := s.reconciler.GetSettlement(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// handleUserSessions handles GET /api/settlements/{user}
func (s *Server) handleUserSessions(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")
	if user == "" {
		writeError(w, http.StatusBadRequest, "user required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":     user,
		"sessions": s.reconciler.UserSessions(user),
	})
}

// decodeHex decodes a hex string with optional 0x prefix
func decodeHex(s string) ([]byte, error) {
	if len(s) >= 2 && s[:2] == "0x" {
		s = s[2:]
	}
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}
