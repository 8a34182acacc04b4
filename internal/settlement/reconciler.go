package settlement

import (
	"errors"
	"sync"
	"time"
)

// Two-phase off-chain reconciliation. Bets taken on the fast path are
// recorded against a caller-supplied session id, finalized exactly once with
// the agreed payout and an attestation, and closed for bookkeeping once
// finalized. The economic outcome matches the authoritative ledger because
// payouts are computed by the same resolution math on both paths.

var (
	ErrZeroAmount             = errors.New("amount must be positive")
	ErrSessionAlreadyExists   = errors.New("session id already used")
	ErrSessionNotFound        = errors.New("session not found")
	ErrAlreadyFinalized       = errors.New("settlement already finalized")
	ErrSettlementNotFinalized = errors.New("settlement not finalized")
	ErrSessionClosed          = errors.New("session already closed")
	ErrAttestationRejected    = errors.New("attestation rejected")
)

// Record is one fast-path bet awaiting (or holding) its settlement
type Record struct {
	SessionID   string    `json:"session_id"`
	User        string    `json:"user"`
	MarketID    string    `json:"market_id"`
	Amount      uint64    `json:"amount"`
	Finalized   bool      `json:"finalized"`
	Payout      uint64    `json:"payout"`
	Attestation []byte    `json:"attestation,omitempty"`
	Closed      bool      `json:"closed"`
	CreatedAt   time.Time `json:"created_at"`
	FinalizedAt time.Time `json:"finalized_at,omitempty"`
}

// Store is the settlement-record repository. UserSessions returns the user's
// open (not closed) session ids in insertion order; Put with Closed set
// removes the session from that index.
type Store interface {
	Get(sessionID string) (*Record, bool)
	Put(r *Record) error
	UserSessions(user string) []string
}

// Verifier checks an attestation against the payout it claims. A nil
// verifier accepts everything; deployments gate finalization with a real
// policy (see the attest package).
type Verifier interface {
	Verify(attestation []byte, payout uint64, context []byte) bool
}

// Reconciler owns the record → finalize → close lifecycle
type Reconciler struct {
	mu       sync.Mutex
	store    Store
	verifier Verifier
}

// NewReconciler creates a reconciler. verifier may be nil.
func NewReconciler(store Store, verifier Verifier) *Reconciler {
	return &Reconciler{store: store, verifier: verifier}
}

// RecordPosition registers a fast-path bet under a fresh session id. The id
// must be globally unused; reuse fails with ErrSessionAlreadyExists.
func (r *Reconciler) RecordPosition(sessionID, user, marketID string, amount uint64) (*Record, error) {
	if amount == 0 {
		return nil, ErrZeroAmount
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.store.Get(sessionID); exists {
		return nil, ErrSessionAlreadyExists
	}

	rec := &Record{
		SessionID: sessionID,
		User:      user,
		MarketID:  marketID,
		Amount:    amount,
		CreatedAt: time.Now(),
	}
	if err := r.store.Put(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// FinalizeSettlement fixes the payout and attestation on a record, exactly
// once. If a verifier is configured the attestation must pass it; rejection
// leaves the record untouched.
func (r *Reconciler) FinalizeSettlement(sessionID string, payout uint64, attestation []byte) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.store.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if rec.Finalized {
		return nil, ErrAlreadyFinalized
	}

	if r.verifier != nil && !r.verifier.Verify(attestation, payout, Context(rec)) {
		return nil, ErrAttestationRejected
	}

	rec.Finalized = true
	rec.Payout = payout
	rec.Attestation = attestation
	rec.FinalizedAt = time.Now()

	if err := r.store.Put(rec); err != nil {
		rec.Finalized = false
		rec.Payout = 0
		rec.Attestation = nil
		rec.FinalizedAt = time.Time{}
		return nil, err
	}
	return rec, nil
}

// CloseSession marks a finalized record closed and drops it from the user's
// open-session index. Bookkeeping only; the funds effect was fixed by
// finalize.
func (r *Reconciler) CloseSession(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.store.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	if rec.Closed {
		return ErrSessionClosed
	}
	if !rec.Finalized {
		return ErrSettlementNotFinalized
	}

	rec.Closed = true
	if err := r.store.Put(rec); err != nil {
		rec.Closed = false
		return err
	}
	return nil
}

// GetSettlement returns a record by session id
func (r *Reconciler) GetSettlement(sessionID string) (*Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Get(sessionID)
}

// UserSessions returns the user's open session ids in insertion order.
// Finalized-but-open sessions stay listed; only closing removes one.
func (r *Reconciler) UserSessions(user string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.UserSessions(user)
}

// Context is the attestation context bound to a record: the facts the
// attestor vouches the payout for.
func Context(rec *Record) []byte {
	return []byte(rec.SessionID + "|" + rec.User + "|" + rec.MarketID)
}
