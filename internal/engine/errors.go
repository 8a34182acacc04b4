package engine

import "errors"

// Validation errors: rejected before any state mutation, safe to retry with
// corrected input.
var (
	ErrZeroAmount   = errors.New("amount must be positive")
	ErrInvalidSide  = errors.New("side must be LONG or SHORT")
	ErrSideMismatch = errors.New("position already holds the opposite side")
)

// State errors: the caller's assumed lifecycle stage is wrong; re-check state
// before retrying.
var (
	ErrMarketNotActive    = errors.New("market is not active")
	ErrMarketNotCancelled = errors.New("market is not cancelled")
	ErrNotResolved        = errors.New("market is not resolved")
	ErrAlreadyClaimed     = errors.New("position already claimed")
	ErrAlreadyWithdrawn   = errors.New("position already withdrawn")
	ErrNoPosition         = errors.New("no position for user in market")
	ErrWinnersOutstanding = errors.New("winning positions have not all claimed")
)
