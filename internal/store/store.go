package store

import (
	"betmarket-backend/internal/engine"
	"betmarket-backend/internal/market"
	"betmarket-backend/internal/settlement"
)

// Store bundles the three repositories behind one handle so the engine
// wiring does not care whether it runs on memory or sqlite.
type Store interface {
	Markets() market.Store
	Positions() engine.PositionStore
	Settlements() settlement.Store
	Close() error
}

// Open returns the sqlite store when a path is configured, the in-memory
// store otherwise.
func Open(path string) (Store, error) {
	if path == "" {
		return NewMemory(), nil
	}
	return NewSQLite(path)
}
