package store

import (
	"sync"

	"betmarket-backend/internal/engine"
	"betmarket-backend/internal/market"
	"betmarket-backend/internal/settlement"
)

// Memory is the in-memory store backing tests and stateless deployments.
// It implements all three repositories over plain maps.
//
// Stored values are detached copies: Put clones its argument and every read
// returns a fresh clone, so callers follow the same get-mutate-put cycle as
// with the sqlite store and concurrent readers never observe a write in
// flight.
type Memory struct {
	markets     *memoryMarkets
	positions   *memoryPositions
	settlements *memorySettlements
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		markets: &memoryMarkets{
			byID:   make(map[string]*market.Market),
			byPair: make(map[string][]string),
		},
		positions: &memoryPositions{
			byMarket: make(map[string]map[string]*engine.Position),
			order:    make(map[string][]string),
		},
		settlements: &memorySettlements{
			records:  make(map[string]*settlement.Record),
			userOpen: make(map[string][]string),
		},
	}
}

// Markets returns the market repository
func (s *Memory) Markets() market.Store { return s.markets }

// Positions returns the position repository
func (s *Memory) Positions() engine.PositionStore { return s.positions }

// Settlements returns the settlement-record repository
func (s *Memory) Settlements() settlement.Store { return s.settlements }

// Close is a no-op for the in-memory store
func (s *Memory) Close() error { return nil }

func cloneMarket(m *market.Market) *market.Market {
	c := *m
	return &c
}

func clonePosition(p *engine.Position) *engine.Position {
	c := *p
	return &c
}

func cloneRecord(r *settlement.Record) *settlement.Record {
	c := *r
	return &c
}

type memoryMarkets struct {
	mu     sync.RWMutex
	byID   map[string]*market.Market
	order  []string
	byPair map[string][]string
}

func (s *memoryMarkets) Put(m *market.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[m.ID]; !exists {
		s.order = append(s.order, m.ID)
		s.byPair[m.Pair] = append(s.byPair[m.Pair], m.ID)
	}
	s.byID[m.ID] = cloneMarket(m)
	return nil
}

func (s *memoryMarkets) Get(id string) (*market.Market, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return cloneMarket(m), true
}

func (s *memoryMarkets) List() []*market.Market {
	s.mu.RLock()
	defer s.mu.RUnlock()

	markets := make([]*market.Market, 0, len(s.order))
	for _, id := range s.order {
		markets = append(markets, cloneMarket(s.byID[id]))
	}
	return markets
}

func (s *memoryMarkets) ListByPair(pair string) []*market.Market {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byPair[pair]
	markets := make([]*market.Market, 0, len(ids))
	for _, id := range ids {
		markets = append(markets, cloneMarket(s.byID[id]))
	}
	return markets
}

func (s *memoryMarkets) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

type memoryPositions struct {
	mu       sync.RWMutex
	byMarket map[string]map[string]*engine.Position
	order    map[string][]string // marketID -> users in first-contribution order
}

func (s *memoryPositions) Get(marketID, user string) (*engine.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users, ok := s.byMarket[marketID]
	if !ok {
		return nil, false
	}
	p, ok := users[user]
	if !ok {
		return nil, false
	}
	return clonePosition(p), true
}

func (s *memoryPositions) Put(p *engine.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, ok := s.byMarket[p.MarketID]
	if !ok {
		users = make(map[string]*engine.Position)
		s.byMarket[p.MarketID] = users
	}
	if _, exists := users[p.User]; !exists {
		s.order[p.MarketID] = append(s.order[p.MarketID], p.User)
	}
	users[p.User] = clonePosition(p)
	return nil
}

func (s *memoryPositions) ListByMarket(marketID string) []*engine.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := s.byMarket[marketID]
	positions := make([]*engine.Position, 0, len(users))
	for _, user := range s.order[marketID] {
		positions = append(positions, clonePosition(users[user]))
	}
	return positions
}

type memorySettlements struct {
	mu       sync.RWMutex
	records  map[string]*settlement.Record
	userOpen map[string][]string // user -> open session ids, insertion order
}

func (s *memorySettlements) Get(sessionID string) (*settlement.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[sessionID]
	if !ok {
		return nil, false
	}
	return cloneRecord(r), true
}

func (s *memorySettlements) Put(r *settlement.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[r.SessionID]; !exists {
		s.userOpen[r.User] = append(s.userOpen[r.User], r.SessionID)
	}
	s.records[r.SessionID] = cloneRecord(r)

	if r.Closed {
		open := s.userOpen[r.User]
		for i, id := range open {
			if id == r.SessionID {
				s.userOpen[r.User] = append(open[:i], open[i+1:]...)
				break
			}
		}
	}
	return nil
}

func (s *memorySettlements) UserSessions(user string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	open := s.userOpen[user]
	out := make([]string, len(open))
	copy(out, open)
	return out
}
