package oracle

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrNoQuote    = errors.New("no quote available for pair")
	ErrStaleQuote = errors.New("quote is older than the freshness window")
)

// Quote is a single price observation for a trading pair. Price is a
// fixed-point integer with 8 implied decimal places.
type Quote struct {
	Pair  string    `json:"pair"`
	Price int64     `json:"price"`
	At    time.Time `json:"at"`
}

// PriceSource delivers current prices and streaming updates for trading
// pairs. Implementations may cache; callers that need bounded staleness wrap
// a source with Fresh.
type PriceSource interface {
	CurrentPrice(ctx context.Context, pair string) (Quote, error)
	Subscribe(pair string, fn func(Quote))
}

// Fresh returns the pair's current quote only if it is no older than maxAge.
func Fresh(ctx context.Context, src PriceSource, pair string, maxAge time.Duration) (Quote, error) {
	q, err := src.CurrentPrice(ctx, pair)
	if err != nil {
		return Quote{}, err
	}
	if maxAge > 0 && time.Since(q.At) > maxAge {
		return Quote{}, ErrStaleQuote
	}
	return q, nil
}

// Static is a fixed in-memory price source, used in tests and as a manual
// override when no feed is configured.
type Static struct {
	mu     sync.RWMutex
	quotes map[string]Quote
	subs   map[string][]func(Quote)
}

// NewStatic creates an empty static source
func NewStatic() *Static {
	return &Static{
		quotes: make(map[string]Quote),
		subs:   make(map[string][]func(Quote)),
	}
}

// Set records a quote for the pair and notifies subscribers
func (s *Static) Set(pair string, price int64) {
	q := Quote{Pair: pair, Price: price, At: time.Now()}

	s.mu.Lock()
	s.quotes[pair] = q
	subs := append([]func(Quote){}, s.subs[pair]...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(q)
	}
}

// CurrentPrice returns the last quote set for the pair
func (s *Static) CurrentPrice(_ context.Context, pair string) (Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quotes[pair]
	if !ok {
		return Quote{}, ErrNoQuote
	}
	return q, nil
}

// Subscribe registers a callback for subsequent quotes on the pair
func (s *Static) Subscribe(pair string, fn func(Quote)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[pair] = append(s.subs[pair], fn)
}
