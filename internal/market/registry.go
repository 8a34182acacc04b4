package market

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"betmarket-backend/internal/custody"
	"betmarket-backend/internal/oracle"
)

// Registry creates and indexes markets. It owns the price-source reference
// used for probability estimation and automatic resolution, and seeds each
// new market's synthetic liquidity from the configured house budget.
//
// The synthetic stake is real collateral, not an accounting fiction: creation
// transfers the budget from the house account into the pool, so a winner's
// claim on synthetic losing stake is always covered.
type Registry struct {
	mu     sync.RWMutex
	owner  string
	store  Store
	prices oracle.PriceSource
	funder custody.Transferor
	house  string // account the synthetic budget is drawn from
	budget uint64 // synthetic liquidity budget per market
}

// NewRegistry creates a registry. owner is the only identity allowed to swap
// the price source. budget is the per-market synthetic liquidity budget,
// drawn from the house account through funder on every creation; zero
// disables synthetic seeding.
func NewRegistry(owner string, store Store, prices oracle.PriceSource, funder custody.Transferor, house string, budget uint64) *Registry {
	return &Registry{
		owner:  owner,
		store:  store,
		prices: prices,
		funder: funder,
		house:  house,
		budget: budget,
	}
}

// CreateMarket allocates a new Active market for the pair with zeroed totals,
// seeds its synthetic liquidity, and indexes it. resolutionTime must be
// strictly in the future. Creation fails if the house cannot cover the
// synthetic budget.
func (r *Registry) CreateMarket(ctx context.Context, pair, collateral string, targetPrice int64, resolutionTime time.Time) (*Market, error) {
	now := time.Now()
	if !resolutionTime.After(now) {
		return nil, ErrInvalidResolutionTime
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.fundSynthetic(ctx, 1); err != nil {
		return nil, err
	}

	m := r.newMarket(ctx, pair, collateral, targetPrice, resolutionTime, now)
	if err := r.store.Put(m); err != nil {
		r.refundSynthetic(ctx, 1)
		return nil, err
	}
	return m, nil
}

// CreateMarkets creates one market per pair, all sharing the same collateral
// and resolution time. The batch is atomic: if any element is invalid nothing
// is created. Identifiers are returned in input order.
func (r *Registry) CreateMarkets(ctx context.Context, pairs []string, collateral string, targetPrices []int64, resolutionTime time.Time) ([]*Market, error) {
	if len(pairs) != len(targetPrices) {
		return nil, ErrBatchMismatch
	}
	now := time.Now()
	if !resolutionTime.After(now) {
		return nil, ErrInvalidResolutionTime
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.fundSynthetic(ctx, uint64(len(pairs))); err != nil {
		return nil, err
	}

	markets := make([]*Market, 0, len(pairs))
	for i, pair := range pairs {
		markets = append(markets, r.newMarket(ctx, pair, collateral, targetPrices[i], resolutionTime, now))
	}
	for _, m := range markets {
		if err := r.store.Put(m); err != nil {
			r.refundSynthetic(ctx, uint64(len(pairs)))
			return nil, err
		}
	}
	return markets, nil
}

// fundSynthetic moves n markets' worth of house budget into the pool
func (r *Registry) fundSynthetic(ctx context.Context, n uint64) error {
	if r.budget == 0 || r.funder == nil {
		return nil
	}
	return r.funder.TransferIn(ctx, r.house, r.budget*n)
}

// refundSynthetic returns n markets' worth of budget to the house
func (r *Registry) refundSynthetic(ctx context.Context, n uint64) {
	if r.budget == 0 || r.funder == nil {
		return
	}
	if err := r.funder.TransferOut(ctx, r.house, r.budget*n); err != nil {
		log.Printf("Failed to refund synthetic budget to %s: %v", r.house, err)
	}
}

// newMarket builds the market and its synthetic seed. Must hold r.mu.
func (r *Registry) newMarket(ctx context.Context, pair, collateral string, targetPrice int64, resolutionTime, now time.Time) *Market {
	p := 0.5
	if r.budget > 0 && r.prices != nil {
		quote, err := r.prices.CurrentPrice(ctx, pair)
		if err != nil {
			log.Printf("Price unavailable for %s, seeding liquidity at even odds: %v", pair, err)
		} else {
			p = EstimateProbabilityLongWins(quote.Price, targetPrice, int64(resolutionTime.Sub(now).Seconds()))
		}
	}

	return &Market{
		ID:             uuid.New().String(),
		Pair:           pair,
		Collateral:     collateral,
		TargetPrice:    targetPrice,
		ResolutionTime: resolutionTime,
		State:          StateActive,
		Synthetic:      SizeLiquidity(r.budget, p),
		CreatedAt:      now,
	}
}

// SetOracle replaces the price source. Restricted to the registry owner.
func (r *Registry) SetOracle(caller string, prices oracle.PriceSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.owner {
		return ErrNotOwner
	}
	r.prices = prices
	return nil
}

// Oracle returns the current price source.
func (r *Registry) Oracle() oracle.PriceSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.prices
}

// Owner returns the registry owner identity.
func (r *Registry) Owner() string {
	return r.owner
}

// Get retrieves a market by ID
func (r *Registry) Get(id string) (*Market, bool) {
	return r.store.Get(id)
}

// List returns all markets in creation order
func (r *Registry) List() []*Market {
	return r.store.List()
}

// ListByPair returns the pair's markets in creation order. A pair may have
// many concurrent markets with different targets and resolution times.
func (r *Registry) ListByPair(pair string) []*Market {
	return r.store.ListByPair(pair)
}

// Count returns the number of markets ever created
func (r *Registry) Count() int {
	return r.store.Count()
}
