package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"betmarket-backend/internal/market"
	"betmarket-backend/internal/oracle"
)

// Watcher automatically resolves markets once their resolution time has
// passed, using the registry's price source. A market is only resolved from
// a quote inside the freshness window; stale quotes are skipped and retried
// on the next tick. The Active-state guard in Resolve makes the watcher safe
// to run alongside manual resolution.
type Watcher struct {
	ledger    *Ledger
	markets   market.Store
	prices    oracle.PriceSource
	freshness time.Duration
	interval  time.Duration
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewWatcher creates a lifecycle watcher
func NewWatcher(ledger *Ledger, markets market.Store, prices oracle.PriceSource, interval, freshness time.Duration) *Watcher {
	return &Watcher{
		ledger:    ledger,
		markets:   markets,
		prices:    prices,
		freshness: freshness,
		interval:  interval,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the resolution goroutine
func (w *Watcher) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop stops the watcher
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.wg.Wait()
}

// run is the main loop that checks for markets to resolve
func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.ResolveDue(ctx)
		}
	}
}

// ResolveDue resolves every Active market whose resolution time has passed,
// provided a fresh enough quote is available for its pair.
func (w *Watcher) ResolveDue(ctx context.Context) {
	now := time.Now()

	for _, m := range w.markets.List() {
		if m.State != market.StateActive || now.Before(m.ResolutionTime) {
			continue
		}

		quote, err := oracle.Fresh(ctx, w.prices, m.Pair, w.freshness)
		if err != nil {
			log.Printf("Skipping resolution of %s (%s): %v", m.ID, m.Pair, err)
			continue
		}

		if _, err := w.ledger.Resolve(m.ID, quote.Price); err != nil {
			// Someone else won the resolution race.
			if !errors.Is(err, ErrMarketNotActive) {
				log.Printf("Failed to resolve market %s: %v", m.ID, err)
			}
			continue
		}
		log.Printf("Market %s auto-resolved at %d (target %d)", m.ID, quote.Price, m.TargetPrice)
	}
}
