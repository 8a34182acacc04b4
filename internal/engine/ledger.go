package engine

import (
	"context"
	"sync"

	"betmarket-backend/internal/custody"
	"betmarket-backend/internal/market"
)

// Ledger is the market accounting engine: it owns pool bookkeeping, the
// resolution transition, and the claim/withdraw paths. All mutations on one
// market are serialized by a per-market mutex; unrelated markets proceed in
// parallel.
//
// External transfers bracket the bookkeeping so no call partially applies:
// transfer-in must succeed before a position grows, and transfer-out is the
// terminal step of claim/withdraw — the claimed/withdrawn flag flips only
// after the transfer confirms, so a failed transfer leaves the ledger exactly
// as it was and the call can be retried.
type Ledger struct {
	markets   market.Store
	positions PositionStore
	transfers custody.Transferor

	notifyMu  sync.RWMutex
	notifiers []Notifier

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewLedger creates a ledger over the given stores and transfer capability
func NewLedger(markets market.Store, positions PositionStore, transfers custody.Transferor) *Ledger {
	return &Ledger{
		markets:   markets,
		positions: positions,
		transfers: transfers,
		locks:     make(map[string]*sync.Mutex),
	}
}

// AddNotifier registers an observer for ledger events
func (l *Ledger) AddNotifier(n Notifier) {
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()
	l.notifiers = append(l.notifiers, n)
}

func (l *Ledger) publish(e Event) {
	l.notifyMu.RLock()
	defer l.notifyMu.RUnlock()
	for _, n := range l.notifiers {
		n.Notify(e)
	}
}

// lockMarket returns the mutex serializing mutations on one market
func (l *Ledger) lockMarket(id string) *sync.Mutex {
	l.locksMu.Lock()
	defer l.locksMu.Unlock()
	mu, ok := l.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		l.locks[id] = mu
	}
	return mu
}

// OpenPosition opens a position or adds to an existing one. The side is
// fixed by the first contribution; a call with the opposite side fails with
// ErrSideMismatch and changes nothing. Collateral is pulled in before any
// bookkeeping updates.
func (l *Ledger) OpenPosition(ctx context.Context, marketID, user string, side Side, amount uint64) (*Position, error) {
	if amount == 0 {
		return nil, ErrZeroAmount
	}
	if !side.Valid() {
		return nil, ErrInvalidSide
	}

	mu := l.lockMarket(marketID)
	mu.Lock()
	defer mu.Unlock()

	m, ok := l.markets.Get(marketID)
	if !ok {
		return nil, market.ErrMarketNotFound
	}
	if m.State != market.StateActive {
		return nil, ErrMarketNotActive
	}

	pos, exists := l.positions.Get(marketID, user)
	if exists && pos.Side != side {
		return nil, ErrSideMismatch
	}
	if !exists {
		pos = &Position{MarketID: marketID, User: user, Side: side}
	}

	if err := l.transfers.TransferIn(ctx, user, amount); err != nil {
		return nil, err
	}

	pos.Amount += amount
	if side == SideLong {
		m.TotalLong += amount
	} else {
		m.TotalShort += amount
	}
	m.TotalCollateral += amount

	if err := l.persist(m, pos); err != nil {
		// Undo the bookkeeping and return the collateral.
		pos.Amount -= amount
		if side == SideLong {
			m.TotalLong -= amount
		} else {
			m.TotalShort -= amount
		}
		m.TotalCollateral -= amount
		l.transfers.TransferOut(ctx, user, amount)
		return nil, err
	}

	l.publish(Event{
		Type:            EventPositionChanged,
		MarketID:        marketID,
		User:            user,
		Side:            side,
		Amount:          amount,
		NewTotalAmount:  pos.Amount,
		TotalCollateral: m.TotalCollateral,
	})

	return pos, nil
}

// Resolve fixes the final price and transitions the market to Resolved. It
// moves no funds; it only fixes the facts Claim consumes. Concurrent resolve
// attempts have exactly one winner; the rest observe ErrMarketNotActive.
func (l *Ledger) Resolve(marketID string, finalPrice int64) (*market.Market, error) {
	mu := l.lockMarket(marketID)
	mu.Lock()
	defer mu.Unlock()

	m, ok := l.markets.Get(marketID)
	if !ok {
		return nil, market.ErrMarketNotFound
	}
	if m.State != market.StateActive {
		return nil, ErrMarketNotActive
	}

	m.State = market.StateResolved
	m.Resolved = true
	m.FinalPrice = finalPrice

	if err := l.markets.Put(m); err != nil {
		m.State = market.StateActive
		m.Resolved = false
		m.FinalPrice = 0
		return nil, err
	}

	l.publish(Event{
		Type:       EventMarketResolved,
		MarketID:   marketID,
		FinalPrice: finalPrice,
		LongWins:   m.LongWins(),
	})

	return m, nil
}

// Cancel transitions an Active market to Cancelled. It moves no funds;
// contributors recover their stakes through EmergencyWithdraw.
func (l *Ledger) Cancel(marketID string) (*market.Market, error) {
	mu := l.lockMarket(marketID)
	mu.Lock()
	defer mu.Unlock()

	m, ok := l.markets.Get(marketID)
	if !ok {
		return nil, market.ErrMarketNotFound
	}
	if m.State != market.StateActive {
		return nil, ErrMarketNotActive
	}

	m.State = market.StateCancelled
	if err := l.markets.Put(m); err != nil {
		m.State = market.StateActive
		return nil, err
	}

	l.publish(Event{Type: EventMarketCancelled, MarketID: marketID})

	return m, nil
}

// EmergencyWithdraw returns a user's full contributed amount on a cancelled
// market, exactly once. The transfer-out is the terminal step: the withdrawn
// flag flips only after it confirms.
func (l *Ledger) EmergencyWithdraw(ctx context.Context, marketID, user string) (uint64, error) {
	mu := l.lockMarket(marketID)
	mu.Lock()
	defer mu.Unlock()

	m, ok := l.markets.Get(marketID)
	if !ok {
		return 0, market.ErrMarketNotFound
	}
	if m.State != market.StateCancelled {
		return 0, ErrMarketNotCancelled
	}

	pos, ok := l.positions.Get(marketID, user)
	if !ok {
		return 0, ErrNoPosition
	}
	// Withdraw zeroes the amount, so the withdrawn check must come first for a
	// repeat call to report the right error.
	if pos.Withdrawn {
		return 0, ErrAlreadyWithdrawn
	}
	if pos.Amount == 0 {
		return 0, ErrNoPosition
	}

	refund := pos.Amount
	if err := l.transfers.TransferOut(ctx, user, refund); err != nil {
		return 0, err
	}

	pos.Amount = 0
	pos.Withdrawn = true
	if pos.Side == SideLong {
		m.TotalLong -= refund
	} else {
		m.TotalShort -= refund
	}
	m.TotalCollateral -= refund

	if err := l.persist(m, pos); err != nil {
		return 0, err
	}

	l.publish(Event{
		Type:     EventWithdrawn,
		MarketID: marketID,
		User:     user,
		Amount:   refund,
	})

	return refund, nil
}

// Claim pays a position its resolution payout, exactly once. Losing
// positions claim successfully with payout 0 and no transfer, so the API is
// uniform for both sides; the claimed flag still flips, making a second call
// fail either way.
func (l *Ledger) Claim(ctx context.Context, marketID, user string) (uint64, error) {
	mu := l.lockMarket(marketID)
	mu.Lock()
	defer mu.Unlock()

	m, ok := l.markets.Get(marketID)
	if !ok {
		return 0, market.ErrMarketNotFound
	}
	if m.State != market.StateResolved {
		return 0, ErrNotResolved
	}

	pos, ok := l.positions.Get(marketID, user)
	if !ok || pos.Amount == 0 {
		return 0, ErrNoPosition
	}
	if pos.Claimed {
		return 0, ErrAlreadyClaimed
	}

	payout := PayoutFor(m, pos)
	if payout > 0 {
		if err := l.transfers.TransferOut(ctx, user, payout); err != nil {
			return 0, err
		}
	}

	pos.Claimed = true
	m.PaidOut += payout

	if err := l.persist(m, pos); err != nil {
		return 0, err
	}

	l.publish(Event{
		Type:     EventClaimed,
		MarketID: marketID,
		User:     user,
		Side:     pos.Side,
		Payout:   payout,
	})

	return payout, nil
}

// PreviewPayout computes the payout a user's position would claim, without
// mutating anything. Zero before resolution.
func (l *Ledger) PreviewPayout(marketID, user string) uint64 {
	m, ok := l.markets.Get(marketID)
	if !ok {
		return 0
	}
	pos, ok := l.positions.Get(marketID, user)
	if !ok {
		return 0
	}
	return PayoutFor(m, pos)
}

// Position returns a user's position in a market
func (l *Ledger) Position(marketID, user string) (*Position, bool) {
	return l.positions.Get(marketID, user)
}

// Positions returns all positions in a market
func (l *Ledger) Positions(marketID string) []*Position {
	return l.positions.ListByMarket(marketID)
}

// Remainder is the undistributed pool balance of a resolved market: the
// synthetic stake plus floor-rounding dust, less everything already paid or
// swept.
func (l *Ledger) Remainder(marketID string) (uint64, error) {
	m, ok := l.markets.Get(marketID)
	if !ok {
		return 0, market.ErrMarketNotFound
	}
	if m.State != market.StateResolved {
		return 0, ErrNotResolved
	}
	return m.Pool() - m.PaidOut, nil
}

// SweepRemainder transfers the undistributed remainder to the operator
// account. Permitted only after every winning real position has claimed, so
// a sweep can never strand a winner. Idempotent: a second sweep moves zero.
func (l *Ledger) SweepRemainder(ctx context.Context, marketID, operator string) (uint64, error) {
	mu := l.lockMarket(marketID)
	mu.Lock()
	defer mu.Unlock()

	m, ok := l.markets.Get(marketID)
	if !ok {
		return 0, market.ErrMarketNotFound
	}
	if m.State != market.StateResolved {
		return 0, ErrNotResolved
	}

	winner := WinningSide(m, m.FinalPrice)
	for _, pos := range l.positions.ListByMarket(marketID) {
		if pos.Side == winner && pos.Amount > 0 && !pos.Claimed {
			return 0, ErrWinnersOutstanding
		}
	}

	remainder := m.Pool() - m.PaidOut
	if remainder == 0 {
		return 0, nil
	}

	if err := l.transfers.TransferOut(ctx, operator, remainder); err != nil {
		return 0, err
	}

	m.PaidOut += remainder
	if err := l.markets.Put(m); err != nil {
		return 0, err
	}

	return remainder, nil
}

// persist writes the market and position back to their stores
func (l *Ledger) persist(m *market.Market, pos *Position) error {
	if err := l.positions.Put(pos); err != nil {
		return err
	}
	return l.markets.Put(m)
}
