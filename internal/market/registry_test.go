package market_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"betmarket-backend/internal/custody"
	"betmarket-backend/internal/market"
	"betmarket-backend/internal/oracle"
	"betmarket-backend/internal/store"
)

const targetPrice = 100_000_000 // 1.00000000

func newRegistry(t *testing.T, budget uint64) (*market.Registry, *oracle.Static, *custody.Custodian) {
	t.Helper()
	prices := oracle.NewStatic()
	st := store.NewMemory()
	custodian := custody.NewCustodian("tok", map[string]uint64{"house": 1_000_000})
	return market.NewRegistry("owner", st.Markets(), prices, custodian, "house", budget), prices, custodian
}

func TestCreateMarket_RejectsPastResolutionTime(t *testing.T) {
	r, _, _ := newRegistry(t, 0)

	_, err := r.CreateMarket(context.Background(), "EUR/USD", "tok", targetPrice, time.Now().Add(-time.Minute))
	assert.ErrorIs(t, err, market.ErrInvalidResolutionTime)
	assert.Zero(t, r.Count())

	_, err = r.CreateMarket(context.Background(), "EUR/USD", "tok", targetPrice, time.Now())
	assert.ErrorIs(t, err, market.ErrInvalidResolutionTime)
}

func TestCreateMarket_StartsActiveWithZeroTotals(t *testing.T) {
	r, _, _ := newRegistry(t, 0)

	m, err := r.CreateMarket(context.Background(), "EUR/USD", "tok", targetPrice, time.Now().Add(time.Hour))
	require.NoError(t, err)

	assert.NotEmpty(t, m.ID)
	assert.Equal(t, market.StateActive, m.State)
	assert.False(t, m.Resolved)
	assert.Zero(t, m.TotalLong)
	assert.Zero(t, m.TotalShort)
	assert.Zero(t, m.TotalCollateral)

	got, ok := r.Get(m.ID)
	require.True(t, ok)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, 1, r.Count())
}

func TestCreateMarket_SeedsSyntheticLiquidity(t *testing.T) {
	r, prices, _ := newRegistry(t, 1000)
	prices.Set("EUR/USD", targetPrice)

	m, err := r.CreateMarket(context.Background(), "EUR/USD", "tok", targetPrice, time.Now().Add(time.Hour))
	require.NoError(t, err)

	// current == target: even odds, even split.
	assert.Equal(t, uint64(1000), m.Synthetic.TotalAmount)
	assert.Equal(t, uint64(500), m.Synthetic.LongAmount)
	assert.Equal(t, uint64(500), m.Synthetic.ShortAmount)
	assert.InDelta(t, 0.5, m.Synthetic.ProbabilityLong, 1e-9)
}

func TestCreateMarket_NoQuoteFallsBackToEvenOdds(t *testing.T) {
	r, _, _ := newRegistry(t, 1000) // static source with no quote set

	m, err := r.CreateMarket(context.Background(), "EUR/USD", "tok", targetPrice, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, uint64(500), m.Synthetic.LongAmount)
	assert.Equal(t, uint64(500), m.Synthetic.ShortAmount)
}

func TestCreateMarket_FundsSyntheticFromHouse(t *testing.T) {
	r, _, custodian := newRegistry(t, 1000)

	_, err := r.CreateMarket(context.Background(), "EUR/USD", "tok", targetPrice, time.Now().Add(time.Hour))
	require.NoError(t, err)

	// The budget is real collateral moved into the pool, not a bookkeeping
	// entry: claims drawing on synthetic stake are covered.
	assert.Equal(t, uint64(1000), custodian.PoolBalance())
	assert.Equal(t, uint64(999_000), custodian.Balance("house"))

	markets, err := r.CreateMarkets(context.Background(), []string{"GBP/USD", "USD/JPY"}, "tok",
		[]int64{targetPrice, targetPrice}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, markets, 2)
	assert.Equal(t, uint64(3000), custodian.PoolBalance())
}

func TestCreateMarket_FailsWhenHouseCannotCoverBudget(t *testing.T) {
	prices := oracle.NewStatic()
	st := store.NewMemory()
	broke := custody.NewCustodian("tok", nil) // house has nothing
	r := market.NewRegistry("owner", st.Markets(), prices, broke, "house", 1000)

	_, err := r.CreateMarket(context.Background(), "EUR/USD", "tok", targetPrice, time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, custody.ErrInsufficientBalance)
	assert.Zero(t, r.Count())
	assert.Zero(t, broke.PoolBalance())
}

func TestCreateMarkets_AtomicBatch(t *testing.T) {
	r, _, custodian := newRegistry(t, 1000)
	resolutionTime := time.Now().Add(time.Hour)

	_, err := r.CreateMarkets(context.Background(), []string{"EUR/USD", "GBP/USD"}, "tok", []int64{targetPrice}, resolutionTime)
	assert.ErrorIs(t, err, market.ErrBatchMismatch)
	assert.Zero(t, r.Count())
	assert.Zero(t, custodian.PoolBalance())

	_, err = r.CreateMarkets(context.Background(), []string{"EUR/USD"}, "tok", []int64{targetPrice}, time.Now().Add(-time.Second))
	assert.ErrorIs(t, err, market.ErrInvalidResolutionTime)
	assert.Zero(t, r.Count())
	assert.Zero(t, custodian.PoolBalance())

	markets, err := r.CreateMarkets(context.Background(), []string{"EUR/USD", "GBP/USD", "EUR/USD"}, "tok",
		[]int64{targetPrice, targetPrice + 1, targetPrice + 2}, resolutionTime)
	require.NoError(t, err)
	require.Len(t, markets, 3)

	// Input order preserved.
	assert.Equal(t, "EUR/USD", markets[0].Pair)
	assert.Equal(t, "GBP/USD", markets[1].Pair)
	assert.Equal(t, int64(targetPrice+2), markets[2].TargetPrice)
	assert.Equal(t, 3, r.Count())
}

func TestListByPair_ManyConcurrentMarkets(t *testing.T) {
	r, _, _ := newRegistry(t, 0)
	resolutionTime := time.Now().Add(time.Hour)

	m1, err := r.CreateMarket(context.Background(), "EUR/USD", "tok", targetPrice, resolutionTime)
	require.NoError(t, err)
	_, err = r.CreateMarket(context.Background(), "GBP/USD", "tok", targetPrice, resolutionTime)
	require.NoError(t, err)
	m3, err := r.CreateMarket(context.Background(), "EUR/USD", "tok", targetPrice+5, resolutionTime.Add(time.Hour))
	require.NoError(t, err)

	eur := r.ListByPair("EUR/USD")
	require.Len(t, eur, 2)
	assert.Equal(t, m1.ID, eur[0].ID)
	assert.Equal(t, m3.ID, eur[1].ID)

	assert.Len(t, r.List(), 3)
	assert.Empty(t, r.ListByPair("USD/JPY"))
}

func TestSetOracle_OwnerOnly(t *testing.T) {
	r, _, _ := newRegistry(t, 0)
	replacement := oracle.NewStatic()

	err := r.SetOracle("intruder", replacement)
	assert.ErrorIs(t, err, market.ErrNotOwner)

	require.NoError(t, r.SetOracle("owner", replacement))
	assert.Equal(t, oracle.PriceSource(replacement), r.Oracle())
}
