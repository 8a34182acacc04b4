package store_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"betmarket-backend/internal/engine"
	"betmarket-backend/internal/market"
	"betmarket-backend/internal/settlement"
	"betmarket-backend/internal/store"
)

func newSQLite(t *testing.T) *store.SQLite {
	t.Helper()
	s, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleMarket(id, pair string) *market.Market {
	return &market.Market{
		ID:             id,
		Pair:           pair,
		Collateral:     "tok",
		TargetPrice:    100_000_000,
		ResolutionTime: time.Now().Add(time.Hour).UTC(),
		State:          market.StateActive,
		Synthetic: market.SyntheticLiquidity{
			LongAmount:      300,
			ShortAmount:     700,
			TotalAmount:     1000,
			ProbabilityLong: 0.3,
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestSQLiteMarkets_Roundtrip(t *testing.T) {
	s := newSQLite(t)
	markets := s.Markets()

	_, ok := markets.Get("missing")
	assert.False(t, ok)

	m := sampleMarket("m1", "EUR/USD")
	require.NoError(t, markets.Put(m))

	got, ok := markets.Get("m1")
	require.True(t, ok)
	assert.Equal(t, m.Pair, got.Pair)
	assert.Equal(t, m.Collateral, got.Collateral)
	assert.Equal(t, m.TargetPrice, got.TargetPrice)
	assert.Equal(t, market.StateActive, got.State)
	assert.Equal(t, m.Synthetic, got.Synthetic)
	assert.WithinDuration(t, m.ResolutionTime, got.ResolutionTime, time.Second)
	assert.WithinDuration(t, m.CreatedAt, got.CreatedAt, time.Second)
}

func TestSQLiteMarkets_UpdatePersistsStateAndTotals(t *testing.T) {
	s := newSQLite(t)
	markets := s.Markets()

	m := sampleMarket("m1", "EUR/USD")
	require.NoError(t, markets.Put(m))

	m.State = market.StateResolved
	m.Resolved = true
	m.FinalPrice = 110_000_000
	m.TotalLong = 150
	m.TotalShort = 250
	m.TotalCollateral = 400
	m.PaidOut = 123
	require.NoError(t, markets.Put(m))

	got, ok := markets.Get("m1")
	require.True(t, ok)
	assert.Equal(t, market.StateResolved, got.State)
	assert.True(t, got.Resolved)
	assert.Equal(t, int64(110_000_000), got.FinalPrice)
	assert.Equal(t, uint64(150), got.TotalLong)
	assert.Equal(t, uint64(250), got.TotalShort)
	assert.Equal(t, uint64(400), got.TotalCollateral)
	assert.Equal(t, uint64(123), got.PaidOut)
	// Synthetic liquidity is fixed at creation.
	assert.Equal(t, uint64(1000), got.Synthetic.TotalAmount)

	assert.Equal(t, 1, markets.Count())
}

func TestSQLiteMarkets_ListOrderAndPairFilter(t *testing.T) {
	s := newSQLite(t)
	markets := s.Markets()

	require.NoError(t, markets.Put(sampleMarket("m1", "EUR/USD")))
	require.NoError(t, markets.Put(sampleMarket("m2", "GBP/USD")))
	require.NoError(t, markets.Put(sampleMarket("m3", "EUR/USD")))

	all := markets.List()
	require.Len(t, all, 3)
	assert.Equal(t, "m1", all[0].ID)
	assert.Equal(t, "m2", all[1].ID)
	assert.Equal(t, "m3", all[2].ID)

	eur := markets.ListByPair("EUR/USD")
	require.Len(t, eur, 2)
	assert.Equal(t, "m1", eur[0].ID)
	assert.Equal(t, "m3", eur[1].ID)

	assert.Empty(t, markets.ListByPair("USD/JPY"))
	assert.Equal(t, 3, markets.Count())
}

func TestSQLitePositions_UpsertAndOrder(t *testing.T) {
	s := newSQLite(t)
	positions := s.Positions()

	_, ok := positions.Get("m1", "alice")
	assert.False(t, ok)

	require.NoError(t, positions.Put(&engine.Position{MarketID: "m1", User: "alice", Side: engine.SideLong, Amount: 100}))
	require.NoError(t, positions.Put(&engine.Position{MarketID: "m1", User: "bob", Side: engine.SideShort, Amount: 50}))
	require.NoError(t, positions.Put(&engine.Position{MarketID: "m2", User: "alice", Side: engine.SideShort, Amount: 10}))

	// Upsert keeps the user's slot in first-contribution order.
	require.NoError(t, positions.Put(&engine.Position{MarketID: "m1", User: "alice", Side: engine.SideLong, Amount: 175, Claimed: true}))

	got, ok := positions.Get("m1", "alice")
	require.True(t, ok)
	assert.Equal(t, engine.SideLong, got.Side)
	assert.Equal(t, uint64(175), got.Amount)
	assert.True(t, got.Claimed)
	assert.False(t, got.Withdrawn)

	list := positions.ListByMarket("m1")
	require.Len(t, list, 2)
	assert.Equal(t, "alice", list[0].User)
	assert.Equal(t, "bob", list[1].User)

	other := positions.ListByMarket("m2")
	require.Len(t, other, 1)
	assert.Equal(t, uint64(10), other[0].Amount)
}

func TestSQLiteSettlements_RoundtripAndUserIndex(t *testing.T) {
	s := newSQLite(t)
	settlements := s.Settlements()

	_, ok := settlements.Get("missing")
	assert.False(t, ok)

	for _, id := range []string{"s1", "s2", "s3"} {
		require.NoError(t, settlements.Put(&settlement.Record{
			SessionID: id,
			User:      "alice",
			MarketID:  "m1",
			Amount:    100,
			CreatedAt: time.Now().UTC(),
		}))
	}
	require.NoError(t, settlements.Put(&settlement.Record{
		SessionID: "other",
		User:      "bob",
		MarketID:  "m1",
		Amount:    25,
		CreatedAt: time.Now().UTC(),
	}))

	assert.Equal(t, []string{"s1", "s2", "s3"}, settlements.UserSessions("alice"))
	assert.Equal(t, []string{"other"}, settlements.UserSessions("bob"))

	// Finalize s2: stays in the open index until closed.
	rec, ok := settlements.Get("s2")
	require.True(t, ok)
	rec.Finalized = true
	rec.Payout = 200
	rec.Attestation = []byte{0xde, 0xad}
	rec.FinalizedAt = time.Now().UTC()
	require.NoError(t, settlements.Put(rec))

	got, ok := settlements.Get("s2")
	require.True(t, ok)
	assert.True(t, got.Finalized)
	assert.Equal(t, uint64(200), got.Payout)
	assert.Equal(t, []byte{0xde, 0xad}, got.Attestation)
	assert.False(t, got.FinalizedAt.IsZero())
	assert.Equal(t, []string{"s1", "s2", "s3"}, settlements.UserSessions("alice"))

	got.Closed = true
	require.NoError(t, settlements.Put(got))
	assert.Equal(t, []string{"s1", "s3"}, settlements.UserSessions("alice"))
}

func TestOpen_PicksBackendByPath(t *testing.T) {
	mem, err := store.Open("")
	require.NoError(t, err)
	_, isMemory := mem.(*store.Memory)
	assert.True(t, isMemory)
	mem.Close()

	durable, err := store.Open(":memory:")
	require.NoError(t, err)
	_, isSQLite := durable.(*store.SQLite)
	assert.True(t, isSQLite)
	durable.Close()
}
