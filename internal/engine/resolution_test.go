package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"betmarket-backend/internal/engine"
	"betmarket-backend/internal/market"
)

const target = 100_000_000 // 1.00000000

// activeMarket builds a market in Active state with the given synthetic seed
func activeMarket(id string, synthetic market.SyntheticLiquidity) *market.Market {
	return &market.Market{
		ID:             id,
		Pair:           "EUR/USD",
		Collateral:     "tok",
		TargetPrice:    target,
		ResolutionTime: time.Now().Add(time.Hour),
		State:          market.StateActive,
		Synthetic:      synthetic,
		CreatedAt:      time.Now(),
	}
}

// resolvedMarket builds a resolved market with the given totals
func resolvedMarket(finalPrice int64, totalLong, totalShort uint64, synthetic market.SyntheticLiquidity) *market.Market {
	m := activeMarket("m1", synthetic)
	m.TotalLong = totalLong
	m.TotalShort = totalShort
	m.TotalCollateral = totalLong + totalShort
	m.State = market.StateResolved
	m.Resolved = true
	m.FinalPrice = finalPrice
	return m
}

func TestWinningSide_TieBreakFavorsLong(t *testing.T) {
	m := activeMarket("m1", market.SyntheticLiquidity{})

	assert.Equal(t, engine.SideLong, engine.WinningSide(m, target))
	assert.Equal(t, engine.SideLong, engine.WinningSide(m, target+1))
	assert.Equal(t, engine.SideShort, engine.WinningSide(m, target-1))
}

func TestPayoutFor_ProRataScenario(t *testing.T) {
	// A Long 100, B Short 100, resolve at 1.10000000: Long wins.
	m := resolvedMarket(110_000_000, 100, 100, market.SyntheticLiquidity{})

	a := &engine.Position{MarketID: "m1", User: "a", Side: engine.SideLong, Amount: 100}
	b := &engine.Position{MarketID: "m1", User: "b", Side: engine.SideShort, Amount: 100}

	assert.Equal(t, uint64(200), engine.PayoutFor(m, a)) // 100 + floor(100*100/100)
	assert.Zero(t, engine.PayoutFor(m, b))
}

func TestPayoutFor_SyntheticLiquidityDistributed(t *testing.T) {
	// Synthetic stake on the losing side is split among real winners like any
	// losing stake; synthetic on the winning side dilutes their share.
	synth := market.SyntheticLiquidity{LongAmount: 50, ShortAmount: 150, TotalAmount: 200}
	m := resolvedMarket(target, 100, 100, synth)

	a := &engine.Position{MarketID: "m1", User: "a", Side: engine.SideLong, Amount: 100}
	// winning = 100 + 50 = 150, losing = 100 + 150 = 250
	// payout = 100 + floor(250*100/150) = 100 + 166 = 266
	assert.Equal(t, uint64(266), engine.PayoutFor(m, a))
}

func TestPayoutFor_ConservationWithRounding(t *testing.T) {
	synth := market.SyntheticLiquidity{LongAmount: 33, ShortAmount: 67, TotalAmount: 100}
	m := resolvedMarket(target+1, 70, 130, synth)

	positions := []*engine.Position{
		{Side: engine.SideLong, Amount: 30},
		{Side: engine.SideLong, Amount: 40},
		{Side: engine.SideShort, Amount: 130},
	}

	var paid uint64
	for _, p := range positions {
		paid += engine.PayoutFor(m, p)
	}
	// Winners never receive more than the pool; floor rounding plus the
	// never-claiming synthetic stake stays behind as remainder.
	assert.LessOrEqual(t, paid, m.Pool())
}

func TestPayoutFor_LargeStakesNoOverflow(t *testing.T) {
	// losing*amount exceeds 64 bits here (1e13 * 1e13); the share must still
	// come out exact: sole winner takes the whole losing pool.
	const stake = 10_000_000_000_000
	m := resolvedMarket(target, stake, stake, market.SyntheticLiquidity{})

	a := &engine.Position{Side: engine.SideLong, Amount: stake}
	assert.Equal(t, uint64(2*stake), engine.PayoutFor(m, a))
}

func TestPayoutFor_MonotonicInOwnAmount(t *testing.T) {
	m := resolvedMarket(target+1, 300, 500, market.SyntheticLiquidity{})

	small := &engine.Position{Side: engine.SideLong, Amount: 100}
	large := &engine.Position{Side: engine.SideLong, Amount: 200}
	assert.GreaterOrEqual(t, engine.PayoutFor(m, large), engine.PayoutFor(m, small))
}

func TestPayoutFor_EmptyWinningSideGuard(t *testing.T) {
	// Nobody (not even the house) on the winning side: no division by zero,
	// every real claimant gets zero.
	m := resolvedMarket(target+1, 0, 100, market.SyntheticLiquidity{})

	b := &engine.Position{Side: engine.SideShort, Amount: 100}
	assert.Zero(t, engine.PayoutFor(m, b))
}

func TestPayoutFor_BeforeResolutionIsZero(t *testing.T) {
	m := activeMarket("m1", market.SyntheticLiquidity{})
	m.TotalLong = 100
	m.TotalCollateral = 100

	a := &engine.Position{Side: engine.SideLong, Amount: 100}
	assert.Zero(t, engine.PayoutFor(m, a))
	assert.Zero(t, engine.PayoutFor(m, nil))
}
