package engine

import (
	"math/bits"

	"betmarket-backend/internal/market"
)

// Resolution math. PayoutFor is the single source of truth for pro-rata
// payouts: the claim path, the API preview, and the off-chain reconciliation
// preview all call it, so rounding and tie-break behavior cannot diverge.

// WinningSide returns the side that wins at the given final price. Exact
// equality with the target favors Long.
func WinningSide(m *market.Market, finalPrice int64) Side {
	if finalPrice >= m.TargetPrice {
		return SideLong
	}
	return SideShort
}

// sideTotals returns the winning and losing pool totals, synthetic liquidity
// included on both sides.
func sideTotals(m *market.Market, winner Side) (winning, losing uint64) {
	longTotal := m.TotalLong + m.Synthetic.LongAmount
	shortTotal := m.TotalShort + m.Synthetic.ShortAmount
	if winner == SideLong {
		return longTotal, shortTotal
	}
	return shortTotal, longTotal
}

// PayoutFor computes a position's payout on a resolved market: the stake back
// plus a floor-rounded pro-rata share of the losing pool. Losing positions
// pay zero. If the winning side holds no stake at all the division is
// guarded and every claimant gets zero.
//
// Floor rounding leaves a remainder of at most winningSideTotal-1 units in
// the pool; it stays unclaimed until swept (see Ledger.SweepRemainder).
func PayoutFor(m *market.Market, p *Position) uint64 {
	if !m.Resolved || p == nil || p.Amount == 0 {
		return 0
	}

	winner := WinningSide(m, m.FinalPrice)
	if p.Side != winner {
		return 0
	}

	winning, losing := sideTotals(m, winner)
	if winning == 0 {
		return 0
	}

	// losing*amount exceeds 64 bits at large stakes; compute the share with a
	// 128-bit intermediate. amount never exceeds the winning total, so the
	// quotient always fits back in 64 bits.
	hi, lo := bits.Mul64(losing, p.Amount)
	share, _ := bits.Div64(hi, lo, winning)

	return p.Amount + share
}
