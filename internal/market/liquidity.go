package market

import (
	"math"
)

// Synthetic liquidity sizing. The house seeds every market with a
// counter-stake split between Long and Short according to an estimated win
// probability, so a market has two-sided depth even with a single real
// participant.

const (
	// Probability clamp bounds. Keeping the estimate off 0 and 1 guarantees
	// both sides always receive a nonzero share of the budget.
	minProbability = 0.1
	maxProbability = 0.9

	// Daily volatility assumption for short-horizon FX pairs. Volatility
	// grows with the square root of time remaining and is capped at 2%.
	dailyVolatility = 0.005
	maxVolatility   = 0.02

	secondsPerDay = 86400
)

// EstimateProbabilityLongWins estimates the probability that the reference
// price ends at or above the target, given the current price and the time
// remaining until resolution. Prices are 8-decimal fixed point. The result
// is clamped to [0.1, 0.9].
func EstimateProbabilityLongWins(currentPrice, targetPrice int64, secondsToResolution int64) float64 {
	days := float64(secondsToResolution) / secondsPerDay
	if days < 0 {
		days = 0
	}

	vol := dailyVolatility * math.Sqrt(days)
	if vol > maxVolatility {
		vol = maxVolatility
	}

	if currentPrice <= 0 || vol <= 0 {
		return 0.5
	}

	z := float64(targetPrice-currentPrice) / (float64(currentPrice) * vol)
	p := 0.5 * (1 - erf(z/math.Sqrt2))

	return clamp(p, minProbability, maxProbability)
}

// SizeLiquidity splits a synthetic budget across both sides in proportion to
// the Long win probability. The Long side gets the floor share, the Short
// side the remainder, so the split always sums to the budget exactly.
func SizeLiquidity(budget uint64, probabilityLong float64) SyntheticLiquidity {
	p := clamp(probabilityLong, minProbability, maxProbability)
	long := uint64(math.Floor(float64(budget) * p))
	return SyntheticLiquidity{
		LongAmount:      long,
		ShortAmount:     budget - long,
		TotalAmount:     budget,
		ProbabilityLong: p,
	}
}

// erf evaluates the error function via the Abramowitz & Stegun rational
// approximation (7.1.26), accurate to ~1.5e-7 over the whole real line.
func erf(x float64) float64 {
	const (
		a1 = 0.254829592
		a2 = -0.284496736
		a3 = 1.421413741
		a4 = -1.453152027
		a5 = 1.061405429
		p  = 0.3275911
	)

	// The coefficients sum to just under 1, so evaluate zero exactly: a market
	// priced at its target must get even odds, not 0.4999999995.
	if x == 0 {
		return 0
	}

	sign := 1.0
	if x < 0 {
		sign = -1.0
		x = -x
	}

	t := 1.0 / (1.0 + p*x)
	y := 1.0 - (((((a5*t+a4)*t)+a3)*t+a2)*t+a1)*t*math.Exp(-x*x)

	return sign * y
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
