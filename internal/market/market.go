package market

import (
	"time"
)

// State represents the lifecycle stage of a binary price market
type State int

const (
	StateActive    State = iota // Accepting positions
	StateResolved               // Final price observed, payouts claimable
	StateCancelled              // Terminated by the owner, stakes refundable
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateResolved:
		return "resolved"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// SyntheticLiquidity is the house-seeded counter-stake assigned to a market
// at creation so both sides always have depth. It is distributed to winners
// like any losing stake but never claims for itself.
type SyntheticLiquidity struct {
	LongAmount      uint64  `json:"long_amount"`
	ShortAmount     uint64  `json:"short_amount"`
	TotalAmount     uint64  `json:"total_amount"`
	ProbabilityLong float64 `json:"probability_long"`
}

// Market represents a binary directional bet on a reference price versus a
// fixed target at a resolution time. Prices are fixed-point integers with
// 8 implied decimal places.
type Market struct {
	ID             string    `json:"id"`
	Pair           string    `json:"pair"`            // e.g. "EUR/USD"
	Collateral     string    `json:"collateral"`      // opaque collateral token reference
	TargetPrice    int64     `json:"target_price"`    // 8-decimal fixed point
	ResolutionTime time.Time `json:"resolution_time"` // when the final price is observed
	State          State     `json:"state"`
	Resolved       bool      `json:"resolved"`
	FinalPrice     int64     `json:"final_price"` // set only on resolution

	// Real position totals. TotalCollateral == TotalLong + TotalShort holds
	// at all times while Active.
	TotalLong       uint64 `json:"total_long"`
	TotalShort      uint64 `json:"total_short"`
	TotalCollateral uint64 `json:"total_collateral"`

	// PaidOut accumulates confirmed claim payouts so the floor-rounding
	// remainder can be swept after all winners have claimed.
	PaidOut uint64 `json:"paid_out"`

	Synthetic SyntheticLiquidity `json:"synthetic"`
	CreatedAt time.Time          `json:"created_at"`
}

// LongWins reports the winning-side rule: Long wins iff the final price is
// greater than or equal to the target. Exact equality favors Long.
func (m *Market) LongWins() bool {
	return m.FinalPrice >= m.TargetPrice
}

// Pool is the full distributable pool: real collateral plus the synthetic
// counter-stake on both sides.
func (m *Market) Pool() uint64 {
	return m.TotalCollateral + m.Synthetic.TotalAmount
}

// MarketJSON is the JSON representation of a market
type MarketJSON struct {
	ID             string             `json:"id"`
	Pair           string             `json:"pair"`
	Collateral     string             `json:"collateral"`
	TargetPrice    int64              `json:"target_price"`
	ResolutionTime string             `json:"resolution_time"`
	State          string             `json:"state"`
	Resolved       bool               `json:"resolved"`
	FinalPrice     *int64             `json:"final_price,omitempty"`
	TotalLong      uint64             `json:"total_long"`
	TotalShort     uint64             `json:"total_short"`
	TotalPool      uint64             `json:"total_pool"`
	Synthetic      SyntheticLiquidity `json:"synthetic"`
	CreatedAt      string             `json:"created_at"`
}

// ToJSON converts a Market to its JSON representation
func (m *Market) ToJSON() MarketJSON {
	mj := MarketJSON{
		ID:             m.ID,
		Pair:           m.Pair,
		Collateral:     m.Collateral,
		TargetPrice:    m.TargetPrice,
		ResolutionTime: m.ResolutionTime.Format(time.RFC3339),
		State:          m.State.String(),
		Resolved:       m.Resolved,
		TotalLong:      m.TotalLong,
		TotalShort:     m.TotalShort,
		TotalPool:      m.Pool(),
		Synthetic:      m.Synthetic,
		CreatedAt:      m.CreatedAt.Format(time.RFC3339),
	}
	if m.Resolved {
		fp := m.FinalPrice
		mj.FinalPrice = &fp
	}
	return mj
}

// Store is the market repository consumed by the registry and the engine.
// The in-memory implementation backs tests; the sqlite implementation backs
// a durable deployment. List and ListByPair return markets in creation order.
type Store interface {
	Put(m *Market) error
	Get(id string) (*Market, bool)
	List() []*Market
	ListByPair(pair string) []*Market
	Count() int
}
