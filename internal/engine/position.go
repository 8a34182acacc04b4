package engine

// Side is the direction of a position: Long bets the final price ends at or
// above the target, Short bets it ends below.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Valid reports whether s is a known side
func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}

// Position is one user's stake in one market. The side is fixed by the first
// contribution; further contributions on the same side increase the amount.
// There is no bonding curve: one unit of collateral is one unit of pro-rata
// share.
type Position struct {
	MarketID  string `json:"market_id"`
	User      string `json:"user"`
	Side      Side   `json:"side"`
	Amount    uint64 `json:"amount"`
	Claimed   bool   `json:"claimed"`   // set by Claim on the resolved path
	Withdrawn bool   `json:"withdrawn"` // set by EmergencyWithdraw on the cancelled path
}

// PositionStore is the position repository keyed by (market, user)
type PositionStore interface {
	Get(marketID, user string) (*Position, bool)
	Put(p *Position) error
	ListByMarket(marketID string) []*Position
}
