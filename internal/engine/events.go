package engine

// Typed events published after each mutating call. Observers (websocket hub,
// audit log) subscribe through the Notifier interface without coupling to the
// ledger's internals.

// Event is a tagged union of ledger events
type Event struct {
	Type            string `json:"type"`
	MarketID        string `json:"market_id"`
	User            string `json:"user,omitempty"`
	Side            Side   `json:"side,omitempty"`
	Amount          uint64 `json:"amount,omitempty"`
	NewTotalAmount  uint64 `json:"new_total_amount,omitempty"`
	Payout          uint64 `json:"payout,omitempty"`
	FinalPrice      int64  `json:"final_price,omitempty"`
	LongWins        bool   `json:"long_wins,omitempty"`
	TotalCollateral uint64 `json:"total_collateral,omitempty"`
}

// Event types
const (
	EventPositionChanged = "position_changed"
	EventMarketResolved  = "market_resolved"
	EventMarketCancelled = "market_cancelled"
	EventClaimed         = "claimed"
	EventWithdrawn       = "withdrawn"
)

// Notifier receives ledger events. Notify must not block; slow observers
// buffer internally.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to the Notifier interface
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }
