package domain

import "time"

// Order is an instruction for the exchange. A positive Quantity buys at
// Price, a negative Quantity sells.
type Order struct {
	Symbol   string `json:"symbol"`
	Price    int    `json:"price"`
	Quantity int    `json:"quantity"`
}

// Result is what the trader returns for one tick.
type Result struct {
	Orders      map[string][]Order `json:"orders"`
	Conversions int                `json:"conversions"`
	TraderData  string             `json:"traderData"`
}

// BasketDirection classifies the outcome of a basket valuation.
type BasketDirection string

const (
	BasketOverpriced  BasketDirection = "overpriced"  // sell composite, buy legs
	BasketUnderpriced BasketDirection = "underpriced" // buy composite, sell legs
	BasketNone        BasketDirection = "none"
	BasketSkipped     BasketDirection = "skipped"
)

// BasketDecision records how one composite was evaluated on a tick. Orders
// holds the composite order first, followed by one order per leg, and is
// empty unless every leg could be hedged.
type BasketDecision struct {
	Composite    string          `json:"composite"`
	Direction    BasketDirection `json:"direction"`
	CompositeMid float64         `json:"composite_mid,omitempty"`
	Theoretical  float64         `json:"theoretical,omitempty"`
	Threshold    float64         `json:"threshold"`
	Edge         float64         `json:"edge,omitempty"`
	Orders       []Order         `json:"orders,omitempty"`
	LegGroupID   string          `json:"leg_group_id,omitempty"`
	SkipReason   string          `json:"skip_reason,omitempty"`
}

// TickResult is a Result together with the basket decisions behind it.
type TickResult struct {
	Orders      map[string][]Order `json:"orders"`
	Conversions int                `json:"conversions"`
	TraderData  string             `json:"traderData"`
	Baskets     []BasketDecision   `json:"baskets"`
}

// TickRecord is the journal entry written for every processed tick.
type TickRecord struct {
	ID          int64              `json:"id,omitempty"`
	Session     string             `json:"session"`
	Timestamp   int64              `json:"timestamp"`
	Orders      map[string][]Order `json:"orders"`
	Conversions int                `json:"conversions"`
	Baskets     []BasketDecision   `json:"baskets"`
	StateSize   int                `json:"state_size"`
	RecordedAt  time.Time          `json:"recorded_at"`
}

// OrderCount returns the total number of orders in the record.
func (r TickRecord) OrderCount() int {
	n := 0
	for _, orders := range r.Orders {
		n += len(orders)
	}
	return n
}
