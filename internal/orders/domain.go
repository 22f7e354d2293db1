package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase order lifecycle states.
type State string

const (
	StateDraft     State = "DRAFT"
	StateSubmitted State = "SUBMITTED"
	StateReceiving State = "RECEIVING"
	StatePutaway   State = "PUTAWAY"
	StateCompleted State = "COMPLETED"
	StateCancelled State = "CANCELLED"
)

// transitions is the closed transition table for the purchase order
// lifecycle. Cancellation is reachable from every non-terminal state.
var transitions = map[State][]State{
	StateDraft:     {StateSubmitted, StateCancelled},
	StateSubmitted: {StateReceiving, StateCancelled},
	StateReceiving: {StatePutaway, StateCancelled},
	StatePutaway:   {StateReceiving, StateCompleted, StateCancelled},
	StateCompleted: {},
	StateCancelled: {},
}

// CanTransitionTo reports whether the lifecycle permits moving to next.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// PurchaseOrder is the root commercial aggregate for inbound goods.
type PurchaseOrder struct {
	ID        int64          `json:"id"`
	Code      string         `json:"code"`
	Supplier  string         `json:"supplier"`
	Currency  string         `json:"currency"`
	State     State          `json:"state"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Lines     []Line         `json:"lines"`
	CreatedAt time.Time      `json:"created_at"`
}

// Line is one ordered position: product, quantity in the product's base
// unit of measure, and the agreed unit price.
type Line struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"-"`
	Product   string          `json:"product"`
	Amount    decimal.Decimal `json:"amount"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
