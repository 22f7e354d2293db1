package creditnotes

import (
	"time"

	"github.com/shopspring/decimal"
)

// Credit note lifecycle states. A note is created in DRAFT the first
// time quantity is carved out of a receiving order and becomes read-only
// once CONFIRMED.
type State string

const (
	StateDraft     State = "DRAFT"
	StateConfirmed State = "CONFIRMED"
)

var transitions = map[State][]State{
	StateDraft:     {StateConfirmed},
	StateConfirmed: {StateDraft},
}

// CanTransitionTo reports whether the lifecycle permits moving to next.
// CONFIRMED -> DRAFT exists only for the receiving order reset cascade.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CreditNote records quantity returned to the supplier before or during
// putaway. Exactly one note exists per owning purchase order.
type CreditNote struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	OrderCode string    `json:"order_code"`
	State     State     `json:"state"`
	Lines     []Line    `json:"lines"`
	CreatedAt time.Time `json:"created_at"`
}

// Line is one returned position. Lines merge per product: a second carve
// of the same product adds to the existing line instead of appending.
type Line struct {
	ID        int64           `json:"id"`
	NoteID    int64           `json:"-"`
	Product   string          `json:"product"`
	Amount    decimal.Decimal `json:"amount"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
