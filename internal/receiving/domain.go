package receiving

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receiving order lifecycle states.
type State string

const (
	StateDraft     State = "DRAFT"
	StatePending   State = "PENDING"
	StateStarted   State = "STARTED"
	StateCompleted State = "COMPLETED"
	StateCancelled State = "CANCELLED"
)

// transitions is the closed transition table. PENDING -> DRAFT is the
// reset cascade; completion is reachable from PENDING directly when an
// order has a single item.
var transitions = map[State][]State{
	StateDraft:     {StatePending, StateCancelled},
	StatePending:   {StateDraft, StateStarted, StateCompleted, StateCancelled},
	StateStarted:   {StateCompleted},
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

// Editable reports whether item mutations (tracking setup, add/remove,
// carve-outs) are permitted.
func (s State) Editable() bool {
	return s == StateDraft
}

// TrackingLevel classifies how a warehouse item is accounted for.
type TrackingLevel string

const (
	TrackingFungible          TrackingLevel = "FUNGIBLE"
	TrackingBatch             TrackingLevel = "BATCH"
	TrackingSerializedPackage TrackingLevel = "SERIALIZED_PACKAGE"
	TrackingSerializedPiece   TrackingLevel = "SERIALIZED_PIECE"
)

// Valid reports whether the tracking level is one of the known values.
func (t TrackingLevel) Valid() bool {
	switch t {
	case TrackingFungible, TrackingBatch, TrackingSerializedPackage, TrackingSerializedPiece:
		return true
	}
	return false
}

// ReceivingOrder is the physical work order mirroring a purchase order.
// Exactly one receiving order exists per purchase order.
type ReceivingOrder struct {
	ID        int64           `json:"id"`
	Code      string          `json:"code"`
	OrderCode string          `json:"order_code"`
	State     State           `json:"state"`
	Items     []WarehouseItem `json:"items"`
	CreatedAt time.Time       `json:"created_at"`
}

// WarehouseItem is the atomic trackable unit: a discrete quantity of one
// product resident at one location. Amounts are expressed in the
// product's base unit of measure.
type WarehouseItem struct {
	ID            int64           `json:"id"`
	Code          string          `json:"code"`
	Product       string          `json:"product"`
	TrackingLevel TrackingLevel   `json:"tracking_level"`
	Amount        decimal.Decimal `json:"amount"`
	Location      string          `json:"location"`
	OrderCode     string          `json:"order_code,omitempty"`
	PackageType   string          `json:"package_type,omitempty"`
	Batch         string          `json:"batch,omitempty"`
}

// ItemSpec describes a destination record for tracking setup or an item
// added to a draft order. An empty Location inherits the source item's
// location.
type ItemSpec struct {
	Product       string          `json:"product,omitempty"`
	TrackingLevel TrackingLevel   `json:"tracking_level"`
	Amount        decimal.Decimal `json:"amount"`
	Location      string          `json:"location,omitempty"`
	PackageType   string          `json:"package_type,omitempty"`
	Batch         string          `json:"batch,omitempty"`
}

// Movement is the traceability row recorded for every putaway
// relocation.
type Movement struct {
	ID           int64           `json:"id"`
	ItemCode     string          `json:"item_code"`
	OrderCode    string          `json:"order_code"`
	Product      string          `json:"product"`
	Amount       decimal.Decimal `json:"amount"`
	FromLocation string          `json:"from_location"`
	ToLocation   string          `json:"to_location"`
	MovedAt      time.Time       `json:"moved_at"`
}
