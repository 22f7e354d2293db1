package warehouses

// Warehouse represents a warehouse building.
type Warehouse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Location is a single addressable spot inside a warehouse. Putaway
// locations are temporary staging areas where received goods wait to be
// relocated into permanent storage.
type Location struct {
	ID        int64  `json:"id"`
	Code      string `json:"code"`
	Warehouse string `json:"warehouse"`
	IsPutaway bool   `json:"is_putaway"`
}
