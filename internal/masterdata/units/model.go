package units

import "github.com/shopspring/decimal"

// Unit represents a unit of measure. A unit may derive from a base unit,
// in which case AmountOfBaseUoM states how many base units one unit of
// this UoM represents (e.g. "100ks" with base "KS" and amount 100).
// The hierarchy is at most one level deep.
type Unit struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	BaseUoM         string          `json:"base_uom,omitempty"`
	AmountOfBaseUoM decimal.Decimal `json:"amount_of_base_uom,omitempty"`
}

// HasBase reports whether the unit derives from a base unit.
func (u Unit) HasBase() bool {
	return u.BaseUoM != ""
}
