package packaging

import (
	"github.com/shopspring/decimal"

	"github.com/stockyard-wms/stockyard/internal/masterdata/units"
)

// PackageType is a named container holding Amount of its own unit of
// measure. A package type without a unit of measure is a mere vessel
// (e.g. a pallet) that can hold any quantity of any product.
type PackageType struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	UnitOfMeasure *units.Unit     `json:"unit_of_measure,omitempty"`
}

// IsVessel reports whether the package has no unit of measure and can
// therefore hold any quantity.
func (p PackageType) IsVessel() bool {
	return p.UnitOfMeasure == nil
}
