package packaging

import (
	"github.com/shopspring/decimal"

	"github.com/stockyard-wms/stockyard/internal/masterdata/units"
)

// AmountInProductUoM converts a package's capacity into the product's
// unit of measure: how many product units fit inside one package.
//
// The package and product UoMs must be the same or one must be the base
// of the other, otherwise the conversion is not valid and ok is false.
// A vessel package (no UoM) has no defined capacity here; the caller
// substitutes the full requested amount.
func AmountInProductUoM(pkg PackageType, productUoM units.Unit) (decimal.Decimal, bool) {
	if pkg.IsVessel() {
		return decimal.Zero, false
	}
	packageUoM := *pkg.UnitOfMeasure

	if productUoM.Name == packageUoM.Name {
		return pkg.Amount, true
	}

	if productUoM.HasBase() && productUoM.BaseUoM == packageUoM.Name {
		return pkg.Amount.Div(productUoM.AmountOfBaseUoM), true
	}

	if packageUoM.HasBase() && packageUoM.BaseUoM == productUoM.Name {
		return pkg.Amount.Mul(packageUoM.AmountOfBaseUoM), true
	}

	return decimal.Zero, false
}
