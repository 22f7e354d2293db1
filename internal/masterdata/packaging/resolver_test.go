package packaging

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stockyard-wms/stockyard/internal/masterdata/units"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAmountInProductUoMSameUnit(t *testing.T) {
	hundred := units.Unit{Name: "100ks", BaseUoM: "KS", AmountOfBaseUoM: dec("100")}
	pkg := PackageType{Name: "PAK-400KS", Amount: dec("4"), UnitOfMeasure: &hundred}

	amount, ok := AmountInProductUoM(pkg, hundred)
	require.True(t, ok)
	require.True(t, amount.Equal(dec("4")))
}

func TestAmountInProductUoMPackageInBaseUnit(t *testing.T) {
	base := units.Unit{Name: "KS"}
	hundred := units.Unit{Name: "100ks", BaseUoM: "KS", AmountOfBaseUoM: dec("100")}
	pkg := PackageType{Name: "PAK-400KS", Amount: dec("400"), UnitOfMeasure: &base}

	amount, ok := AmountInProductUoM(pkg, hundred)
	require.True(t, ok)
	require.True(t, amount.Equal(dec("4")), "400 KS should convert to 4 packages of 100ks, got %s", amount)
}

func TestAmountInProductUoMProductInBaseUnit(t *testing.T) {
	base := units.Unit{Name: "KS"}
	hundred := units.Unit{Name: "100ks", BaseUoM: "KS", AmountOfBaseUoM: dec("100")}
	pkg := PackageType{Name: "PAK-400KS", Amount: dec("4"), UnitOfMeasure: &hundred}

	amount, ok := AmountInProductUoM(pkg, base)
	require.True(t, ok)
	require.True(t, amount.Equal(dec("400")), "4 packages of 100ks should be 400 KS, got %s", amount)
}

func TestAmountInProductUoMReversePairing(t *testing.T) {
	base := units.Unit{Name: "KS"}
	hundred := units.Unit{Name: "100ks", BaseUoM: "KS", AmountOfBaseUoM: dec("100")}

	asBase := PackageType{Name: "P1", Amount: dec("4"), UnitOfMeasure: &hundred}
	amount, ok := AmountInProductUoM(asBase, base)
	require.True(t, ok)
	require.True(t, amount.Equal(dec("400")))

	asDerived := PackageType{Name: "P2", Amount: dec("4"), UnitOfMeasure: &base}
	amount, ok = AmountInProductUoM(asDerived, hundred)
	require.True(t, ok)
	require.True(t, amount.Equal(dec("0.04")))
}

func TestAmountInProductUoMRoundTrip(t *testing.T) {
	base := units.Unit{Name: "KS"}
	hundred := units.Unit{Name: "100ks", BaseUoM: "KS", AmountOfBaseUoM: dec("100")}
	pkg := PackageType{Name: "PAK", Amount: dec("4"), UnitOfMeasure: &hundred}

	inBase, ok := AmountInProductUoM(pkg, base)
	require.True(t, ok)

	back := PackageType{Name: "PAK-B", Amount: inBase, UnitOfMeasure: &base}
	inDerived, ok := AmountInProductUoM(back, hundred)
	require.True(t, ok)
	require.True(t, inDerived.Equal(pkg.Amount))
}

func TestAmountInProductUoMVessel(t *testing.T) {
	pallet := PackageType{Name: "PALLET", Amount: dec("0")}
	_, ok := AmountInProductUoM(pallet, units.Unit{Name: "KS"})
	require.False(t, ok)
}

func TestAmountInProductUoMIncompatibleUnits(t *testing.T) {
	litre := units.Unit{Name: "L"}
	piece := units.Unit{Name: "KS"}
	pkg := PackageType{Name: "CAN-5L", Amount: dec("5"), UnitOfMeasure: &litre}

	_, ok := AmountInProductUoM(pkg, piece)
	require.False(t, ok)
}
