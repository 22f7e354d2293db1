package products

import (
	"github.com/shopspring/decimal"

	"github.com/stockyard-wms/stockyard/internal/masterdata/units"
)

// Product is a purchasable, stockable good. The code is its immutable
// identity; the purchase price is a moving average updated on receipt.
type Product struct {
	ID            int64           `json:"id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Type          string          `json:"type"`
	Group         string          `json:"group,omitempty"`
	UnitOfMeasure units.Unit      `json:"unit_of_measure"`
	UnitWeight    decimal.Decimal `json:"unit_weight"`
	Currency      string          `json:"currency"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	BasePrice     decimal.Decimal `json:"base_price"`
	Attributes    map[string]any  `json:"attributes,omitempty"`
}
