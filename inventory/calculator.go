/*
calculator.go - Standalone shipping-cost calculator

PURPOSE:

	The "what would shipping add per stick?" helper used when pricing an
	incoming order before committing it. Pure arithmetic; nothing here
	touches the lot collection.
*/
package inventory

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ShippingBreakdown shows a shipping total spread over common pack sizes.
type ShippingBreakdown struct {
	TotalUnits int
	PerUnit    decimal.Decimal
	PerFive    decimal.Decimal
	PerTen     decimal.Decimal
}

// BreakdownShipping spreads a shipping cost over totalUnits, plus fixed
// 5-pack and 10-pack reference rates. With no units the per-unit figure
// is the full shipping cost, matching the order-entry preview behavior.
func BreakdownShipping(shipping decimal.Decimal, totalUnits int) (ShippingBreakdown, error) {
	if shipping.IsNegative() {
		return ShippingBreakdown{}, fmt.Errorf("%w: negative shipping", ErrInvalidNumericInput)
	}

	perUnit := shipping
	if totalUnits > 0 {
		perUnit = shipping.Div(decimal.NewFromInt(int64(totalUnits)))
	}

	return ShippingBreakdown{
		TotalUnits: totalUnits,
		PerUnit:    perUnit,
		PerFive:    shipping.Div(decimal.NewFromInt(5)),
		PerTen:     shipping.Div(decimal.NewFromInt(10)),
	}, nil
}
