/*
costing.go - Amortized per-unit cost arithmetic

PURPOSE:

	Implements the unit-cost formula: the cost of one unit of a lot,
	including proportional tax and shipping.

THE FORMULA:

	perUnitBase     = price / count
	withTax         = perUnitBase * (1 + taxRate)
	perUnitShipping = shippingTax / originalQuantity   (falls back to count)
	unitCost        = withTax + perUnitShipping

WHY TWO DENOMINATORS?

	The base price and tax are amortized over the REMAINING count: the price
	notionally covers the units still on hand. Shipping was a one-time cost
	for the ORIGINAL purchase quantity, so it is amortized over that fixed
	denominator. If shipping were re-spread over a shrinking count, the
	displayed cost of remaining stock would inflate with every sale.

FAIL-SOFT POLICY:

	A lot with count <= 0 has a defined unit cost of zero - empty lots still
	render a deterministic value and no division by zero can occur. String
	input from the boundary is parsed with ParseAmount/ParseQuantity which
	return an explicit error rather than silently substituting zero, so
	callers can distinguish "computed zero" from "input was invalid".

SEE ALSO:
  - types.go: Lot.Recompute, the only caller that writes UnitCost
  - calculator.go: The standalone shipping-cost calculator
*/
package inventory

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// UNIT COST
// =============================================================================

// UnitCost computes the amortized cost of one unit.
//
// shippingTax is the combined shipping+tax total allocated to the lot.
// originalQuantity is the shipping-amortization denominator; pass 0 for
// lots created before amortization tracking existed and the current count
// is used instead.
func UnitCost(price, shippingTax decimal.Decimal, count, originalQuantity int, taxRate decimal.Decimal) decimal.Decimal {
	if count <= 0 {
		return decimal.Zero
	}

	countDec := decimal.NewFromInt(int64(count))
	perUnitBase := price.Div(countDec)
	withTax := perUnitBase.Mul(decimal.NewFromInt(1).Add(taxRate))

	shippingQty := originalQuantity
	if shippingQty <= 0 {
		shippingQty = count
	}
	perUnitShipping := shippingTax.Div(decimal.NewFromInt(int64(shippingQty)))

	return withTax.Add(perUnitShipping)
}

// =============================================================================
// BOUNDARY PARSING
// =============================================================================

// ParseAmount parses a money amount from free-text input. An empty string
// is zero; anything non-numeric reports ErrInvalidNumericInput. A leading
// "$" and surrounding whitespace are tolerated.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidNumericInput, s)
	}
	return d, nil
}

// ParseQuantity parses a whole unit count from free-text input. An empty
// string is zero; non-integers report ErrInvalidNumericInput.
func ParseQuantity(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumericInput, s)
	}
	return n, nil
}

// PercentToRate converts a percentage (8.6) to a rate fraction (0.086).
func PercentToRate(percent decimal.Decimal) decimal.Decimal {
	return percent.Div(decimal.NewFromInt(100))
}
