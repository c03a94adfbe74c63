/*
valuation.go - Read-only rollups over the lot collection

PURPOSE:

	Summarize recomputes totals and averages from the current lot state on
	every call. There is no cache, so the summary can never drift out of
	sync with the lots it describes.
*/
package inventory

import "github.com/shopspring/decimal"

// ValuationSummary is a point-in-time rollup of the inventory.
type ValuationSummary struct {
	TotalCount      int
	TotalValue      decimal.Decimal
	AverageShipping decimal.Decimal
	AverageUnitCost decimal.Decimal
}

// Summarize computes the rollup from the given lots.
//
// TotalValue counts only in-stock lots. AverageShipping is an UNWEIGHTED
// arithmetic mean of the combined shipping+tax of in-stock lots - it is
// not weighted by unit count; callers expecting a weighted average should
// not use it. AverageUnitCost is TotalValue/TotalCount, zero when empty.
func Summarize(lots []*Lot) ValuationSummary {
	sum := ValuationSummary{
		TotalValue:      decimal.Zero,
		AverageShipping: decimal.Zero,
		AverageUnitCost: decimal.Zero,
	}

	shippingTotal := decimal.Zero
	inStock := 0
	for _, l := range lots {
		sum.TotalCount += l.Count
		if !l.InStock() {
			continue
		}
		inStock++
		sum.TotalValue = sum.TotalValue.Add(l.StockValue())
		shippingTotal = shippingTotal.Add(l.ShippingAndTax())
	}

	if inStock > 0 {
		sum.AverageShipping = shippingTotal.Div(decimal.NewFromInt(int64(inStock)))
	}
	if sum.TotalCount > 0 {
		sum.AverageUnitCost = sum.TotalValue.Div(decimal.NewFromInt(int64(sum.TotalCount)))
	}
	return sum
}

// Summary is a convenience wrapper over the store's current lots.
func (s *LotStore) Summary() ValuationSummary {
	return Summarize(s.lots)
}
