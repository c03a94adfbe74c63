/*
Package inventory provides the core lot model and valuation arithmetic.

PURPOSE:

	This package contains the domain types and algorithms for tracking a
	perishable retail inventory where each lot carries an amortized cost
	basis: the total price paid, plus shipping and tax spread across the
	units of the original purchase.

KEY CONCEPTS IN THIS FILE (types.go):
  - Lot: A purchased batch of one product variant with a shared cost basis
  - LotID: A stable generated identifier (ledger entries reference this,
    never the display fields)
  - MergeEvent: An audit record appended when a new purchase is folded
    into an existing lot

DESIGN PRINCIPLES:
 1. Precision: Uses decimal.Decimal for all money values to avoid
    floating-point errors
 2. Derived values: UnitCost is always recomputed from the underlying
    fields, never stored independently of a recompute step
 3. Stable identity: The (brand, name, size) display triple is used only
    for duplicate detection; lookups go through LotID
 4. Auditability: Merges append to History; History is informational and
    never consulted by calculations

USAGE:

	lot := inventory.NewLot("Padron", "1926", "Robusto")
	lot.Count = 10
	lot.Price = decimal.NewFromInt(50)
	lot.Recompute(taxRate)

SEE ALSO:
  - costing.go: The unit-cost formula and fail-soft parsing
  - lots.go: LotStore, duplicate detection, and the merge algorithm
  - valuation.go: Read-only rollups over a set of lots
*/
package inventory

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// LotID is the stable identifier for a lot. Display fields (brand, name,
// size) can be edited freely without orphaning ledger references.
type LotID string

// NewLotID generates a fresh lot identifier.
func NewLotID() LotID {
	return LotID(uuid.NewString())
}

// =============================================================================
// LOT - A purchased batch with a shared cost basis
// =============================================================================

type Lot struct {
	ID LotID

	// Identity triple, compared case-insensitively for duplicate detection.
	Brand string
	Name  string
	Size  string

	// Free-text classification (e.g. "Maduro").
	Type string

	// Count is the current remaining units. May reach zero and stay there;
	// zero-stock lots are kept as records, not deleted.
	Count int

	// Price is the total paid for the lot, not per-unit.
	Price decimal.Decimal

	// Shipping and Tax are the totals allocated to this lot at purchase
	// time. They are tracked separately; the legacy combined value is only
	// materialized at the serialization boundary.
	Shipping decimal.Decimal
	Tax      decimal.Decimal

	// UnitCost is derived. Call Recompute after changing any field above.
	UnitCost decimal.Decimal

	// OriginalQuantity is the shipping-amortization denominator: the unit
	// count of the original purchase. It is set at creation/merge and does
	// not decrease as units sell.
	OriginalQuantity int

	// Rating is an optional personal rating, 1-10.
	Rating *int

	// History records merges, newest last. Informational only.
	History []MergeEvent
}

// MergeEvent records one incoming purchase folded into a lot.
type MergeEvent struct {
	At       time.Time
	Count    int
	Price    decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	UnitCost decimal.Decimal // lot's unit cost after the merge
}

// NewLot creates a lot with a generated ID and zeroed cost fields.
func NewLot(brand, name, size string) *Lot {
	return &Lot{
		ID:       NewLotID(),
		Brand:    brand,
		Name:     name,
		Size:     size,
		Price:    decimal.Zero,
		Shipping: decimal.Zero,
		Tax:      decimal.Zero,
		UnitCost: decimal.Zero,
	}
}

// IdentityMatches reports whether the lot's (brand, name, size) triple
// matches the given one, case-insensitively.
func (l *Lot) IdentityMatches(brand, name, size string) bool {
	return strings.EqualFold(l.Brand, brand) &&
		strings.EqualFold(l.Name, name) &&
		strings.EqualFold(l.Size, size)
}

// ShippingAndTax returns the combined shipping+tax total. This is the
// value the legacy data model stored in its single "shipping" field.
func (l *Lot) ShippingAndTax() decimal.Decimal {
	return l.Shipping.Add(l.Tax)
}

// InStock reports whether the lot has any remaining units.
func (l *Lot) InStock() bool {
	return l.Count > 0
}

// StockValue is the lot's contribution to total inventory value.
func (l *Lot) StockValue() decimal.Decimal {
	if !l.InStock() {
		return decimal.Zero
	}
	return l.UnitCost.Mul(decimal.NewFromInt(int64(l.Count)))
}

// Recompute refreshes UnitCost from the lot's current fields. Must be
// called after any change to Count, Price, Shipping, Tax, or
// OriginalQuantity.
func (l *Lot) Recompute(taxRate decimal.Decimal) {
	l.UnitCost = UnitCost(l.Price, l.ShippingAndTax(), l.Count, l.OriginalQuantity, taxRate)
}

// Clone returns a deep copy of the lot, History included.
func (l *Lot) Clone() *Lot {
	c := *l
	if l.Rating != nil {
		r := *l.Rating
		c.Rating = &r
	}
	c.History = append([]MergeEvent(nil), l.History...)
	return &c
}
