/*
Package ledger records sales and resupplies and supports their reversal.

PURPOSE:

	Every inventory-changing event - a sale, a return, a resupply, a
	resupply deletion - flows through the Book. Entries created by one user
	action share a transaction id, and any entry can later be reversed in
	full or in part, restoring the lot counts it affected.

KEY CONCEPTS IN THIS FILE (types.go):
  - Entry: One line of a sale or resupply
  - TransactionID: The grouping key linking all entries of one action
  - SaleItem / ResupplyItem: Input lines for the recording operations
  - SkippedItem: A line that could not be processed and why

REVERSAL MODEL:

	Unlike a bookkeeping ledger that only ever appends, this ledger shrinks
	or removes entries on reversal - a fully reversed transaction leaves no
	zero-quantity husks behind. Idempotence comes from removal: reversing an
	entry that is already gone reports ErrReversalNotFound instead of
	double-applying.

SEE ALSO:
  - book.go: The recording and reversal algorithms
  - inventory: Lot state these entries describe
*/
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/humidor/valuation-engine/inventory"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EntryID string

// TransactionID is shared by all entries created in one user action
// (one sale checkout, one resupply order).
type TransactionID string

func NewEntryID() EntryID {
	return EntryID(uuid.NewString())
}

func NewTransactionID() TransactionID {
	return TransactionID(uuid.NewString())
}

// =============================================================================
// ENTRY
// =============================================================================

type Kind string

const (
	KindSale     Kind = "sale"
	KindResupply Kind = "resupply"
)

// Entry is one line of a sale or resupply.
type Entry struct {
	ID            EntryID
	TransactionID TransactionID
	Timestamp     time.Time
	Kind          Kind

	// LotID is the stable reference; the identity snapshot below is what
	// the lot was called at the time of the event, kept for display even
	// if the lot is later renamed.
	LotID inventory.LotID
	Brand string
	Name  string
	Size  string

	// UnitPrice is the lot's unit cost captured at event time. Later cost
	// recomputation never retroactively alters recorded figures.
	UnitPrice decimal.Decimal
	Quantity  int
	TotalCost decimal.Decimal

	// Resupply only: the base price paid for this line and the shipping
	// plus tax allocated to it. Zero for sales.
	Price                decimal.Decimal
	ShippingTaxAllocated decimal.Decimal
}

// =============================================================================
// OPERATION INPUTS AND RESULTS
// =============================================================================

// SaleItem is one requested sale line.
type SaleItem struct {
	LotID    inventory.LotID
	Quantity int
}

// ResupplyItem is one incoming purchase line.
type ResupplyItem struct {
	Brand string
	Name  string
	Size  string
	Type  string
	Count int
	Price decimal.Decimal
}

// SkippedItem reports a line that could not be processed. The rest of the
// batch proceeds; skips are never fatal.
type SkippedItem struct {
	LotID  inventory.LotID
	Brand  string
	Name   string
	Size   string
	Reason error
}

// SaleResult reports what a RecordSale call did.
type SaleResult struct {
	TransactionID TransactionID
	Entries       []Entry
	Skipped       []SkippedItem
}

// GrandTotal sums the recorded lines' total cost.
func (r SaleResult) GrandTotal() decimal.Decimal {
	total := decimal.Zero
	for _, e := range r.Entries {
		total = total.Add(e.TotalCost)
	}
	return total
}

// ResupplyResult reports what a RecordResupply call did.
type ResupplyResult struct {
	OrderID TransactionID
	Entries []Entry
	Skipped []SkippedItem

	// TaxRate is the rate fraction this order was processed with; the
	// engine promotes it to the new default afterwards.
	TaxRate decimal.Decimal
}

// ReversalReport reports a whole-transaction reversal.
type ReversalReport struct {
	TransactionID TransactionID
	Reversed      []Entry
	Skipped       []SkippedItem
}

// PreviewLine is one line of a non-mutating sale preview.
type PreviewLine struct {
	LotID     inventory.LotID
	Brand     string
	Name      string
	Size      string
	Quantity  int
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
}

// Preview totals selected lines without recording anything.
type Preview struct {
	Lines      []PreviewLine
	TotalUnits int
	GrandTotal decimal.Decimal
}
