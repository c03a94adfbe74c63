/*
book.go - Recording and reversal over the transaction ledger

PURPOSE:

	The Book owns the ledger entries and mutates the LotStore as events are
	recorded or reversed. Control flow is always lots-first: a sale or
	resupply mutates lot state, then appends entries tagged with a shared
	transaction id. Reversal runs backward: entries are located by id, the
	lots are mutated to undo their effect, and the entries shrink or
	disappear.

BEST-EFFORT BATCHES:

	Multi-line operations never fail wholesale. A line with insufficient
	stock, a missing lot, or an invalid quantity is skipped and reported in
	the result; the remaining lines still process.

RESUPPLY COST ALLOCATION:

	The order's shipping total is spread proportionally by unit count
	across its lines. Tax is computed on each line's base price only -
	never on price plus shipping. Both land on the lot as its allocated
	shipping and tax totals.

SEE ALSO:
  - types.go: Entry and the operation input/result types
  - inventory/lots.go: MergeInto, used when a resupply matches a lot
*/
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/humidor/valuation-engine/inventory"
)

// =============================================================================
// BOOK
// =============================================================================

type Book struct {
	lots    *inventory.LotStore
	entries []*Entry
	now     func() time.Time
}

func NewBook(lots *inventory.LotStore) *Book {
	return &Book{lots: lots, now: time.Now}
}

// SetClock overrides the book's time source. Tests only.
func (b *Book) SetClock(now func() time.Time) {
	b.now = now
}

// Entries returns all ledger entries in recording order. The slice and
// the entries are copies.
func (b *Book) Entries() []Entry {
	out := make([]Entry, len(b.entries))
	for i, e := range b.entries {
		out[i] = *e
	}
	return out
}

// EntriesFor returns the entries of one transaction.
func (b *Book) EntriesFor(tx TransactionID) []Entry {
	var out []Entry
	for _, e := range b.entries {
		if e.TransactionID == tx {
			out = append(out, *e)
		}
	}
	return out
}

// Get returns the entry with the given id.
func (b *Book) Get(id EntryID) (Entry, error) {
	for _, e := range b.entries {
		if e.ID == id {
			return *e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: entry %s", inventory.ErrReversalNotFound, id)
}

// Restore replaces the entries wholesale. Used when loading persisted
// state at startup.
func (b *Book) Restore(entries []Entry) {
	b.entries = make([]*Entry, len(entries))
	for i := range entries {
		e := entries[i]
		b.entries[i] = &e
	}
}

// =============================================================================
// SALES
// =============================================================================

// RecordSale processes a multi-line sale. Each line captures the lot's
// unit cost at sale time, decrements the count, and appends an entry; all
// entries share one transaction id. Lines with insufficient stock or a
// missing lot are skipped and reported.
func (b *Book) RecordSale(items []SaleItem, taxRate decimal.Decimal) SaleResult {
	result := SaleResult{TransactionID: NewTransactionID()}
	at := b.now()

	for _, item := range items {
		lot, err := b.lots.Get(item.LotID)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedItem{LotID: item.LotID, Reason: err})
			continue
		}
		if item.Quantity < 1 {
			result.Skipped = append(result.Skipped, skippedFor(lot, fmt.Errorf("%w: got %d", inventory.ErrInvalidQuantity, item.Quantity)))
			continue
		}
		if lot.Count < item.Quantity {
			result.Skipped = append(result.Skipped, skippedFor(lot, &inventory.InsufficientStockError{
				LotID:     lot.ID,
				Brand:     lot.Brand,
				Name:      lot.Name,
				Size:      lot.Size,
				Available: lot.Count,
				Requested: item.Quantity,
			}))
			continue
		}

		// Unit price is captured before the count changes.
		unitPrice := lot.UnitCost
		lot.Count -= item.Quantity
		lot.Recompute(taxRate)

		entry := &Entry{
			ID:                   NewEntryID(),
			TransactionID:        result.TransactionID,
			Timestamp:            at,
			Kind:                 KindSale,
			LotID:                lot.ID,
			Brand:                lot.Brand,
			Name:                 lot.Name,
			Size:                 lot.Size,
			UnitPrice:            unitPrice,
			Quantity:             item.Quantity,
			TotalCost:            unitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))),
			Price:                decimal.Zero,
			ShippingTaxAllocated: decimal.Zero,
		}
		b.entries = append(b.entries, entry)
		result.Entries = append(result.Entries, *entry)
	}
	return result
}

// PreviewSale totals the requested lines at current unit costs without
// mutating anything. Invalid lines are priced as zero-quantity.
func (b *Book) PreviewSale(items []SaleItem) Preview {
	var p Preview
	p.GrandTotal = decimal.Zero
	for _, item := range items {
		lot, err := b.lots.Get(item.LotID)
		if err != nil || item.Quantity < 1 {
			continue
		}
		total := lot.UnitCost.Mul(decimal.NewFromInt(int64(item.Quantity)))
		p.Lines = append(p.Lines, PreviewLine{
			LotID:     lot.ID,
			Brand:     lot.Brand,
			Name:      lot.Name,
			Size:      lot.Size,
			Quantity:  item.Quantity,
			UnitPrice: lot.UnitCost,
			Total:     total,
		})
		p.TotalUnits += item.Quantity
		p.GrandTotal = p.GrandTotal.Add(total)
	}
	return p
}

// =============================================================================
// RESUPPLIES
// =============================================================================

// RecordResupply processes an incoming order.
//
// The shipping total is allocated proportionally by unit count across the
// order's valid lines. Tax per line is computed on the base price only.
// A line matching an existing lot merges into it; otherwise a new lot is
// created with the line's count as its amortization base. All entries
// share one order id.
func (b *Book) RecordResupply(items []ResupplyItem, totalShipping, taxRatePercent decimal.Decimal) (ResupplyResult, error) {
	if totalShipping.IsNegative() {
		return ResupplyResult{}, fmt.Errorf("%w: negative shipping", inventory.ErrInvalidNumericInput)
	}
	if taxRatePercent.IsNegative() {
		return ResupplyResult{}, fmt.Errorf("%w: negative tax rate", inventory.ErrInvalidNumericInput)
	}

	taxRate := inventory.PercentToRate(taxRatePercent)
	result := ResupplyResult{OrderID: NewTransactionID(), TaxRate: taxRate}
	at := b.now()

	// First pass: validate lines and total up units for allocation.
	valid := make([]ResupplyItem, 0, len(items))
	totalUnits := 0
	for _, item := range items {
		if item.Count < 1 {
			result.Skipped = append(result.Skipped, SkippedItem{
				Brand: item.Brand, Name: item.Name, Size: item.Size,
				Reason: fmt.Errorf("%w: got %d", inventory.ErrInvalidQuantity, item.Count),
			})
			continue
		}
		if item.Price.IsNegative() {
			result.Skipped = append(result.Skipped, SkippedItem{
				Brand: item.Brand, Name: item.Name, Size: item.Size,
				Reason: fmt.Errorf("%w: negative price", inventory.ErrInvalidNumericInput),
			})
			continue
		}
		valid = append(valid, item)
		totalUnits += item.Count
	}
	if len(valid) == 0 {
		return result, fmt.Errorf("%w: no processable order lines", inventory.ErrInvalidQuantity)
	}

	shippingPerUnit := decimal.Zero
	if totalUnits > 0 {
		shippingPerUnit = totalShipping.Div(decimal.NewFromInt(int64(totalUnits)))
	}

	for _, item := range valid {
		countDec := decimal.NewFromInt(int64(item.Count))
		allocShipping := shippingPerUnit.Mul(countDec)
		// Tax applies to the base price, never to price+shipping.
		allocTax := item.Price.Mul(taxRate)

		lot := b.lots.FindDuplicate(item.Brand, item.Name, item.Size, "")
		if lot != nil {
			b.lots.MergeInto(lot, item.Count, item.Price, allocShipping, allocTax, taxRate)
		} else {
			lot = inventory.NewLot(item.Brand, item.Name, item.Size)
			lot.Type = item.Type
			b.lots.Add(lot)
			b.lots.MergeInto(lot, item.Count, item.Price, allocShipping, allocTax, taxRate)
		}

		entry := &Entry{
			ID:                   NewEntryID(),
			TransactionID:        result.OrderID,
			Timestamp:            at,
			Kind:                 KindResupply,
			LotID:                lot.ID,
			Brand:                lot.Brand,
			Name:                 lot.Name,
			Size:                 lot.Size,
			UnitPrice:            lot.UnitCost,
			Quantity:             item.Count,
			TotalCost:            lot.UnitCost.Mul(countDec),
			Price:                item.Price,
			ShippingTaxAllocated: allocShipping.Add(allocTax),
		}
		b.entries = append(b.entries, entry)
		result.Entries = append(result.Entries, *entry)
	}
	return result, nil
}

// =============================================================================
// REVERSAL
// =============================================================================

// ReverseEntry undoes quantity units of one ledger entry.
//
// Sale reversal restores the units onto the lot; resupply reversal
// removes them (undoing a resupply takes back stock that was added) and
// requires the lot to still hold that many units. A full reversal removes
// the entry; a partial one shrinks its quantity and rescales its costs.
// Reversing an entry that no longer exists reports ErrReversalNotFound.
func (b *Book) ReverseEntry(id EntryID, quantity int, taxRate decimal.Decimal) error {
	idx := -1
	for i, e := range b.entries {
		if e.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: entry %s", inventory.ErrReversalNotFound, id)
	}
	entry := b.entries[idx]

	if quantity < 1 || quantity > entry.Quantity {
		return fmt.Errorf("%w: reverse %d of %d", inventory.ErrInvalidQuantity, quantity, entry.Quantity)
	}

	lot, err := b.lots.Get(entry.LotID)
	if err != nil {
		return err
	}

	switch entry.Kind {
	case KindSale:
		lot.Count += quantity
	case KindResupply:
		if lot.Count < quantity {
			return &inventory.InsufficientStockError{
				LotID:     lot.ID,
				Brand:     lot.Brand,
				Name:      lot.Name,
				Size:      lot.Size,
				Available: lot.Count,
				Requested: quantity,
			}
		}
		lot.Count -= quantity
	}
	lot.Recompute(taxRate)

	if quantity == entry.Quantity {
		b.entries = append(b.entries[:idx], b.entries[idx+1:]...)
		return nil
	}

	oldQty := entry.Quantity
	entry.Quantity -= quantity
	newQtyDec := decimal.NewFromInt(int64(entry.Quantity))
	switch entry.Kind {
	case KindSale:
		entry.TotalCost = entry.UnitPrice.Mul(newQtyDec)
	case KindResupply:
		// Rescale the order line proportionally by the surviving quantity.
		ratio := newQtyDec.Div(decimal.NewFromInt(int64(oldQty)))
		entry.Price = entry.Price.Mul(ratio)
		entry.ShippingTaxAllocated = entry.ShippingTaxAllocated.Mul(ratio)
		entry.TotalCost = entry.UnitPrice.Mul(newQtyDec)
	}
	return nil
}

// ReverseTransaction fully reverses every entry of a transaction,
// best-effort: a resupply line whose lot no longer holds enough stock is
// skipped and reported, the rest still reverse. Reversing an unknown
// transaction id reports ErrReversalNotFound.
func (b *Book) ReverseTransaction(tx TransactionID, taxRate decimal.Decimal) (ReversalReport, error) {
	entries := b.EntriesFor(tx)
	if len(entries) == 0 {
		return ReversalReport{}, fmt.Errorf("%w: transaction %s", inventory.ErrReversalNotFound, tx)
	}

	report := ReversalReport{TransactionID: tx}
	for _, e := range entries {
		if err := b.ReverseEntry(e.ID, e.Quantity, taxRate); err != nil {
			report.Skipped = append(report.Skipped, SkippedItem{
				LotID: e.LotID, Brand: e.Brand, Name: e.Name, Size: e.Size, Reason: err,
			})
			continue
		}
		report.Reversed = append(report.Reversed, e)
	}
	return report, nil
}

func skippedFor(lot *inventory.Lot, reason error) SkippedItem {
	return SkippedItem{
		LotID:  lot.ID,
		Brand:  lot.Brand,
		Name:   lot.Name,
		Size:   lot.Size,
		Reason: reason,
	}
}
