/*
Package engine composes the lot store, the ledger, and configuration into
the single service the outer layers talk to.

PURPOSE:

	The Service is the one mutating entry point. It serializes callers with
	a mutex (no two merges or reversals may interleave against the same
	lot), applies each operation to the in-memory state, and then asks the
	Persister to write the last computed state.

PERSISTENCE MODEL:

	Persistence is fail-soft. If the save after a mutation fails, the
	in-memory mutation is kept, a warning is logged, and the caller is
	notified via an error wrapping ErrPersistFailed - distinguishable from
	an operation failure, where no state changed.

TAX RATE:

	The service holds the current default tax rate as explicit state (no
	package-level global). Every resupply takes its rate as a parameter; a
	successful resupply promotes that rate to the new default, matching the
	observable behavior of the legacy application.

SEE ALSO:
  - inventory: Lot model, costing, duplicate detection
  - ledger: Sales, resupplies, and reversal
  - store/sqlite, store/memory: Persister implementations
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/humidor/valuation-engine/inventory"
	"github.com/humidor/valuation-engine/ledger"
)

// ErrPersistFailed wraps a save failure that followed a successful
// in-memory mutation. The mutation is retained.
var ErrPersistFailed = errors.New("persist failed")

// Persister writes and reads the last computed state wholesale.
type Persister interface {
	Save(ctx context.Context, lots []*inventory.Lot, entries []ledger.Entry) error
	Load(ctx context.Context) ([]*inventory.Lot, []ledger.Entry, error)
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	mu        sync.Mutex
	lots      *inventory.LotStore
	book      *ledger.Book
	taxRate   decimal.Decimal
	persister Persister
	log       *logrus.Logger
}

func New(defaultTaxRate decimal.Decimal, persister Persister, log *logrus.Logger) *Service {
	lots := inventory.NewLotStore()
	return &Service{
		lots:      lots,
		book:      ledger.NewBook(lots),
		taxRate:   defaultTaxRate,
		persister: persister,
		log:       log,
	}
}

// LoadState restores lots and ledger entries from the persister.
func (s *Service) LoadState(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lots, entries, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	s.lots.Restore(lots)
	s.book.Restore(entries)
	return nil
}

// ImportState replaces the in-memory state with externally built lots
// and entries (legacy migration) and persists the result immediately.
func (s *Service) ImportState(ctx context.Context, lots []*inventory.Lot, entries []ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lots.Restore(lots)
	s.book.Restore(entries)
	return s.save(ctx)
}

// save writes the last computed state. Fail-soft: the in-memory state is
// already mutated and stays that way regardless.
func (s *Service) save(ctx context.Context) error {
	if err := s.persister.Save(ctx, s.lots.Lots(), s.book.Entries()); err != nil {
		s.log.WithError(err).Warn("state not persisted; in-memory state retained")
		return fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	return nil
}

// =============================================================================
// TAX RATE
// =============================================================================

// TaxRate returns the current default rate fraction.
func (s *Service) TaxRate() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.taxRate
}

// SetTaxRate replaces the default rate fraction.
func (s *Service) SetTaxRate(rate decimal.Decimal) error {
	if rate.IsNegative() {
		return fmt.Errorf("%w: negative tax rate", inventory.ErrInvalidNumericInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taxRate = rate
	return nil
}

// =============================================================================
// COSTING
// =============================================================================

// ComputeUnitCost runs the amortized unit-cost formula with the current
// default tax rate. Pass originalQuantity 0 for legacy lots without an
// amortization base.
func (s *Service) ComputeUnitCost(price, shippingTax decimal.Decimal, count, originalQuantity int) decimal.Decimal {
	return inventory.UnitCost(price, shippingTax, count, originalQuantity, s.TaxRate())
}

// =============================================================================
// LOTS
// =============================================================================

// Lots returns clones of lots matching the query (all lots for "").
func (s *Service) Lots(query string) []*inventory.Lot {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := s.lots.Search(query)
	out := make([]*inventory.Lot, len(matched))
	for i, l := range matched {
		out[i] = l.Clone()
	}
	return out
}

// GetLot returns a clone of one lot.
func (s *Service) GetLot(id inventory.LotID) (*inventory.Lot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lot, err := s.lots.Get(id)
	if err != nil {
		return nil, err
	}
	return lot.Clone(), nil
}

// FindDuplicateLot returns a clone of the lot holding the given identity
// triple, or nil.
func (s *Service) FindDuplicateLot(brand, name, size string, exclude inventory.LotID) *inventory.Lot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dup := s.lots.FindDuplicate(brand, name, size, exclude); dup != nil {
		return dup.Clone()
	}
	return nil
}

// CreateLot adds a lot manually with zero stock and cost. An empty name
// gets a numbered placeholder; a colliding identity reports
// DuplicateLotError for the caller to resolve.
func (s *Service) CreateLot(ctx context.Context, brand, name, size, typ string) (*inventory.Lot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(name) == "" {
		name = fmt.Sprintf("New Lot %d", s.lots.Len()+1)
		for n := s.lots.Len() + 2; s.lots.FindDuplicate(brand, name, size, "") != nil; n++ {
			name = fmt.Sprintf("New Lot %d", n)
		}
	} else if dup := s.lots.FindDuplicate(brand, name, size, ""); dup != nil {
		return nil, &inventory.DuplicateLotError{Existing: dup.Clone()}
	}

	lot := inventory.NewLot(brand, name, size)
	lot.Type = typ
	lot.Recompute(s.taxRate)
	s.lots.Add(lot)
	return lot.Clone(), s.save(ctx)
}

// EditLot applies field changes to a lot. An identity collision leaves
// the lot untouched and reports DuplicateLotError with the colliding lot;
// the caller picks combine, keep-separate, or cancel.
func (s *Service) EditLot(ctx context.Context, id inventory.LotID, edit inventory.LotEdit) (*inventory.Lot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lot, err := s.lots.ApplyEdit(id, edit, s.taxRate)
	if err != nil {
		return nil, err
	}
	return lot.Clone(), s.save(ctx)
}

// ResolveCombine merges the edited lot into the existing one and deletes
// the edited lot.
func (s *Service) ResolveCombine(ctx context.Context, editedID, existingID inventory.LotID) (*inventory.Lot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lot, err := s.lots.ResolveCombine(editedID, existingID, s.taxRate)
	if err != nil {
		return nil, err
	}
	return lot.Clone(), s.save(ctx)
}

// ResolveKeepSeparate applies the conflicting edit under a suffixed name.
func (s *Service) ResolveKeepSeparate(ctx context.Context, id inventory.LotID, edit inventory.LotEdit) (*inventory.Lot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lot, err := s.lots.ResolveKeepSeparate(id, edit, s.taxRate)
	if err != nil {
		return nil, err
	}
	return lot.Clone(), s.save(ctx)
}

// MergeLots folds a purchase (count, total price, shipping, tax) into an
// existing lot directly.
func (s *Service) MergeLots(ctx context.Context, existingID inventory.LotID, count int, price, shipping, tax decimal.Decimal) (*inventory.Lot, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: got %d", inventory.ErrInvalidQuantity, count)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lot, err := s.lots.Get(existingID)
	if err != nil {
		return nil, err
	}
	s.lots.MergeInto(lot, count, price, shipping, tax, s.taxRate)
	return lot.Clone(), s.save(ctx)
}

// RemoveLot deletes a lot record. Explicit user action; ledger entries
// referencing it remain as history.
func (s *Service) RemoveLot(ctx context.Context, id inventory.LotID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lots.Remove(id); err != nil {
		return err
	}
	return s.save(ctx)
}

// =============================================================================
// SALES AND RESUPPLIES
// =============================================================================

// RecordSale processes a multi-line sale best-effort. The returned error,
// if any, wraps ErrPersistFailed; the sale itself is in the result.
func (s *Service) RecordSale(ctx context.Context, items []ledger.SaleItem) (ledger.SaleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := s.book.RecordSale(items, s.taxRate)
	if len(result.Entries) == 0 {
		// Nothing changed, nothing to save.
		return result, nil
	}
	return result, s.save(ctx)
}

// PreviewSale totals selected lines without recording anything.
func (s *Service) PreviewSale(items []ledger.SaleItem) ledger.Preview {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.PreviewSale(items)
}

// RecordResupply processes an incoming order and promotes its tax rate to
// the new default.
func (s *Service) RecordResupply(ctx context.Context, items []ledger.ResupplyItem, totalShipping, taxRatePercent decimal.Decimal) (ledger.ResupplyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, err := s.book.RecordResupply(items, totalShipping, taxRatePercent)
	if err != nil {
		return result, err
	}
	s.taxRate = result.TaxRate
	return result, s.save(ctx)
}

// =============================================================================
// REVERSAL
// =============================================================================

// ReverseSaleEntry returns quantity units of a sale back into stock.
func (s *Service) ReverseSaleEntry(ctx context.Context, id ledger.EntryID, quantity int) error {
	return s.reverseEntry(ctx, id, quantity, ledger.KindSale)
}

// ReverseResupplyEntry removes quantity units a resupply had added.
func (s *Service) ReverseResupplyEntry(ctx context.Context, id ledger.EntryID, quantity int) error {
	return s.reverseEntry(ctx, id, quantity, ledger.KindResupply)
}

func (s *Service) reverseEntry(ctx context.Context, id ledger.EntryID, quantity int, want ledger.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, err := s.book.Get(id)
	if err != nil {
		return err
	}
	if entry.Kind != want {
		return fmt.Errorf("%w: entry %s is a %s", inventory.ErrReversalNotFound, id, entry.Kind)
	}
	if err := s.book.ReverseEntry(id, quantity, s.taxRate); err != nil {
		return err
	}
	return s.save(ctx)
}

// ReverseTransaction fully reverses every entry of a transaction.
func (s *Service) ReverseTransaction(ctx context.Context, tx ledger.TransactionID) (ledger.ReversalReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	report, err := s.book.ReverseTransaction(tx, s.taxRate)
	if err != nil {
		return report, err
	}
	return report, s.save(ctx)
}

// =============================================================================
// VIEWS
// =============================================================================

// LedgerEntries returns entries, optionally filtered by kind ("" for all).
func (s *Service) LedgerEntries(kind ledger.Kind) []ledger.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.book.Entries()
	if kind == "" {
		return entries
	}
	var out []ledger.Entry
	for _, e := range entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// TransactionEntries returns the entries of one transaction.
func (s *Service) TransactionEntries(tx ledger.TransactionID) []ledger.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.EntriesFor(tx)
}

// Aggregate recomputes the valuation rollup from current lot state.
func (s *Service) Aggregate() inventory.ValuationSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lots.Summary()
}
