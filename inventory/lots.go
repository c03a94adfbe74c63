/*
lots.go - The lot collection: duplicate detection and merging

PURPOSE:

	LotStore owns the in-memory list of lots. It detects identity
	collisions, folds resupplies into existing lots with weighted totals,
	and routes edits through conflict detection so a rename that collides
	with another lot is surfaced instead of silently creating a duplicate.

MERGE ALGORITHM:

	When a purchase matches an existing in-stock lot, totals are SUMMED
	(prices are lot totals, not per-unit, so no averaging) and the
	amortization base resets to the combined count - the new purchase is
	folded in as if bought together with the old stock. A zero-stock lot is
	instead overwritten outright so stale history does not pollute the new
	cost basis.

EDIT CONFLICTS:

	ApplyEdit never resolves a collision on its own. It reports a
	DuplicateLotError and leaves the lot untouched; the caller then picks
	one of three explicit outcomes:
	  ResolveCombine      - merge the edited lot into the existing one
	  ResolveKeepSeparate - apply the edit under a disambiguating suffix
	  (cancel)            - simply do nothing; no state was changed

CONCURRENCY:

	None. The store is single-threaded by contract; the engine facade
	serializes callers.

SEE ALSO:
  - types.go: Lot and MergeEvent
  - valuation.go: Rollups over Lots()
*/
package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LOT STORE
// =============================================================================

type LotStore struct {
	lots []*Lot
	now  func() time.Time
}

func NewLotStore() *LotStore {
	return &LotStore{now: time.Now}
}

// SetClock overrides the store's time source. Tests only.
func (s *LotStore) SetClock(now func() time.Time) {
	s.now = now
}

// Add appends a lot to the collection.
func (s *LotStore) Add(l *Lot) {
	s.lots = append(s.lots, l)
}

// Get returns the lot with the given id, or ErrLotNotFound.
func (s *LotStore) Get(id LotID) (*Lot, error) {
	for _, l := range s.lots {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrLotNotFound, id)
}

// Remove deletes the lot with the given id. Removal is an explicit user
// action; zero-stock lots are otherwise kept indefinitely.
func (s *LotStore) Remove(id LotID) error {
	for i, l := range s.lots {
		if l.ID == id {
			s.lots = append(s.lots[:i], s.lots[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrLotNotFound, id)
}

// Lots returns the lots in insertion order. The slice is a copy; the lots
// themselves are shared.
func (s *LotStore) Lots() []*Lot {
	out := make([]*Lot, len(s.lots))
	copy(out, s.lots)
	return out
}

// Len returns the number of lots, zero-stock records included.
func (s *LotStore) Len() int {
	return len(s.lots)
}

// Restore replaces the collection wholesale. Used when loading persisted
// state at startup.
func (s *LotStore) Restore(lots []*Lot) {
	s.lots = append([]*Lot(nil), lots...)
}

// Search returns lots whose brand, name, size, or type contains q,
// case-insensitively. An empty query returns everything.
func (s *LotStore) Search(q string) []*Lot {
	if strings.TrimSpace(q) == "" {
		return s.Lots()
	}
	q = strings.ToLower(q)
	var out []*Lot
	for _, l := range s.lots {
		haystack := strings.ToLower(l.Brand + " " + l.Name + " " + l.Size + " " + l.Type)
		if strings.Contains(haystack, q) {
			out = append(out, l)
		}
	}
	return out
}

// =============================================================================
// DUPLICATE DETECTION
// =============================================================================

// FindDuplicate returns the first lot matching (brand, name, size)
// case-insensitively, or nil. exclude lets edit flows search for a
// DIFFERENT lot that now collides with the one being edited.
func (s *LotStore) FindDuplicate(brand, name, size string, exclude LotID) *Lot {
	for _, l := range s.lots {
		if l.ID == exclude {
			continue
		}
		if l.IdentityMatches(brand, name, size) {
			return l
		}
	}
	return nil
}

// =============================================================================
// MERGE
// =============================================================================

// MergeInto folds a new purchase into an existing lot.
//
// In-stock lot: count, price, shipping, and tax are summed and the
// amortization base resets to the combined count. Zero-stock lot: the
// fields are set outright, treating this as a fresh lot.
//
// A MergeEvent recording the incoming purchase is always appended.
func (s *LotStore) MergeInto(existing *Lot, count int, price, shipping, tax, taxRate decimal.Decimal) {
	if existing.Count > 0 {
		existing.Count += count
		existing.Price = existing.Price.Add(price)
		existing.Shipping = existing.Shipping.Add(shipping)
		existing.Tax = existing.Tax.Add(tax)
		// Merging resets the amortization base: the new purchase is folded
		// in as if the whole combined lot was bought together.
		existing.OriginalQuantity = existing.Count
	} else {
		existing.Count = count
		existing.Price = price
		existing.Shipping = shipping
		existing.Tax = tax
		existing.OriginalQuantity = count
	}
	existing.Recompute(taxRate)

	existing.History = append(existing.History, MergeEvent{
		At:       s.now(),
		Count:    count,
		Price:    price,
		Shipping: shipping,
		Tax:      tax,
		UnitCost: existing.UnitCost,
	})
}

// =============================================================================
// EDITS AND CONFLICT RESOLUTION
// =============================================================================

// LotEdit carries field changes for ApplyEdit. Nil pointers mean "leave
// unchanged". ClearRating removes the rating; it wins over Rating.
type LotEdit struct {
	Brand       *string
	Name        *string
	Size        *string
	Type        *string
	Count       *int
	Price       *decimal.Decimal
	Shipping    *decimal.Decimal
	Tax         *decimal.Decimal
	Rating      *int
	ClearRating bool
}

func (e LotEdit) changesIdentity(l *Lot) (brand, name, size string, changed bool) {
	brand, name, size = l.Brand, l.Name, l.Size
	if e.Brand != nil {
		brand = *e.Brand
	}
	if e.Name != nil {
		name = *e.Name
	}
	if e.Size != nil {
		size = *e.Size
	}
	changed = !strings.EqualFold(brand, l.Brand) ||
		!strings.EqualFold(name, l.Name) ||
		!strings.EqualFold(size, l.Size)
	return brand, name, size, changed
}

// ApplyEdit validates and applies an edit to the lot with the given id,
// recomputing the unit cost afterwards.
//
// If the edit changes the identity triple onto one held by another lot,
// nothing is applied and a DuplicateLotError is reported; the caller must
// choose ResolveCombine, ResolveKeepSeparate, or abandon the edit.
func (s *LotStore) ApplyEdit(id LotID, edit LotEdit, taxRate decimal.Decimal) (*Lot, error) {
	lot, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if err := validateEdit(edit); err != nil {
		return nil, err
	}

	brand, name, size, _ := edit.changesIdentity(lot)
	if dup := s.FindDuplicate(brand, name, size, id); dup != nil {
		return nil, &DuplicateLotError{Existing: dup, EditedID: id}
	}

	applyEdit(lot, edit)
	lot.Recompute(taxRate)
	return lot, nil
}

// ResolveCombine resolves an identity collision by merging the edited lot
// into the existing one and removing the edited lot. The edited lot's
// current stock and cost basis are what get merged; the pending identity
// fields of the edit are discarded (they equal the existing lot's).
func (s *LotStore) ResolveCombine(editedID LotID, existingID LotID, taxRate decimal.Decimal) (*Lot, error) {
	edited, err := s.Get(editedID)
	if err != nil {
		return nil, err
	}
	existing, err := s.Get(existingID)
	if err != nil {
		return nil, err
	}
	s.MergeInto(existing, edited.Count, edited.Price, edited.Shipping, edited.Tax, taxRate)
	if err := s.Remove(editedID); err != nil {
		return nil, err
	}
	return existing, nil
}

// ResolveKeepSeparate resolves an identity collision by applying the edit
// under a mechanically disambiguated name: " (2)", " (3)", ... appended
// until the triple no longer collides.
func (s *LotStore) ResolveKeepSeparate(id LotID, edit LotEdit, taxRate decimal.Decimal) (*Lot, error) {
	lot, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if err := validateEdit(edit); err != nil {
		return nil, err
	}

	brand, name, size, _ := edit.changesIdentity(lot)
	base := name
	for n := 2; s.FindDuplicate(brand, name, size, id) != nil; n++ {
		name = fmt.Sprintf("%s (%d)", base, n)
	}
	edit.Name = &name

	applyEdit(lot, edit)
	lot.Recompute(taxRate)
	return lot, nil
}

func validateEdit(edit LotEdit) error {
	if edit.Rating != nil && (*edit.Rating < 1 || *edit.Rating > 10) {
		return fmt.Errorf("%w: got %d", ErrInvalidRating, *edit.Rating)
	}
	if edit.Count != nil && *edit.Count < 0 {
		return fmt.Errorf("%w: count %d", ErrInvalidQuantity, *edit.Count)
	}
	return nil
}

func applyEdit(lot *Lot, edit LotEdit) {
	if edit.Brand != nil {
		lot.Brand = *edit.Brand
	}
	if edit.Name != nil {
		lot.Name = *edit.Name
	}
	if edit.Size != nil {
		lot.Size = *edit.Size
	}
	if edit.Type != nil {
		lot.Type = *edit.Type
	}
	if edit.Count != nil {
		lot.Count = *edit.Count
	}
	if edit.Price != nil {
		lot.Price = *edit.Price
	}
	if edit.Shipping != nil {
		lot.Shipping = *edit.Shipping
	}
	if edit.Tax != nil {
		lot.Tax = *edit.Tax
	}
	if edit.ClearRating {
		lot.Rating = nil
	} else if edit.Rating != nil {
		r := *edit.Rating
		lot.Rating = &r
	}
}
