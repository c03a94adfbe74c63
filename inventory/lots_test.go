package inventory_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humidor/valuation-engine/inventory"
)

var testRate = dec("0.086")

func newTestStore() *inventory.LotStore {
	s := inventory.NewLotStore()
	s.SetClock(func() time.Time { return time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC) })
	return s
}

func addLot(s *inventory.LotStore, brand, name, size string, count int, price, shipping string) *inventory.Lot {
	l := inventory.NewLot(brand, name, size)
	l.Count = count
	l.OriginalQuantity = count
	l.Price = dec(price)
	l.Shipping = dec(shipping)
	l.Recompute(testRate)
	s.Add(l)
	return l
}

// =============================================================================
// DUPLICATE DETECTION
// =============================================================================

func TestFindDuplicate_CaseInsensitive(t *testing.T) {
	// GIVEN: a lot keyed (Padron, 1926, Robusto)
	// WHEN: searching with different casing
	// THEN: the lot is found

	s := newTestStore()
	lot := addLot(s, "Padron", "1926", "Robusto", 10, "50", "10")

	found := s.FindDuplicate("PADRON", "1926", "robusto", "")
	require.NotNil(t, found)
	assert.Equal(t, lot.ID, found.ID)
}

func TestFindDuplicate_NoMatch(t *testing.T) {
	s := newTestStore()
	addLot(s, "Padron", "1926", "Robusto", 10, "50", "10")

	assert.Nil(t, s.FindDuplicate("Padron", "1964", "Robusto", ""))
}

func TestFindDuplicate_ExcludeSelf(t *testing.T) {
	// GIVEN: one lot
	// WHEN: an edit flow searches for a DIFFERENT lot with the same identity
	// THEN: the lot itself is not reported as its own duplicate

	s := newTestStore()
	lot := addLot(s, "Padron", "1926", "Robusto", 10, "50", "10")

	assert.Nil(t, s.FindDuplicate("Padron", "1926", "Robusto", lot.ID))
}

// =============================================================================
// MERGE
// =============================================================================

func TestMergeInto_InStockLot_SumsTotals(t *testing.T) {
	// GIVEN: an existing lot of 10 units, $50 price, $10 shipping
	// WHEN: merging a purchase of 5 units at $30 total, $5 shipping
	// THEN: totals are summed and the amortization base resets to 15

	s := newTestStore()
	lot := addLot(s, "Padron", "1926", "Robusto", 10, "50", "10")

	s.MergeInto(lot, 5, dec("30"), dec("5"), decimal.Zero, testRate)

	assert.Equal(t, 15, lot.Count)
	assert.Equal(t, "80", lot.Price.String())
	assert.Equal(t, "15", lot.Shipping.String())
	assert.Equal(t, 15, lot.OriginalQuantity)

	// Unit cost recomputed from combined totals:
	// (80/15)*1.086 + 15/15
	want := dec("80").Div(dec("15")).Mul(dec("1.086")).Add(dec("1"))
	assert.True(t, lot.UnitCost.Equal(want), "got %s want %s", lot.UnitCost, want)
}

func TestMergeInto_ZeroStockLot_TreatedAsFresh(t *testing.T) {
	// GIVEN: a depleted lot with stale totals
	// WHEN: a resupply matches it
	// THEN: fields are overwritten, not summed with the stale values

	s := newTestStore()
	lot := addLot(s, "Padron", "1926", "Robusto", 0, "50", "10")

	s.MergeInto(lot, 10, dec("50"), dec("10"), dec("4.30"), testRate)

	assert.Equal(t, 10, lot.Count)
	assert.Equal(t, "50", lot.Price.String())
	assert.Equal(t, "10", lot.Shipping.String())
	assert.Equal(t, "4.3", lot.Tax.String())
	assert.Equal(t, 10, lot.OriginalQuantity)
	assert.Equal(t, "6.86", lot.UnitCost.String())
}

func TestMergeInto_AppendsHistory(t *testing.T) {
	s := newTestStore()
	lot := addLot(s, "Padron", "1926", "Robusto", 10, "50", "10")

	s.MergeInto(lot, 5, dec("30"), dec("5"), decimal.Zero, testRate)

	require.Len(t, lot.History, 1)
	ev := lot.History[0]
	assert.Equal(t, 5, ev.Count)
	assert.Equal(t, "30", ev.Price.String())
	assert.Equal(t, "5", ev.Shipping.String())
	assert.True(t, ev.UnitCost.Equal(lot.UnitCost))
}

// =============================================================================
// EDITS AND CONFLICT RESOLUTION
// =============================================================================

func strptr(s string) *string { return &s }
func intptr(n int) *int       { return &n }

func TestApplyEdit_FieldChange_Recomputes(t *testing.T) {
	// GIVEN: a 10-unit lot
	// WHEN: editing the price
	// THEN: the unit cost is recomputed

	s := newTestStore()
	lot := addLot(s, "Padron", "1926", "Robusto", 10, "50", "10")
	newPrice := dec("100")

	got, err := s.ApplyEdit(lot.ID, inventory.LotEdit{Price: &newPrice}, testRate)
	require.NoError(t, err)

	assert.Equal(t, "100", got.Price.String())
	// (100/10)*1.086 + 10/10 = 11.86
	assert.Equal(t, "11.86", got.UnitCost.String())
}

func TestApplyEdit_IdentityCollision_ReportsConflict(t *testing.T) {
	// GIVEN: two lots
	// WHEN: renaming one onto the other's identity
	// THEN: nothing changes and a DuplicateLotError names the existing lot

	s := newTestStore()
	existing := addLot(s, "Padron", "1926", "Robusto", 10, "50", "10")
	edited := addLot(s, "Padron", "1964", "Robusto", 5, "30", "5")

	_, err := s.ApplyEdit(edited.ID, inventory.LotEdit{Name: strptr("1926")}, testRate)
	require.Error(t, err)

	var conflict *inventory.DuplicateLotError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, existing.ID, conflict.Existing.ID)
	assert.Equal(t, edited.ID, conflict.EditedID)

	// Cancel is the default outcome: the edited lot is untouched.
	assert.Equal(t, "1964", edited.Name)
}

func TestResolveCombine_MergesAndRemovesEditedLot(t *testing.T) {
	// GIVEN: a collision between an edited lot and an existing one
	// WHEN: resolving with combine
	// THEN: the edited lot's stock folds into the existing lot and is removed

	s := newTestStore()
	existing := addLot(s, "Padron", "1926", "Robusto", 10, "50", "10")
	edited := addLot(s, "Padron", "1964", "Robusto", 5, "30", "5")

	got, err := s.ResolveCombine(edited.ID, existing.ID, testRate)
	require.NoError(t, err)

	assert.Equal(t, 15, got.Count)
	assert.Equal(t, "80", got.Price.String())
	assert.Equal(t, 15, got.OriginalQuantity)
	assert.Equal(t, 1, s.Len())
	_, err = s.Get(edited.ID)
	assert.ErrorIs(t, err, inventory.ErrLotNotFound)
}

func TestResolveKeepSeparate_SuffixesName(t *testing.T) {
	// GIVEN: a collision
	// WHEN: resolving with keep-separate
	// THEN: the edit applies under a " (2)" suffix that avoids the collision

	s := newTestStore()
	addLot(s, "Padron", "1926", "Robusto", 10, "50", "10")
	edited := addLot(s, "Padron", "1964", "Robusto", 5, "30", "5")

	got, err := s.ResolveKeepSeparate(edited.ID, inventory.LotEdit{Name: strptr("1926")}, testRate)
	require.NoError(t, err)

	assert.Equal(t, "1926 (2)", got.Name)
	assert.Equal(t, 2, s.Len())
	assert.Nil(t, s.FindDuplicate("Padron", "1926 (2)", "Robusto", got.ID))
}

func TestResolveKeepSeparate_SkipsTakenSuffixes(t *testing.T) {
	s := newTestStore()
	addLot(s, "Padron", "1926", "Robusto", 10, "50", "10")
	addLot(s, "Padron", "1926 (2)", "Robusto", 3, "15", "2")
	edited := addLot(s, "Padron", "1964", "Robusto", 5, "30", "5")

	got, err := s.ResolveKeepSeparate(edited.ID, inventory.LotEdit{Name: strptr("1926")}, testRate)
	require.NoError(t, err)
	assert.Equal(t, "1926 (3)", got.Name)
}

func TestApplyEdit_RatingValidation(t *testing.T) {
	s := newTestStore()
	lot := addLot(s, "Padron", "1926", "Robusto", 10, "50", "10")

	_, err := s.ApplyEdit(lot.ID, inventory.LotEdit{Rating: intptr(11)}, testRate)
	assert.ErrorIs(t, err, inventory.ErrInvalidRating)

	got, err := s.ApplyEdit(lot.ID, inventory.LotEdit{Rating: intptr(9)}, testRate)
	require.NoError(t, err)
	require.NotNil(t, got.Rating)
	assert.Equal(t, 9, *got.Rating)

	got, err = s.ApplyEdit(lot.ID, inventory.LotEdit{ClearRating: true}, testRate)
	require.NoError(t, err)
	assert.Nil(t, got.Rating)
}

func TestApplyEdit_NegativeCountRejected(t *testing.T) {
	s := newTestStore()
	lot := addLot(s, "Padron", "1926", "Robusto", 10, "50", "10")

	_, err := s.ApplyEdit(lot.ID, inventory.LotEdit{Count: intptr(-1)}, testRate)
	assert.ErrorIs(t, err, inventory.ErrInvalidQuantity)
}

// =============================================================================
// SEARCH AND LIFECYCLE
// =============================================================================

func TestSearch_SubstringAcrossFields(t *testing.T) {
	s := newTestStore()
	addLot(s, "Padron", "1926", "Robusto", 10, "50", "10")
	addLot(s, "Arturo Fuente", "Hemingway", "Short Story", 5, "40", "8")

	assert.Len(t, s.Search("padron"), 1)
	assert.Len(t, s.Search("SHORT"), 1)
	assert.Len(t, s.Search(""), 2)
	assert.Empty(t, s.Search("cohiba"))
}

func TestZeroCountLot_IsKept(t *testing.T) {
	// Depleted lots remain as records until explicitly removed.
	s := newTestStore()
	lot := addLot(s, "Padron", "1926", "Robusto", 0, "50", "10")

	assert.Equal(t, 1, s.Len())
	got, err := s.Get(lot.ID)
	require.NoError(t, err)
	assert.False(t, got.InStock())
}

func TestRemove_UnknownLot(t *testing.T) {
	s := newTestStore()
	assert.ErrorIs(t, s.Remove("nope"), inventory.ErrLotNotFound)
}
