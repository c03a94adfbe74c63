/*
errors.go - Centralized error types for the valuation engine

PURPOSE:

	All domain error kinds in one place for consistency and discoverability.
	The ledger and engine packages wrap these with additional context.

ERROR CATEGORIES:
 1. Input errors   - Non-numeric or out-of-range field values
 2. Stock errors   - Sale/reversal quantity exceeds available count
 3. Conflict errors - An edit collides with an existing lot's identity
 4. Lookup errors  - Lot or ledger entry no longer exists

POLICY:

	No error here is fatal to the process. Batch operations skip the
	offending line item and report it; the rest of the batch proceeds.
	Conflicts are surfaced for a caller decision, never resolved
	automatically.

USAGE:

	if errors.Is(err, inventory.ErrInsufficientStock) { ... }

	var conflict *inventory.DuplicateLotError
	if errors.As(err, &conflict) {
	    // offer combine / keep-separate / cancel
	}
*/
package inventory

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidNumericInput is reported when a price, shipping, count, or
	// rate field cannot be parsed. Recovered locally; never fatal.
	ErrInvalidNumericInput = errors.New("invalid numeric input")

	// ErrInsufficientStock is reported when a sale or resupply reversal
	// asks for more units than the lot holds. The line item is skipped.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrDuplicateLot is reported when an edit or purchase collides with an
	// existing lot's (brand, name, size) identity. The caller decides among
	// combine, keep separate, or cancel.
	ErrDuplicateLot = errors.New("duplicate lot")

	// ErrLotNotFound is reported when a referenced lot does not exist.
	ErrLotNotFound = errors.New("lot not found")

	// ErrReversalNotFound is reported when reversing a ledger entry or
	// transaction that no longer exists. The reversal is a no-op.
	ErrReversalNotFound = errors.New("reversal target not found")

	// ErrInvalidRating is reported for ratings outside 1-10.
	ErrInvalidRating = errors.New("rating must be between 1 and 10")

	// ErrInvalidQuantity is reported for zero or negative quantities where
	// a positive unit count is required.
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientStockError reports a stock shortage on one line item.
type InsufficientStockError struct {
	LotID     LotID
	Brand     string
	Name      string
	Size      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s %s (%s): available %d, requested %d",
		e.Brand, e.Name, e.Size, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// DuplicateLotError reports an identity collision. Existing is the lot
// already holding the colliding identity; EditedID is the lot whose edit
// triggered the collision (empty for new-lot flows).
type DuplicateLotError struct {
	Existing *Lot
	EditedID LotID
}

func (e *DuplicateLotError) Error() string {
	return fmt.Sprintf("duplicate lot: %s %s (%s) already exists",
		e.Existing.Brand, e.Existing.Name, e.Existing.Size)
}

func (e *DuplicateLotError) Unwrap() error {
	return ErrDuplicateLot
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input
// rather than an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidNumericInput) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrDuplicateLot) ||
		errors.Is(err, ErrInvalidRating) ||
		errors.Is(err, ErrInvalidQuantity)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLotNotFound) ||
		errors.Is(err, ErrReversalNotFound)
}
