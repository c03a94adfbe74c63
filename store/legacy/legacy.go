/*
Package legacy imports data files written by the original inventory
application.

PURPOSE:

	One-time migration path. The original app stored its state as two JSON
	files: an inventory list and a sales history list. This package reads
	both into the new model so an existing collection can be carried over.

FIELD MAPPING:

	inventory file:
	  cigar             -> Lot.Name (the old key for the product name)
	  shipping          -> Lot.Shipping (the old field held shipping+tax
	                       combined; Tax starts at zero)
	  original_quantity -> Lot.OriginalQuantity, defaulting to count for
	                       records predating amortization tracking
	  personal_rating   -> Lot.Rating
	sales file:
	  each record becomes a sale ledger entry; records predating the
	  quantity field default to quantity 1 with the per-stick price as the
	  total, matching the original loader's upgrades.

	Old records carry no stable ids, so fresh LotIDs and transaction ids
	are generated. Sale entries are linked to lots by the identity triple
	where a match exists.
*/
package legacy

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/humidor/valuation-engine/inventory"
	"github.com/humidor/valuation-engine/ledger"
)

// legacyTimeLayout is how the original app formatted sale dates.
const legacyTimeLayout = "2006-01-02 15:04:05"

type legacyLot struct {
	Brand            string      `json:"brand"`
	Cigar            string      `json:"cigar"`
	Size             string      `json:"size"`
	Type             string      `json:"type"`
	Count            json.Number `json:"count"`
	Price            json.Number `json:"price"`
	Shipping         json.Number `json:"shipping"`
	PricePerStick    json.Number `json:"price_per_stick"`
	OriginalQuantity json.Number `json:"original_quantity"`
	PersonalRating   *int        `json:"personal_rating"`
}

type legacySale struct {
	Date          string      `json:"date"`
	Brand         string      `json:"brand"`
	Cigar         string      `json:"cigar"`
	Size          string      `json:"size"`
	PricePerStick json.Number `json:"price_per_stick"`
	Quantity      json.Number `json:"quantity"`
	TotalCost     json.Number `json:"total_cost"`
}

// ImportLots reads an original-format inventory file. taxRate is used to
// recompute each lot's unit cost under the new model.
func ImportLots(r io.Reader, taxRate decimal.Decimal) ([]*inventory.Lot, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var records []legacyLot
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("decode legacy inventory: %w", err)
	}

	lots := make([]*inventory.Lot, 0, len(records))
	for i, rec := range records {
		lot := inventory.NewLot(rec.Brand, rec.Cigar, rec.Size)
		lot.Type = rec.Type

		var err error
		if lot.Count, err = legacyInt(rec.Count); err != nil {
			return nil, fmt.Errorf("record %d count: %w", i, err)
		}
		if lot.Price, err = legacyAmount(rec.Price); err != nil {
			return nil, fmt.Errorf("record %d price: %w", i, err)
		}
		// The old shipping field held shipping+tax combined; it all lands
		// on Shipping, with Tax zero, preserving the total cost basis.
		if lot.Shipping, err = legacyAmount(rec.Shipping); err != nil {
			return nil, fmt.Errorf("record %d shipping: %w", i, err)
		}
		if lot.OriginalQuantity, err = legacyInt(rec.OriginalQuantity); err != nil {
			return nil, fmt.Errorf("record %d original_quantity: %w", i, err)
		}
		if lot.OriginalQuantity <= 0 {
			lot.OriginalQuantity = lot.Count
		}
		if rec.PersonalRating != nil && *rec.PersonalRating >= 1 && *rec.PersonalRating <= 10 {
			r := *rec.PersonalRating
			lot.Rating = &r
		}

		lot.Recompute(taxRate)
		lots = append(lots, lot)
	}
	return lots, nil
}

// ImportSales reads an original-format sales history file and links each
// record to a lot by identity triple where one matches. Each record
// becomes its own transaction; the original file had no grouping key.
func ImportSales(r io.Reader, lots []*inventory.Lot) ([]ledger.Entry, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var records []legacySale
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("decode legacy sales: %w", err)
	}

	entries := make([]ledger.Entry, 0, len(records))
	for i, rec := range records {
		entry := ledger.Entry{
			ID:                   ledger.NewEntryID(),
			TransactionID:        ledger.NewTransactionID(),
			Kind:                 ledger.KindSale,
			Brand:                rec.Brand,
			Name:                 rec.Cigar,
			Size:                 rec.Size,
			Price:                decimal.Zero,
			ShippingTaxAllocated: decimal.Zero,
		}

		ts, err := time.Parse(legacyTimeLayout, rec.Date)
		if err != nil {
			return nil, fmt.Errorf("record %d date %q: %w", i, rec.Date, err)
		}
		entry.Timestamp = ts

		if entry.UnitPrice, err = legacyAmount(rec.PricePerStick); err != nil {
			return nil, fmt.Errorf("record %d price_per_stick: %w", i, err)
		}
		if entry.Quantity, err = legacyInt(rec.Quantity); err != nil {
			return nil, fmt.Errorf("record %d quantity: %w", i, err)
		}
		if entry.Quantity <= 0 {
			entry.Quantity = 1
		}
		if entry.TotalCost, err = legacyAmount(rec.TotalCost); err != nil {
			return nil, fmt.Errorf("record %d total_cost: %w", i, err)
		}
		if entry.TotalCost.IsZero() {
			entry.TotalCost = entry.UnitPrice.Mul(decimal.NewFromInt(int64(entry.Quantity)))
		}

		for _, lot := range lots {
			if lot.IdentityMatches(rec.Brand, rec.Cigar, rec.Size) {
				entry.LotID = lot.ID
				break
			}
		}

		entries = append(entries, entry)
	}
	return entries, nil
}

func legacyAmount(n json.Number) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", inventory.ErrInvalidNumericInput, n.String())
	}
	return d, nil
}

func legacyInt(n json.Number) (int, error) {
	if n == "" {
		return 0, nil
	}
	v, err := n.Int64()
	if err != nil {
		// The old app stored some counts as floats; accept whole values.
		f, ferr := n.Float64()
		if ferr != nil || f != float64(int64(f)) {
			return 0, fmt.Errorf("%w: %q", inventory.ErrInvalidNumericInput, n.String())
		}
		v = int64(f)
	}
	return int(v), nil
}
