/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:

	Defines the JSON structures for API communication, decoupling the
	internal domain model from the external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY VALUES:

	All money fields are JSON strings ("6.86"), produced from and parsed
	back into decimal.Decimal, so clients never see float artifacts.

VALIDATION:

	Parsing and validation happen in handlers; DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/humidor/valuation-engine/inventory"
	"github.com/humidor/valuation-engine/ledger"
)

// =============================================================================
// LOTS
// =============================================================================

type LotDTO struct {
	ID               string          `json:"id"`
	Brand            string          `json:"brand"`
	Name             string          `json:"name"`
	Size             string          `json:"size"`
	Type             string          `json:"type"`
	Count            int             `json:"count"`
	Price            string          `json:"price"`
	Shipping         string          `json:"shipping"`
	Tax              string          `json:"tax"`
	ShippingTax      string          `json:"shipping_tax"`
	UnitCost         string          `json:"unit_cost"`
	OriginalQuantity int             `json:"original_quantity"`
	Rating           *int            `json:"rating,omitempty"`
	History          []MergeEventDTO `json:"history,omitempty"`
}

type MergeEventDTO struct {
	At       time.Time `json:"at"`
	Count    int       `json:"count"`
	Price    string    `json:"price"`
	Shipping string    `json:"shipping"`
	Tax      string    `json:"tax"`
	UnitCost string    `json:"unit_cost"`
}

type CreateLotRequest struct {
	Brand string `json:"brand"`
	Name  string `json:"name"`
	Size  string `json:"size"`
	Type  string `json:"type"`
}

// EditLotRequest carries field changes; absent fields are untouched.
type EditLotRequest struct {
	Brand       *string `json:"brand"`
	Name        *string `json:"name"`
	Size        *string `json:"size"`
	Type        *string `json:"type"`
	Count       *int    `json:"count"`
	Price       *string `json:"price"`
	Shipping    *string `json:"shipping"`
	Tax         *string `json:"tax"`
	Rating      *int    `json:"rating"`
	ClearRating bool    `json:"clear_rating"`
}

type CombineRequest struct {
	ExistingID string `json:"existing_id"`
}

type MergeRequest struct {
	Count    int    `json:"count"`
	Price    string `json:"price"`
	Shipping string `json:"shipping"`
	Tax      string `json:"tax"`
}

// DuplicateConflictDTO is the 409 payload for an identity collision. The
// caller resolves it with one of the listed options.
type DuplicateConflictDTO struct {
	Error    string   `json:"error"`
	Existing LotDTO   `json:"existing"`
	Options  []string `json:"options"`
}

// =============================================================================
// SALES AND RESUPPLIES
// =============================================================================

type SaleRequest struct {
	Items []SaleItemRequest `json:"items"`
}

type SaleItemRequest struct {
	LotID    string `json:"lot_id"`
	Quantity int    `json:"quantity"`
}

type SaleResponse struct {
	TransactionID string       `json:"transaction_id"`
	Entries       []EntryDTO   `json:"entries"`
	Skipped       []SkippedDTO `json:"skipped,omitempty"`
	GrandTotal    string       `json:"grand_total"`
	Warning       string       `json:"warning,omitempty"`
}

type ResupplyRequest struct {
	Items          []ResupplyItemRequest `json:"items"`
	TotalShipping  string                `json:"total_shipping"`
	TaxRatePercent string                `json:"tax_rate_percent"`
}

type ResupplyItemRequest struct {
	Brand string `json:"brand"`
	Name  string `json:"name"`
	Size  string `json:"size"`
	Type  string `json:"type"`
	Count int    `json:"count"`
	Price string `json:"price"`
}

type ResupplyResponse struct {
	OrderID string       `json:"order_id"`
	Entries []EntryDTO   `json:"entries"`
	Skipped []SkippedDTO `json:"skipped,omitempty"`
	Warning string       `json:"warning,omitempty"`
}

type EntryDTO struct {
	ID                   string    `json:"id"`
	TransactionID        string    `json:"transaction_id"`
	Timestamp            time.Time `json:"timestamp"`
	Kind                 string    `json:"kind"`
	LotID                string    `json:"lot_id"`
	Brand                string    `json:"brand"`
	Name                 string    `json:"name"`
	Size                 string    `json:"size"`
	UnitPrice            string    `json:"unit_price"`
	Quantity             int       `json:"quantity"`
	TotalCost            string    `json:"total_cost"`
	Price                string    `json:"price,omitempty"`
	ShippingTaxAllocated string    `json:"shipping_tax_allocated,omitempty"`
}

type SkippedDTO struct {
	LotID  string `json:"lot_id,omitempty"`
	Brand  string `json:"brand"`
	Name   string `json:"name"`
	Size   string `json:"size"`
	Reason string `json:"reason"`
}

type ReverseRequest struct {
	Quantity int `json:"quantity"`
}

type ReversalReportDTO struct {
	TransactionID string       `json:"transaction_id"`
	Reversed      []EntryDTO   `json:"reversed"`
	Skipped       []SkippedDTO `json:"skipped,omitempty"`
	Warning       string       `json:"warning,omitempty"`
}

// =============================================================================
// PREVIEWS AND CALCULATORS
// =============================================================================

type PreviewResponse struct {
	Lines      []PreviewLineDTO `json:"lines"`
	TotalUnits int              `json:"total_units"`
	GrandTotal string           `json:"grand_total"`
}

type PreviewLineDTO struct {
	LotID     string `json:"lot_id"`
	Brand     string `json:"brand"`
	Name      string `json:"name"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Total     string `json:"total"`
}

type ShippingCalcRequest struct {
	Shipping   string `json:"shipping"`
	TotalUnits int    `json:"total_units"`
}

type ShippingCalcResponse struct {
	TotalUnits int    `json:"total_units"`
	PerUnit    string `json:"per_unit"`
	PerFive    string `json:"per_five"`
	PerTen     string `json:"per_ten"`
}

type UnitCostRequest struct {
	Price            string `json:"price"`
	ShippingTax      string `json:"shipping_tax"`
	Count            int    `json:"count"`
	OriginalQuantity int    `json:"original_quantity"`
}

// UnitCostResponse distinguishes "computed zero" from "input was invalid":
// Invalid is true when a field failed to parse and the zero is fail-soft.
type UnitCostResponse struct {
	UnitCost string `json:"unit_cost"`
	Invalid  bool   `json:"invalid,omitempty"`
}

// =============================================================================
// VALUATION AND CONFIG
// =============================================================================

type ValuationDTO struct {
	TotalCount      int    `json:"total_count"`
	TotalValue      string `json:"total_value"`
	AverageShipping string `json:"average_shipping"`
	AverageUnitCost string `json:"average_unit_cost"`
}

type TaxRateDTO struct {
	Percent string `json:"percent"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toLotDTO(l *inventory.Lot) LotDTO {
	dto := LotDTO{
		ID:               string(l.ID),
		Brand:            l.Brand,
		Name:             l.Name,
		Size:             l.Size,
		Type:             l.Type,
		Count:            l.Count,
		Price:            l.Price.String(),
		Shipping:         l.Shipping.String(),
		Tax:              l.Tax.String(),
		ShippingTax:      l.ShippingAndTax().String(),
		UnitCost:         l.UnitCost.String(),
		OriginalQuantity: l.OriginalQuantity,
		Rating:           l.Rating,
	}
	for _, ev := range l.History {
		dto.History = append(dto.History, MergeEventDTO{
			At:       ev.At,
			Count:    ev.Count,
			Price:    ev.Price.String(),
			Shipping: ev.Shipping.String(),
			Tax:      ev.Tax.String(),
			UnitCost: ev.UnitCost.String(),
		})
	}
	return dto
}

func toEntryDTO(e ledger.Entry) EntryDTO {
	dto := EntryDTO{
		ID:            string(e.ID),
		TransactionID: string(e.TransactionID),
		Timestamp:     e.Timestamp,
		Kind:          string(e.Kind),
		LotID:         string(e.LotID),
		Brand:         e.Brand,
		Name:          e.Name,
		Size:          e.Size,
		UnitPrice:     e.UnitPrice.String(),
		Quantity:      e.Quantity,
		TotalCost:     e.TotalCost.String(),
	}
	if e.Kind == ledger.KindResupply {
		dto.Price = e.Price.String()
		dto.ShippingTaxAllocated = e.ShippingTaxAllocated.String()
	}
	return dto
}

func toEntryDTOs(entries []ledger.Entry) []EntryDTO {
	out := make([]EntryDTO, len(entries))
	for i, e := range entries {
		out[i] = toEntryDTO(e)
	}
	return out
}

func toSkippedDTOs(skipped []ledger.SkippedItem) []SkippedDTO {
	var out []SkippedDTO
	for _, s := range skipped {
		out = append(out, SkippedDTO{
			LotID:  string(s.LotID),
			Brand:  s.Brand,
			Name:   s.Name,
			Size:   s.Size,
			Reason: s.Reason.Error(),
		})
	}
	return out
}
