/*
handlers.go - HTTP API handlers for the valuation engine

PURPOSE:

	Exposes the engine via REST. Handles HTTP request/response, JSON
	serialization, and delegates to the engine service.

ENDPOINTS:

	Lots:
	  GET    /api/lots                 List lots (optional ?q= filter)
	  POST   /api/lots                 Manually add a lot
	  GET    /api/lots/{id}            Get one lot (history included)
	  PUT    /api/lots/{id}            Edit a lot (409 on identity collision)
	  DELETE /api/lots/{id}            Remove a lot record
	  POST   /api/lots/{id}/merge      Fold a purchase into the lot
	  POST   /api/lots/{id}/combine    Resolve a collision by merging
	  POST   /api/lots/{id}/keep-separate  Resolve by suffixed rename

	Sales and resupplies:
	  POST   /api/sales                Record a multi-line sale
	  POST   /api/sales/preview        Total selected lines, no mutation
	  POST   /api/resupplies           Record an incoming order

	Ledger:
	  GET    /api/ledger               List entries (optional ?kind=)
	  GET    /api/transactions/{id}    Entries of one transaction
	  DELETE /api/transactions/{id}    Reverse a whole transaction
	  POST   /api/ledger/sales/{id}/reverse       Partial/full sale reversal
	  POST   /api/ledger/resupplies/{id}/reverse  Partial/full resupply reversal

	Rollups and config:
	  GET    /api/valuation            Inventory totals and averages
	  GET    /api/config/tax-rate      Current default tax rate
	  PUT    /api/config/tax-rate      Replace the default tax rate
	  POST   /api/calculator/shipping  Shipping per-pack breakdown
	  POST   /api/calculator/unit-cost Unit-cost calculator

ERROR HANDLING:
  - 400: Invalid input (bad numbers, bad quantities)
  - 404: Lot / entry / transaction not found
  - 409: Duplicate lot identity - payload lists the resolution options
  - 500: Internal errors
    A mutation that succeeded in memory but failed to persist still returns
    success, with a "warning" field describing the save failure.

SEE ALSO:
  - dto.go: Request/response structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/humidor/valuation-engine/engine"
	"github.com/humidor/valuation-engine/inventory"
	"github.com/humidor/valuation-engine/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

var hundred = decimal.NewFromInt(100)

// Handler holds the handlers' single dependency: the engine service.
type Handler struct {
	Engine *engine.Service
}

func NewHandler(svc *engine.Service) *Handler {
	return &Handler{Engine: svc}
}

// =============================================================================
// LOTS
// =============================================================================

func (h *Handler) ListLots(w http.ResponseWriter, r *http.Request) {
	lots := h.Engine.Lots(r.URL.Query().Get("q"))
	dtos := make([]LotDTO, len(lots))
	for i, l := range lots {
		dtos[i] = toLotDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetLot(w http.ResponseWriter, r *http.Request) {
	lot, err := h.Engine.GetLot(inventory.LotID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get lot", err)
		return
	}
	writeJSON(w, http.StatusOK, toLotDTO(lot))
}

func (h *Handler) CreateLot(w http.ResponseWriter, r *http.Request) {
	var req CreateLotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	lot, err := h.Engine.CreateLot(r.Context(), req.Brand, req.Name, req.Size, req.Type)
	if warn, fatal := splitPersistWarning(err); fatal != nil {
		writeDomainError(w, "Failed to create lot", fatal)
		return
	} else if warn != "" {
		w.Header().Set("X-Persist-Warning", warn)
	}
	writeJSON(w, http.StatusCreated, toLotDTO(lot))
}

func (h *Handler) UpdateLot(w http.ResponseWriter, r *http.Request) {
	var req EditLotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	edit, err := toLotEdit(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid field value", err)
		return
	}

	lot, err := h.Engine.EditLot(r.Context(), inventory.LotID(chi.URLParam(r, "id")), edit)
	if warn, fatal := splitPersistWarning(err); fatal != nil {
		writeDomainError(w, "Failed to update lot", fatal)
		return
	} else if warn != "" {
		w.Header().Set("X-Persist-Warning", warn)
	}
	writeJSON(w, http.StatusOK, toLotDTO(lot))
}

func (h *Handler) DeleteLot(w http.ResponseWriter, r *http.Request) {
	err := h.Engine.RemoveLot(r.Context(), inventory.LotID(chi.URLParam(r, "id")))
	if warn, fatal := splitPersistWarning(err); fatal != nil {
		writeDomainError(w, "Failed to delete lot", fatal)
		return
	} else if warn != "" {
		w.Header().Set("X-Persist-Warning", warn)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) MergeLot(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	price, err := inventory.ParseAmount(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid price", err)
		return
	}
	shipping, err := inventory.ParseAmount(req.Shipping)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid shipping", err)
		return
	}
	tax, err := inventory.ParseAmount(req.Tax)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid tax", err)
		return
	}

	lot, err := h.Engine.MergeLots(r.Context(), inventory.LotID(chi.URLParam(r, "id")), req.Count, price, shipping, tax)
	if warn, fatal := splitPersistWarning(err); fatal != nil {
		writeDomainError(w, "Failed to merge", fatal)
		return
	} else if warn != "" {
		w.Header().Set("X-Persist-Warning", warn)
	}
	writeJSON(w, http.StatusOK, toLotDTO(lot))
}

func (h *Handler) CombineLot(w http.ResponseWriter, r *http.Request) {
	var req CombineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	lot, err := h.Engine.ResolveCombine(r.Context(),
		inventory.LotID(chi.URLParam(r, "id")), inventory.LotID(req.ExistingID))
	if warn, fatal := splitPersistWarning(err); fatal != nil {
		writeDomainError(w, "Failed to combine lots", fatal)
		return
	} else if warn != "" {
		w.Header().Set("X-Persist-Warning", warn)
	}
	writeJSON(w, http.StatusOK, toLotDTO(lot))
}

func (h *Handler) KeepLotSeparate(w http.ResponseWriter, r *http.Request) {
	var req EditLotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	edit, err := toLotEdit(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid field value", err)
		return
	}

	lot, err := h.Engine.ResolveKeepSeparate(r.Context(), inventory.LotID(chi.URLParam(r, "id")), edit)
	if warn, fatal := splitPersistWarning(err); fatal != nil {
		writeDomainError(w, "Failed to apply edit", fatal)
		return
	} else if warn != "" {
		w.Header().Set("X-Persist-Warning", warn)
	}
	writeJSON(w, http.StatusOK, toLotDTO(lot))
}

// =============================================================================
// SALES AND RESUPPLIES
// =============================================================================

func (h *Handler) RecordSale(w http.ResponseWriter, r *http.Request) {
	var req SaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Engine.RecordSale(r.Context(), toSaleItems(req.Items))
	warn, fatal := splitPersistWarning(err)
	if fatal != nil {
		writeDomainError(w, "Failed to record sale", fatal)
		return
	}

	writeJSON(w, http.StatusCreated, SaleResponse{
		TransactionID: string(result.TransactionID),
		Entries:       toEntryDTOs(result.Entries),
		Skipped:       toSkippedDTOs(result.Skipped),
		GrandTotal:    result.GrandTotal().String(),
		Warning:       warn,
	})
}

func (h *Handler) PreviewSale(w http.ResponseWriter, r *http.Request) {
	var req SaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	preview := h.Engine.PreviewSale(toSaleItems(req.Items))
	resp := PreviewResponse{
		TotalUnits: preview.TotalUnits,
		GrandTotal: preview.GrandTotal.String(),
	}
	for _, line := range preview.Lines {
		resp.Lines = append(resp.Lines, PreviewLineDTO{
			LotID:     string(line.LotID),
			Brand:     line.Brand,
			Name:      line.Name,
			Size:      line.Size,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice.String(),
			Total:     line.Total.String(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) RecordResupply(w http.ResponseWriter, r *http.Request) {
	var req ResupplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	totalShipping, err := inventory.ParseAmount(req.TotalShipping)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid total_shipping", err)
		return
	}
	taxPercent, err := inventory.ParseAmount(req.TaxRatePercent)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid tax_rate_percent", err)
		return
	}

	items := make([]ledger.ResupplyItem, 0, len(req.Items))
	for _, it := range req.Items {
		price, err := inventory.ParseAmount(it.Price)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid item price", err)
			return
		}
		items = append(items, ledger.ResupplyItem{
			Brand: it.Brand, Name: it.Name, Size: it.Size, Type: it.Type,
			Count: it.Count, Price: price,
		})
	}

	result, err := h.Engine.RecordResupply(r.Context(), items, totalShipping, taxPercent)
	warn, fatal := splitPersistWarning(err)
	if fatal != nil {
		writeDomainError(w, "Failed to record resupply", fatal)
		return
	}

	writeJSON(w, http.StatusCreated, ResupplyResponse{
		OrderID: string(result.OrderID),
		Entries: toEntryDTOs(result.Entries),
		Skipped: toSkippedDTOs(result.Skipped),
		Warning: warn,
	})
}

// =============================================================================
// LEDGER AND REVERSAL
// =============================================================================

func (h *Handler) ListLedger(w http.ResponseWriter, r *http.Request) {
	entries := h.Engine.LedgerEntries(ledger.Kind(r.URL.Query().Get("kind")))
	// Newest first for the history view.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	entries := h.Engine.TransactionEntries(ledger.TransactionID(chi.URLParam(r, "id")))
	if len(entries) == 0 {
		writeError(w, http.StatusNotFound, "Transaction not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

func (h *Handler) ReverseTransaction(w http.ResponseWriter, r *http.Request) {
	report, err := h.Engine.ReverseTransaction(r.Context(), ledger.TransactionID(chi.URLParam(r, "id")))
	warn, fatal := splitPersistWarning(err)
	if fatal != nil {
		writeDomainError(w, "Failed to reverse transaction", fatal)
		return
	}
	writeJSON(w, http.StatusOK, ReversalReportDTO{
		TransactionID: string(report.TransactionID),
		Reversed:      toEntryDTOs(report.Reversed),
		Skipped:       toSkippedDTOs(report.Skipped),
		Warning:       warn,
	})
}

func (h *Handler) ReverseSaleEntry(w http.ResponseWriter, r *http.Request) {
	h.reverseEntry(w, r, h.Engine.ReverseSaleEntry)
}

func (h *Handler) ReverseResupplyEntry(w http.ResponseWriter, r *http.Request) {
	h.reverseEntry(w, r, h.Engine.ReverseResupplyEntry)
}

func (h *Handler) reverseEntry(w http.ResponseWriter, r *http.Request,
	reverse func(ctx context.Context, id ledger.EntryID, quantity int) error) {
	var req ReverseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	err := reverse(r.Context(), ledger.EntryID(chi.URLParam(r, "id")), req.Quantity)
	warn, fatal := splitPersistWarning(err)
	if fatal != nil {
		writeDomainError(w, "Failed to reverse entry", fatal)
		return
	}
	if warn != "" {
		w.Header().Set("X-Persist-Warning", warn)
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// VALUATION, CONFIG, CALCULATORS
// =============================================================================

func (h *Handler) GetValuation(w http.ResponseWriter, r *http.Request) {
	sum := h.Engine.Aggregate()
	writeJSON(w, http.StatusOK, ValuationDTO{
		TotalCount:      sum.TotalCount,
		TotalValue:      sum.TotalValue.String(),
		AverageShipping: sum.AverageShipping.String(),
		AverageUnitCost: sum.AverageUnitCost.String(),
	})
}

func (h *Handler) GetTaxRate(w http.ResponseWriter, r *http.Request) {
	percent := h.Engine.TaxRate().Mul(hundred)
	writeJSON(w, http.StatusOK, TaxRateDTO{Percent: percent.String()})
}

func (h *Handler) SetTaxRate(w http.ResponseWriter, r *http.Request) {
	var req TaxRateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	percent, err := inventory.ParseAmount(req.Percent)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid percent", err)
		return
	}
	if err := h.Engine.SetTaxRate(inventory.PercentToRate(percent)); err != nil {
		writeDomainError(w, "Failed to set tax rate", err)
		return
	}
	writeJSON(w, http.StatusOK, TaxRateDTO{Percent: percent.String()})
}

func (h *Handler) CalculateShipping(w http.ResponseWriter, r *http.Request) {
	var req ShippingCalcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	shipping, err := inventory.ParseAmount(req.Shipping)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid shipping", err)
		return
	}

	breakdown, err := inventory.BreakdownShipping(shipping, req.TotalUnits)
	if err != nil {
		writeDomainError(w, "Failed to compute breakdown", err)
		return
	}
	writeJSON(w, http.StatusOK, ShippingCalcResponse{
		TotalUnits: breakdown.TotalUnits,
		PerUnit:    breakdown.PerUnit.String(),
		PerFive:    breakdown.PerFive.String(),
		PerTen:     breakdown.PerTen.String(),
	})
}

func (h *Handler) CalculateUnitCost(w http.ResponseWriter, r *http.Request) {
	var req UnitCostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	price, perr := inventory.ParseAmount(req.Price)
	shippingTax, serr := inventory.ParseAmount(req.ShippingTax)
	if perr != nil || serr != nil {
		// Fail-soft: render zero but tell the caller the input was bad.
		writeJSON(w, http.StatusOK, UnitCostResponse{UnitCost: "0", Invalid: true})
		return
	}

	cost := h.Engine.ComputeUnitCost(price, shippingTax, req.Count, req.OriginalQuantity)
	writeJSON(w, http.StatusOK, UnitCostResponse{UnitCost: cost.String()})
}

// =============================================================================
// HELPERS
// =============================================================================

func toSaleItems(items []SaleItemRequest) []ledger.SaleItem {
	out := make([]ledger.SaleItem, len(items))
	for i, it := range items {
		out[i] = ledger.SaleItem{LotID: inventory.LotID(it.LotID), Quantity: it.Quantity}
	}
	return out
}

func toLotEdit(req EditLotRequest) (inventory.LotEdit, error) {
	edit := inventory.LotEdit{
		Brand:       req.Brand,
		Name:        req.Name,
		Size:        req.Size,
		Type:        req.Type,
		Count:       req.Count,
		Rating:      req.Rating,
		ClearRating: req.ClearRating,
	}
	if req.Price != nil {
		d, err := inventory.ParseAmount(*req.Price)
		if err != nil {
			return edit, err
		}
		edit.Price = &d
	}
	if req.Shipping != nil {
		d, err := inventory.ParseAmount(*req.Shipping)
		if err != nil {
			return edit, err
		}
		edit.Shipping = &d
	}
	if req.Tax != nil {
		d, err := inventory.ParseAmount(*req.Tax)
		if err != nil {
			return edit, err
		}
		edit.Tax = &d
	}
	return edit, nil
}

// splitPersistWarning separates a fail-soft persistence failure (the
// operation succeeded; report it as a warning) from a real error.
func splitPersistWarning(err error) (warning string, fatal error) {
	if err == nil {
		return "", nil
	}
	if errors.Is(err, engine.ErrPersistFailed) {
		return err.Error(), nil
	}
	return "", err
}

// writeDomainError maps domain errors to HTTP statuses. Duplicate-lot
// conflicts get a 409 with the resolution options.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	var conflict *inventory.DuplicateLotError
	if errors.As(err, &conflict) {
		writeJSON(w, http.StatusConflict, DuplicateConflictDTO{
			Error:    err.Error(),
			Existing: toLotDTO(conflict.Existing),
			Options:  []string{"combine", "keep-separate", "cancel"},
		})
		return
	}
	switch {
	case inventory.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case inventory.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
