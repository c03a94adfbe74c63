package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humidor/valuation-engine/api"
	"github.com/humidor/valuation-engine/engine"
	"github.com/humidor/valuation-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	svc := engine.New(decimal.RequireFromString("0.086"), memory.New(), log)
	srv := httptest.NewServer(api.NewRouter(api.NewHandler(svc)))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// seedResupply posts one Padron order and returns its response.
func seedResupply(t *testing.T, srv *httptest.Server) api.ResupplyResponse {
	t.Helper()
	var resp api.ResupplyResponse
	r := doJSON(t, http.MethodPost, srv.URL+"/api/resupplies", api.ResupplyRequest{
		Items: []api.ResupplyItemRequest{
			{Brand: "Padron", Name: "1926", Size: "Robusto", Type: "Maduro", Count: 10, Price: "50"},
		},
		TotalShipping:  "10",
		TaxRatePercent: "8.6",
	}, &resp)
	require.Equal(t, http.StatusCreated, r.StatusCode)
	require.Len(t, resp.Entries, 1)
	return resp
}

// =============================================================================
// END-TO-END FLOW
// =============================================================================

func TestResupplySaleValuationFlow(t *testing.T) {
	// GIVEN: a resupplied Padron lot (10 units, unit cost $6.86)
	// WHEN: selling 3 units
	// THEN: the sale totals $20.58 and the valuation reflects 7 remaining

	srv := newTestServer(t)
	resupply := seedResupply(t, srv)
	lotID := resupply.Entries[0].LotID
	assert.Equal(t, "6.86", resupply.Entries[0].UnitPrice)
	assert.Equal(t, "14.3", resupply.Entries[0].ShippingTaxAllocated)

	var sale api.SaleResponse
	r := doJSON(t, http.MethodPost, srv.URL+"/api/sales", api.SaleRequest{
		Items: []api.SaleItemRequest{{LotID: lotID, Quantity: 3}},
	}, &sale)
	require.Equal(t, http.StatusCreated, r.StatusCode)
	require.Len(t, sale.Entries, 1)
	assert.Equal(t, "20.58", sale.GrandTotal)
	assert.Empty(t, sale.Warning)

	var lot api.LotDTO
	r = doJSON(t, http.MethodGet, srv.URL+"/api/lots/"+lotID, nil, &lot)
	require.Equal(t, http.StatusOK, r.StatusCode)
	assert.Equal(t, 7, lot.Count)
	require.Len(t, lot.History, 1, "resupply recorded a merge event")

	var valuation api.ValuationDTO
	r = doJSON(t, http.MethodGet, srv.URL+"/api/valuation", nil, &valuation)
	require.Equal(t, http.StatusOK, r.StatusCode)
	assert.Equal(t, 7, valuation.TotalCount)
}

func TestReverseTransaction_RestoresStock(t *testing.T) {
	srv := newTestServer(t)
	resupply := seedResupply(t, srv)
	lotID := resupply.Entries[0].LotID

	var sale api.SaleResponse
	doJSON(t, http.MethodPost, srv.URL+"/api/sales", api.SaleRequest{
		Items: []api.SaleItemRequest{{LotID: lotID, Quantity: 4}},
	}, &sale)

	var report api.ReversalReportDTO
	r := doJSON(t, http.MethodDelete, srv.URL+"/api/transactions/"+sale.TransactionID, nil, &report)
	require.Equal(t, http.StatusOK, r.StatusCode)
	assert.Len(t, report.Reversed, 1)

	var lot api.LotDTO
	doJSON(t, http.MethodGet, srv.URL+"/api/lots/"+lotID, nil, &lot)
	assert.Equal(t, 10, lot.Count)
}

func TestReverseSaleEntry_Partial(t *testing.T) {
	srv := newTestServer(t)
	resupply := seedResupply(t, srv)
	lotID := resupply.Entries[0].LotID

	var sale api.SaleResponse
	doJSON(t, http.MethodPost, srv.URL+"/api/sales", api.SaleRequest{
		Items: []api.SaleItemRequest{{LotID: lotID, Quantity: 5}},
	}, &sale)

	r := doJSON(t, http.MethodPost,
		srv.URL+"/api/ledger/sales/"+sale.Entries[0].ID+"/reverse",
		api.ReverseRequest{Quantity: 2}, nil)
	require.Equal(t, http.StatusNoContent, r.StatusCode)

	var entries []api.EntryDTO
	doJSON(t, http.MethodGet, srv.URL+"/api/ledger?kind=sale", nil, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].Quantity)

	var lot api.LotDTO
	doJSON(t, http.MethodGet, srv.URL+"/api/lots/"+lotID, nil, &lot)
	assert.Equal(t, 7, lot.Count)
}

func TestLedger_KindFilter(t *testing.T) {
	srv := newTestServer(t)
	resupply := seedResupply(t, srv)

	var sale api.SaleResponse
	doJSON(t, http.MethodPost, srv.URL+"/api/sales", api.SaleRequest{
		Items: []api.SaleItemRequest{{LotID: resupply.Entries[0].LotID, Quantity: 1}},
	}, &sale)

	var all, sales []api.EntryDTO
	doJSON(t, http.MethodGet, srv.URL+"/api/ledger", nil, &all)
	doJSON(t, http.MethodGet, srv.URL+"/api/ledger?kind=sale", nil, &sales)
	assert.Len(t, all, 2)
	require.Len(t, sales, 1)
	assert.Equal(t, "sale", sales[0].Kind)
}

// =============================================================================
// DUPLICATE CONFLICT RESOLUTION
// =============================================================================

func TestUpdateLot_IdentityCollision_409(t *testing.T) {
	// GIVEN: two lots
	// WHEN: renaming one onto the other's identity
	// THEN: 409 with the colliding lot and the resolution options

	srv := newTestServer(t)

	var first, second api.LotDTO
	r := doJSON(t, http.MethodPost, srv.URL+"/api/lots",
		api.CreateLotRequest{Brand: "Padron", Name: "1926", Size: "Robusto"}, &first)
	require.Equal(t, http.StatusCreated, r.StatusCode)
	r = doJSON(t, http.MethodPost, srv.URL+"/api/lots",
		api.CreateLotRequest{Brand: "Padron", Name: "1964", Size: "Robusto"}, &second)
	require.Equal(t, http.StatusCreated, r.StatusCode)

	name := "1926"
	var conflict api.DuplicateConflictDTO
	r = doJSON(t, http.MethodPut, srv.URL+"/api/lots/"+second.ID,
		api.EditLotRequest{Name: &name}, &conflict)
	require.Equal(t, http.StatusConflict, r.StatusCode)
	assert.Equal(t, first.ID, conflict.Existing.ID)
	assert.Equal(t, []string{"combine", "keep-separate", "cancel"}, conflict.Options)

	// The edited lot is untouched until the caller resolves.
	var unchanged api.LotDTO
	doJSON(t, http.MethodGet, srv.URL+"/api/lots/"+second.ID, nil, &unchanged)
	assert.Equal(t, "1964", unchanged.Name)

	// keep-separate applies the edit under a suffixed name.
	var kept api.LotDTO
	r = doJSON(t, http.MethodPost, srv.URL+"/api/lots/"+second.ID+"/keep-separate",
		api.EditLotRequest{Name: &name}, &kept)
	require.Equal(t, http.StatusOK, r.StatusCode)
	assert.Equal(t, "1926 (2)", kept.Name)
}

func TestCombineLot_MergesAndRemoves(t *testing.T) {
	srv := newTestServer(t)
	resupply := seedResupply(t, srv)
	target := resupply.Entries[0].LotID

	var second api.LotDTO
	doJSON(t, http.MethodPost, srv.URL+"/api/lots",
		api.CreateLotRequest{Brand: "Padron", Name: "1964", Size: "Robusto"}, &second)

	var merged api.LotDTO
	r := doJSON(t, http.MethodPost, srv.URL+"/api/lots/"+second.ID+"/combine",
		api.CombineRequest{ExistingID: target}, &merged)
	require.Equal(t, http.StatusOK, r.StatusCode)
	assert.Equal(t, target, merged.ID)

	r = doJSON(t, http.MethodGet, srv.URL+"/api/lots/"+second.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, r.StatusCode)
}

// =============================================================================
// ERRORS
// =============================================================================

func TestGetLot_NotFound(t *testing.T) {
	srv := newTestServer(t)
	var errResp api.ErrorResponse
	r := doJSON(t, http.MethodGet, srv.URL+"/api/lots/missing", nil, &errResp)
	assert.Equal(t, http.StatusNotFound, r.StatusCode)
	assert.NotEmpty(t, errResp.Error)
}

func TestGetTransaction_NotFound(t *testing.T) {
	srv := newTestServer(t)
	r := doJSON(t, http.MethodGet, srv.URL+"/api/transactions/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, r.StatusCode)
}

// =============================================================================
// CONFIG AND CALCULATORS
// =============================================================================

func TestTaxRate_GetAndSet(t *testing.T) {
	srv := newTestServer(t)

	var rate api.TaxRateDTO
	r := doJSON(t, http.MethodGet, srv.URL+"/api/config/tax-rate", nil, &rate)
	require.Equal(t, http.StatusOK, r.StatusCode)
	assert.Equal(t, "8.6", rate.Percent)

	r = doJSON(t, http.MethodPut, srv.URL+"/api/config/tax-rate",
		api.TaxRateDTO{Percent: "7.25"}, &rate)
	require.Equal(t, http.StatusOK, r.StatusCode)

	doJSON(t, http.MethodGet, srv.URL+"/api/config/tax-rate", nil, &rate)
	assert.Equal(t, "7.25", rate.Percent)
}

func TestResupply_PromotesTaxRate(t *testing.T) {
	srv := newTestServer(t)

	var resp api.ResupplyResponse
	doJSON(t, http.MethodPost, srv.URL+"/api/resupplies", api.ResupplyRequest{
		Items:          []api.ResupplyItemRequest{{Brand: "A", Name: "One", Size: "R", Count: 1, Price: "10"}},
		TotalShipping:  "0",
		TaxRatePercent: "5",
	}, &resp)

	var rate api.TaxRateDTO
	doJSON(t, http.MethodGet, srv.URL+"/api/config/tax-rate", nil, &rate)
	assert.Equal(t, "5", rate.Percent)
}

func TestCalculateShipping(t *testing.T) {
	srv := newTestServer(t)

	var resp api.ShippingCalcResponse
	r := doJSON(t, http.MethodPost, srv.URL+"/api/calculator/shipping",
		api.ShippingCalcRequest{Shipping: "$10", TotalUnits: 20}, &resp)
	require.Equal(t, http.StatusOK, r.StatusCode)
	assert.Equal(t, "0.5", resp.PerUnit)
	assert.Equal(t, "2", resp.PerFive)
	assert.Equal(t, "1", resp.PerTen)
}

func TestCalculateUnitCost_InvalidInput_FailSoft(t *testing.T) {
	srv := newTestServer(t)

	var resp api.UnitCostResponse
	r := doJSON(t, http.MethodPost, srv.URL+"/api/calculator/unit-cost",
		api.UnitCostRequest{Price: "abc", ShippingTax: "0", Count: 10}, &resp)
	require.Equal(t, http.StatusOK, r.StatusCode)
	assert.Equal(t, "0", resp.UnitCost)
	assert.True(t, resp.Invalid)
}

func TestCalculateUnitCost(t *testing.T) {
	srv := newTestServer(t)

	var resp api.UnitCostResponse
	r := doJSON(t, http.MethodPost, srv.URL+"/api/calculator/unit-cost",
		api.UnitCostRequest{Price: "50", ShippingTax: "14.30", Count: 10, OriginalQuantity: 10}, &resp)
	require.Equal(t, http.StatusOK, r.StatusCode)
	assert.Equal(t, "6.86", resp.UnitCost)
	assert.False(t, resp.Invalid)
}

func TestListLots_Search(t *testing.T) {
	srv := newTestServer(t)
	seedResupply(t, srv)
	doJSON(t, http.MethodPost, srv.URL+"/api/lots",
		api.CreateLotRequest{Brand: "Oliva", Name: "Serie V", Size: "Torpedo"}, nil)

	var all, matched []api.LotDTO
	doJSON(t, http.MethodGet, srv.URL+"/api/lots", nil, &all)
	doJSON(t, http.MethodGet, srv.URL+"/api/lots?q=padron", nil, &matched)
	assert.Len(t, all, 2)
	require.Len(t, matched, 1)
	assert.Equal(t, "Padron", matched[0].Brand)
}
