package legacy_test

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humidor/valuation-engine/store/legacy"
)

var taxRate = decimal.RequireFromString("0.086")

const legacyInventory = `[
	{
		"brand": "Padron",
		"cigar": "1926",
		"size": "Robusto",
		"type": "Maduro",
		"count": 10,
		"price": 50,
		"shipping": 14.30,
		"price_per_stick": 6.86,
		"original_quantity": 10,
		"personal_rating": 9
	},
	{
		"brand": "Oliva",
		"cigar": "Serie V",
		"size": "Torpedo",
		"count": 5.0,
		"price": 42.50,
		"shipping": 5
	}
]`

const legacySales = `[
	{
		"date": "2024-11-02 14:30:00",
		"brand": "Padron",
		"cigar": "1926",
		"size": "Robusto",
		"price_per_stick": 6.86,
		"quantity": 3,
		"total_cost": 20.58
	},
	{
		"date": "2023-05-10 09:00:00",
		"brand": "Unknown",
		"cigar": "Gone",
		"size": "Corona",
		"price_per_stick": 4.00
	}
]`

func TestImportLots_FullRecord(t *testing.T) {
	lots, err := legacy.ImportLots(strings.NewReader(legacyInventory), taxRate)
	require.NoError(t, err)
	require.Len(t, lots, 2)

	got := lots[0]
	assert.Equal(t, "Padron", got.Brand)
	assert.Equal(t, "1926", got.Name, "old cigar key maps to Name")
	assert.Equal(t, "Maduro", got.Type)
	assert.Equal(t, 10, got.Count)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("50")))
	// The old combined shipping+tax lands wholly on Shipping.
	assert.True(t, got.Shipping.Equal(decimal.RequireFromString("14.30")))
	assert.True(t, got.Tax.IsZero())
	assert.Equal(t, 10, got.OriginalQuantity)
	require.NotNil(t, got.Rating)
	assert.Equal(t, 9, *got.Rating)
	// Recomputed under the new formula, not trusted from the file.
	assert.Equal(t, "6.86", got.UnitCost.String())
	assert.NotEmpty(t, got.ID)
}

func TestImportLots_UpgradesSparseRecord(t *testing.T) {
	// Records predating amortization tracking get original_quantity from
	// count; float-typed counts are accepted when whole.
	lots, err := legacy.ImportLots(strings.NewReader(legacyInventory), taxRate)
	require.NoError(t, err)

	got := lots[1]
	assert.Equal(t, 5, got.Count)
	assert.Equal(t, 5, got.OriginalQuantity)
	assert.Nil(t, got.Rating)
}

func TestImportLots_FractionalCountRejected(t *testing.T) {
	_, err := legacy.ImportLots(strings.NewReader(`[{"brand":"A","cigar":"B","size":"C","count":2.5}]`), taxRate)
	assert.Error(t, err)
}

func TestImportSales_LinksByIdentity(t *testing.T) {
	lots, err := legacy.ImportLots(strings.NewReader(legacyInventory), taxRate)
	require.NoError(t, err)

	entries, err := legacy.ImportSales(strings.NewReader(legacySales), lots)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	linked := entries[0]
	assert.Equal(t, lots[0].ID, linked.LotID)
	assert.Equal(t, 3, linked.Quantity)
	assert.True(t, linked.UnitPrice.Equal(decimal.RequireFromString("6.86")))
	assert.True(t, linked.TotalCost.Equal(decimal.RequireFromString("20.58")))
	assert.Equal(t, "2024-11-02 14:30:00", linked.Timestamp.Format("2006-01-02 15:04:05"))
	assert.NotEmpty(t, linked.TransactionID)

	// A sale of a product no longer in inventory stays unlinked but keeps
	// its history; quantity and total default from the per-stick price.
	orphan := entries[1]
	assert.Empty(t, orphan.LotID)
	assert.Equal(t, 1, orphan.Quantity)
	assert.True(t, orphan.TotalCost.Equal(decimal.RequireFromString("4.00")))
}

func TestImportSales_BadDate(t *testing.T) {
	_, err := legacy.ImportSales(strings.NewReader(`[{"date":"11/02/2024","brand":"A","cigar":"B","size":"C"}]`), nil)
	assert.Error(t, err)
}
