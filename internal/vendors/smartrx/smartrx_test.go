package smartrx

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducts_PercentVATNormalized(t *testing.T) {
	payload := []byte(`{"items":[
		{"item_id":11,"label":"Nurofen 200mg","ean13":"3400935761439","vat_percent":20,"qty_on_hand":-40000,"unit_price_incl_tax":5.9,"weighted_avg_cost":3.4,"universe":"Medication","category":"Antalgiques","sub_category":"Ibuprofen","brand":"Reckitt"}
	]}`)
	out, errs, err := productNormalizer{}.Products(payload)
	require.NoError(t, err)
	require.Empty(t, errs)
	require.Len(t, out, 1)

	rec := out[0]
	require.NotNil(t, rec.VAT)
	assert.True(t, rec.VAT.Equal(decimal.RequireFromString("0.2")))
	assert.Equal(t, int16(-32768), rec.Stock, "negative stock clamps at the low bound")
	assert.Equal(t, "Ibuprofen", rec.SubCategory)
}

func TestOrders_LineCostAndChannel(t *testing.T) {
	payload := []byte(`{"purchase_orders":[
		{"order_id":"PO-77","supplier_code":"AMERI","supplier_name":"AmerisourceBergen","channel":"EDI",
		 "sent_at":"2026-03-01T08:00:00Z","delivered_at":"2026-03-03T10:00:00Z",
		 "lines":[
			{"item_id":9,"qty_ordered":6,"qty_received":6,"qty_foc":0,"qty_mismatch":0,"unit_cost":1.005},
			{"item_id":-1,"qty_ordered":1}
		 ]}
	]}`)
	out, errs, err := orderNormalizer{}.Orders(payload)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Len(t, errs, 1, "negative item id is a row error, not a payload error")

	o := out[0]
	assert.Equal(t, int16(2), o.Step)
	require.NotNil(t, o.SentAt)
	require.NotNil(t, o.DeliveredAt)
	require.Len(t, o.Lines, 1)
	assert.Equal(t, int16(0), o.Lines[0].QtyToReceive, "fully received order has nothing outstanding")
	require.NotNil(t, o.Lines[0].UnitCost)
	assert.True(t, o.Lines[0].UnitCost.Equal(decimal.RequireFromString("1.01")))
}

func TestSales_LineLevelTimestamps(t *testing.T) {
	payload := []byte(`{"transactions":[
		{"txn_id":"T-1","lines":[
			{"item_id":7,"qty":2,"sold_at":"2026-03-01T09:00:00Z","vat_percent":10},
			{"item_id":7,"qty":1,"sold_at":"2026-03-02T18:30:00Z"}
		]},
		{"txn_id":"T-2","lines":[
			{"item_id":7,"qty":4,"sold_at":"never"}
		]}
	]}`)
	sales, obs, errs, err := saleNormalizer{}.Sales(payload)
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), sales[0].Date)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), sales[1].Date, "each line keeps its own day")

	require.Len(t, obs, 1)
	assert.Equal(t, int64(7), obs[0].ProductID)

	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Reason, "sold_at")
}

func TestSales_EmptyPayload(t *testing.T) {
	sales, obs, errs, err := saleNormalizer{}.Sales([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, sales)
	assert.Empty(t, obs)
	require.Len(t, errs, 1)
	assert.Equal(t, -1, errs[0].Index)
}
