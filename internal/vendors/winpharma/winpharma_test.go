package winpharma

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducts_CurrentExport(t *testing.T) {
	payload := []byte(`{"Articles":[
		{"IdArticle":101,"Designation":"Doliprane 1g","Cip13":"3400-935761-439","TauxTva":10,"Stock":40000,"PrixTTC":2.005,"Pmp":1.1,"Univers":"Medication","Famille":"Antalgiques","SousFamille":"Paracetamol","Marque":"Sanofi"},
		{"IdArticle":-3,"Designation":"bad"},
		{"Designation":"no id"}
	]}`)
	out, errs, err := productNormalizer{}.Products(payload)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Len(t, errs, 2)

	rec := out[0]
	assert.Equal(t, int64(101), rec.ExternalID)
	assert.Equal(t, "3400935761439", rec.RefCode, "separators strip down to 13 digits")
	assert.Equal(t, int16(32767), rec.Stock, "stock clamps to storage width")
	assert.True(t, rec.PriceTTC.Equal(decimal.RequireFromString("2.01")))
	require.NotNil(t, rec.VAT)
	assert.True(t, rec.VAT.Equal(decimal.RequireFromString("0.1")), "percentage normalizes to fraction")
	assert.Equal(t, "Medication", rec.Universe)
	assert.Equal(t, "Antalgiques", rec.Category)
}

func TestProducts_LegacyExportHasNoVAT(t *testing.T) {
	payload := []byte(`{"Produits":[
		{"Id":7,"Nom":"Aspirine","Cip":"3400935761439","Qte":12,"Prix":3.5,"Achat":2.1}
	]}`)
	out, errs, err := productNormalizer{}.Products(payload)
	require.NoError(t, err)
	require.Empty(t, errs)
	require.Len(t, out, 1)
	assert.Nil(t, out[0].VAT, "v1 export carries no VAT field")
	assert.Equal(t, int16(12), out[0].Stock)
	assert.True(t, out[0].WeightedAvgCost.Equal(decimal.RequireFromString("2.1")))
}

func TestProducts_EmptyPayload(t *testing.T) {
	out, errs, err := productNormalizer{}.Products([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, out)
	require.Len(t, errs, 1)
	assert.Equal(t, -1, errs[0].Index)
}

func TestProducts_UndecodablePayload(t *testing.T) {
	_, _, err := productNormalizer{}.Products([]byte(`{not json`))
	assert.Error(t, err)
}

func TestOrders_ChannelMappingAndDerivedQuantities(t *testing.T) {
	payload := []byte(`{"Commandes":[
		{"IdCommande":500,"CodeFournisseur":"CERP","NomFournisseur":"CERP Rouen","Canal":"pharmaml",
		 "DateEnvoi":"2026-03-01T08:00:00Z",
		 "Lignes":[{"IdArticle":9,"QteCommandee":10,"QteRecue":4,"QteUg":1,"Pmp":1.25}]},
		{"IdCommande":501,"CodeFournisseur":"OCP","Canal":"carrier-pigeon","Lignes":[]}
	]}`)
	out, errs, err := orderNormalizer{}.Orders(payload)
	require.NoError(t, err)
	require.Empty(t, errs)
	require.Len(t, out, 2)

	o := out[0]
	assert.Equal(t, "500", o.ExternalRef)
	assert.Equal(t, int16(2), o.Step, "PHARMAML maps to step 2 case-insensitively")
	require.NotNil(t, o.SentAt)
	assert.Equal(t, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), *o.SentAt)
	assert.Nil(t, o.DeliveredAt)

	require.Len(t, o.Lines, 1)
	l := o.Lines[0]
	assert.Equal(t, int16(10), l.QtyExpected, "expected defaults to ordered")
	assert.Equal(t, int16(6), l.QtyToReceive, "outstanding derives from ordered-received")
	assert.Equal(t, int16(1), l.QtyFree)
	require.NotNil(t, l.UnitCost)
	assert.True(t, l.UnitCost.Equal(decimal.RequireFromString("1.25")))

	assert.Equal(t, int16(1), out[1].Step, "unknown channel falls back to default")
}

func TestOrders_DuplicateLinesCollapseToLast(t *testing.T) {
	payload := []byte(`{"Commandes":[
		{"IdCommande":500,"CodeFournisseur":"CERP",
		 "Lignes":[{"IdArticle":9,"QteCommandee":3},{"IdArticle":9,"QteCommandee":2}]}
	]}`)
	out, _, err := orderNormalizer{}.Orders(payload)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Len(t, out[0].Lines, 1)
	assert.Equal(t, int16(2), out[0].Lines[0].QtyOrdered)
}

func TestOrders_MissingSupplierIsRowError(t *testing.T) {
	payload := []byte(`{"Commandes":[{"IdCommande":500}]}`)
	out, errs, err := orderNormalizer{}.Orders(payload)
	require.NoError(t, err)
	assert.Empty(t, out)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Reason, "CodeFournisseur")
}

func TestSales_HeaderDateAndVATObservations(t *testing.T) {
	payload := []byte(`{"Ventes":[
		{"DateVente":"2026-03-01T14:22:00Z","Lignes":[
			{"IdArticle":7,"Quantite":3,"TauxTva":20},
			{"IdArticle":7,"Quantite":2},
			{"Quantite":1}
		]},
		{"DateVente":"not a date","Lignes":[{"IdArticle":8,"Quantite":1}]}
	]}`)
	sales, obs, errs, err := saleNormalizer{}.Sales(payload)
	require.NoError(t, err)
	require.Len(t, sales, 2, "both lines of the valid transaction survive")
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), sales[0].Date)
	assert.Equal(t, int64(3), sales[0].Quantity)
	assert.Equal(t, int64(2), sales[1].Quantity)

	require.Len(t, obs, 1)
	assert.True(t, obs[0].Rate.Equal(decimal.NewFromInt(20)), "rate is normalized downstream, not here")

	// one for the id-less line, one for the unparseable header date
	assert.Len(t, errs, 2)
}
