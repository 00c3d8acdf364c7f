// internal/vendors/smartrx/products.go
package smartrx

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/pharmabridge/pharmsync/internal/numeric"
	"github.com/pharmabridge/pharmsync/internal/staging"
	"github.com/pharmabridge/pharmsync/internal/vendors"
)

type productPayload struct {
	Items []item `json:"items"`
}

type item struct {
	ItemID           *int64   `json:"item_id"`
	Label            string   `json:"label"`
	Ean13            string   `json:"ean13"`
	VatPercent       *float64 `json:"vat_percent"`
	QtyOnHand        *int64   `json:"qty_on_hand"`
	UnitPriceInclTax *float64 `json:"unit_price_incl_tax"`
	WeightedAvgCost  *float64 `json:"weighted_avg_cost"`
	Universe         string   `json:"universe"`
	Category         string   `json:"category"`
	SubCategory      string   `json:"sub_category"`
	Brand            string   `json:"brand"`
}

type productNormalizer struct{}

func (productNormalizer) Products(payload []byte) ([]staging.Product, []staging.RowError, error) {
	var p productPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, fmt.Errorf("smartrx products: %w", err)
	}
	if p.Items == nil {
		return nil, []staging.RowError{{Index: -1, Reason: "payload has no items"}}, nil
	}

	var out []staging.Product
	var errs []staging.RowError
	for i, it := range p.Items {
		if it.ItemID == nil || *it.ItemID < 0 {
			errs = append(errs, staging.RowError{Index: i, Reason: "missing or negative item_id"})
			continue
		}
		rec := staging.Product{
			ExternalID:      *it.ItemID,
			Name:            it.Label,
			RefCode:         vendors.RefCode13(it.Ean13),
			Universe:        it.Universe,
			Category:        it.Category,
			SubCategory:     it.SubCategory,
			Brand:           it.Brand,
			Stock:           numeric.ClampQty(deref(it.QtyOnHand)),
			PriceTTC:        money(it.UnitPriceInclTax),
			WeightedAvgCost: money(it.WeightedAvgCost),
		}
		if it.VatPercent != nil {
			v := numeric.NormalizeVATRate(decimal.NewFromFloat(*it.VatPercent))
			rec.VAT = &v
		}
		out = append(out, rec)
	}
	return out, errs, nil
}
