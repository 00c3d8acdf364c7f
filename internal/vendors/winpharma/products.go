// internal/vendors/winpharma/products.go
package winpharma

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/pharmabridge/pharmsync/internal/numeric"
	"github.com/pharmabridge/pharmsync/internal/staging"
	"github.com/pharmabridge/pharmsync/internal/vendors"
)

// Winpharma ships two catalog exports: the current one ("Articles") and the
// v1 export ("Produits") still emitted by older installs. The v1 export has
// no VAT field at all; VAT is staged as absent so a previously known rate
// is never clobbered.

type productPayload struct {
	Articles []article       `json:"Articles"`
	Produits []legacyProduct `json:"Produits"`
}

type article struct {
	IDArticle   *int64   `json:"IdArticle"`
	Designation string   `json:"Designation"`
	Cip13       string   `json:"Cip13"`
	TauxTva     *float64 `json:"TauxTva"`
	Stock       *int64   `json:"Stock"`
	PrixTTC     *float64 `json:"PrixTTC"`
	Pmp         *float64 `json:"Pmp"`
	Univers     string   `json:"Univers"`
	Famille     string   `json:"Famille"`
	SousFamille string   `json:"SousFamille"`
	Marque      string   `json:"Marque"`
}

type legacyProduct struct {
	ID    *int64   `json:"Id"`
	Nom   string   `json:"Nom"`
	Cip   string   `json:"Cip"`
	Qte   *int64   `json:"Qte"`
	Prix  *float64 `json:"Prix"`
	Achat *float64 `json:"Achat"` // weighted average cost
}

type productNormalizer struct{}

func (productNormalizer) Products(payload []byte) ([]staging.Product, []staging.RowError, error) {
	var p productPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, fmt.Errorf("winpharma products: %w", err)
	}
	if len(p.Articles) == 0 && len(p.Produits) == 0 {
		return nil, []staging.RowError{{Index: -1, Reason: "payload has neither Articles nor Produits"}}, nil
	}
	if len(p.Produits) > 0 {
		return legacyProducts(p.Produits)
	}

	var out []staging.Product
	var errs []staging.RowError
	for i, a := range p.Articles {
		if a.IDArticle == nil || *a.IDArticle < 0 {
			errs = append(errs, staging.RowError{Index: i, Reason: "missing or negative IdArticle"})
			continue
		}
		rec := staging.Product{
			ExternalID:      *a.IDArticle,
			Name:            a.Designation,
			RefCode:         vendors.RefCode13(a.Cip13),
			Universe:        a.Univers,
			Category:        a.Famille,
			SubCategory:     a.SousFamille,
			Brand:           a.Marque,
			Stock:           numeric.ClampQty(deref(a.Stock)),
			PriceTTC:        money(a.PrixTTC),
			WeightedAvgCost: money(a.Pmp),
		}
		if a.TauxTva != nil {
			v := numeric.NormalizeVATRate(decimal.NewFromFloat(*a.TauxTva))
			rec.VAT = &v
		}
		out = append(out, rec)
	}
	return out, errs, nil
}

func legacyProducts(items []legacyProduct) ([]staging.Product, []staging.RowError, error) {
	var out []staging.Product
	var errs []staging.RowError
	for i, lp := range items {
		if lp.ID == nil || *lp.ID < 0 {
			errs = append(errs, staging.RowError{Index: i, Reason: "missing or negative Id"})
			continue
		}
		out = append(out, staging.Product{
			ExternalID:      *lp.ID,
			Name:            lp.Nom,
			RefCode:         vendors.RefCode13(lp.Cip),
			Stock:           numeric.ClampQty(deref(lp.Qte)),
			PriceTTC:        money(lp.Prix),
			WeightedAvgCost: money(lp.Achat),
			// no VAT in the v1 export: stays nil on purpose
		})
	}
	return out, errs, nil
}
