// internal/vendors/lgpi/products.go
package lgpi

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/pharmabridge/pharmsync/internal/numeric"
	"github.com/pharmabridge/pharmsync/internal/staging"
	"github.com/pharmabridge/pharmsync/internal/vendors"
)

type productPayload struct {
	Produits []produit `json:"produits"`
}

type produit struct {
	ProduitID       *int64   `json:"produitId"`
	Libelle         string   `json:"libelle"`
	CodeCip         string   `json:"codeCip"`
	Tva             *float64 `json:"tva"`
	QuantiteStock   *int64   `json:"quantiteStock"`
	PrixVenteTtc    *float64 `json:"prixVenteTtc"`
	PrixAchatMoyen  *float64 `json:"prixAchatMoyen"`
	Univers         string   `json:"univers"`
	Famille         string   `json:"famille"`
	SousFamille     string   `json:"sousFamille"`
	Marque          string   `json:"marque"`
}

type productNormalizer struct{}

func (productNormalizer) Products(payload []byte) ([]staging.Product, []staging.RowError, error) {
	var p productPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, fmt.Errorf("lgpi products: %w", err)
	}
	if p.Produits == nil {
		return nil, []staging.RowError{{Index: -1, Reason: "payload has no produits"}}, nil
	}

	var out []staging.Product
	var errs []staging.RowError
	for i, pr := range p.Produits {
		if pr.ProduitID == nil || *pr.ProduitID < 0 {
			errs = append(errs, staging.RowError{Index: i, Reason: "missing or negative produitId"})
			continue
		}
		rec := staging.Product{
			ExternalID:      *pr.ProduitID,
			Name:            pr.Libelle,
			RefCode:         vendors.RefCode13(pr.CodeCip),
			Universe:        pr.Univers,
			Category:        pr.Famille,
			SubCategory:     pr.SousFamille,
			Brand:           pr.Marque,
			Stock:           numeric.ClampQty(deref(pr.QuantiteStock)),
			PriceTTC:        money(pr.PrixVenteTtc),
			WeightedAvgCost: money(pr.PrixAchatMoyen),
		}
		if pr.Tva != nil {
			// lgpi usually sends a fraction already; the heuristic still
			// guards against the installs that send percentages
			v := numeric.NormalizeVATRate(decimal.NewFromFloat(*pr.Tva))
			rec.VAT = &v
		}
		out = append(out, rec)
	}
	return out, errs, nil
}
