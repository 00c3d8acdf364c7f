// internal/vendors/winpharma/sales.go
package winpharma

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/pharmabridge/pharmsync/internal/numeric"
	"github.com/pharmabridge/pharmsync/internal/staging"
)

type salePayload struct {
	Ventes []vente `json:"Ventes"`
}

type vente struct {
	DateVente string      `json:"DateVente"`
	Lignes    []saleLigne `json:"Lignes"`
}

type saleLigne struct {
	IDArticle *int64   `json:"IdArticle"`
	Quantite  *int64   `json:"Quantite"`
	TauxTva   *float64 `json:"TauxTva"`
}

type saleNormalizer struct{}

func (saleNormalizer) Sales(payload []byte) ([]staging.Sale, []staging.VATObservation, []staging.RowError, error) {
	var p salePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, nil, fmt.Errorf("winpharma sales: %w", err)
	}
	if p.Ventes == nil {
		return nil, nil, []staging.RowError{{Index: -1, Reason: "payload has no Ventes"}}, nil
	}

	var sales []staging.Sale
	var obs []staging.VATObservation
	var errs []staging.RowError
	for i, v := range p.Ventes {
		// the transaction timestamp lives on the header
		day, ok := numeric.ParseDate(v.DateVente)
		if !ok {
			errs = append(errs, staging.RowError{Index: i, Reason: "transaction without parseable DateVente"})
			continue
		}
		for j, l := range v.Lignes {
			if l.IDArticle == nil || *l.IDArticle < 0 {
				errs = append(errs, staging.RowError{Index: j, Reason: "sale line with missing or negative IdArticle"})
				continue
			}
			if l.Quantite == nil {
				errs = append(errs, staging.RowError{Index: j, Reason: fmt.Sprintf("sale line for article %d without Quantite", *l.IDArticle)})
				continue
			}
			sales = append(sales, staging.Sale{
				ProductID: *l.IDArticle,
				Date:      day,
				Quantity:  *l.Quantite,
			})
			if l.TauxTva != nil {
				obs = append(obs, staging.VATObservation{
					ProductID: *l.IDArticle,
					Rate:      decimal.NewFromFloat(*l.TauxTva),
				})
			}
		}
	}
	return sales, obs, errs, nil
}
