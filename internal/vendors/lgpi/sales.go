// internal/vendors/lgpi/sales.go
package lgpi

import (
	"encoding/json"
	"fmt"

	"github.com/pharmabridge/pharmsync/internal/numeric"
	"github.com/pharmabridge/pharmsync/internal/staging"
)

// lgpi bundles sales into one block per reporting sub-period. A malformed
// block is skipped on its own; the remaining blocks still process.

type salePayload struct {
	Periodes []json.RawMessage `json:"periodes"`
}

type periode struct {
	Ventes []venteLigne `json:"ventes"`
}

type venteLigne struct {
	ProduitID *int64 `json:"produitId"`
	Quantite  *int64 `json:"quantite"`
	DateVente string `json:"dateVente"`
}

type saleNormalizer struct{}

func (saleNormalizer) Sales(payload []byte) ([]staging.Sale, []staging.VATObservation, []staging.RowError, error) {
	var p salePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, nil, fmt.Errorf("lgpi sales: %w", err)
	}
	if p.Periodes == nil {
		return nil, nil, []staging.RowError{{Index: -1, Reason: "payload has no periodes"}}, nil
	}

	var sales []staging.Sale
	var errs []staging.RowError
	for b, raw := range p.Periodes {
		var blk periode
		if err := json.Unmarshal(raw, &blk); err != nil || blk.Ventes == nil {
			errs = append(errs, staging.RowError{Index: b, Reason: fmt.Sprintf("periode %d has no ventes", b)})
			continue
		}
		for i, v := range blk.Ventes {
			if v.ProduitID == nil || *v.ProduitID < 0 {
				errs = append(errs, staging.RowError{Index: i, Reason: "sale line with missing or negative produitId"})
				continue
			}
			if v.Quantite == nil {
				errs = append(errs, staging.RowError{Index: i, Reason: fmt.Sprintf("sale line for produit %d without quantite", *v.ProduitID)})
				continue
			}
			day, ok := numeric.ParseDate(v.DateVente)
			if !ok {
				errs = append(errs, staging.RowError{Index: i, Reason: fmt.Sprintf("sale line for produit %d without parseable dateVente", *v.ProduitID)})
				continue
			}
			sales = append(sales, staging.Sale{
				ProductID: *v.ProduitID,
				Date:      day,
				Quantity:  *v.Quantite,
			})
		}
	}
	// lgpi never surfaces VAT on sale lines
	return sales, nil, errs, nil
}
