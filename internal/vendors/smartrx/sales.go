// internal/vendors/smartrx/sales.go
package smartrx

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/pharmabridge/pharmsync/internal/numeric"
	"github.com/pharmabridge/pharmsync/internal/staging"
)

type salePayload struct {
	Transactions []transaction `json:"transactions"`
}

type transaction struct {
	TxnID string     `json:"txn_id"`
	Lines []saleLine `json:"lines"`
}

// smartrx stamps each line individually instead of the transaction header
type saleLine struct {
	ItemID     *int64   `json:"item_id"`
	Qty        *int64   `json:"qty"`
	SoldAt     string   `json:"sold_at"`
	VatPercent *float64 `json:"vat_percent"`
}

type saleNormalizer struct{}

func (saleNormalizer) Sales(payload []byte) ([]staging.Sale, []staging.VATObservation, []staging.RowError, error) {
	var p salePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, nil, fmt.Errorf("smartrx sales: %w", err)
	}
	if p.Transactions == nil {
		return nil, nil, []staging.RowError{{Index: -1, Reason: "payload has no transactions"}}, nil
	}

	var sales []staging.Sale
	var obs []staging.VATObservation
	var errs []staging.RowError
	for _, txn := range p.Transactions {
		for i, l := range txn.Lines {
			if l.ItemID == nil || *l.ItemID < 0 {
				errs = append(errs, staging.RowError{Index: i, Reason: fmt.Sprintf("txn %s: line with missing or negative item_id", txn.TxnID)})
				continue
			}
			if l.Qty == nil {
				errs = append(errs, staging.RowError{Index: i, Reason: fmt.Sprintf("txn %s: line for item %d without qty", txn.TxnID, *l.ItemID)})
				continue
			}
			day, ok := numeric.ParseDate(l.SoldAt)
			if !ok {
				errs = append(errs, staging.RowError{Index: i, Reason: fmt.Sprintf("txn %s: line for item %d without parseable sold_at", txn.TxnID, *l.ItemID)})
				continue
			}
			sales = append(sales, staging.Sale{
				ProductID: *l.ItemID,
				Date:      day,
				Quantity:  *l.Qty,
			})
			if l.VatPercent != nil {
				obs = append(obs, staging.VATObservation{
					ProductID: *l.ItemID,
					Rate:      decimal.NewFromFloat(*l.VatPercent),
				})
			}
		}
	}
	return sales, obs, errs, nil
}
