// internal/vendors/winpharma/orders.go
package winpharma

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/pharmabridge/pharmsync/internal/numeric"
	"github.com/pharmabridge/pharmsync/internal/staging"
	"github.com/pharmabridge/pharmsync/internal/vendors"
)

// channelSteps maps winpharma order channels onto canonical steps. Unknown
// channels fall back to 1 ("created"), winpharma's own catch-all.
var channelSteps = vendors.ChannelMap{
	Steps: map[string]int16{
		"PHARMAML":  2,
		"FAX":       3,
		"TELEPHONE": 4,
		"WEB":       5,
	},
	Default: 1,
}

type orderPayload struct {
	Commandes []commande `json:"Commandes"`
}

type commande struct {
	IDCommande      *int64  `json:"IdCommande"`
	CodeFournisseur string  `json:"CodeFournisseur"`
	NomFournisseur  string  `json:"NomFournisseur"`
	Canal           string  `json:"Canal"`
	DateEnvoi       string  `json:"DateEnvoi"`
	DateLivraison   string  `json:"DateLivraison"`
	Lignes          []ligne `json:"Lignes"`
}

type ligne struct {
	IDArticle    *int64   `json:"IdArticle"`
	QteCommandee *int64   `json:"QteCommandee"`
	QteRecue     *int64   `json:"QteRecue"`
	QteUg        *int64   `json:"QteUg"`
	QteEcart     *int64   `json:"QteEcart"`
	Pmp          *float64 `json:"Pmp"`
}

type orderNormalizer struct{}

func (orderNormalizer) Orders(payload []byte) ([]staging.Order, []staging.RowError, error) {
	var p orderPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, fmt.Errorf("winpharma orders: %w", err)
	}
	if p.Commandes == nil {
		return nil, []staging.RowError{{Index: -1, Reason: "payload has no Commandes"}}, nil
	}

	var out []staging.Order
	var errs []staging.RowError
	for i, c := range p.Commandes {
		if c.IDCommande == nil {
			errs = append(errs, staging.RowError{Index: i, Reason: "order without IdCommande"})
			continue
		}
		if c.CodeFournisseur == "" {
			errs = append(errs, staging.RowError{Index: i, Reason: fmt.Sprintf("order %d without CodeFournisseur", *c.IDCommande)})
			continue
		}
		o := staging.Order{
			ExternalRef:  strconv.FormatInt(*c.IDCommande, 10),
			SupplierCode: c.CodeFournisseur,
			SupplierName: c.NomFournisseur,
			Step:         channelSteps.Step(c.Canal),
		}
		if t, ok := numeric.ParseInstant(c.DateEnvoi); ok {
			o.SentAt = &t
		}
		if t, ok := numeric.ParseInstant(c.DateLivraison); ok {
			o.DeliveredAt = &t
		}
		for j, l := range c.Lignes {
			if l.IDArticle == nil || *l.IDArticle < 0 {
				errs = append(errs, staging.RowError{Index: j, Reason: fmt.Sprintf("order %d: line with missing or negative IdArticle", *c.IDCommande)})
				continue
			}
			ordered := numeric.ClampQty(deref(l.QteCommandee))
			received := numeric.ClampQty(deref(l.QteRecue))
			// winpharma has no expected/outstanding fields: derive both
			expected, toReceive := vendors.DeriveLineQuantities(ordered, received, nil, nil)
			line := staging.OrderLine{
				ProductID:      *l.IDArticle,
				QtyOrdered:     ordered,
				QtyReceived:    received,
				QtyExpected:    expected,
				QtyFree:        numeric.ClampQty(deref(l.QteUg)),
				QtyDiscrepancy: numeric.ClampQty(deref(l.QteEcart)),
				QtyToReceive:   toReceive,
			}
			if l.Pmp != nil {
				cost := numeric.QuantizeMoney(decimal.NewFromFloat(*l.Pmp))
				line.UnitCost = &cost
			}
			o.Lines = append(o.Lines, line)
		}
		o.Lines = staging.DedupOrderLines(o.Lines)
		out = append(out, o)
	}
	return out, errs, nil
}
