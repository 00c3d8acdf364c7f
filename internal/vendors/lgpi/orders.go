// internal/vendors/lgpi/orders.go
package lgpi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pharmabridge/pharmsync/internal/numeric"
	"github.com/pharmabridge/pharmsync/internal/staging"
	"github.com/pharmabridge/pharmsync/internal/vendors"
)

// statutSteps maps lgpi order statuses onto canonical steps; anything
// unrecognized counts as freshly created.
var statutSteps = vendors.ChannelMap{
	Steps: map[string]int16{
		"TRANSMISE":    2,
		"PARTIELLE":    3,
		"RECEPTIONNEE": 4,
		"SOLDEE":       5,
	},
	Default: 1,
}

type orderPayload struct {
	Commandes []commande `json:"commandes"`
}

type commande struct {
	CommandeID         string  `json:"commandeId"`
	FournisseurCode    string  `json:"fournisseurCode"`
	FournisseurLibelle string  `json:"fournisseurLibelle"`
	Statut             string  `json:"statut"`
	DateEnvoi          string  `json:"dateEnvoi"`
	DateLivraison      string  `json:"dateLivraison"`
	Lignes             []ligne `json:"lignes"`
}

type ligne struct {
	ProduitID    *int64 `json:"produitId"`
	QteCommandee *int64 `json:"qteCommandee"`
	QteRecue     *int64 `json:"qteRecue"`
	QteAttendue  *int64 `json:"qteAttendue"`
	QteUg        *int64 `json:"qteUg"`
	QteEcart     *int64 `json:"qteEcart"`
	QteRestante  *int64 `json:"qteRestante"`
}

type orderNormalizer struct{}

func (orderNormalizer) Orders(payload []byte) ([]staging.Order, []staging.RowError, error) {
	var p orderPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, fmt.Errorf("lgpi orders: %w", err)
	}
	if p.Commandes == nil {
		return nil, []staging.RowError{{Index: -1, Reason: "payload has no commandes"}}, nil
	}

	var out []staging.Order
	var errs []staging.RowError
	for i, c := range p.Commandes {
		if strings.TrimSpace(c.CommandeID) == "" {
			errs = append(errs, staging.RowError{Index: i, Reason: "order without commandeId"})
			continue
		}
		if c.FournisseurCode == "" {
			errs = append(errs, staging.RowError{Index: i, Reason: fmt.Sprintf("order %s without fournisseurCode", c.CommandeID)})
			continue
		}
		o := staging.Order{
			ExternalRef:  strings.TrimSpace(c.CommandeID),
			SupplierCode: c.FournisseurCode,
			SupplierName: c.FournisseurLibelle,
			Step:         statutSteps.Step(c.Statut),
		}
		if t, ok := numeric.ParseInstant(c.DateEnvoi); ok {
			o.SentAt = &t
		}
		if t, ok := numeric.ParseInstant(c.DateLivraison); ok {
			o.DeliveredAt = &t
		}
		for j, l := range c.Lignes {
			if l.ProduitID == nil || *l.ProduitID < 0 {
				errs = append(errs, staging.RowError{Index: j, Reason: fmt.Sprintf("order %s: line with missing or negative produitId", c.CommandeID)})
				continue
			}
			ordered := numeric.ClampQty(deref(l.QteCommandee))
			received := numeric.ClampQty(deref(l.QteRecue))
			// lgpi carries expected/outstanding itself, when present
			expected, toReceive := vendors.DeriveLineQuantities(
				ordered, received, clampPtr(l.QteAttendue), clampPtr(l.QteRestante))
			o.Lines = append(o.Lines, staging.OrderLine{
				ProductID:      *l.ProduitID,
				QtyOrdered:     ordered,
				QtyReceived:    received,
				QtyExpected:    expected,
				QtyFree:        numeric.ClampQty(deref(l.QteUg)),
				QtyDiscrepancy: numeric.ClampQty(deref(l.QteEcart)),
				QtyToReceive:   toReceive,
			})
		}
		o.Lines = staging.DedupOrderLines(o.Lines)
		out = append(out, o)
	}
	return out, errs, nil
}

func clampPtr(v *int64) *int16 {
	if v == nil {
		return nil
	}
	c := numeric.ClampQty(*v)
	return &c
}
