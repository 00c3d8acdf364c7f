// internal/vendors/smartrx/orders.go
package smartrx

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pharmabridge/pharmsync/internal/numeric"
	"github.com/pharmabridge/pharmsync/internal/staging"
	"github.com/pharmabridge/pharmsync/internal/vendors"
)

var channelSteps = vendors.ChannelMap{
	Steps: map[string]int16{
		"EDI":   2,
		"FAX":   3,
		"PHONE": 4,
		"WEB":   5,
	},
	Default: 1,
}

type orderPayload struct {
	PurchaseOrders []purchaseOrder `json:"purchase_orders"`
}

type purchaseOrder struct {
	OrderID      string      `json:"order_id"`
	SupplierCode string      `json:"supplier_code"`
	SupplierName string      `json:"supplier_name"`
	Channel      string      `json:"channel"`
	SentAt       string      `json:"sent_at"`
	DeliveredAt  string      `json:"delivered_at"`
	Lines        []orderLine `json:"lines"`
}

type orderLine struct {
	ItemID      *int64   `json:"item_id"`
	QtyOrdered  *int64   `json:"qty_ordered"`
	QtyReceived *int64   `json:"qty_received"`
	QtyFoc      *int64   `json:"qty_foc"`
	QtyMismatch *int64   `json:"qty_mismatch"`
	UnitCost    *float64 `json:"unit_cost"`
}

type orderNormalizer struct{}

func (orderNormalizer) Orders(payload []byte) ([]staging.Order, []staging.RowError, error) {
	var p orderPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, fmt.Errorf("smartrx orders: %w", err)
	}
	if p.PurchaseOrders == nil {
		return nil, []staging.RowError{{Index: -1, Reason: "payload has no purchase_orders"}}, nil
	}

	var out []staging.Order
	var errs []staging.RowError
	for i, po := range p.PurchaseOrders {
		if strings.TrimSpace(po.OrderID) == "" {
			errs = append(errs, staging.RowError{Index: i, Reason: "order without order_id"})
			continue
		}
		if po.SupplierCode == "" {
			errs = append(errs, staging.RowError{Index: i, Reason: fmt.Sprintf("order %s without supplier_code", po.OrderID)})
			continue
		}
		o := staging.Order{
			ExternalRef:  strings.TrimSpace(po.OrderID),
			SupplierCode: po.SupplierCode,
			SupplierName: po.SupplierName,
			Step:         channelSteps.Step(po.Channel),
		}
		if t, ok := numeric.ParseInstant(po.SentAt); ok {
			o.SentAt = &t
		}
		if t, ok := numeric.ParseInstant(po.DeliveredAt); ok {
			o.DeliveredAt = &t
		}
		for j, l := range po.Lines {
			if l.ItemID == nil || *l.ItemID < 0 {
				errs = append(errs, staging.RowError{Index: j, Reason: fmt.Sprintf("order %s: line with missing or negative item_id", po.OrderID)})
				continue
			}
			ordered := numeric.ClampQty(deref(l.QtyOrdered))
			received := numeric.ClampQty(deref(l.QtyReceived))
			expected, toReceive := vendors.DeriveLineQuantities(ordered, received, nil, nil)
			line := staging.OrderLine{
				ProductID:      *l.ItemID,
				QtyOrdered:     ordered,
				QtyReceived:    received,
				QtyExpected:    expected,
				QtyFree:        numeric.ClampQty(deref(l.QtyFoc)),
				QtyDiscrepancy: numeric.ClampQty(deref(l.QtyMismatch)),
				QtyToReceive:   toReceive,
			}
			if l.UnitCost != nil {
				cost := numeric.QuantizeMoney(decimal.NewFromFloat(*l.UnitCost))
				line.UnitCost = &cost
			}
			o.Lines = append(o.Lines, line)
		}
		o.Lines = staging.DedupOrderLines(o.Lines)
		out = append(out, o)
	}
	return out, errs, nil
}
