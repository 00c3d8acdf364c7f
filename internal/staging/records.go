// internal/staging/records.go
package staging

import (
	"time"

	"github.com/shopspring/decimal"
)

// Records in this package are the canonical, vendor-independent shapes every
// normalizer emits. All numeric fields are already clamped/quantized; VAT is
// a fraction (0.20, not 20).

// Product is one catalog entry staged for upsert.
type Product struct {
	ExternalID int64
	Name       string
	RefCode    string // 13-digit reference code, "" when the vendor has none
	// classification taxonomy, "" when the vendor feed has no opinion
	Universe    string
	Category    string
	SubCategory string
	Brand       string
	// nil means the vendor did not supply VAT at all; the upsert step must
	// not clobber a previously known rate with nil.
	VAT             *decimal.Decimal
	Stock           int16
	PriceTTC        decimal.Decimal
	WeightedAvgCost decimal.Decimal
}

// OrderLine is one product line within a staged order.
type OrderLine struct {
	ProductID      int64
	QtyOrdered     int16
	QtyReceived    int16
	QtyExpected    int16
	QtyFree        int16
	QtyDiscrepancy int16
	QtyToReceive   int16
	// unit cost when the vendor carries it on the line; used to backfill a
	// snapshot for products never seen through the catalog endpoint
	UnitCost *decimal.Decimal
}

// Order is one staged purchase order with its deduplicated lines.
type Order struct {
	ExternalRef  string
	SupplierCode string
	SupplierName string
	Step         int16
	SentAt       *time.Time
	DeliveredAt  *time.Time
	Lines        []OrderLine
}

// Sale is one (product, date) sales observation. Quantity stays int64 until
// aggregation has summed duplicate lines; it is clamped at persist time.
type Sale struct {
	ProductID int64
	Date      time.Time
	Quantity  int64
}

// VATObservation is the side channel some vendors expose on sale lines:
// a product's VAT rate seen outside the catalog endpoint.
type VATObservation struct {
	ProductID int64
	Rate      decimal.Decimal
}

// RowError describes one skipped input row. These are collected, never
// raised; the batch keeps going.
type RowError struct {
	Index  int
	Reason string
}

func (e RowError) Error() string { return e.Reason }
