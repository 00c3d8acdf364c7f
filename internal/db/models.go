// internal/db/models.go
package db

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlaceholderName is written instead of an empty product name so a later
// batch that finally carries the real name is detected as a change.
const PlaceholderName = "unknown"

// pharmacies
type Pharmacy struct {
	ID uint `gorm:"primaryKey"`
	// national registration code, unique when present
	RegistrationCode *string `gorm:"uniqueIndex;size:32"`
	Name             string
	Address          string
	CreatedAt        time.Time `gorm:"autoCreateTime"`
}

// suppliers: one per (pharmacy, vendor supplier code)
type Supplier struct {
	ID         uint   `gorm:"primaryKey"`
	PharmacyID uint   `gorm:"uniqueIndex:uniq_supplier_key"`
	Code       string `gorm:"uniqueIndex:uniq_supplier_key;size:64"`
	Name       string
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// global_products: catalog-wide, keyed by the 13-digit reference code
type GlobalProduct struct {
	ID          uint   `gorm:"primaryKey"`
	RefCode     string `gorm:"uniqueIndex;size:13"`
	Name        string
	Universe    string
	Category    string
	SubCategory string
	Brand       string
	VATRate     decimal.Decimal `gorm:"type:decimal(5,4)"`
	CreatedAt   time.Time       `gorm:"autoCreateTime"`
}

// internal_products: per-pharmacy catalog entry
type InternalProduct struct {
	ID         uint  `gorm:"primaryKey"`
	PharmacyID uint  `gorm:"uniqueIndex:uniq_internal_product"`
	ExternalID int64 `gorm:"uniqueIndex:uniq_internal_product"`
	Name       string
	// nil until some batch supplies a usable rate
	VATRate         *decimal.Decimal `gorm:"type:decimal(5,4)"`
	GlobalProductID *uint            `gorm:"index"`
	CreatedAt       time.Time        `gorm:"autoCreateTime"`
	UpdatedAt       time.Time        `gorm:"autoUpdateTime"`
}

// inventory_snapshots: append-only time series, one row per (product, date)
type InventorySnapshot struct {
	ID                uint            `gorm:"primaryKey"`
	InternalProductID uint            `gorm:"uniqueIndex:uniq_snapshot_key"`
	Date              time.Time       `gorm:"uniqueIndex:uniq_snapshot_key;type:date"`
	Stock             int16           // smallint, clamped upstream
	PriceTTC          decimal.Decimal `gorm:"type:decimal(10,2)"`
	WeightedAvgCost   decimal.Decimal `gorm:"type:decimal(10,2)"`
	CreatedAt         time.Time       `gorm:"autoCreateTime"`
}

// orders: purchase orders, keyed by (pharmacy, vendor order ref)
type Order struct {
	ID          uint   `gorm:"primaryKey"`
	PharmacyID  uint   `gorm:"uniqueIndex:uniq_order_key"`
	ExternalRef string `gorm:"uniqueIndex:uniq_order_key;size:64"`
	SupplierID  uint   `gorm:"index"`
	Step        int16  // canonical status code, vendor channel strings map here
	SentAt      *time.Time
	DeliveredAt *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// order_lines: at most one line per (order, product)
type OrderLine struct {
	ID                uint `gorm:"primaryKey"`
	OrderID           uint `gorm:"uniqueIndex:uniq_order_line_key"`
	InternalProductID uint `gorm:"uniqueIndex:uniq_order_line_key"`
	QtyOrdered        int16
	QtyReceived       int16
	QtyExpected       int16
	QtyFree           int16
	QtyDiscrepancy    int16
	QtyToReceive      int16
	UpdatedAt         time.Time `gorm:"autoUpdateTime"`
}

// sales: aggregated daily observation attached to a snapshot
type Sale struct {
	ID         uint      `gorm:"primaryKey"`
	SnapshotID uint      `gorm:"uniqueIndex:uniq_sale_key"`
	Date       time.Time `gorm:"uniqueIndex:uniq_sale_key;type:date"`
	Quantity   int16
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// sync_files: inbound payload ledger, keeps file-level replays idempotent
type SyncFile struct {
	SyncID      uint   `gorm:"primaryKey;column:sync_id"`
	Filename    string `gorm:"uniqueIndex"`
	SHA256      string `gorm:"uniqueIndex"`
	Vendor      string `gorm:"index"`
	Kind        string `gorm:"index"` // products / orders / sales
	SizeBytes   int64
	Status      int    `gorm:"index"` // 0=pending, 1=done, 2=error
	LastError   string `gorm:"type:text"`
	RunID       string `gorm:"size:36"`
	Created     int
	Updated     int
	Skipped     int
	ReceivedAt  time.Time `gorm:"autoCreateTime"`
	ProcessedAt *time.Time
}
