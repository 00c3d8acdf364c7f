// internal/syncer/differ.go
package syncer

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pharmabridge/pharmsync/internal/db"
)

// latestSnapshots returns the most recent persisted snapshot per product:
// max date, tie-broken by highest id (creation order). Single batched query
// plus an in-memory tie-break, never one query per product.
func latestSnapshots(gdb *gorm.DB, productIDs []uint) (map[uint]db.InventorySnapshot, error) {
	out := make(map[uint]db.InventorySnapshot, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	sub := gdb.Model(&db.InventorySnapshot{}).
		Select("internal_product_id, MAX(date) AS date").
		Where("internal_product_id IN ?", productIDs).
		Group("internal_product_id")
	var rows []db.InventorySnapshot
	if err := gdb.
		Where("(internal_product_id, date) IN (?)", sub).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		if prev, ok := out[r.InternalProductID]; !ok || r.ID > prev.ID {
			out[r.InternalProductID] = r
		}
	}
	return out, nil
}

// snapshotChanged reports whether the staged observation differs from the
// latest persisted snapshot on any of the three tracked values. Decimals are
// compared at 2-digit precision so representation noise never forces a row.
func snapshotChanged(prev *db.InventorySnapshot, stock int16, priceTTC, cost decimal.Decimal) bool {
	if prev == nil {
		return true
	}
	if prev.Stock != stock {
		return true
	}
	if !prev.PriceTTC.Round(2).Equal(priceTTC.Round(2)) {
		return true
	}
	return !prev.WeightedAvgCost.Round(2).Equal(cost.Round(2))
}

// newSnapshot builds the row the differ decided to write, dated with the
// sync run day: this is a point-in-time observation, not a replay of the
// vendor's reporting date.
func newSnapshot(productID uint, today time.Time, stock int16, priceTTC, cost decimal.Decimal) db.InventorySnapshot {
	return db.InventorySnapshot{
		InternalProductID: productID,
		Date:              today,
		Stock:             stock,
		PriceTTC:          priceTTC.Round(2),
		WeightedAvgCost:   cost.Round(2),
	}
}
