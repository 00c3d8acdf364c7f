// internal/db/migrate.go
package db

import (
	"fmt"
)

// Migrate creates/updates the schema. Order matters: referenced tables
// first, so fresh databases get their indexes before the dependent tables.
func (h *Handle) Migrate() error {
	if err := h.DB.AutoMigrate(
		&Pharmacy{},
		&Supplier{},
		&GlobalProduct{},
		&InternalProduct{},
		&InventorySnapshot{},
		&Order{},
		&OrderLine{},
		&Sale{},
		&SyncFile{},
	); err != nil {
		return fmt.Errorf("AutoMigrate error: %w", err)
	}
	return nil
}
