// internal/syncer/descriptor.go
package syncer

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pharmabridge/pharmsync/internal/db"
)

// One descriptor per entity kind. Natural keys are rendered as canonical
// strings and decimals compared at the column precision, so representation
// differences never read as changes.

func globalProductDescriptor() Descriptor[db.GlobalProduct] {
	return Descriptor[db.GlobalProduct]{
		Name: "global_products",
		Key:  func(g *db.GlobalProduct) string { return g.RefCode },
		Fetch: func(tx *gorm.DB, chunk []*db.GlobalProduct) ([]*db.GlobalProduct, error) {
			refs := make([]string, 0, len(chunk))
			for _, g := range chunk {
				refs = append(refs, g.RefCode)
			}
			var rows []*db.GlobalProduct
			err := tx.Where("ref_code IN ?", refs).Find(&rows).Error
			return rows, err
		},
		Changed: func(ex, st *db.GlobalProduct) bool {
			if st.Name != "" && st.Name != ex.Name {
				return true
			}
			if !st.VATRate.IsZero() && !st.VATRate.Round(4).Equal(ex.VATRate.Round(4)) {
				return true
			}
			return taxonomyChanged(ex, st)
		},
		Assign: func(ex, st *db.GlobalProduct) {
			if st.Name != "" {
				ex.Name = st.Name
			}
			if !st.VATRate.IsZero() {
				ex.VATRate = st.VATRate.Round(4)
			}
			assignTaxonomy(ex, st)
		},
	}
}

func taxonomyChanged(ex, st *db.GlobalProduct) bool {
	return (st.Universe != "" && st.Universe != ex.Universe) ||
		(st.Category != "" && st.Category != ex.Category) ||
		(st.SubCategory != "" && st.SubCategory != ex.SubCategory) ||
		(st.Brand != "" && st.Brand != ex.Brand)
}

func assignTaxonomy(ex, st *db.GlobalProduct) {
	if st.Universe != "" {
		ex.Universe = st.Universe
	}
	if st.Category != "" {
		ex.Category = st.Category
	}
	if st.SubCategory != "" {
		ex.SubCategory = st.SubCategory
	}
	if st.Brand != "" {
		ex.Brand = st.Brand
	}
}

func internalProductDescriptor(pharmacyID uint) Descriptor[db.InternalProduct] {
	return Descriptor[db.InternalProduct]{
		Name: "internal_products",
		Key: func(p *db.InternalProduct) string {
			return fmt.Sprintf("%d|%d", p.PharmacyID, p.ExternalID)
		},
		Fetch: func(tx *gorm.DB, chunk []*db.InternalProduct) ([]*db.InternalProduct, error) {
			ids := make([]int64, 0, len(chunk))
			for _, p := range chunk {
				ids = append(ids, p.ExternalID)
			}
			var rows []*db.InternalProduct
			err := tx.Where("pharmacy_id = ? AND external_id IN ?", pharmacyID, ids).Find(&rows).Error
			return rows, err
		},
		Changed: func(ex, st *db.InternalProduct) bool {
			// a placeholder name never clobbers a real one
			if st.Name != db.PlaceholderName && st.Name != ex.Name {
				return true
			}
			if st.VATRate != nil && !decPtrEqual(ex.VATRate, st.VATRate) {
				return true
			}
			if st.GlobalProductID != nil && !uintPtrEqual(ex.GlobalProductID, st.GlobalProductID) {
				return true
			}
			return false
		},
		Assign: func(ex, st *db.InternalProduct) {
			if st.Name != db.PlaceholderName {
				ex.Name = st.Name
			}
			if st.VATRate != nil {
				ex.VATRate = st.VATRate
			}
			if st.GlobalProductID != nil {
				ex.GlobalProductID = st.GlobalProductID
			}
		},
	}
}

func supplierDescriptor(pharmacyID uint) Descriptor[db.Supplier] {
	return Descriptor[db.Supplier]{
		Name: "suppliers",
		Key: func(s *db.Supplier) string {
			return fmt.Sprintf("%d|%s", s.PharmacyID, s.Code)
		},
		Fetch: func(tx *gorm.DB, chunk []*db.Supplier) ([]*db.Supplier, error) {
			codes := make([]string, 0, len(chunk))
			for _, s := range chunk {
				codes = append(codes, s.Code)
			}
			var rows []*db.Supplier
			err := tx.Where("pharmacy_id = ? AND code IN ?", pharmacyID, codes).Find(&rows).Error
			return rows, err
		},
		// display name is last-write-wins
		Changed: func(ex, st *db.Supplier) bool {
			return st.Name != "" && st.Name != ex.Name
		},
		Assign: func(ex, st *db.Supplier) { ex.Name = st.Name },
	}
}

func orderDescriptor(pharmacyID uint) Descriptor[db.Order] {
	return Descriptor[db.Order]{
		Name: "orders",
		Key: func(o *db.Order) string {
			return fmt.Sprintf("%d|%s", o.PharmacyID, o.ExternalRef)
		},
		Fetch: func(tx *gorm.DB, chunk []*db.Order) ([]*db.Order, error) {
			refs := make([]string, 0, len(chunk))
			for _, o := range chunk {
				refs = append(refs, o.ExternalRef)
			}
			var rows []*db.Order
			err := tx.Where("pharmacy_id = ? AND external_ref IN ?", pharmacyID, refs).Find(&rows).Error
			return rows, err
		},
		Changed: func(ex, st *db.Order) bool {
			if ex.Step != st.Step || ex.SupplierID != st.SupplierID {
				return true
			}
			if st.SentAt != nil && !timePtrEqual(ex.SentAt, st.SentAt) {
				return true
			}
			if st.DeliveredAt != nil && !timePtrEqual(ex.DeliveredAt, st.DeliveredAt) {
				return true
			}
			return false
		},
		Assign: func(ex, st *db.Order) {
			ex.Step = st.Step
			ex.SupplierID = st.SupplierID
			if st.SentAt != nil {
				ex.SentAt = st.SentAt
			}
			if st.DeliveredAt != nil {
				ex.DeliveredAt = st.DeliveredAt
			}
		},
	}
}

func orderLineDescriptor() Descriptor[db.OrderLine] {
	return Descriptor[db.OrderLine]{
		Name: "order_lines",
		Key: func(l *db.OrderLine) string {
			return fmt.Sprintf("%d|%d", l.OrderID, l.InternalProductID)
		},
		Fetch: func(tx *gorm.DB, chunk []*db.OrderLine) ([]*db.OrderLine, error) {
			orderIDs := make([]uint, 0, len(chunk))
			seen := map[uint]bool{}
			for _, l := range chunk {
				if !seen[l.OrderID] {
					seen[l.OrderID] = true
					orderIDs = append(orderIDs, l.OrderID)
				}
			}
			var rows []*db.OrderLine
			err := tx.Where("order_id IN ?", orderIDs).Find(&rows).Error
			return rows, err
		},
		Changed: func(ex, st *db.OrderLine) bool {
			return ex.QtyOrdered != st.QtyOrdered ||
				ex.QtyReceived != st.QtyReceived ||
				ex.QtyExpected != st.QtyExpected ||
				ex.QtyFree != st.QtyFree ||
				ex.QtyDiscrepancy != st.QtyDiscrepancy ||
				ex.QtyToReceive != st.QtyToReceive
		},
		Assign: func(ex, st *db.OrderLine) {
			ex.QtyOrdered = st.QtyOrdered
			ex.QtyReceived = st.QtyReceived
			ex.QtyExpected = st.QtyExpected
			ex.QtyFree = st.QtyFree
			ex.QtyDiscrepancy = st.QtyDiscrepancy
			ex.QtyToReceive = st.QtyToReceive
		},
	}
}

func saleDescriptor() Descriptor[db.Sale] {
	return Descriptor[db.Sale]{
		Name: "sales",
		Key: func(s *db.Sale) string {
			return fmt.Sprintf("%d|%s", s.SnapshotID, s.Date.UTC().Format("2006-01-02"))
		},
		Fetch: func(tx *gorm.DB, chunk []*db.Sale) ([]*db.Sale, error) {
			snapIDs := make([]uint, 0, len(chunk))
			seen := map[uint]bool{}
			for _, s := range chunk {
				if !seen[s.SnapshotID] {
					seen[s.SnapshotID] = true
					snapIDs = append(snapIDs, s.SnapshotID)
				}
			}
			var rows []*db.Sale
			err := tx.Where("snapshot_id IN ?", snapIDs).Find(&rows).Error
			return rows, err
		},
		Changed: func(ex, st *db.Sale) bool { return ex.Quantity != st.Quantity },
		Assign:  func(ex, st *db.Sale) { ex.Quantity = st.Quantity },
	}
}

func decPtrEqual(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Round(4).Equal(b.Round(4))
}

func uintPtrEqual(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
