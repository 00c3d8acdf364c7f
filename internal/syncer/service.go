// internal/syncer/service.go
package syncer

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pharmabridge/pharmsync/internal/db"
	"github.com/pharmabridge/pharmsync/internal/numeric"
	"github.com/pharmabridge/pharmsync/internal/staging"
	"github.com/pharmabridge/pharmsync/internal/vendors"
)

// Service persists normalized batches. One inbound batch is processed
// sequentially; concurrent batches racing on the same natural key are caught
// by the storage uniqueness constraints, not by in-process locking; on a
// constraint violation the caller retries, which lands as an update.
type Service struct {
	db        *gorm.DB
	log       zerolog.Logger
	chunkSize int
	now       func() time.Time
}

func NewService(gdb *gorm.DB, log zerolog.Logger) *Service {
	return &Service{db: gdb, log: log, chunkSize: DefaultChunkSize, now: time.Now}
}

// PharmacyRef identifies the pharmacy a batch belongs to. The pharmacy is
// created on its first sync; identity is immutable afterwards.
type PharmacyRef struct {
	RegistrationCode string
	Name             string
	Address          string
}

func (s *Service) Pharmacy(ref PharmacyRef) (db.Pharmacy, error) {
	var ph db.Pharmacy
	err := s.db.Where("registration_code = ?", ref.RegistrationCode).Take(&ph).Error
	if err == nil {
		return ph, nil
	}
	if err != gorm.ErrRecordNotFound {
		return ph, err
	}
	code := ref.RegistrationCode
	ph = db.Pharmacy{RegistrationCode: &code, Name: ref.Name, Address: ref.Address}
	if err := s.db.Create(&ph).Error; err != nil {
		return ph, err
	}
	s.log.Info().Str("registration_code", code).Uint("pharmacy_id", ph.ID).Msg("pharmacy created on first sync")
	return ph, nil
}

// Sync is the one operation per (vendor, entity kind): normalize the raw
// payload and reconcile it into the canonical schema.
func (s *Service) Sync(vendor, kind string, ref PharmacyRef, payload []byte) (Result, error) {
	b, ok := vendors.Get(vendor)
	if !ok {
		return Result{}, fmt.Errorf("unknown vendor %q", vendor)
	}
	ph, err := s.Pharmacy(ref)
	if err != nil {
		return Result{}, err
	}

	switch kind {
	case vendors.KindProducts:
		if b.Products == nil {
			return Result{}, fmt.Errorf("vendor %q has no product feed", vendor)
		}
		recs, rowErrs, err := b.Products.Products(payload)
		if err != nil {
			return Result{}, err
		}
		return s.SyncProducts(ph.ID, recs, rowErrs)
	case vendors.KindOrders:
		if b.Orders == nil {
			return Result{}, fmt.Errorf("vendor %q has no order feed", vendor)
		}
		orders, rowErrs, err := b.Orders.Orders(payload)
		if err != nil {
			return Result{}, err
		}
		return s.SyncOrders(ph.ID, orders, rowErrs)
	case vendors.KindSales:
		if b.Sales == nil {
			return Result{}, fmt.Errorf("vendor %q has no sales feed", vendor)
		}
		sales, obs, rowErrs, err := b.Sales.Sales(payload)
		if err != nil {
			return Result{}, err
		}
		return s.SyncSales(ph.ID, sales, obs, rowErrs)
	}
	return Result{}, fmt.Errorf("unknown entity kind %q", kind)
}

// SyncProducts reconciles a normalized catalog batch: global products by
// reference code, internal products by (pharmacy, external id), then one
// snapshot per product whose stock/price/cost moved since the latest row.
func (s *Service) SyncProducts(pharmacyID uint, recs []staging.Product, rowErrs []staging.RowError) (Result, error) {
	var res Result
	res.addErrors(rowErrs)
	recs = dedupeByExternalID(recs)
	if len(recs) == 0 {
		return res, nil
	}

	// catalog-wide rows first, so internal products can link to them
	globalByRef := map[string]*db.GlobalProduct{}
	var globals []*db.GlobalProduct
	for _, r := range recs {
		if r.RefCode == "" {
			continue
		}
		if _, dup := globalByRef[r.RefCode]; dup {
			continue
		}
		g := &db.GlobalProduct{
			RefCode:     r.RefCode,
			Name:        r.Name,
			Universe:    r.Universe,
			Category:    r.Category,
			SubCategory: r.SubCategory,
			Brand:       r.Brand,
		}
		if r.VAT != nil {
			g.VATRate = r.VAT.Round(4)
		}
		globalByRef[r.RefCode] = g
		globals = append(globals, g)
	}
	if len(globals) > 0 {
		if _, err := Upsert(s.db, globalProductDescriptor(), globals, s.chunkSize); err != nil {
			return res, err
		}
	}

	staged := make([]*db.InternalProduct, 0, len(recs))
	for _, r := range recs {
		ip := &db.InternalProduct{
			PharmacyID: pharmacyID,
			ExternalID: r.ExternalID,
			Name:       nameOrPlaceholder(r.Name),
		}
		if r.VAT != nil {
			v := r.VAT.Round(4)
			ip.VATRate = &v
		}
		if g := globalByRef[r.RefCode]; g != nil && g.ID != 0 {
			id := g.ID
			ip.GlobalProductID = &id
		}
		staged = append(staged, ip)
	}
	counts, err := Upsert(s.db, internalProductDescriptor(pharmacyID), staged, s.chunkSize)
	res.absorb(counts)
	if err != nil {
		return res, err
	}

	written, err := s.writeSnapshots(staged, recs)
	if err != nil {
		return res, err
	}
	s.log.Info().
		Uint("pharmacy_id", pharmacyID).
		Int("products", len(recs)).
		Int("snapshots_written", written).
		Int("created", res.Created).Int("updated", res.Updated).Int("unchanged", res.Unchanged).
		Msg("product batch reconciled")
	return res, nil
}

// writeSnapshots runs the differ: one new time-series row per product whose
// observation differs from the latest persisted snapshot. A second sync on
// the same day updates that day's row instead of violating (product, date).
func (s *Service) writeSnapshots(products []*db.InternalProduct, recs []staging.Product) (int, error) {
	ids := make([]uint, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	latest, err := latestSnapshots(s.db, ids)
	if err != nil {
		return 0, err
	}

	today := numeric.DateOf(s.now())
	written := 0
	var creates []*db.InventorySnapshot
	err = s.db.Transaction(func(tx *gorm.DB) error {
		for i, p := range products {
			r := recs[i]
			var prev *db.InventorySnapshot
			if row, ok := latest[p.ID]; ok {
				row := row
				prev = &row
			}
			if !snapshotChanged(prev, r.Stock, r.PriceTTC, r.WeightedAvgCost) {
				continue
			}
			if prev != nil && numeric.DateOf(prev.Date).Equal(today) {
				prev.Stock = r.Stock
				prev.PriceTTC = r.PriceTTC.Round(2)
				prev.WeightedAvgCost = r.WeightedAvgCost.Round(2)
				if err := tx.Save(prev).Error; err != nil {
					return err
				}
				written++
				continue
			}
			snap := newSnapshot(p.ID, today, r.Stock, r.PriceTTC, r.WeightedAvgCost)
			creates = append(creates, &snap)
		}
		if len(creates) > 0 {
			if err := tx.CreateInBatches(creates, s.chunkSize).Error; err != nil {
				return err
			}
			written += len(creates)
		}
		return nil
	})
	return written, err
}

// SyncOrders reconciles purchase orders: suppliers first, then order
// headers, then lines keyed by (order, product). An order whose supplier
// could not be resolved is skipped and reported, never dropped silently.
func (s *Service) SyncOrders(pharmacyID uint, orders []staging.Order, rowErrs []staging.RowError) (Result, error) {
	var res Result
	res.addErrors(rowErrs)
	orders = dedupeByExternalRef(orders)
	if len(orders) == 0 {
		return res, nil
	}

	supplierByCode := map[string]*db.Supplier{}
	var suppliers []*db.Supplier
	for _, o := range orders {
		if sp, ok := supplierByCode[o.SupplierCode]; ok {
			// last-write-wins on the display name
			if o.SupplierName != "" {
				sp.Name = o.SupplierName
			}
			continue
		}
		sp := &db.Supplier{PharmacyID: pharmacyID, Code: o.SupplierCode, Name: o.SupplierName}
		supplierByCode[o.SupplierCode] = sp
		suppliers = append(suppliers, sp)
	}
	if _, err := Upsert(s.db, supplierDescriptor(pharmacyID), suppliers, s.chunkSize); err != nil {
		return res, err
	}

	productByExt, err := s.ensureInternalProducts(pharmacyID, lineProductIDs(orders))
	if err != nil {
		return res, err
	}

	type stagedOrder struct {
		row   *db.Order
		lines []staging.OrderLine
	}
	var stagedOrders []stagedOrder
	var orderRows []*db.Order
	for i, o := range orders {
		sp := supplierByCode[o.SupplierCode]
		if sp == nil || sp.ID == 0 {
			res.addError(i, fmt.Sprintf("order %s: supplier %q unresolved", o.ExternalRef, o.SupplierCode))
			continue
		}
		row := &db.Order{
			PharmacyID:  pharmacyID,
			ExternalRef: o.ExternalRef,
			SupplierID:  sp.ID,
			Step:        o.Step,
			SentAt:      o.SentAt,
			DeliveredAt: o.DeliveredAt,
		}
		stagedOrders = append(stagedOrders, stagedOrder{row: row, lines: o.Lines})
		orderRows = append(orderRows, row)
	}
	counts, err := Upsert(s.db, orderDescriptor(pharmacyID), orderRows, s.chunkSize)
	res.absorb(counts)
	if err != nil {
		return res, err
	}

	var lineRows []*db.OrderLine
	var costBackfill []staging.OrderLine
	var costProducts []uint
	for _, so := range stagedOrders {
		for _, l := range so.lines {
			p := productByExt[l.ProductID]
			if p == nil {
				continue
			}
			lineRows = append(lineRows, &db.OrderLine{
				OrderID:           so.row.ID,
				InternalProductID: p.ID,
				QtyOrdered:        l.QtyOrdered,
				QtyReceived:       l.QtyReceived,
				QtyExpected:       l.QtyExpected,
				QtyFree:           l.QtyFree,
				QtyDiscrepancy:    l.QtyDiscrepancy,
				QtyToReceive:      l.QtyToReceive,
			})
			if l.UnitCost != nil {
				costBackfill = append(costBackfill, l)
				costProducts = append(costProducts, p.ID)
			}
		}
	}
	lineCounts, err := Upsert(s.db, orderLineDescriptor(), lineRows, s.chunkSize)
	res.absorb(lineCounts)
	if err != nil {
		return res, err
	}

	if err := s.backfillSnapshots(costProducts, costBackfill); err != nil {
		return res, err
	}

	s.log.Info().
		Uint("pharmacy_id", pharmacyID).
		Int("orders", len(orderRows)).
		Int("lines", len(lineRows)).
		Int("created", res.Created).Int("updated", res.Updated).Int("unchanged", res.Unchanged).
		Int("skipped", res.Skipped).
		Msg("order batch reconciled")
	return res, nil
}

// backfillSnapshots seeds a zero-stock snapshot for products that have no
// time series yet, using the cost the order line carried. Products already
// holding a snapshot are left alone.
func (s *Service) backfillSnapshots(productIDs []uint, lines []staging.OrderLine) error {
	if len(productIDs) == 0 {
		return nil
	}
	latest, err := latestSnapshots(s.db, productIDs)
	if err != nil {
		return err
	}
	today := numeric.DateOf(s.now())
	seen := map[uint]bool{}
	var creates []*db.InventorySnapshot
	for i, pid := range productIDs {
		if _, has := latest[pid]; has || seen[pid] {
			continue
		}
		seen[pid] = true
		snap := newSnapshot(pid, today, 0, decimal.Zero, lines[i].UnitCost.Round(2))
		creates = append(creates, &snap)
	}
	if len(creates) == 0 {
		return nil
	}
	return s.db.CreateInBatches(creates, s.chunkSize).Error
}

// SyncSales reconciles aggregated sales: duplicate (product, day) lines are
// summed before they reach storage, each sale row hangs off the product's
// snapshot in force on that day, and VAT observations backfill products the
// catalog endpoint never priced.
func (s *Service) SyncSales(pharmacyID uint, sales []staging.Sale, obs []staging.VATObservation, rowErrs []staging.RowError) (Result, error) {
	var res Result
	res.addErrors(rowErrs)

	sales = staging.AggregateSales(sales)
	obs = staging.CollapseVATObservations(obs)
	if len(sales) == 0 && len(obs) == 0 {
		return res, nil
	}

	extIDs := make([]int64, 0, len(sales)+len(obs))
	for _, sl := range sales {
		extIDs = append(extIDs, sl.ProductID)
	}
	for _, o := range obs {
		extIDs = append(extIDs, o.ProductID)
	}
	productByExt, err := s.ensureInternalProducts(pharmacyID, extIDs)
	if err != nil {
		return res, err
	}

	snapIndex, err := s.snapshotIndex(productByExt, sales)
	if err != nil {
		return res, err
	}

	var saleRows []*db.Sale
	for i, sl := range sales {
		p := productByExt[sl.ProductID]
		if p == nil {
			continue
		}
		snapID := snapIndex.forDate(p.ID, sl.Date)
		if snapID == 0 {
			res.addError(i, fmt.Sprintf("product %d: no snapshot for sale on %s", sl.ProductID, sl.Date.Format("2006-01-02")))
			continue
		}
		saleRows = append(saleRows, &db.Sale{
			SnapshotID: snapID,
			Date:       sl.Date,
			Quantity:   numeric.ClampQty(sl.Quantity),
		})
	}
	counts, err := Upsert(s.db, saleDescriptor(), saleRows, s.chunkSize)
	res.absorb(counts)
	if err != nil {
		return res, err
	}

	backfilled, err := s.applyVATObservations(productByExt, obs)
	if err != nil {
		return res, err
	}

	s.log.Info().
		Uint("pharmacy_id", pharmacyID).
		Int("sales", len(saleRows)).
		Int("vat_backfilled", backfilled).
		Int("created", res.Created).Int("updated", res.Updated).Int("unchanged", res.Unchanged).
		Int("skipped", res.Skipped).
		Msg("sales batch reconciled")
	return res, nil
}

// applyVATObservations fills VAT on products that still have none. A known
// rate is never overwritten from the sales side channel.
func (s *Service) applyVATObservations(productByExt map[int64]*db.InternalProduct, obs []staging.VATObservation) (int, error) {
	n := 0
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, o := range obs {
			p := productByExt[o.ProductID]
			if p == nil || p.VATRate != nil {
				continue
			}
			rate := numeric.NormalizeVATRate(o.Rate)
			p.VATRate = &rate
			if err := tx.Model(&db.InternalProduct{}).Where("id = ?", p.ID).
				Update("vat_rate", rate).Error; err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

// ensureInternalProducts guarantees a per-pharmacy product row exists for
// every referenced external id, creating placeholders for ids never seen
// through the catalog feed. Single batched lookup + one batched create.
func (s *Service) ensureInternalProducts(pharmacyID uint, extIDs []int64) (map[int64]*db.InternalProduct, error) {
	out := map[int64]*db.InternalProduct{}
	uniq := make([]int64, 0, len(extIDs))
	seen := map[int64]bool{}
	for _, id := range extIDs {
		if !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}
	if len(uniq) == 0 {
		return out, nil
	}
	var existing []*db.InternalProduct
	if err := s.db.Where("pharmacy_id = ? AND external_id IN ?", pharmacyID, uniq).
		Find(&existing).Error; err != nil {
		return nil, err
	}
	for _, p := range existing {
		out[p.ExternalID] = p
	}
	var creates []*db.InternalProduct
	for _, id := range uniq {
		if out[id] != nil {
			continue
		}
		p := &db.InternalProduct{PharmacyID: pharmacyID, ExternalID: id, Name: db.PlaceholderName}
		creates = append(creates, p)
		out[id] = p
	}
	if len(creates) > 0 {
		if err := s.db.CreateInBatches(creates, s.chunkSize).Error; err != nil {
			return nil, err
		}
	}
	return out, nil
}

// snapshotIndex resolves which snapshot was in force for a product on a
// given day: the latest row dated on or before that day, falling back to the
// earliest row. The fallback also covers sales older than the first
// observation. Products with no snapshot at all get a zero-stock row dated
// today first, so the (snapshot, date) sale key always resolves.
type snapshotIdx struct {
	byProduct map[uint][]db.InventorySnapshot // sorted by (date, id)
}

func (idx snapshotIdx) forDate(productID uint, day time.Time) uint {
	rows := idx.byProduct[productID]
	if len(rows) == 0 {
		return 0
	}
	chosen := rows[0]
	for _, r := range rows {
		if r.Date.After(day) {
			break
		}
		chosen = r
	}
	return chosen.ID
}

func (s *Service) snapshotIndex(productByExt map[int64]*db.InternalProduct, sales []staging.Sale) (snapshotIdx, error) {
	idx := snapshotIdx{byProduct: map[uint][]db.InventorySnapshot{}}
	ids := make([]uint, 0, len(productByExt))
	for _, p := range productByExt {
		ids = append(ids, p.ID)
	}
	if len(ids) == 0 {
		return idx, nil
	}
	var rows []db.InventorySnapshot
	if err := s.db.
		Select("id", "internal_product_id", "date").
		Where("internal_product_id IN ?", ids).
		Find(&rows).Error; err != nil {
		return idx, err
	}
	for _, r := range rows {
		idx.byProduct[r.InternalProductID] = append(idx.byProduct[r.InternalProductID], r)
	}

	// seed products that have no series yet
	today := numeric.DateOf(s.now())
	var creates []*db.InventorySnapshot
	for _, p := range productByExt {
		if len(idx.byProduct[p.ID]) == 0 {
			snap := newSnapshot(p.ID, today, 0, decimal.Zero, decimal.Zero)
			creates = append(creates, &snap)
		}
	}
	if len(creates) > 0 {
		if err := s.db.CreateInBatches(creates, s.chunkSize).Error; err != nil {
			return idx, err
		}
		for _, c := range creates {
			idx.byProduct[c.InternalProductID] = append(idx.byProduct[c.InternalProductID], *c)
		}
	}

	for pid := range idx.byProduct {
		rows := idx.byProduct[pid]
		sort.Slice(rows, func(i, j int) bool {
			if !rows[i].Date.Equal(rows[j].Date) {
				return rows[i].Date.Before(rows[j].Date)
			}
			return rows[i].ID < rows[j].ID
		})
		idx.byProduct[pid] = rows
	}
	return idx, nil
}

func lineProductIDs(orders []staging.Order) []int64 {
	var out []int64
	for _, o := range orders {
		for _, l := range o.Lines {
			out = append(out, l.ProductID)
		}
	}
	return out
}

// dedupeByExternalID keeps the last occurrence of a product id repeated
// inside one catalog payload, so the upsert never stages two rows behind
// the same (pharmacy, external id) key.
func dedupeByExternalID(recs []staging.Product) []staging.Product {
	if len(recs) <= 1 {
		return recs
	}
	lastIdx := make(map[int64]int, len(recs))
	for i, r := range recs {
		lastIdx[r.ExternalID] = i
	}
	out := make([]staging.Product, 0, len(lastIdx))
	for i, r := range recs {
		if lastIdx[r.ExternalID] == i {
			out = append(out, r)
		}
	}
	return out
}

// dedupeByExternalRef keeps the last occurrence of an order ref repeated
// inside one payload.
func dedupeByExternalRef(orders []staging.Order) []staging.Order {
	if len(orders) <= 1 {
		return orders
	}
	lastIdx := make(map[string]int, len(orders))
	for i, o := range orders {
		lastIdx[o.ExternalRef] = i
	}
	out := make([]staging.Order, 0, len(lastIdx))
	for i, o := range orders {
		if lastIdx[o.ExternalRef] == i {
			out = append(out, o)
		}
	}
	return out
}

func nameOrPlaceholder(name string) string {
	if name == "" {
		return db.PlaceholderName
	}
	return name
}
