// internal/staging/aggregate.go
package staging

import (
	"sort"
	"time"
)

type saleKey struct {
	productID int64
	date      int64 // unix seconds of UTC midnight
}

// AggregateSales collapses raw sale lines onto one record per
// (product, date), summing quantities. A sync call may bundle several source
// blocks (one per reporting sub-period); lines for the same product and day
// must reach storage as a single row. Output is sorted by (product, date) so
// the result set does not depend on input order.
func AggregateSales(in []Sale) []Sale {
	if len(in) == 0 {
		return nil
	}
	type bucket struct {
		date time.Time
		qty  int64
	}
	byKey := make(map[saleKey]bucket, len(in))
	for _, s := range in {
		k := saleKey{productID: s.ProductID, date: s.Date.Unix()}
		b := byKey[k]
		b.date = s.Date
		b.qty += s.Quantity
		byKey[k] = b
	}
	out := make([]Sale, 0, len(byKey))
	for k, b := range byKey {
		out = append(out, Sale{ProductID: k.productID, Date: b.date, Quantity: b.qty})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// DedupOrderLines keeps the last occurrence of each product within one
// order's lines. Vendors occasionally repeat a product inside a single raw
// order; the storage key is (order, product), so duplicates must be merged
// before upsert. Last-seen wins, deliberately batch-order-dependent.
func DedupOrderLines(lines []OrderLine) []OrderLine {
	if len(lines) <= 1 {
		return lines
	}
	lastIdx := make(map[int64]int, len(lines))
	for i, l := range lines {
		lastIdx[l.ProductID] = i
	}
	out := make([]OrderLine, 0, len(lastIdx))
	for i, l := range lines {
		if lastIdx[l.ProductID] == i {
			out = append(out, l)
		}
	}
	return out
}

// CollapseVATObservations keeps the last observation per product. Ties
// across blocks follow batch order, same as DedupOrderLines.
func CollapseVATObservations(obs []VATObservation) []VATObservation {
	if len(obs) <= 1 {
		return obs
	}
	lastIdx := make(map[int64]int, len(obs))
	for i, o := range obs {
		lastIdx[o.ProductID] = i
	}
	out := make([]VATObservation, 0, len(lastIdx))
	for i, o := range obs {
		if lastIdx[o.ProductID] == i {
			out = append(out, o)
		}
	}
	return out
}
