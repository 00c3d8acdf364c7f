// internal/vendors/types.go
package vendors

import (
	"strings"

	"github.com/pharmabridge/pharmsync/internal/staging"
)

// Entity kinds a vendor family can expose.
const (
	KindProducts = "products"
	KindOrders   = "orders"
	KindSales    = "sales"
)

// ProductNormalizer turns a raw vendor catalog payload into canonical
// staging records. Skipped rows come back as RowErrors, never as the error;
// the error is reserved for an undecodable payload.
type ProductNormalizer interface {
	Products(payload []byte) ([]staging.Product, []staging.RowError, error)
}

// OrderNormalizer turns a raw vendor purchase-order payload into canonical
// staged orders with deduplicated lines.
type OrderNormalizer interface {
	Orders(payload []byte) ([]staging.Order, []staging.RowError, error)
}

// SaleNormalizer turns a raw vendor sales payload into canonical sale
// records plus any VAT observations carried on the lines.
type SaleNormalizer interface {
	Sales(payload []byte) ([]staging.Sale, []staging.VATObservation, []staging.RowError, error)
}

// Bundle is one vendor family: three normalizers behind one name.
type Bundle struct {
	Name     string
	Products ProductNormalizer
	Orders   OrderNormalizer
	Sales    SaleNormalizer
}

// ChannelMap resolves a vendor order channel/status string to the canonical
// step code. Every vendor carries its own table; unmapped values fall back
// to Default instead of erroring.
type ChannelMap struct {
	Steps   map[string]int16
	Default int16
}

func (m ChannelMap) Step(raw string) int16 {
	if s, ok := m.Steps[strings.ToUpper(strings.TrimSpace(raw))]; ok {
		return s
	}
	return m.Default
}

// RefCode13 strips separators from a vendor reference code and keeps it
// only when exactly 13 digits remain; anything else is treated as absent.
func RefCode13(raw string) string {
	var digits []byte
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c >= '0' && c <= '9' {
			digits = append(digits, c)
		} else if c != ' ' && c != '-' && c != '.' {
			return ""
		}
	}
	if len(digits) != 13 {
		return ""
	}
	return string(digits)
}

// DeriveLineQuantities fills the two derivable order-line quantities for
// vendors that do not send them: expected defaults to ordered, outstanding
// to max(0, ordered-received).
func DeriveLineQuantities(ordered, received int16, expected, toReceive *int16) (int16, int16) {
	exp := ordered
	if expected != nil {
		exp = *expected
	}
	out := ordered - received
	if out < 0 {
		out = 0
	}
	if toReceive != nil {
		out = *toReceive
	}
	return exp, out
}
