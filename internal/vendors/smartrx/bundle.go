// internal/vendors/smartrx/bundle.go
package smartrx

import (
	"github.com/shopspring/decimal"

	"github.com/pharmabridge/pharmsync/internal/numeric"
	"github.com/pharmabridge/pharmsync/internal/vendors"
)

func init() {
	vendors.Register(vendors.Bundle{
		Name:     "smartrx",
		Products: productNormalizer{},
		Orders:   orderNormalizer{},
		Sales:    saleNormalizer{},
	})
}

func deref(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func money(v *float64) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return numeric.QuantizeMoney(decimal.NewFromFloat(*v))
}
