// internal/numeric/numeric.go
package numeric

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Storage width of every quantity column (smallint).
const (
	QtyMin = -32768
	QtyMax = 32767
)

// MoneyCap is the largest magnitude a decimal(10,2) column accepts.
var MoneyCap = decimal.RequireFromString("99999999.99")

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampQty restricts a quantity to the smallint storage range.
func ClampQty(v int64) int16 {
	return int16(Clamp(v, QtyMin, QtyMax))
}

// QuantizeMoney rounds an amount to 2 fractional digits (half up) and caps
// the magnitude at MoneyCap.
func QuantizeMoney(d decimal.Decimal) decimal.Decimal {
	d = d.Round(2)
	if d.Abs().GreaterThan(MoneyCap) {
		if d.IsNegative() {
			return MoneyCap.Neg()
		}
		return MoneyCap
	}
	return d
}

// NormalizeVATRate turns a raw VAT value into a fraction. Vendors disagree on
// whether they send 20 or 0.20; anything above 1 is treated as a percentage.
func NormalizeVATRate(raw decimal.Decimal) decimal.Decimal {
	if raw.GreaterThan(decimal.NewFromInt(1)) {
		return raw.Div(decimal.NewFromInt(100)).Round(4)
	}
	return raw.Round(4)
}

// Layouts seen across vendor exports, most specific first.
var instantLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseInstant parses any of the known vendor timestamp encodings and
// returns the instant normalized to UTC. An unknown encoding is a missing
// value, never an error.
func ParseInstant(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseDate parses like ParseInstant but keeps only the date portion
// (UTC midnight).
func ParseDate(raw string) (time.Time, bool) {
	t, ok := ParseInstant(raw)
	if !ok {
		return time.Time{}, false
	}
	return DateOf(t), true
}

// DateOf truncates t to UTC midnight.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
