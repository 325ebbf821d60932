package workflow

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"npkchat/internal/pricing"
)

// pricePlaceholder is rendered wherever a price is absent, never "$0.00".
const pricePlaceholder = "$?.??"

// FormatPrice renders a dollar amount as $<int>.<2-digit-fraction>. Absent or
// zero amounts render as the placeholder.
func FormatPrice(amount float64) string {
	if amount <= 0 {
		return pricePlaceholder
	}
	cents := int64(math.Round(amount * 100))
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

// FormatHashRate renders a raw hashes-per-second count with a unit chosen by
// the decimal digit-length of its integer value. The divisors pair with a
// two-place decimal shift, so the K/M/G buckets net out to 1e3/1e6/1e9.
func FormatHashRate(m pricing.Metric) string {
	if !m.Known() {
		return "???"
	}
	n := int64(m.Value())
	if n < 0 {
		n = 0
	}
	digits := len(strconv.FormatInt(n, 10))
	switch {
	case digits < 4:
		return fmt.Sprintf("%d h/s", n)
	case digits < 7:
		return scaleHashRate(n, 10, "Kh/s")
	case digits < 10:
		return scaleHashRate(n, 10_000, "Mh/s")
	default:
		return scaleHashRate(n, 10_000_000, "Gh/s")
	}
}

// scaleHashRate divides by the bucket divisor, shifts two decimal places, and
// trims trailing zeros.
func scaleHashRate(n int64, divisor float64, unit string) string {
	v := float64(n) / divisor / 100
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s + " " + unit
}

// TotalCost renders selected-class price x count x duration, or the
// placeholder when no class is selected.
func TotalCost(s *FormState) string {
	price := s.SelectedPrice()
	if price <= 0 {
		return pricePlaceholder
	}
	return FormatPrice(price * float64(s.InstanceCount) * float64(s.InstanceDuration))
}
