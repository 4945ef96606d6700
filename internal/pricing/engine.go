package pricing

import (
	"math"

	"github.com/noah-isme/toko-bundles/internal/bundle"
)

// Money represents a monetary value stored in minor units.
type Money = int64

// Item describes a consumed line used for pricing a merged bundle.
type Item struct {
	Qty       int64
	UnitPrice Money
}

// PreviewSummary is the priced preview of one merged line.
type PreviewSummary struct {
	Subtotal   Money `json:"subtotal"`
	Adjustment Money `json:"adjustment"`
	Total      Money `json:"total"`
}

// Subtotal sums qty * unit price, ignoring empty or negative rows.
// ok is false when the sum does not fit in Money.
func Subtotal(items []Item) (subtotal Money, ok bool) {
	for _, it := range items {
		if it.Qty <= 0 || it.UnitPrice <= 0 {
			continue
		}
		line, ok := mulMoney(it.Qty, it.UnitPrice)
		if !ok || subtotal > math.MaxInt64-line {
			return 0, false
		}
		subtotal += line
	}
	return subtotal, true
}

// Adjustment returns the signed delta the price adjustment applies to subtotal.
// The result never takes the total below zero. ok is false when the delta or the
// adjusted total does not fit in Money.
func Adjustment(subtotal Money, adj bundle.PriceAdjustment) (Money, bool) {
	if subtotal <= 0 {
		return 0, true
	}
	var delta Money
	switch adj.Kind {
	case bundle.AdjustmentPercentage:
		scaled, ok := mulMoney(subtotal, Money(adj.PercentBps))
		if !ok {
			return 0, false
		}
		delta = scaled / 10000
	case bundle.AdjustmentFixed:
		delta = adj.Amount
	default:
		return 0, true
	}
	if delta > 0 && subtotal > math.MaxInt64-delta {
		return 0, false
	}
	if delta < -subtotal {
		delta = -subtotal
	}
	return delta, true
}

// Preview prices a merged line from its consumed items and adjustment.
// ok is false when the amounts cannot be represented; callers then omit the preview.
func Preview(items []Item, adj bundle.PriceAdjustment) (PreviewSummary, bool) {
	subtotal, ok := Subtotal(items)
	if !ok {
		return PreviewSummary{}, false
	}
	delta, ok := Adjustment(subtotal, adj)
	if !ok {
		return PreviewSummary{}, false
	}
	return PreviewSummary{
		Subtotal:   subtotal,
		Adjustment: delta,
		Total:      subtotal + delta,
	}, true
}

// mulMoney multiplies a non-negative a by a signed b, reporting overflow.
func mulMoney(a, b Money) (Money, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if b == math.MinInt64 {
		return 0, false
	}
	mag := b
	if mag < 0 {
		mag = -mag
	}
	if a > math.MaxInt64/mag {
		return 0, false
	}
	return a * b, true
}
