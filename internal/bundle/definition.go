package bundle

import (
	"fmt"
	"slices"
	"strings"
)

// AdjustmentKind selects how a PriceAdjustment value is interpreted.
type AdjustmentKind string

const (
	// AdjustmentNone leaves the merged line at the host's default price.
	AdjustmentNone AdjustmentKind = ""
	// AdjustmentPercentage applies PercentBps basis points to the merged price.
	AdjustmentPercentage AdjustmentKind = "percentage"
	// AdjustmentFixed applies Amount minor units to the merged price.
	AdjustmentFixed AdjustmentKind = "fixed"
)

const maxPercentBps = 10000

// PriceAdjustment is the signed price change carried onto a merge operation.
type PriceAdjustment struct {
	Kind       AdjustmentKind `json:"kind,omitempty"`
	PercentBps int32          `json:"percentBps,omitempty"`
	Amount     int64          `json:"amount,omitempty"`
}

// IsZero reports whether the adjustment is absent.
func (p PriceAdjustment) IsZero() bool { return p.Kind == AdjustmentNone }

func (p PriceAdjustment) problem() string {
	switch p.Kind {
	case AdjustmentNone:
		if p.PercentBps != 0 || p.Amount != 0 {
			return "price value set without kind"
		}
	case AdjustmentPercentage:
		if p.PercentBps < -maxPercentBps || p.PercentBps > maxPercentBps {
			return fmt.Sprintf("percentage %d bps out of range", p.PercentBps)
		}
	case AdjustmentFixed:
	default:
		return fmt.Sprintf("unknown price kind %q", p.Kind)
	}
	return ""
}

// Component is one required (variant, quantity) pair of a bundle.
type Component struct {
	VariantID string `json:"variantId"`
	Quantity  int64  `json:"quantity"`
}

// Attribute is a key/value pair copied onto the merged line.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Definition declares that its components, when all present, merge into the parent variant.
type Definition struct {
	ParentVariantID string          `json:"parentVariantId"`
	Components      []Component     `json:"components"`
	Price           PriceAdjustment `json:"price"`
	Title           string          `json:"title,omitempty"`
	ImageURL        string          `json:"image,omitempty"`
	Attributes      []Attribute     `json:"attributes,omitempty"`
}

// Validate checks the definition on its own, reporting the first problem found.
func (d Definition) Validate() error {
	return d.validate(0)
}

func (d Definition) validate(index int) error {
	fail := func(reason string) error {
		return &DefinitionError{Index: index, Parent: d.ParentVariantID, Reason: reason}
	}
	if strings.TrimSpace(d.ParentVariantID) == "" {
		return fail("parent variant id required")
	}
	if len(d.Components) == 0 {
		return fail("at least one component required")
	}
	for i, c := range d.Components {
		if strings.TrimSpace(c.VariantID) == "" {
			return fail(fmt.Sprintf("component %d: variant id required", i))
		}
		if c.Quantity <= 0 {
			return fail(fmt.Sprintf("component %d (%s): quantity must be positive, got %d", i, c.VariantID, c.Quantity))
		}
	}
	for i, a := range d.Attributes {
		if strings.TrimSpace(a.Key) == "" {
			return fail(fmt.Sprintf("attribute %d: key required", i))
		}
	}
	if reason := d.Price.problem(); reason != "" {
		return fail(reason)
	}
	return nil
}

// SameRule reports whether two definitions would produce the same merge for the same lines.
// Presentation fields are ignored.
func (d Definition) SameRule(other Definition) bool {
	return d.ParentVariantID == other.ParentVariantID &&
		d.Price == other.Price &&
		slices.Equal(d.Components, other.Components)
}

func (d Definition) clone() Definition {
	d.Components = slices.Clone(d.Components)
	d.Attributes = slices.Clone(d.Attributes)
	return d
}

// distinctVariants returns the component variants without repeats, in first-seen order.
func (d Definition) distinctVariants() []string {
	out := make([]string, 0, len(d.Components))
	for _, c := range d.Components {
		if !slices.Contains(out, c.VariantID) {
			out = append(out, c.VariantID)
		}
	}
	return out
}
