package bundle

import "slices"

// CartLineInput is one consumed line reference inside a merge operation.
type CartLineInput struct {
	CartLineID string
	Quantity   int64
}

// MergeOperation instructs the host to combine the listed lines into one parent line.
type MergeOperation struct {
	ParentVariantID string
	CartLines       []CartLineInput
	Price           *PriceAdjustment
	Title           string
	ImageURL        string
	Attributes      []Attribute
}

// Emit maps a committed match onto its merge operation.
func Emit(def Definition, allocations []Allocation) MergeOperation {
	lines := make([]CartLineInput, 0, len(allocations))
	for _, a := range allocations {
		lines = append(lines, CartLineInput{CartLineID: a.LineID, Quantity: a.Quantity})
	}
	op := MergeOperation{
		ParentVariantID: def.ParentVariantID,
		CartLines:       lines,
		Title:           def.Title,
		ImageURL:        def.ImageURL,
		Attributes:      slices.Clone(def.Attributes),
	}
	if !def.Price.IsZero() {
		price := def.Price
		op.Price = &price
	}
	return op
}
