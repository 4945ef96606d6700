package transform

import (
	"github.com/noah-isme/toko-bundles/internal/catalog"
	"github.com/noah-isme/toko-bundles/internal/pricing"
)

// Request is the cart snapshot handed over by the host engine.
type Request struct {
	Cart Cart `json:"cart"`
}

// Cart carries the lines of one checkout.
type Cart struct {
	Lines []CartLine `json:"lines" validate:"required,dive"`
}

// CartLine is one line of the snapshot.
type CartLine struct {
	ID          string      `json:"id" validate:"required"`
	Quantity    int64       `json:"quantity" validate:"gte=0"`
	Cost        *Cost       `json:"cost,omitempty"`
	Merchandise Merchandise `json:"merchandise"`
}

// Cost is the per-unit price of a line in minor units.
type Cost struct {
	AmountPerQuantity int64 `json:"amountPerQuantity" validate:"gte=0"`
}

// Merchandise identifies the variant on a line and the bundles it declares membership of.
type Merchandise struct {
	ID               string              `json:"id" validate:"required"`
	ComponentParents []catalog.BundleDTO `json:"componentParents,omitempty"`
}

// Response lists the operations for the host to apply.
type Response struct {
	Operations []Operation `json:"operations"`
	Summary    Summary     `json:"summary"`
}

// Operation wraps a single merge instruction.
type Operation struct {
	Merge Merge `json:"merge"`
}

// Merge combines the listed cart lines into one parent line.
type Merge struct {
	ParentVariantID string                  `json:"parentVariantId"`
	Title           string                  `json:"title,omitempty"`
	CartLines       []MergeLine             `json:"cartLines"`
	Image           string                  `json:"image,omitempty"`
	Price           *catalog.PriceDTO       `json:"price,omitempty"`
	Attributes      []catalog.AttributeDTO  `json:"attributes,omitempty"`
	Preview         *pricing.PreviewSummary `json:"preview,omitempty"`
}

// MergeLine is one consumed quantity of a cart line.
type MergeLine struct {
	CartLineID string `json:"cartLineId"`
	Quantity   int64  `json:"quantity"`
}

// Summary reports what happened during the pass.
type Summary struct {
	PassID      string          `json:"passId"`
	Definitions int             `json:"definitions"`
	Matched     int             `json:"matched"`
	Skipped     int             `json:"skipped"`
	Outcomes    []OutcomeDTO    `json:"outcomes"`
	Remaining   []RemainingLine `json:"remaining"`
}

// OutcomeDTO is the per-definition result of a pass.
type OutcomeDTO struct {
	Position         int    `json:"position"`
	ParentVariantID  string `json:"parentVariantId"`
	Status           string `json:"status"`
	UnmatchedVariant string `json:"unmatchedVariant,omitempty"`
}

// RemainingLine is the unconsumed quantity of a line after the pass.
type RemainingLine struct {
	CartLineID string `json:"cartLineId"`
	Quantity   int64  `json:"quantity"`
}
