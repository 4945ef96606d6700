package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/toko-bundles/internal/bundle"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Document is the JSON shape of a bundle catalog file.
type Document struct {
	Bundles []BundleDTO `json:"bundles" validate:"dive"`
}

// BundleDTO is one bundle definition as stored in files and returned by admin endpoints.
type BundleDTO struct {
	ParentVariantID string         `json:"parentVariantId" validate:"required"`
	Title           string         `json:"title,omitempty"`
	Image           string         `json:"image,omitempty" validate:"omitempty,url"`
	Attributes      []AttributeDTO `json:"attributes,omitempty" validate:"dive"`
	Components      []ComponentDTO `json:"components" validate:"required,min=1,dive"`
	Price           *PriceDTO      `json:"price,omitempty"`
}

// ComponentDTO is one required (variant, quantity) pair.
type ComponentDTO struct {
	VariantID string `json:"variantId" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"gt=0"`
}

// AttributeDTO is a key/value pair copied onto the merged line.
type AttributeDTO struct {
	Key   string `json:"key" validate:"required"`
	Value string `json:"value"`
}

// PriceDTO is a signed price adjustment.
type PriceDTO struct {
	Kind       string `json:"kind" validate:"oneof=percentage fixed"`
	PercentBps int32  `json:"percentBps,omitempty" validate:"gte=-10000,lte=10000"`
	Amount     int64  `json:"amount,omitempty"`
}

// Decode parses and validates a catalog document into definitions, keeping file order.
func Decode(r io.Reader) ([]bundle.Definition, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return doc.Definitions()
}

// Definitions validates the document and converts it.
func (d Document) Definitions() ([]bundle.Definition, error) {
	if err := validate.Struct(d); err != nil {
		return nil, fmt.Errorf("%w: %v", bundle.ErrMalformedDefinition, err)
	}
	defs := make([]bundle.Definition, 0, len(d.Bundles))
	for _, b := range d.Bundles {
		defs = append(defs, b.Definition())
	}
	return defs, nil
}

// Definition converts the DTO without validating it.
func (b BundleDTO) Definition() bundle.Definition {
	def := bundle.Definition{
		ParentVariantID: b.ParentVariantID,
		Title:           b.Title,
		ImageURL:        b.Image,
		Components:      make([]bundle.Component, 0, len(b.Components)),
	}
	for _, c := range b.Components {
		def.Components = append(def.Components, bundle.Component{VariantID: c.VariantID, Quantity: c.Quantity})
	}
	for _, a := range b.Attributes {
		def.Attributes = append(def.Attributes, bundle.Attribute{Key: a.Key, Value: a.Value})
	}
	if b.Price != nil {
		def.Price = bundle.PriceAdjustment{
			Kind:       bundle.AdjustmentKind(b.Price.Kind),
			PercentBps: b.Price.PercentBps,
			Amount:     b.Price.Amount,
		}
	}
	return def
}

// NewDocument converts definitions back into their file shape.
func NewDocument(defs []bundle.Definition) Document {
	doc := Document{Bundles: make([]BundleDTO, 0, len(defs))}
	for _, d := range defs {
		dto := BundleDTO{
			ParentVariantID: d.ParentVariantID,
			Title:           d.Title,
			Image:           d.ImageURL,
			Components:      make([]ComponentDTO, 0, len(d.Components)),
		}
		for _, c := range d.Components {
			dto.Components = append(dto.Components, ComponentDTO{VariantID: c.VariantID, Quantity: c.Quantity})
		}
		for _, a := range d.Attributes {
			dto.Attributes = append(dto.Attributes, AttributeDTO{Key: a.Key, Value: a.Value})
		}
		if !d.Price.IsZero() {
			dto.Price = &PriceDTO{Kind: string(d.Price.Kind), PercentBps: d.Price.PercentBps, Amount: d.Price.Amount}
		}
		doc.Bundles = append(doc.Bundles, dto)
	}
	return doc
}

// FileSource reads definitions from a JSON catalog file on every load.
type FileSource struct {
	Path string
}

// Name identifies the source in logs and metrics.
func (FileSource) Name() string { return "file" }

// Load reads and decodes the catalog file.
func (s FileSource) Load(_ context.Context) ([]bundle.Definition, error) {
	path := s.Path
	if !filepath.IsAbs(path) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve catalog path: %w", err)
		}
		path = filepath.Join(wd, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
