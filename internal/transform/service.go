package transform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/toko-bundles/internal/bundle"
	"github.com/noah-isme/toko-bundles/internal/catalog"
	"github.com/noah-isme/toko-bundles/internal/common"
	"github.com/noah-isme/toko-bundles/internal/obs"
	"github.com/noah-isme/toko-bundles/internal/pricing"
)

// CatalogProvider yields the static catalog for a pass.
type CatalogProvider interface {
	Current(ctx context.Context) (*bundle.Catalog, error)
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Catalogs CatalogProvider
	Logger   zerolog.Logger
	Tracer   trace.Tracer
	NewID    func() string
}

// Service runs one bundle resolution pass per request.
type Service struct {
	catalogs CatalogProvider
	logger   zerolog.Logger
	tracer   trace.Tracer
	validate *validator.Validate
	newID    func() string
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = obs.Tracer("github.com/noah-isme/toko-bundles/internal/transform")
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Service{
		catalogs: cfg.Catalogs,
		logger:   cfg.Logger,
		tracer:   tracer,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		newID:    newID,
	}
}

// Run validates req, builds the pass catalog and resolves the cart against it.
func (s *Service) Run(ctx context.Context, req Request) (Response, error) {
	ctx, span := s.tracer.Start(ctx, "bundle.resolve")
	defer span.End()

	start := time.Now()
	resp, err := s.run(ctx, req, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		obs.RecordBundlePass(passResult(err), 0, 0, time.Since(start))
		return Response{}, mapError(err)
	}
	obs.RecordBundlePass("ok", resp.Summary.Matched, resp.Summary.Skipped, time.Since(start))
	return resp, nil
}

func (s *Service) run(ctx context.Context, req Request, span trace.Span) (Response, error) {
	if err := s.validate.Struct(req); err != nil {
		return Response{}, fmt.Errorf("%w: %v", errInvalidRequest, err)
	}

	var static *bundle.Catalog
	if s.catalogs != nil {
		cat, err := s.catalogs.Current(ctx)
		if err != nil {
			return Response{}, fmt.Errorf("%w: %w", errCatalogUnavailable, err)
		}
		static = cat
	}

	lines, dynamic, costs := flatten(req.Cart.Lines)
	pass, err := static.Extend(dynamic)
	if err != nil {
		return Response{}, err
	}

	passID := s.newID()
	logCtx := s.logger.With().Str("pass_id", passID)
	if shop := obs.ShopDomainFromContext(ctx); shop != "" {
		logCtx = logCtx.Str("shop_domain", shop)
	}
	logger := logCtx.Logger()
	result, err := bundle.NewResolver(logger).Resolve(lines, pass)
	if err != nil {
		return Response{}, err
	}

	span.SetAttributes(
		attribute.String("bundle.pass_id", passID),
		attribute.Int("bundle.lines", len(lines)),
		attribute.Int("bundle.definitions", pass.Len()),
		attribute.Int("bundle.dynamic_definitions", pass.Len()-static.Len()),
		attribute.Int("bundle.matched", result.Matched()),
		attribute.Int("bundle.skipped", result.Skipped()),
	)
	logger.Info().
		Int("definitions", pass.Len()).
		Int("matched", result.Matched()).
		Int("skipped", result.Skipped()).
		Msg("bundle pass completed")

	return buildResponse(passID, pass.Len(), result, costs), nil
}

// flatten converts request lines into inventory lines, dynamic definitions in
// order of first appearance, and the known unit costs keyed by line id.
func flatten(in []CartLine) ([]bundle.Line, []bundle.Definition, map[string]int64) {
	lines := make([]bundle.Line, 0, len(in))
	var dynamic []bundle.Definition
	costs := make(map[string]int64)
	for _, l := range in {
		lines = append(lines, bundle.Line{ID: l.ID, VariantID: l.Merchandise.ID, Quantity: l.Quantity})
		if l.Cost != nil {
			costs[l.ID] = l.Cost.AmountPerQuantity
		}
		for _, parent := range l.Merchandise.ComponentParents {
			dynamic = append(dynamic, parent.Definition())
		}
	}
	return lines, dynamic, costs
}

func buildResponse(passID string, definitions int, result bundle.Result, costs map[string]int64) Response {
	resp := Response{
		Operations: make([]Operation, 0, len(result.Operations)),
		Summary: Summary{
			PassID:      passID,
			Definitions: definitions,
			Matched:     result.Matched(),
			Skipped:     result.Skipped(),
			Outcomes:    make([]OutcomeDTO, 0, len(result.Outcomes)),
			Remaining:   make([]RemainingLine, 0, len(result.Remaining)),
		},
	}
	for _, op := range result.Operations {
		resp.Operations = append(resp.Operations, Operation{Merge: toMerge(op, costs)})
	}
	for _, o := range result.Outcomes {
		resp.Summary.Outcomes = append(resp.Summary.Outcomes, OutcomeDTO{
			Position:         o.Position,
			ParentVariantID:  o.ParentVariantID,
			Status:           string(o.Status),
			UnmatchedVariant: o.UnmatchedVariant,
		})
	}
	for _, r := range result.Remaining {
		resp.Summary.Remaining = append(resp.Summary.Remaining, RemainingLine{CartLineID: r.LineID, Quantity: r.Remaining})
	}
	return resp
}

func toMerge(op bundle.MergeOperation, costs map[string]int64) Merge {
	m := Merge{
		ParentVariantID: op.ParentVariantID,
		Title:           op.Title,
		Image:           op.ImageURL,
		CartLines:       make([]MergeLine, 0, len(op.CartLines)),
	}
	items := make([]pricing.Item, 0, len(op.CartLines))
	priced := true
	for _, cl := range op.CartLines {
		m.CartLines = append(m.CartLines, MergeLine{CartLineID: cl.CartLineID, Quantity: cl.Quantity})
		cost, ok := costs[cl.CartLineID]
		if !ok {
			priced = false
			continue
		}
		items = append(items, pricing.Item{Qty: cl.Quantity, UnitPrice: cost})
	}
	for _, a := range op.Attributes {
		m.Attributes = append(m.Attributes, catalog.AttributeDTO{Key: a.Key, Value: a.Value})
	}
	var adj bundle.PriceAdjustment
	if op.Price != nil {
		adj = *op.Price
		m.Price = &catalog.PriceDTO{Kind: string(adj.Kind), PercentBps: adj.PercentBps, Amount: adj.Amount}
	}
	if priced && len(items) > 0 {
		if preview, ok := pricing.Preview(items, adj); ok {
			m.Preview = &preview
		}
	}
	return m
}

var (
	errInvalidRequest     = errors.New("transform: invalid request")
	errCatalogUnavailable = errors.New("transform: catalog unavailable")
)

func passResult(err error) string {
	switch {
	case errors.Is(err, errInvalidRequest),
		errors.Is(err, bundle.ErrMalformedDefinition),
		errors.Is(err, bundle.ErrDuplicateLine),
		errors.Is(err, bundle.ErrInvalidLine),
		errors.Is(err, bundle.ErrInvalidQuantity):
		return "rejected"
	default:
		return "error"
	}
}

func mapError(err error) error {
	switch {
	case errors.Is(err, errInvalidRequest),
		errors.Is(err, bundle.ErrDuplicateLine),
		errors.Is(err, bundle.ErrInvalidLine),
		errors.Is(err, bundle.ErrInvalidQuantity):
		return &common.AppError{Code: "BAD_REQUEST", Message: "invalid cart payload", HTTPStatus: http.StatusBadRequest, Err: err, Details: map[string]any{"reason": err.Error()}}
	case errors.Is(err, bundle.ErrMalformedDefinition):
		return &common.AppError{Code: "CATALOG_REJECTED", Message: "bundle definition rejected", HTTPStatus: http.StatusUnprocessableEntity, Err: err, Details: map[string]any{"reason": err.Error()}}
	case errors.Is(err, errCatalogUnavailable):
		return common.NewAppError("CATALOG_UNAVAILABLE", "bundle catalog unavailable", http.StatusServiceUnavailable, err)
	default:
		return common.NewAppError("INTERNAL", "internal error", http.StatusInternalServerError, err)
	}
}
