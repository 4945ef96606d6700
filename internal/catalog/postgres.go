package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/toko-bundles/internal/bundle"
)

// ErrStoreUnavailable indicates the Postgres dependency is not configured.
var ErrStoreUnavailable = errors.New("catalog: store unavailable")

// DB is the subset of *pgxpool.Pool used by PGSource.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PGSource loads active bundle definitions from Postgres in position order.
type PGSource struct {
	DB DB
}

// Name identifies the source in logs and metrics.
func (PGSource) Name() string { return "postgres" }

const listDefinitionsSQL = `SELECT d.id, d.parent_variant_id, d.title, d.image_url, d.attributes,
       d.adjustment_kind, d.adjustment_percent_bps, d.adjustment_amount,
       c.variant_id, c.quantity
FROM bundle_definitions d
LEFT JOIN bundle_components c ON c.definition_id = d.id
WHERE d.active
ORDER BY d.position, d.id, c.position`

// definitionRow is one joined (definition, component) row. Definitions without
// components arrive with an invalid VariantID so catalog validation rejects them.
type definitionRow struct {
	ID              int64
	ParentVariantID string
	Title           string
	ImageURL        string
	Attributes      []byte
	AdjustmentKind  string
	PercentBps      int32
	Amount          int64
	VariantID       pgtype.Text
	Quantity        pgtype.Int8
}

// Load returns active definitions ordered by position.
func (s PGSource) Load(ctx context.Context) ([]bundle.Definition, error) {
	if s.DB == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.DB.Query(ctx, listDefinitionsSQL)
	if err != nil {
		return nil, fmt.Errorf("query bundle definitions: %w", err)
	}
	defer rows.Close()

	var out []definitionRow
	for rows.Next() {
		var r definitionRow
		if err := rows.Scan(&r.ID, &r.ParentVariantID, &r.Title, &r.ImageURL, &r.Attributes,
			&r.AdjustmentKind, &r.PercentBps, &r.Amount, &r.VariantID, &r.Quantity); err != nil {
			return nil, fmt.Errorf("scan bundle definition: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bundle definitions: %w", err)
	}
	return assemble(out)
}

func assemble(rows []definitionRow) ([]bundle.Definition, error) {
	var (
		defs   []bundle.Definition
		lastID int64
	)
	for i, r := range rows {
		if i == 0 || r.ID != lastID {
			def := bundle.Definition{
				ParentVariantID: r.ParentVariantID,
				Title:           r.Title,
				ImageURL:        r.ImageURL,
				Price: bundle.PriceAdjustment{
					Kind:       bundle.AdjustmentKind(r.AdjustmentKind),
					PercentBps: r.PercentBps,
					Amount:     r.Amount,
				},
			}
			if len(r.Attributes) > 0 {
				if err := json.Unmarshal(r.Attributes, &def.Attributes); err != nil {
					return nil, fmt.Errorf("definition %d attributes: %w", r.ID, err)
				}
			}
			defs = append(defs, def)
			lastID = r.ID
		}
		if r.VariantID.Valid {
			cur := &defs[len(defs)-1]
			cur.Components = append(cur.Components, bundle.Component{VariantID: r.VariantID.String, Quantity: r.Quantity.Int64})
		}
	}
	return defs, nil
}

// Replace swaps the stored catalog for defs in a single transaction.
func (s PGSource) Replace(ctx context.Context, defs []bundle.Definition) error {
	if s.DB == nil {
		return ErrStoreUnavailable
	}
	return pgx.BeginFunc(ctx, s.DB, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM bundle_definitions`); err != nil {
			return fmt.Errorf("clear bundle definitions: %w", err)
		}
		for pos, d := range defs {
			attrs, err := json.Marshal(attributesOrEmpty(d.Attributes))
			if err != nil {
				return err
			}
			var id int64
			err = tx.QueryRow(ctx, `INSERT INTO bundle_definitions
  (position, parent_variant_id, title, image_url, attributes, adjustment_kind, adjustment_percent_bps, adjustment_amount)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
				pos, d.ParentVariantID, d.Title, d.ImageURL, attrs,
				string(d.Price.Kind), d.Price.PercentBps, d.Price.Amount).Scan(&id)
			if err != nil {
				return fmt.Errorf("insert bundle definition %d: %w", pos, err)
			}
			for cpos, c := range d.Components {
				if _, err := tx.Exec(ctx, `INSERT INTO bundle_components (definition_id, position, variant_id, quantity)
VALUES ($1, $2, $3, $4)`, id, cpos, c.VariantID, c.Quantity); err != nil {
					return fmt.Errorf("insert bundle component %d/%d: %w", pos, cpos, err)
				}
			}
		}
		return nil
	})
}

func attributesOrEmpty(attrs []bundle.Attribute) []bundle.Attribute {
	if attrs == nil {
		return []bundle.Attribute{}
	}
	return attrs
}
