package bundle

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Status is the outcome of one definition within a pass.
type Status string

const (
	// StatusMatched means the definition matched and an operation was emitted.
	StatusMatched Status = "matched"
	// StatusSkipped means the definition could not be satisfied and left no trace.
	StatusSkipped Status = "skipped"
)

// Outcome records what happened to one definition during a pass.
type Outcome struct {
	Position         int
	ParentVariantID  string
	Status           Status
	UnmatchedVariant string
}

// Result is everything a pass produces.
type Result struct {
	Operations []MergeOperation
	Outcomes   []Outcome
	Remaining  []LineRemaining
}

// Matched counts the definitions that produced an operation.
func (r Result) Matched() int { return len(r.Operations) }

// Skipped counts the definitions that did not match.
func (r Result) Skipped() int { return len(r.Outcomes) - len(r.Operations) }

// Resolver runs greedy first-fit allocation of a catalog against a cart snapshot.
// Each definition is tried exactly once, in catalog order; a match is committed to the
// inventory before the next definition is tried, so earlier definitions win scarce lines.
type Resolver struct {
	Logger zerolog.Logger

	// propose defaults to Propose.
	propose func(Definition, *Inventory) ([]Allocation, error)
}

// NewResolver returns a resolver logging through logger.
func NewResolver(logger zerolog.Logger) *Resolver {
	return &Resolver{Logger: logger}
}

// Resolve builds a fresh inventory from lines and runs one pass.
func (r *Resolver) Resolve(lines []Line, catalog *Catalog) (Result, error) {
	inv, err := NewInventory(lines)
	if err != nil {
		return Result{}, err
	}
	return r.ResolveInventory(inv, catalog)
}

// ResolveInventory runs one pass against inv, mutating it as matches commit.
// On error no operations are returned; the inventory must then be discarded.
func (r *Resolver) ResolveInventory(inv *Inventory, catalog *Catalog) (Result, error) {
	logger := r.logger()
	n := catalog.Len()
	result := Result{
		Operations: make([]MergeOperation, 0),
		Outcomes:   make([]Outcome, 0, n),
	}
	applicable := catalog.Applicable(inv)
	for pos := 0; pos < n; pos++ {
		def := catalog.defs[pos]
		outcome := Outcome{Position: pos, ParentVariantID: def.ParentVariantID, Status: StatusSkipped}

		if !applicable[pos] {
			outcome.UnmatchedVariant = firstAbsent(def, inv)
			logSkip(logger, outcome)
			result.Outcomes = append(result.Outcomes, outcome)
			continue
		}

		allocations, err := r.proposer()(def, inv)
		if err != nil {
			var unmatched *UnmatchedError
			if !errors.As(err, &unmatched) {
				return Result{}, err
			}
			outcome.UnmatchedVariant = unmatched.Variant
			logSkip(logger, outcome)
			result.Outcomes = append(result.Outcomes, outcome)
			continue
		}

		if err := commit(inv, allocations); err != nil {
			logger.Error().Err(err).
				Int("position", pos).
				Str("parent_variant_id", def.ParentVariantID).
				Msg("bundle commit failed")
			return Result{}, fmt.Errorf("%w: definition %d: %w", ErrInvariantViolation, pos, err)
		}
		result.Operations = append(result.Operations, Emit(def, allocations))
		outcome.Status = StatusMatched
		result.Outcomes = append(result.Outcomes, outcome)
		logger.Debug().
			Int("position", pos).
			Str("parent_variant_id", def.ParentVariantID).
			Int("lines", len(allocations)).
			Msg("bundle matched")
	}
	result.Remaining = inv.Snapshot()
	return result, nil
}

func (r *Resolver) proposer() func(Definition, *Inventory) ([]Allocation, error) {
	if r == nil || r.propose == nil {
		return Propose
	}
	return r.propose
}

func (r *Resolver) logger() zerolog.Logger {
	if r == nil {
		return zerolog.Nop()
	}
	return r.Logger
}

func commit(inv *Inventory, allocations []Allocation) error {
	for _, a := range allocations {
		if err := inv.Consume(a.LineID, a.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func firstAbsent(def Definition, inv *Inventory) string {
	for _, c := range def.Components {
		if inv == nil || !inv.carries(c.VariantID) {
			return c.VariantID
		}
	}
	return ""
}

func logSkip(logger zerolog.Logger, o Outcome) {
	logger.Debug().
		Int("position", o.Position).
		Str("parent_variant_id", o.ParentVariantID).
		Str("variant_id", o.UnmatchedVariant).
		Msg("bundle skipped")
}
