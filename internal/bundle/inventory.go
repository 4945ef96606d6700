package bundle

import (
	"fmt"
	"strings"
)

// Line is one row of the incoming cart snapshot.
type Line struct {
	ID        string
	VariantID string
	Quantity  int64
}

// ActiveLine is a line that still has quantity left to consume.
type ActiveLine struct {
	ID        string
	VariantID string
	Remaining int64
}

// LineRemaining reports the quantity left on a line after a pass.
type LineRemaining struct {
	LineID    string
	Remaining int64
}

type inventoryRow struct {
	line      Line
	remaining int64
}

// Inventory tracks remaining quantity per cart line during one resolution pass.
// Rows keep snapshot order; a row drained to zero stays in place but is no longer active.
type Inventory struct {
	rows      []inventoryRow
	byID      map[string]int
	byVariant map[string][]int
}

// NewInventory builds an inventory from the snapshot lines, preserving their order.
func NewInventory(lines []Line) (*Inventory, error) {
	inv := &Inventory{
		rows:      make([]inventoryRow, 0, len(lines)),
		byID:      make(map[string]int, len(lines)),
		byVariant: make(map[string][]int),
	}
	for i, l := range lines {
		if strings.TrimSpace(l.ID) == "" {
			return nil, fmt.Errorf("line %d: id required: %w", i, ErrInvalidLine)
		}
		if l.Quantity < 0 {
			return nil, fmt.Errorf("line %q: quantity %d: %w", l.ID, l.Quantity, ErrInvalidQuantity)
		}
		if _, dup := inv.byID[l.ID]; dup {
			return nil, fmt.Errorf("line %q: %w", l.ID, ErrDuplicateLine)
		}
		pos := len(inv.rows)
		inv.rows = append(inv.rows, inventoryRow{line: l, remaining: l.Quantity})
		inv.byID[l.ID] = pos
		if l.VariantID != "" {
			inv.byVariant[l.VariantID] = append(inv.byVariant[l.VariantID], pos)
		}
	}
	return inv, nil
}

// Len returns the number of lines held, drained or not.
func (inv *Inventory) Len() int {
	if inv == nil {
		return 0
	}
	return len(inv.rows)
}

// Remaining returns the unconsumed quantity of a line. Unknown lines report zero.
func (inv *Inventory) Remaining(lineID string) int64 {
	if inv == nil {
		return 0
	}
	pos, ok := inv.byID[lineID]
	if !ok {
		return 0
	}
	return inv.rows[pos].remaining
}

// Consume decrements a line by qty. It leaves the inventory untouched on any error.
func (inv *Inventory) Consume(lineID string, qty int64) error {
	if inv == nil {
		return fmt.Errorf("line %q: %w", lineID, ErrUnknownLine)
	}
	pos, ok := inv.byID[lineID]
	if !ok {
		return fmt.Errorf("line %q: %w", lineID, ErrUnknownLine)
	}
	if qty <= 0 {
		return fmt.Errorf("line %q: consume %d: %w", lineID, qty, ErrInvalidQuantity)
	}
	row := &inv.rows[pos]
	if qty > row.remaining {
		return fmt.Errorf("line %q: consume %d of %d: %w", lineID, qty, row.remaining, ErrInsufficientQuantity)
	}
	row.remaining -= qty
	return nil
}

// ActiveLines lists lines with remaining quantity, in snapshot order.
func (inv *Inventory) ActiveLines() []ActiveLine {
	if inv == nil {
		return nil
	}
	out := make([]ActiveLine, 0, len(inv.rows))
	for _, row := range inv.rows {
		if row.remaining <= 0 {
			continue
		}
		out = append(out, ActiveLine{ID: row.line.ID, VariantID: row.line.VariantID, Remaining: row.remaining})
	}
	return out
}

// Snapshot returns the remaining quantity of every line, in snapshot order.
func (inv *Inventory) Snapshot() []LineRemaining {
	if inv == nil {
		return nil
	}
	out := make([]LineRemaining, 0, len(inv.rows))
	for _, row := range inv.rows {
		out = append(out, LineRemaining{LineID: row.line.ID, Remaining: row.remaining})
	}
	return out
}

// carries reports whether any active line holds the variant.
func (inv *Inventory) carries(variantID string) bool {
	for _, pos := range inv.byVariant[variantID] {
		if inv.rows[pos].remaining > 0 {
			return true
		}
	}
	return false
}

// activeVariants lists each variant held by an active line once.
func (inv *Inventory) activeVariants() []string {
	out := make([]string, 0, len(inv.byVariant))
	for variant := range inv.byVariant {
		if inv.carries(variant) {
			out = append(out, variant)
		}
	}
	return out
}
