package bundle

// Allocation is the quantity a match takes from one cart line.
type Allocation struct {
	LineID   string
	Quantity int64
}

// Propose finds, for each component of def, the first line in snapshot order whose
// variant matches and whose remaining quantity covers the requirement. It never mutates
// inv; the returned allocations hold one entry per component, in component order.
// When any component has no eligible line the whole match fails with *UnmatchedError.
func Propose(def Definition, inv *Inventory) ([]Allocation, error) {
	if inv == nil {
		if len(def.Components) == 0 {
			return nil, nil
		}
		c := def.Components[0]
		return nil, &UnmatchedError{Variant: c.VariantID, Required: c.Quantity}
	}
	allocations := make([]Allocation, 0, len(def.Components))
	// claimed tracks quantity already promised within this match, so a variant listed
	// twice cannot draw more than a line holds.
	var claimed map[string]int64
	for _, c := range def.Components {
		lineID, ok := inv.firstEligible(c, claimed)
		if !ok {
			return nil, &UnmatchedError{Variant: c.VariantID, Required: c.Quantity}
		}
		if claimed == nil {
			claimed = make(map[string]int64, len(def.Components))
		}
		claimed[lineID] += c.Quantity
		allocations = append(allocations, Allocation{LineID: lineID, Quantity: c.Quantity})
	}
	return allocations, nil
}

func (inv *Inventory) firstEligible(c Component, claimed map[string]int64) (string, bool) {
	for _, pos := range inv.byVariant[c.VariantID] {
		row := inv.rows[pos]
		if row.remaining-claimed[row.line.ID] >= c.Quantity {
			return row.line.ID, true
		}
	}
	return "", false
}
