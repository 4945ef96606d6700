package bundle

// Catalog is an ordered, validated, immutable list of bundle definitions.
// Declaration order decides which definition claims scarce quantity first.
type Catalog struct {
	defs      []Definition
	byVariant map[string][]int
	distinct  []int
}

// NewCatalog validates every definition and fails fast on the first malformed one.
func NewCatalog(defs []Definition) (*Catalog, error) {
	c := &Catalog{
		defs:      make([]Definition, 0, len(defs)),
		byVariant: make(map[string][]int),
		distinct:  make([]int, 0, len(defs)),
	}
	for i, d := range defs {
		if err := d.validate(i); err != nil {
			return nil, err
		}
		c.add(d)
	}
	return c, nil
}

func (c *Catalog) add(d Definition) {
	pos := len(c.defs)
	c.defs = append(c.defs, d.clone())
	variants := d.distinctVariants()
	for _, v := range variants {
		c.byVariant[v] = append(c.byVariant[v], pos)
	}
	c.distinct = append(c.distinct, len(variants))
}

// Extend returns a new catalog with extra definitions appended after the existing ones.
// Definitions that repeat a rule already present are dropped.
func (c *Catalog) Extend(extra []Definition) (*Catalog, error) {
	out := &Catalog{
		defs:      make([]Definition, 0, c.Len()+len(extra)),
		byVariant: make(map[string][]int),
		distinct:  make([]int, 0, c.Len()+len(extra)),
	}
	if c != nil {
		for _, d := range c.defs {
			out.add(d)
		}
	}
	for i, d := range extra {
		if err := d.validate(c.Len() + i); err != nil {
			return nil, err
		}
		if out.contains(d) {
			continue
		}
		out.add(d)
	}
	return out, nil
}

func (c *Catalog) contains(d Definition) bool {
	for _, pos := range c.byVariant[d.Components[0].VariantID] {
		if c.defs[pos].SameRule(d) {
			return true
		}
	}
	return false
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.defs)
}

// Definition returns a copy of the definition at pos, or false when pos is out of range.
func (c *Catalog) Definition(pos int) (Definition, bool) {
	if c == nil || pos < 0 || pos >= len(c.defs) {
		return Definition{}, false
	}
	return c.defs[pos].clone(), true
}

// Definitions returns copies of all definitions in declaration order.
func (c *Catalog) Definitions() []Definition {
	if c == nil {
		return nil
	}
	out := make([]Definition, 0, len(c.defs))
	for _, d := range c.defs {
		out = append(out, d.clone())
	}
	return out
}

// Participating returns the positions of definitions that list variantID as a component.
func (c *Catalog) Participating(variantID string) []int {
	if c == nil {
		return nil
	}
	positions := c.byVariant[variantID]
	out := make([]int, len(positions))
	copy(out, positions)
	return out
}

// Applicable reports, per definition position, whether every component variant
// is carried by at least one active line of inv. A false entry can never match.
func (c *Catalog) Applicable(inv *Inventory) []bool {
	if c == nil {
		return nil
	}
	hits := make([]int, len(c.defs))
	if inv != nil {
		for _, variant := range inv.activeVariants() {
			for _, pos := range c.byVariant[variant] {
				hits[pos]++
			}
		}
	}
	out := make([]bool, len(c.defs))
	for pos := range c.defs {
		out[pos] = hits[pos] == c.distinct[pos]
	}
	return out
}
