package catalog

import "fmt"

// Validate checks the structural invariants a store relies on before it
// replaces its contents: ids sorted and unique, groups non-empty, exactly
// one master per group, and every record carrying its group's id, a file
// and a path.
func Validate(cat *Catalog) error {
	if cat == nil {
		return fmt.Errorf("%w: nil catalog", ErrInvalidCatalog)
	}
	for i := range cat.Groups {
		g := &cat.Groups[i]
		if g.ID == "" {
			return fmt.Errorf("%w: group %d has empty id", ErrInvalidCatalog, i)
		}
		if i > 0 && cat.Groups[i-1].ID >= g.ID {
			return fmt.Errorf("%w: group ids not strictly ascending at %q", ErrInvalidCatalog, g.ID)
		}
		if len(g.Records) == 0 {
			return fmt.Errorf("%w: group %q is empty", ErrInvalidCatalog, g.ID)
		}
		masters := 0
		for j := range g.Records {
			r := &g.Records[j]
			if r.GroupID != g.ID {
				return fmt.Errorf("%w: record %d of group %q has group id %q", ErrInvalidCatalog, j, g.ID, r.GroupID)
			}
			if r.Path == "" || r.File == "" {
				return fmt.Errorf("%w: record %d of group %q missing file or path", ErrInvalidCatalog, j, g.ID)
			}
			if r.IsMaster {
				masters++
			}
		}
		if masters != 1 {
			return fmt.Errorf("%w: group %q has %d masters", ErrInvalidCatalog, g.ID, masters)
		}
		if !g.Records[0].IsMaster {
			return fmt.Errorf("%w: group %q master is not first", ErrInvalidCatalog, g.ID)
		}
	}
	return nil
}
