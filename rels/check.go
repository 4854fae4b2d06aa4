package rels

import "fmt"

// PartSet is the view of the archive Check needs.
type PartSet interface {
	Has(name string) bool
}

// Check verifies the package closure reachable from the package-level
// relationships:
//
//   - every internal target exists in parts and has a content type;
//   - every owner's .rels part has a content type;
//   - every id listed in refs[owner] (the relationship ids the owner part's
//     XML uses) is declared by that owner.
//
// Failures wrap ErrIntegrity together with the specific cause.
func (g *Graph) Check(parts PartSet, ct *ContentTypes, refs map[string][]string) error {
	seen := map[string]bool{"": true}
	queue := []string{""}
	for len(queue) > 0 {
		owner := queue[0]
		queue = queue[1:]

		if _, ok := g.tables[owner]; ok {
			if _, err := ct.ContentTypeOf(RelsPath(owner)); err != nil {
				return fmt.Errorf("%w: %w", ErrIntegrity, err)
			}
		}
		for _, r := range g.Relationships(owner) {
			if r.External {
				continue
			}
			target := ResolveTarget(owner, r.Target)
			if !parts.Has(target) {
				return fmt.Errorf("%w: %w: %s %s targets missing part %s",
					ErrIntegrity, ErrDanglingRelationship, describe(owner), r.ID, target)
			}
			if _, err := ct.ContentTypeOf(target); err != nil {
				return fmt.Errorf("%w: %w", ErrIntegrity, err)
			}
			if !seen[target] {
				seen[target] = true
				queue = append(queue, target)
			}
		}
		for _, id := range refs[owner] {
			if _, ok := g.Lookup(owner, id); !ok {
				return fmt.Errorf("%w: %w: %s references undeclared %s",
					ErrIntegrity, ErrDanglingRelationship, describe(owner), id)
			}
		}
	}
	return nil
}
