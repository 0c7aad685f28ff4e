package attacktree

import (
	"context"
	"slices"

	"github.com/HendryAvila/adtree/internal/capec"
	"github.com/HendryAvila/adtree/internal/knowledge"
)

// maxAncestrySteps bounds the climb on malformed ChildOf data.
const maxAncestrySteps = 64

// ReconstructAncestry climbs ChildOf edges from targetID to the
// structural root and returns the chain root-first, ending in targetID.
// The first ChildOf edge wins at every step. The climb stops at a
// pattern with no ChildOf edge, at a missing record, or on a cycle.
func ReconstructAncestry(ctx context.Context, store knowledge.Store, targetID string) []string {
	id := capec.NormalizeID(targetID)
	chain := []string{id}
	seen := map[string]bool{id: true}

	for range maxAncestrySteps {
		rec, err := store.GetRecord(ctx, id)
		if err != nil {
			break
		}
		parents := capec.Targets(capec.ParseRelations(rec.RelatedPatterns, capec.ChildOf))
		if len(parents) == 0 || seen[parents[0]] {
			break
		}
		id = parents[0]
		seen[id] = true
		chain = append(chain, id)
	}

	slices.Reverse(chain)
	return chain
}

// GraftChain wraps elaborated (the subtree for the last chain element)
// in one node per ancestor. Each wrapper lists the ancestor's ParentOf
// children plus the next chain element; the chain element is expanded
// and every other child becomes a dimmed placeholder.
func GraftChain(ctx context.Context, store knowledge.Store, chain []string, elaborated *Node) *Node {
	if len(chain) <= 1 {
		return elaborated
	}
	return graft(ctx, store, chain, 0, elaborated)
}

func graft(ctx context.Context, store knowledge.Store, chain []string, i int, elaborated *Node) *Node {
	if i == len(chain)-1 {
		return elaborated
	}
	id, next := chain[i], chain[i+1]

	wrapper := &Node{Kind: KindPattern, PatternID: id, Label: capec.FormatID(id)}
	var children []string
	if rec, err := store.GetRecord(ctx, id); err == nil {
		wrapper.Label = rec.Title()
		children = capec.Targets(capec.ParseRelations(rec.RelatedPatterns, capec.ParentOf))
	}
	children = append(children, next)

	seen := make(map[string]bool, len(children))
	for _, child := range children {
		if seen[child] {
			continue
		}
		seen[child] = true
		if child == next {
			wrapper.Add(graft(ctx, store, chain, i+1, elaborated))
			continue
		}
		wrapper.Add(&Node{
			Kind:      KindPlaceholder,
			PatternID: child,
			Label:     patternTitle(ctx, store, child),
			Dimmed:    true,
		})
	}
	return wrapper
}

func patternTitle(ctx context.Context, store knowledge.Store, id string) string {
	if rec, err := store.GetRecord(ctx, id); err == nil {
		return rec.Title()
	}
	return capec.FormatID(id)
}
