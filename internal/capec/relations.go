package capec

import (
	"fmt"
	"slices"
	"strings"
)

// Nature is the kind of a relationship between two attack patterns.
type Nature string

const (
	ChildOf    Nature = "ChildOf"
	ParentOf   Nature = "ParentOf"
	CanFollow  Nature = "CanFollow"
	CanPrecede Nature = "CanPrecede"
	PeerOf     Nature = "PeerOf"
	CanAlsoBe  Nature = "CanAlsoBe"
)

// validNatures is the set of natures the CAPEC catalog uses.
var validNatures = map[Nature]bool{
	ChildOf:    true,
	ParentOf:   true,
	CanFollow:  true,
	CanPrecede: true,
	PeerOf:     true,
	CanAlsoBe:  true,
}

// Known reports whether n is one of the CAPEC relationship natures.
func (n Nature) Known() bool {
	return validNatures[n]
}

// Edge is a typed link from one pattern to a target pattern id.
type Edge struct {
	Nature Nature `json:"nature"`
	Target string `json:"target"`
}

// ParseRelations decodes the related-patterns encoding
//
//	::NATURE:ChildOf:CAPEC ID:560::NATURE:CanPrecede:CAPEC ID:151::
//
// keeping only edges whose nature is in natures (all edges when natures
// is empty). Source order is preserved; malformed entries are skipped.
func ParseRelations(text string, natures ...Nature) []Edge {
	var edges []Edge
	for _, entry := range strings.Split(text, "::") {
		parts := strings.Split(entry, ":")
		if len(parts) < 4 || strings.TrimSpace(parts[0]) != "NATURE" {
			continue
		}
		nature := Nature(strings.TrimSpace(parts[1]))
		if len(natures) > 0 && !slices.Contains(natures, nature) {
			continue
		}
		target := NormalizeID(parts[3])
		if target == "" {
			continue
		}
		edges = append(edges, Edge{Nature: nature, Target: target})
	}
	return edges
}

// Targets returns the target ids of edges in order.
func Targets(edges []Edge) []string {
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.Target)
	}
	return ids
}

// ParseNatures converts names such as "CanFollow" into natures,
// rejecting anything outside the CAPEC vocabulary.
func ParseNatures(names []string) ([]Nature, error) {
	out := make([]Nature, 0, len(names))
	for _, name := range names {
		n := Nature(strings.TrimSpace(name))
		if !n.Known() {
			return nil, fmt.Errorf("invalid relationship nature %q: must be one of: ChildOf, ParentOf, CanFollow, CanPrecede, PeerOf, CanAlsoBe", name)
		}
		out = append(out, n)
	}
	return out, nil
}
