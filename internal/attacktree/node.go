// Package attacktree synthesizes attack-defense trees from the CAPEC
// knowledge base.
//
// A synthesis run starts from one pattern and recursively expands its
// execution flow (objectives and methods), mitigations and related
// patterns. Shared traversal state lives in a Traversal owned by the
// run: the ancestor path blocks cycles, and per-pattern expansion counts
// mark repeated (diamond) expansions as duplicates. Optional stages ask
// an enrich.Gateway to rewrite methods, generate countermeasures and
// derive new methods from related weaknesses.
package attacktree

// Kind tags what a tree node represents. Renderers and scorers switch on
// Kind, never on label text.
type Kind string

const (
	// KindPattern is an expanded pattern: the root or a related pattern.
	KindPattern Kind = "pattern"
	// KindAndGate groups objectives that must all succeed.
	KindAndGate                 Kind = "and"
	KindObjective               Kind = "objective"
	KindMethod                  Kind = "method"
	KindGeneratedMethod         Kind = "generated_method"
	KindMitigation              Kind = "mitigation"
	KindGeneratedCountermeasure Kind = "generated_countermeasure"
	// KindPlaceholder is an unexpanded ancestry sibling, shown dimmed.
	KindPlaceholder Kind = "placeholder"
)

var kindPrefixes = map[Kind]string{
	KindAndGate:                 "AND",
	KindObjective:               "Attack Objective",
	KindMethod:                  "Attack Method",
	KindGeneratedMethod:         "Generated Attack Method",
	KindMitigation:              "Mitigation",
	KindGeneratedCountermeasure: "Generated Countermeasure",
}

// Prefix is the display prefix for the kind ("Attack Method"), or ""
// for pattern and placeholder nodes, which are shown by title.
func (k Kind) Prefix() string { return kindPrefixes[k] }

// Content reports whether nodes of this kind carry free text (as opposed
// to pattern titles and structural gates).
func (k Kind) Content() bool {
	switch k {
	case KindObjective, KindMethod, KindGeneratedMethod, KindMitigation, KindGeneratedCountermeasure:
		return true
	}
	return false
}

// DuplicateSuffix is appended to the label of a repeated expansion.
const DuplicateSuffix = " [duplicate]"

// Node is one node of a synthesized tree. A node exclusively owns its
// children; the order of Children is significant.
type Node struct {
	Kind  Kind   `json:"kind"`
	Label string `json:"label"`
	// PatternID is set on pattern and placeholder nodes.
	PatternID string `json:"pattern_id,omitempty"`
	// Occurrence is the 1-based expansion count of PatternID at the time
	// this node was built.
	Occurrence int  `json:"occurrence,omitempty"`
	Duplicate  bool `json:"duplicate,omitempty"`
	Dimmed     bool `json:"dimmed,omitempty"`
	// Original holds the catalogue text of an enriched method.
	Original string  `json:"original,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// Add appends children in order, ignoring nils.
func (n *Node) Add(children ...*Node) {
	for _, c := range children {
		if c != nil {
			n.Children = append(n.Children, c)
		}
	}
}

// Walk visits n and its descendants depth-first, pre-order. Returning
// false from fn skips the node's children.
func (n *Node) Walk(fn func(node *Node, depth int) bool) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int) bool, depth int) {
	if n == nil || !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}

// Count returns the number of nodes of the given kinds in the subtree,
// or of every node when no kind is given.
func (n *Node) Count(kinds ...Kind) int {
	total := 0
	n.Walk(func(node *Node, _ int) bool {
		if len(kinds) == 0 {
			total++
			return true
		}
		for _, k := range kinds {
			if node.Kind == k {
				total++
				break
			}
		}
		return true
	})
	return total
}

// Find returns every node in the subtree matching pred, in walk order.
func (n *Node) Find(pred func(*Node) bool) []*Node {
	var out []*Node
	n.Walk(func(node *Node, _ int) bool {
		if pred(node) {
			out = append(out, node)
		}
		return true
	})
	return out
}

// Patterns returns the pattern nodes for id in walk order.
func (n *Node) Patterns(id string) []*Node {
	return n.Find(func(node *Node) bool {
		return node.Kind == KindPattern && node.PatternID == id
	})
}
