package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/HendryAvila/adtree/internal/attacktree"
)

// DOT writes a Graphviz digraph. Nodes get opaque ids n0, n1, … in walk
// order; labels carry the text.
type DOT struct{}

// Render implements Sink.
func (DOT) Render(w io.Writer, s *attacktree.Synthesis) error {
	var b strings.Builder
	b.WriteString("digraph attack_tree {\n")
	b.WriteString("  rankdir=TB;\n")
	b.WriteString("  node [shape=box, style=rounded, fontname=\"Helvetica\"];\n")

	next := 0
	var emit func(n *attacktree.Node) string
	emit = func(n *attacktree.Node) string {
		id := "n" + strconv.Itoa(next)
		next++
		fmt.Fprintf(&b, "  %s [label=%s%s];\n", id, quote(dotLabel(n)), dotAttrs(n))
		for _, child := range n.Children {
			cid := emit(child)
			fmt.Fprintf(&b, "  %s -> %s;\n", id, cid)
		}
		return id
	}
	if s.Tree != nil {
		emit(s.Tree)
	}
	b.WriteString("}\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("render: dot: %w", err)
	}
	return nil
}

func dotLabel(n *attacktree.Node) string {
	if p := n.Kind.Prefix(); p != "" && n.Kind != attacktree.KindAndGate {
		return p + ": " + n.Label
	}
	return n.Label
}

func dotAttrs(n *attacktree.Node) string {
	switch n.Kind {
	case attacktree.KindAndGate:
		return ", shape=diamond"
	case attacktree.KindPattern:
		if n.Duplicate {
			return ", style=\"rounded,bold\", color=orange"
		}
		return ", style=\"rounded,bold\""
	case attacktree.KindPlaceholder:
		return ", style=dashed, fontcolor=gray, color=gray"
	case attacktree.KindMitigation, attacktree.KindGeneratedCountermeasure:
		return ", color=darkgreen"
	}
	return ""
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}

// lessID orders numeric ids numerically.
func lessID(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return na < nb
	}
	if (errA == nil) != (errB == nil) {
		return errA == nil
	}
	return a < b
}
