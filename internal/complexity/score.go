package complexity

import (
	"fmt"
	"math"
	"slices"

	"github.com/HendryAvila/adtree/internal/attacktree"
)

// syntaxRate is the decay constant of the syntax curve; 50 nodes score
// 1 - e^-1.
const syntaxRate = 0.02

// Metrics summarizes one tree.
type Metrics struct {
	Words    int     `json:"words"`
	Matches  int     `json:"glossary_matches"`
	Nodes    int     `json:"nodes"`
	Language float64 `json:"language_score"`
	Syntax   float64 `json:"syntax_score"`
	Combined float64 `json:"combined_score"`
}

func (m Metrics) String() string {
	return fmt.Sprintf("words=%d matches=%d nodes=%d language=%.3f syntax=%.3f combined=%.3f",
		m.Words, m.Matches, m.Nodes, m.Language, m.Syntax, m.Combined)
}

// Score walks tree read-only. Text comes from content nodes only
// (objectives, methods, mitigations and generated leaves); every node
// except AND gates counts toward the size.
func Score(tree *attacktree.Node, g Glossary) Metrics {
	var m Metrics
	if tree == nil {
		return m
	}

	offset := 0
	matched := make(map[int]bool)
	tree.Walk(func(n *attacktree.Node, _ int) bool {
		if n.Kind != attacktree.KindAndGate {
			m.Nodes++
		}
		if !n.Kind.Content() {
			return true
		}
		toks := tokens(n.Label)
		for _, pos := range g.positions(toks) {
			matched[offset+pos] = true
		}
		offset += len(toks)
		return true
	})

	m.Words = offset
	m.Matches = len(matched)
	if m.Words > 0 {
		m.Language = float64(m.Matches) / float64(m.Words)
	}
	m.Syntax = SyntaxScore(m.Nodes)
	m.Combined = m.Language * m.Syntax
	return m
}

// SyntaxScore maps a node count onto [0, 1).
func SyntaxScore(nodes int) float64 {
	return 1 - math.Exp(-syntaxRate*float64(nodes))
}

// positions returns every token index covered by a glossary term.
// Overlapping terms collapse onto the same positions.
func (g Glossary) positions(toks []string) []int {
	var out []int
	for _, term := range g.terms {
		for i := 0; i+len(term) <= len(toks); i++ {
			if slices.Equal(toks[i:i+len(term)], term) {
				for j := range term {
					out = append(out, i+j)
				}
			}
		}
	}
	return out
}
