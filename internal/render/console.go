package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"

	"github.com/HendryAvila/adtree/internal/attacktree"
	"github.com/HendryAvila/adtree/internal/capec"
)

var (
	patternStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	gateStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	generatedStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("42"))
	dimStyle       = lipgloss.NewStyle().Faint(true).Foreground(lipgloss.Color("241"))
	enumStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	headingStyle   = lipgloss.NewStyle().Bold(true)
)

// Console draws the tree with box-drawing branches.
type Console struct {
	// Compact shows pattern nodes by id and appends a legend.
	Compact bool
	// Plain disables styling.
	Plain bool
}

// Render implements Sink.
func (c Console) Render(w io.Writer, s *attacktree.Synthesis) error {
	var b strings.Builder
	b.WriteString(c.subtree(s.Tree).String())
	b.WriteString("\n")

	if len(s.Duplicates) > 0 {
		b.WriteString("\n" + c.style(headingStyle, "Duplicate expansions:") + "\n")
		for _, d := range s.Duplicates {
			fmt.Fprintf(&b, "  %s expanded %d times\n", capec.FormatID(d.ID), d.Count)
		}
	}
	if c.Compact && len(s.Labels) > 0 {
		b.WriteString("\n" + c.style(headingStyle, "Legend:") + "\n")
		ids := make([]string, 0, len(s.Labels))
		for id := range s.Labels {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return lessID(ids[i], ids[j]) })
		for _, id := range ids {
			fmt.Fprintf(&b, "  %-10s %s\n", capec.FormatID(id), s.Labels[id])
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("render: console: %w", err)
	}
	return nil
}

func (c Console) subtree(n *attacktree.Node) *tree.Tree {
	t := tree.Root(c.label(n))
	if !c.Plain {
		t.EnumeratorStyle(enumStyle)
	}
	for _, child := range n.Children {
		if len(child.Children) == 0 {
			t.Child(c.label(child))
			continue
		}
		t.Child(c.subtree(child))
	}
	return t
}

func (c Console) label(n *attacktree.Node) string {
	switch n.Kind {
	case attacktree.KindAndGate:
		return c.style(gateStyle, n.Kind.Prefix())
	case attacktree.KindPattern:
		text := n.Label
		if c.Compact && n.PatternID != "" {
			text = capec.FormatID(n.PatternID)
			if n.Duplicate {
				text += attacktree.DuplicateSuffix
			}
		}
		return c.style(patternStyle, text)
	case attacktree.KindPlaceholder:
		text := n.Label
		if c.Compact {
			text = capec.FormatID(n.PatternID)
		}
		if c.Plain {
			return text + " (not expanded)"
		}
		return dimStyle.Render(text)
	case attacktree.KindGeneratedMethod, attacktree.KindGeneratedCountermeasure:
		return c.style(generatedStyle, n.Kind.Prefix()+": "+n.Label)
	}
	if p := n.Kind.Prefix(); p != "" {
		return p + ": " + n.Label
	}
	return n.Label
}

func (c Console) style(s lipgloss.Style, text string) string {
	if c.Plain {
		return text
	}
	return s.Render(text)
}
