package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/adtree/internal/attacktree"
	"github.com/HendryAvila/adtree/internal/complexity"
)

// ComplexityTool handles the capec_complexity MCP tool.
type ComplexityTool struct {
	synth    *attacktree.Synthesizer
	glossary complexity.Glossary
}

// NewComplexityTool creates a ComplexityTool.
func NewComplexityTool(synth *attacktree.Synthesizer, glossary complexity.Glossary) *ComplexityTool {
	return &ComplexityTool{synth: synth, glossary: glossary}
}

// Definition returns the MCP tool definition for capec_complexity.
func (t *ComplexityTool) Definition() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(
			"Synthesize a tree and report only its complexity: glossary term density " +
				"(language score), node count (syntax score) and their average, plus " +
				"which patterns were expanded more than once.",
		),
		mcp.WithReadOnlyHintAnnotation(true),
	}
	return mcp.NewTool("capec_complexity", append(opts, synthesisArgs()...)...)
}

// Handle processes the capec_complexity tool call.
func (t *ComplexityTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := idArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts, err := synthesisOptions(req, t.synth.Options())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	syn, err := t.synth.WithOptions(opts).Synthesize(ctx, id, attacktree.SynthesisOptions{
		WithAncestry: boolArg(req, "ancestry", false),
	})
	if errors.Is(err, attacktree.ErrRootNotFound) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("synthesizing %s: %w", id, err)
	}

	m := complexity.Score(syn.Tree, t.glossary)

	var b strings.Builder
	fmt.Fprintf(&b, "## Complexity of %s (%s mode)\n\n", syn.Labels[syn.RootID], syn.Mode)
	fmt.Fprintf(&b, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Words | %d |\n", m.Words)
	fmt.Fprintf(&b, "| Glossary matches | %d |\n", m.Matches)
	fmt.Fprintf(&b, "| Nodes | %d |\n", m.Nodes)
	fmt.Fprintf(&b, "| Language score | %.3f |\n", m.Language)
	fmt.Fprintf(&b, "| Syntax score | %.3f |\n", m.Syntax)
	fmt.Fprintf(&b, "| Combined score | %.3f |\n\n", m.Combined)
	duplicateReport(&b, syn.Duplicates)

	return mcp.NewToolResultText(b.String()), nil
}
