package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/adtree/internal/attacktree"
	"github.com/HendryAvila/adtree/internal/complexity"
	"github.com/HendryAvila/adtree/internal/render"
)

// AttackTreeTool handles the capec_attack_tree MCP tool.
// It synthesizes a tree and renders it as text, DOT or JSON.
type AttackTreeTool struct {
	synth    *attacktree.Synthesizer
	glossary complexity.Glossary
	ancestry bool
}

// NewAttackTreeTool creates an AttackTreeTool. ancestry is the default
// for the "ancestry" argument.
func NewAttackTreeTool(synth *attacktree.Synthesizer, glossary complexity.Glossary, ancestry bool) *AttackTreeTool {
	return &AttackTreeTool{synth: synth, glossary: glossary, ancestry: ancestry}
}

// Definition returns the MCP tool definition for capec_attack_tree.
func (t *AttackTreeTool) Definition() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(
			"Synthesize an attack-defense tree rooted at a CAPEC attack pattern. " +
				"Objectives become AND-gated branches, methods hang under objectives, " +
				"mitigations or generated countermeasures hang under methods, and related " +
				"patterns expand recursively. Text output ends with complexity metrics.",
		),
		mcp.WithReadOnlyHintAnnotation(true),
	}
	opts = append(opts, synthesisArgs()...)
	opts = append(opts,
		mcp.WithString("format",
			mcp.Description("Output format (default: text)"),
			mcp.Enum(string(render.FormatText), string(render.FormatDOT), string(render.FormatJSON)),
		),
		mcp.WithBoolean("compact",
			mcp.Description("Text format only: show patterns by id and append a legend"),
		),
	)
	return mcp.NewTool("capec_attack_tree", opts...)
}

// Handle processes the capec_attack_tree tool call.
func (t *AttackTreeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := idArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts, err := synthesisOptions(req, t.synth.Options())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format, err := render.ParseFormat(req.GetString("format", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	syn, err := t.synth.WithOptions(opts).Synthesize(ctx, id, attacktree.SynthesisOptions{
		WithAncestry: boolArg(req, "ancestry", t.ancestry),
	})
	if errors.Is(err, attacktree.ErrRootNotFound) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("synthesizing %s: %w", id, err)
	}

	var sink render.Sink = render.New(format, false)
	if format == render.FormatText {
		sink = render.Console{Compact: boolArg(req, "compact", false), Plain: true}
	}

	var b strings.Builder
	if err := sink.Render(&b, syn); err != nil {
		return nil, err
	}
	if format == render.FormatText {
		fmt.Fprintf(&b, "\nComplexity: %s\n", complexity.Score(syn.Tree, t.glossary))
	}
	return mcp.NewToolResultText(b.String()), nil
}
