package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/adtree/internal/attacktree"
	"github.com/HendryAvila/adtree/internal/capec"
	"github.com/HendryAvila/adtree/internal/knowledge"
)

// AncestryTool handles the capec_ancestry MCP tool.
type AncestryTool struct {
	store knowledge.Store
}

// NewAncestryTool creates an AncestryTool.
func NewAncestryTool(store knowledge.Store) *AncestryTool {
	return &AncestryTool{store: store}
}

// Definition returns the MCP tool definition for capec_ancestry.
func (t *AncestryTool) Definition() mcp.Tool {
	return mcp.NewTool("capec_ancestry",
		mcp.WithDescription(
			"Show the ChildOf chain of a CAPEC pattern, from its most general "+
				"ancestor down to the pattern itself.",
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("CAPEC pattern id, e.g. '66' or 'CAPEC-66'"),
		),
	)
}

// Handle processes the capec_ancestry tool call.
func (t *AncestryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := idArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := t.store.GetRecord(ctx, id); err != nil {
		if errors.Is(err, knowledge.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("%s not found", capec.FormatID(id))), nil
		}
		return nil, fmt.Errorf("looking up %s: %w", id, err)
	}

	chain := attacktree.ReconstructAncestry(ctx, t.store, id)

	var b strings.Builder
	fmt.Fprintf(&b, "Ancestry of %s (%d levels):\n\n", capec.FormatID(id), len(chain))
	for i, cid := range chain {
		label := capec.FormatID(cid)
		if rec, err := t.store.GetRecord(ctx, cid); err == nil {
			label = rec.Title()
		}
		fmt.Fprintf(&b, "%s- %s\n", strings.Repeat("  ", i), label)
	}
	return mcp.NewToolResultText(b.String()), nil
}
