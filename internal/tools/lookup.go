package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/adtree/internal/capec"
	"github.com/HendryAvila/adtree/internal/knowledge"
)

// LookupTool handles the capec_lookup MCP tool.
type LookupTool struct {
	store knowledge.Store
}

// NewLookupTool creates a LookupTool.
func NewLookupTool(store knowledge.Store) *LookupTool {
	return &LookupTool{store: store}
}

// Definition returns the MCP tool definition for capec_lookup.
func (t *LookupTool) Definition() mcp.Tool {
	return mcp.NewTool("capec_lookup",
		mcp.WithDescription(
			"Show one CAPEC attack pattern as stored in the knowledge base: "+
				"description, execution flow, relationships, weaknesses and mitigations.",
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("CAPEC pattern id, e.g. '66' or 'CAPEC-66'"),
		),
	)
}

// Handle processes the capec_lookup tool call.
func (t *LookupTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := idArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := t.store.GetRecord(ctx, id)
	if errors.Is(err, knowledge.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("%s not found", capec.FormatID(id))), nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", id, err)
	}
	return mcp.NewToolResultText(formatRecord(rec)), nil
}

func formatRecord(rec *capec.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", rec.Title())
	if rec.Abstraction != "" || rec.Status != "" {
		fmt.Fprintf(&b, "**Abstraction**: %s | **Status**: %s\n\n", rec.Abstraction, rec.Status)
	}
	if rec.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", rec.Description)
	}

	if objectives := capec.ParseFlow(rec.ExecutionFlow); len(objectives) > 0 {
		b.WriteString("## Execution flow\n\n")
		for _, o := range objectives {
			fmt.Fprintf(&b, "- %s\n", o.Title)
			for _, m := range o.Methods {
				fmt.Fprintf(&b, "  - %s\n", m.Original)
			}
		}
		b.WriteString("\n")
	}

	if edges := capec.ParseRelations(rec.RelatedPatterns); len(edges) > 0 {
		b.WriteString("## Related patterns\n\n")
		for _, e := range edges {
			fmt.Fprintf(&b, "- %s %s\n", e.Nature, capec.FormatID(e.Target))
		}
		b.WriteString("\n")
	}

	if cwes := capec.ParseWeaknesses(rec.RelatedWeaknesses); len(cwes) > 0 {
		b.WriteString("## Related weaknesses\n\n")
		for _, w := range cwes {
			fmt.Fprintf(&b, "- CWE-%s\n", w)
		}
		b.WriteString("\n")
	}

	if mitigations := capec.ParseMitigations(rec.Mitigations); len(mitigations) > 0 {
		b.WriteString("## Mitigations\n\n")
		for _, m := range mitigations {
			fmt.Fprintf(&b, "- %s\n", m)
		}
	}
	return b.String()
}
