package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/adtree/internal/capec"
	"github.com/HendryAvila/adtree/internal/knowledge"
)

// Searcher is the full-text side of the knowledge base.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]knowledge.SearchResult, error)
}

// SearchTool handles the capec_search MCP tool.
type SearchTool struct {
	searcher Searcher
}

// NewSearchTool creates a SearchTool.
func NewSearchTool(searcher Searcher) *SearchTool {
	return &SearchTool{searcher: searcher}
}

// Definition returns the MCP tool definition for capec_search.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("capec_search",
		mcp.WithDescription(
			"Full-text search over CAPEC pattern names and descriptions. "+
				"Use it to find a root pattern id before calling capec_attack_tree.",
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Keywords, e.g. 'sql injection'"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 10)"),
		),
	)
}

// Handle processes the capec_search tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := strings.TrimSpace(req.GetString("query", ""))
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}

	results, err := t.searcher.Search(ctx, query, intArg(req, "limit", 10))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("No patterns found matching your query."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d patterns:\n\n", len(results))
	for _, r := range results {
		fmt.Fprintf(&b, "- **%s** %s", capec.FormatID(r.ID), r.Name)
		if r.Abstraction != "" {
			fmt.Fprintf(&b, " (%s)", r.Abstraction)
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}
