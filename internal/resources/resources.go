// Package resources implements MCP resource handlers for the CAPEC
// knowledge base.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (adtree://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/adtree/internal/capec"
	"github.com/HendryAvila/adtree/internal/knowledge"
)

const (
	statsURI        = "adtree://knowledge/stats"
	patternTemplate = "adtree://patterns/{id}"
)

// StatsProvider reports knowledge base statistics.
type StatsProvider interface {
	Stats(ctx context.Context) (*knowledge.Stats, error)
}

// Handler manages adtree resource endpoints.
type Handler struct {
	store knowledge.Store
	stats StatsProvider
}

// NewHandler creates a resource Handler. stats may be nil when the
// backend cannot report statistics.
func NewHandler(store knowledge.Store, stats StatsProvider) *Handler {
	return &Handler{store: store, stats: stats}
}

// StatsResource returns the MCP resource definition for knowledge base stats.
func (h *Handler) StatsResource() mcp.Resource {
	return mcp.NewResource(
		statsURI,
		"CAPEC Knowledge Base Stats",
		mcp.WithResourceDescription("Number of imported attack patterns, total and per abstraction level"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleStats returns the knowledge base statistics as JSON.
func (h *Handler) HandleStats(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	if h.stats == nil {
		return errorResource(req.Params.URI, "statistics are only available for the SQLite knowledge base"), nil
	}
	stats, err := h.stats.Stats(ctx)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	return jsonResource(req.Params.URI, stats)
}

// PatternTemplate returns the MCP resource template for single patterns.
func (h *Handler) PatternTemplate() mcp.ResourceTemplate {
	return mcp.NewResourceTemplate(
		patternTemplate,
		"CAPEC Attack Pattern",
		mcp.WithTemplateDescription("One CAPEC attack pattern record, by id"),
		mcp.WithTemplateMIMEType("application/json"),
	)
}

// HandlePattern returns one pattern record as JSON.
func (h *Handler) HandlePattern(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	id := capec.NormalizeID(templateArg(req, "id"))
	if id == "" {
		return errorResource(req.Params.URI, "missing pattern id"), nil
	}
	rec, err := h.store.GetRecord(ctx, id)
	if errors.Is(err, knowledge.ErrNotFound) {
		return errorResource(req.Params.URI, capec.FormatID(id)+" not found"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", id, err)
	}
	return jsonResource(req.Params.URI, rec)
}

// templateArg reads a URI template variable; the server may hand it
// over as a string or a single-element slice.
func templateArg(req mcp.ReadResourceRequest, name string) string {
	switch v := req.Params.Arguments[name].(type) {
	case string:
		return v
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
