// Package tools implements the MCP tool handlers for attack tree synthesis.
//
// Each tool is a struct holding its dependencies, with Definition()
// returning the mcp.Tool schema and Handle() processing a call. One file
// per tool. Bad input is reported with mcp.NewToolResultError, never as
// a Go error.
package tools

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/adtree/internal/attacktree"
	"github.com/HendryAvila/adtree/internal/capec"
	"github.com/HendryAvila/adtree/internal/enrich"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// idArg reads the required "id" argument ("66" or "CAPEC-66").
func idArg(req mcp.CallToolRequest) (string, error) {
	id := capec.NormalizeID(req.GetString("id", ""))
	if id == "" {
		return "", fmt.Errorf("'id' is required")
	}
	return id, nil
}

// ─── Shared synthesis arguments ─────────────────────────────────────────────

// synthesisArgs are the schema options shared by every tool that runs
// a synthesis.
func synthesisArgs() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Root CAPEC pattern id, e.g. '66' or 'CAPEC-66'"),
		),
		mcp.WithString("mode",
			mcp.Description("Build mode: base (catalogued mitigations), countermeasures (generated per method) or full (adds weakness-derived methods)"),
			mcp.Enum(attacktree.Modes()...),
		),
		mcp.WithString("register",
			mcp.Description("Audience register for generated text"),
			mcp.Enum(enrich.Registers()...),
		),
		mcp.WithArray("natures",
			mcp.Description("Relationship natures expanded as child subtrees (default: CanFollow)"),
			mcp.WithStringItems(),
		),
		mcp.WithNumber("max_depth",
			mcp.Description("Maximum ancestor path length"),
			mcp.Min(1),
		),
		mcp.WithBoolean("ancestry",
			mcp.Description("Graft the tree onto its ChildOf ancestor chain"),
		),
	}
}

// synthesisOptions overlays request arguments on base.
func synthesisOptions(req mcp.CallToolRequest, base attacktree.Options) (attacktree.Options, error) {
	opts := base
	if s := req.GetString("mode", ""); s != "" {
		mode, err := attacktree.ParseMode(s)
		if err != nil {
			return opts, err
		}
		opts.Mode = mode
	}
	if s := req.GetString("register", ""); s != "" {
		register, err := enrich.ParseRegister(s)
		if err != nil {
			return opts, err
		}
		opts.Register = register
	}
	if names := req.GetStringSlice("natures", nil); len(names) > 0 {
		natures, err := capec.ParseNatures(names)
		if err != nil {
			return opts, err
		}
		opts.ChildNatures = natures
	}
	if d := intArg(req, "max_depth", 0); d > 0 {
		opts.MaxDepth = d
	}
	return opts, nil
}

// duplicateReport lists patterns expanded more than once.
func duplicateReport(b *strings.Builder, dups []attacktree.DuplicateEntry) {
	if len(dups) == 0 {
		b.WriteString("No pattern was expanded more than once.\n")
		return
	}
	b.WriteString("Duplicate expansions:\n")
	for _, d := range dups {
		fmt.Fprintf(b, "- %s expanded %d times\n", capec.FormatID(d.ID), d.Count)
	}
}
