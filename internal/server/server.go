// Package server wires all adtree components and creates the MCP server.
//
// This is the composition root: it opens the knowledge base, builds the
// enrichment gateway and the synthesizer from configuration, and injects
// them into the tools, prompts and resources. No synthesis logic lives
// here, only wiring.
package server

import (
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/adtree/internal/attacktree"
	"github.com/HendryAvila/adtree/internal/complexity"
	"github.com/HendryAvila/adtree/internal/config"
	"github.com/HendryAvila/adtree/internal/enrich"
	"github.com/HendryAvila/adtree/internal/knowledge"
	"github.com/HendryAvila/adtree/internal/prompts"
	"github.com/HendryAvila/adtree/internal/resources"
	"github.com/HendryAvila/adtree/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Components are the shared dependencies built from one Config.
type Components struct {
	Store knowledge.Store
	// SQLite is nil when patterns are read from a split CSV directory.
	SQLite      *knowledge.SQLiteStore
	Gateway     enrich.Gateway
	Synthesizer *attacktree.Synthesizer
	Glossary    complexity.Glossary
	// Ancestry is the default for grafting trees onto their ChildOf chain.
	Ancestry bool
}

// Wire builds Components from cfg. The returned cleanup function closes
// the knowledge base and must be called on shutdown (typically via
// defer). It is always non-nil and safe to call even if Wire failed.
func Wire(cfg config.Config, logger *slog.Logger) (*Components, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Components{Ancestry: cfg.Synthesis.Ancestry}
	cleanup := noop

	// --- Knowledge base ---

	if cfg.Data.CSVDir != "" {
		c.Store = knowledge.NewDirStore(cfg.Data.CSVDir)
		logger.Debug("reading split CSV directory", "dir", cfg.Data.CSVDir)
	} else {
		db, err := knowledge.Open(cfg.StoreConfig())
		if err != nil {
			return nil, noop, fmt.Errorf("opening knowledge base: %w", err)
		}
		c.Store, c.SQLite = db, db
		cleanup = func() {
			if err := db.Close(); err != nil {
				logger.Warn("knowledge base close failed", "error", err)
			}
		}
	}

	// --- Enrichment ---
	//
	// With the LLM disabled every rewrite falls back to the catalogued text.

	c.Gateway = enrich.Nop{}
	if cfg.LLM.Enabled {
		client, err := enrich.NewClient(cfg.EnrichConfig(), logger)
		if err != nil {
			cleanup()
			return nil, noop, fmt.Errorf("creating enrichment client: %w", err)
		}
		c.Gateway = client
	}

	// --- Glossary ---

	c.Glossary = complexity.DefaultGlossary()
	if cfg.Glossary.Path != "" {
		g, err := complexity.LoadGlossary(cfg.Glossary.Path)
		if err != nil {
			cleanup()
			return nil, noop, fmt.Errorf("loading glossary: %w", err)
		}
		c.Glossary = g
	}

	// --- Synthesizer ---

	opts, err := cfg.BuilderOptions()
	if err != nil {
		cleanup()
		return nil, noop, err
	}
	c.Synthesizer = attacktree.NewSynthesizer(c.Store, c.Gateway, opts, logger)

	return c, cleanup, nil
}

// New creates the MCP server with all tools, prompts and resources
// registered against c.
func New(c *Components) *server.MCPServer {
	s := server.NewMCPServer(
		"adtree",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register tools ---

	attackTree := tools.NewAttackTreeTool(c.Synthesizer, c.Glossary, c.Ancestry)
	s.AddTool(attackTree.Definition(), attackTree.Handle)

	complexityTool := tools.NewComplexityTool(c.Synthesizer, c.Glossary)
	s.AddTool(complexityTool.Definition(), complexityTool.Handle)

	ancestry := tools.NewAncestryTool(c.Store)
	s.AddTool(ancestry.Definition(), ancestry.Handle)

	lookup := tools.NewLookupTool(c.Store)
	s.AddTool(lookup.Definition(), lookup.Handle)

	// Full-text search needs the SQLite index; the split CSV layout has none.
	var stats resources.StatsProvider
	if c.SQLite != nil {
		search := tools.NewSearchTool(c.SQLite)
		s.AddTool(search.Definition(), search.Handle)
		stats = c.SQLite
	}

	// --- Register prompts ---

	analyze := prompts.NewAnalyzePrompt()
	s.AddPrompt(analyze.Definition(), analyze.Handle)

	compare := prompts.NewCompareRegistersPrompt()
	s.AddPrompt(compare.Definition(), compare.Handle)

	// --- Register resources ---

	rh := resources.NewHandler(c.Store, stats)
	s.AddResource(rh.StatsResource(), rh.HandleStats)
	s.AddResourceTemplate(rh.PatternTemplate(), rh.HandlePattern)

	return s
}

// noop is the cleanup function returned when nothing needs closing.
func noop() {}

// serverInstructions tells the host how the tools fit together.
func serverInstructions() string {
	return `adtree synthesizes attack-defense trees from the MITRE CAPEC catalog.

Typical flow:
1. capec_search to find a pattern id from keywords (SQLite knowledge base only)
2. capec_lookup to read the pattern as catalogued
3. capec_ancestry to see which broader patterns it specializes
4. capec_attack_tree to build the tree: objectives (AND-gated), methods,
   mitigations or generated countermeasures, and related patterns expanded
   recursively
5. capec_complexity to compare how readable trees are across modes and registers

Modes: base uses catalogued mitigations; countermeasures generates them per
method; full also derives methods from related weaknesses (CWE).
Registers: nontechnical, developer, expert.

Patterns already on the current path are never re-expanded (cycles), and a
pattern reached through several paths is marked [duplicate] after its first
expansion.`
}
