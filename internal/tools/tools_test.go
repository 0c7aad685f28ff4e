package tools

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/adtree/internal/attacktree"
	"github.com/HendryAvila/adtree/internal/capec"
	"github.com/HendryAvila/adtree/internal/complexity"
	"github.com/HendryAvila/adtree/internal/enrich"
	"github.com/HendryAvila/adtree/internal/knowledge"
)

// ─── Test helpers ────────────────────────────────────────────────────────────

// makeReq builds a mcp.CallToolRequest with the given arguments.
func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultText extracts the text content from a tool result.
func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func testStore() *knowledge.MemoryStore {
	return knowledge.NewMemoryStore(
		capec.Record{
			ID:          "66",
			Name:        "SQL Injection",
			Abstraction: capec.AbstractionStandard,
			Status:      "Draft",
			Description: "Attacker crafts SQL input.",
			ExecutionFlow: "::STEP:1:PHASE:Explore:DESCRIPTION:[Survey application]:TECHNIQUE:Spider the site::" +
				"STEP:2:PHASE:Exploit:DESCRIPTION:[Inject SQL]:TECHNIQUE:Send a payload::",
			RelatedPatterns:   "::NATURE:ChildOf:CAPEC ID:248::NATURE:CanFollow:CAPEC ID:7::",
			RelatedWeaknesses: "::89::",
			Mitigations:       "::Use prepared statements::",
		},
		capec.Record{
			ID:              "7",
			Name:            "Blind SQL Injection",
			Abstraction:     capec.AbstractionDetailed,
			ExecutionFlow:   "::STEP:1:PHASE:Exploit:DESCRIPTION:[Infer data]:TECHNIQUE:Ask true/false queries::",
			RelatedPatterns: "::NATURE:ChildOf:CAPEC ID:66::NATURE:CanFollow:CAPEC ID:66::",
		},
		capec.Record{ID: "248", Name: "Command Injection", Abstraction: capec.AbstractionMeta},
	)
}

func testSynthesizer(store knowledge.Store, gw enrich.Gateway) *attacktree.Synthesizer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return attacktree.NewSynthesizer(store, gw, attacktree.DefaultOptions(), logger)
}

// ─── AttackTreeTool ──────────────────────────────────────────────────────────

func TestAttackTreeTool_Definition(t *testing.T) {
	tool := NewAttackTreeTool(testSynthesizer(testStore(), nil), complexity.DefaultGlossary(), false)
	def := tool.Definition()

	assert.Equal(t, "capec_attack_tree", def.Name)
	for _, p := range []string{"id", "mode", "register", "natures", "max_depth", "ancestry", "format", "compact"} {
		assert.Contains(t, def.InputSchema.Properties, p)
	}
	assert.Equal(t, []string{"id"}, def.InputSchema.Required)
}

func TestAttackTreeTool_Text(t *testing.T) {
	tool := NewAttackTreeTool(testSynthesizer(testStore(), nil), complexity.DefaultGlossary(), false)

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"id": "CAPEC-66"}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(res))

	text := resultText(res)
	assert.Contains(t, text, "SQL Injection (CAPEC-66)")
	assert.Contains(t, text, "AND")
	assert.Contains(t, text, "Attack Method: Spider the site")
	assert.Contains(t, text, "Mitigation: Use prepared statements")
	assert.Contains(t, text, "Blind SQL Injection (CAPEC-7)")
	assert.Contains(t, text, "Complexity: words=")
	assert.NotContains(t, text, "\x1b[", "MCP output must not carry ANSI escapes")
}

func TestAttackTreeTool_CompactLegend(t *testing.T) {
	tool := NewAttackTreeTool(testSynthesizer(testStore(), nil), complexity.DefaultGlossary(), false)

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"id":      "66",
		"compact": true,
	}))
	require.NoError(t, err)

	text := resultText(res)
	assert.Contains(t, text, "Legend:")
	assert.Contains(t, text, "CAPEC-7")
}

func TestAttackTreeTool_JSON(t *testing.T) {
	tool := NewAttackTreeTool(testSynthesizer(testStore(), nil), complexity.DefaultGlossary(), false)

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"id":       "66",
		"format":   "json",
		"ancestry": true,
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(res))

	var doc struct {
		RootID   string            `json:"root_id"`
		Mode     string            `json:"mode"`
		Ancestry []string          `json:"ancestry"`
		Labels   map[string]string `json:"labels"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(res)), &doc))
	assert.Equal(t, "66", doc.RootID)
	assert.Equal(t, "base", doc.Mode)
	assert.Equal(t, []string{"248", "66"}, doc.Ancestry)
	assert.Equal(t, "Command Injection (CAPEC-248)", doc.Labels["248"])
}

func TestAttackTreeTool_DOT(t *testing.T) {
	tool := NewAttackTreeTool(testSynthesizer(testStore(), nil), complexity.DefaultGlossary(), false)

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"id": "66", "format": "dot"}))
	require.NoError(t, err)

	text := resultText(res)
	assert.True(t, strings.HasPrefix(text, "digraph attack_tree {"), text)
	assert.NotContains(t, text, "Complexity:")
}

func TestAttackTreeTool_ChildOfNatures(t *testing.T) {
	tool := NewAttackTreeTool(testSynthesizer(testStore(), nil), complexity.DefaultGlossary(), false)

	// 7 is ChildOf 66, so expanding ChildOf from 7 reaches 66; 248 is Meta
	// and never expanded.
	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"id":      "7",
		"natures": []interface{}{"ChildOf"},
	}))
	require.NoError(t, err)

	text := resultText(res)
	assert.Contains(t, text, "SQL Injection (CAPEC-66)")
	assert.NotContains(t, text, "CAPEC-248")
}

func TestAttackTreeTool_CountermeasuresMode(t *testing.T) {
	gw := enrich.GatewayFunc(func(_ context.Context, instructions, _ string, _ enrich.Profile) string {
		if instructions == enrich.InstructionsFor(enrich.RegisterNonTechnical).Countermeasures {
			return `["Rotate credentials"]`
		}
		return ""
	})
	tool := NewAttackTreeTool(testSynthesizer(testStore(), gw), complexity.DefaultGlossary(), false)

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"id":   "66",
		"mode": "countermeasures",
	}))
	require.NoError(t, err)

	text := resultText(res)
	assert.Contains(t, text, "Generated Countermeasure: Rotate credentials")
	assert.NotContains(t, text, "Mitigation: Use prepared statements")
}

func TestAttackTreeTool_InputErrors(t *testing.T) {
	tool := NewAttackTreeTool(testSynthesizer(testStore(), nil), complexity.DefaultGlossary(), false)

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"missing id", map[string]interface{}{}, "'id' is required"},
		{"bad mode", map[string]interface{}{"id": "66", "mode": "deluxe"}, "deluxe"},
		{"bad register", map[string]interface{}{"id": "66", "register": "poet"}, "poet"},
		{"bad nature", map[string]interface{}{"id": "66", "natures": []interface{}{"SiblingOf"}}, "SiblingOf"},
		{"bad format", map[string]interface{}{"id": "66", "format": "svg"}, "svg"},
		{"unknown root", map[string]interface{}{"id": "9999"}, "not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tool.Handle(context.Background(), makeReq(tt.args))
			require.NoError(t, err)
			require.True(t, res.IsError)
			assert.Contains(t, resultText(res), tt.want)
		})
	}
}

func TestAttackTreeTool_Cancelled(t *testing.T) {
	tool := NewAttackTreeTool(testSynthesizer(testStore(), nil), complexity.DefaultGlossary(), false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tool.Handle(ctx, makeReq(map[string]interface{}{"id": "66"}))
	require.ErrorIs(t, err, context.Canceled)
}

// ─── ComplexityTool ──────────────────────────────────────────────────────────

func TestComplexityTool(t *testing.T) {
	tool := NewComplexityTool(testSynthesizer(testStore(), nil), complexity.DefaultGlossary())
	assert.Equal(t, "capec_complexity", tool.Definition().Name)

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"id": "66"}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(res))

	text := resultText(res)
	assert.Contains(t, text, "Complexity of SQL Injection (CAPEC-66) (base mode)")
	assert.Contains(t, text, "| Nodes |")
	assert.Contains(t, text, "| Combined score |")
	assert.Contains(t, text, "No pattern was expanded more than once.")
}

func TestComplexityTool_UnknownRoot(t *testing.T) {
	tool := NewComplexityTool(testSynthesizer(testStore(), nil), complexity.DefaultGlossary())

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"id": "404"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestDuplicateReport(t *testing.T) {
	var b strings.Builder
	duplicateReport(&b, []attacktree.DuplicateEntry{{ID: "7", Count: 3}})
	assert.Equal(t, "Duplicate expansions:\n- CAPEC-7 expanded 3 times\n", b.String())
}

// ─── AncestryTool ────────────────────────────────────────────────────────────

func TestAncestryTool(t *testing.T) {
	tool := NewAncestryTool(testStore())
	assert.Equal(t, "capec_ancestry", tool.Definition().Name)

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"id": "7"}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(res))

	want := "Ancestry of CAPEC-7 (3 levels):\n\n" +
		"- Command Injection (CAPEC-248)\n" +
		"  - SQL Injection (CAPEC-66)\n" +
		"    - Blind SQL Injection (CAPEC-7)\n"
	assert.Equal(t, want, resultText(res))
}

func TestAncestryTool_NotFound(t *testing.T) {
	tool := NewAncestryTool(testStore())

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"id": "404"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "CAPEC-404 not found")
}

// ─── LookupTool ──────────────────────────────────────────────────────────────

func TestLookupTool(t *testing.T) {
	tool := NewLookupTool(testStore())
	assert.Equal(t, "capec_lookup", tool.Definition().Name)

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"id": "66"}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(res))

	text := resultText(res)
	assert.Contains(t, text, "# SQL Injection (CAPEC-66)")
	assert.Contains(t, text, "**Abstraction**: Standard | **Status**: Draft")
	assert.Contains(t, text, "- [Survey application]\n  - Spider the site")
	assert.Contains(t, text, "- ChildOf CAPEC-248")
	assert.Contains(t, text, "- CWE-89")
	assert.Contains(t, text, "- Use prepared statements")
}

func TestLookupTool_Errors(t *testing.T) {
	tool := NewLookupTool(testStore())

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = tool.Handle(context.Background(), makeReq(map[string]interface{}{"id": "1"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

// ─── SearchTool ──────────────────────────────────────────────────────────────

func newTestSQLite(t *testing.T) *knowledge.SQLiteStore {
	t.Helper()
	s, err := knowledge.Open(knowledge.Config{DataDir: t.TempDir(), MaxSearchResults: 20})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	records := []capec.Record{
		{ID: "66", Name: "SQL Injection", Abstraction: capec.AbstractionStandard, Description: "Attacker crafts SQL input."},
		{ID: "88", Name: "OS Command Injection", Abstraction: capec.AbstractionStandard, Description: "Shell metacharacters."},
	}
	if _, err := s.UpsertRecords(context.Background(), records); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	return s
}

func TestSearchTool(t *testing.T) {
	tool := NewSearchTool(newTestSQLite(t))
	assert.Equal(t, "capec_search", tool.Definition().Name)

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"query": "sql"}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(res))

	text := resultText(res)
	assert.Contains(t, text, "Found 1 patterns:")
	assert.Contains(t, text, "- **CAPEC-66** SQL Injection (Standard)")
}

func TestSearchTool_NoMatches(t *testing.T) {
	tool := NewSearchTool(newTestSQLite(t))

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"query": "xylophone"}))
	require.NoError(t, err)
	assert.Equal(t, "No patterns found matching your query.", resultText(res))
}

func TestSearchTool_EmptyQuery(t *testing.T) {
	tool := NewSearchTool(newTestSQLite(t))

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"query": "  "}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
