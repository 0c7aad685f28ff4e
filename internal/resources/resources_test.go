package resources

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/adtree/internal/capec"
	"github.com/HendryAvila/adtree/internal/knowledge"
)

type fakeStats struct {
	stats *knowledge.Stats
	err   error
}

func (f fakeStats) Stats(context.Context) (*knowledge.Stats, error) { return f.stats, f.err }

func readReq(uri string, args map[string]any) mcp.ReadResourceRequest {
	req := mcp.ReadResourceRequest{}
	req.Params.URI = uri
	req.Params.Arguments = args
	return req
}

func contentText(t *testing.T, contents []mcp.ResourceContents) mcp.TextResourceContents {
	t.Helper()
	require.Len(t, contents, 1)
	tc, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	return tc
}

func TestStatsResource(t *testing.T) {
	h := NewHandler(knowledge.NewMemoryStore(), fakeStats{stats: &knowledge.Stats{
		TotalPatterns: 3,
		ByAbstraction: map[string]int{"Standard": 2, "Meta": 1},
	}})

	res := h.StatsResource()
	assert.Equal(t, "adtree://knowledge/stats", res.URI)
	assert.Equal(t, "application/json", res.MIMEType)

	contents, err := h.HandleStats(context.Background(), readReq(res.URI, nil))
	require.NoError(t, err)
	tc := contentText(t, contents)
	assert.Equal(t, "application/json", tc.MIMEType)

	var got knowledge.Stats
	require.NoError(t, json.Unmarshal([]byte(tc.Text), &got))
	assert.Equal(t, 3, got.TotalPatterns)
	assert.Equal(t, 2, got.ByAbstraction["Standard"])
}

func TestStatsResource_Unavailable(t *testing.T) {
	contents, err := NewHandler(knowledge.NewMemoryStore(), nil).
		HandleStats(context.Background(), readReq(statsURI, nil))
	require.NoError(t, err)
	assert.Contains(t, contentText(t, contents).Text, "Error:")

	contents, err = NewHandler(knowledge.NewMemoryStore(), fakeStats{err: errors.New("disk gone")}).
		HandleStats(context.Background(), readReq(statsURI, nil))
	require.NoError(t, err)
	assert.Equal(t, "Error: disk gone", contentText(t, contents).Text)
}

func TestPatternTemplate(t *testing.T) {
	store := knowledge.NewMemoryStore(capec.Record{ID: "66", Name: "SQL Injection", Abstraction: capec.AbstractionStandard})
	h := NewHandler(store, nil)

	assert.Equal(t, "CAPEC Attack Pattern", h.PatternTemplate().Name)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"string arg", map[string]any{"id": "CAPEC-66"}, `"name": "SQL Injection"`},
		{"slice arg", map[string]any{"id": []string{"66"}}, `"id": "66"`},
		{"unknown", map[string]any{"id": "404"}, "Error: CAPEC-404 not found"},
		{"missing", nil, "Error: missing pattern id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contents, err := h.HandlePattern(context.Background(), readReq("adtree://patterns/x", tt.args))
			require.NoError(t, err)
			assert.Contains(t, contentText(t, contents).Text, tt.want)
		})
	}
}
