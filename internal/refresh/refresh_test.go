package refresh

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

// definitionPage mimics the layout of a capec.mitre.org definition page:
// a Relationships section holding a views table and the relationship table.
const definitionPage = `<!DOCTYPE html>
<html><body>
<div id="Description">Attacker crafts SQL input.</div>
<div id="Relationships">
  <table><tr><th>View</th><th>Name</th></tr><tr><td>1000</td><td>Mechanisms</td></tr></table>
  <table>
    <tr><th>Nature</th><th>Type</th><th>ID</th><th>Name</th></tr>
    <tr><td>ChildOf</td><td><img alt="Meta"></td><td> 248 </td><td>Command Injection</td></tr>
    <tr><td>ParentOf</td><td><img alt="Detailed"></td><td>7</td><td>Blind SQL Injection</td></tr>
    <tr><td colspan="4">footnote</td></tr>
    <tr><td>CanFollow</td><td></td><td>470</td><td>Expanding Control</td></tr>
  </table>
</div>
</body></html>`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// withServer points the fetcher at a test server for the duration of t.
func withServer(t *testing.T, handler http.HandlerFunc) *atomic.Int32 {
	t.Helper()
	calls := new(atomic.Int32)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	oldEndpoint, oldClient := definitionEndpoint, httpClient
	definitionEndpoint = srv.URL + "/data/definitions/%s.html"
	httpClient = srv.Client()
	t.Cleanup(func() {
		definitionEndpoint, httpClient = oldEndpoint, oldClient
	})
	return calls
}

// --- parseRelationships ---

func TestParseRelationships(t *testing.T) {
	got, err := parseRelationships(strings.NewReader(definitionPage))
	if err != nil {
		t.Fatalf("parseRelationships: %v", err)
	}
	want := "::NATURE:ChildOf:CAPEC ID:248::NATURE:ParentOf:CAPEC ID:7::NATURE:CanFollow:CAPEC ID:470::"
	if got != want {
		t.Errorf("parseRelationships =\n%q\nwant\n%q", got, want)
	}
}

func TestParseRelationships_Missing(t *testing.T) {
	tests := []struct {
		name string
		page string
	}{
		{"no section", `<html><body><div id="Description">x</div></body></html>`},
		{"no nature table", `<div id="Relationships"><table><tr><th>View</th></tr><tr><td>1</td></tr></table></div>`},
		{"header only", `<div id="Relationships"><table><tr><th>Nature</th><th>Type</th><th>ID</th></tr></table></div>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRelationships(strings.NewReader(tt.page))
			if err != nil {
				t.Fatalf("parseRelationships: %v", err)
			}
			if got != "" {
				t.Errorf("parseRelationships = %q, want empty", got)
			}
		})
	}
}

// --- Relationships ---

func TestRelationships_FetchesDefinitionPage(t *testing.T) {
	seen := make(chan *http.Request, 1)
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		seen <- r
		_, _ = io.WriteString(w, definitionPage)
	})

	got, err := NewFetcher(0, "1.2.3", quietLogger()).Relationships(context.Background(), "CAPEC-66")
	if err != nil {
		t.Fatalf("Relationships: %v", err)
	}
	r := <-seen
	if r.URL.Path != "/data/definitions/66.html" {
		t.Errorf("path = %q", r.URL.Path)
	}
	if agent := r.Header.Get("User-Agent"); agent != "adtree/1.2.3" {
		t.Errorf("User-Agent = %q", agent)
	}
	if !strings.HasPrefix(got, "::NATURE:ChildOf:CAPEC ID:248::") {
		t.Errorf("Relationships = %q", got)
	}
}

func TestRelationships_HTTPError(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := NewFetcher(0, "dev", quietLogger()).Relationships(context.Background(), "9999")
	if err == nil || !strings.Contains(err.Error(), "HTTP 404") {
		t.Errorf("error = %v, want HTTP 404", err)
	}
}

// --- Refresh ---

const exportCSV = "'ID,Name,Related Attack Patterns\n" +
	"66,SQL Injection,::NATURE:CanFollow:CAPEC ID:1::\n" +
	"404,Gone,::NATURE:ChildOf:CAPEC ID:2::\n" +
	",,\n"

func TestRefresh_BestEffort(t *testing.T) {
	calls := withServer(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/404.html") {
			http.Error(w, "gone", http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, definitionPage)
	})

	var out strings.Builder
	rep, err := NewFetcher(0, "dev", quietLogger()).Refresh(context.Background(), strings.NewReader(exportCSV), &out)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("calls = %d, want 2 (the row without an id is skipped)", n)
	}
	if rep != (Report{Rows: 2, Updated: 1, Failed: 1}) {
		t.Errorf("report = %+v", rep)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[1], "CAPEC ID:248") {
		t.Errorf("row 66 not refreshed: %q", lines[1])
	}
	if lines[2] != "404,Gone,::NATURE:ChildOf:CAPEC ID:2::" {
		t.Errorf("failed row must keep its value, got %q", lines[2])
	}
}

func TestRefresh_CancelledCopiesRemainingRows(t *testing.T) {
	calls := withServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, definitionPage)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out strings.Builder
	rep, err := NewFetcher(0, "dev", quietLogger()).Refresh(ctx, strings.NewReader(exportCSV), &out)
	if err != context.Canceled {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("calls = %d, want 0", n)
	}
	if rep.Rows != 2 || rep.Updated != 0 {
		t.Errorf("report = %+v", rep)
	}
	if !strings.Contains(out.String(), "CAPEC ID:1::") {
		t.Errorf("rows must be copied unchanged:\n%s", out.String())
	}
}

func TestNewFetcher_RateLimit(t *testing.T) {
	f := NewFetcher(2, "dev", nil)
	if got := float64(f.limiter.Limit()); got != 2 {
		t.Errorf("limit = %v, want 2", got)
	}
	if f.logger == nil {
		t.Error("nil logger must default")
	}
}
