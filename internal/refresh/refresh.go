// Package refresh rebuilds the "Related Attack Patterns" column of a CAPEC
// CSV export from the Relationships table on each pattern's definition
// page at capec.mitre.org.
//
// Fetching is best-effort: a page that cannot be fetched or parsed keeps
// the row's existing relationships and is counted as a failure.
package refresh

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/HendryAvila/adtree/internal/capec"
	"github.com/HendryAvila/adtree/internal/knowledge"
)

const (
	// definitionURL is the per-pattern page; %s is the numeric id.
	definitionURL = "https://capec.mitre.org/data/definitions/%s.html"

	// fetchTimeout is how long we wait for one page.
	fetchTimeout = 10 * time.Second
)

// For testing: allow overriding the definition URL and HTTP client.
var (
	definitionEndpoint = definitionURL
	httpClient         = &http.Client{Timeout: fetchTimeout}
)

// Report summarizes one refresh run.
type Report struct {
	Rows    int `json:"rows"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// Fetcher downloads definition pages at a bounded rate.
type Fetcher struct {
	limiter   *rate.Limiter
	logger    *slog.Logger
	userAgent string
}

// NewFetcher creates a Fetcher allowing requestsPerSecond page loads
// (zero or less means unlimited).
func NewFetcher(requestsPerSecond float64, version string, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &Fetcher{
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
		userAgent: "adtree/" + version,
	}
}

// Relationships fetches the definition page of id and returns its
// relationships encoded the way the CSV export stores them:
//
//	::NATURE:ChildOf:CAPEC ID:560::NATURE:CanPrecede:CAPEC ID:151::
//
// A page without a Relationships table yields "".
func (f *Fetcher) Relationships(ctx context.Context, id string) (string, error) {
	id = capec.NormalizeID(id)
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(definitionEndpoint, id), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", capec.FormatID(id), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: HTTP %d", capec.FormatID(id), resp.StatusCode)
	}
	return parseRelationships(resp.Body)
}

// Refresh copies the CSV table from r to w with every row's related
// patterns re-fetched. Cancelling ctx stops fetching; the remaining
// rows are copied unchanged.
func (f *Fetcher) Refresh(ctx context.Context, r io.Reader, w io.Writer) (Report, error) {
	var rep Report
	n, err := knowledge.RewriteColumn(r, w, knowledge.RelatedPatternsColumn, func(id, current string) string {
		if ctx.Err() != nil {
			return current
		}
		rel, err := f.Relationships(ctx, id)
		if err != nil {
			rep.Failed++
			f.logger.Warn("relationship refresh failed, keeping existing value",
				"id", capec.FormatID(id), "error", err)
			return current
		}
		if rel != current {
			rep.Updated++
		}
		f.logger.Debug("relationships fetched", "id", capec.FormatID(id), "edges", len(capec.ParseRelations(rel)))
		return rel
	})
	rep.Rows = n
	if err != nil {
		return rep, fmt.Errorf("refresh: %w", err)
	}
	return rep, ctx.Err()
}

// ─── HTML extraction ────────────────────────────────────────────────────────

// parseRelationships finds <div id="Relationships">, takes the first
// table whose header row mentions "Nature", and reads the nature from
// the first cell and the pattern id from the third cell of every
// following row.
func parseRelationships(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parsing definition page: %w", err)
	}

	section := find(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "div" && attr(n, "id") == "Relationships"
	})
	if section == nil {
		return "", nil
	}

	var table *html.Node
	for _, t := range findAll(section, element("table")) {
		rows := findAll(t, element("tr"))
		if len(rows) > 0 && strings.Contains(text(rows[0]), "Nature") {
			table = t
			break
		}
	}
	if table == nil {
		return "", nil
	}

	var b strings.Builder
	for _, row := range findAll(table, element("tr"))[1:] {
		cells := findAll(row, element("td"))
		if len(cells) < 3 {
			continue
		}
		nature := strings.TrimSpace(text(cells[0]))
		target := strings.TrimSpace(text(cells[2]))
		if nature == "" || target == "" {
			continue
		}
		fmt.Fprintf(&b, "::NATURE:%s:CAPEC ID:%s", nature, target)
	}
	if b.Len() > 0 {
		b.WriteString("::")
	}
	return b.String(), nil
}

func element(name string) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.Type == html.ElementNode && n.Data == name }
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// find returns the first descendant of n (depth-first) matching pred.
func find(n *html.Node, pred func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if pred(c) {
			return c
		}
		if m := find(c, pred); m != nil {
			return m
		}
	}
	return nil
}

// findAll returns every descendant of n matching pred, in document order.
func findAll(n *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if pred(c) {
			out = append(out, c)
		}
		out = append(out, findAll(c, pred)...)
	}
	return out
}

// text concatenates every text node under n.
func text(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(text(c))
	}
	return b.String()
}
