package attacktree

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/HendryAvila/adtree/internal/capec"
	"github.com/HendryAvila/adtree/internal/enrich"
	"github.com/HendryAvila/adtree/internal/knowledge"
)

const (
	twoStepFlow = "::STEP:1:PHASE:Explore:DESCRIPTION:[Survey]:TECHNIQUE:port scan::TECHNIQUE:banner grab::" +
		"STEP:2:PHASE:Exploit:DESCRIPTION:[Exploit]:TECHNIQUE:overflow::"
	oneStepFlow = "::STEP:1:PHASE:Exploit:DESCRIPTION:[Inject]:TECHNIQUE:send payload::"
)

// rel encodes related patterns the way the CAPEC export does.
func rel(nature capec.Nature, ids ...string) string {
	var b strings.Builder
	for _, id := range ids {
		b.WriteString("::NATURE:" + string(nature) + ":CAPEC ID:" + id)
	}
	if b.Len() > 0 {
		b.WriteString("::")
	}
	return b.String()
}

func pattern(id, flow, related string) capec.Record {
	return capec.Record{
		ID:              id,
		Name:            "Pattern " + id,
		Abstraction:     capec.AbstractionStandard,
		ExecutionFlow:   flow,
		RelatedPatterns: related,
	}
}

func newTestBuilder(t *testing.T, store knowledge.Store, gw enrich.Gateway, opts Options) *Builder {
	t.Helper()
	return NewBuilder(store, gw, opts, quietLogger())
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedGateway answers each instruction kind with a fixed shape so
// tests can tell the stages apart.
func scriptedGateway(r enrich.Register) enrich.GatewayFunc {
	prompts := enrich.InstructionsFor(r)
	return func(_ context.Context, instructions, source string, _ enrich.Profile) string {
		switch instructions {
		case prompts.Summarize:
			return "short: " + source
		case prompts.Countermeasures:
			return `["cm one", "cm two"]`
		case prompts.WeaknessMethods:
			return "```json\n[\"generated method\"]\n```"
		}
		return ""
	}
}

func labels(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Label
	}
	return out
}

func kinds(nodes []*Node) []Kind {
	out := make([]Kind, len(nodes))
	for i, n := range nodes {
		out[i] = n.Kind
	}
	return out
}
