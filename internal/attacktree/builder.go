package attacktree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/HendryAvila/adtree/internal/capec"
	"github.com/HendryAvila/adtree/internal/enrich"
	"github.com/HendryAvila/adtree/internal/knowledge"
)

// Options configures a Builder.
type Options struct {
	Mode     Mode
	Register enrich.Register
	Profile  enrich.Profile
	// ChildNatures selects which related patterns become subtrees.
	ChildNatures []capec.Nature
	// MaxDepth caps the ancestor path length.
	MaxDepth int
	// EnrichConcurrency bounds parallel gateway calls for one pattern.
	// Output order does not depend on it.
	EnrichConcurrency int
}

// DefaultOptions returns the options used when a field is left zero.
func DefaultOptions() Options {
	return Options{
		Mode:              ModeBase,
		Register:          enrich.RegisterNonTechnical,
		Profile:           enrich.DefaultProfile(),
		ChildNatures:      []capec.Nature{capec.CanFollow},
		MaxDepth:          12,
		EnrichConcurrency: 1,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Mode == "" {
		o.Mode = d.Mode
	}
	if o.Register == "" {
		o.Register = d.Register
	}
	if o.Profile.Model == "" {
		o.Profile = d.Profile
	}
	if len(o.ChildNatures) == 0 {
		o.ChildNatures = d.ChildNatures
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = d.MaxDepth
	}
	if o.EnrichConcurrency <= 0 {
		o.EnrichConcurrency = d.EnrichConcurrency
	}
	return o
}

// Builder expands patterns into tree nodes.
type Builder struct {
	store    knowledge.Store
	gateway  enrich.Gateway
	resolver *Resolver
	opts     Options
	prompts  enrich.Instructions
	logger   *slog.Logger
}

// NewBuilder creates a Builder. A nil gateway disables enrichment and a
// nil logger means slog.Default().
func NewBuilder(store knowledge.Store, gateway enrich.Gateway, opts Options, logger *slog.Logger) *Builder {
	if gateway == nil {
		gateway = enrich.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()
	return &Builder{
		store:    store,
		gateway:  gateway,
		resolver: NewResolver(store, logger),
		opts:     opts,
		prompts:  enrich.InstructionsFor(opts.Register),
		logger:   logger,
	}
}

// Options returns the effective options.
func (b *Builder) Options() Options { return b.opts }

// Build expands id into a pattern node, recursing into related patterns.
// A cycle, missing record, depth limit or cancelled context prunes only
// the affected branch.
func (b *Builder) Build(ctx context.Context, id string, t *Traversal) Result {
	id = capec.NormalizeID(id)

	if t.OnPath(id) {
		return t.skip(id, SkipCycle)
	}
	if ctx.Err() != nil {
		return t.skip(id, SkipCancelled)
	}
	if t.Depth() >= b.opts.MaxDepth {
		b.logger.Warn("depth limit reached, not expanding",
			"id", capec.FormatID(id), "max_depth", b.opts.MaxDepth, "path", t.Path())
		return t.skip(id, SkipDepthLimit)
	}

	rec, err := b.store.GetRecord(ctx, id)
	if err != nil {
		if errors.Is(err, knowledge.ErrNotFound) {
			b.logger.Warn("pattern not found", "id", capec.FormatID(id))
		} else {
			b.logger.Warn("pattern lookup failed", "id", capec.FormatID(id), "error", err)
		}
		return t.skip(id, SkipNotFound)
	}

	occurrence := t.increment(id)
	node := &Node{
		Kind:       KindPattern,
		Label:      rec.Title(),
		PatternID:  id,
		Occurrence: occurrence,
	}
	if occurrence > 1 {
		node.Duplicate = true
		node.Label += DuplicateSuffix
	}

	mitigations := capec.ParseMitigations(rec.Mitigations)
	objectives := capec.ParseFlow(rec.ExecutionFlow)
	b.enrichMethods(ctx, objectives, mitigations)

	node.Add(objectiveNodes(objectives)...)
	if !b.opts.Mode.countermeasures() {
		for _, m := range mitigations {
			node.Add(&Node{Kind: KindMitigation, Label: m})
		}
	}

	t.Push(id)
	targets, missing := b.resolver.Targets(ctx, rec, b.opts.ChildNatures...)
	for _, target := range missing {
		t.skip(target, SkipNotFound)
	}
	for _, target := range targets {
		if r := b.Build(ctx, target, t); r.OK() {
			node.Add(r.Node)
		}
	}
	t.Pop()

	if b.opts.Mode.weaknessMethods() {
		node.Add(b.weaknessMethods(ctx, rec, mitigations)...)
	}
	return Result{Node: node}
}

// objectiveNodes groups several objectives under one AND gate.
func objectiveNodes(objectives []capec.Objective) []*Node {
	nodes := make([]*Node, 0, len(objectives))
	for _, o := range objectives {
		obj := &Node{Kind: KindObjective, Label: o.Title}
		for _, m := range o.Methods {
			obj.Add(methodNode(KindMethod, m))
		}
		nodes = append(nodes, obj)
	}
	if len(nodes) > 1 {
		gate := &Node{Kind: KindAndGate, Label: KindAndGate.Prefix()}
		gate.Add(nodes...)
		return []*Node{gate}
	}
	return nodes
}

func methodNode(kind Kind, m capec.Method) *Node {
	n := &Node{Kind: kind, Label: m.Text()}
	if n.Label != m.Original {
		n.Original = m.Original
	}
	for _, s := range m.Suggestions {
		n.Add(&Node{Kind: KindGeneratedCountermeasure, Label: s})
	}
	return n
}

// ─── Enrichment ──────────────────────────────────────────────────────────────

// enrichMethods rewrites every method in place and, when the mode asks
// for it, attaches generated countermeasures. Gateway failures leave
// the original text.
func (b *Builder) enrichMethods(ctx context.Context, objectives []capec.Objective, mitigations []string) {
	var methods []*capec.Method
	for i := range objectives {
		for j := range objectives[i].Methods {
			methods = append(methods, &objectives[i].Methods[j])
		}
	}
	b.forEach(ctx, methods, func(ctx context.Context, m *capec.Method) {
		m.Enriched = b.gateway.Rewrite(ctx, b.prompts.Summarize, m.Original, b.opts.Profile)
		if b.opts.Mode.countermeasures() {
			m.Suggestions = b.countermeasures(ctx, m.Original, mitigations)
		}
	})
}

func (b *Builder) countermeasures(ctx context.Context, method string, mitigations []string) []string {
	var src strings.Builder
	fmt.Fprintf(&src, "Attack method: %s\n", method)
	if len(mitigations) > 0 {
		src.WriteString("Catalogued mitigations:\n")
		for _, m := range mitigations {
			fmt.Fprintf(&src, "- %s\n", m)
		}
	}
	return enrich.DecodeList(b.gateway.Rewrite(ctx, b.prompts.Countermeasures, src.String(), b.opts.Profile))
}

// weaknessMethods fabricates attack methods from the pattern's related
// weaknesses, each with its own generated countermeasures.
func (b *Builder) weaknessMethods(ctx context.Context, rec *capec.Record, mitigations []string) []*Node {
	weaknesses := capec.ParseWeaknesses(rec.RelatedWeaknesses)
	if len(weaknesses) == 0 || ctx.Err() != nil {
		return nil
	}
	cwes := make([]string, len(weaknesses))
	for i, w := range weaknesses {
		cwes[i] = "CWE-" + strings.TrimPrefix(strings.ToUpper(w), "CWE-")
	}
	src := fmt.Sprintf("Attack pattern: %s\nRelated weaknesses: %s", rec.Title(), strings.Join(cwes, ", "))

	texts := enrich.DecodeList(b.gateway.Rewrite(ctx, b.prompts.WeaknessMethods, src, b.opts.Profile))
	methods := make([]*capec.Method, len(texts))
	for i, text := range texts {
		methods[i] = &capec.Method{Original: text}
	}
	b.forEach(ctx, methods, func(ctx context.Context, m *capec.Method) {
		m.Suggestions = b.countermeasures(ctx, m.Original, mitigations)
	})

	nodes := make([]*Node, len(methods))
	for i, m := range methods {
		nodes[i] = methodNode(KindGeneratedMethod, *m)
	}
	return nodes
}

// forEach runs fn over methods with at most EnrichConcurrency calls in
// flight. Each call owns its element, so results land in source order.
func (b *Builder) forEach(ctx context.Context, methods []*capec.Method, fn func(context.Context, *capec.Method)) {
	if b.opts.EnrichConcurrency == 1 {
		for _, m := range methods {
			fn(ctx, m)
		}
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.EnrichConcurrency)
	for _, m := range methods {
		g.Go(func() error {
			fn(gctx, m)
			return nil
		})
	}
	_ = g.Wait()
}
