package attacktree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/HendryAvila/adtree/internal/capec"
	"github.com/HendryAvila/adtree/internal/enrich"
	"github.com/HendryAvila/adtree/internal/knowledge"
)

// ErrRootNotFound is returned when the requested root pattern does not exist.
var ErrRootNotFound = errors.New("root pattern not found")

// SynthesisOptions are per-run switches.
type SynthesisOptions struct {
	// WithAncestry grafts the tree onto its ChildOf chain.
	WithAncestry bool
}

// Synthesis is the result of one run. The tree is not modified after
// Synthesize returns.
type Synthesis struct {
	RunID      string           `json:"run_id"`
	RootID     string           `json:"root_id"`
	Mode       Mode             `json:"mode"`
	Tree       *Node            `json:"tree"`
	Ancestry   []string         `json:"ancestry,omitempty"`
	Duplicates []DuplicateEntry `json:"duplicates"`
	// Labels maps every pattern id in the tree to its title.
	Labels map[string]string `json:"labels"`
	Skips  []SkipEvent       `json:"skips,omitempty"`
}

// SynthesizerOption customizes a Synthesizer.
type SynthesizerOption func(*Synthesizer)

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) SynthesizerOption {
	return func(s *Synthesizer) { s.tracer = tp.Tracer("github.com/HendryAvila/adtree/internal/attacktree") }
}

// Synthesizer runs complete syntheses. It is safe for concurrent use:
// every run gets its own Traversal and enrichment cache.
type Synthesizer struct {
	store   knowledge.Store
	gateway enrich.Gateway
	opts    Options
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewSynthesizer creates a Synthesizer. A nil gateway disables enrichment.
func NewSynthesizer(store knowledge.Store, gateway enrich.Gateway, opts Options, logger *slog.Logger, sopts ...SynthesizerOption) *Synthesizer {
	if gateway == nil {
		gateway = enrich.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Synthesizer{
		store:   store,
		gateway: gateway,
		opts:    opts.withDefaults(),
		logger:  logger,
		tracer:  otel.Tracer("github.com/HendryAvila/adtree/internal/attacktree"),
	}
	for _, o := range sopts {
		o(s)
	}
	return s
}

// WithOptions returns a copy of s using opts.
func (s *Synthesizer) WithOptions(opts Options) *Synthesizer {
	cp := *s
	cp.opts = opts.withDefaults()
	return &cp
}

// Options returns the effective options.
func (s *Synthesizer) Options() Options { return s.opts }

// Synthesize builds the tree rooted at rootID.
func (s *Synthesizer) Synthesize(ctx context.Context, rootID string, so SynthesisOptions) (*Synthesis, error) {
	rootID = capec.NormalizeID(rootID)
	runID := uuid.NewString()

	ctx, span := s.tracer.Start(ctx, "attacktree.synthesize", trace.WithAttributes(
		attribute.String("adtree.run_id", runID),
		attribute.String("adtree.root_id", rootID),
		attribute.String("adtree.mode", string(s.opts.Mode)),
		attribute.Bool("adtree.with_ancestry", so.WithAncestry),
	))
	defer span.End()

	logger := s.logger.With("run_id", runID, "root", capec.FormatID(rootID))
	logger.Debug("synthesis started", "mode", s.opts.Mode)

	// The chain is known before building so the subtree cannot expand
	// its own ancestors again.
	t := NewTraversal()
	var chain []string
	if so.WithAncestry {
		chain = ReconstructAncestry(ctx, s.store, rootID)
		t.Enclose(chain[:len(chain)-1]...)
	}
	b := NewBuilder(s.store, enrich.NewCache(s.gateway), s.opts, logger)
	res := b.Build(ctx, rootID, t)
	if !res.OK() {
		err := fmt.Errorf("attacktree: %s: %w", capec.FormatID(rootID), ErrRootNotFound)
		if res.Skipped == SkipCancelled {
			err = fmt.Errorf("attacktree: %s: %w", capec.FormatID(rootID), ctx.Err())
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	syn := &Synthesis{
		RunID:      runID,
		RootID:     rootID,
		Mode:       s.opts.Mode,
		Tree:       res.Node,
		Duplicates: t.Duplicates(),
		Skips:      t.Skips(),
	}
	if so.WithAncestry {
		syn.Ancestry = chain
		syn.Tree = GraftChain(ctx, s.store, chain, syn.Tree)
	}
	syn.Labels = patternLabels(syn.Tree)

	span.SetAttributes(
		attribute.Int("adtree.nodes", syn.Tree.Count()),
		attribute.Int("adtree.duplicates", len(syn.Duplicates)),
		attribute.Int("adtree.skips", len(syn.Skips)),
	)
	span.SetStatus(codes.Ok, "")
	logger.Debug("synthesis finished", "nodes", syn.Tree.Count(), "duplicates", len(syn.Duplicates))
	return syn, nil
}

func patternLabels(tree *Node) map[string]string {
	labels := make(map[string]string)
	tree.Walk(func(n *Node, _ int) bool {
		if n.PatternID != "" {
			if _, ok := labels[n.PatternID]; !ok {
				labels[n.PatternID] = strings.TrimSuffix(n.Label, DuplicateSuffix)
			}
		}
		return true
	})
	return labels
}
