package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/adtree/internal/attacktree"
	"github.com/HendryAvila/adtree/internal/capec"
	"github.com/HendryAvila/adtree/internal/complexity"
	"github.com/HendryAvila/adtree/internal/enrich"
	"github.com/HendryAvila/adtree/internal/knowledge"
	"github.com/HendryAvila/adtree/internal/render"
	"github.com/HendryAvila/adtree/internal/server"
)

var (
	synthMode     string
	synthRegister string
	synthNatures  []string
	synthDepth    int
	synthAncestry bool
	synthWorkers  int

	treeFormat  string
	treeCompact bool
	treePlain   bool

	scoreGlossary bool
)

// addSynthesisFlags registers the flags shared by tree and score. Unset
// flags keep the configured defaults.
func addSynthesisFlags(c *cobra.Command) {
	f := c.Flags()
	f.StringVarP(&synthMode, "mode", "m", "", "Build mode: "+strings.Join(attacktree.Modes(), ", "))
	f.StringVarP(&synthRegister, "register", "r", "", "Audience register: "+strings.Join(enrich.Registers(), ", "))
	f.StringSliceVar(&synthNatures, "natures", nil, "Relationship natures expanded as subtrees (e.g. CanFollow,ParentOf)")
	f.IntVar(&synthDepth, "max-depth", 0, "Maximum ancestor path length")
	f.BoolVar(&synthAncestry, "ancestry", false, "Graft the tree onto its ChildOf ancestor chain")
	f.IntVar(&synthWorkers, "concurrency", 0, "Parallel enrichment calls per pattern")
}

// synthesize runs one synthesis with flag overrides applied.
func synthesize(cmd *cobra.Command, c *server.Components, id string) (*attacktree.Synthesis, error) {
	opts := c.Synthesizer.Options()
	if synthMode != "" {
		mode, err := attacktree.ParseMode(synthMode)
		if err != nil {
			return nil, err
		}
		opts.Mode = mode
	}
	if synthRegister != "" {
		register, err := enrich.ParseRegister(synthRegister)
		if err != nil {
			return nil, err
		}
		opts.Register = register
	}
	if len(synthNatures) > 0 {
		natures, err := capec.ParseNatures(synthNatures)
		if err != nil {
			return nil, err
		}
		opts.ChildNatures = natures
	}
	if synthDepth > 0 {
		opts.MaxDepth = synthDepth
	}
	if synthWorkers > 0 {
		opts.EnrichConcurrency = synthWorkers
	}

	return c.Synthesizer.WithOptions(opts).Synthesize(cmd.Context(), id, attacktree.SynthesisOptions{
		WithAncestry: synthAncestry || c.Ancestry,
	})
}

func runTree(cmd *cobra.Command, args []string) error {
	format, err := render.ParseFormat(treeFormat)
	if err != nil {
		return err
	}

	c, cleanup, err := wire()
	if err != nil {
		return err
	}
	defer cleanup()

	syn, err := synthesize(cmd, c, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var sink render.Sink = render.New(format, treeCompact)
	if format == render.FormatText {
		sink = render.Console{Compact: treeCompact, Plain: treePlain}
	}
	if err := sink.Render(out, syn); err != nil {
		return err
	}
	if format == render.FormatText {
		fmt.Fprintf(out, "\nComplexity: %s\n", complexity.Score(syn.Tree, c.Glossary))
	}
	logger.Info("tree synthesized",
		"run_id", syn.RunID, "root", capec.FormatID(syn.RootID), "mode", syn.Mode,
		"nodes", syn.Tree.Count(), "duplicates", len(syn.Duplicates), "skips", len(syn.Skips))
	return nil
}

func runScore(cmd *cobra.Command, args []string) error {
	c, cleanup, err := wire()
	if err != nil {
		return err
	}
	defer cleanup()

	syn, err := synthesize(cmd, c, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", complexity.Score(syn.Tree, c.Glossary))
	for _, d := range syn.Duplicates {
		fmt.Fprintf(out, "duplicate %s expanded %d times\n", capec.FormatID(d.ID), d.Count)
	}
	if scoreGlossary {
		fmt.Fprintf(out, "glossary (%d terms):\n", c.Glossary.Len())
		for _, term := range c.Glossary.Terms() {
			fmt.Fprintf(out, "  %s\n", term)
		}
	}
	return nil
}

func runAncestry(cmd *cobra.Command, args []string) error {
	c, cleanup, err := wire()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	if _, err := c.Store.GetRecord(ctx, args[0]); err != nil {
		if errors.Is(err, knowledge.ErrNotFound) {
			return fmt.Errorf("%s not found", capec.FormatID(args[0]))
		}
		return err
	}
	chain := attacktree.ReconstructAncestry(ctx, c.Store, args[0])
	out := cmd.OutOrStdout()
	for i, id := range chain {
		label := capec.FormatID(id)
		if rec, err := c.Store.GetRecord(ctx, id); err == nil {
			label = rec.Title()
		}
		fmt.Fprintf(out, "%s%s\n", strings.Repeat("  ", i), label)
	}
	return nil
}
