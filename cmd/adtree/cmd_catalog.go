package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/adtree/internal/capec"
	"github.com/HendryAvila/adtree/internal/knowledge"
)

var searchLimit int

func runLookup(cmd *cobra.Command, args []string) error {
	c, cleanup, err := wire()
	if err != nil {
		return err
	}
	defer cleanup()

	rec, err := c.Store.GetRecord(cmd.Context(), args[0])
	if errors.Is(err, knowledge.ErrNotFound) {
		return fmt.Errorf("%s not found", capec.FormatID(args[0]))
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", rec.Title())
	fmt.Fprintf(out, "Abstraction: %s  Status: %s\n", rec.Abstraction, rec.Status)
	if rec.Description != "" {
		fmt.Fprintf(out, "\n%s\n", rec.Description)
	}
	for _, o := range capec.ParseFlow(rec.ExecutionFlow) {
		fmt.Fprintf(out, "\n%s\n", o.Title)
		for _, m := range o.Methods {
			fmt.Fprintf(out, "  - %s\n", m.Original)
		}
	}
	if edges := capec.ParseRelations(rec.RelatedPatterns); len(edges) > 0 {
		fmt.Fprintln(out, "\nRelated patterns:")
		for _, e := range edges {
			fmt.Fprintf(out, "  %-10s %s\n", e.Nature, capec.FormatID(e.Target))
		}
	}
	if mitigations := capec.ParseMitigations(rec.Mitigations); len(mitigations) > 0 {
		fmt.Fprintln(out, "\nMitigations:")
		for _, m := range mitigations {
			fmt.Fprintf(out, "  - %s\n", m)
		}
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	c, cleanup, err := wire()
	if err != nil {
		return err
	}
	defer cleanup()

	if c.SQLite == nil {
		return fmt.Errorf("search needs the SQLite knowledge base; drop --csv-dir / data.csv_dir")
	}
	results, err := c.SQLite.Search(cmd.Context(), strings.Join(args, " "), searchLimit)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No patterns found.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tABSTRACTION")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", capec.FormatID(r.ID), r.Name, r.Abstraction)
	}
	return tw.Flush()
}
