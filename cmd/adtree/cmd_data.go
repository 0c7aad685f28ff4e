package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/adtree/internal/knowledge"
	"github.com/HendryAvila/adtree/internal/refresh"
	"github.com/HendryAvila/adtree/internal/server"
)

var (
	splitOut    string
	refreshOut  string
	refreshRate float64
)

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	store, err := knowledge.Open(cfg.StoreConfig())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	n, err := knowledge.Import(cmd.Context(), store, f)
	if err != nil {
		return fmt.Errorf("importing %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d patterns into %s\n", n, filepath.Join(cfg.Data.Dir, "capec.db"))
	return nil
}

func runSplit(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	n, err := knowledge.SplitCSV(f, splitOut)
	if err != nil {
		return fmt.Errorf("splitting %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d pattern files to %s\n", n, splitOut)
	return nil
}

func runRefresh(cmd *cobra.Command, args []string) error {
	in, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(refreshOut)
	if err != nil {
		return err
	}

	fetcher := refresh.NewFetcher(refreshRate, server.Version, logger)
	rep, err := fetcher.Refresh(cmd.Context(), in, out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("refreshing %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Refreshed %d patterns (%d changed, %d failed) into %s\n",
		rep.Rows, rep.Updated, rep.Failed, refreshOut)
	return nil
}
