package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/adtree/internal/config"
	"github.com/HendryAvila/adtree/internal/server"
)

// --- Global Command Variables ---
var (
	configPath string
	logLevel   string
	logFormat  string
	csvDir     string
	noLLM      bool

	// cfg and logger are set by rootCmd's PersistentPreRunE.
	cfg    config.Config
	logger *slog.Logger

	rootCmd = &cobra.Command{
		Use:   "adtree",
		Short: "Synthesize attack-defense trees from the MITRE CAPEC catalog",
		Long: `adtree expands a CAPEC attack pattern into an attack-defense tree:
execution-flow objectives and methods, mitigations or generated
countermeasures, and related patterns expanded recursively.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: loadConfig,
	}

	// --- Knowledge base ---
	importCmd = &cobra.Command{
		Use:   "import <capec.csv>",
		Short: "Load a CAPEC CSV export into the SQLite knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport, // Defined in cmd_data.go
	}
	splitCmd = &cobra.Command{
		Use:   "split <capec.csv>",
		Short: "Write one capec_<id>.csv file per pattern",
		Args:  cobra.ExactArgs(1),
		RunE:  runSplit, // Defined in cmd_data.go
	}
	refreshCmd = &cobra.Command{
		Use:   "refresh <capec.csv>",
		Short: "Re-fetch every pattern's relationships from capec.mitre.org",
		Args:  cobra.ExactArgs(1),
		RunE:  runRefresh, // Defined in cmd_data.go
	}

	// --- Synthesis ---
	treeCmd = &cobra.Command{
		Use:   "tree <id>",
		Short: "Synthesize and print the attack-defense tree rooted at a pattern",
		Args:  cobra.ExactArgs(1),
		RunE:  runTree, // Defined in cmd_tree.go
	}
	ancestryCmd = &cobra.Command{
		Use:   "ancestry <id>",
		Short: "Print the ChildOf chain from the most general ancestor down to a pattern",
		Args:  cobra.ExactArgs(1),
		RunE:  runAncestry, // Defined in cmd_tree.go
	}
	scoreCmd = &cobra.Command{
		Use:   "score <id>",
		Short: "Print the complexity metrics of a synthesized tree",
		Args:  cobra.ExactArgs(1),
		RunE:  runScore, // Defined in cmd_tree.go
	}

	// --- Catalog queries ---
	lookupCmd = &cobra.Command{
		Use:   "lookup <id>",
		Short: "Show one pattern as stored in the knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE:  runLookup, // Defined in cmd_catalog.go
	}
	searchCmd = &cobra.Command{
		Use:   "search <query...>",
		Short: "Full-text search over pattern names and descriptions",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch, // Defined in cmd_catalog.go
	}

	// --- MCP ---
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE:  runServe, // Defined in cmd_serve.go
	}
	versionCmd = &cobra.Command{
		Use:               "version",
		Short:             "Print the adtree version",
		Args:              cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "adtree v%s\n", server.Version)
		},
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default ~/.adtree/adtree.yaml, created on first run)")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	pf.StringVar(&logFormat, "log-format", "", "Log format: text or json (overrides config)")
	pf.StringVar(&csvDir, "csv-dir", "", "Read patterns from a split CSV directory instead of SQLite")
	pf.BoolVar(&noLLM, "no-llm", false, "Disable language model enrichment")

	rootCmd.AddCommand(importCmd, splitCmd, refreshCmd)
	splitCmd.Flags().StringVarP(&splitOut, "out", "o", "capec_data", "Output directory")
	refreshCmd.Flags().StringVarP(&refreshOut, "out", "o", "capec_updated.csv", "Output CSV file")
	refreshCmd.Flags().Float64Var(&refreshRate, "rps", 1, "Maximum page requests per second (0 = unlimited)")

	rootCmd.AddCommand(treeCmd, ancestryCmd, scoreCmd)
	for _, c := range []*cobra.Command{treeCmd, scoreCmd} {
		addSynthesisFlags(c)
	}
	treeCmd.Flags().StringVarP(&treeFormat, "format", "f", "text", "Output format: text, dot or json")
	treeCmd.Flags().BoolVar(&treeCompact, "compact", false, "Text format: show patterns by id and print a legend")
	treeCmd.Flags().BoolVar(&treePlain, "plain", false, "Text format: disable colors")
	scoreCmd.Flags().BoolVar(&scoreGlossary, "show-glossary", false, "List the glossary terms used for the language score")

	rootCmd.AddCommand(lookupCmd, searchCmd)
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "Maximum results")

	rootCmd.AddCommand(serveCmd, versionCmd)
}

// loadConfig reads the config file, applies flag overrides and builds
// the process logger.
func loadConfig(cmd *cobra.Command, _ []string) error {
	var err error
	if cfg, err = config.Load(configPath); err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if csvDir != "" {
		cfg.Data.CSVDir = csvDir
	}
	if noLLM {
		cfg.LLM.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if logger, err = newLogger(cfg, cmd.ErrOrStderr()); err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

// newLogger builds the slog handler described by cfg.Log. Logs go to
// stderr so they never mix with tree output or the MCP stdio stream.
func newLogger(c config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := c.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// wire builds the shared components for one command run.
func wire() (*server.Components, func(), error) {
	return server.Wire(cfg, logger)
}
