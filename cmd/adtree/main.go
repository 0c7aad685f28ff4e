// adtree: CAPEC attack-defense tree synthesis.
//
// Builds attack-defense trees from the MITRE CAPEC catalog, optionally
// rewriting methods and generating countermeasures through an
// OpenAI-compatible language model, and serves the same engine to AI
// coding tools over MCP.
//
// Usage:
//
//	adtree import capec.csv        # Load the CAPEC CSV export into SQLite
//	adtree tree 66 --mode full     # Synthesize and print a tree
//	adtree serve                   # Start MCP server (stdio transport)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
