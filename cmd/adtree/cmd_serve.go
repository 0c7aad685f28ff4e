package main

import (
	"context"
	"errors"
	"log/slog"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/HendryAvila/adtree/internal/server"
)

func runServe(cmd *cobra.Command, _ []string) error {
	c, cleanup, err := wire()
	if err != nil {
		return err
	}
	defer cleanup()

	stdio := mcpserver.NewStdioServer(server.New(c))
	stdio.SetErrorLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))

	logger.Info("MCP server listening on stdio", "version", server.Version)
	err = stdio.Listen(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
