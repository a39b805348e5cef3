package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/talk2shop/internal/transport/mcp"
	"github.com/kailas-cloud/talk2shop/internal/version"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve catalog tools over MCP stdio",
		Long:  "Runs a Model Context Protocol server on stdin/stdout. Logs go to stderr.",
		RunE: func(_ *cobra.Command, _ []string) error {
			return serveMCP()
		},
	}
}

func serveMCP() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger

	a, err := buildApp(ctx, rt.cfg, logger)
	if err != nil {
		logger.Error("Failed to build app", zap.Error(err))
		return err
	}
	defer a.Close()

	logger.Info("Starting MCP server", startupFields(rt.env, rt.cfg)...)

	srv := mcp.New(a.retrieval, a.products, version.Version, logger)
	if err := srv.Serve(ctx, os.Stdin, os.Stdout); err != nil {
		logger.Error("MCP server error", zap.Error(err))
		return err
	}
	return nil
}
