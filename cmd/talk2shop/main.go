// Command talk2shop runs the catalog search API, the reindex job and the MCP tool server.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/talk2shop/internal/config"
	logpkg "github.com/kailas-cloud/talk2shop/internal/logger"
	"github.com/kailas-cloud/talk2shop/internal/tracing"
	"github.com/kailas-cloud/talk2shop/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "talk2shop",
		Short:         "Catalog search with semantic retrieval and a shopping assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd(), newReindexCmd(), newMCPCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

// runtime is what every subcommand needs before wiring the app.
type runtime struct {
	env    string
	cfg    config.Config
	logger *zap.Logger
	tracer *tracing.Provider
}

// bootstrap loads the ENV config and sets up logging and tracing.
func bootstrap(ctx context.Context) (*runtime, error) {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		return nil, err
	}

	logger, err := logpkg.NewLogger(env, logpkg.Options{
		Level: cfg.Logging.Level,
		File: logpkg.FileOptions{
			Path:       cfg.Logging.File.Path,
			MaxSizeMB:  cfg.Logging.File.MaxSizeMB,
			MaxBackups: cfg.Logging.File.MaxBackups,
			MaxAgeDays: cfg.Logging.File.MaxAgeDays,
			Compress:   cfg.Logging.File.Compress,
		},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		return nil, err
	}

	tp, err := tracing.Init(ctx, tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version.Version,
		Endpoint:       cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		logger.Error("Failed to init tracing", zap.Error(err))
		return nil, err
	}

	return &runtime{env: env, cfg: cfg, logger: logger, tracer: tp}, nil
}

// Close flushes spans and logs.
func (rt *runtime) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := rt.tracer.Shutdown(ctx); err != nil {
		rt.logger.Warn("Tracer shutdown failed", zap.Error(err))
	}
	_ = rt.logger.Sync()
}
