package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/talk2shop/internal/usecase/indexing"
)

func newReindexCmd() *cobra.Command {
	var opts indexing.ReindexOptions

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild product vectors from the catalog",
		Long: "Embeds catalog products and upserts them into the vector index.\n" +
			"Use --only-marked to retry products whose write-through indexing failed.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return reindex(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.OnlyMarked, "only-marked", false, "Only products flagged reindex_needed")
	cmd.Flags().BoolVar(&opts.Recreate, "recreate", false, "Drop and recreate the vector index first")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 0, "Products per batch (default indexing.batch_size)")
	cmd.MarkFlagsMutuallyExclusive("only-marked", "recreate")

	return cmd
}

func reindex(cmd *cobra.Command, opts indexing.ReindexOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger

	if opts.BatchSize <= 0 {
		opts.BatchSize = rt.cfg.Indexing.BatchSize
	}

	logger.Info("Starting reindex", append(startupFields(rt.env, rt.cfg),
		zap.Bool("only_marked", opts.OnlyMarked),
		zap.Bool("recreate", opts.Recreate),
		zap.Int("batch_size", opts.BatchSize),
	)...)

	a, err := buildApp(ctx, rt.cfg, logger)
	if err != nil {
		logger.Error("Failed to build app", zap.Error(err))
		return err
	}
	defer a.Close()

	report, err := a.reindexer.Run(ctx, opts)
	logger.Info("Reindex finished",
		zap.Int("indexed", report.Indexed),
		zap.Int("failed", report.Failed),
		zap.Error(err),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d, failed %d\n", report.Indexed, report.Failed)
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d products failed to index and stay marked", report.Failed)
	}
	return nil
}
