package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"savload/internal/batch"
	"savload/internal/metrics"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run LIST",
		Short: "Convert every file named in LIST",
		Long: `Convert every file named in LIST (one path per line, # comments allowed)
into its table. Files over max_file_size are skipped. SIGINT and SIGTERM stop
the run after the chunk in progress.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runBatch(ctx, cmd, args[0])
		},
	}
}

func runBatch(ctx context.Context, cmd *cobra.Command, listPath string) error {
	errOut := cmd.ErrOrStderr()
	cfg, err := loadConfig(configPath(cmd), errOut)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, errOut)
	if err != nil {
		return err
	}
	paths, err := batch.ReadList(listPath)
	if err != nil {
		return err
	}
	if err := setupMetrics(cfg, log); err != nil {
		return err
	}
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Warn("metrics flush", "err", err)
		}
	}()

	p, err := buildPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer p.close()

	log.Info("run started", "files", len(paths), "chunk_size", p.chunk, "storage", cfg.Storage.Kind)
	tot := p.runner.Run(ctx, paths)
	renderTotals(cmd.OutOrStdout(), tot)

	if !tot.OK() {
		return exitError{code: 1, msg: fmt.Sprintf("%d failed, %d canceled", tot.Failed, tot.Canceled)}
	}
	return nil
}
