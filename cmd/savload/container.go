package main

// This file wires configuration into the library packages. It depends only
// on storage-agnostic interfaces; backends are linked in by main's blank
// import of storage/all.

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"savload/internal/batch"
	"savload/internal/config"
	"savload/internal/convert"
	"savload/internal/logging"
	"savload/internal/metrics"
	"savload/internal/metrics/datadog"
	"savload/internal/metrics/prompush"
	"savload/internal/source"
	srccsv "savload/internal/source/csv"
	"savload/internal/source/sav"
	"savload/internal/storage"
)

// Function variables used to introduce test seams.
var (
	loadConfigFn    = config.Load
	newRepositoryFn = storage.New
)

// loadConfig loads and validates configuration. Warnings are written to w;
// any error-level issue fails.
func loadConfig(path string, w io.Writer) (*config.Config, error) {
	cfg, err := loadConfigFn(path)
	if err != nil {
		return nil, err
	}
	issues := config.Validate(*cfg)
	for _, iss := range issues {
		fmt.Fprintf(w, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return nil, exitError{code: 1, msg: "configuration is invalid"}
	}
	return cfg, nil
}

// newRegistry registers every supported source format.
func newRegistry(cfg *config.Config) *source.Registry {
	reg := source.NewRegistry()
	reg.Register(".sav", sav.Opener(sav.Options{
		IndexStride: cfg.Source.IndexStride,
		Encoding:    cfg.Source.SAVEncoding,
	}))
	reg.Register(".csv", srccsv.Opener(srccsv.Options{
		IndexStride: cfg.Source.IndexStride,
		Delimiter:   cfg.Source.CSVDelimiter,
		Encoding:    cfg.Source.CSVEncoding,
	}))
	return reg
}

// setupMetrics installs the configured metrics backend.
func setupMetrics(cfg *config.Config, log *slog.Logger) error {
	m := cfg.Metrics
	switch m.Backend {
	case "", "none":
		log.Debug("metrics disabled")
		return nil
	case "pushgateway":
		b, err := prompush.NewBackend(cfg.Job, m.PushgatewayURL)
		if err != nil {
			return err
		}
		metrics.SetBackend(b)
	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{Addr: m.StatsdAddr, Namespace: m.Namespace, GlobalTags: m.Tags})
		if err != nil {
			return err
		}
		metrics.SetBackend(b)
	default:
		return fmt.Errorf("metrics: unknown backend %q", m.Backend)
	}
	log.Info("metrics enabled", "backend", m.Backend, "job", cfg.Job)
	return nil
}

// pipeline holds everything a run needs.
type pipeline struct {
	runner *batch.Runner
	chunk  int
	close  func()
}

func buildPipeline(ctx context.Context, cfg *config.Config, log *slog.Logger) (*pipeline, error) {
	maxSize, err := cfg.MaxFileBytes()
	if err != nil {
		return nil, err
	}
	sc := storage.Config{Kind: cfg.Storage.Kind, DSN: cfg.Storage.DSN, Schema: cfg.Storage.Schema}
	repo, err := newRepositoryFn(ctx, sc)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", sc.Kind, err)
	}
	schemaName := sc.SchemaOrDefault()

	d := convert.New(
		newRegistry(cfg),
		storage.NewInspector(repo, schemaName),
		storage.NewAppender(repo, sc.Kind, schemaName),
		convert.Options{ChunkSize: cfg.ChunkSize, Job: cfg.Job, Logger: log},
	)
	r := batch.NewRunner(d, batch.Options{MaxFileSize: maxSize, Job: cfg.Job, Logger: log})
	return &pipeline{runner: r, chunk: d.ChunkSize(), close: repo.Close}, nil
}

func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	return logging.New(cfg.Logging.Level, cfg.Logging.Format, w)
}
