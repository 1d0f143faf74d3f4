package config

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/ianaindex"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that should be surfaced to users but
	// does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "storage.kind").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var (
	knownStorage = map[string]struct{}{"postgres": {}, "mssql": {}, "sqlite": {}, "mysql": {}}
	knownLevels  = map[string]struct{}{"debug": {}, "info": {}, "warn": {}, "error": {}}
	knownFormats = map[string]struct{}{"text": {}, "json": {}}
)

// largeChunk is the chunk size above which a warning about memory is issued.
const largeChunk = 10_000_000

// Validate performs static checks over cfg. It does not mutate it.
func Validate(cfg Config) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(cfg.Job) == "" {
		add(SeverityWarning, "job", "job is empty; metrics will be labeled %q", DefaultJob)
	}

	issues = append(issues, validateStorage(cfg.Storage)...)

	switch {
	case cfg.ChunkSize <= 0:
		add(SeverityError, "chunk_size", "chunk_size must be positive, got %d", cfg.ChunkSize)
	case cfg.ChunkSize > largeChunk:
		add(SeverityWarning, "chunk_size", "chunk_size %d keeps that many rows in memory per append", cfg.ChunkSize)
	}

	if n, err := cfg.MaxFileBytes(); err != nil {
		add(SeverityError, "max_file_size", "%v", err)
	} else if n == 0 {
		add(SeverityError, "max_file_size", "max_file_size must be positive; every file would be skipped")
	}

	issues = append(issues, validateSource(cfg.Source)...)
	issues = append(issues, validateMetrics(cfg.Metrics)...)

	if _, ok := knownLevels[strings.ToLower(cfg.Logging.Level)]; !ok {
		add(SeverityError, "logging.level", "unknown level %q; want debug, info, warn or error", cfg.Logging.Level)
	}
	if _, ok := knownFormats[strings.ToLower(cfg.Logging.Format)]; !ok {
		add(SeverityError, "logging.format", "unknown format %q; want text or json", cfg.Logging.Format)
	}
	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue
	if strings.TrimSpace(s.Kind) == "" {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
	}
	if _, ok := knownStorage[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; want postgres, mssql, sqlite or mysql", s.Kind),
		})
	}
	if strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.dsn",
			Message:  fmt.Sprintf("%s storage requires a dsn", s.Kind),
		})
	}
	if s.Kind == "sqlite" && s.Schema != "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.schema",
			Message:  fmt.Sprintf("sqlite schema %q must name an attached database", s.Schema),
		})
	}
	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue
	if s.IndexStride <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.index_stride",
			Message:  fmt.Sprintf("index_stride must be positive, got %d", s.IndexStride),
		})
	}
	if s.CSVDelimiter != "" && utf8.RuneCountInString(s.CSVDelimiter) != 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.csv_delimiter",
			Message:  fmt.Sprintf("csv_delimiter %q must be a single character", s.CSVDelimiter),
		})
	}
	for _, e := range []struct{ path, name string }{
		{"source.csv_encoding", s.CSVEncoding},
		{"source.sav_encoding", s.SAVEncoding},
	} {
		if e.name == "" {
			continue
		}
		if enc, err := ianaindex.IANA.Encoding(e.name); err != nil || enc == nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     e.path,
				Message:  fmt.Sprintf("unsupported encoding %q", e.name),
			})
		}
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "", "none":
	case "pushgateway":
		if m.PushgatewayURL == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  "pushgateway backend requires pushgateway_url",
			})
		}
	case "datadog":
		if m.StatsdAddr == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.statsd_addr",
				Message:  "datadog backend requires statsd_addr",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; want none, pushgateway or datadog", m.Backend),
		})
	}
	return issues
}
