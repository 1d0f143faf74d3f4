// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// The loader is a batch process, not a server, so instead of exposing a
// scrape endpoint the collected metrics are pushed to a Pushgateway when the
// run flushes. The job label is the Pushgateway grouping key; the remaining
// labels (status, outcome) become Prometheus labels.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"savload/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	chunkCounter  *prometheus.CounterVec // savload_chunks_total
	chunkDuration *prometheus.SummaryVec // savload_chunk_duration_seconds
	rowCounter    prometheus.Counter     // savload_rows_total
	fileCounter   *prometheus.CounterVec // savload_files_total
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name.
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "savload"
	}

	reg := prometheus.NewRegistry()

	chunkCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.ChunksTotal,
			Help: "Chunk append attempts, partitioned by status.",
		},
		[]string{"status"},
	)
	chunkDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       metrics.ChunkDurationSeconds,
			Help:       "Duration of chunk appends in seconds, partitioned by status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"status"},
	)
	rowCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Rows committed to destination tables.",
		},
	)
	fileCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.FilesTotal,
			Help: "Files processed, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	for name, c := range map[string]prometheus.Collector{
		"chunk counter": chunkCounter,
		"chunk summary": chunkDuration,
		"row counter":   rowCounter,
		"file counter":  fileCounter,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}

	return &Backend{
		gatewayURL:    gatewayURL,
		jobName:       jobName,
		reg:           reg,
		chunkCounter:  chunkCounter,
		chunkDuration: chunkDuration,
		rowCounter:    rowCounter,
		fileCounter:   fileCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.ChunksTotal:
		if b.chunkCounter == nil {
			return
		}
		b.chunkCounter.WithLabelValues(labels["status"]).Add(delta)

	case metrics.RowsTotal:
		if b.rowCounter == nil {
			return
		}
		b.rowCounter.Add(delta)

	case metrics.FilesTotal:
		if b.fileCounter == nil {
			return
		}
		b.fileCounter.WithLabelValues(labels["outcome"]).Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.ChunkDurationSeconds || b.chunkDuration == nil {
		return
	}
	b.chunkDuration.WithLabelValues(labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
