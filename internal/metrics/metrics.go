// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the loader.
//
// The package exposes a narrow interface (Backend) of counters and timing
// observations, and a global pluggable backend that defaults to a no-op. It
// mirrors the storage registry: the conversion driver and batch runner depend
// only on this package, while concrete systems (Prometheus Pushgateway,
// DogStatsD) live in subpackages.
package metrics

import (
	"sync"
	"time"
)

// Metric names emitted by the Record helpers.
const (
	ChunksTotal          = "savload_chunks_total"
	ChunkDurationSeconds = "savload_chunk_duration_seconds"
	RowsTotal            = "savload_rows_total"
	FilesTotal           = "savload_files_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordChunk counts one append attempt and its latency. Rows are counted
// only when the append succeeded.
func RecordChunk(job string, rows int, err error, d time.Duration) {
	b := current()
	lbls := Labels{"job": job, "status": status(err)}
	b.IncCounter(ChunksTotal, 1, lbls)
	b.ObserveHistogram(ChunkDurationSeconds, d.Seconds(), lbls)
	if err == nil && rows > 0 {
		b.IncCounter(RowsTotal, float64(rows), Labels{"job": job})
	}
}

// RecordOutcome counts one finished file by outcome, e.g. "completed",
// "already_complete", "divergent", "failed" or "skipped".
func RecordOutcome(job, outcome string) {
	current().IncCounter(FilesTotal, 1, Labels{"job": job, "outcome": outcome})
}
