package datadog

import (
	"errors"
	"reflect"
	"testing"

	"savload/internal/metrics"
)

type call struct {
	kind  string
	name  string
	value float64
	tags  []string
}

type fakeClient struct {
	calls  []call
	closed int
	err    error
}

func (f *fakeClient) Count(name string, value int64, tags []string, rate float64) error {
	f.calls = append(f.calls, call{"count", name, float64(value), tags})
	return f.err
}

func (f *fakeClient) Histogram(name string, value float64, tags []string, rate float64) error {
	f.calls = append(f.calls, call{"histogram", name, value, tags})
	return f.err
}

func (f *fakeClient) Close() error {
	f.closed++
	return f.err
}

func TestNewBackend_RequiresAddr(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend(Config{}); err == nil {
		t.Fatalf("NewBackend with empty Addr: want error")
	}
}

func TestNewBackend_UDP(t *testing.T) {
	t.Parallel()

	b, err := NewBackend(Config{Addr: "127.0.0.1:8125", Namespace: "savload.", GlobalTags: []string{"env:test"}})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	b.IncCounter(metrics.ChunksTotal, 1, metrics.Labels{"status": "success"})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func TestBackend_ForwardsWithTags(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{}
	b := &Backend{client: fc}
	b.IncCounter(metrics.RowsTotal, 1000, metrics.Labels{"job": "nightly"})
	b.ObserveHistogram(metrics.ChunkDurationSeconds, 0.25, metrics.Labels{"status": "success", "job": "nightly"})

	want := []call{
		{"count", metrics.RowsTotal, 1000, []string{"job:nightly"}},
		{"histogram", metrics.ChunkDurationSeconds, 0.25, []string{"job:nightly", "status:success"}},
	}
	if !reflect.DeepEqual(fc.calls, want) {
		t.Fatalf("calls = %#v, want %#v", fc.calls, want)
	}
}

func TestBackend_FlushClosesClient(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{err: errors.New("closed")}
	b := &Backend{client: fc}
	if err := b.Flush(); err == nil {
		t.Fatalf("Flush: want client error")
	}
	if fc.closed != 1 {
		t.Fatalf("closed = %d, want 1", fc.closed)
	}
}

func TestBackend_NilClientIsNoop(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter("x", 1, nil)
	b.ObserveHistogram("x", 1, nil)
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func TestLabelsToTags(t *testing.T) {
	t.Parallel()

	if got := labelsToTags(nil); got != nil {
		t.Fatalf("labelsToTags(nil) = %#v, want nil", got)
	}
	got := labelsToTags(metrics.Labels{"outcome": "failed", "job": "a"})
	if want := []string{"job:a", "outcome:failed"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("labelsToTags = %#v, want %#v", got, want)
	}
}
