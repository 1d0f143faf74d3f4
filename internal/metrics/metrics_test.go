package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeBackend is a simple in-memory Backend implementation for tests.
type fakeBackend struct {
	mu sync.Mutex

	callsCounters   []counterCall
	callsHistograms []histCall
	flushCount      int
}

type counterCall struct {
	name   string
	delta  float64
	labels Labels
}

type histCall struct {
	name   string
	value  float64
	labels Labels
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callsCounters = append(f.callsCounters, counterCall{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callsHistograms = append(f.callsHistograms, histCall{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushCount++
	return nil
}

// install swaps in fb for the duration of the test. Tests using it must not
// run in parallel since the backend is process-global.
func install(t *testing.T, fb Backend) {
	t.Helper()
	orig := current()
	SetBackend(fb)
	t.Cleanup(func() { SetBackend(orig) })
}

func TestRecordChunk_SuccessAndFailure(t *testing.T) {
	fb := &fakeBackend{}
	install(t, fb)

	RecordChunk("nightly", 1000, nil, 2*time.Second)
	RecordChunk("nightly", 1000, errors.New("boom"), 1500*time.Millisecond)

	// success: chunk counter + rows counter; failure: chunk counter only
	if len(fb.callsCounters) != 3 {
		t.Fatalf("expected 3 counter calls, got %d: %#v", len(fb.callsCounters), fb.callsCounters)
	}
	if len(fb.callsHistograms) != 2 {
		t.Fatalf("expected 2 histogram calls, got %d", len(fb.callsHistograms))
	}

	cc0 := fb.callsCounters[0]
	if cc0.name != ChunksTotal || cc0.delta != 1 || cc0.labels["status"] != "success" {
		t.Fatalf("counter[0] = %#v; want %s success delta=1", cc0, ChunksTotal)
	}
	rows := fb.callsCounters[1]
	if rows.name != RowsTotal || rows.delta != 1000 || rows.labels["job"] != "nightly" {
		t.Fatalf("counter[1] = %#v; want %s delta=1000", rows, RowsTotal)
	}
	cc2 := fb.callsCounters[2]
	if cc2.name != ChunksTotal || cc2.labels["status"] != "failure" {
		t.Fatalf("counter[2] = %#v; want failure chunk", cc2)
	}

	h1 := fb.callsHistograms[1]
	if h1.name != ChunkDurationSeconds || h1.value != 1.5 {
		t.Fatalf("hist[1] = %#v; want %s 1.5", h1, ChunkDurationSeconds)
	}
}

func TestRecordOutcome(t *testing.T) {
	fb := &fakeBackend{}
	install(t, fb)

	RecordOutcome("nightly", "divergent")
	if len(fb.callsCounters) != 1 {
		t.Fatalf("expected 1 counter call, got %d", len(fb.callsCounters))
	}
	c := fb.callsCounters[0]
	if c.name != FilesTotal || c.labels["outcome"] != "divergent" || c.labels["job"] != "nightly" {
		t.Fatalf("counter = %#v", c)
	}
}

func TestSetBackendNilKeepsCurrent(t *testing.T) {
	fb := &fakeBackend{}
	install(t, fb)

	SetBackend(nil)
	if err := Flush(); err != nil {
		t.Fatalf("Flush error: %v", err)
	}
	if fb.flushCount != 1 {
		t.Fatalf("flushCount = %d, want 1", fb.flushCount)
	}
}

func TestNopBackendIsSafe(t *testing.T) {
	var b Backend = nopBackend{}
	b.IncCounter("x", 1, nil)
	b.ObserveHistogram("x", 1, nil)
	if err := b.Flush(); err != nil {
		t.Fatalf("nop Flush error: %v", err)
	}
}
