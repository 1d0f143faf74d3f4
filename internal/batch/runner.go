// Package batch runs the conversion driver over an ordered list of files.
//
// Each file is gated on its size before anything opens it, converted, and
// tallied. A failing file never stops the batch; only cancellation does.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"savload/internal/convert"
	"savload/internal/metrics"
)

// statFn is a test hook for the size gate.
var statFn = os.Stat

// Converter converts one file. *convert.Driver implements it.
type Converter interface {
	Convert(ctx context.Context, path string) convert.Result
}

// formatChecker is implemented by converters that can reject a path by its
// extension alone. *convert.Driver implements it.
type formatChecker interface {
	Supports(path string) bool
}

// Totals are the run counters. Results holds one entry per attempted path,
// in input order.
type Totals struct {
	Converted   int
	Failed      int
	Skipped     int
	NeedsReview int
	Canceled    int

	Results []convert.Result
}

// OK reports whether the run had no failures and was not canceled.
func (t Totals) OK() bool { return t.Failed == 0 && t.Canceled == 0 }

func (t *Totals) add(res convert.Result) {
	t.Results = append(t.Results, res)
	switch {
	case res.Outcome.Succeeded():
		t.Converted++
	case res.Outcome == convert.Skipped:
		t.Skipped++
	case res.NeedsReview():
		t.NeedsReview++
	case res.Canceled():
		t.Canceled++
	default:
		t.Failed++
	}
}

// Options configures a Runner.
type Options struct {
	// MaxFileSize is the largest file, in bytes, that is attempted.
	// Zero or negative disables the gate.
	MaxFileSize int64
	Job         string
	Logger      *slog.Logger
}

// Runner processes file lists sequentially.
type Runner struct {
	conv    Converter
	maxSize int64
	job     string
	log     *slog.Logger
}

// NewRunner returns a Runner that hands accepted files to conv.
func NewRunner(conv Converter, opts Options) *Runner {
	r := &Runner{conv: conv, maxSize: opts.MaxFileSize, job: opts.Job, log: opts.Logger}
	if r.job == "" {
		r.job = "savload"
	}
	if r.log == nil {
		r.log = slog.New(slog.DiscardHandler)
	}
	return r
}

// Run processes paths in order. When ctx is canceled the file in progress
// stops at its next chunk boundary and the remaining paths are not counted.
func (r *Runner) Run(ctx context.Context, paths []string) Totals {
	var t Totals
	for i, path := range paths {
		if ctx.Err() != nil {
			r.log.Warn("run canceled", "remaining", len(paths)-i)
			break
		}
		res := r.one(ctx, path)
		t.add(res)
		r.report(i+1, len(paths), res)
	}
	r.log.Info("run finished",
		"converted", t.Converted,
		"failed", t.Failed,
		"skipped", t.Skipped,
		"needs_review", t.NeedsReview,
		"canceled", t.Canceled)
	return t
}

func (r *Runner) one(ctx context.Context, path string) convert.Result {
	if fc, ok := r.conv.(formatChecker); ok && !fc.Supports(path) {
		// rejected by the converter before any I/O
		return r.conv.Convert(ctx, path)
	}
	fi, err := statFn(path)
	if err != nil {
		return convert.Result{Path: path, Outcome: convert.Failed, TableRowsAfter: -1,
			Err: fmt.Errorf("%w: %w", convert.ErrSourceOpen, err)}
	}
	if r.maxSize > 0 && fi.Size() > r.maxSize {
		metrics.RecordOutcome(r.job, convert.Skipped.String())
		return convert.Result{Path: path, Outcome: convert.Skipped, Size: fi.Size(), TableRowsAfter: -1,
			Err: fmt.Errorf("%w: %s exceeds %s", convert.ErrTooLarge,
				humanize.Bytes(uint64(fi.Size())), humanize.Bytes(uint64(r.maxSize)))}
	}
	res := r.conv.Convert(ctx, path)
	res.Size = fi.Size()
	return res
}

// report writes the one-line status for a finished file.
func (r *Runner) report(n, of int, res convert.Result) {
	attrs := []any{
		"n", fmt.Sprintf("%d/%d", n, of),
		"path", res.Path,
		"table", res.Table,
		"outcome", res.Outcome.String(),
		"rows_written", res.RowsWritten,
		"table_rows", res.TableRowsAfter,
		"file_rows", res.FileRows,
	}
	switch res.Outcome {
	case convert.Completed, convert.AlreadyComplete:
		r.log.Info("file done", attrs...)
	case convert.Skipped, convert.Divergent:
		r.log.Warn("file not loaded", append(attrs, "reason", res.Err)...)
	default:
		r.log.Error("file failed", append(attrs, "err", res.Err)...)
	}
}
