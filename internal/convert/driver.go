package convert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"savload/internal/metrics"
	"savload/internal/schema"
	"savload/internal/source"
	"savload/internal/tablename"
)

// DefaultChunkSize is the number of rows per append.
const DefaultChunkSize = 1_000_000

// Opener opens row sources by path. *source.Registry implements it.
type Opener interface {
	Supports(path string) bool
	Open(path string) (source.Source, error)
}

// Inspector reports the destination row count, 0 for a missing table.
// *storage.Inspector implements it.
type Inspector interface {
	RowCount(ctx context.Context, table string) (int64, error)
}

// Loader appends one chunk as a single store operation. *storage.Appender
// implements it.
type Loader interface {
	Append(ctx context.Context, table string, cols []schema.Column, rows [][]any) (int64, error)
}

// Options configures a Driver. Zero values select defaults.
type Options struct {
	ChunkSize int
	// TableName maps a path onto a table name. Defaults to tablename.Derive.
	TableName func(path string) string
	// Job labels metrics.
	Job    string
	Logger *slog.Logger
}

// Driver converts files one at a time. It holds no per-file state and may be
// reused across files, but it must not run concurrently against one table.
type Driver struct {
	open    Opener
	inspect Inspector
	load    Loader

	chunk int
	name  func(string) string
	job   string
	log   *slog.Logger
}

// New returns a Driver wired to its collaborators.
func New(open Opener, inspect Inspector, load Loader, opts Options) *Driver {
	d := &Driver{
		open:    open,
		inspect: inspect,
		load:    load,
		chunk:   opts.ChunkSize,
		name:    opts.TableName,
		job:     opts.Job,
		log:     opts.Logger,
	}
	if d.chunk <= 0 {
		d.chunk = DefaultChunkSize
	}
	if d.name == nil {
		d.name = tablename.Derive
	}
	if d.job == "" {
		d.job = "savload"
	}
	if d.log == nil {
		d.log = slog.New(slog.DiscardHandler)
	}
	return d
}

// Supports reports whether path has a registered source format. It
// performs no I/O.
func (d *Driver) Supports(path string) bool { return d.open.Supports(path) }

// ChunkSize returns the effective chunk size.
func (d *Driver) ChunkSize() int { return d.chunk }

// Convert loads path into its table, resuming after the rows already there.
// Every failure is reported in the Result; Convert never panics on I/O.
func (d *Driver) Convert(ctx context.Context, path string) Result {
	start := time.Now()
	res := d.convert(ctx, path)
	res.Duration = time.Since(start)
	metrics.RecordOutcome(d.job, res.Outcome.String())
	return res
}

func (d *Driver) convert(ctx context.Context, path string) Result {
	res := Result{Path: path, TableRowsAfter: -1}
	if !d.open.Supports(path) {
		return fail(res, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path))
	}
	res.Table = d.name(path)
	log := d.log.With("table", res.Table)

	tableRows, err := d.inspect.RowCount(ctx, res.Table)
	if err != nil {
		return fail(res, fmt.Errorf("%w: %w", ErrStoreQuery, err))
	}
	res.TableRowsBefore = tableRows
	res.TableRowsAfter = tableRows

	src, err := d.open.Open(path)
	if err != nil {
		return fail(res, fmt.Errorf("%w: %w", ErrSourceOpen, err))
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			log.Warn("close source", "path", path, "err", cerr)
		}
	}()
	res.FileRows = src.RowCount()
	if fp, ok := src.(source.Fingerprinter); ok {
		res.Fingerprint = fp.Fingerprint()
	}
	cols := src.Columns()

	for {
		if err := ctx.Err(); err != nil {
			return fail(res, err)
		}
		step, err := Plan(tableRows, res.FileRows, d.chunk)
		if err != nil {
			return fail(res, err)
		}
		switch step.Decision {
		case Done:
			return finished(res)
		case Diverged:
			res.Outcome = Divergent
			res.Err = fmt.Errorf("%w: %s", ErrDivergent, step.Reason)
			return res
		}

		rows, err := src.ReadWindow(ctx, step.Offset, step.Limit)
		if err != nil {
			return fail(res, fmt.Errorf("%w: rows %d+%d: %w", ErrSourceRead, step.Offset, step.Limit, err))
		}
		if len(rows) == 0 {
			// the source reported more rows than it could deliver
			log.Warn("empty window before end of file", "offset", step.Offset, "file_rows", res.FileRows)
			return finished(res)
		}

		t0 := time.Now()
		_, err = d.load.Append(ctx, res.Table, cols, rows)
		elapsed := time.Since(t0)
		metrics.RecordChunk(d.job, len(rows), err, elapsed)
		if err != nil {
			res.TableRowsAfter = d.requery(ctx, res.Table, log)
			if res.TableRowsAfter >= 0 {
				res.RowsWritten = res.TableRowsAfter - res.TableRowsBefore
			}
			return fail(res, fmt.Errorf("%w: chunk %d: %w", ErrStoreWrite, step.State.ChunkIndex, err))
		}

		tableRows += int64(len(rows))
		res.TableRowsAfter = tableRows
		res.RowsWritten += int64(len(rows))
		res.Chunks++
		log.Info("chunk appended",
			"chunk", step.State.ChunkIndex,
			"rows", len(rows),
			"total", tableRows,
			"of", res.FileRows,
			"rps", rate(len(rows), elapsed))

		if len(rows) < step.Limit && tableRows < res.FileRows {
			// short window: the file ends before its reported row count
			log.Warn("short window before end of file",
				"offset", step.Offset, "rows", len(rows), "file_rows", res.FileRows)
			return finished(res)
		}
	}
}

// requery reads the row count after a failed write. It is not cancelable:
// a cancellation is a common cause of the failure being handled here.
func (d *Driver) requery(ctx context.Context, table string, log *slog.Logger) int64 {
	n, err := d.inspect.RowCount(context.WithoutCancel(ctx), table)
	if err != nil {
		log.Error("row count after failed write", "err", err)
		return -1
	}
	return n
}

func finished(res Result) Result {
	res.Outcome = Completed
	if res.Chunks == 0 {
		res.Outcome = AlreadyComplete
	}
	return res
}

func fail(res Result, err error) Result {
	res.Outcome = Failed
	res.Err = err
	return res
}

func rate(rows int, d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(float64(rows) / d.Seconds())
}
