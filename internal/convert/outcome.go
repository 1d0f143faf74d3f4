package convert

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Outcome is the per-file result class.
type Outcome int

const (
	// Completed means rows were appended and the file is now fully loaded.
	Completed Outcome = iota
	// AlreadyComplete means the table already held every row; nothing was written.
	AlreadyComplete
	// Divergent means the counts disagree and the file needs manual review.
	Divergent
	// Failed means the file could not be loaded this run.
	Failed
	// Skipped means the file was not attempted (too large).
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case AlreadyComplete:
		return "already_complete"
	case Divergent:
		return "divergent"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Succeeded reports whether the table holds the whole file.
func (o Outcome) Succeeded() bool { return o == Completed || o == AlreadyComplete }

// Result describes what happened to one file.
type Result struct {
	Path  string
	Table string

	Outcome Outcome
	Err     error

	FileRows        int64
	TableRowsBefore int64
	// TableRowsAfter is the row count at the end of the run, or -1 when it
	// could not be determined after a failed write.
	TableRowsAfter int64
	Chunks         int
	RowsWritten    int64

	Size        int64  // bytes; filled by the batch runner
	Fingerprint uint64 // zero when the source does not provide one
	Duration    time.Duration
}

// NeedsReview reports whether an operator has to look at the file.
func (r Result) NeedsReview() bool { return r.Outcome == Divergent }

// Canceled reports whether the result failed because ctx was canceled or
// timed out.
func (r Result) Canceled() bool {
	return r.Outcome == Failed &&
		(errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, context.DeadlineExceeded))
}
