package convert

import "errors"

// Per-file failure classes. Result.Err wraps exactly one of these, plus the
// underlying cause, so callers can branch with errors.Is.
var (
	// ErrUnsupportedFormat means the path has no registered source
	// extension. It is reported before any I/O.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrSourceOpen means the source file could not be opened or parsed.
	ErrSourceOpen = errors.New("source open")

	// ErrSourceRead means a window could not be read from an open source.
	ErrSourceRead = errors.New("source read")

	// ErrStoreQuery means the destination table state could not be read.
	ErrStoreQuery = errors.New("store query")

	// ErrStoreWrite means a chunk append failed. The table may hold part of
	// the chunk; Result.TableRowsAfter has the re-queried count.
	ErrStoreWrite = errors.New("store write")

	// ErrDivergent means table and file row counts cannot be reconciled by
	// the chunking model. Nothing was written.
	ErrDivergent = errors.New("table and file diverged")

	// ErrTooLarge is the skip reason for files above the size limit.
	ErrTooLarge = errors.New("file too large")
)
