// Package source defines the row source contract used by the conversion
// driver and a small registry that maps file extensions to concrete readers.
//
// A Source reports its total row count up front and yields bounded windows of
// rows starting at an arbitrary row offset. Implementations must not
// materialize more than one window at a time: the files this package targets
// can be hundreds of gigabytes.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"savload/internal/schema"
)

var (
	// ErrNotFound is returned (wrapped) when the file does not exist.
	ErrNotFound = errors.New("source: file not found")
	// ErrFormat is returned (wrapped) when the file is corrupt or uses a
	// variant of the format the reader does not support.
	ErrFormat = errors.New("source: invalid format")
	// ErrUnsupported is returned (wrapped) when no reader is registered for
	// the file extension.
	ErrUnsupported = errors.New("source: unsupported file extension")
)

// Source is an opened, row-oriented data file.
type Source interface {
	// Columns returns the ordered column descriptions.
	Columns() []schema.Column

	// RowCount returns the total number of data rows in the file.
	RowCount() int64

	// ReadWindow returns up to limit rows starting at row offset (0-based).
	// Each row has len(Columns()) values. Reading at or past the end returns
	// a short or empty window and a nil error.
	ReadWindow(ctx context.Context, offset int64, limit int) ([][]any, error)

	// Close releases the underlying file.
	Close() error
}

// Fingerprinter is implemented by sources that can identify their file
// contents cheaply (typically by hashing header bytes).
type Fingerprinter interface {
	Fingerprint() uint64
}

// Opener opens the file at path.
type Opener func(path string) (Source, error)

// Registry maps lower-case file extensions (".sav") to openers.
// The zero value is not usable; call NewRegistry.
type Registry struct {
	mu      sync.RWMutex
	openers map[string]Opener
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{openers: map[string]Opener{}}
}

// Register installs (or replaces) the opener for ext. The extension is
// matched case-insensitively and may be given with or without the dot.
func (r *Registry) Register(ext string, open Opener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.openers[normExt(ext)] = open
}

// Extensions returns the registered extensions, sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.openers))
	for ext := range r.openers {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Supports reports whether a reader is registered for path's extension.
// It performs no I/O.
func (r *Registry) Supports(path string) bool {
	_, ok := r.lookup(path)
	return ok
}

// Open opens path with the reader registered for its extension.
func (r *Registry) Open(path string) (Source, error) {
	open, ok := r.lookup(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
	return open(path)
}

func (r *Registry) lookup(path string) (Opener, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	open, ok := r.openers[normExt(filepath.Ext(path))]
	return open, ok
}

func normExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// OpenFile opens path for reading and maps a missing file onto ErrNotFound.
// Readers use it so callers can rely on errors.Is(err, ErrNotFound).
func OpenFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("source: open %s: %w", path, err)
	}
	return f, nil
}

// CheckWindow validates ReadWindow arguments.
func CheckWindow(offset int64, limit int) error {
	if offset < 0 {
		return fmt.Errorf("source: negative offset %d", offset)
	}
	if limit <= 0 {
		return fmt.Errorf("source: limit must be > 0, got %d", limit)
	}
	return nil
}
