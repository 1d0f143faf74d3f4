// Package sav reads SPSS system files (.sav) as windowed row sources.
//
// Uncompressed files are read with true random access: the byte offset of
// any case is a function of its row number. Bytecode-compressed files have
// no such mapping, so the reader keeps a sparse index of decoder checkpoints
// (one every Options.IndexStride rows) and a live cursor. Sequential window
// reads, which is how the conversion driver consumes a file, continue from
// the cursor without seeking. A read at an arbitrary offset seeks to the
// nearest checkpoint at or before it and decodes forward.
//
// zlib-compressed files (.zsav) are rejected with source.ErrFormat.
package sav

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"savload/internal/schema"
	"savload/internal/source"
)

// DefaultIndexStride is the number of rows between decoder checkpoints.
const DefaultIndexStride = 65536

const ctxCheckEvery = 4096

// Options tunes the reader.
type Options struct {
	// IndexStride is the number of rows between checkpoints of
	// compressed files. Zero means DefaultIndexStride.
	IndexStride int
	// Encoding overrides the character encoding declared by the file
	// (IANA name, e.g. "windows-1252").
	Encoding string
}

// Opener returns a source.Opener bound to opts.
func Opener(opts Options) source.Opener {
	return func(path string) (source.Source, error) {
		return Open(path, opts)
	}
}

type checkpoint struct {
	row int64
	st  bcState
}

// Reader is an opened system file. It is not safe for concurrent use.
type Reader struct {
	f      *os.File
	size   int64
	dict   *dictionary
	cols   []schema.Column
	values valueDecoder
	rows   int64

	caseLen int64 // bytes per case
	stride  int64

	// compressed files only
	index  []checkpoint
	cur    *bytecode
	curRow int64
}

// Open opens and parses the file at path.
func Open(path string, opts Options) (*Reader, error) {
	f, err := source.OpenFile(path)
	if err != nil {
		return nil, err
	}
	r, err := newReader(f, opts)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: sav %s: %v", source.ErrFormat, path, err)
	}
	return r, nil
}

func newReader(f *os.File, opts Options) (*Reader, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	dict, err := readDictionary(io.NewSectionReader(f, 0, fi.Size()))
	if err != nil {
		return nil, err
	}

	stride := int64(opts.IndexStride)
	if stride <= 0 {
		stride = DefaultIndexStride
	}

	r := &Reader{
		f:       f,
		size:    fi.Size(),
		dict:    dict,
		caseLen: int64(dict.caseSlots) * slotLen,
		stride:  stride,
	}

	enc := dict.encoding
	if opts.Encoding != "" {
		enc = opts.Encoding
	}
	text := textDecoder(enc, dict.charCode)

	r.cols = make([]schema.Column, len(dict.vars))
	kinds := make([]schema.Kind, len(dict.vars))
	seen := make(map[string]int, len(dict.vars))
	for i, v := range dict.vars {
		name := v.name()
		if text != nil {
			if decoded, err := text.String(name); err == nil {
				name = decoded
			}
		}
		key := strings.ToLower(name)
		if n := seen[key]; n > 0 {
			name = fmt.Sprintf("%s_%d", name, n+1)
		}
		seen[key]++
		kinds[i] = columnKind(v)
		r.cols[i] = schema.Column{Name: name, Kind: kinds[i], Width: int(v.width), Label: v.label}
	}
	r.values = valueDecoder{order: dict.order, vars: dict.vars, kinds: kinds, text: text}

	switch dict.compression {
	case compressionNone:
		if dict.cases >= 0 {
			r.rows = int64(dict.cases)
		} else {
			r.rows = (r.size - dict.dataStart) / r.caseLen
		}
	case compressionBytecode:
		r.index = []checkpoint{{row: 0, st: bcState{pos: dict.dataStart, next: 8}}}
		if dict.cases >= 0 {
			r.rows = int64(dict.cases)
		} else if r.rows, err = r.scan(); err != nil {
			return nil, fmt.Errorf("count cases: %w", err)
		}
	}
	return r, nil
}

// scan decodes every case once to count them, filling the index on the way.
func (r *Reader) scan() (int64, error) {
	r.resetCursor(r.index[0])
	raw := make([]byte, r.caseLen)
	for {
		r.mark()
		ok, err := r.cur.readCase(raw)
		if err != nil {
			return 0, err
		}
		if !ok {
			return r.curRow, nil
		}
		r.curRow++
	}
}

// Columns implements source.Source.
func (r *Reader) Columns() []schema.Column { return r.cols }

// RowCount implements source.Source.
func (r *Reader) RowCount() int64 { return r.rows }

// Fingerprint hashes the header and dictionary bytes.
func (r *Reader) Fingerprint() uint64 { return r.dict.hash }

// Compressed reports whether the case data is bytecode-compressed.
func (r *Reader) Compressed() bool { return r.dict.compression == compressionBytecode }

// FileLabel returns the label stored in the file header.
func (r *Reader) FileLabel() string { return r.dict.fileLabel }

// Close implements source.Source.
func (r *Reader) Close() error { return r.f.Close() }

// ReadWindow implements source.Source.
func (r *Reader) ReadWindow(ctx context.Context, offset int64, limit int) ([][]any, error) {
	if err := source.CheckWindow(offset, limit); err != nil {
		return nil, err
	}
	if offset >= r.rows {
		return [][]any{}, nil
	}
	n := r.rows - offset
	if n > int64(limit) {
		n = int64(limit)
	}
	if r.dict.compression == compressionNone {
		return r.readPlain(ctx, offset, int(n))
	}
	return r.readCompressed(ctx, offset, int(n))
}

func (r *Reader) readPlain(ctx context.Context, offset int64, n int) ([][]any, error) {
	start := r.dict.dataStart + offset*r.caseLen
	sr := io.NewSectionReader(r.f, start, int64(n)*r.caseLen)
	buf := make([]byte, r.caseLen)
	rows := make([][]any, 0, n)
	for i := 0; i < n; i++ {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if _, err := io.ReadFull(sr, buf); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break // file shorter than its header claims
			}
			return nil, fmt.Errorf("sav: read case %d: %w", offset+int64(i), err)
		}
		row, err := r.values.decode(buf)
		if err != nil {
			return nil, fmt.Errorf("%w: sav: case %d: %v", source.ErrFormat, offset+int64(i), err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (r *Reader) readCompressed(ctx context.Context, offset int64, n int) ([][]any, error) {
	if err := r.seek(ctx, offset); err != nil {
		return nil, err
	}
	raw := make([]byte, r.caseLen)
	rows := make([][]any, 0, n)
	for i := 0; i < n; i++ {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		r.mark()
		ok, err := r.cur.readCase(raw)
		if err != nil {
			r.cur = nil
			return nil, fmt.Errorf("%w: sav: case %d: %v", source.ErrFormat, r.curRow, err)
		}
		if !ok {
			break
		}
		row, err := r.values.decode(raw)
		if err != nil {
			r.cur = nil
			return nil, fmt.Errorf("%w: sav: case %d: %v", source.ErrFormat, r.curRow, err)
		}
		r.curRow++
		rows = append(rows, row)
	}
	return rows, nil
}

// seek positions the cursor at row offset, reusing the live cursor when it
// is closer than the nearest checkpoint.
func (r *Reader) seek(ctx context.Context, offset int64) error {
	if r.cur != nil && r.curRow == offset {
		return nil
	}
	k := int(offset / r.stride)
	if k >= len(r.index) {
		k = len(r.index) - 1
	}
	cp := r.index[k]
	if r.cur == nil || r.curRow > offset || r.curRow < cp.row {
		r.resetCursor(cp)
	}

	raw := make([]byte, r.caseLen)
	for r.curRow < offset {
		if (offset-r.curRow)%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		r.mark()
		ok, err := r.cur.readCase(raw)
		if err != nil {
			r.cur = nil
			return fmt.Errorf("%w: sav: skip to case %d: %v", source.ErrFormat, offset, err)
		}
		if !ok {
			return nil
		}
		r.curRow++
	}
	return nil
}

func (r *Reader) resetCursor(cp checkpoint) {
	r.cur = newBytecode(r.f, r.size, r.dict.order, r.dict.bias, cp.st)
	r.curRow = cp.row
}

// mark records a checkpoint when the cursor sits on the next stride boundary.
func (r *Reader) mark() {
	if r.curRow%r.stride != 0 {
		return
	}
	if k := r.curRow / r.stride; k == int64(len(r.index)) {
		r.index = append(r.index, checkpoint{row: r.curRow, st: r.cur.st})
	}
}
