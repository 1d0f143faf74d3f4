// Package csv reads delimited text files as windowed row sources.
//
// One streaming pass at open time counts the records and remembers the byte
// offset of every IndexStride-th one, so a window at any row offset starts
// from the nearest indexed record instead of the top of the file. Parsing
// is done on raw bytes, which keeps offsets valid for seeking; a declared
// input encoding (which must be ASCII-compatible, e.g. windows-1252) is
// applied per field after parsing.
package csv

import (
	"bufio"
	"bytes"
	"context"
	stdcsv "encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zeebo/xxh3"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"

	"savload/internal/schema"
	"savload/internal/source"
)

// DefaultIndexStride is the number of records between indexed offsets.
const DefaultIndexStride = 65536

const ctxCheckEvery = 4096

var bom = []byte{0xEF, 0xBB, 0xBF}

// candidate delimiters for detection, in tie-break order.
var delimiters = []rune{',', ';', '\t', '|'}

// Options tunes the reader.
type Options struct {
	IndexStride int
	// Delimiter forces the field separator. Empty means detect from the
	// header line.
	Delimiter string
	// Encoding is the IANA name of the input encoding. Empty means UTF-8.
	Encoding string
}

// Opener returns a source.Opener bound to opts.
func Opener(opts Options) source.Opener {
	return func(path string) (source.Source, error) {
		return Open(path, opts)
	}
}

// Reader is an opened delimited file. It is not safe for concurrent use.
type Reader struct {
	f      *os.File
	size   int64
	cols   []schema.Column
	delim  rune
	text   *encoding.Decoder
	rows   int64
	stride int64
	index  []int64 // byte offset of record k*stride
	fp     uint64

	cur    *stdcsv.Reader
	curRow int64
}

// Open opens path and indexes it.
func Open(path string, opts Options) (*Reader, error) {
	f, err := source.OpenFile(path)
	if err != nil {
		return nil, err
	}
	r, err := newReader(f, opts)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: csv %s: %v", source.ErrFormat, path, err)
	}
	return r, nil
}

func newReader(f *os.File, opts Options) (*Reader, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	r := &Reader{f: f, size: fi.Size(), stride: int64(opts.IndexStride)}
	if r.stride <= 0 {
		r.stride = DefaultIndexStride
	}
	if r.text, err = decoderFor(opts.Encoding); err != nil {
		return nil, err
	}

	head := make([]byte, 64<<10)
	n, err := f.ReadAt(head, 0)
	if err != nil && err != io.EOF {
		return nil, err
	}
	head = head[:n]
	var start int64
	if bytes.HasPrefix(head, bom) {
		start = int64(len(bom))
		head = head[len(bom):]
	}
	if len(bytes.TrimSpace(head)) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	if opts.Delimiter != "" {
		d := []rune(opts.Delimiter)
		if len(d) != 1 {
			return nil, fmt.Errorf("delimiter %q must be a single character", opts.Delimiter)
		}
		r.delim = d[0]
	} else {
		r.delim = detectDelimiter(head)
	}

	cr := r.csvAt(start)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	headerEnd := start + cr.InputOffset()
	if r.cols, err = r.columns(header); err != nil {
		return nil, err
	}
	r.fp = r.fingerprint(start, headerEnd)

	// count records, remembering every stride-th offset
	for {
		if r.rows%r.stride == 0 {
			r.index = append(r.index, start+cr.InputOffset())
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", r.rows+1, err)
		}
		if len(rec) > len(r.cols) {
			return nil, fmt.Errorf("record %d has %d fields, header has %d", r.rows+1, len(rec), len(r.cols))
		}
		r.rows++
	}
	return r, nil
}

func (r *Reader) csvAt(off int64) *stdcsv.Reader {
	sr := io.NewSectionReader(r.f, off, r.size-off)
	cr := stdcsv.NewReader(bufio.NewReaderSize(sr, 256<<10))
	cr.Comma = r.delim
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	return cr
}

func (r *Reader) columns(header []string) ([]schema.Column, error) {
	cols := make([]schema.Column, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name, err := r.decode(strings.TrimSpace(h))
		if err != nil {
			return nil, fmt.Errorf("header field %d: %w", i+1, err)
		}
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		key := strings.ToLower(name)
		if n := seen[key]; n > 0 {
			name = fmt.Sprintf("%s_%d", name, n+1)
		}
		seen[key]++
		cols[i] = schema.Column{Name: name, Kind: schema.KindString}
	}
	return cols, nil
}

func (r *Reader) fingerprint(from, to int64) uint64 {
	b := make([]byte, to-from)
	if _, err := r.f.ReadAt(b, from); err != nil && err != io.EOF {
		return 0
	}
	return xxh3.Hash(b)
}

func (r *Reader) decode(s string) (string, error) {
	if r.text == nil || s == "" {
		return s, nil
	}
	return r.text.String(s)
}

// Columns implements source.Source.
func (r *Reader) Columns() []schema.Column { return r.cols }

// RowCount implements source.Source.
func (r *Reader) RowCount() int64 { return r.rows }

// Fingerprint hashes the raw header line.
func (r *Reader) Fingerprint() uint64 { return r.fp }

// Delimiter returns the field separator in use.
func (r *Reader) Delimiter() rune { return r.delim }

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
	if err := r.seek(ctx, offset); err != nil {
		return nil, err
	}

	n := r.rows - offset
	if n > int64(limit) {
		n = int64(limit)
	}
	rows := make([][]any, 0, n)
	for i := int64(0); i < n; i++ {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := r.cur.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			r.cur = nil
			return nil, fmt.Errorf("%w: csv: record %d: %v", source.ErrFormat, r.curRow+1, err)
		}
		row := make([]any, len(r.cols))
		for j, v := range rec {
			if j >= len(row) || v == "" {
				continue
			}
			if row[j], err = r.decode(v); err != nil {
				r.cur = nil
				return nil, fmt.Errorf("%w: csv: record %d field %d: %v", source.ErrFormat, r.curRow+1, j+1, err)
			}
		}
		r.curRow++
		rows = append(rows, row)
	}
	return rows, nil
}

func (r *Reader) seek(ctx context.Context, offset int64) error {
	if r.cur != nil && r.curRow == offset {
		return nil
	}
	k := offset / r.stride
	if r.cur == nil || r.curRow > offset || r.curRow < k*r.stride {
		r.cur = r.csvAt(r.index[k])
		r.curRow = k * r.stride
	}
	for r.curRow < offset {
		if (offset-r.curRow)%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if _, err := r.cur.Read(); err != nil {
			r.cur = nil
			return fmt.Errorf("%w: csv: skip to record %d: %v", source.ErrFormat, offset+1, err)
		}
		r.curRow++
	}
	return nil
}

// detectDelimiter picks the candidate that occurs most often outside quotes
// on the first line. Ties go to the earlier candidate; no hits means ','.
func detectDelimiter(b []byte) rune {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		b = b[:i]
	}
	counts := map[rune]int{}
	inQuote := false
	for _, c := range string(b) {
		if c == '"' {
			inQuote = !inQuote
			continue
		}
		if !inQuote {
			counts[c]++
		}
	}
	best, bestN := ',', 0
	for _, d := range delimiters {
		if counts[d] > bestN {
			best, bestN = d, counts[d]
		}
	}
	return best
}

func decoderFor(name string) (*encoding.Decoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("encoding %q is not supported", name)
	}
	return enc.NewDecoder(), nil
}
