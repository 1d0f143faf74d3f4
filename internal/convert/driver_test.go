package convert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"savload/internal/schema"
	"savload/internal/source"
)

// memSource serves rows {i} for i in [0, rows). deliver caps the rows it
// will actually return, to simulate a header that overstates the count.
type memSource struct {
	rows    int64
	deliver int64
	readErr error
	closed  int
	reads   []int64
}

func (s *memSource) Columns() []schema.Column {
	return []schema.Column{{Name: "n", Kind: schema.KindFloat}}
}

func (s *memSource) RowCount() int64 { return s.rows }

func (s *memSource) ReadWindow(ctx context.Context, offset int64, limit int) ([][]any, error) {
	if err := source.CheckWindow(offset, limit); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.readErr != nil {
		return nil, s.readErr
	}
	s.reads = append(s.reads, offset)
	end := offset + int64(limit)
	if end > s.deliver {
		end = s.deliver
	}
	var out [][]any
	for i := offset; i < end; i++ {
		out = append(out, []any{float64(i)})
	}
	return out, nil
}

func (s *memSource) Close() error { s.closed++; return nil }

func (s *memSource) Fingerprint() uint64 { return 0xfeed }

type memOpener struct {
	src     *memSource
	openErr error
	opened  int
}

func (o *memOpener) Supports(path string) bool { return strings.HasSuffix(strings.ToLower(path), ".sav") }

func (o *memOpener) Open(path string) (source.Source, error) {
	o.opened++
	if o.openErr != nil {
		return nil, o.openErr
	}
	return o.src, nil
}

// memTable is both the Inspector and the Loader.
type memTable struct {
	rows      map[string][]float64
	appends   []int
	queries   int
	queryErr  func(call int) error
	appendErr func(call int, rows [][]any) (keep int, err error)
	onAppend  func()
}

func newMemTable() *memTable { return &memTable{rows: map[string][]float64{}} }

func (m *memTable) RowCount(ctx context.Context, table string) (int64, error) {
	m.queries++
	if m.queryErr != nil {
		if err := m.queryErr(m.queries); err != nil {
			return 0, err
		}
	}
	return int64(len(m.rows[table])), nil
}

func (m *memTable) Append(ctx context.Context, table string, cols []schema.Column, rows [][]any) (int64, error) {
	call := len(m.appends) + 1
	m.appends = append(m.appends, len(rows))
	if m.onAppend != nil {
		m.onAppend()
	}
	keep, err := len(rows), error(nil)
	if m.appendErr != nil {
		keep, err = m.appendErr(call, rows)
	}
	for _, r := range rows[:keep] {
		m.rows[table] = append(m.rows[table], r[0].(float64))
	}
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

func (m *memTable) assertContiguous(t *testing.T, table string, n int) {
	t.Helper()
	got := m.rows[table]
	require.Len(t, got, n)
	for i, v := range got {
		if v != float64(i) {
			t.Fatalf("row %d holds source row %v: duplicate or gap", i, v)
		}
	}
}

const testPath = `G:\Bevolking\GBASCHEIDINGENMASSATAB.sav`
const testTable = "GBASCHEIDINGENMASSA_"

func newTestDriver(src *memSource, tbl *memTable, chunk int) (*Driver, *memOpener) {
	op := &memOpener{src: src}
	return New(op, tbl, tbl, Options{ChunkSize: chunk}), op
}

func TestConvert_EndToEndChunking(t *testing.T) {
	t.Parallel()

	src := &memSource{rows: 2500, deliver: 2500}
	tbl := newMemTable()
	d, _ := newTestDriver(src, tbl, 1000)

	res := d.Convert(context.Background(), testPath)
	require.NoError(t, res.Err)
	assert.Equal(t, Completed, res.Outcome)
	assert.Equal(t, testTable, res.Table)
	assert.Equal(t, []int{1000, 1000, 500}, tbl.appends)
	assert.Equal(t, []int64{0, 1000, 2000}, src.reads)
	assert.Equal(t, int64(2500), res.TableRowsAfter)
	assert.Equal(t, int64(2500), res.RowsWritten)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, uint64(0xfeed), res.Fingerprint)
	assert.Equal(t, 1, src.closed)
	assert.Equal(t, 1, tbl.queries, "row count is queried once per file")
	tbl.assertContiguous(t, testTable, 2500)
}

func TestConvert_Idempotent(t *testing.T) {
	t.Parallel()

	src := &memSource{rows: 2500, deliver: 2500}
	tbl := newMemTable()
	d, _ := newTestDriver(src, tbl, 1000)

	first := d.Convert(context.Background(), testPath)
	require.Equal(t, Completed, first.Outcome)

	tbl.appends = nil
	second := d.Convert(context.Background(), testPath)
	require.NoError(t, second.Err)
	assert.Equal(t, AlreadyComplete, second.Outcome)
	assert.Empty(t, tbl.appends)
	assert.Equal(t, int64(2500), second.TableRowsBefore)
	assert.Equal(t, int64(2500), second.TableRowsAfter)
	tbl.assertContiguous(t, testTable, 2500)
}

func TestConvert_ResumesAfterFailure(t *testing.T) {
	t.Parallel()

	const chunk, total = 100, 550
	for n := 1; n < 6; n++ {
		t.Run(fmt.Sprintf("fail after %d chunks", n), func(t *testing.T) {
			t.Parallel()

			src := &memSource{rows: total, deliver: total}
			tbl := newMemTable()
			tbl.appendErr = func(call int, rows [][]any) (int, error) {
				if call == n+1 {
					return 0, errors.New("connection reset")
				}
				return len(rows), nil
			}
			d, _ := newTestDriver(src, tbl, chunk)

			res := d.Convert(context.Background(), testPath)
			require.Equal(t, Failed, res.Outcome)
			assert.True(t, errors.Is(res.Err, ErrStoreWrite))
			assert.Equal(t, int64(n*chunk), res.TableRowsAfter)
			assert.Equal(t, int64(n*chunk), res.RowsWritten)

			tbl.appendErr = nil
			tbl.appends = nil
			res = d.Convert(context.Background(), testPath)
			require.NoError(t, res.Err)
			assert.Equal(t, Completed, res.Outcome)
			assert.Equal(t, int64(n*chunk), res.TableRowsBefore)
			assert.Equal(t, int64(total-n*chunk), res.RowsWritten)
			tbl.assertContiguous(t, testTable, total)
		})
	}
}

func TestConvert_PartialWriteIsRequeried(t *testing.T) {
	t.Parallel()

	src := &memSource{rows: 2500, deliver: 2500}
	tbl := newMemTable()
	tbl.appendErr = func(call int, rows [][]any) (int, error) {
		if call == 2 {
			return 300, errors.New("disk full")
		}
		return len(rows), nil
	}
	d, _ := newTestDriver(src, tbl, 1000)

	res := d.Convert(context.Background(), testPath)
	require.Equal(t, Failed, res.Outcome)
	assert.True(t, errors.Is(res.Err, ErrStoreWrite))
	assert.Equal(t, int64(1300), res.TableRowsAfter, "count comes from the store, not from assumptions")
	assert.Equal(t, int64(1300), res.RowsWritten)

	// a table that ends mid-chunk with more than a chunk to go is flagged
	tbl.appendErr = nil
	tbl.appends = nil
	res = d.Convert(context.Background(), testPath)
	assert.Equal(t, Divergent, res.Outcome)
	assert.True(t, res.NeedsReview())
	assert.Empty(t, tbl.appends)
}

func TestConvert_RequeryFailure(t *testing.T) {
	t.Parallel()

	src := &memSource{rows: 10, deliver: 10}
	tbl := newMemTable()
	tbl.appendErr = func(int, [][]any) (int, error) { return 0, errors.New("write failed") }
	tbl.queryErr = func(call int) error {
		if call > 1 {
			return errors.New("connection lost")
		}
		return nil
	}
	d, _ := newTestDriver(src, tbl, 1000)

	res := d.Convert(context.Background(), testPath)
	assert.Equal(t, Failed, res.Outcome)
	assert.True(t, errors.Is(res.Err, ErrStoreWrite))
	assert.Equal(t, int64(-1), res.TableRowsAfter)
}

func TestConvert_Divergent(t *testing.T) {
	t.Parallel()

	const c = 1000
	src := &memSource{rows: c, deliver: c}
	tbl := newMemTable()
	tbl.rows[testTable] = make([]float64, c+5)
	d, _ := newTestDriver(src, tbl, c)

	res := d.Convert(context.Background(), testPath)
	assert.Equal(t, Divergent, res.Outcome)
	assert.True(t, errors.Is(res.Err, ErrDivergent))
	assert.Empty(t, tbl.appends)
	assert.Empty(t, src.reads)
	assert.Len(t, tbl.rows[testTable], c+5, "table left exactly as found")
	assert.Equal(t, 1, src.closed)
}

func TestConvert_EmptyWindowStops(t *testing.T) {
	t.Parallel()

	src := &memSource{rows: 2500, deliver: 1000}
	tbl := newMemTable()
	d, _ := newTestDriver(src, tbl, 1000)

	res := d.Convert(context.Background(), testPath)
	require.NoError(t, res.Err)
	assert.Equal(t, Completed, res.Outcome)
	assert.Equal(t, []int{1000}, tbl.appends)

	tbl.appends = nil
	res = d.Convert(context.Background(), testPath)
	assert.Equal(t, AlreadyComplete, res.Outcome)
	assert.Empty(t, tbl.appends)
}

func TestConvert_ShortWindowStops(t *testing.T) {
	t.Parallel()

	src := &memSource{rows: 3000, deliver: 1500}
	tbl := newMemTable()
	d, _ := newTestDriver(src, tbl, 1000)

	res := d.Convert(context.Background(), testPath)
	require.NoError(t, res.Err)
	assert.Equal(t, Completed, res.Outcome)
	assert.Equal(t, []int{1000, 500}, tbl.appends)
	assert.Equal(t, []int64{0, 1000}, src.reads, "no read after the short window")
	assert.Equal(t, int64(1500), res.RowsWritten)
	tbl.assertContiguous(t, testTable, 1500)

	// the table now ends mid-chunk with a full chunk still unread: a rerun
	// reports divergence and writes nothing
	tbl.appends = nil
	res = d.Convert(context.Background(), testPath)
	assert.Equal(t, Divergent, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrDivergent)
	assert.Equal(t, int64(0), res.RowsWritten)
	assert.Empty(t, tbl.appends)
	tbl.assertContiguous(t, testTable, 1500)
}

func TestConvert_EmptyFile(t *testing.T) {
	t.Parallel()

	src := &memSource{}
	tbl := newMemTable()
	d, _ := newTestDriver(src, tbl, 1000)

	res := d.Convert(context.Background(), testPath)
	assert.Equal(t, AlreadyComplete, res.Outcome)
	assert.Empty(t, src.reads)
	assert.Empty(t, tbl.appends)
}

func TestConvert_UnsupportedFormat(t *testing.T) {
	t.Parallel()

	src := &memSource{rows: 10, deliver: 10}
	tbl := newMemTable()
	d, op := newTestDriver(src, tbl, 1000)

	res := d.Convert(context.Background(), "/data/report.xlsx")
	assert.Equal(t, Failed, res.Outcome)
	assert.True(t, errors.Is(res.Err, ErrUnsupportedFormat))
	assert.Zero(t, op.opened)
	assert.Zero(t, tbl.queries, "store untouched")
}

func TestConvert_StoreQueryError(t *testing.T) {
	t.Parallel()

	src := &memSource{rows: 10, deliver: 10}
	tbl := newMemTable()
	tbl.queryErr = func(int) error { return errors.New("permission denied") }
	d, op := newTestDriver(src, tbl, 1000)

	res := d.Convert(context.Background(), testPath)
	assert.Equal(t, Failed, res.Outcome)
	assert.True(t, errors.Is(res.Err, ErrStoreQuery))
	assert.Zero(t, op.opened)
}

func TestConvert_SourceErrors(t *testing.T) {
	t.Parallel()

	t.Run("open", func(t *testing.T) {
		t.Parallel()
		tbl := newMemTable()
		op := &memOpener{openErr: fmt.Errorf("%w: bad magic", source.ErrFormat)}
		d := New(op, tbl, tbl, Options{ChunkSize: 10})

		res := d.Convert(context.Background(), testPath)
		assert.Equal(t, Failed, res.Outcome)
		assert.True(t, errors.Is(res.Err, ErrSourceOpen))
		assert.True(t, errors.Is(res.Err, source.ErrFormat))
	})

	t.Run("read", func(t *testing.T) {
		t.Parallel()
		src := &memSource{rows: 10, deliver: 10, readErr: errors.New("truncated")}
		tbl := newMemTable()
		d, _ := newTestDriver(src, tbl, 10)

		res := d.Convert(context.Background(), testPath)
		assert.Equal(t, Failed, res.Outcome)
		assert.True(t, errors.Is(res.Err, ErrSourceRead))
		assert.Equal(t, 1, src.closed)
		assert.Empty(t, tbl.appends)
	})
}

func TestConvert_CanceledBetweenChunks(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &memSource{rows: 2500, deliver: 2500}
	tbl := newMemTable()
	tbl.onAppend = cancel
	d, _ := newTestDriver(src, tbl, 1000)

	res := d.Convert(ctx, testPath)
	assert.Equal(t, Failed, res.Outcome)
	assert.True(t, res.Canceled())
	assert.Equal(t, []int{1000}, tbl.appends)
	assert.Equal(t, int64(1000), res.TableRowsAfter)
	assert.Equal(t, 1, src.closed)

	res = d.Convert(context.Background(), testPath)
	assert.Equal(t, Completed, res.Outcome)
	tbl.assertContiguous(t, testTable, 2500)
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	tbl := newMemTable()
	d := New(&memOpener{}, tbl, tbl, Options{})
	assert.Equal(t, DefaultChunkSize, d.ChunkSize())
	assert.Equal(t, "CITO_", d.name(`G:\Onderwijs\CITOTAB.sav`))
}
