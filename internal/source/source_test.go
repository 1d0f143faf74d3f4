package source

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"savload/internal/schema"
)

type stubSource struct{ path string }

func (s *stubSource) Columns() []schema.Column { return nil }
func (s *stubSource) RowCount() int64          { return 0 }
func (s *stubSource) ReadWindow(context.Context, int64, int) ([][]any, error) {
	return nil, nil
}
func (s *stubSource) Close() error { return nil }

func TestRegistry_SupportsCaseInsensitive(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("sav", func(path string) (Source, error) { return &stubSource{path: path}, nil })

	assert.True(t, r.Supports("a/b/FILE.sav"))
	assert.True(t, r.Supports(`G:\x\FILE.SAV`))
	assert.True(t, r.Supports("file.Sav"))
	assert.False(t, r.Supports("file.csv"))
	assert.False(t, r.Supports("file"))
	assert.Equal(t, []string{".sav"}, r.Extensions())
}

func TestRegistry_OpenDispatches(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(".csv", func(path string) (Source, error) { return &stubSource{path: path}, nil })

	src, err := r.Open("x/data.CSV")
	require.NoError(t, err)
	assert.Equal(t, "x/data.CSV", src.(*stubSource).path)

	_, err = r.Open("x/data.sav")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestOpenFile_NotFound(t *testing.T) {
	t.Parallel()

	_, err := OpenFile(filepath.Join(t.TempDir(), "missing.sav"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCheckWindow(t *testing.T) {
	t.Parallel()

	assert.NoError(t, CheckWindow(0, 1))
	assert.NoError(t, CheckWindow(10, 1000))
	assert.Error(t, CheckWindow(-1, 10))
	assert.Error(t, CheckWindow(0, 0))
}
