package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"savload/internal/tablename"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func csvRows(n int) string {
	var b strings.Builder
	b.WriteString("id,name\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%d,name-%d\n", i, i)
	}
	return b.String()
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func sqliteConfig(t *testing.T, dir string) string {
	t.Helper()
	return writeTemp(t, dir, "savload.yaml", fmt.Sprintf(`job: cli-test
storage:
  kind: sqlite
  dsn: %s
chunk_size: 40
max_file_size: 1MB
logging:
  level: error
`, filepath.Join(dir, "target.db")))
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()

	out, _, err := execute(t, "validate", "-c", sqliteConfig(t, dir))
	require.NoError(t, err)
	assert.Contains(t, out, "configuration is valid")

	bad := writeTemp(t, dir, "bad.yaml", "storage:\n  kind: oracle\nchunk_size: 0\n")
	_, errOut, err := execute(t, "validate", "-c", bad)
	require.Error(t, err)
	var ee exitError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 1, ee.code)
	assert.Contains(t, errOut, "storage.kind")
	assert.Contains(t, errOut, "chunk_size")
}

func TestNames(t *testing.T) {
	dir := t.TempDir()
	small := writeTemp(t, dir, "1407 10 Huishoudens TAB 2013.csv", csvRows(3))
	big := writeTemp(t, dir, "big.csv", csvRows(200))
	missing := filepath.Join(dir, "gone.sav")
	sheet := writeTemp(t, dir, "sheet.xlsx", "PK")
	list := writeTemp(t, dir, "list.txt", strings.Join([]string{"# inputs", small, big, missing, sheet}, "\n"))
	cfg := writeTemp(t, dir, "names.yaml", "max_file_size: 1KB\n")

	out, _, err := execute(t, "names", list, "-c", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, tablename.Derive(small))
	assert.Contains(t, out, tablename.Derive(big))
	assert.Contains(t, out, "too large")
	assert.Contains(t, out, "not found")
	assert.Contains(t, out, "unsupported format")
	assert.Contains(t, out, "4 files")
}

func TestProposeNames(t *testing.T) {
	dir := t.TempDir()
	a := writeTemp(t, dir, "a.csv", csvRows(1))
	b := writeTemp(t, dir, "b.csv", csvRows(100))

	all := func(string) bool { return true }
	rows, tooLarge := proposeNames([]string{a, b}, 0, all)
	assert.Equal(t, 0, tooLarge, "zero limit disables the size gate")
	require.Len(t, rows, 2)
	assert.Empty(t, rows[1].note)

	rows, tooLarge = proposeNames([]string{a, b}, 100, all)
	assert.Equal(t, 1, tooLarge)
	assert.Equal(t, "too large", rows[1].note)
	assert.Greater(t, rows[1].size, int64(100))
}

func TestDescribe(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "people.csv", "id;name\n1;Ann\n2;Bo\n")

	out, _, err := execute(t, "describe", path)
	require.NoError(t, err)

	var got []fileMeta
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, path, got[0].Path)
	assert.Equal(t, tablename.Derive(path), got[0].Table)
	assert.Equal(t, int64(2), got[0].Rows)
	assert.NotEmpty(t, got[0].Fingerprint)
	assert.Equal(t, []columnMeta{{Name: "id", Kind: "string"}, {Name: "name", Kind: "string"}}, got[0].Columns)

	_, _, err = execute(t, "describe", filepath.Join(dir, "data.xlsx"))
	require.Error(t, err)
}

func TestRun_SQLite(t *testing.T) {
	dir := t.TempDir()
	cfg := sqliteConfig(t, dir)
	data := writeTemp(t, dir, "personen 2020.csv", csvRows(100))
	list := writeTemp(t, dir, "list.txt", data+"\n")

	out, _, err := execute(t, "run", list, "-c", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "converted 1")

	out, _, err = execute(t, "run", list, "-c", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "already_complete")
}

func TestTables(t *testing.T) {
	dir := t.TempDir()
	cfg := sqliteConfig(t, dir)

	out, _, err := execute(t, "tables", "-c", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "0 tables")

	data := writeTemp(t, dir, "personen 2020.csv", csvRows(1234))
	list := writeTemp(t, dir, "list.txt", data+"\n")
	_, _, err = execute(t, "run", list, "-c", cfg)
	require.NoError(t, err)

	out, _, err = execute(t, "tables", "-c", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, tablename.Derive(data))
	assert.Contains(t, out, "1,234")
	assert.Contains(t, out, "1 tables")
}

func TestRun_FailureExitCode(t *testing.T) {
	dir := t.TempDir()
	cfg := sqliteConfig(t, dir)
	list := writeTemp(t, dir, "list.txt", filepath.Join(dir, "missing.csv")+"\n")

	out, _, err := execute(t, "run", list, "-c", cfg)
	require.Error(t, err)
	var ee exitError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 1, ee.code)
	assert.Contains(t, out, "failed 1")
}
