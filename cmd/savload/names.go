package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"savload/internal/batch"
	"savload/internal/tablename"
)

func newNamesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "names LIST",
		Short: "Show the table name each listed file will load into",
		Long: `Show, for every file in LIST, its size and the table name it maps to.
Files above max_file_size are marked; nothing is opened or written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfigFn(configPath(cmd))
			if err != nil {
				return err
			}
			maxSize, err := cfg.MaxFileBytes()
			if err != nil {
				return err
			}
			paths, err := batch.ReadList(args[0])
			if err != nil {
				return err
			}
			renderNames(cmd.OutOrStdout(), paths, maxSize, newRegistry(cfg).Supports)
			return nil
		},
	}
}

// nameRow is one line of the names report.
type nameRow struct {
	path  string
	size  int64
	table string
	note  string
}

func proposeNames(paths []string, maxSize int64, supported func(string) bool) (rows []nameRow, tooLarge int) {
	for _, p := range paths {
		r := nameRow{path: p, table: tablename.Derive(p), size: -1}
		fi, err := os.Stat(p)
		switch {
		case err != nil:
			r.note = "not found"
		case !supported(p):
			r.size = fi.Size()
			r.note = "unsupported format"
		case maxSize > 0 && fi.Size() > maxSize:
			r.size = fi.Size()
			r.note = "too large"
			tooLarge++
		default:
			r.size = fi.Size()
		}
		rows = append(rows, r)
	}
	return rows, tooLarge
}

func renderNames(w io.Writer, paths []string, maxSize int64, supported func(string) bool) {
	rows, tooLarge := proposeNames(paths, maxSize, supported)

	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Format.Footer = text.FormatDefault
	tbl.AppendHeader(table.Row{"#", "Size", "Table", "Path", "Note"})
	tbl.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	for i, r := range rows {
		size := "-"
		if r.size >= 0 {
			size = humanize.Bytes(uint64(r.size))
		}
		tbl.AppendRow(table.Row{i + 1, size, r.table, r.path, r.note})
	}
	tbl.AppendFooter(table.Row{"", "", fmt.Sprintf("%d files", len(rows)), "",
		fmt.Sprintf("%d over %s", tooLarge, humanize.Bytes(uint64(max(maxSize, 0))))})
	tbl.Render()
}

