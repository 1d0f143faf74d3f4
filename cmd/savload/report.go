package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"savload/internal/batch"
	"savload/internal/convert"
)

// renderTotals prints one row per file and the run counters.
func renderTotals(w io.Writer, tot batch.Totals) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Format.Footer = text.FormatDefault
	tbl.AppendHeader(table.Row{"Table", "Outcome", "Written", "Table rows", "File rows", "Size", "Time", "Detail"})
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 8, WidthMax: 60},
	})
	for _, res := range tot.Results {
		tbl.AppendRow(table.Row{
			tableOrPath(res),
			res.Outcome.String(),
			humanize.Comma(res.RowsWritten),
			tableRows(res.TableRowsAfter),
			humanize.Comma(res.FileRows),
			humanize.Bytes(uint64(max(res.Size, 0))),
			res.Duration.Round(time.Millisecond).String(),
			detail(res),
		})
	}
	tbl.AppendFooter(table.Row{
		fmt.Sprintf("converted %d", tot.Converted),
		fmt.Sprintf("failed %d", tot.Failed),
		fmt.Sprintf("skipped %d", tot.Skipped),
		fmt.Sprintf("review %d", tot.NeedsReview),
		fmt.Sprintf("canceled %d", tot.Canceled),
	})
	tbl.Render()
}

func tableOrPath(res convert.Result) string {
	if res.Table != "" {
		return res.Table
	}
	return res.Path
}

func tableRows(n int64) string {
	if n < 0 {
		return "?"
	}
	return humanize.Comma(n)
}

func detail(res convert.Result) string {
	if res.Err == nil {
		return ""
	}
	return res.Err.Error()
}
