package main

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"savload/internal/storage"
)

func newTablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List destination tables and their row counts",
		Long: `List the tables in the configured storage schema with their row counts.
The row count is the resume checkpoint; use it to review files reported as
divergent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath(cmd), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			sc := storage.Config{Kind: cfg.Storage.Kind, DSN: cfg.Storage.DSN, Schema: cfg.Storage.Schema}
			repo, err := newRepositoryFn(cmd.Context(), sc)
			if err != nil {
				return fmt.Errorf("connect %s: %w", sc.Kind, err)
			}
			defer repo.Close()
			return listTables(cmd.Context(), cmd.OutOrStdout(), repo, sc.SchemaOrDefault())
		},
	}
}

func listTables(ctx context.Context, w io.Writer, repo storage.Repository, schemaName string) error {
	names, err := storage.ListTables(ctx, repo, schemaName)
	if err != nil {
		return err
	}
	inspector := storage.NewInspector(repo, schemaName)

	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Format.Footer = text.FormatDefault
	tbl.AppendHeader(table.Row{"Table", "Rows"})
	tbl.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	var total int64
	for _, name := range names {
		n, err := inspector.RowCount(ctx, name)
		if err != nil {
			return err
		}
		total += n
		tbl.AppendRow(table.Row{name, humanize.Comma(n)})
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("%d tables", len(names)), humanize.Comma(total)})
	tbl.Render()
	return nil
}
