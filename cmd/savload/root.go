package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "savload",
		Short: "Resumable bulk loader for SPSS .sav and CSV files",
		Long: `savload copies large row-oriented data files into relational tables one
chunk at a time. The destination table's row count is the checkpoint: a rerun
continues after the last committed chunk, and a file that is already loaded
is left alone.

Exit codes:
  0  every file converted (or skipped as too large)
  1  at least one file failed, was canceled, or the configuration is invalid`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "config file (YAML or JSON); SAVLOAD_* env vars override it")

	root.AddCommand(
		newRunCmd(),
		newNamesCmd(),
		newDescribeCmd(),
		newValidateCmd(),
		newTablesCmd(),
	)
	return root
}

func configPath(cmd *cobra.Command) string {
	p, _ := cmd.Flags().GetString("config")
	return p
}
