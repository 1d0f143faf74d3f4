package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"savload/internal/source"
	"savload/internal/tablename"
)

// fileMeta is the describe output for one file.
type fileMeta struct {
	Path        string       `yaml:"path"`
	Table       string       `yaml:"table"`
	Rows        int64        `yaml:"rows"`
	Fingerprint string       `yaml:"fingerprint,omitempty"`
	Columns     []columnMeta `yaml:"columns"`
}

type columnMeta struct {
	Name  string `yaml:"name"`
	Kind  string `yaml:"kind"`
	Width int    `yaml:"width,omitempty"`
	Label string `yaml:"label,omitempty"`
}

func newDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe FILE...",
		Short: "Print row count and columns of data files as YAML",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfigFn(configPath(cmd))
			if err != nil {
				return err
			}
			reg := newRegistry(cfg)
			metas := make([]fileMeta, 0, len(args))
			for _, p := range args {
				m, err := describeFile(reg, p)
				if err != nil {
					return err
				}
				metas = append(metas, m)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(metas); err != nil {
				return fmt.Errorf("encode yaml: %w", err)
			}
			return enc.Close()
		},
	}
}

func describeFile(reg *source.Registry, path string) (fileMeta, error) {
	src, err := reg.Open(path)
	if err != nil {
		return fileMeta{}, err
	}
	defer src.Close()

	m := fileMeta{Path: path, Table: tablename.Derive(path), Rows: src.RowCount()}
	if fp, ok := src.(source.Fingerprinter); ok {
		m.Fingerprint = fmt.Sprintf("%016x", fp.Fingerprint())
	}
	for _, c := range src.Columns() {
		m.Columns = append(m.Columns, columnMeta{Name: c.Name, Kind: string(c.Kind), Width: c.Width, Label: c.Label})
	}
	return m, nil
}
