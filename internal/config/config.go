// Package config defines the loader's configuration model and how it is
// read: defaults, then an optional YAML/JSON file, then SAVLOAD_* environment
// variables. A .env file in the working directory, when present, is loaded
// into the environment first.
//
// Example (YAML):
//
//	storage:
//	  kind: mssql
//	  dsn: sqlserver://user:pass@db:1433?database=stats
//	  schema: dbo
//	chunk_size: 1000000
//	max_file_size: 32GB
//	source:
//	  index_stride: 65536
//	metrics:
//	  backend: pushgateway
//	  pushgateway_url: http://pushgateway:9091
//
// Every key can be overridden from the environment, with dots replaced by
// underscores: SAVLOAD_STORAGE_DSN, SAVLOAD_CHUNK_SIZE.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SAVLOAD"

// Defaults.
const (
	DefaultJob         = "savload"
	DefaultChunkSize   = 1_000_000
	DefaultMaxFileSize = "32GB"
	DefaultIndexStride = 65536
)

// dotEnvFiles are loaded into the process environment before reading config.
// Missing files are ignored.
var dotEnvFiles = []string{".env"}

// Config is the complete runtime configuration.
type Config struct {
	// Job labels metrics and log lines.
	Job string `mapstructure:"job" yaml:"job"`

	Storage Storage `mapstructure:"storage" yaml:"storage"`

	// ChunkSize is the number of rows per append.
	ChunkSize int `mapstructure:"chunk_size" yaml:"chunk_size"`

	// MaxFileSize is a human-readable byte size ("32GB", "500 MiB"). Larger
	// files are skipped without being opened.
	MaxFileSize string `mapstructure:"max_file_size" yaml:"max_file_size"`

	Source  Source  `mapstructure:"source" yaml:"source"`
	Metrics Metrics `mapstructure:"metrics" yaml:"metrics"`
	Logging Logging `mapstructure:"logging" yaml:"logging"`
}

// Storage selects the destination database.
type Storage struct {
	// Kind is one of postgres, mssql, sqlite, mysql.
	Kind string `mapstructure:"kind" yaml:"kind"`
	// DSN is passed to the driver unchanged.
	DSN string `mapstructure:"dsn" yaml:"dsn"`
	// Schema qualifies table names. Empty selects the backend default.
	Schema string `mapstructure:"schema" yaml:"schema"`
}

// Source tunes the row readers.
type Source struct {
	IndexStride int `mapstructure:"index_stride" yaml:"index_stride"`
	// CSVDelimiter forces the CSV field separator; empty means detect.
	CSVDelimiter string `mapstructure:"csv_delimiter" yaml:"csv_delimiter"`
	// CSVEncoding is the IANA name of the CSV input encoding; empty means UTF-8.
	CSVEncoding string `mapstructure:"csv_encoding" yaml:"csv_encoding"`
	// SAVEncoding overrides the encoding declared inside .sav files.
	SAVEncoding string `mapstructure:"sav_encoding" yaml:"sav_encoding"`
}

// Metrics selects a metrics backend.
type Metrics struct {
	// Backend is one of none, pushgateway, datadog.
	Backend        string   `mapstructure:"backend" yaml:"backend"`
	PushgatewayURL string   `mapstructure:"pushgateway_url" yaml:"pushgateway_url"`
	StatsdAddr     string   `mapstructure:"statsd_addr" yaml:"statsd_addr"`
	Namespace      string   `mapstructure:"namespace" yaml:"namespace"`
	Tags           []string `mapstructure:"tags" yaml:"tags"`
}

// Logging configures the slog handler.
type Logging struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MaxFileBytes parses MaxFileSize.
func (c Config) MaxFileBytes() (int64, error) {
	n, err := humanize.ParseBytes(c.MaxFileSize)
	if err != nil {
		return 0, fmt.Errorf("max_file_size %q: %w", c.MaxFileSize, err)
	}
	if n > 1<<62 {
		return 0, fmt.Errorf("max_file_size %q is out of range", c.MaxFileSize)
	}
	return int64(n), nil
}

// Load reads configuration from path (optional) and the environment. It does
// not validate; call Validate on the result.
func Load(path string) (*Config, error) {
	for _, f := range dotEnvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key. AutomaticEnv only overrides keys viper
// knows about, so keys without a meaningful default are registered empty.
func setDefaults(v *viper.Viper) {
	v.SetDefault("job", DefaultJob)

	v.SetDefault("storage.kind", "")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.schema", "")

	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("max_file_size", DefaultMaxFileSize)

	v.SetDefault("source.index_stride", DefaultIndexStride)
	v.SetDefault("source.csv_delimiter", "")
	v.SetDefault("source.csv_encoding", "")
	v.SetDefault("source.sav_encoding", "")

	v.SetDefault("metrics.backend", "none")
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.statsd_addr", "")
	v.SetDefault("metrics.namespace", "")
	v.SetDefault("metrics.tags", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}
