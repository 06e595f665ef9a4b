// Package config loads the scan client configuration from a YAML file with
// environment variable overrides for deploy-time settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Cluster    ClusterConfig    `yaml:"cluster"`
	Scan       ScanConfig       `yaml:"scan"`
	Export     ExportConfig     `yaml:"export"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ClusterConfig names the cluster and how to reach it.
type ClusterConfig struct {
	// MetaEndpoint is the base URL of the meta service, e.g.
	// "http://meta-0:19559".
	MetaEndpoint string `yaml:"meta_endpoint"`

	// RequestTimeout bounds each storage HTTP call, in seconds.
	RequestTimeout int `yaml:"request_timeout_seconds"`

	// MaxIdleConns caps idle pooled connections per storage host.
	MaxIdleConns int `yaml:"max_idle_conns_per_host"`
}

// ScanConfig describes the scan itself.
type ScanConfig struct {
	Space string `yaml:"space"`

	// Kind is "edge" or "vertex".
	Kind  string `yaml:"kind"`
	Label string `yaml:"label"`

	// ReturnColumns projects properties; empty means all.
	ReturnColumns []string `yaml:"return_columns"`

	// Filter is an opaque server-side predicate, passed through verbatim.
	Filter string `yaml:"filter"`

	// Limit is the per-partition chunk size per request.
	Limit int `yaml:"limit"`

	// PartialSuccess keeps the scan going when some hosts fail.
	PartialSuccess bool `yaml:"partial_success"`
}

// ExportConfig routes decoded rows to sinks.
type ExportConfig struct {
	// Destination is a gocloud blob URL: "file:///data/out",
	// "s3://bucket?region=us-east-1", "gs://bucket".
	Destination string `yaml:"destination"`

	Prefix string `yaml:"prefix"`

	// Formats lists the sinks to write: "parquet", "ndjson".
	Formats []string `yaml:"formats"`

	// BatchRows flushes a sink file after this many rows.
	BatchRows int `yaml:"batch_rows"`
}

// CheckpointConfig controls scan resumption.
type CheckpointConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Address   string `yaml:"address"`
	Namespace string `yaml:"namespace"`
}

type LoggingConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// Load reads the YAML file at path (optional), applies environment
// overrides, fills defaults and validates.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Cluster: ClusterConfig{
			RequestTimeout: 30,
			MaxIdleConns:   2,
		},
		Scan: ScanConfig{
			Kind:  "edge",
			Limit: 1000,
		},
		Export: ExportConfig{
			Destination: "file://./data",
			Formats:     []string{"ndjson"},
			BatchRows:   100000,
		},
		Checkpoint: CheckpointConfig{
			Dir: "./checkpoints",
		},
		Metrics: MetricsConfig{
			Address:   ":9090",
			Namespace: "partscan",
		},
		Logging: LoggingConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// applyEnv overrides settings commonly injected at deploy time.
func applyEnv(cfg *Config) {
	if v := os.Getenv("PARTSCAN_META_ENDPOINT"); v != "" {
		cfg.Cluster.MetaEndpoint = v
	}
	if v := os.Getenv("PARTSCAN_SPACE"); v != "" {
		cfg.Scan.Space = v
	}
	if v := os.Getenv("PARTSCAN_LABEL"); v != "" {
		cfg.Scan.Label = v
	}
	if v := os.Getenv("PARTSCAN_KIND"); v != "" {
		cfg.Scan.Kind = v
	}
	if v := os.Getenv("PARTSCAN_EXPORT_DESTINATION"); v != "" {
		cfg.Export.Destination = v
	}
	if v := os.Getenv("PARTSCAN_METRICS_ADDRESS"); v != "" {
		cfg.Metrics.Address = v
	}
	if v := os.Getenv("PARTSCAN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PARTSCAN_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scan.Limit = n
		}
	}
	if v := os.Getenv("PARTSCAN_PARTIAL_SUCCESS"); v != "" {
		cfg.Scan.PartialSuccess = v == "true" || v == "1"
	}
}

// Validate checks the configuration for contradictions before startup.
func (c *Config) Validate() error {
	if c.Cluster.MetaEndpoint == "" {
		return errors.New("cluster.meta_endpoint is required")
	}
	if c.Scan.Space == "" {
		return errors.New("scan.space is required")
	}
	if c.Scan.Label == "" {
		return errors.New("scan.label is required")
	}
	switch strings.ToLower(c.Scan.Kind) {
	case "edge", "vertex":
	default:
		return fmt.Errorf("scan.kind must be \"edge\" or \"vertex\", got %q", c.Scan.Kind)
	}
	if c.Scan.Limit <= 0 {
		return fmt.Errorf("scan.limit must be positive, got %d", c.Scan.Limit)
	}
	if c.Cluster.RequestTimeout <= 0 {
		return fmt.Errorf("cluster.request_timeout_seconds must be positive, got %d", c.Cluster.RequestTimeout)
	}
	for _, f := range c.Export.Formats {
		switch f {
		case "parquet", "ndjson":
		default:
			return fmt.Errorf("unknown export format %q", f)
		}
	}
	if c.Export.BatchRows <= 0 {
		return fmt.Errorf("export.batch_rows must be positive, got %d", c.Export.BatchRows)
	}
	return nil
}
