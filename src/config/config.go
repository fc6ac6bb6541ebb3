// Package config provides configuration management for the deforest analyzer.
//
// Settings are layered: built-in defaults, then environment variables, then
// an optional YAML file, then command-line flags. Later layers win.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default tunables. No canonical values exist for the correlation windows;
// these defaults are documented in DESIGN.md and exposed as flags.
const (
	DefaultAlignWindow = 60 * time.Second
	DefaultSeqnoGap    = int64(2)
	DefaultDialect     = "auto"
	DefaultFormat      = "text"
)

// Config holds the application configuration.
type Config struct {
	// AlignWindow is the view-alignment window: membership views from
	// different nodes within this span are compared for divergence.
	AlignWindow time.Duration `yaml:"align_window"`
	// SeqnoGap is the maximum view-seqno distance at which two views are
	// still considered the same logical event.
	SeqnoGap int64 `yaml:"seqno_gap"`
	// Dialect selects the extraction pattern set (auto, galera-26,
	// mariadb-10, pxc-8).
	Dialect string `yaml:"dialect"`
	// Format is the primary output format: text or json.
	Format string `yaml:"format"`
	// Quiet suppresses the diagnostic side channel. Primary output is
	// unaffected.
	Quiet bool `yaml:"quiet"`
	// ExportDSN, when set, archives the run's findings to Postgres.
	ExportDSN string `yaml:"export_dsn"`
	// Brokers lists Kafka/Redpanda seed brokers for publishing diagnostics
	// and findings. Empty means the in-memory broker.
	Brokers []string `yaml:"brokers"`
	// NodeOverrides maps source path or handle to an explicit node label.
	NodeOverrides map[string]string `yaml:"nodes"`
}

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	return &Config{
		AlignWindow:   DefaultAlignWindow,
		SeqnoGap:      DefaultSeqnoGap,
		Dialect:       DefaultDialect,
		Format:        DefaultFormat,
		NodeOverrides: map[string]string{},
	}
}

// LoadFromEnv returns the default configuration with environment overrides
// applied. Recognized variables: DEFOREST_BROKERS (comma separated),
// DEFOREST_EXPORT_DSN, DEFOREST_QUIET, DEFOREST_ALIGN_WINDOW (Go duration).
func LoadFromEnv() (*Config, error) {
	cfg := Default()

	if v := os.Getenv("DEFOREST_BROKERS"); v != "" {
		cfg.Brokers = splitList(v)
	}
	if v := os.Getenv("DEFOREST_EXPORT_DSN"); v != "" {
		cfg.ExportDSN = v
	}
	if v := os.Getenv("DEFOREST_QUIET"); v == "1" || strings.EqualFold(v, "true") {
		cfg.Quiet = true
	}
	if v := os.Getenv("DEFOREST_ALIGN_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid DEFOREST_ALIGN_WINDOW %q: %w", v, err)
		}
		cfg.AlignWindow = d
	}

	return cfg, nil
}

// ApplyFile merges settings from a YAML config file into cfg. Fields absent
// from the file keep their current values.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	// Decode into a shadow struct so zero values in the file are
	// distinguishable from unset fields.
	var file struct {
		AlignWindow *string           `yaml:"align_window"`
		SeqnoGap    *int64            `yaml:"seqno_gap"`
		Dialect     *string           `yaml:"dialect"`
		Format      *string           `yaml:"format"`
		Quiet       *bool             `yaml:"quiet"`
		ExportDSN   *string           `yaml:"export_dsn"`
		Brokers     []string          `yaml:"brokers"`
		Nodes       map[string]string `yaml:"nodes"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if file.AlignWindow != nil {
		d, err := time.ParseDuration(*file.AlignWindow)
		if err != nil {
			return fmt.Errorf("invalid align_window %q in %s: %w", *file.AlignWindow, path, err)
		}
		c.AlignWindow = d
	}
	if file.SeqnoGap != nil {
		c.SeqnoGap = *file.SeqnoGap
	}
	if file.Dialect != nil {
		c.Dialect = *file.Dialect
	}
	if file.Format != nil {
		c.Format = *file.Format
	}
	if file.Quiet != nil {
		c.Quiet = *file.Quiet
	}
	if file.ExportDSN != nil {
		c.ExportDSN = *file.ExportDSN
	}
	if len(file.Brokers) > 0 {
		c.Brokers = file.Brokers
	}
	for handle, label := range file.Nodes {
		c.NodeOverrides[handle] = label
	}

	return nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.AlignWindow <= 0 {
		return fmt.Errorf("align window must be positive, got %s", c.AlignWindow)
	}
	if c.SeqnoGap < 0 {
		return fmt.Errorf("seqno gap must be non-negative, got %d", c.SeqnoGap)
	}
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown output format %q (want text or json)", c.Format)
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
