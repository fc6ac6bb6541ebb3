package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DEFOREST_BROKERS", "localhost:19092, localhost:29092")
	t.Setenv("DEFOREST_QUIET", "true")
	t.Setenv("DEFOREST_ALIGN_WINDOW", "30s")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error: %v", err)
	}

	if len(cfg.Brokers) != 2 || cfg.Brokers[0] != "localhost:19092" || cfg.Brokers[1] != "localhost:29092" {
		t.Errorf("Brokers = %v, want two trimmed entries", cfg.Brokers)
	}
	if !cfg.Quiet {
		t.Error("Quiet = false, want true")
	}
	if cfg.AlignWindow != 30*time.Second {
		t.Errorf("AlignWindow = %s, want 30s", cfg.AlignWindow)
	}
}

func TestLoadFromEnvInvalidWindow(t *testing.T) {
	t.Setenv("DEFOREST_ALIGN_WINDOW", "soon")
	if _, err := LoadFromEnv(); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestApplyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deforest.yaml")
	content := `
align_window: 15s
seqno_gap: 5
quiet: true
nodes:
  node1.log: db-prod-01
  node2.log: db-prod-02
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	if err := cfg.ApplyFile(path); err != nil {
		t.Fatalf("ApplyFile() error: %v", err)
	}

	if cfg.AlignWindow != 15*time.Second {
		t.Errorf("AlignWindow = %s, want 15s", cfg.AlignWindow)
	}
	if cfg.SeqnoGap != 5 {
		t.Errorf("SeqnoGap = %d, want 5", cfg.SeqnoGap)
	}
	if !cfg.Quiet {
		t.Error("Quiet = false, want true")
	}
	if cfg.NodeOverrides["node1.log"] != "db-prod-01" {
		t.Errorf("NodeOverrides = %v, want node1.log mapped", cfg.NodeOverrides)
	}
	// Fields absent from the file keep defaults.
	if cfg.Dialect != DefaultDialect {
		t.Errorf("Dialect = %q, want default %q", cfg.Dialect, DefaultDialect)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults valid", mutate: func(c *Config) {}, wantErr: false},
		{name: "zero window", mutate: func(c *Config) { c.AlignWindow = 0 }, wantErr: true},
		{name: "negative gap", mutate: func(c *Config) { c.SeqnoGap = -1 }, wantErr: true},
		{name: "bad format", mutate: func(c *Config) { c.Format = "xml" }, wantErr: true},
		{name: "json format", mutate: func(c *Config) { c.Format = "json" }, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
