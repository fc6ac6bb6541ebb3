package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHandle(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"node1.log", "node1"},
		{"/var/log/mysql/db-prod-01.err", "db-prod-01"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := Handle(tt.path); got != tt.want {
			t.Errorf("Handle(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestParseMapping(t *testing.T) {
	label, path, err := ParseMapping("db-prod-01:logs/node1.log")
	if err != nil {
		t.Fatalf("ParseMapping() error: %v", err)
	}
	if label != "db-prod-01" || path != "logs/node1.log" {
		t.Errorf("got %q/%q", label, path)
	}

	for _, bad := range []string{"nolabel", ":path", "label:"} {
		if _, _, err := ParseMapping(bad); err == nil {
			t.Errorf("ParseMapping(%q) expected error", bad)
		}
	}
}

func TestFromReader(t *testing.T) {
	src, err := FromReader("stdin", strings.NewReader("line one\nline two\n"))
	if err != nil {
		t.Fatalf("FromReader() error: %v", err)
	}
	if len(src.Lines) != 2 || src.Lines[1] != "line two" {
		t.Errorf("Lines = %v", src.Lines)
	}
}

func TestLoadAppliesOverrides(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "node1.log")
	p2 := filepath.Join(dir, "node2.log")
	for _, p := range []string{p1, p2} {
		if err := os.WriteFile(p, []byte("2025-09-15 10:00:00 0 [Note] x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	sources, err := Load([]string{p2}, []string{"db-a:" + p1}, map[string]string{"node2": "db-b"})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(sources))
	}
	if sources[0].Override != "db-a" {
		t.Errorf("mapping override = %q, want db-a", sources[0].Override)
	}
	if sources[1].Override != "db-b" {
		t.Errorf("handle override = %q, want db-b", sources[1].Override)
	}
}
