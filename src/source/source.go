// Package source loads the per-node log sources handed to the extractor.
// A source is a bounded, fully collected log file (or stdin); there is no
// streaming ingestion.
package source

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Source is one node's collected log stream.
type Source struct {
	// Handle is the opaque source identifier used throughout the run
	// (file basename, or "stdin").
	Handle string
	// Path is the originating file path; empty for stdin.
	Path string
	// Override is the operator-supplied node label, if any. Overrides
	// always win over identity heuristics.
	Override string
	// Lines holds the full log content.
	Lines []string
}

// maxLineBytes guards the scanner against pathological unbroken lines
// (mysqld can emit very long variable dumps).
const maxLineBytes = 1024 * 1024

// FromReader collects a source from an open reader.
func FromReader(handle string, r io.Reader) (*Source, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", handle, err)
	}

	return &Source{Handle: handle, Lines: lines}, nil
}

// FromFile collects a source from a log file on disk.
func FromFile(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &UserError{
			Message: fmt.Sprintf("cannot open log file %s", path),
			Hint:    "check the path; each argument must be one node's collected error log",
			Err:     err,
		}
	}
	defer f.Close()

	src, err := FromReader(Handle(path), f)
	if err != nil {
		return nil, err
	}
	src.Path = path
	return src, nil
}

// FromStdin collects a single source from standard input.
func FromStdin() (*Source, error) {
	return FromReader("stdin", os.Stdin)
}

// Handle derives the source handle from a file path: the basename with its
// extension removed. Used as the filename-fallback identity.
func Handle(path string) string {
	base := filepath.Base(path)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// ParseMapping splits a "label:path" node mapping argument.
func ParseMapping(arg string) (label, path string, err error) {
	i := strings.Index(arg, ":")
	if i <= 0 || i == len(arg)-1 {
		return "", "", &UserError{
			Message: fmt.Sprintf("invalid node mapping %q", arg),
			Hint:    "expected label:path, e.g. --node db-prod-01:node1.log",
		}
	}
	return arg[:i], arg[i+1:], nil
}

// Load collects all sources for a run: plain file arguments plus explicit
// label:path mappings. Overrides may also arrive by handle or path via the
// overrides map (config file).
func Load(files []string, mappings []string, overrides map[string]string) ([]*Source, error) {
	var sources []*Source

	for _, m := range mappings {
		label, path, err := ParseMapping(m)
		if err != nil {
			return nil, err
		}
		src, err := FromFile(path)
		if err != nil {
			return nil, err
		}
		src.Override = label
		sources = append(sources, src)
	}

	for _, path := range files {
		src, err := FromFile(path)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	for _, src := range sources {
		if src.Override != "" {
			continue
		}
		if label, ok := overrides[src.Path]; ok {
			src.Override = label
		} else if label, ok := overrides[src.Handle]; ok {
			src.Override = label
		}
	}

	return sources, nil
}
