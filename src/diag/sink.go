// Package diag provides the diagnostics side channel. Components write
// structured warnings to an injected Sink; nothing in the engine logs through
// process-wide state. The sink is separate from primary output by
// construction: it holds its own writer and the two are never interleaved.
package diag

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// Warning kinds emitted by the engine.
const (
	KindIdentityConflict = "identity_conflict"
	KindOrphanEvidence   = "orphan_evidence"
	KindViewDivergence   = "view_divergence"
)

// Warning is one structured diagnostic record.
type Warning struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	Time    time.Time `json:"time,omitempty"`
	// Kind-specific detail fields (source pair, window, suggested override).
	Details map[string]string `json:"details,omitempty"`
}

// Publisher is the subset of the broker interface the sink needs. Declared
// here so diag does not depend on the broker package.
type Publisher interface {
	Publish(ctx context.Context, topic string, key string, value []byte) error
}

// Topic diagnostics are published to when a publisher is attached.
const Topic = "deforest.diagnostics"

// Sink collects and forwards warnings. Quiet suppresses the writer output
// only; warnings are still recorded and still published.
type Sink struct {
	mu       sync.Mutex
	w        io.Writer
	quiet    bool
	pub      Publisher
	warnings []Warning
}

// NewSink builds a sink writing to w (typically stderr).
func NewSink(w io.Writer, quiet bool) *Sink {
	return &Sink{w: w, quiet: quiet}
}

// AttachPublisher forwards every warning to a broker topic as JSON.
func (s *Sink) AttachPublisher(pub Publisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pub = pub
}

// Warn records and emits one warning.
func (s *Sink) Warn(w Warning) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.warnings = append(s.warnings, w)

	if !s.quiet && s.w != nil {
		fmt.Fprintf(s.w, "warning: [%s] %s\n", w.Kind, w.Message)
		for _, kv := range sortedDetails(w.Details) {
			fmt.Fprintf(s.w, "  %s: %s\n", kv[0], kv[1])
		}
	}

	if s.pub != nil {
		if data, err := json.Marshal(w); err == nil {
			// Best effort: a dead broker must not fail the run.
			_ = s.pub.Publish(context.Background(), Topic, w.Kind, data)
		}
	}
}

// sortedDetails flattens a detail map into key-sorted pairs so side-channel
// output is deterministic.
func sortedDetails(details map[string]string) [][2]string {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][2]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, [2]string{k, details[k]})
	}
	return out
}

// Warnings returns everything recorded so far, in emission order.
func (s *Sink) Warnings() []Warning {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Warning, len(s.warnings))
	copy(out, s.warnings)
	return out
}
