package contracts

import "time"

// Confidence ranks how a source's node label was determined.
// The order of the constants is the resolution precedence: lower values win.
type Confidence int

const (
	// ConfidenceExplicit is an operator-supplied override. Always wins.
	ConfidenceExplicit Confidence = iota
	// ConfidenceSSTPattern comes from a state-transfer line naming the
	// local node directly (member-indexed message prefix).
	ConfidenceSSTPattern
	// ConfidenceSyncPattern comes from a "Server <name> synced with group"
	// line.
	ConfidenceSyncPattern
	// ConfidenceStatePattern is aggregated evidence: the name repeated most
	// often across membership/state lines.
	ConfidenceStatePattern
	// ConfidenceFilename falls back to the source handle.
	ConfidenceFilename
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceExplicit:
		return "explicit"
	case ConfidenceSSTPattern:
		return "sst_pattern"
	case ConfidenceSyncPattern:
		return "sync_pattern"
	case ConfidenceStatePattern:
		return "state_pattern"
	case ConfidenceFilename:
		return "filename_fallback"
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler so confidence renders as its
// name in JSON output.
func (c Confidence) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// IdentityEvidence is one candidate name for a source, accumulated by the
// extractor over the whole stream.
type IdentityEvidence struct {
	Name       string     `json:"name"`
	Confidence Confidence `json:"confidence"`
	// Number of lines supporting this candidate.
	Count int `json:"count"`
}

// NodeIdentity is the resolved identity of one log source. Resolved exactly
// once per run; only the identity resolver assigns the final fields.
type NodeIdentity struct {
	SourceID    string     `json:"source_id"`
	ClaimedName string     `json:"claimed_name"`
	Confidence  Confidence `json:"confidence"`
	// Node names this source observed in membership lines.
	VisiblePeers []string `json:"visible_peers,omitempty"`
	// True when another source resolved to the same label with an
	// overlapping event window.
	Conflict bool `json:"conflict,omitempty"`
	// Event-time window covered by the source.
	FirstEvent time.Time `json:"first_event"`
	LastEvent  time.Time `json:"last_event"`
}

// Overlaps reports whether the event windows of two identities intersect.
// Zero windows (sources with no timestamped events) never overlap.
func (n NodeIdentity) Overlaps(other NodeIdentity) bool {
	if n.FirstEvent.IsZero() || other.FirstEvent.IsZero() {
		return false
	}
	return !n.FirstEvent.After(other.LastEvent) && !other.FirstEvent.After(n.LastEvent)
}
