// Package contracts defines the data structures shared between the extractor,
// the correlation engine and the output surfaces.
package contracts

import (
	"strconv"
	"time"
)

// EventKind classifies a typed log event.
type EventKind string

const (
	KindStateTransition EventKind = "state_transition"
	KindViewChange      EventKind = "view_change"
	KindSSTRequest      EventKind = "sst_request"
	KindSSTStatus       EventKind = "sst_status"
	KindISTRange        EventKind = "ist_range"
	KindISTAsync        EventKind = "ist_async"
	KindCommunication   EventKind = "communication"
	KindWarning         EventKind = "warning"
	KindError           EventKind = "error"
	KindServerInfo      EventKind = "server_info"
)

// Payload carries the kind-specific fields of an event. Values are stored as
// strings; numeric fields are parsed on access.
type Payload map[string]string

// Get returns the value for key, or "" when absent.
func (p Payload) Get(key string) string {
	if p == nil {
		return ""
	}
	return p[key]
}

// Int64 parses the value for key as a signed integer.
// Returns ok=false when the field is absent or not numeric.
func (p Payload) Int64(key string) (int64, bool) {
	v, exists := p[key]
	if !exists {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// LogEvent is one typed event extracted from a log source.
// Events are immutable once produced by the extractor; the engine only reads.
type LogEvent struct {
	// Time the line was logged, seconds resolution. May repeat and may run
	// backwards across sources; ordering logic must tolerate both.
	Timestamp time.Time `json:"timestamp"`
	// Opaque handle of the originating log source.
	SourceID string `json:"source_id"`
	// Final node label assigned by the identity resolver. Empty until
	// resolution completes.
	Node string `json:"node,omitempty"`
	// Event classification.
	Kind EventKind `json:"kind"`
	// Kind-specific named fields.
	Payload Payload `json:"payload,omitempty"`
	// Sanitized raw line, for display.
	Raw string `json:"raw,omitempty"`
	// Line number within the source.
	Line int `json:"line"`
	// Set when the source's identity resolution conflicted with another
	// source; the event is still attributed, best effort.
	IdentityConflict bool `json:"identity_conflict,omitempty"`
}

// Common payload field names used across event kinds.
const (
	FieldDonor      = "donor"
	FieldJoiner     = "joiner"
	FieldPeer       = "peer"
	FieldMethod     = "method"
	FieldRole       = "role"
	FieldStatus     = "status"
	FieldMembers    = "members"
	FieldSeqno      = "seqno"
	FieldFirstSeqno = "first_seqno"
	FieldLastSeqno  = "last_seqno"
	FieldFromState  = "from"
	FieldToState    = "to"
	FieldPhase      = "phase"
	FieldMessage    = "message"
	FieldViewStatus = "view_status"
	FieldViewUUID   = "view_uuid"
)
