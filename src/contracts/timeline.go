package contracts

import "time"

// EntryKind distinguishes what a timeline entry was derived from.
type EntryKind string

const (
	EntryEvent    EntryKind = "event"
	EntryWorkflow EntryKind = "workflow"
	EntryFinding  EntryKind = "finding"
)

// Source priorities for the timeline tie-break. Lower sorts first.
const (
	PriorityFinding  = 0
	PriorityWorkflow = 1
	PriorityEvent    = 2
)

// TimelineEntry is one row of the merged cluster timeline.
type TimelineEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      EntryKind `json:"kind"`
	// Node label the entry is attributed to; empty for cluster-wide findings.
	Node    string `json:"node,omitempty"`
	Summary string `json:"summary"`
	// Exactly one of the following is set, matching Kind.
	Event    *LogEvent              `json:"event,omitempty"`
	Workflow *StateTransferWorkflow `json:"workflow,omitempty"`
	Finding  *SplitBrainFinding     `json:"finding,omitempty"`
}
