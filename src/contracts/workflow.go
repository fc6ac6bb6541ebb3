package contracts

import "time"

// WorkflowStatus is the lifecycle state of a state-transfer workflow.
type WorkflowStatus string

const (
	WorkflowRequested    WorkflowStatus = "requested"
	WorkflowSSTStarted   WorkflowStatus = "sst_started"
	WorkflowISTAttempted WorkflowStatus = "ist_attempted"
	WorkflowSSTFailed    WorkflowStatus = "sst_failed"
	WorkflowSSTSucceeded WorkflowStatus = "sst_succeeded"
	WorkflowISTCompleted WorkflowStatus = "ist_completed"
	// WorkflowUnresolved marks a workflow still open at end of run.
	WorkflowUnresolved WorkflowStatus = "unresolved"
)

// Terminal reports whether the status closes a workflow.
func (s WorkflowStatus) Terminal() bool {
	switch s {
	case WorkflowSSTSucceeded, WorkflowISTCompleted, WorkflowUnresolved:
		return true
	}
	return false
}

// SSTPhaseStatus is the observed outcome of the full-copy phase.
type SSTPhaseStatus string

const (
	SSTUnknown   SSTPhaseStatus = "unknown"
	SSTStarted   SSTPhaseStatus = "started"
	SSTFailed    SSTPhaseStatus = "failed"
	SSTSucceeded SSTPhaseStatus = "succeeded"
)

// SSTPhase records the full-copy phase of a workflow.
type SSTPhase struct {
	Status    SSTPhaseStatus `json:"status"`
	Timestamp time.Time      `json:"timestamp,omitempty"`
}

// AsyncISTStart records the donor-side start of an incremental catch-up.
type AsyncISTStart struct {
	Peer       string    `json:"peer"`
	FirstSeqno int64     `json:"first_seqno"`
	LastSeqno  int64     `json:"last_seqno"`
	Timestamp  time.Time `json:"timestamp"`
}

// PostISTPhase records the incremental catch-up that follows (or replaces)
// the full copy.
type PostISTPhase struct {
	AsyncStart  *AsyncISTStart `json:"async_start,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// StateTransferWorkflow links the independently logged halves of one
// donor->joiner resynchronization into a single record. Created on a request
// event, mutated as matching evidence is found on either node's stream, and
// immutable once closed.
type StateTransferWorkflow struct {
	ID          string         `json:"id"`
	RequestedAt time.Time      `json:"requested_at"`
	Joiner      string         `json:"joiner"`
	Donor       string         `json:"donor"`
	Method      string         `json:"method,omitempty"`
	Status      WorkflowStatus `json:"status"`
	// Incremental-transfer evidence seen before the SST phase settled.
	PreISTSignals []LogEvent    `json:"pre_ist_signals,omitempty"`
	SSTPhase      SSTPhase      `json:"sst_phase"`
	PostIST       *PostISTPhase `json:"post_ist_phase,omitempty"`
	// Closed workflows accept no further evidence.
	Closed bool `json:"closed"`
}

// OrphanEvidence is a completion/failure/async event that matched no open
// workflow. Reported as-is; never forced into a fabricated workflow.
type OrphanEvidence struct {
	Event  LogEvent `json:"event"`
	Reason string   `json:"reason"`
}
