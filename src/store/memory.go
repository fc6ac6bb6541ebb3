package store

import (
	"context"
	"fmt"
	"sync"

	"deforest/src/contracts"
)

// MemoryStore keeps a run's export in process memory. Used by tests and by
// runs without a configured export DSN.
type MemoryStore struct {
	mu         sync.Mutex
	runs       map[string]*contracts.RunRecord
	identities map[string][]contracts.NodeIdentity
	workflows  map[string][]contracts.StateTransferWorkflow
	findings   map[string][]contracts.SplitBrainFinding
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:       make(map[string]*contracts.RunRecord),
		identities: make(map[string][]contracts.NodeIdentity),
		workflows:  make(map[string][]contracts.StateTransferWorkflow),
		findings:   make(map[string][]contracts.SplitBrainFinding),
	}
}

func (s *MemoryStore) SaveRun(ctx context.Context, run *contracts.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *run
	s.runs[run.ID] = &copied
	return nil
}

func (s *MemoryStore) SaveIdentity(ctx context.Context, runID string, id *contracts.NodeIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[runID]; !ok {
		return fmt.Errorf("unknown run: %s", runID)
	}
	s.identities[runID] = append(s.identities[runID], *id)
	return nil
}

func (s *MemoryStore) SaveWorkflow(ctx context.Context, runID string, wf *contracts.StateTransferWorkflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[runID]; !ok {
		return fmt.Errorf("unknown run: %s", runID)
	}
	s.workflows[runID] = append(s.workflows[runID], *wf)
	return nil
}

func (s *MemoryStore) SaveFinding(ctx context.Context, runID string, f *contracts.SplitBrainFinding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[runID]; !ok {
		return fmt.Errorf("unknown run: %s", runID)
	}
	s.findings[runID] = append(s.findings[runID], *f)
	return nil
}

// Run returns the stored run record, or nil.
func (s *MemoryStore) Run(runID string) *contracts.RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[runID]
}

// Workflows returns the workflows saved under a run.
func (s *MemoryStore) Workflows(runID string) []contracts.StateTransferWorkflow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]contracts.StateTransferWorkflow(nil), s.workflows[runID]...)
}

// Findings returns the findings saved under a run.
func (s *MemoryStore) Findings(runID string) []contracts.SplitBrainFinding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]contracts.SplitBrainFinding(nil), s.findings[runID]...)
}

// Identities returns the identities saved under a run.
func (s *MemoryStore) Identities(runID string) []contracts.NodeIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]contracts.NodeIdentity(nil), s.identities[runID]...)
}

func (s *MemoryStore) Close() error {
	return nil
}
