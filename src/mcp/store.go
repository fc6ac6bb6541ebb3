package mcp

import (
	"sync"

	"deforest/src/contracts"
	"deforest/src/pipeline"
)

// runStore keeps recent analyses in memory so drill-down tools can reference
// them by run ID. Bounded; oldest runs are evicted first.
type runStore struct {
	mu    sync.Mutex
	runs  map[string]*pipeline.Analysis
	order []string
}

const maxStoredRuns = 16

func newRunStore() *runStore {
	return &runStore{runs: make(map[string]*pipeline.Analysis)}
}

func (s *runStore) put(a *pipeline.Analysis) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[a.Run.ID]; !exists {
		s.order = append(s.order, a.Run.ID)
	}
	s.runs[a.Run.ID] = a

	for len(s.order) > maxStoredRuns {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.runs, oldest)
	}
}

func (s *runStore) workflow(runID, workflowID string) (*contracts.StateTransferWorkflow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.runs[runID]
	if !ok {
		return nil, false
	}
	for _, wf := range a.Workflows {
		if wf.ID == workflowID {
			return wf, true
		}
	}
	return nil, false
}
