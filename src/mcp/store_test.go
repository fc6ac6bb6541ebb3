package mcp

import (
	"fmt"
	"testing"

	"deforest/src/contracts"
	"deforest/src/pipeline"
)

func analysisWith(runID, workflowID string) *pipeline.Analysis {
	return &pipeline.Analysis{
		Run: contracts.RunRecord{ID: runID},
		Workflows: []*contracts.StateTransferWorkflow{
			{ID: workflowID, Donor: "node-b", Joiner: "node-a"},
		},
	}
}

func TestRunStoreLookup(t *testing.T) {
	s := newRunStore()
	s.put(analysisWith("run-1", "wf-1"))

	wf, found := s.workflow("run-1", "wf-1")
	if !found {
		t.Fatal("workflow not found")
	}
	if wf.Donor != "node-b" {
		t.Fatalf("donor = %q", wf.Donor)
	}

	if _, found := s.workflow("run-1", "missing"); found {
		t.Fatal("unknown workflow id must not resolve")
	}
	if _, found := s.workflow("missing", "wf-1"); found {
		t.Fatal("unknown run id must not resolve")
	}
}

func TestRunStoreEvictsOldest(t *testing.T) {
	s := newRunStore()
	for i := 0; i <= maxStoredRuns; i++ {
		id := fmt.Sprintf("run-%d", i)
		s.put(analysisWith(id, "wf"))
	}

	if _, found := s.workflow("run-0", "wf"); found {
		t.Fatal("oldest run should have been evicted")
	}
	last := fmt.Sprintf("run-%d", maxStoredRuns)
	if _, found := s.workflow(last, "wf"); !found {
		t.Fatal("newest run missing")
	}
}
