package store

import (
	"context"
	"testing"
	"time"

	"deforest/src/contracts"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	run := &contracts.RunRecord{ID: "run-1", StartedAt: time.Now(), Sources: 3}
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run: %v", err)
	}

	wf := &contracts.StateTransferWorkflow{ID: "wf-1", Donor: "node-b", Joiner: "node-a", Status: contracts.WorkflowSSTSucceeded}
	if err := s.SaveWorkflow(ctx, "run-1", wf); err != nil {
		t.Fatalf("save workflow: %v", err)
	}
	if err := s.SaveIdentity(ctx, "run-1", &contracts.NodeIdentity{SourceID: "n1", ClaimedName: "node-a"}); err != nil {
		t.Fatalf("save identity: %v", err)
	}
	if err := s.SaveFinding(ctx, "run-1", &contracts.SplitBrainFinding{ID: "f-1"}); err != nil {
		t.Fatalf("save finding: %v", err)
	}

	if got := s.Run("run-1"); got == nil || got.Sources != 3 {
		t.Fatalf("run = %+v", got)
	}
	if got := s.Workflows("run-1"); len(got) != 1 || got[0].ID != "wf-1" {
		t.Fatalf("workflows = %+v", got)
	}
	if got := s.Identities("run-1"); len(got) != 1 || got[0].ClaimedName != "node-a" {
		t.Fatalf("identities = %+v", got)
	}
	if got := s.Findings("run-1"); len(got) != 1 {
		t.Fatalf("findings = %+v", got)
	}
}

func TestMemoryStoreRejectsUnknownRun(t *testing.T) {
	s := NewMemoryStore()
	err := s.SaveWorkflow(context.Background(), "nope", &contracts.StateTransferWorkflow{ID: "wf-1"})
	if err == nil {
		t.Fatal("expected error for unknown run")
	}
}
