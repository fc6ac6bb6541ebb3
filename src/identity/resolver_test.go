package identity

import (
	"strings"
	"testing"
	"time"

	"deforest/src/contracts"
	"deforest/src/diag"
	"deforest/src/extract"
	"deforest/src/source"
)

func at(h, m int) time.Time {
	return time.Date(2024, 3, 10, h, m, 0, 0, time.UTC)
}

func TestOverrideBeatsEvidence(t *testing.T) {
	res := &extract.Result{
		SourceID: "node1",
		Override: "galera-a",
		Evidence: []contracts.IdentityEvidence{
			{Name: "galera-b", Confidence: contracts.ConfidenceSSTPattern, Count: 4},
		},
		First: at(12, 0), Last: at(12, 30),
	}

	ids := NewResolver(nil).Resolve([]*extract.Result{res})
	if ids[0].ClaimedName != "galera-a" {
		t.Fatalf("claimed name = %q, want galera-a", ids[0].ClaimedName)
	}
	if ids[0].Confidence != contracts.ConfidenceExplicit {
		t.Fatalf("confidence = %v, want explicit", ids[0].Confidence)
	}
}

func TestStrongestEvidenceClassWins(t *testing.T) {
	res := &extract.Result{
		SourceID: "node1",
		Evidence: []contracts.IdentityEvidence{
			{Name: "galera-b", Confidence: contracts.ConfidenceSSTPattern, Count: 1},
			{Name: "galera-c", Confidence: contracts.ConfidenceStatePattern, Count: 9},
		},
		First: at(12, 0), Last: at(12, 30),
	}

	ids := NewResolver(nil).Resolve([]*extract.Result{res})
	if ids[0].ClaimedName != "galera-b" {
		t.Fatalf("claimed name = %q, want galera-b", ids[0].ClaimedName)
	}
}

func TestFilenameFallback(t *testing.T) {
	res := &extract.Result{SourceID: "mysqld-node3", First: at(9, 0), Last: at(9, 5)}

	ids := NewResolver(nil).Resolve([]*extract.Result{res})
	if ids[0].ClaimedName != "mysqld-node3" {
		t.Fatalf("claimed name = %q, want mysqld-node3", ids[0].ClaimedName)
	}
	if ids[0].Confidence != contracts.ConfidenceFilename {
		t.Fatalf("confidence = %v, want filename_fallback", ids[0].Confidence)
	}
}

func TestMembershipOnlyLogFallsBackToHandle(t *testing.T) {
	// View member lists are identical in every node's log; a source that
	// carries nothing else must keep its handle.
	src := &source.Source{Handle: "node2", Lines: []string{
		"2025-09-15 12:00:00 0 [Note] WSREP: view(view_id(PRIM,8f630d8f,5) memb {",
		"        0: 8f630d8f-9d1a-11eb-8b2f-aa01aa9a9df2, db-prod-01",
		"        1: 91a2be3c-9d1a-11eb-b33a-bb02bb9b9ef3, db-prod-02",
		"})",
	}}
	res := extract.New(extract.DialectGalera26).Extract(src)
	if len(res.Evidence) != 0 {
		t.Fatalf("member lines must not yield identity evidence, got %+v", res.Evidence)
	}

	ids := NewResolver(nil).Resolve([]*extract.Result{res})
	if ids[0].ClaimedName != "node2" {
		t.Fatalf("claimed name = %q, want node2", ids[0].ClaimedName)
	}
	if ids[0].Confidence != contracts.ConfidenceFilename {
		t.Fatalf("confidence = %v, want filename_fallback", ids[0].Confidence)
	}
	if len(res.VisiblePeers) != 2 {
		t.Fatalf("peers should still be collected, got %v", res.VisiblePeers)
	}
}

func TestOverlappingSameLabelConflicts(t *testing.T) {
	sink := diag.NewSink(nil, false)
	a := &extract.Result{
		SourceID: "log-a",
		Evidence: []contracts.IdentityEvidence{
			{Name: "galera-1", Confidence: contracts.ConfidenceSyncPattern, Count: 2},
		},
		VisiblePeers: []string{"galera-1", "galera-2", "galera-3"},
		First:        at(12, 0), Last: at(13, 0),
	}
	b := &extract.Result{
		SourceID: "log-b",
		Evidence: []contracts.IdentityEvidence{
			{Name: "galera-1", Confidence: contracts.ConfidenceStatePattern, Count: 5},
		},
		VisiblePeers: []string{"galera-1", "galera-2", "galera-3"},
		First:        at(12, 30), Last: at(13, 30),
	}

	ids := NewResolver(sink).Resolve([]*extract.Result{a, b})
	if !ids[0].Conflict || !ids[1].Conflict {
		t.Fatalf("both sources should be flagged, got %v %v", ids[0].Conflict, ids[1].Conflict)
	}

	warnings := sink.Warnings()
	if len(warnings) != 1 {
		t.Fatalf("want exactly one warning, got %d", len(warnings))
	}
	w := warnings[0]
	if w.Kind != diag.KindIdentityConflict {
		t.Fatalf("warning kind = %q", w.Kind)
	}
	if got := w.Details["sources"]; !strings.Contains(got, "log-a") || !strings.Contains(got, "log-b") {
		t.Fatalf("warning should reference both sources, got %q", got)
	}
	if got := w.Details["suggested_override_2"]; !strings.Contains(got, "--node ") || !strings.Contains(got, "log-b") {
		t.Fatalf("expected an override suggestion for log-b, got %q", got)
	}
}

func TestDisjointWindowsNoConflict(t *testing.T) {
	sink := diag.NewSink(nil, false)
	a := &extract.Result{
		SourceID: "old-log",
		Evidence: []contracts.IdentityEvidence{
			{Name: "galera-1", Confidence: contracts.ConfidenceSyncPattern, Count: 1},
		},
		First: at(8, 0), Last: at(9, 0),
	}
	b := &extract.Result{
		SourceID: "new-log",
		Evidence: []contracts.IdentityEvidence{
			{Name: "galera-1", Confidence: contracts.ConfidenceSyncPattern, Count: 1},
		},
		First: at(10, 0), Last: at(11, 0),
	}

	ids := NewResolver(sink).Resolve([]*extract.Result{a, b})
	if ids[0].Conflict || ids[1].Conflict {
		t.Fatal("disjoint windows must not conflict")
	}
	if len(sink.Warnings()) != 0 {
		t.Fatalf("unexpected warnings: %v", sink.Warnings())
	}
}

func TestLabelTagsEvents(t *testing.T) {
	events := []contracts.LogEvent{
		{SourceID: "log-a", Kind: contracts.KindStateTransition},
		{SourceID: "log-b", Kind: contracts.KindViewChange},
	}
	ids := []contracts.NodeIdentity{
		{SourceID: "log-a", ClaimedName: "galera-1", Conflict: true},
		{SourceID: "log-b", ClaimedName: "galera-2"},
	}

	events = Label(events, ids)
	if events[0].Node != "galera-1" || !events[0].IdentityConflict {
		t.Fatalf("event 0 mislabeled: %+v", events[0])
	}
	if events[1].Node != "galera-2" || events[1].IdentityConflict {
		t.Fatalf("event 1 mislabeled: %+v", events[1])
	}
}
