package extract

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"deforest/src/contracts"
	"deforest/src/source"
)

func src(handle string, lines ...string) *source.Source {
	return &source.Source{Handle: handle, Lines: lines}
}

func extractOne(t *testing.T, lines ...string) *Result {
	t.Helper()
	return New(DialectGalera26).Extract(src("node1", lines...))
}

func TestDetectDialect(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  Dialect
	}{
		{"pxc", []string{"Percona XtraDB Cluster (GPL), Release rel33"}, DialectPXC},
		{"galera", []string{"WSREP: Provider: Galera 26.4.23(r1234)"}, DialectGalera26},
		{"mariadb", []string{"Server version: 10.6.16-MariaDB-log"}, DialectMariaDB},
		{"wsrep only", []string{"2025-09-15 10:00:00 0 [Note] WSREP: gcomm thread"}, DialectGalera26},
		{"unknown", []string{"plain application log"}, DialectUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectDialect(tt.lines); got != tt.want {
				t.Errorf("DetectDialect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractSSTRequest(t *testing.T) {
	res := extractOne(t,
		"2025-09-15 13:45:00 0 [Note] WSREP: Member 1.1 (db-prod-02) requested state transfer from '*any*'. Selected 0.1 (db-prod-01)(SYNCED) as donor.",
	)

	if len(res.Events) != 1 {
		t.Fatalf("got %d events, want 1", len(res.Events))
	}
	ev := res.Events[0]
	if ev.Kind != contracts.KindSSTRequest {
		t.Fatalf("kind = %v, want sst_request", ev.Kind)
	}
	if ev.Payload.Get(contracts.FieldJoiner) != "db-prod-02" || ev.Payload.Get(contracts.FieldDonor) != "db-prod-01" {
		t.Errorf("pair = %s/%s", ev.Payload.Get(contracts.FieldDonor), ev.Payload.Get(contracts.FieldJoiner))
	}
	want := time.Date(2025, 9, 15, 13, 45, 0, 0, time.UTC)
	if !ev.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", ev.Timestamp, want)
	}
	if got := res.VisiblePeers; !reflect.DeepEqual(got, []string{"db-prod-01", "db-prod-02"}) {
		t.Errorf("peers = %v", got)
	}
}

func TestExtractMemberPrefixedTransfer(t *testing.T) {
	res := extractOne(t,
		"2025-09-15 13:50:10 0 [Note] WSREP: 0.1 (db-prod-01): State transfer to 1.1 (db-prod-02) complete.",
	)

	if len(res.Events) != 1 {
		t.Fatalf("got %d events, want 1", len(res.Events))
	}
	ev := res.Events[0]
	if ev.Kind != contracts.KindSSTStatus {
		t.Fatalf("kind = %v, want sst_status", ev.Kind)
	}
	if ev.Payload.Get(contracts.FieldStatus) != "completed" || ev.Payload.Get(contracts.FieldRole) != "donor" {
		t.Errorf("payload = %v", ev.Payload)
	}
	if ev.Payload.Get(contracts.FieldPeer) != "db-prod-02" {
		t.Errorf("peer = %q", ev.Payload.Get(contracts.FieldPeer))
	}

	// The message prefix names the reporting node: strongest heuristic.
	if len(res.Evidence) == 0 {
		t.Fatal("no identity evidence collected")
	}
	best := res.Evidence[0]
	if best.Name != "db-prod-01" || best.Confidence != contracts.ConfidenceSSTPattern {
		t.Errorf("best evidence = %+v", best)
	}
}

func TestExtractViewBlock(t *testing.T) {
	res := extractOne(t,
		"2025-09-15 12:00:00 0 [Note] WSREP: view(view_id(PRIM,8f630d8f,5) memb {",
		"        0: 8f630d8f-9d1a-11eb-8b2f-aa01aa9a9df2, db-prod-01",
		"        1: 91a2be3c-9d1a-11eb-b33a-bb02bb9b9ef3, db-prod-02",
		"})",
		"2025-09-15 12:00:05 0 [Note] WSREP: Shifting JOINED -> SYNCED (TO: 1625)",
	)

	if len(res.Events) != 2 {
		t.Fatalf("got %d events, want view_change + state_transition", len(res.Events))
	}
	view := res.Events[0]
	if view.Kind != contracts.KindViewChange {
		t.Fatalf("kind = %v, want view_change", view.Kind)
	}
	if view.Payload.Get(contracts.FieldMembers) != "db-prod-01,db-prod-02" {
		t.Errorf("members = %q", view.Payload.Get(contracts.FieldMembers))
	}
	if view.Payload.Get(contracts.FieldViewStatus) != "primary" {
		t.Errorf("status = %q", view.Payload.Get(contracts.FieldViewStatus))
	}
	if seqno, ok := view.Payload.Int64(contracts.FieldSeqno); !ok || seqno != 5 {
		t.Errorf("seqno = %d ok=%v", seqno, ok)
	}

	shift := res.Events[1]
	if shift.Kind != contracts.KindStateTransition {
		t.Fatalf("kind = %v, want state_transition", shift.Kind)
	}
	if shift.Payload.Get(contracts.FieldFromState) != "JOINED" || shift.Payload.Get(contracts.FieldToState) != "SYNCED" {
		t.Errorf("payload = %v", shift.Payload)
	}
}

func TestExtractISTAsync(t *testing.T) {
	res := extractOne(t,
		"2025-09-15 14:00:00 0 [Note] WSREP: async IST sender starting to serve tcp://10.0.0.2:4568 sending 100-250, preload starts from 95",
	)
	if len(res.Events) != 1 {
		t.Fatalf("got %d events, want 1", len(res.Events))
	}
	ev := res.Events[0]
	if ev.Kind != contracts.KindISTAsync || ev.Payload.Get(contracts.FieldPhase) != "start" {
		t.Fatalf("event = %+v", ev)
	}
	if first, _ := ev.Payload.Int64(contracts.FieldFirstSeqno); first != 100 {
		t.Errorf("first_seqno = %d", first)
	}
	if last, _ := ev.Payload.Int64(contracts.FieldLastSeqno); last != 250 {
		t.Errorf("last_seqno = %d", last)
	}
}

func TestExtractSyncEvidence(t *testing.T) {
	res := extractOne(t,
		"2025-09-15 12:10:00 0 [Note] WSREP: Server db-prod-01 synced with group",
		"2025-09-15 12:10:05 0 [Note] WSREP: Member 1.1 (db-prod-02) synced with group.",
		"2025-09-15 12:10:06 0 [Note] WSREP: Member 1.1 (db-prod-02) synced with group.",
	)

	var sync, state *contracts.IdentityEvidence
	for i := range res.Evidence {
		ev := &res.Evidence[i]
		switch ev.Confidence {
		case contracts.ConfidenceSyncPattern:
			sync = ev
		case contracts.ConfidenceStatePattern:
			state = ev
		}
	}
	if sync == nil || sync.Name != "db-prod-01" {
		t.Errorf("sync evidence = %+v", sync)
	}
	if state == nil || state.Name != "db-prod-02" || state.Count != 2 {
		t.Errorf("state evidence = %+v", state)
	}
}

func TestLinesBeforeTimestampDropped(t *testing.T) {
	res := extractOne(t,
		"[Note] WSREP: Shifting OPEN -> CLOSED (TO: 1)",
		"2025-09-15 12:00:00 0 [Note] WSREP: Shifting CLOSED -> DESTROYED (TO: 2)",
	)
	if len(res.Events) != 1 {
		t.Fatalf("got %d events, want 1 (untimestamped line dropped)", len(res.Events))
	}
}

func TestCredentialsScrubbedFromRaw(t *testing.T) {
	res := extractOne(t,
		"2025-09-15 12:00:00 0 [ERROR] WSREP_SST: wsrep_sst_auth=sstuser:s3cret failed to connect",
	)
	if len(res.Events) == 0 {
		t.Fatal("expected an event")
	}
	for _, ev := range res.Events {
		if strings.Contains(ev.Raw, "s3cret") || strings.Contains(ev.Payload.Get(contracts.FieldMessage), "s3cret") {
			t.Errorf("credential survived extraction: %q", ev.Raw)
		}
	}
}

func TestAllDeterministic(t *testing.T) {
	sources := []*source.Source{
		src("node1",
			"2025-09-15 12:00:00 0 [Note] WSREP: Shifting JOINED -> SYNCED (TO: 10)",
		),
		src("node2",
			"2025-09-15 12:00:01 0 [Note] WSREP: Shifting SYNCED -> DONOR/DESYNCED (TO: 11)",
		),
	}

	first := All(sources, DialectAuto)
	for i := 0; i < 5; i++ {
		again := All(sources, DialectAuto)
		if !reflect.DeepEqual(first, again) {
			t.Fatal("parallel extraction produced differing results")
		}
	}
	if first[0].SourceID != "node1" || first[1].SourceID != "node2" {
		t.Errorf("results out of input order: %s, %s", first[0].SourceID, first[1].SourceID)
	}
}
