package timeline

import (
	"reflect"
	"testing"
	"time"

	"deforest/src/contracts"
)

func at(h, m, s int) time.Time {
	return time.Date(2024, 3, 10, h, m, s, 0, time.UTC)
}

func sampleEvents() []contracts.LogEvent {
	return []contracts.LogEvent{
		{Timestamp: at(10, 0, 0), Node: "node-a", SourceID: "node-a", Kind: contracts.KindSSTRequest,
			Payload: contracts.Payload{contracts.FieldDonor: "node-b", contracts.FieldJoiner: "node-a"}},
		{Timestamp: at(10, 0, 5), Node: "node-b", SourceID: "node-b", Kind: contracts.KindStateTransition,
			Payload: contracts.Payload{contracts.FieldFromState: "SYNCED", contracts.FieldToState: "DONOR/DESYNCED"}},
		{Timestamp: at(10, 2, 0), Node: "node-a", SourceID: "node-a", Kind: contracts.KindSSTStatus,
			Payload: contracts.Payload{contracts.FieldStatus: "completed", contracts.FieldRole: "joiner"}},
	}
}

func TestEveryEventAppearsExactlyOnce(t *testing.T) {
	events := sampleEvents()
	a := NewAssembler()
	a.AddEvents(events)
	tl := a.Assemble()

	seen := map[int]int{}
	for {
		e, ok := tl.Next()
		if !ok {
			break
		}
		if e.Kind != contracts.EntryEvent || e.Event == nil {
			t.Fatalf("unexpected entry: %+v", e)
		}
		for i := range events {
			if e.Event == &events[i] {
				seen[i]++
			}
		}
	}
	for i := range events {
		if seen[i] != 1 {
			t.Fatalf("event %d appeared %d times", i, seen[i])
		}
	}
}

func TestOrderingByTimestampThenPriority(t *testing.T) {
	wf := &contracts.StateTransferWorkflow{
		RequestedAt: at(10, 0, 0),
		Donor:       "node-b",
		Joiner:      "node-a",
		Status:      contracts.WorkflowSSTSucceeded,
		SSTPhase:    contracts.SSTPhase{Status: contracts.SSTSucceeded, Timestamp: at(10, 2, 0)},
	}
	finding := contracts.SplitBrainFinding{
		WindowStart:      at(10, 0, 0),
		WindowEnd:        at(10, 0, 2),
		ConflictingViews: map[string][]string{"node-a": {"node-a"}, "node-b": {"node-a", "node-b"}},
	}

	a := NewAssembler()
	a.AddEvents(sampleEvents())
	a.AddWorkflows([]*contracts.StateTransferWorkflow{wf})
	a.AddFindings([]contracts.SplitBrainFinding{finding})
	tl := a.Assemble()

	var kinds []contracts.EntryKind
	for {
		e, ok := tl.Next()
		if !ok {
			break
		}
		kinds = append(kinds, e.Kind)
	}

	// At 10:00:00 the finding sorts first, then the workflow request, then
	// the request event. The 10:02:00 tie puts the workflow milestone ahead
	// of the status event.
	want := []contracts.EntryKind{
		contracts.EntryFinding,
		contracts.EntryWorkflow,
		contracts.EntryEvent,
		contracts.EntryEvent,
		contracts.EntryWorkflow,
		contracts.EntryEvent,
	}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("order = %v, want %v", kinds, want)
	}
}

func TestDeterministicAcrossRuns(t *testing.T) {
	build := func() []string {
		a := NewAssembler()
		a.AddEvents(sampleEvents())
		tl := a.Assemble()
		var summaries []string
		for {
			e, ok := tl.Next()
			if !ok {
				break
			}
			summaries = append(summaries, e.Timestamp.Format(time.RFC3339)+" "+e.Summary)
		}
		return summaries
	}

	first := build()
	for i := 0; i < 5; i++ {
		if got := build(); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d diverged: %v vs %v", i, got, first)
		}
	}
}

func TestSinglePassIterator(t *testing.T) {
	a := NewAssembler()
	a.AddEvents(sampleEvents())
	tl := a.Assemble()

	n := 0
	for {
		if _, ok := tl.Next(); !ok {
			break
		}
		n++
	}
	if n != tl.Len() {
		t.Fatalf("iterated %d of %d entries", n, tl.Len())
	}
	if _, ok := tl.Next(); ok {
		t.Fatal("exhausted timeline must stay exhausted")
	}
}
