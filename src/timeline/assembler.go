// Package timeline merges labeled events, workflow milestones and divergence
// findings into one globally ordered sequence. Timestamps repeat and run
// backwards across sources; ordering is (timestamp, source priority,
// insertion order) so identical input always yields identical output.
package timeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"deforest/src/contracts"
)

// Assembler accumulates entries and produces the final ordered timeline.
type Assembler struct {
	entries []entry
}

type entry struct {
	contracts.TimelineEntry
	priority int
	order    int
}

// NewAssembler returns an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// AddEvents appends every labeled event as a timeline entry. No event is
// dropped or duplicated; untimestamped events never reach this layer.
func (a *Assembler) AddEvents(events []contracts.LogEvent) {
	for i := range events {
		ev := &events[i]
		a.add(contracts.TimelineEntry{
			Timestamp: ev.Timestamp,
			Kind:      contracts.EntryEvent,
			Node:      ev.Node,
			Summary:   eventSummary(ev),
			Event:     ev,
		}, contracts.PriorityEvent)
	}
}

// AddWorkflows appends synthetic milestone entries for each workflow: the
// request, the full-copy phase settling, and the incremental completion,
// each stamped at its own time.
func (a *Assembler) AddWorkflows(workflows []*contracts.StateTransferWorkflow) {
	for _, wf := range workflows {
		a.add(contracts.TimelineEntry{
			Timestamp: wf.RequestedAt,
			Kind:      contracts.EntryWorkflow,
			Node:      wf.Joiner,
			Summary:   fmt.Sprintf("state transfer requested: %s -> %s", wf.Donor, wf.Joiner),
			Workflow:  wf,
		}, contracts.PriorityWorkflow)

		if !wf.SSTPhase.Timestamp.IsZero() {
			a.add(contracts.TimelineEntry{
				Timestamp: wf.SSTPhase.Timestamp,
				Kind:      contracts.EntryWorkflow,
				Node:      wf.Joiner,
				Summary:   sstSummary(wf),
				Workflow:  wf,
			}, contracts.PriorityWorkflow)
		}

		if wf.PostIST != nil && wf.PostIST.CompletedAt != nil {
			a.add(contracts.TimelineEntry{
				Timestamp: *wf.PostIST.CompletedAt,
				Kind:      contracts.EntryWorkflow,
				Node:      wf.Joiner,
				Summary:   fmt.Sprintf("incremental transfer completed: %s -> %s", wf.Donor, wf.Joiner),
				Workflow:  wf,
			}, contracts.PriorityWorkflow)
		}
	}
}

// AddFindings appends divergence findings at their window start. Findings
// sort ahead of everything else at the same instant.
func (a *Assembler) AddFindings(findings []contracts.SplitBrainFinding) {
	for i := range findings {
		f := &findings[i]
		nodes := make([]string, 0, len(f.ConflictingViews))
		for node := range f.ConflictingViews {
			nodes = append(nodes, node)
		}
		sort.Strings(nodes)
		a.add(contracts.TimelineEntry{
			Timestamp: f.WindowStart,
			Kind:      contracts.EntryFinding,
			Summary:   fmt.Sprintf("split brain: conflicting membership reported by %s", strings.Join(nodes, ", ")),
			Finding:   f,
		}, contracts.PriorityFinding)
	}
}

func (a *Assembler) add(te contracts.TimelineEntry, priority int) {
	a.entries = append(a.entries, entry{
		TimelineEntry: te,
		priority:      priority,
		order:         len(a.entries),
	})
}

// Assemble sorts the accumulated entries and returns a single-pass iterator.
// The assembler must not be modified afterwards.
func (a *Assembler) Assemble() *Timeline {
	sort.SliceStable(a.entries, func(i, j int) bool {
		x, y := a.entries[i], a.entries[j]
		if !x.Timestamp.Equal(y.Timestamp) {
			return x.Timestamp.Before(y.Timestamp)
		}
		if x.priority != y.priority {
			return x.priority < y.priority
		}
		return x.order < y.order
	})
	return &Timeline{entries: a.entries}
}

// Timeline is the ordered result. Next yields entries once each; the
// sequence is finite and not restartable.
type Timeline struct {
	entries []entry
	pos     int
}

// Next returns the next entry, or false when the timeline is exhausted.
func (t *Timeline) Next() (contracts.TimelineEntry, bool) {
	if t.pos >= len(t.entries) {
		return contracts.TimelineEntry{}, false
	}
	e := t.entries[t.pos]
	t.pos++
	return e.TimelineEntry, true
}

// Len reports the total number of entries.
func (t *Timeline) Len() int {
	return len(t.entries)
}

// Span returns the first and last entry timestamps, or zero times when empty.
func (t *Timeline) Span() (time.Time, time.Time) {
	if len(t.entries) == 0 {
		return time.Time{}, time.Time{}
	}
	return t.entries[0].Timestamp, t.entries[len(t.entries)-1].Timestamp
}

func eventSummary(ev *contracts.LogEvent) string {
	switch ev.Kind {
	case contracts.KindStateTransition:
		from := ev.Payload.Get(contracts.FieldFromState)
		to := ev.Payload.Get(contracts.FieldToState)
		if from == "" {
			if name := ev.Payload.Get("name"); name != "" {
				return fmt.Sprintf("%s reached %s", name, to)
			}
			return "reached " + to
		}
		return fmt.Sprintf("shifted %s to %s", from, to)
	case contracts.KindViewChange:
		return fmt.Sprintf("new %s view, members: %s",
			ev.Payload.Get(contracts.FieldViewStatus), ev.Payload.Get(contracts.FieldMembers))
	case contracts.KindSSTRequest:
		return fmt.Sprintf("requested state transfer from %s", ev.Payload.Get(contracts.FieldDonor))
	case contracts.KindSSTStatus:
		return fmt.Sprintf("state transfer %s (%s)",
			ev.Payload.Get(contracts.FieldStatus), ev.Payload.Get(contracts.FieldRole))
	case contracts.KindISTRange:
		return fmt.Sprintf("incremental range %s..%s (%s)",
			ev.Payload.Get(contracts.FieldFirstSeqno), ev.Payload.Get(contracts.FieldLastSeqno),
			ev.Payload.Get(contracts.FieldRole))
	case contracts.KindISTAsync:
		return "incremental transfer " + ev.Payload.Get(contracts.FieldPhase)
	case contracts.KindCommunication:
		return ev.Payload.Get(contracts.FieldMessage)
	case contracts.KindServerInfo:
		return "server version " + ev.Payload.Get("version")
	}
	if msg := ev.Payload.Get(contracts.FieldMessage); msg != "" {
		return msg
	}
	return string(ev.Kind)
}

func sstSummary(wf *contracts.StateTransferWorkflow) string {
	verb := map[contracts.SSTPhaseStatus]string{
		contracts.SSTStarted:   "started",
		contracts.SSTFailed:    "failed",
		contracts.SSTSucceeded: "completed",
	}[wf.SSTPhase.Status]
	if verb == "" {
		verb = string(wf.SSTPhase.Status)
	}
	return fmt.Sprintf("full state transfer %s: %s -> %s", verb, wf.Donor, wf.Joiner)
}
