// Package identity assigns the final node label to each log source.
//
// The extractor only guesses; this resolver combines per-source evidence with
// operator overrides and global context, and is the single place a label is
// assigned. Conflicts are surfaced, never silently broken by confidence
// comparison: picking a "winner" here could misattribute which node donated
// state to which.
package identity

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"deforest/src/contracts"
	"deforest/src/diag"
	"deforest/src/extract"
)

// Resolver performs the one-shot identity resolution for a run.
type Resolver struct {
	sink *diag.Sink
}

// NewResolver builds a resolver reporting conflicts to sink.
func NewResolver(sink *diag.Sink) *Resolver {
	return &Resolver{sink: sink}
}

// Resolve assigns one label per source, in input order.
//
// Precedence per source: explicit override, then state-transfer naming
// evidence, then sync evidence, then the most repeated aggregated name, then
// the source handle. After assignment, sources sharing a label with
// overlapping event windows are flagged as conflicts.
func (r *Resolver) Resolve(results []*extract.Result) []contracts.NodeIdentity {
	identities := make([]contracts.NodeIdentity, len(results))

	for i, res := range results {
		identities[i] = resolveOne(res)
	}

	r.detectConflicts(results, identities)

	return identities
}

func resolveOne(res *extract.Result) contracts.NodeIdentity {
	id := contracts.NodeIdentity{
		SourceID:     res.SourceID,
		VisiblePeers: res.VisiblePeers,
		FirstEvent:   res.First,
		LastEvent:    res.Last,
	}

	if res.Override != "" {
		id.ClaimedName = res.Override
		id.Confidence = contracts.ConfidenceExplicit
		return id
	}

	// Evidence is sorted by confidence class, then occurrence count, so the
	// head is the winner when any evidence exists at all.
	if len(res.Evidence) > 0 {
		best := res.Evidence[0]
		id.ClaimedName = best.Name
		id.Confidence = best.Confidence
		return id
	}

	id.ClaimedName = res.SourceID
	id.Confidence = contracts.ConfidenceFilename
	return id
}

// detectConflicts flags every source whose label is shared with another
// source over an overlapping event window and emits one warning per label.
func (r *Resolver) detectConflicts(results []*extract.Result, identities []contracts.NodeIdentity) {
	byLabel := map[string][]int{}
	for i, id := range identities {
		byLabel[id.ClaimedName] = append(byLabel[id.ClaimedName], i)
	}

	labels := make([]string, 0, len(byLabel))
	for label := range byLabel {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		group := byLabel[label]
		if len(group) < 2 {
			continue
		}

		var conflicted []int
		for _, i := range group {
			for _, j := range group {
				if i != j && identities[i].Overlaps(identities[j]) {
					conflicted = append(conflicted, i)
					break
				}
			}
		}
		if len(conflicted) < 2 {
			// Disjoint windows: the same node restarted into a new log
			// file, not two nodes claiming one name.
			continue
		}

		for _, i := range conflicted {
			identities[i].Conflict = true
		}

		r.warnConflict(label, conflicted, results, identities)
	}
}

func (r *Resolver) warnConflict(label string, conflicted []int, results []*extract.Result, identities []contracts.NodeIdentity) {
	if r.sink == nil {
		return
	}

	var sources []string
	start, end := time.Time{}, time.Time{}
	for _, i := range conflicted {
		sources = append(sources, identities[i].SourceID)
		if start.IsZero() || identities[i].FirstEvent.After(start) {
			start = identities[i].FirstEvent
		}
		if end.IsZero() || identities[i].LastEvent.Before(end) {
			end = identities[i].LastEvent
		}
	}

	details := map[string]string{
		"label":        label,
		"sources":      strings.Join(sources, ", "),
		"overlap_from": start.Format("2006-01-02 15:04:05"),
		"overlap_to":   end.Format("2006-01-02 15:04:05"),
	}
	for n, s := range suggestOverrides(label, conflicted, results) {
		details[fmt.Sprintf("suggested_override_%d", n+1)] = s
	}

	r.sink.Warn(diag.Warning{
		Kind: diag.KindIdentityConflict,
		Message: fmt.Sprintf("%d sources resolved to %q with overlapping time windows; events from these sources are tagged and may be misattributed",
			len(conflicted), label),
		Details: details,
	})
}

// suggestOverrides proposes --node mappings the operator can rerun with.
// The first source keeps the contested label; the rest are offered the
// visible peers nobody resolved to.
func suggestOverrides(label string, conflicted []int, results []*extract.Result) []string {
	taken := map[string]bool{label: true}
	var unclaimed []string
	seen := map[string]bool{}
	for _, i := range conflicted {
		for _, peer := range results[i].VisiblePeers {
			if !taken[peer] && !seen[peer] {
				seen[peer] = true
				unclaimed = append(unclaimed, peer)
			}
		}
	}
	sort.Strings(unclaimed)

	suggestions := []string{fmt.Sprintf("--node %s:%s", label, results[conflicted[0]].SourceID)}
	for n, i := range conflicted[1:] {
		if n < len(unclaimed) {
			suggestions = append(suggestions, fmt.Sprintf("--node %s:%s", unclaimed[n], results[i].SourceID))
		}
	}
	return suggestions
}

// Label applies resolved identities to an event stream: every event gets its
// source's final label and, for conflicting sources, the conflict tag.
// Returns the same slice for convenience.
func Label(events []contracts.LogEvent, identities []contracts.NodeIdentity) []contracts.LogEvent {
	byID := map[string]contracts.NodeIdentity{}
	for _, id := range identities {
		byID[id.SourceID] = id
	}
	for i := range events {
		if id, ok := byID[events[i].SourceID]; ok {
			events[i].Node = id.ClaimedName
			events[i].IdentityConflict = id.Conflict
		}
	}
	return events
}
