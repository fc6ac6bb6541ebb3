// Package clusterview aligns membership snapshots reported by different nodes
// and detects windows where the reports disagree. Node clocks are skewed, so
// views are compared inside a tunable time window; a seqno guard keeps views
// of genuinely different cluster events out of the same comparison.
package clusterview

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"deforest/src/contracts"
	"deforest/src/diag"
)

// Correlator builds per-node membership histories and divergence findings.
type Correlator struct {
	sink        *diag.Sink
	alignWindow time.Duration
	seqnoGap    int64
}

// New builds a correlator. alignWindow bounds how far apart two views may be
// stamped and still describe the same moment; seqnoGap bounds how far apart
// their sequence numbers may be.
func New(sink *diag.Sink, alignWindow time.Duration, seqnoGap int64) *Correlator {
	return &Correlator{sink: sink, alignWindow: alignWindow, seqnoGap: seqnoGap}
}

// Run consumes an identity-labeled event stream and returns each node's
// deduplicated view history plus any divergence findings, ordered by window
// start.
func (c *Correlator) Run(events []contracts.LogEvent) (map[string][]contracts.ClusterView, []contracts.SplitBrainFinding) {
	views := collect(events)

	histories := map[string][]contracts.ClusterView{}
	for _, v := range views {
		hist := histories[v.ReportingNode]
		// Restarts replay the same view line; collapse exact repeats.
		if n := len(hist); n > 0 && hist[n-1].SameContent(v) {
			continue
		}
		histories[v.ReportingNode] = append(hist, v)
	}

	findings := c.detect(views)
	for _, f := range findings {
		c.warn(f)
	}
	return histories, findings
}

// collect pulls view-change events into ClusterView records sorted by
// timestamp, with source order as the tie break.
func collect(events []contracts.LogEvent) []contracts.ClusterView {
	var views []contracts.ClusterView
	for _, ev := range events {
		if ev.Kind != contracts.KindViewChange {
			continue
		}
		node := ev.Node
		if node == "" {
			node = ev.SourceID
		}
		seqno, _ := ev.Payload.Int64(contracts.FieldSeqno)
		var members []string
		if raw := ev.Payload.Get(contracts.FieldMembers); raw != "" {
			members = strings.Split(raw, ",")
			sort.Strings(members)
		}
		views = append(views, contracts.ClusterView{
			Timestamp:     ev.Timestamp,
			ReportingNode: node,
			Members:       members,
			Seqno:         seqno,
			Status:        ev.Payload.Get(contracts.FieldViewStatus),
		})
	}
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].Timestamp.Before(views[j].Timestamp)
	})
	return views
}

// detect slides the alignment window over the sorted views, anchored at each
// view in turn, so any two views within the window of each other end up in
// the same comparison at least once. Inside a window the most recent view per
// node is compared against the others; a divergence whose views were all part
// of an earlier finding is not repeated.
func (c *Correlator) detect(views []contracts.ClusterView) []contracts.SplitBrainFinding {
	var findings []contracts.SplitBrainFinding
	var covered []map[string]bool
	seq := 0

	for start := range views {
		end := start + 1
		for end < len(views) && views[end].Timestamp.Sub(views[start].Timestamp) <= c.alignWindow {
			end++
		}

		for _, group := range c.splitBySeqno(latestPerNode(views[start:end])) {
			f, ok := c.diverged(group, seq)
			if !ok || coveredBy(group, covered) {
				continue
			}
			covered = append(covered, groupSet(group))
			findings = append(findings, f)
			seq++
		}
	}
	return findings
}

func viewKey(v contracts.ClusterView) string {
	return fmt.Sprintf("%s|%d|%d", v.ReportingNode, v.Timestamp.Unix(), v.Seqno)
}

func groupSet(group []contracts.ClusterView) map[string]bool {
	set := make(map[string]bool, len(group))
	for _, v := range group {
		set[viewKey(v)] = true
	}
	return set
}

// coveredBy reports whether every view of the group already appeared in one
// earlier finding. Overlapping windows re-compare the same views with the
// leading nodes dropped; those narrower groups carry no new information.
func coveredBy(group []contracts.ClusterView, covered []map[string]bool) bool {
	for _, set := range covered {
		all := true
		for _, v := range group {
			if !set[viewKey(v)] {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// latestPerNode keeps each node's most recent view inside the bucket, in
// deterministic node order.
func latestPerNode(bucket []contracts.ClusterView) []contracts.ClusterView {
	byNode := map[string]contracts.ClusterView{}
	for _, v := range bucket {
		byNode[v.ReportingNode] = v
	}
	nodes := make([]string, 0, len(byNode))
	for node := range byNode {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	out := make([]contracts.ClusterView, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, byNode[node])
	}
	return out
}

// splitBySeqno partitions views so that no group spans a seqno jump larger
// than the configured gap. The bound is against the group's lowest seqno, not
// the previous view, so a chain of small steps cannot bridge views that are
// collectively further apart than the gap.
func (c *Correlator) splitBySeqno(views []contracts.ClusterView) [][]contracts.ClusterView {
	sorted := append([]contracts.ClusterView(nil), views...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Seqno < sorted[j].Seqno
	})

	var groups [][]contracts.ClusterView
	for _, v := range sorted {
		n := len(groups)
		if n == 0 || v.Seqno-groups[n-1][0].Seqno > c.seqnoGap {
			groups = append(groups, []contracts.ClusterView{v})
			continue
		}
		groups[n-1] = append(groups[n-1], v)
	}
	return groups
}

// diverged reports one finding when at least two nodes in the group disagree
// on membership.
func (c *Correlator) diverged(group []contracts.ClusterView, seq int) (contracts.SplitBrainFinding, bool) {
	if len(group) < 2 {
		return contracts.SplitBrainFinding{}, false
	}

	agree := true
	for _, v := range group[1:] {
		if strings.Join(v.Members, ",") != strings.Join(group[0].Members, ",") {
			agree = false
			break
		}
	}
	if agree {
		return contracts.SplitBrainFinding{}, false
	}

	f := contracts.SplitBrainFinding{
		ConflictingViews: map[string][]string{},
	}
	for _, v := range group {
		if f.WindowStart.IsZero() || v.Timestamp.Before(f.WindowStart) {
			f.WindowStart = v.Timestamp
		}
		if v.Timestamp.After(f.WindowEnd) {
			f.WindowEnd = v.Timestamp
		}
		f.ConflictingViews[v.ReportingNode] = v.Members
	}
	f.ID = findingID(f, seq)
	return f, true
}

func (c *Correlator) warn(f contracts.SplitBrainFinding) {
	if c.sink == nil {
		return
	}
	details := map[string]string{
		"window_start": f.WindowStart.Format("2006-01-02 15:04:05"),
		"window_end":   f.WindowEnd.Format("2006-01-02 15:04:05"),
	}
	for node, members := range f.ConflictingViews {
		details["view_"+node] = strings.Join(members, ",")
	}
	c.sink.Warn(diag.Warning{
		Kind: diag.KindViewDivergence,
		Message: fmt.Sprintf("%d nodes reported conflicting membership between %s and %s",
			len(f.ConflictingViews), f.WindowStart.Format("15:04:05"), f.WindowEnd.Format("15:04:05")),
		Details: details,
	})
}

// findingID derives a stable identifier so repeated runs over identical
// input produce identical findings.
func findingID(f contracts.SplitBrainFinding, seq int) string {
	nodes := make([]string, 0, len(f.ConflictingViews))
	for node := range f.ConflictingViews {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	name := fmt.Sprintf("%d|%s|%d", f.WindowStart.Unix(), strings.Join(nodes, ","), seq)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}
