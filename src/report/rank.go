// Package report renders a completed analysis for operators. The ranking
// half classifies what happened into severities so the text report can lead
// with what matters; the renderers turn the analysis into text or JSON.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"deforest/src/contracts"
	"deforest/src/pipeline"
)

// Severity tiers for run issues.
const (
	SeverityCritical = 1 // split brain, failed transfers
	SeverityWarning  = 2 // unresolved transfers, identity conflicts, orphans
	SeverityInfo     = 3 // completed transfers
)

// Issue is one ranked entry of the report's summary section.
type Issue struct {
	Severity int       `json:"severity"`
	Time     time.Time `json:"time"`
	Summary  string    `json:"summary"`
}

// RankIssues flattens findings, workflows and conflicts into a single list
// sorted by severity, then time.
func RankIssues(a *pipeline.Analysis) []Issue {
	var issues []Issue

	for _, f := range a.Findings {
		nodes := make([]string, 0, len(f.ConflictingViews))
		for node := range f.ConflictingViews {
			nodes = append(nodes, node)
		}
		sort.Strings(nodes)
		issues = append(issues, Issue{
			Severity: SeverityCritical,
			Time:     f.WindowStart,
			Summary: fmt.Sprintf("split brain %s - %s: %s disagree on membership",
				f.WindowStart.Format("15:04:05"), f.WindowEnd.Format("15:04:05"),
				strings.Join(nodes, ", ")),
		})
	}

	for _, wf := range a.Workflows {
		issues = append(issues, workflowIssue(wf))
	}

	for _, id := range a.Identities {
		if !id.Conflict {
			continue
		}
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Time:     id.FirstEvent,
			Summary: fmt.Sprintf("identity conflict: source %s resolved to contested label %q",
				id.SourceID, id.ClaimedName),
		})
	}

	for _, o := range a.Orphans {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Time:     o.Event.Timestamp,
			Summary:  fmt.Sprintf("orphaned evidence on %s: %s", o.Event.SourceID, o.Reason),
		})
	}

	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Severity != issues[j].Severity {
			return issues[i].Severity < issues[j].Severity
		}
		return issues[i].Time.Before(issues[j].Time)
	})
	return issues
}

func workflowIssue(wf *contracts.StateTransferWorkflow) Issue {
	pair := fmt.Sprintf("%s -> %s", wf.Donor, wf.Joiner)
	switch wf.Status {
	case contracts.WorkflowSSTFailed:
		return Issue{SeverityCritical, wf.RequestedAt,
			fmt.Sprintf("state transfer %s failed", pair)}
	case contracts.WorkflowUnresolved:
		return Issue{SeverityWarning, wf.RequestedAt,
			fmt.Sprintf("state transfer %s never completed in the captured logs", pair)}
	case contracts.WorkflowISTCompleted:
		return Issue{SeverityInfo, wf.RequestedAt,
			fmt.Sprintf("incremental transfer %s completed", pair)}
	case contracts.WorkflowSSTSucceeded:
		return Issue{SeverityInfo, wf.RequestedAt,
			fmt.Sprintf("full state transfer %s completed", pair)}
	}
	return Issue{SeverityWarning, wf.RequestedAt,
		fmt.Sprintf("state transfer %s in state %s", pair, wf.Status)}
}
