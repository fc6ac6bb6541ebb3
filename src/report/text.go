package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"deforest/src/contracts"
	"deforest/src/pipeline"
)

// Renderer writes a completed analysis to w. Rendering drains the timeline;
// a renderer is used once per run.
type Renderer interface {
	Render(w io.Writer, a *pipeline.Analysis) error
}

// New returns the renderer for an output format.
func New(format string) (Renderer, error) {
	switch format {
	case "text":
		return &TextRenderer{}, nil
	case "json":
		return &JSONRenderer{}, nil
	}
	return nil, fmt.Errorf("unknown output format %q (want text or json)", format)
}

// TextRenderer produces the operator-facing plain text report.
type TextRenderer struct{}

func (r *TextRenderer) Render(w io.Writer, a *pipeline.Analysis) error {
	header(w, "CLUSTER ANALYSIS")
	fmt.Fprintf(w, "sources: %d   events: %d   transfers: %d   findings: %d\n",
		a.Run.Sources, a.Run.Events, a.Run.Workflows, a.Run.Findings)
	h := ComputeHealth(a)
	fmt.Fprintf(w, "health: %s   stability: %.1f/100\n", h.Status, h.Score)
	fmt.Fprintf(w, "view changes: %d   transitions: %d   comm issues: %d   errors: %d\n",
		h.ViewChanges, h.StateTransitions, h.CommIssues, h.Errors)

	header(w, "NODES")
	for _, id := range a.Identities {
		flag := ""
		if id.Conflict {
			flag = "   CONFLICT"
		}
		fmt.Fprintf(w, "%-20s -> %-20s (%s)%s\n", id.SourceID, id.ClaimedName, id.Confidence, flag)
		if len(id.VisiblePeers) > 0 {
			fmt.Fprintf(w, "%-20s    saw: %s\n", "", strings.Join(id.VisiblePeers, ", "))
		}
		if d := a.Dialects[id.SourceID]; d != "" {
			extra := ""
			if n := a.UnknownLines[id.SourceID]; n > 0 {
				extra = fmt.Sprintf(", %d unmatched wsrep lines", n)
			}
			fmt.Fprintf(w, "%-20s    dialect: %s%s\n", "", d, extra)
		}
	}

	if issues := RankIssues(a); len(issues) > 0 {
		header(w, "ISSUES")
		for _, issue := range issues {
			fmt.Fprintf(w, "[%s] %s  %s\n", severityLabel(issue.Severity),
				issue.Time.Format("2006-01-02 15:04:05"), issue.Summary)
		}
	}

	if len(a.Workflows) > 0 {
		header(w, "STATE TRANSFERS")
		for _, wf := range a.Workflows {
			r.workflow(w, wf)
		}
	}

	if len(a.Findings) > 0 {
		header(w, "SPLIT BRAIN")
		for _, f := range a.Findings {
			fmt.Fprintf(w, "window %s - %s\n",
				f.WindowStart.Format("2006-01-02 15:04:05"), f.WindowEnd.Format("15:04:05"))
			nodes := make([]string, 0, len(f.ConflictingViews))
			for node := range f.ConflictingViews {
				nodes = append(nodes, node)
			}
			sort.Strings(nodes)
			for _, node := range nodes {
				fmt.Fprintf(w, "  %-20s claims members: %s\n", node, strings.Join(f.ConflictingViews[node], ", "))
			}
		}
	}

	header(w, "TIMELINE")
	for {
		e, ok := a.Timeline.Next()
		if !ok {
			break
		}
		node := e.Node
		if node == "" {
			node = "cluster"
		}
		marker := " "
		if e.Kind == contracts.EntryFinding {
			marker = "!"
		}
		fmt.Fprintf(w, "%s %s  %-20s %s\n", marker, e.Timestamp.Format("2006-01-02 15:04:05"), node, e.Summary)
	}

	return nil
}

func (r *TextRenderer) workflow(w io.Writer, wf *contracts.StateTransferWorkflow) {
	method := wf.Method
	if method == "" {
		method = "unknown method"
	}
	fmt.Fprintf(w, "%s  %s -> %s (%s): %s\n",
		wf.RequestedAt.Format("2006-01-02 15:04:05"), wf.Donor, wf.Joiner, method, wf.Status)
	if wf.SSTPhase.Status != contracts.SSTUnknown {
		fmt.Fprintf(w, "    full copy %s at %s\n", wf.SSTPhase.Status, wf.SSTPhase.Timestamp.Format("15:04:05"))
	}
	if wf.PostIST != nil && wf.PostIST.AsyncStart != nil {
		s := wf.PostIST.AsyncStart
		fmt.Fprintf(w, "    incremental %d..%d to %s at %s\n",
			s.FirstSeqno, s.LastSeqno, s.Peer, s.Timestamp.Format("15:04:05"))
	}
	if len(wf.PreISTSignals) > 0 {
		fmt.Fprintf(w, "    %d earlier signals for this pair\n", len(wf.PreISTSignals))
	}
}

func header(w io.Writer, title string) {
	fmt.Fprintf(w, "\n== %s %s\n", title, strings.Repeat("=", 58-len(title)))
}

func severityLabel(s int) string {
	switch s {
	case SeverityCritical:
		return "CRIT"
	case SeverityWarning:
		return "WARN"
	}
	return "INFO"
}
