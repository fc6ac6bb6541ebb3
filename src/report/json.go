package report

import (
	"encoding/json"
	"io"

	"deforest/src/contracts"
	"deforest/src/extract"
	"deforest/src/pipeline"
)

// JSONRenderer emits the machine-readable report.
type JSONRenderer struct{}

// Document is the top-level JSON report shape.
type Document struct {
	Run          contracts.RunRecord                `json:"run"`
	Health       Health                             `json:"health"`
	Identities   []contracts.NodeIdentity           `json:"identities"`
	Dialects     map[string]extract.Dialect         `json:"dialects,omitempty"`
	UnknownLines map[string]int                     `json:"unknown_lines,omitempty"`
	Workflows    []*contracts.StateTransferWorkflow `json:"workflows"`
	Findings     []contracts.SplitBrainFinding      `json:"findings"`
	Orphans      []contracts.OrphanEvidence         `json:"orphans,omitempty"`
	Histories    map[string][]contracts.ClusterView `json:"view_histories,omitempty"`
	Issues       []Issue                            `json:"issues"`
	Timeline     []contracts.TimelineEntry          `json:"timeline"`
}

func (r *JSONRenderer) Render(w io.Writer, a *pipeline.Analysis) error {
	doc := Document{
		Run:          a.Run,
		Health:       ComputeHealth(a),
		Identities:   a.Identities,
		Dialects:     a.Dialects,
		UnknownLines: a.UnknownLines,
		Workflows:    a.Workflows,
		Findings:     a.Findings,
		Orphans:      a.Orphans,
		Histories:    a.Histories,
		Issues:       RankIssues(a),
	}
	for {
		e, ok := a.Timeline.Next()
		if !ok {
			break
		}
		doc.Timeline = append(doc.Timeline, e)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
