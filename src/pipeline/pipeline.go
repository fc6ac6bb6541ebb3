// Package pipeline runs the full analysis: load sources, extract per-source
// events in parallel, then resolve identities, correlate transfers and views,
// and assemble the timeline over the merged stream. Everything after
// extraction is sequential; conflicts and divergence are only detectable
// with the complete picture.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"deforest/src/broker"
	"deforest/src/clusterview"
	"deforest/src/config"
	"deforest/src/contracts"
	"deforest/src/correlate"
	"deforest/src/diag"
	"deforest/src/extract"
	"deforest/src/identity"
	"deforest/src/logger"
	"deforest/src/source"
	"deforest/src/store"
	"deforest/src/timeline"
)

// Analysis is the complete result of one run.
type Analysis struct {
	Run        contracts.RunRecord
	Identities []contracts.NodeIdentity
	// Merged, labeled, time-ordered event stream.
	Events    []contracts.LogEvent
	Workflows []*contracts.StateTransferWorkflow
	Orphans   []contracts.OrphanEvidence
	Histories map[string][]contracts.ClusterView
	Findings  []contracts.SplitBrainFinding
	Timeline  *timeline.Timeline
	// Detected dialect and unmatched WSREP line count per source.
	Dialects     map[string]extract.Dialect
	UnknownLines map[string]int
}

// Run executes the pipeline over the given sources. pub may be nil; when set,
// findings and the run summary are published best-effort. log may be nil.
func Run(ctx context.Context, cfg *config.Config, sources []*source.Source, sink *diag.Sink, pub broker.Broker, log logger.Logger) (*Analysis, error) {
	if log == nil {
		log = logger.NewSilentLogger()
	}
	if len(sources) == 0 {
		return nil, &source.UserError{
			Message: "no log sources supplied",
			Hint:    "pass one collected error log per node, or label:path mappings via --node",
			Err:     source.ErrNoSources,
		}
	}

	started := time.Now()
	results := extract.All(sources, extract.Dialect(cfg.Dialect))

	resolver := identity.NewResolver(sink)
	identities := resolver.Resolve(results)

	events := merge(results)
	events = identity.Label(events, identities)
	log.Debug("extracted %d events from %d sources", len(events), len(sources))

	workflows, orphans := correlate.New(sink).Run(events)
	histories, findings := clusterview.New(sink, cfg.AlignWindow, cfg.SeqnoGap).Run(events)
	log.Debug("correlated %d transfers (%d orphans), %d divergence findings",
		len(workflows), len(orphans), len(findings))

	asm := timeline.NewAssembler()
	asm.AddEvents(events)
	asm.AddWorkflows(workflows)
	asm.AddFindings(findings)

	a := &Analysis{
		Identities:   identities,
		Events:       events,
		Workflows:    workflows,
		Orphans:      orphans,
		Histories:    histories,
		Findings:     findings,
		Timeline:     asm.Assemble(),
		Dialects:     map[string]extract.Dialect{},
		UnknownLines: map[string]int{},
	}
	for _, res := range results {
		a.Dialects[res.SourceID] = res.Dialect
		if res.UnknownLines > 0 {
			a.UnknownLines[res.SourceID] = res.UnknownLines
		}
	}

	conflicts := 0
	for _, id := range identities {
		if id.Conflict {
			conflicts++
		}
	}
	a.Run = contracts.RunRecord{
		ID:         uuid.NewString(),
		StartedAt:  started,
		FinishedAt: time.Now(),
		Sources:    len(sources),
		Events:     len(events),
		Workflows:  len(workflows),
		Findings:   len(findings),
		Conflicts:  conflicts,
	}

	if pub != nil {
		publish(ctx, pub, a)
	}
	return a, nil
}

// merge flattens per-source event streams into one timestamp-ordered slice.
// The stable sort keeps source input order and line order on equal stamps,
// which is what makes repeated runs byte-identical.
func merge(results []*extract.Result) []contracts.LogEvent {
	total := 0
	for _, res := range results {
		total += len(res.Events)
	}
	events := make([]contracts.LogEvent, 0, total)
	for _, res := range results {
		events = append(events, res.Events...)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events
}

// publish sends findings and the run summary outbound. Failures are ignored;
// a dead broker must not fail the analysis.
func publish(ctx context.Context, pub broker.Broker, a *Analysis) {
	for i := range a.Findings {
		if data, err := json.Marshal(&a.Findings[i]); err == nil {
			_ = pub.Publish(ctx, broker.TopicFindings, a.Findings[i].ID, data)
		}
	}
	if data, err := json.Marshal(&a.Run); err == nil {
		_ = pub.Publish(ctx, broker.TopicFindings, a.Run.ID, data)
	}
}

// Export archives the run to st. The run record goes first so the per-item
// rows can reference it.
func Export(ctx context.Context, st store.Store, a *Analysis) error {
	if err := st.SaveRun(ctx, &a.Run); err != nil {
		return fmt.Errorf("export run: %w", err)
	}
	for i := range a.Identities {
		if err := st.SaveIdentity(ctx, a.Run.ID, &a.Identities[i]); err != nil {
			return err
		}
	}
	for _, wf := range a.Workflows {
		if err := st.SaveWorkflow(ctx, a.Run.ID, wf); err != nil {
			return err
		}
	}
	for i := range a.Findings {
		if err := st.SaveFinding(ctx, a.Run.ID, &a.Findings[i]); err != nil {
			return err
		}
	}
	return nil
}
