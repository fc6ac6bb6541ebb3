// Package correlate links the independently logged halves of state-transfer
// operations into workflow records. A request on the joiner and a completion
// on the donor share no identifier in the raw logs; the only join key is the
// unordered node pair plus time proximity.
package correlate

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"deforest/src/contracts"
	"deforest/src/diag"
)

// Correlator tracks at most one open workflow per node pair. Feed events in
// global timestamp order; call Finish once the stream is exhausted.
type Correlator struct {
	sink *diag.Sink
	// Open slot per normalized pair. Cleared the moment a workflow closes,
	// so a later request for the same pair opens a fresh record.
	open    map[string]*contracts.StateTransferWorkflow
	all     []*contracts.StateTransferWorkflow
	orphans []contracts.OrphanEvidence
	seq     int
}

// New builds a correlator reporting orphaned evidence to sink.
func New(sink *diag.Sink) *Correlator {
	return &Correlator{
		sink: sink,
		open: map[string]*contracts.StateTransferWorkflow{},
	}
}

// Run consumes a time-ordered, identity-labeled event stream and returns all
// workflows in creation order plus the evidence that matched none of them.
func (c *Correlator) Run(events []contracts.LogEvent) ([]*contracts.StateTransferWorkflow, []contracts.OrphanEvidence) {
	for _, ev := range events {
		c.Feed(ev)
	}
	return c.Finish()
}

// Feed routes one event into the open workflow set.
func (c *Correlator) Feed(ev contracts.LogEvent) {
	switch ev.Kind {
	case contracts.KindSSTRequest:
		c.onRequest(ev)
	case contracts.KindSSTStatus:
		c.onStatus(ev)
	case contracts.KindISTAsync:
		c.onAsync(ev)
	case contracts.KindISTRange:
		c.onRange(ev)
	}
}

// Finish closes every workflow still open as unresolved and returns the run's
// results. The correlator must not be fed after Finish.
func (c *Correlator) Finish() ([]*contracts.StateTransferWorkflow, []contracts.OrphanEvidence) {
	for _, wf := range c.all {
		if wf.Closed {
			continue
		}
		wf.Status = contracts.WorkflowUnresolved
		c.close(wf)
		if c.sink != nil {
			c.sink.Warn(diag.Warning{
				Kind: diag.KindOrphanEvidence,
				Message: fmt.Sprintf("state transfer %s -> %s requested at %s never completed in the captured logs",
					wf.Donor, wf.Joiner, wf.RequestedAt.Format("2006-01-02 15:04:05")),
				Details: map[string]string{"workflow_id": wf.ID},
			})
		}
	}
	return c.all, c.orphans
}

func (c *Correlator) onRequest(ev contracts.LogEvent) {
	donor := ev.Payload.Get(contracts.FieldDonor)
	joiner := ev.Payload.Get(contracts.FieldJoiner)
	if donor == "" || joiner == "" || donor == joiner {
		c.orphan(ev, "request names an invalid donor/joiner pair")
		return
	}

	key := pairKey(donor, joiner)
	if wf := c.open[key]; wf != nil {
		// Repeat request for an unresolved pair is a continuation, typically
		// an incremental transfer falling back to a full copy.
		wf.PreISTSignals = append(wf.PreISTSignals, ev)
		return
	}

	c.seq++
	wf := &contracts.StateTransferWorkflow{
		ID:          workflowID(donor, joiner, ev.Timestamp, c.seq),
		RequestedAt: ev.Timestamp,
		Joiner:      joiner,
		Donor:       donor,
		Status:      contracts.WorkflowRequested,
		SSTPhase:    contracts.SSTPhase{Status: contracts.SSTUnknown},
	}
	c.open[key] = wf
	c.all = append(c.all, wf)
}

func (c *Correlator) onStatus(ev contracts.LogEvent) {
	status := ev.Payload.Get(contracts.FieldStatus)
	wf := c.matchStatus(ev)
	if wf == nil {
		switch status {
		case "completed", "failed":
			// Both ends of a transfer log the outcome. The first report
			// settles the workflow; the other end's report of the same pair
			// corroborates it and is not an orphan.
			if c.corroborated(ev) {
				return
			}
			c.orphan(ev, "no open state transfer matches this outcome")
		}
		return
	}

	if m := ev.Payload.Get(contracts.FieldMethod); m != "" && wf.Method == "" {
		wf.Method = m
	}

	switch status {
	case "started":
		if wf.SSTPhase.Status == contracts.SSTUnknown {
			wf.SSTPhase = contracts.SSTPhase{Status: contracts.SSTStarted, Timestamp: ev.Timestamp}
		}
		if wf.Status == contracts.WorkflowRequested || wf.Status == contracts.WorkflowISTAttempted {
			wf.Status = contracts.WorkflowSSTStarted
		}
	case "failed":
		wf.SSTPhase = contracts.SSTPhase{Status: contracts.SSTFailed, Timestamp: ev.Timestamp}
		// Failure keeps the slot open: the cluster retries the pair and the
		// retry continues this workflow.
		wf.Status = contracts.WorkflowSSTFailed
	case "completed":
		wf.SSTPhase = contracts.SSTPhase{Status: contracts.SSTSucceeded, Timestamp: ev.Timestamp}
		wf.Status = contracts.WorkflowSSTSucceeded
		c.close(wf)
	}
}

// matchStatus finds the open workflow a status event belongs to. The strong
// form names both ends; the member-indexed form names the reporting node and
// the peer; helper-script lines name only a role and fall back to a search
// over everything the reporting node participates in.
func (c *Correlator) matchStatus(ev contracts.LogEvent) *contracts.StateTransferWorkflow {
	donor := ev.Payload.Get(contracts.FieldDonor)
	joiner := ev.Payload.Get(contracts.FieldJoiner)
	if donor != "" && joiner != "" {
		return c.openFor(donor, joiner, ev.Timestamp)
	}

	local := ev.Node
	if local == "" {
		local = ev.Payload.Get("local")
	}
	peer := ev.Payload.Get(contracts.FieldPeer)
	if local != "" && peer != "" {
		return c.openFor(local, peer, ev.Timestamp)
	}
	return c.searchByNode(local, ev.Payload.Get(contracts.FieldRole), ev.Timestamp)
}

// corroborated reports whether a settled workflow already covers this
// outcome. The closed workflow's pair must match the event's pair; a node's
// involvement in some other transfer never absorbs evidence about a pair
// nothing was ever requested for.
func (c *Correlator) corroborated(ev contracts.LogEvent) bool {
	donor := ev.Payload.Get(contracts.FieldDonor)
	joiner := ev.Payload.Get(contracts.FieldJoiner)
	local := ev.Node
	if local == "" {
		local = ev.Payload.Get("local")
	}
	peer := ev.Payload.Get(contracts.FieldPeer)

	var key string
	switch {
	case donor != "" && joiner != "":
		key = pairKey(donor, joiner)
	case local != "" && peer != "":
		key = pairKey(local, peer)
	case local == "":
		return false
	}
	role := ev.Payload.Get(contracts.FieldRole)

	for i := len(c.all) - 1; i >= 0; i-- {
		wf := c.all[i]
		if !wf.Closed || ev.Timestamp.Before(wf.RequestedAt) {
			continue
		}
		if key != "" {
			if pairKey(wf.Donor, wf.Joiner) == key {
				return true
			}
			continue
		}
		// Role-only lines name just the reporting node; require its role in
		// the settled workflow to match.
		switch role {
		case "donor":
			if wf.Donor == local {
				return true
			}
		case "joiner":
			if wf.Joiner == local {
				return true
			}
		default:
			if wf.Donor == local || wf.Joiner == local {
				return true
			}
		}
	}
	return false
}

func (c *Correlator) onAsync(ev contracts.LogEvent) {
	local := ev.Node
	peer := ev.Payload.Get(contracts.FieldPeer)

	switch ev.Payload.Get(contracts.FieldPhase) {
	case "start":
		// The peer in async sender lines is usually a tcp address, not a
		// node label, so fall back to the sender's own open workflows.
		wf := c.openFor(local, peer, ev.Timestamp)
		if wf == nil {
			wf = c.searchByNode(local, "donor", ev.Timestamp)
		}
		if wf == nil {
			c.orphan(ev, "incremental transfer started with no open request for the pair")
			return
		}
		first, _ := ev.Payload.Int64(contracts.FieldFirstSeqno)
		last, _ := ev.Payload.Int64(contracts.FieldLastSeqno)
		wf.PostIST = &contracts.PostISTPhase{AsyncStart: &contracts.AsyncISTStart{
			Peer:       peer,
			FirstSeqno: first,
			LastSeqno:  last,
			Timestamp:  ev.Timestamp,
		}}
		if wf.Status == contracts.WorkflowRequested {
			wf.Status = contracts.WorkflowISTAttempted
		}
	case "served":
		wf := c.searchAsyncOpen(local, ev.Timestamp)
		if wf == nil {
			c.orphan(ev, "incremental transfer served with no matching start")
			return
		}
		done := ev.Timestamp
		wf.PostIST.CompletedAt = &done
		wf.Status = contracts.WorkflowISTCompleted
		c.close(wf)
	case "failed":
		wf := c.openFor(local, peer, ev.Timestamp)
		if wf == nil {
			wf = c.searchByNode(local, "donor", ev.Timestamp)
		}
		if wf == nil {
			c.orphan(ev, "incremental transfer failed with no open request for the pair")
			return
		}
		// Failed incremental catch-up falls back to a full copy on the same
		// workflow; record the signal and wait for SST evidence.
		wf.PreISTSignals = append(wf.PreISTSignals, ev)
		if wf.Status == contracts.WorkflowISTAttempted {
			wf.Status = contracts.WorkflowRequested
		}
	}
}

// onRange attaches receiver/sender range announcements as pre-transfer
// signals. These are context, not outcomes, so an unmatched one is simply
// left in the event stream.
func (c *Correlator) onRange(ev contracts.LogEvent) {
	role := "joiner"
	if ev.Payload.Get(contracts.FieldRole) == "sender" {
		role = "donor"
	}
	wf := c.searchByNode(ev.Node, role, ev.Timestamp)
	if wf == nil {
		return
	}
	wf.PreISTSignals = append(wf.PreISTSignals, ev)
	if wf.Status == contracts.WorkflowRequested {
		wf.Status = contracts.WorkflowISTAttempted
	}
}

// openFor returns the open workflow for the pair when the event timestamp
// does not precede the request.
func (c *Correlator) openFor(a, b string, at time.Time) *contracts.StateTransferWorkflow {
	if a == "" || b == "" {
		return nil
	}
	wf := c.open[pairKey(a, b)]
	if wf == nil || at.Before(wf.RequestedAt) {
		return nil
	}
	return wf
}

// searchByNode scans open workflows the node participates in (optionally
// constrained by role) and picks the one whose request precedes the event by
// the smallest gap, ties broken by earliest request.
func (c *Correlator) searchByNode(node, role string, at time.Time) *contracts.StateTransferWorkflow {
	if node == "" {
		return nil
	}
	var best *contracts.StateTransferWorkflow
	for _, wf := range c.all {
		if wf.Closed || at.Before(wf.RequestedAt) {
			continue
		}
		switch role {
		case "donor":
			if wf.Donor != node {
				continue
			}
		case "joiner":
			if wf.Joiner != node {
				continue
			}
		default:
			if wf.Donor != node && wf.Joiner != node {
				continue
			}
		}
		// Later request means smaller gap to the event. Equal stamps keep
		// the earlier workflow, since c.all is in creation order.
		if best == nil || wf.RequestedAt.After(best.RequestedAt) {
			best = wf
		}
	}
	return best
}

// searchAsyncOpen finds the open workflow with a started but uncompleted
// incremental phase involving node.
func (c *Correlator) searchAsyncOpen(node string, at time.Time) *contracts.StateTransferWorkflow {
	var best *contracts.StateTransferWorkflow
	for _, wf := range c.all {
		if wf.Closed || wf.PostIST == nil || wf.PostIST.AsyncStart == nil || wf.PostIST.CompletedAt != nil {
			continue
		}
		if at.Before(wf.PostIST.AsyncStart.Timestamp) {
			continue
		}
		if node != "" && wf.Donor != node && wf.Joiner != node {
			continue
		}
		if best == nil || wf.PostIST.AsyncStart.Timestamp.After(best.PostIST.AsyncStart.Timestamp) {
			best = wf
		}
	}
	return best
}

func (c *Correlator) close(wf *contracts.StateTransferWorkflow) {
	wf.Closed = true
	delete(c.open, pairKey(wf.Donor, wf.Joiner))
}

func (c *Correlator) orphan(ev contracts.LogEvent, reason string) {
	c.orphans = append(c.orphans, contracts.OrphanEvidence{Event: ev, Reason: reason})
	if c.sink != nil {
		c.sink.Warn(diag.Warning{
			Kind:    diag.KindOrphanEvidence,
			Message: reason,
			Details: map[string]string{
				"source": ev.SourceID,
				"line":   fmt.Sprintf("%d", ev.Line),
				"time":   ev.Timestamp.Format("2006-01-02 15:04:05"),
			},
		})
	}
}

// pairKey normalizes an unordered node pair into a map key.
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// workflowID derives a stable identifier from the pair and request time, so
// repeated runs over identical input produce identical records.
func workflowID(donor, joiner string, at time.Time, seq int) string {
	name := fmt.Sprintf("%s|%s|%d|%d", donor, joiner, at.Unix(), seq)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}
