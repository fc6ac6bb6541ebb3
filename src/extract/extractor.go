package extract

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"deforest/src/contracts"
	"deforest/src/sanitize"
	"deforest/src/source"
)

// Result is everything the extractor learned from one source: the ordered
// typed event stream plus best-effort identity evidence.
type Result struct {
	SourceID string
	Override string
	Dialect  Dialect
	Events   []contracts.LogEvent
	// Candidate names for the local node, strongest class first.
	Evidence []contracts.IdentityEvidence
	// Node names this source saw in membership lines, sorted.
	VisiblePeers []string
	// Event-time window covered by the source.
	First, Last time.Time
	// Lines mentioning WSREP/IST that matched no pattern.
	UnknownLines int
}

// Extractor turns one source's lines into typed events. Safe for concurrent
// use: all mutable state lives in the per-call run.
type Extractor struct {
	patterns *PatternSet
}

// New builds an extractor for the given dialect. DialectAuto defers detection
// to each source's own content.
func New(dialect Dialect) *Extractor {
	return &Extractor{patterns: NewPatternSet(dialect)}
}

// Extract processes a single source.
func (e *Extractor) Extract(src *source.Source) *Result {
	ps := e.patterns
	if ps.Dialect() == DialectAuto {
		ps = NewPatternSet(DetectDialect(src.Lines))
	}

	run := &extractRun{
		patterns: ps,
		result: &Result{
			SourceID: src.Handle,
			Override: src.Override,
			Dialect:  ps.Dialect(),
		},
		votes: map[string]map[contracts.Confidence]int{},
		peers: map[string]bool{},
	}

	for i, line := range src.Lines {
		run.line(i+1, line)
	}
	run.flushView()

	return run.finish()
}

type pendingView struct {
	timestamp time.Time
	status    string
	viewUUID  string
	seqno     int64
	members   []string
	line      int
	raw       string
}

type extractRun struct {
	patterns *PatternSet
	result   *Result
	now      time.Time
	view     *pendingView
	votes    map[string]map[contracts.Confidence]int
	peers    map[string]bool
}

func (r *extractRun) line(n int, raw string) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return
	}

	if m := r.patterns.timestamp.FindStringSubmatch(line); m != nil {
		r.now = parseTimestamp(m)
	}

	// Membership list entries attach to the pending view and count as peers.
	// Every node's log carries the identical list, so the names are never
	// identity evidence for the local node.
	if m := r.patterns.memberLine.FindStringSubmatch(line); m != nil {
		name := m[3]
		r.peers[name] = true
		if r.view != nil {
			r.view.members = append(r.view.members, name)
		}
		return
	}

	if m := r.patterns.viewHeader.FindStringSubmatch(line); m != nil {
		r.flushView()
		status := "non-primary"
		if strings.EqualFold(m[1], "prim") {
			status = "primary"
		}
		seqno, _ := strconv.ParseInt(m[3], 10, 64)
		r.view = &pendingView{
			timestamp: r.now,
			status:    status,
			viewUUID:  m[2],
			seqno:     seqno,
			line:      n,
			raw:       sanitize.Scrub(line),
		}
		return
	}

	if r.matchStateTransition(n, line) {
		return
	}
	if r.matchSST(n, line) {
		return
	}
	if r.matchIST(n, line) {
		return
	}
	if r.matchCommunication(n, line) {
		return
	}
	if r.patterns.errorLine.MatchString(line) {
		r.emit(n, line, contracts.KindError, contracts.Payload{
			contracts.FieldMessage: sanitize.Scrub(line),
		})
		return
	}
	if r.patterns.warningLine.MatchString(line) {
		r.emit(n, line, contracts.KindWarning, contracts.Payload{
			contracts.FieldMessage: sanitize.Scrub(line),
		})
		return
	}
	if m := r.patterns.serverVersion.FindStringSubmatch(line); m != nil {
		r.emit(n, line, contracts.KindServerInfo, contracts.Payload{
			"version": m[1],
		})
		return
	}

	if r.patterns.wsrepMention.MatchString(line) {
		r.result.UnknownLines++
	}
}

func (r *extractRun) matchStateTransition(n int, line string) bool {
	if m := r.patterns.shifting.FindStringSubmatch(line); m != nil {
		r.emit(n, line, contracts.KindStateTransition, contracts.Payload{
			contracts.FieldFromState: m[1],
			contracts.FieldToState:   m[2],
			contracts.FieldSeqno:     m[3],
		})
		return true
	}
	if m := r.patterns.restored.FindStringSubmatch(line); m != nil {
		r.emit(n, line, contracts.KindStateTransition, contracts.Payload{
			contracts.FieldFromState: m[1],
			contracts.FieldToState:   m[2],
			contracts.FieldSeqno:     m[3],
			"reason":                 "restored",
		})
		return true
	}
	if m := r.patterns.memberSynced.FindStringSubmatch(line); m != nil {
		name := m[2]
		r.peers[name] = true
		r.vote(name, contracts.ConfidenceStatePattern)
		r.emit(n, line, contracts.KindStateTransition, contracts.Payload{
			"name":                 name,
			"member_index":         m[1],
			contracts.FieldToState: "SYNCED",
		})
		return true
	}
	if m := r.patterns.serverSynced.FindStringSubmatch(line); m != nil {
		name := m[1]
		r.vote(name, contracts.ConfidenceSyncPattern)
		r.emit(n, line, contracts.KindStateTransition, contracts.Payload{
			"name":                 name,
			contracts.FieldToState: "SYNCED",
		})
		return true
	}
	return false
}

func (r *extractRun) matchSST(n int, line string) bool {
	if m := r.patterns.sstRequest.FindStringSubmatch(line); m != nil {
		joiner, donor := m[2], m[5]
		r.peers[joiner] = true
		r.peers[donor] = true
		r.emit(n, line, contracts.KindSSTRequest, contracts.Payload{
			contracts.FieldJoiner: joiner,
			contracts.FieldDonor:  donor,
			"joiner_index":        m[1],
			"donor_index":         m[4],
			"requested_from":      m[3],
			"donor_state":         m[6],
		})
		return true
	}

	if m := r.patterns.sstMemberDone.FindStringSubmatch(line); m != nil {
		local, direction, peer, outcome := m[2], m[3], m[5], m[6]
		// The member-indexed prefix names the reporting node itself.
		r.vote(local, contracts.ConfidenceSSTPattern)
		r.peers[peer] = true
		role := "joiner"
		if direction == "to" {
			role = "donor"
		}
		status := "completed"
		if outcome == "failed" {
			status = "failed"
		}
		r.emit(n, line, contracts.KindSSTStatus, contracts.Payload{
			contracts.FieldStatus: status,
			contracts.FieldRole:   role,
			contracts.FieldPeer:   peer,
			"local":               local,
			"direction":           direction,
		})
		return true
	}

	if m := r.patterns.sstPlainDone.FindStringSubmatch(line); m != nil {
		direction, peer, outcome := m[1], m[3], m[4]
		r.peers[peer] = true
		role := "joiner"
		if direction == "to" {
			role = "donor"
		}
		status := "completed"
		if outcome == "failed" {
			status = "failed"
		}
		r.emit(n, line, contracts.KindSSTStatus, contracts.Payload{
			contracts.FieldStatus: status,
			contracts.FieldRole:   role,
			contracts.FieldPeer:   peer,
			"direction":           direction,
		})
		return true
	}

	if m := r.patterns.sstHelper.FindStringSubmatch(line); m != nil {
		status := "started"
		if strings.EqualFold(m[2], "completed") {
			status = "completed"
		}
		r.emit(n, line, contracts.KindSSTStatus, contracts.Payload{
			contracts.FieldStatus: status,
			contracts.FieldRole:   strings.ToLower(m[3]),
			contracts.FieldMethod: strings.ToLower(m[1]),
		})
		return true
	}

	if m := r.patterns.sstFailed.FindStringSubmatch(line); m != nil {
		role := "joiner"
		if strings.EqualFold(m[1], "sending") {
			role = "donor"
		}
		r.emit(n, line, contracts.KindSSTStatus, contracts.Payload{
			contracts.FieldStatus: "failed",
			contracts.FieldRole:   role,
			"error_code":          m[2],
		})
		return true
	}
	return false
}

func (r *extractRun) matchIST(n int, line string) bool {
	if m := r.patterns.istAsyncStart.FindStringSubmatch(line); m != nil {
		payload := contracts.Payload{
			contracts.FieldPhase:      "start",
			contracts.FieldPeer:       m[1],
			contracts.FieldFirstSeqno: m[2],
			contracts.FieldLastSeqno:  m[3],
		}
		if m[4] != "" {
			payload["preload_start"] = m[4]
		}
		r.emit(n, line, contracts.KindISTAsync, payload)
		return true
	}
	if m := r.patterns.istAsyncFailed.FindStringSubmatch(line); m != nil {
		r.emit(n, line, contracts.KindISTAsync, contracts.Payload{
			contracts.FieldPhase: "failed",
			contracts.FieldPeer:  m[1],
			"reason":             sanitize.Scrub(m[2]),
		})
		return true
	}
	if r.patterns.istAsyncServed.MatchString(line) {
		r.emit(n, line, contracts.KindISTAsync, contracts.Payload{
			contracts.FieldPhase: "served",
		})
		return true
	}
	if m := r.patterns.istReceiverPrepared.FindStringSubmatch(line); m != nil {
		r.emit(n, line, contracts.KindISTRange, contracts.Payload{
			contracts.FieldRole:       "receiver",
			contracts.FieldFirstSeqno: m[1],
			contracts.FieldLastSeqno:  m[2],
		})
		return true
	}
	if m := r.patterns.istSenderRange.FindStringSubmatch(line); m != nil {
		r.emit(n, line, contracts.KindISTRange, contracts.Payload{
			contracts.FieldRole:       "sender",
			contracts.FieldFirstSeqno: m[1],
			contracts.FieldLastSeqno:  m[2],
		})
		return true
	}
	if m := r.patterns.istApplying.FindStringSubmatch(line); m != nil {
		r.emit(n, line, contracts.KindISTRange, contracts.Payload{
			contracts.FieldRole:       "receiver",
			contracts.FieldFirstSeqno: m[1],
			contracts.FieldPhase:      "applying",
		})
		return true
	}
	return false
}

func (r *extractRun) matchCommunication(n int, line string) bool {
	if m := r.patterns.abortedConn.FindStringSubmatch(line); m != nil {
		r.emit(n, line, contracts.KindCommunication, contracts.Payload{
			"subtype":              "aborted_connection",
			"connection_id":        m[1],
			contracts.FieldMessage: sanitize.Scrub(line),
		})
		return true
	}
	if m := r.patterns.suspecting.FindStringSubmatch(line); m != nil {
		r.emit(n, line, contracts.KindCommunication, contracts.Payload{
			"subtype":              "suspecting",
			"peer_uuid":            m[1],
			contracts.FieldMessage: sanitize.Scrub(line),
		})
		return true
	}
	if m := r.patterns.connEstab.FindStringSubmatch(line); m != nil {
		r.emit(n, line, contracts.KindCommunication, contracts.Payload{
			"subtype":              "connection_established",
			"peer_uuid":            m[1],
			contracts.FieldMessage: sanitize.Scrub(line),
		})
		return true
	}
	if r.patterns.commGeneric.MatchString(line) {
		r.emit(n, line, contracts.KindCommunication, contracts.Payload{
			"subtype":              "generic",
			contracts.FieldMessage: sanitize.Scrub(line),
		})
		return true
	}
	return false
}

// emit appends a typed event. Lines seen before any timestamp cannot be
// placed on the timeline and are dropped; identity evidence from them is
// still kept.
func (r *extractRun) emit(n int, raw string, kind contracts.EventKind, payload contracts.Payload) {
	if r.now.IsZero() {
		return
	}
	r.result.Events = append(r.result.Events, contracts.LogEvent{
		Timestamp: r.now,
		SourceID:  r.result.SourceID,
		Kind:      kind,
		Payload:   payload,
		Raw:       sanitize.Scrub(raw),
		Line:      n,
	})
	if r.result.First.IsZero() || r.now.Before(r.result.First) {
		r.result.First = r.now
	}
	if r.now.After(r.result.Last) {
		r.result.Last = r.now
	}
}

func (r *extractRun) flushView() {
	if r.view == nil {
		return
	}
	v := r.view
	r.view = nil
	if v.timestamp.IsZero() {
		return
	}
	members := append([]string(nil), v.members...)
	sort.Strings(members)
	r.result.Events = append(r.result.Events, contracts.LogEvent{
		Timestamp: v.timestamp,
		SourceID:  r.result.SourceID,
		Kind:      contracts.KindViewChange,
		Payload: contracts.Payload{
			contracts.FieldViewStatus: v.status,
			contracts.FieldViewUUID:   v.viewUUID,
			contracts.FieldSeqno:      strconv.FormatInt(v.seqno, 10),
			contracts.FieldMembers:    strings.Join(members, ","),
		},
		Raw:  v.raw,
		Line: v.line,
	})
	if r.result.First.IsZero() || v.timestamp.Before(r.result.First) {
		r.result.First = v.timestamp
	}
	if v.timestamp.After(r.result.Last) {
		r.result.Last = v.timestamp
	}
}

func (r *extractRun) vote(name string, c contracts.Confidence) {
	if r.votes[name] == nil {
		r.votes[name] = map[contracts.Confidence]int{}
	}
	r.votes[name][c]++
}

func (r *extractRun) finish() *Result {
	res := r.result

	for name := range r.peers {
		res.VisiblePeers = append(res.VisiblePeers, name)
	}
	sort.Strings(res.VisiblePeers)

	for name, byConf := range r.votes {
		for conf, count := range byConf {
			res.Evidence = append(res.Evidence, contracts.IdentityEvidence{
				Name:       name,
				Confidence: conf,
				Count:      count,
			})
		}
	}
	sort.Slice(res.Evidence, func(i, j int) bool {
		a, b := res.Evidence[i], res.Evidence[j]
		if a.Confidence != b.Confidence {
			return a.Confidence < b.Confidence
		}
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Name < b.Name
	})

	// Events must be ordered by timestamp for downstream consumers, but
	// local non-monotonic stamps are legal. Stable sort keeps line order
	// for ties.
	sort.SliceStable(res.Events, func(i, j int) bool {
		return res.Events[i].Timestamp.Before(res.Events[j].Timestamp)
	})

	return res
}

func parseTimestamp(m []string) time.Time {
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	min, _ := strconv.Atoi(m[5])
	sec, _ := strconv.Atoi(m[6])
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC)
}
