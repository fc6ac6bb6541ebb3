package extract

import "regexp"

// PatternSet is the immutable, precompiled pattern configuration for one
// extractor. Construct with NewPatternSet; never mutate afterwards.
type PatternSet struct {
	dialect Dialect

	// Timestamps. Both the classic "2025-09-15 13:45:56" form and the
	// ISO8601 form PXC 8 writes are accepted by every dialect.
	timestamp *regexp.Regexp

	// Membership / view patterns.
	viewHeader *regexp.Regexp
	memberLine *regexp.Regexp

	// State transitions.
	shifting     *regexp.Regexp
	restored     *regexp.Regexp
	memberSynced *regexp.Regexp
	serverSynced *regexp.Regexp

	// SST.
	sstRequest    *regexp.Regexp
	sstMemberDone *regexp.Regexp
	sstPlainDone  *regexp.Regexp
	sstHelper     *regexp.Regexp
	sstFailed     *regexp.Regexp

	// IST.
	istReceiverPrepared *regexp.Regexp
	istSenderRange      *regexp.Regexp
	istApplying         *regexp.Regexp
	istAsyncStart       *regexp.Regexp
	istAsyncServed      *regexp.Regexp
	istAsyncFailed      *regexp.Regexp

	// Communication.
	abortedConn *regexp.Regexp
	suspecting  *regexp.Regexp
	connEstab   *regexp.Regexp
	commGeneric *regexp.Regexp

	// Severity and server info.
	errorLine     *regexp.Regexp
	warningLine   *regexp.Regexp
	serverVersion *regexp.Regexp
	wsrepMention  *regexp.Regexp
}

// NewPatternSet compiles the pattern configuration for a dialect. The sets
// currently differ only in provenance; keeping the dialect on the set leaves
// room for flavor-specific lines without global state.
func NewPatternSet(dialect Dialect) *PatternSet {
	return &PatternSet{
		dialect: dialect,

		timestamp: regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})[T ]\s?(\d{1,2}):(\d{2}):(\d{2})`),

		// view(view_id(PRIM,8f630d8f,5) ...
		viewHeader: regexp.MustCompile(`view\(view_id\((\w+),([^,)]+),(\d+)\)`),
		//   0: 8f630d8f-9d1a-11eb-8b2f-aa01aa9a9df2, db-prod-01
		memberLine: regexp.MustCompile(`^\s*-?\s*(\d+):\s*([0-9a-f-]{8,}),\s*([A-Za-z0-9._-]+)\s*$`),

		// Shifting SYNCED -> DONOR/DESYNCED (TO: 1625)
		shifting: regexp.MustCompile(`(?i)Shifting\s+([A-Z/\-]+)\s*->\s*([A-Z/\-]+)\s*\(TO:\s*(-?\d+)\)`),
		// Restored state OPEN -> JOINED (12345)
		restored: regexp.MustCompile(`(?i)Restored\s+state\s+([A-Z/\-]+)\s*->\s*([A-Z/\-]+)\s*\((-?\d+)\)`),
		// Member 0.1 (db-prod-01) synced with group.
		memberSynced: regexp.MustCompile(`Member\s+(\d+\.\d+)\s+\(([^)]+)\)\s+synced with group`),
		// Server db-prod-01 synced with group
		serverSynced: regexp.MustCompile(`Server\s+([A-Za-z0-9._-]+)\s+synced with group`),

		// Member 1.1 (db-prod-02) requested state transfer from '*any*'.
		// Selected 0.1 (db-prod-01)(SYNCED) as donor.
		sstRequest: regexp.MustCompile(`Member\s+(\d+\.\d+)\s+\(([^)]+)\)\s+requested state transfer from\s+'([^']+)'\.\s+Selected\s+(\d+\.\d+)\s+\(([^)]+)\)\(([^)]+)\)\s+as donor`),
		// 0.1 (db-prod-01): State transfer to 1.1 (db-prod-02) complete.
		// The prefix names the reporting node directly.
		sstMemberDone: regexp.MustCompile(`(\d+\.\d+)\s+\(([^)]+)\):\s+State transfer (to|from)\s+(\d+\.\d+)\s+\(([^)]+)\)\s+(complete|failed)`),
		// State transfer to 1.1 (db-prod-02) complete.
		sstPlainDone: regexp.MustCompile(`State transfer (to|from)\s+(\d+\.\d+)\s+\(([^)]+)\)\s+(complete|failed)`),
		// WSREP_SST: [INFO] mariabackup SST started on donor (20250915 13:45:56.276)
		sstHelper: regexp.MustCompile(`(?i)WSREP_SST:\s+\[INFO\]\s+(\w+)\s+SST\s+(started|completed)\s+on\s+(donor|joiner)`),
		// SST sending failed: -32
		sstFailed: regexp.MustCompile(`(?i)SST\s+(sending|receiving)\s+failed:\s*(-?\d+)`),

		istReceiverPrepared: regexp.MustCompile(`(?i)Prepared\s+IST\s+receiver\s+for\s+(-?\d+)\s*-\s*(-?\d+)`),
		istSenderRange:      regexp.MustCompile(`(?i)IST\s+sender\s+(-?\d+)\s*->\s*(-?\d+)`),
		istApplying:         regexp.MustCompile(`(?i)IST\s+applying\s+starts\s+with\s+(-?\d+)`),
		istAsyncStart:       regexp.MustCompile(`(?i)async\s+IST\s+sender\s+starting\s+to\s+serve\s+(\S+)\s+sending\s+(-?\d+)\s*-\s*(-?\d+)(?:,\s+preload\s+starts\s+from\s+(-?\d+))?`),
		istAsyncServed:      regexp.MustCompile(`(?i)async\s+IST\s+sender\s+served`),
		istAsyncFailed:      regexp.MustCompile(`(?i)async\s+IST\s+sender\s+failed\s+to\s+serve\s+(\S+):\s+(.+)`),

		abortedConn: regexp.MustCompile(`(?i)Aborted\s+connection\s+(\d+)\s+to\s+db:`),
		suspecting:  regexp.MustCompile(`(?i)suspecting node:\s*([0-9a-f-]+)`),
		connEstab:   regexp.MustCompile(`(?i)connection established to\s+([0-9a-f-]+)`),
		commGeneric: regexp.MustCompile(`(?i)timeout|failed to connect|connection.*lost|handshake.*failed|declaring inactive`),

		errorLine:     regexp.MustCompile(`\[ERROR\]|\bFATAL\b`),
		warningLine:   regexp.MustCompile(`\[Warning\]|\bWARNING\b`),
		serverVersion: regexp.MustCompile(`(?i)(?:Server\s+version|Version):\s*'?([0-9][^'\s]*)`),
		wsrepMention:  regexp.MustCompile(`(?i)WSREP|IST`),
	}
}

// Dialect returns the dialect the set was built for.
func (p *PatternSet) Dialect() Dialect {
	return p.dialect
}
