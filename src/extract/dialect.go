// Package extract turns raw log lines into the typed event stream consumed by
// the correlation engine. Extraction is a strategy object built from an
// immutable pattern set; there is no global pattern registry.
package extract

import "regexp"

// Dialect identifies the log flavor a source was written in.
type Dialect string

const (
	DialectAuto     Dialect = "auto"
	DialectGalera26 Dialect = "galera-26"
	DialectMariaDB  Dialect = "mariadb-10"
	DialectPXC      Dialect = "pxc-8"
	DialectUnknown  Dialect = "unknown"
)

var (
	pxcHint     = regexp.MustCompile(`(?i)PXC|Percona XtraDB Cluster`)
	galeraHint  = regexp.MustCompile(`(?i)Galera\s+26\.`)
	mariadbHint = regexp.MustCompile(`(?i)Maria(DB)?\s+1[01]\.`)
	wsrepHint   = regexp.MustCompile(`WSREP`)
)

// detectSampleLines is how much of the head of a source is inspected when the
// dialect is auto.
const detectSampleLines = 200

// DetectDialect guesses the dialect from the head of a source.
func DetectDialect(lines []string) Dialect {
	if len(lines) > detectSampleLines {
		lines = lines[:detectSampleLines]
	}
	for _, line := range lines {
		if pxcHint.MatchString(line) {
			return DialectPXC
		}
	}
	for _, line := range lines {
		if galeraHint.MatchString(line) {
			return DialectGalera26
		}
	}
	for _, line := range lines {
		if mariadbHint.MatchString(line) {
			return DialectMariaDB
		}
	}
	for _, line := range lines {
		if wsrepHint.MatchString(line) {
			return DialectGalera26
		}
	}
	return DialectUnknown
}
