// Package sanitize scrubs credentials from raw log lines before they are
// surfaced in reports or exported. Galera SST helper invocations echo the
// wsrep_sst_auth user:password pair and full DSNs on the command line, so
// every raw line leaving the extractor passes through Scrub first.
package sanitize

import "regexp"

var (
	// wsrep_sst_auth=user:password (my.cnf dumps and helper argv)
	sstAuthPattern = regexp.MustCompile(`(?i)(wsrep_sst_auth\s*[=:]\s*)\S+`)

	// --auth 'user:pass' / --password 'secret' style helper flags
	authFlagPattern = regexp.MustCompile(`(?i)(--(?:auth|password|passwd)[= ]')[^']*(')`)

	// user:password@host in DSN-shaped strings
	dsnPattern = regexp.MustCompile(`(://[^:/@\s]+):[^@\s]+@`)
)

// Scrub replaces credential material in a line with [REDACTED] while leaving
// the surrounding structure intact.
func Scrub(line string) string {
	line = sstAuthPattern.ReplaceAllString(line, "${1}[REDACTED]")
	line = authFlagPattern.ReplaceAllString(line, "${1}[REDACTED]${2}")
	line = dsnPattern.ReplaceAllString(line, "${1}:[REDACTED]@")
	return line
}
