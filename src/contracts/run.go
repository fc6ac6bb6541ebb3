package contracts

import "time"

// RunRecord summarizes one analysis invocation for archival export.
type RunRecord struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Sources    int       `json:"sources"`
	Events     int       `json:"events"`
	Workflows  int       `json:"workflows"`
	Findings   int       `json:"findings"`
	Conflicts  int       `json:"conflicts"`
}
