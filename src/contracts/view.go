package contracts

import "time"

// ClusterView is one membership snapshot as reported by a single node.
type ClusterView struct {
	Timestamp     time.Time `json:"timestamp"`
	ReportingNode string    `json:"reporting_node"`
	// Member node labels, sorted.
	Members []string `json:"members"`
	Seqno   int64    `json:"seqno"`
	// primary or non-primary.
	Status string `json:"status,omitempty"`
}

// SameContent reports whether two views carry identical membership data,
// independent of the reporting node.
func (v ClusterView) SameContent(other ClusterView) bool {
	if !v.Timestamp.Equal(other.Timestamp) || v.Seqno != other.Seqno {
		return false
	}
	if len(v.Members) != len(other.Members) {
		return false
	}
	for i := range v.Members {
		if v.Members[i] != other.Members[i] {
			return false
		}
	}
	return true
}

// SplitBrainFinding records a window in which two or more nodes reported
// mutually inconsistent membership views. Derived, never mutated.
type SplitBrainFinding struct {
	ID          string    `json:"id"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	// Reporting node label -> member set it claimed.
	ConflictingViews map[string][]string `json:"conflicting_views"`
}
