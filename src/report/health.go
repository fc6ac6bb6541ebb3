package report

import (
	"deforest/src/contracts"
	"deforest/src/pipeline"
)

// Health condenses how turbulent the captured window was into one score.
// The score starts at 100 and loses capped points per instability class, so
// a single noisy class cannot drag an otherwise healthy cluster to zero.
type Health struct {
	Score            float64 `json:"stability_score"`
	Status           string  `json:"health_status"`
	ViewChanges      int     `json:"view_changes"`
	StateTransitions int     `json:"state_transitions"`
	SSTEvents        int     `json:"sst_events"`
	ISTEvents        int     `json:"ist_events"`
	CommIssues       int     `json:"communication_issues"`
	Warnings         int     `json:"warnings"`
	Errors           int     `json:"errors"`
}

// ComputeHealth tallies the analysis events and derives the stability score.
func ComputeHealth(a *pipeline.Analysis) Health {
	var h Health
	for _, ev := range a.Events {
		switch ev.Kind {
		case contracts.KindViewChange:
			h.ViewChanges++
		case contracts.KindStateTransition:
			h.StateTransitions++
		case contracts.KindSSTRequest, contracts.KindSSTStatus:
			h.SSTEvents++
		case contracts.KindISTAsync, contracts.KindISTRange:
			h.ISTEvents++
		case contracts.KindCommunication:
			h.CommIssues++
		case contracts.KindWarning:
			h.Warnings++
		case contracts.KindError:
			h.Errors++
		}
	}

	score := 100.0
	score -= min(float64(h.ViewChanges)*5, 30)
	score -= min(float64(h.StateTransitions)*2, 20)
	score -= min(float64(h.CommIssues)*10, 25)
	score -= min(float64(h.Errors)*15, 25)
	h.Score = max(score, 0)
	h.Status = healthStatus(h.Score)
	return h
}

func healthStatus(score float64) string {
	switch {
	case score >= 90:
		return "Excellent"
	case score >= 75:
		return "Good"
	case score >= 60:
		return "Fair"
	case score >= 40:
		return "Poor"
	}
	return "Critical"
}
