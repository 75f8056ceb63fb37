package domain

import "time"

type CheckOutcome string

const (
	OutcomeCreated    CheckOutcome = "created"
	OutcomeSuppressed CheckOutcome = "suppressed"
	OutcomeNoTrigger  CheckOutcome = "no_trigger"
	OutcomeFailed     CheckOutcome = "failed"
)

// CheckResult is the outcome of one rule for one evaluation run.
type CheckResult struct {
	AlertType AlertType    `json:"alert_type"`
	Outcome   CheckOutcome `json:"outcome"`
	AlertID   string       `json:"alert_id,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// Evaluation summarizes an evaluation run for one organization.
type Evaluation struct {
	OrgID       string        `json:"organization_id"`
	EvaluatedAt time.Time     `json:"evaluated_at"`
	Checks      []CheckResult `json:"checks"`
}

// Count returns how many checks ended with outcome o.
func (e Evaluation) Count(o CheckOutcome) int {
	n := 0
	for _, c := range e.Checks {
		if c.Outcome == o {
			n++
		}
	}
	return n
}
