package domain

import (
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// Core domain models. JSON tags are the wire shape served by the API and
// consumed by the report renderer; keep them stable.

type Organization struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	EIN     string  `json:"ein"`
	Mission string  `json:"mission"`
	Website *string `json:"website,omitempty"`
}

// Domain returns the registrable domain (eTLD+1) of the organization's
// website, or "" when no usable website is recorded.
func (o Organization) Domain() string {
	if o.Website == nil {
		return ""
	}
	host := strings.TrimSpace(strings.ToLower(*o.Website))
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	if i := strings.IndexAny(host, "/:?#"); i >= 0 {
		host = host[:i]
	}
	if host == "" {
		return ""
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return registrable
}

// DAFRecord is a yearly donor-advised-fund snapshot.
type DAFRecord struct {
	OrgID              string
	Year               int
	Ratio              float64
	TotalContributions float64
}

// DonorRecord is a single donor's contribution for a year.
type DonorRecord struct {
	OrgID     string
	Year      int
	DonorName string
	Amount    float64
}

// FilingRecord marks a Form 990 filing event.
type FilingRecord struct {
	OrgID      string
	FilingDate time.Time
	TaxYear    int
}

type Grant struct {
	ID             string  `json:"id"`
	DonorID        string  `json:"donor_id"`
	RecipientOrgID string  `json:"recipient_org_id"`
	Amount         float64 `json:"amount"`
	Year           int     `json:"year"`
	Confirmed      bool    `json:"confirmed"`
	SourceFile     *string `json:"source_file"`
}

type RiskScore struct {
	OrgID             string  `json:"org_id"`
	Year              int     `json:"year"`
	Score             float64 `json:"score"`
	DependencyRatio   float64 `json:"dependency_ratio"`
	TransparencyIndex float64 `json:"transparency_index"`
}

// EvaluationJob is a queued request to run alert evaluation for one organization.
type EvaluationJob struct {
	ID         string
	OrgID      string
	Status     string // queued|running|completed|failed
	Attempts   int
	QueuedAt   time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
	LastError  *string
}

const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)
