package ports

import (
	"context"
	"time"

	"civicwatch/internal/domain"
)

// OrganizationRepository resolves organizations. GetOrganization returns domain.ErrNotFound
// when no organization has the id.
type OrganizationRepository interface {
	GetOrganization(ctx context.Context, orgID string) (*domain.Organization, error)
	ListOrganizationIDs(ctx context.Context) ([]string, error)
}

// DAFRepository returns the latest n DAF records for an organization, newest year first.
type DAFRepository interface {
	LatestDAF(ctx context.Context, orgID string, n int) ([]domain.DAFRecord, error)
}

// DonorRepository returns donor contributions for one year, largest amount first.
type DonorRepository interface {
	DonorsForYear(ctx context.Context, orgID string, year int) ([]domain.DonorRecord, error)
}

// FilingRepository returns the most recent filing by filing date. found is
// false when the organization has never filed.
type FilingRepository interface {
	LatestFiling(ctx context.Context, orgID string) (rec domain.FilingRecord, found bool, err error)
}

// AlertFilter narrows alert listings.
type AlertFilter struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

// AlertRepository stores alerts.
type AlertRepository interface {
	// CreateUnlessRecent inserts a unless an alert with the same organization
	// and type was created at or after since. created reports whether a row
	// was written. Implementations must make the check and the insert atomic.
	CreateUnlessRecent(ctx context.Context, a *domain.Alert, since time.Time) (created bool, err error)
	ListAlerts(ctx context.Context, orgID string, f AlertFilter) ([]*domain.Alert, error)
	SetAlertRead(ctx context.Context, alertID string, read bool) (*domain.Alert, error)
}

// GrantRepository returns every grant received by an organization.
type GrantRepository interface {
	GrantsByRecipient(ctx context.Context, orgID string) ([]domain.Grant, error)
}

// RiskScoreRepository returns risk scores. found is false when none is
// recorded; LatestRiskScore picks the highest year.
type RiskScoreRepository interface {
	RiskScoreForYear(ctx context.Context, orgID string, year int) (score domain.RiskScore, found bool, err error)
	LatestRiskScore(ctx context.Context, orgID string) (score domain.RiskScore, found bool, err error)
}
