package ports

import (
	"context"
	"io"
	"time"

	"civicwatch/internal/domain"
)

// Renderer turns a report into a binary artifact (PDF). The layout is owned
// by the rendering service.
type Renderer interface {
	Render(ctx context.Context, r *domain.Report) ([]byte, error)
}

// ArtifactStore uploads rendered artifacts and issues time-limited download URLs.
type ArtifactStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// AuditLogger records security-relevant actions. Best-effort: implementations
// never fail the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, orgID, userID, action, resource, metadata string)
}

// RateLimiter decides whether the caller identified by key may proceed.
type RateLimiter interface {
	Allow(key string) bool
}

// AlertEvaluator runs every alert rule for an organization.
type AlertEvaluator interface {
	EvaluateOrganization(ctx context.Context, orgID string) (domain.Evaluation, error)
}

// ReportGenerator builds compliance reports.
type ReportGenerator interface {
	Generate(ctx context.Context, req domain.ReportRequest) (*domain.ReportResult, error)
}

// Organizations serves organizations and their alerts.
type Organizations interface {
	Get(ctx context.Context, orgID string) (*domain.Organization, error)
	ListAlerts(ctx context.Context, orgID string, f AlertFilter) ([]*domain.Alert, error)
	MarkAlertRead(ctx context.Context, alertID string, read bool) (*domain.Alert, error)
}
