// Package audit records security-relevant actions taken through the API.
package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"civicwatch/internal/domain"
	"civicwatch/internal/metrics"
)

// SentinelOrgID is recorded for events not tied to an organization.
const SentinelOrgID = "_system"

// Actions written by the API.
const (
	ActionReportGenerated     = "report_generated"
	ActionEvaluationRequested = "evaluation_requested"
	ActionAlertUpdated        = "alert_updated"
)

// Repository persists audit entries.
type Repository interface {
	CreateAuditLog(ctx context.Context, l *domain.AuditLog) error
}

type ipKey struct{}

// WithClientIP returns a context carrying the caller's address for audit entries.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipKey{}, ip)
}

// ClientIP returns the address stored by WithClientIP, or "unknown".
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ipKey{}).(string); ok && ip != "" {
		return ip
	}
	return "unknown"
}

// Logger implements ports.AuditLogger over a Repository.
type Logger struct {
	repo    Repository
	clock   clockwork.Clock
	log     *slog.Logger
	metrics *metrics.Metrics
}

func NewLogger(repo Repository, clock clockwork.Clock, log *slog.Logger, m *metrics.Metrics) *Logger {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Logger{repo: repo, clock: clock, log: log.With("component", "audit"), metrics: m}
}

// LogEvent writes one audit entry. Best-effort: failures are logged and
// counted, never returned.
func (l *Logger) LogEvent(ctx context.Context, orgID, userID, action, resource, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	if orgID == "" {
		orgID = SentinelOrgID
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		OrgID:     orgID,
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		IP:        ClientIP(ctx),
		Metadata:  metadata,
		CreatedAt: l.clock.Now().UTC(),
	}
	if err := l.repo.CreateAuditLog(ctx, entry); err != nil {
		l.metrics.ObserveAuditFailure()
		l.log.Error("failed to write audit entry", "action", action, "resource", resource, "error", err)
	}
}
