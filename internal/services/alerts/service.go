package alerts

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"civicwatch/internal/domain"
	"civicwatch/internal/metrics"
	"civicwatch/internal/ports"
)

// DedupWindow is the trailing period in which a second alert of the same
// organization and type is suppressed.
const DedupWindow = 7 * 24 * time.Hour

// Service runs the alert checks for an organization and persists new alerts.
type Service struct {
	orgs    ports.OrganizationRepository
	alerts  ports.AlertRepository
	checks  []Check
	clock   clockwork.Clock
	log     *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Service)

func WithClock(c clockwork.Clock) Option { return func(s *Service) { s.clock = c } }
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }
func WithTracer(t trace.Tracer) Option { return func(s *Service) { s.tracer = t } }
func WithChecks(checks ...Check) Option { return func(s *Service) { s.checks = checks } }

// Sources groups the read-only repositories the default checks need.
type Sources struct {
	DAF     ports.DAFRepository
	Donors  ports.DonorRepository
	Filings ports.FilingRepository
}

// New returns a Service running the three standard checks over src. Use
// WithChecks to replace them.
func New(orgs ports.OrganizationRepository, alerts ports.AlertRepository, src Sources, opts ...Option) *Service {
	s := &Service{
		orgs:   orgs,
		alerts: alerts,
		clock:  clockwork.NewRealClock(),
		log:    slog.Default(),
		tracer: otel.Tracer("civicwatch/alerts"),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("component", "alerts")
	if s.checks == nil {
		s.checks = []Check{
			DAFRatioCheck{Records: src.DAF, Log: s.log},
			DonorConcentrationCheck{Donors: src.Donors, Clock: s.clock},
			MissingFilingCheck{Filings: src.Filings, Clock: s.clock},
		}
	}
	return s
}

// EvaluateOrganization runs every check for orgID. A failing check is logged
// and recorded in the result; it never stops the remaining checks. The only
// errors returned concern resolving the organization itself.
func (s *Service) EvaluateOrganization(ctx context.Context, orgID string) (domain.Evaluation, error) {
	ctx, span := s.tracer.Start(ctx, "alerts.EvaluateOrganization",
		trace.WithAttributes(attribute.String("org.id", orgID)))
	defer span.End()

	start := s.clock.Now()
	defer func() { s.metrics.ObserveEvaluation(s.clock.Since(start)) }()

	eval := domain.Evaluation{OrgID: orgID, EvaluatedAt: start.UTC()}
	if _, err := s.orgs.GetOrganization(ctx, orgID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve organization")
		if errors.Is(err, domain.ErrNotFound) {
			return eval, domain.NotFound("evaluate alerts", orgID, err)
		}
		return eval, domain.Upstream("evaluate alerts", orgID, err)
	}

	for _, c := range s.checks {
		res := s.runCheck(ctx, orgID, c)
		s.metrics.ObserveCheck(res.AlertType, res.Outcome)
		eval.Checks = append(eval.Checks, res)
	}
	span.SetAttributes(
		attribute.Int("alerts.created", eval.Count(domain.OutcomeCreated)),
		attribute.Int("alerts.failed", eval.Count(domain.OutcomeFailed)),
	)
	return eval, nil
}

func (s *Service) runCheck(ctx context.Context, orgID string, c Check) domain.CheckResult {
	res := domain.CheckResult{AlertType: c.Type()}
	log := s.log.With("org_id", orgID, "alert_type", c.Type())

	trig, err := c.Evaluate(ctx, orgID)
	if err != nil {
		log.Warn("alert check failed", "error", err)
		res.Outcome, res.Error = domain.OutcomeFailed, err.Error()
		return res
	}
	if trig == nil {
		res.Outcome = domain.OutcomeNoTrigger
		return res
	}

	now := s.clock.Now().UTC()
	alert := &domain.Alert{
		ID:          uuid.New().String(),
		OrgID:       orgID,
		Type:        c.Type(),
		Severity:    trig.Severity,
		Title:       trig.Title,
		Description: trig.Description,
		Metadata:    trig.Metadata,
		IsRead:      false,
		CreatedAt:   now,
	}
	created, err := s.alerts.CreateUnlessRecent(ctx, alert, now.Add(-DedupWindow))
	if err != nil {
		log.Warn("alert persist failed", "error", err)
		res.Outcome, res.Error = domain.OutcomeFailed, err.Error()
		return res
	}
	if !created {
		log.Debug("alert suppressed inside dedup window")
		res.Outcome = domain.OutcomeSuppressed
		return res
	}
	log.Info("alert created", "alert_id", alert.ID, "severity", alert.Severity)
	res.Outcome, res.AlertID = domain.OutcomeCreated, alert.ID
	return res
}
