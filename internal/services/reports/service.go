// Package reports aggregates grants and risk scores into compliance reports
// and, for rendered formats, hands them to the renderer and artifact store.
package reports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
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

// DefaultURLTTL is how long a signed download link stays valid.
const DefaultURLTTL = 15 * time.Minute

// Repositories groups the stores the aggregator reads from.
type Repositories struct {
	Orgs   ports.OrganizationRepository
	Grants ports.GrantRepository
	Risk   ports.RiskScoreRepository
}

type Service struct {
	repos    Repositories
	renderer ports.Renderer
	store    ports.ArtifactStore
	urlTTL   time.Duration
	clock    clockwork.Clock
	validate *validator.Validate
	log      *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

type Option func(*Service)

func WithClock(c clockwork.Clock) Option { return func(s *Service) { s.clock = c } }
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }
func WithTracer(t trace.Tracer) Option { return func(s *Service) { s.tracer = t } }

// WithRendering enables the pdf format. Without it pdf requests fail upstream.
func WithRendering(r ports.Renderer, store ports.ArtifactStore, ttl time.Duration) Option {
	return func(s *Service) {
		s.renderer, s.store = r, store
		if ttl > 0 {
			s.urlTTL = ttl
		}
	}
}

func New(repos Repositories, opts ...Option) *Service {
	s := &Service{
		repos:    repos,
		urlTTL:   DefaultURLTTL,
		clock:    clockwork.NewRealClock(),
		validate: newValidator(),
		log:      slog.Default(),
		tracer:   otel.Tracer("civicwatch/reports"),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("component", "reports")
	return s
}

// Generate builds the report described by req. Errors are *domain.Error of
// kind validation, not_found or upstream.
func (s *Service) Generate(ctx context.Context, req domain.ReportRequest) (*domain.ReportResult, error) {
	ctx, span := s.tracer.Start(ctx, "reports.Generate", trace.WithAttributes(
		attribute.String("org.id", req.OrgID),
		attribute.String("report.type", string(req.ReportType)),
	))
	defer span.End()

	start := s.clock.Now()
	format := req.Options.Format
	if format == "" {
		format = domain.FormatJSON
	}

	res, err := s.generate(ctx, req, format)
	status := "ok"
	if err != nil {
		status = string(domain.KindOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
	}
	s.metrics.ObserveReport(req.ReportType, format, status, s.clock.Since(start))
	return res, err
}

func (s *Service) generate(ctx context.Context, req domain.ReportRequest, format domain.OutputFormat) (*domain.ReportResult, error) {
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return nil, domain.Validation("generate report", validationMessage(err))
	}

	now := s.clock.Now().UTC()
	year := now.Year()
	if req.Year != nil {
		year = *req.Year
	}

	org, err := s.repos.Orgs.GetOrganization(ctx, req.OrgID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotFound("generate report", req.OrgID, err)
		}
		return nil, domain.Upstream("load organization", req.OrgID, err)
	}
	grants, err := s.repos.Grants.GrantsByRecipient(ctx, req.OrgID)
	if err != nil {
		return nil, domain.Upstream("load grants", req.OrgID, err)
	}
	var (
		risk  *domain.RiskScore
		score domain.RiskScore
		found bool
	)
	if req.Year != nil {
		score, found, err = s.repos.Risk.RiskScoreForYear(ctx, req.OrgID, year)
	} else {
		score, found, err = s.repos.Risk.LatestRiskScore(ctx, req.OrgID)
	}
	if err != nil {
		return nil, domain.Upstream("load risk score", req.OrgID, err)
	}
	if found {
		risk = &score
	}

	includeRecs := req.Options.IncludeRecommendations == nil || *req.Options.IncludeRecommendations
	report := Aggregate(org, grants, risk, includeRecs)
	report.ID = uuid.New().String()
	report.ReportType = req.ReportType
	report.Year = year
	report.GeneratedAt = now
	report.Status = domain.ReportStatusCompleted
	report.Format = format
	report.Options = domain.ReportRenderHint{IncludeVisualizations: req.Options.IncludeVisualizations}

	s.log.Info("report generated", "org_id", req.OrgID, "report_id", report.ID,
		"report_type", req.ReportType, "format", format, "grants", report.Summary.TotalGrants)

	if format != domain.FormatPDF {
		return &domain.ReportResult{Report: report}, nil
	}
	return s.publish(ctx, report)
}

// ArtifactKey is the object key a rendered report is stored under.
func ArtifactKey(orgID, reportID string) string {
	return fmt.Sprintf("reports/%s/%s.pdf", orgID, reportID)
}

func (s *Service) publish(ctx context.Context, report *domain.Report) (*domain.ReportResult, error) {
	if s.renderer == nil || s.store == nil {
		return nil, domain.Upstream("render report", report.OrgID, errors.New("pdf rendering is not configured"))
	}
	pdf, err := s.renderer.Render(ctx, report)
	if err != nil {
		return nil, domain.Upstream("render report", report.OrgID, err)
	}
	key := ArtifactKey(report.OrgID, report.ID)
	if err := s.store.Put(ctx, key, "application/pdf", bytes.NewReader(pdf)); err != nil {
		return nil, domain.Upstream("upload report", report.OrgID, err)
	}
	url, err := s.store.SignedURL(ctx, key, s.urlTTL)
	if err != nil {
		return nil, domain.Upstream("sign report url", report.OrgID, err)
	}
	expires := s.clock.Now().UTC().Add(s.urlTTL)
	s.log.Info("report published", "org_id", report.OrgID, "report_id", report.ID, "key", key, "bytes", len(pdf))
	return &domain.ReportResult{Report: report, DownloadURL: url, ExpiresAt: &expires}, nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationMessage(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", fe.Field())
	case "oneof":
		return fmt.Errorf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "gte", "lte":
		return fmt.Errorf("%s must be between 1900 and 2100", fe.Field())
	default:
		return fmt.Errorf("%s is invalid", fe.Field())
	}
}
