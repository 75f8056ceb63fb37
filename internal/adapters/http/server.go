package httpadapter

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"civicwatch/internal/auth"
	"civicwatch/internal/metrics"
	"civicwatch/internal/ports"
	"civicwatch/internal/workers/evalrunner"
)

// TokenVerifier validates a bearer token and returns the caller's identity.
type TokenVerifier interface {
	Verify(token string) (userID string, role auth.Role, err error)
}

// Deps are the collaborators the API is served from. Limiter, Audit,
// Metrics, Gatherer and Log are optional.
type Deps struct {
	Organizations ports.Organizations
	Reports       ports.ReportGenerator
	Jobs          ports.JobRepository
	Processor     evalrunner.Processor
	Verifier      TokenVerifier
	Limiter       ports.RateLimiter
	Audit         ports.AuditLogger
	Metrics       *metrics.Metrics
	Gatherer      prometheus.Gatherer
	Log           *slog.Logger
}

type Server struct {
	orgs      ports.Organizations
	reports   ports.ReportGenerator
	jobs      ports.JobRepository
	processor evalrunner.Processor
	verifier  TokenVerifier
	limiter   ports.RateLimiter
	audit     ports.AuditLogger
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
	log       *slog.Logger
}

func New(d Deps) *Server {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	var auditLog ports.AuditLogger = noopAudit{}
	if d.Audit != nil {
		auditLog = d.Audit
	}
	return &Server{
		orgs:      d.Organizations,
		reports:   d.Reports,
		jobs:      d.Jobs,
		processor: d.Processor,
		verifier:  d.Verifier,
		limiter:   d.Limiter,
		audit:     auditLog,
		metrics:   d.Metrics,
		gatherer:  d.Gatherer,
		log:       log.With("component", "http"),
	}
}

// Routes returns the API router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.clientIP)
	r.Use(s.instrument)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.getHealthz)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/organizations/{orgID}", s.getOrganization)
		r.Get("/organizations/{orgID}/alerts", s.listAlerts)
		r.Patch("/alerts/{alertID}", s.patchAlert)
		r.Post("/organizations/{orgID}/evaluations", s.postEvaluation)
		r.Post("/organizations/{orgID}/reports", s.postReport)
	})
	return r
}

func (s *Server) getHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type noopAudit struct{}

func (noopAudit) LogEvent(context.Context, string, string, string, string, string) {}
