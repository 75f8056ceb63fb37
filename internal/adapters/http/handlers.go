package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"civicwatch/internal/audit"
	"civicwatch/internal/domain"
	"civicwatch/internal/platform/rbac"
	"civicwatch/internal/ports"
	"civicwatch/internal/services/organizations"
	"civicwatch/internal/workers/evalrunner"
)

const (
	defaultWaitTimeout = 30 * time.Second
	maxWaitTimeout     = 2 * time.Minute
	maxBodyBytes       = 1 << 20
)

type organizationView struct {
	*domain.Organization
	Domain string `json:"domain,omitempty"`
}

type alertList struct {
	Alerts []*domain.Alert `json:"alerts"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type alertPatch struct {
	IsRead *bool `json:"is_read"`
}

type evaluationAccepted struct {
	JobID string `json:"job_id"`
}

type evaluationCompleted struct {
	JobID      string            `json:"job_id"`
	Evaluation domain.Evaluation `json:"evaluation"`
}

type listAlertsParams struct {
	Unread *bool
	Limit  *int
	Offset *int
}

type evaluationParams struct {
	Wait    *bool
	Timeout *int
}

func pathParam(r *http.Request, name string) (string, error) {
	var v string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &v,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		return "", domain.Validation("bind "+name, err)
	}
	return v, nil
}

func (s *Server) getOrganization(w http.ResponseWriter, r *http.Request) {
	if _, err := rbac.RequireViewer(r.Context()); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	orgID, err := pathParam(r, "orgID")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	org, err := s.orgs.Get(r.Context(), orgID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, organizationView{Organization: org, Domain: org.Domain()})
}

func (s *Server) listAlerts(w http.ResponseWriter, r *http.Request) {
	if _, err := rbac.RequireViewer(r.Context()); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	orgID, err := pathParam(r, "orgID")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}

	var p listAlertsParams
	q := r.URL.Query()
	for name, dest := range map[string]any{"unread": &p.Unread, "limit": &p.Limit, "offset": &p.Offset} {
		if err := runtime.BindQueryParameter("form", true, false, name, q, dest); err != nil {
			writeError(w, r, s.log, domain.Validation("bind "+name, err))
			return
		}
	}
	f := ports.AlertFilter{}
	if p.Unread != nil {
		f.UnreadOnly = *p.Unread
	}
	if p.Limit != nil {
		f.Limit = *p.Limit
	}
	f.Limit = organizations.EffectiveLimit(f.Limit)
	if p.Offset != nil {
		f.Offset = *p.Offset
	}

	alerts, err := s.orgs.ListAlerts(r.Context(), orgID, f)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, alertList{Alerts: alerts, Limit: f.Limit, Offset: f.Offset})
}

func (s *Server) patchAlert(w http.ResponseWriter, r *http.Request) {
	userID, err := rbac.RequireAnalyst(r.Context())
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	alertID, err := pathParam(r, "alertID")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	var body alertPatch
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if body.IsRead == nil {
		writeError(w, r, s.log, domain.Validationf("update alert", "is_read is required"))
		return
	}

	a, err := s.orgs.MarkAlertRead(r.Context(), alertID, *body.IsRead)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	s.audit.LogEvent(r.Context(), a.OrgID, userID, audit.ActionAlertUpdated,
		"alert:"+a.ID, fmt.Sprintf(`{"is_read":%t}`, a.IsRead))
	writeJSON(w, http.StatusOK, a)
}

// postEvaluation queues an evaluation run, or with wait=true runs it inline
// and returns the per-rule outcomes.
func (s *Server) postEvaluation(w http.ResponseWriter, r *http.Request) {
	userID, err := rbac.RequireAdmin(r.Context())
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	orgID, err := pathParam(r, "orgID")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	var p evaluationParams
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "wait", q, &p.Wait); err != nil {
		writeError(w, r, s.log, domain.Validation("bind wait", err))
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "timeout", q, &p.Timeout); err != nil {
		writeError(w, r, s.log, domain.Validation("bind timeout", err))
		return
	}
	if _, err := s.orgs.Get(r.Context(), orgID); err != nil {
		writeError(w, r, s.log, err)
		return
	}

	if p.Wait == nil || !*p.Wait {
		jobID, err := s.jobs.Enqueue(r.Context(), orgID)
		if err != nil {
			writeError(w, r, s.log, domain.Upstream("enqueue evaluation", orgID, err))
			return
		}
		s.audit.LogEvent(r.Context(), orgID, userID, audit.ActionEvaluationRequested, "job:"+jobID, `{"wait":false}`)
		writeJSON(w, http.StatusAccepted, evaluationAccepted{JobID: jobID})
		return
	}

	timeout := defaultWaitTimeout
	if p.Timeout != nil {
		if *p.Timeout <= 0 {
			writeError(w, r, s.log, domain.Validationf("run evaluation", "timeout must be positive"))
			return
		}
		timeout = min(time.Duration(*p.Timeout)*time.Second, maxWaitTimeout)
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	jobID, eval, err := evalrunner.ProcessInline(ctx, s.jobs, s.processor, orgID)
	if err != nil {
		var de *domain.Error
		if !errors.As(err, &de) {
			err = domain.Upstream("run evaluation", orgID, err)
		}
		writeError(w, r, s.log, err)
		return
	}
	s.audit.LogEvent(r.Context(), orgID, userID, audit.ActionEvaluationRequested, "job:"+jobID, `{"wait":true}`)
	writeJSON(w, http.StatusOK, evaluationCompleted{JobID: jobID, Evaluation: eval})
}

func (s *Server) postReport(w http.ResponseWriter, r *http.Request) {
	userID, err := rbac.RequireAnalyst(r.Context())
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if s.limiter != nil && !s.limiter.Allow(userID) {
		s.metrics.ObserveRateLimited("/organizations/{orgID}/reports")
		writeError(w, r, s.log, domain.RateLimited("generate report"))
		return
	}
	orgID, err := pathParam(r, "orgID")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	var req domain.ReportRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	req.OrgID = orgID

	res, err := s.reports.Generate(r.Context(), req)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	s.audit.LogEvent(r.Context(), orgID, userID, audit.ActionReportGenerated, "report:"+res.Report.ID,
		fmt.Sprintf(`{"report_type":%q,"format":%q}`, res.Report.ReportType, res.Report.Format))

	if res.Report.Format == domain.FormatPDF {
		writeJSON(w, http.StatusOK, res)
		return
	}
	writeJSON(w, http.StatusOK, res.Report)
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Validationf("decode body", "request body is required")
		}
		return domain.Validation("decode body", err)
	}
	return nil
}
