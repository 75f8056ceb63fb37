// Package memory is an in-process implementation of every repository port.
// It backs local development (serve --memory) and package tests. Data does not
// survive a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"civicwatch/internal/domain"
	"civicwatch/internal/ports"
)

type Store struct {
	mu      sync.Mutex
	orgs    map[string]domain.Organization
	daf     []domain.DAFRecord
	donors  []domain.DonorRecord
	filings []domain.FilingRecord
	alerts  []*domain.Alert
	grants  []domain.Grant
	risk    []domain.RiskScore
	jobs    []*domain.EvaluationJob
	audit   []domain.AuditLog
	clock   clockwork.Clock
}

func New() *Store {
	return NewWithClock(clockwork.NewRealClock())
}

// NewWithClock returns a store that stamps job times from clock.
func NewWithClock(clock clockwork.Clock) *Store {
	return &Store{orgs: make(map[string]domain.Organization), clock: clock}
}

func (s *Store) AddOrganization(o domain.Organization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgs[o.ID] = o
}

func (s *Store) AddDAF(r ...domain.DAFRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.daf = append(s.daf, r...)
}

func (s *Store) AddDonors(r ...domain.DonorRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.donors = append(s.donors, r...)
}

func (s *Store) AddFilings(r ...domain.FilingRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filings = append(s.filings, r...)
}

func (s *Store) AddGrants(g ...domain.Grant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants = append(s.grants, g...)
}

// UpsertRiskScore replaces the score for (org, year) if one exists.
func (s *Store) UpsertRiskScore(r domain.RiskScore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.risk {
		if s.risk[i].OrgID == r.OrgID && s.risk[i].Year == r.Year {
			s.risk[i] = r
			return
		}
	}
	s.risk = append(s.risk, r)
}

// Alerts returns a copy of every stored alert, oldest first.
func (s *Store) Alerts() []domain.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Alert, len(s.alerts))
	for i, a := range s.alerts {
		out[i] = *a
	}
	return out
}

// AuditLogs returns a copy of the audit log, oldest first.
func (s *Store) AuditLogs() []domain.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditLog(nil), s.audit...)
}

// Organizations

func (s *Store) GetOrganization(_ context.Context, orgID string) (*domain.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orgs[orgID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &o, nil
}

func (s *Store) ListOrganizationIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.orgs))
	for id := range s.orgs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Financial and filing records

func (s *Store) LatestDAF(_ context.Context, orgID string, n int) ([]domain.DAFRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.DAFRecord
	for _, r := range s.daf {
		if r.OrgID == orgID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Year > out[j].Year })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *Store) DonorsForYear(_ context.Context, orgID string, year int) ([]domain.DonorRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.DonorRecord
	for _, r := range s.donors {
		if r.OrgID == orgID && r.Year == year {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount > out[j].Amount })
	return out, nil
}

func (s *Store) LatestFiling(_ context.Context, orgID string) (domain.FilingRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		best  domain.FilingRecord
		found bool
	)
	for _, r := range s.filings {
		if r.OrgID != orgID {
			continue
		}
		if !found || r.FilingDate.After(best.FilingDate) {
			best, found = r, true
		}
	}
	return best, found, nil
}

func (s *Store) GrantsByRecipient(_ context.Context, orgID string) ([]domain.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Grant
	for _, g := range s.grants {
		if g.RecipientOrgID == orgID {
			out = append(out, g)
		}
	}
	return out, nil
}

// LatestRiskScore returns the organization's score with the highest year.
func (s *Store) LatestRiskScore(_ context.Context, orgID string) (domain.RiskScore, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		latest domain.RiskScore
		found  bool
	)
	for _, r := range s.risk {
		if r.OrgID == orgID && (!found || r.Year > latest.Year) {
			latest, found = r, true
		}
	}
	return latest, found, nil
}

func (s *Store) RiskScoreForYear(_ context.Context, orgID string, year int) (domain.RiskScore, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.risk {
		if r.OrgID == orgID && r.Year == year {
			return r, true, nil
		}
	}
	return domain.RiskScore{}, false, nil
}

// Alerts

// CreateUnlessRecent performs the dedup check and the insert under one lock.
func (s *Store) CreateUnlessRecent(_ context.Context, a *domain.Alert, since time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.alerts {
		if existing.OrgID == a.OrgID && existing.Type == a.Type && !existing.CreatedAt.Before(since) {
			return false, nil
		}
	}
	cp := *a
	s.alerts = append(s.alerts, &cp)
	return true, nil
}

func (s *Store) ListAlerts(_ context.Context, orgID string, f ports.AlertFilter) ([]*domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Alert
	for i := len(s.alerts) - 1; i >= 0; i-- {
		a := s.alerts[i]
		if a.OrgID != orgID || (f.UnreadOnly && a.IsRead) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Offset >= len(out) {
		return []*domain.Alert{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) SetAlertRead(_ context.Context, alertID string, read bool) (*domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alerts {
		if a.ID == alertID {
			a.IsRead = read
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Evaluation jobs

func (s *Store) Enqueue(_ context.Context, orgID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.OrgID == orgID && j.Status == domain.JobQueued {
			return j.ID, nil
		}
	}
	j := &domain.EvaluationJob{ID: uuid.New().String(), OrgID: orgID, Status: domain.JobQueued, QueuedAt: s.clock.Now()}
	s.jobs = append(s.jobs, j)
	return j.ID, nil
}

func (s *Store) ClaimNext(_ context.Context) (ports.EvaluationJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.Status == domain.JobQueued {
			s.start(j)
			return ports.EvaluationJob{ID: j.ID, OrgID: j.OrgID}, true, nil
		}
	}
	return ports.EvaluationJob{}, false, nil
}

func (s *Store) StartJobForOrg(_ context.Context, orgID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.OrgID == orgID && j.Status == domain.JobQueued {
			s.start(j)
			return j.ID, nil
		}
	}
	j := &domain.EvaluationJob{ID: uuid.New().String(), OrgID: orgID, QueuedAt: s.clock.Now()}
	s.start(j)
	s.jobs = append(s.jobs, j)
	return j.ID, nil
}

func (s *Store) start(j *domain.EvaluationJob) {
	now := s.clock.Now()
	j.Status = domain.JobRunning
	j.Attempts++
	j.StartedAt = &now
}

func (s *Store) MarkCompleted(_ context.Context, jobID string) error {
	return s.finish(jobID, domain.JobCompleted, nil)
}

func (s *Store) MarkFailed(_ context.Context, jobID string, reason string) error {
	return s.finish(jobID, domain.JobFailed, &reason)
}

func (s *Store) finish(jobID, status string, reason *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.ID == jobID {
			now := s.clock.Now()
			j.Status, j.FinishedAt, j.LastError = status, &now, reason
			return nil
		}
	}
	return domain.ErrNotFound
}

// Job returns a copy of the job with id.
func (s *Store) Job(id string) (domain.EvaluationJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.ID == id {
			return *j, true
		}
	}
	return domain.EvaluationJob{}, false
}

// Audit

func (s *Store) CreateAuditLog(_ context.Context, a *domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, *a)
	return nil
}
