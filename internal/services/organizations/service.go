package organizations

import (
	"context"
	"errors"

	"civicwatch/internal/domain"
	"civicwatch/internal/ports"
)

const (
	DefaultAlertLimit = 50
	MaxAlertLimit     = 200
)

type Service struct {
	orgs   ports.OrganizationRepository
	alerts ports.AlertRepository
}

func New(orgs ports.OrganizationRepository, alerts ports.AlertRepository) *Service {
	return &Service{orgs: orgs, alerts: alerts}
}

func (s *Service) Get(ctx context.Context, orgID string) (*domain.Organization, error) {
	org, err := s.orgs.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, wrap("get organization", orgID, err)
	}
	return org, nil
}

// ListAlerts returns the organization's alerts newest first. The limit is
// clamped to [1, MaxAlertLimit], defaulting to DefaultAlertLimit.
func (s *Service) ListAlerts(ctx context.Context, orgID string, f ports.AlertFilter) ([]*domain.Alert, error) {
	if f.Offset < 0 {
		return nil, domain.Validationf("list alerts", "offset must not be negative")
	}
	f.Limit = EffectiveLimit(f.Limit)
	if _, err := s.orgs.GetOrganization(ctx, orgID); err != nil {
		return nil, wrap("list alerts", orgID, err)
	}
	alerts, err := s.alerts.ListAlerts(ctx, orgID, f)
	if err != nil {
		return nil, domain.Upstream("list alerts", orgID, err)
	}
	if alerts == nil {
		alerts = []*domain.Alert{}
	}
	return alerts, nil
}

// EffectiveLimit is the page size ListAlerts applies for a requested limit.
func EffectiveLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultAlertLimit
	case limit > MaxAlertLimit:
		return MaxAlertLimit
	}
	return limit
}

func (s *Service) MarkAlertRead(ctx context.Context, alertID string, read bool) (*domain.Alert, error) {
	a, err := s.alerts.SetAlertRead(ctx, alertID, read)
	if err != nil {
		return nil, wrap("mark alert read", "", err)
	}
	return a, nil
}

func wrap(op, orgID string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NotFound(op, orgID, err)
	}
	return domain.Upstream(op, orgID, err)
}
