package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"civicwatch/internal/domain"
	"civicwatch/internal/ports"
)

// OrganizationRepository
func (db *DB) GetOrganization(ctx context.Context, orgID string) (*domain.Organization, error) {
	var o domain.Organization
	err := db.Pool.QueryRow(ctx, `
        SELECT id, name, ein, mission, website FROM organizations WHERE id = $1
    `, orgID).Scan(&o.ID, &o.Name, &o.EIN, &o.Mission, &o.Website)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (db *DB) ListOrganizationIDs(ctx context.Context) ([]string, error) {
	rows, err := db.Pool.Query(ctx, `SELECT id FROM organizations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// DAFRepository
func (db *DB) LatestDAF(ctx context.Context, orgID string, n int) ([]domain.DAFRecord, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT org_id, year, ratio, total_contributions
        FROM daf_records
        WHERE org_id = $1
        ORDER BY year DESC
        LIMIT $2
    `, orgID, n)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.DAFRecord, error) {
		var (
			r     domain.DAFRecord
			total decimal.Decimal
		)
		err := row.Scan(&r.OrgID, &r.Year, &r.Ratio, &total)
		r.TotalContributions = total.InexactFloat64()
		return r, err
	})
}

// DonorRepository
func (db *DB) DonorsForYear(ctx context.Context, orgID string, year int) ([]domain.DonorRecord, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT org_id, year, donor_name, amount
        FROM donor_records
        WHERE org_id = $1 AND year = $2
        ORDER BY amount DESC
    `, orgID, year)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.DonorRecord, error) {
		var (
			r      domain.DonorRecord
			amount decimal.Decimal
		)
		err := row.Scan(&r.OrgID, &r.Year, &r.DonorName, &amount)
		r.Amount = amount.InexactFloat64()
		return r, err
	})
}

// FilingRepository
func (db *DB) LatestFiling(ctx context.Context, orgID string) (domain.FilingRecord, bool, error) {
	var r domain.FilingRecord
	err := db.Pool.QueryRow(ctx, `
        SELECT org_id, filing_date, tax_year
        FROM filings
        WHERE org_id = $1
        ORDER BY filing_date DESC
        LIMIT 1
    `, orgID).Scan(&r.OrgID, &r.FilingDate, &r.TaxYear)
	if errors.Is(err, pgx.ErrNoRows) {
		return r, false, nil
	}
	if err != nil {
		return r, false, err
	}
	return r, true, nil
}

// AlertRepository

// CreateUnlessRecent serializes writers for one (organization, type) with a
// transaction-scoped advisory lock, so the window check and the insert cannot
// interleave with another evaluation of the same pair.
func (db *DB) CreateUnlessRecent(ctx context.Context, a *domain.Alert, since time.Time) (created bool, err error) {
	md, err := json.Marshal(a.Metadata)
	if err != nil {
		return false, fmt.Errorf("encode alert metadata: %w", err)
	}
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text || ':' || $2::text))`, a.OrgID, string(a.Type)); err != nil {
		return false, err
	}
	var exists bool
	err = tx.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM alerts
            WHERE organization_id = $1 AND alert_type = $2 AND created_at >= $3
        )
    `, a.OrgID, string(a.Type), since).Scan(&exists)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	_, err = tx.Exec(ctx, `
        INSERT INTO alerts (id, organization_id, alert_type, severity, title, description, metadata, is_read, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, a.ID, a.OrgID, string(a.Type), string(a.Severity), a.Title, a.Description, md, a.IsRead, a.CreatedAt)
	if err != nil {
		return false, err
	}
	return true, nil
}

const alertColumns = `id::text, organization_id, alert_type, severity, title, description, metadata, is_read, created_at`

func scanAlert(row pgx.Row) (*domain.Alert, error) {
	var (
		a   domain.Alert
		raw []byte
	)
	if err := row.Scan(&a.ID, &a.OrgID, &a.Type, &a.Severity, &a.Title, &a.Description, &raw, &a.IsRead, &a.CreatedAt); err != nil {
		return nil, err
	}
	md, err := domain.DecodeAlertMetadata(a.Type, raw)
	if err != nil {
		return nil, fmt.Errorf("decode metadata of alert %s: %w", a.ID, err)
	}
	a.Metadata = md
	return &a, nil
}

func (db *DB) ListAlerts(ctx context.Context, orgID string, f ports.AlertFilter) ([]*domain.Alert, error) {
	limit := any(nil)
	if f.Limit > 0 {
		limit = f.Limit
	}
	rows, err := db.Pool.Query(ctx, `
        SELECT `+alertColumns+`
        FROM alerts
        WHERE organization_id = $1 AND ($2 = false OR is_read = false)
        ORDER BY created_at DESC, id
        LIMIT $3 OFFSET $4
    `, orgID, f.UnreadOnly, limit, f.Offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Alert, error) {
		return scanAlert(row)
	})
}

func (db *DB) SetAlertRead(ctx context.Context, alertID string, read bool) (*domain.Alert, error) {
	a, err := scanAlert(db.Pool.QueryRow(ctx, `
        UPDATE alerts SET is_read = $2 WHERE id::text = $1
        RETURNING `+alertColumns, alertID, read))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

// GrantRepository
func (db *DB) GrantsByRecipient(ctx context.Context, orgID string) ([]domain.Grant, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT id, donor_id, recipient_org_id, amount, year, confirmed, source_file
        FROM grants
        WHERE recipient_org_id = $1
        ORDER BY year DESC, id
    `, orgID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Grant, error) {
		var (
			g      domain.Grant
			amount decimal.Decimal
		)
		err := row.Scan(&g.ID, &g.DonorID, &g.RecipientOrgID, &amount, &g.Year, &g.Confirmed, &g.SourceFile)
		g.Amount = amount.InexactFloat64()
		return g, err
	})
}

// RiskScoreRepository
func (db *DB) RiskScoreForYear(ctx context.Context, orgID string, year int) (domain.RiskScore, bool, error) {
	return db.scanRiskScore(db.Pool.QueryRow(ctx, `
        SELECT org_id, year, score, dependency_ratio, transparency_index
        FROM risk_scores
        WHERE org_id = $1 AND year = $2
    `, orgID, year))
}

func (db *DB) LatestRiskScore(ctx context.Context, orgID string) (domain.RiskScore, bool, error) {
	return db.scanRiskScore(db.Pool.QueryRow(ctx, `
        SELECT org_id, year, score, dependency_ratio, transparency_index
        FROM risk_scores
        WHERE org_id = $1
        ORDER BY year DESC
        LIMIT 1
    `, orgID))
}

func (db *DB) scanRiskScore(row pgx.Row) (domain.RiskScore, bool, error) {
	var r domain.RiskScore
	err := row.Scan(&r.OrgID, &r.Year, &r.Score, &r.DependencyRatio, &r.TransparencyIndex)
	if errors.Is(err, pgx.ErrNoRows) {
		return r, false, nil
	}
	if err != nil {
		return r, false, err
	}
	return r, true, nil
}

// AuditRepository
func (db *DB) CreateAuditLog(ctx context.Context, l *domain.AuditLog) error {
	_, err := db.Pool.Exec(ctx, `
        INSERT INTO audit_logs (id, org_id, user_id, action, resource, ip, metadata, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, l.ID, l.OrgID, l.UserID, l.Action, l.Resource, l.IP, l.Metadata, l.CreatedAt)
	return err
}
