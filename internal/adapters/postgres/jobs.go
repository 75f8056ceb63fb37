package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"civicwatch/internal/domain"
	"civicwatch/internal/ports"
)

// Enqueue adds a queued evaluation job for orgID. At most one queued job
// exists per organization; a second request returns the existing id.
func (db *DB) Enqueue(ctx context.Context, orgID string) (string, error) {
	var jobID string
	err := db.Pool.QueryRow(ctx, `
        INSERT INTO evaluation_jobs (org_id) VALUES ($1)
        ON CONFLICT (org_id) WHERE status = 'queued' DO UPDATE SET queued_at = evaluation_jobs.queued_at
        RETURNING id::text
    `, orgID).Scan(&jobID)
	return jobID, err
}

// ClaimNext selects the next queued job using SKIP LOCKED and marks it running.
func (db *DB) ClaimNext(ctx context.Context) (job ports.EvaluationJob, found bool, err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return job, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = tx.QueryRow(ctx, `
        SELECT id::text, org_id FROM evaluation_jobs
        WHERE status = 'queued'
        ORDER BY queued_at
        FOR UPDATE SKIP LOCKED
        LIMIT 1
    `).Scan(&job.ID, &job.OrgID)
	if errors.Is(err, pgx.ErrNoRows) {
		return job, false, nil
	}
	if err != nil {
		return job, false, err
	}

	if _, err = tx.Exec(ctx, `
        UPDATE evaluation_jobs SET status='running', started_at=now(), attempts=attempts+1 WHERE id=$1
    `, job.ID); err != nil {
		return job, false, err
	}
	return job, true, nil
}

func (db *DB) MarkCompleted(ctx context.Context, jobID string) error {
	return db.finish(ctx, jobID, domain.JobCompleted, nil)
}

func (db *DB) MarkFailed(ctx context.Context, jobID string, reason string) error {
	return db.finish(ctx, jobID, domain.JobFailed, &reason)
}

func (db *DB) finish(ctx context.Context, jobID, status string, reason *string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tag, err := db.Pool.Exec(ctx, `
        UPDATE evaluation_jobs SET status=$2, finished_at=now(), last_error=$3 WHERE id=$1
    `, jobID, status, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// StartJobForOrg takes over the queued job for orgID, or inserts one already
// running when none is queued or a worker holds it. One statement, so a
// concurrent claim can never leave the caller without a job.
func (db *DB) StartJobForOrg(ctx context.Context, orgID string) (string, error) {
	var jobID string
	err := db.Pool.QueryRow(ctx, `
        WITH claimed AS (
            UPDATE evaluation_jobs SET status='running', started_at=now(), attempts=attempts+1
            WHERE id = (
                SELECT id FROM evaluation_jobs
                WHERE org_id = $1 AND status = 'queued'
                FOR UPDATE SKIP LOCKED
                LIMIT 1
            )
            RETURNING id::text
        ), inserted AS (
            INSERT INTO evaluation_jobs (org_id, status, attempts, started_at)
            SELECT $1, 'running', 1, now()
            WHERE NOT EXISTS (SELECT 1 FROM claimed)
            RETURNING id::text
        )
        SELECT id FROM claimed
        UNION ALL
        SELECT id FROM inserted
    `, orgID).Scan(&jobID)
	return jobID, err
}
