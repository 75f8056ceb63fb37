package ports

import "context"

type EvaluationJob struct {
	ID    string
	OrgID string
}

// JobRepository supports enqueueing, claiming and finishing evaluation jobs.
type JobRepository interface {
	Enqueue(ctx context.Context, orgID string) (jobID string, err error)
	ClaimNext(ctx context.Context) (job EvaluationJob, found bool, err error)
	MarkCompleted(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID string, reason string) error
	// StartJobForOrg atomically takes over the organization's queued job, or
	// creates one already running when none is queued, and returns its id.
	StartJobForOrg(ctx context.Context, orgID string) (jobID string, err error)
}
