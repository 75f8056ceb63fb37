package evalrunner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"civicwatch/internal/domain"
	"civicwatch/internal/metrics"
	"civicwatch/internal/ports"
)

// Processor performs the evaluation work for a job's organization.
type Processor interface {
	Process(ctx context.Context, orgID string) (domain.Evaluation, error)
}

// EvaluatorProcessor adapts an alert evaluator to Processor. Per-check
// failures are already isolated by the evaluator; only an error resolving the
// organization fails the job.
type EvaluatorProcessor struct{ Evaluator ports.AlertEvaluator }

func (p EvaluatorProcessor) Process(ctx context.Context, orgID string) (domain.Evaluation, error) {
	return p.Evaluator.EvaluateOrganization(ctx, orgID)
}

// Runner owns the worker pool that drains the evaluation job queue.
type Runner struct {
	Repo      ports.JobRepository
	Processor Processor
	Log       *slog.Logger
	Metrics   *metrics.Metrics
}

func (r *Runner) logger() *slog.Logger {
	if r.Log == nil {
		return slog.Default().With("component", "evalrunner")
	}
	return r.Log
}

// Run starts a dispatcher and concurrency workers that claim jobs and process
// them. It blocks until ctx is cancelled and every worker has returned.
func (r *Runner) Run(ctx context.Context, concurrency int, pollInterval time.Duration) {
	if concurrency < 1 {
		return
	}
	log := r.logger()
	jobsCh := make(chan ports.EvaluationJob, concurrency)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(jobsCh)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for {
					job, found, err := r.Repo.ClaimNext(ctx)
					if err != nil {
						if ctx.Err() == nil {
							log.Error("job claim failed", "error", err)
						}
						break
					}
					if !found {
						break
					}
					select {
					case jobsCh <- job:
					case <-ctx.Done():
						// Claimed but never started; the next sweep re-queues the organization.
						_ = r.Repo.MarkFailed(context.WithoutCancel(ctx), job.ID, "shutdown before processing")
						return
					}
				}
			}
		}
	}()

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for job := range jobsCh {
				r.handle(ctx, log.With("worker", idx), job)
			}
		}(i)
	}
	wg.Wait()
}

func (r *Runner) handle(ctx context.Context, log *slog.Logger, job ports.EvaluationJob) {
	// Finish the bookkeeping even when shutdown cancels ctx mid-job.
	done := context.WithoutCancel(ctx)
	eval, err := r.Processor.Process(ctx, job.OrgID)
	if err != nil {
		r.Metrics.ObserveJob(domain.JobFailed)
		if mErr := r.Repo.MarkFailed(done, job.ID, err.Error()); mErr != nil {
			log.Error("mark job failed", "job_id", job.ID, "error", mErr)
		}
		log.Warn("evaluation job failed", "job_id", job.ID, "org_id", job.OrgID, "error", err)
		return
	}
	r.Metrics.ObserveJob(domain.JobCompleted)
	if err := r.Repo.MarkCompleted(done, job.ID); err != nil {
		log.Error("mark job completed", "job_id", job.ID, "error", err)
		return
	}
	log.Info("evaluation job completed", "job_id", job.ID, "org_id", job.OrgID,
		"created", eval.Count(domain.OutcomeCreated), "failed_checks", eval.Count(domain.OutcomeFailed))
}

// ProcessInline starts the organization's job (taking over a queued one when
// present) and processes it synchronously with the same processor the workers use.
func ProcessInline(ctx context.Context, repo ports.JobRepository, processor Processor, orgID string) (string, domain.Evaluation, error) {
	jobID, err := repo.StartJobForOrg(ctx, orgID)
	if err != nil {
		return "", domain.Evaluation{}, fmt.Errorf("start evaluation job: %w", err)
	}
	done := context.WithoutCancel(ctx)
	eval, err := processor.Process(ctx, orgID)
	if err != nil {
		_ = repo.MarkFailed(done, jobID, err.Error())
		return jobID, eval, err
	}
	return jobID, eval, repo.MarkCompleted(done, jobID)
}

// Sweep enqueues one job per organization every interval until ctx is done.
// The first sweep runs immediately.
func Sweep(ctx context.Context, orgs ports.OrganizationRepository, repo ports.JobRepository, interval time.Duration, log *slog.Logger) {
	if interval <= 0 {
		return
	}
	if log == nil {
		log = slog.Default().With("component", "evalrunner")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		n, err := EnqueueAll(ctx, orgs, repo)
		if err != nil && ctx.Err() == nil {
			log.Error("sweep failed", "enqueued", n, "error", err)
		} else if err == nil {
			log.Info("sweep enqueued evaluations", "count", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// EnqueueAll queues an evaluation for every organization and returns how many
// were enqueued before the first error.
func EnqueueAll(ctx context.Context, orgs ports.OrganizationRepository, repo ports.JobRepository) (int, error) {
	ids, err := orgs.ListOrganizationIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list organizations: %w", err)
	}
	for i, id := range ids {
		if _, err := repo.Enqueue(ctx, id); err != nil {
			return i, fmt.Errorf("enqueue %s: %w", id, err)
		}
	}
	return len(ids), nil
}

// EvaluateAll evaluates orgIDs directly with at most concurrency in flight.
// Every organization is attempted; the first error is returned after all finish.
func EvaluateAll(ctx context.Context, processor Processor, orgIDs []string, concurrency int) ([]domain.Evaluation, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]domain.Evaluation, len(orgIDs))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, id := range orgIDs {
		g.Go(func() error {
			eval, err := processor.Process(ctx, id)
			results[i] = eval
			if err != nil {
				return fmt.Errorf("evaluate %s: %w", id, err)
			}
			return nil
		})
	}
	return results, g.Wait()
}
