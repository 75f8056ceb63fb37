package evalrunner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"civicwatch/internal/adapters/memory"
	"civicwatch/internal/domain"
	"civicwatch/internal/metrics"
	"civicwatch/internal/ports"
	"civicwatch/internal/services/alerts"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeProcessor struct {
	mu       sync.Mutex
	seen     []string
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
}

func (p *fakeProcessor) Process(ctx context.Context, orgID string) (domain.Evaluation, error) {
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		m := p.maxSeen.Load()
		if n <= m || p.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return domain.Evaluation{}, ctx.Err()
		}
	}
	p.mu.Lock()
	p.seen = append(p.seen, orgID)
	p.mu.Unlock()
	if orgID == "org-bad" {
		return domain.Evaluation{OrgID: orgID}, errors.New("organization lookup failed")
	}
	return domain.Evaluation{OrgID: orgID, Checks: []domain.CheckResult{{Outcome: domain.OutcomeCreated}}}, nil
}

func (p *fakeProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}

func seedOrgs(store *memory.Store, ids ...string) {
	for _, id := range ids {
		store.AddOrganization(domain.Organization{ID: id, Name: id})
	}
}

func TestRun_ProcessesQueuedJobs(t *testing.T) {
	store := memory.New()
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)
	proc := &fakeProcessor{}

	var ids []string
	for _, org := range []string{"org-1", "org-2", "org-bad"} {
		id, err := store.Enqueue(context.Background(), org)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r := &Runner{Repo: store, Processor: proc, Metrics: m}
	go func() {
		r.Run(ctx, 2, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return proc.count() == 3 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		j, _ := store.Job(ids[2])
		return j.Status == domain.JobFailed
	}, time.Second, 10*time.Millisecond)
	cancel()
	<-done

	for i, want := range []string{domain.JobCompleted, domain.JobCompleted, domain.JobFailed} {
		j, ok := store.Job(ids[i])
		require.True(t, ok)
		assert.Equal(t, want, j.Status, "job %d", i)
		assert.Equal(t, 1, j.Attempts)
		assert.NotNil(t, j.FinishedAt)
	}
	failed, _ := store.Job(ids[2])
	require.NotNil(t, failed.LastError)
	assert.Contains(t, *failed.LastError, "organization lookup failed")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EvaluationJobsTotal.WithLabelValues(domain.JobCompleted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EvaluationJobsTotal.WithLabelValues(domain.JobFailed)))
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r := &Runner{Repo: memory.New(), Processor: &fakeProcessor{}}
	go func() {
		r.Run(ctx, 4, 5*time.Millisecond)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_ZeroConcurrencyReturnsImmediately(t *testing.T) {
	r := &Runner{Repo: memory.New(), Processor: &fakeProcessor{}}
	r.Run(context.Background(), 0, time.Millisecond)
}

func TestProcessInline(t *testing.T) {
	store := memory.New()
	proc := &fakeProcessor{}

	jobID, eval, err := ProcessInline(context.Background(), store, proc, "org-1")
	require.NoError(t, err)
	assert.Equal(t, "org-1", eval.OrgID)
	j, ok := store.Job(jobID)
	require.True(t, ok)
	assert.Equal(t, domain.JobCompleted, j.Status)

	jobID, _, err = ProcessInline(context.Background(), store, proc, "org-bad")
	require.Error(t, err)
	j, _ = store.Job(jobID)
	assert.Equal(t, domain.JobFailed, j.Status)
}

func TestProcessInline_ReusesQueuedJob(t *testing.T) {
	store := memory.New()
	queued, err := store.Enqueue(context.Background(), "org-1")
	require.NoError(t, err)

	jobID, _, err := ProcessInline(context.Background(), store, &fakeProcessor{}, "org-1")
	require.NoError(t, err)
	assert.Equal(t, queued, jobID)
}

// racingJobs lets a worker claim the queued job right before the inline start.
type racingJobs struct {
	*memory.Store
	claimed ports.EvaluationJob
}

func (r *racingJobs) StartJobForOrg(ctx context.Context, orgID string) (string, error) {
	job, found, err := r.Store.ClaimNext(ctx)
	if err != nil || !found {
		return "", errors.New("expected a queued job to claim")
	}
	r.claimed = job
	return r.Store.StartJobForOrg(ctx, orgID)
}

func TestProcessInline_QueuedJobClaimedByWorker(t *testing.T) {
	store := memory.New()
	queued, err := store.Enqueue(context.Background(), "org-1")
	require.NoError(t, err)
	repo := &racingJobs{Store: store}

	jobID, eval, err := ProcessInline(context.Background(), repo, &fakeProcessor{}, "org-1")
	require.NoError(t, err)
	assert.Equal(t, "org-1", eval.OrgID)
	assert.Equal(t, queued, repo.claimed.ID)
	assert.NotEqual(t, queued, jobID)

	j, ok := store.Job(jobID)
	require.True(t, ok)
	assert.Equal(t, domain.JobCompleted, j.Status)
	assert.Equal(t, 1, j.Attempts)
	w, _ := store.Job(queued)
	assert.Equal(t, domain.JobRunning, w.Status, "the worker still owns its job")
}

func TestEnqueueAllAndSweep(t *testing.T) {
	store := memory.New()
	seedOrgs(store, "org-a", "org-b", "org-c")

	n, err := EnqueueAll(context.Background(), store, store)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Already queued organizations are not queued twice.
	n, err = EnqueueAll(context.Background(), store, store)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	claimed := 0
	for {
		_, found, err := store.ClaimNext(context.Background())
		require.NoError(t, err)
		if !found {
			break
		}
		claimed++
	}
	assert.Equal(t, 3, claimed)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Sweep(ctx, store, store, time.Hour, nil)
		close(done)
	}()
	require.Eventually(t, func() bool {
		_, found, _ := store.ClaimNext(context.Background())
		return found
	}, time.Second, 5*time.Millisecond, "the first sweep runs immediately")
	cancel()
	<-done
}

func TestEvaluateAll_BoundedConcurrency(t *testing.T) {
	proc := &fakeProcessor{delay: 20 * time.Millisecond}
	orgs := []string{"o1", "o2", "o3", "o4", "o5", "o6", "o7", "o8"}

	results, err := EvaluateAll(context.Background(), proc, orgs, 3)
	require.NoError(t, err)
	require.Len(t, results, len(orgs))
	for i, r := range results {
		assert.Equal(t, orgs[i], r.OrgID)
	}
	assert.LessOrEqual(t, proc.maxSeen.Load(), int32(3))
	assert.Equal(t, len(orgs), proc.count())
}

func TestEvaluateAll_AttemptsEveryOrganization(t *testing.T) {
	proc := &fakeProcessor{}
	_, err := EvaluateAll(context.Background(), proc, []string{"org-1", "org-bad", "org-2"}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "org-bad")
	assert.Equal(t, 3, proc.count())
}

func TestEvaluatorProcessor_UsesAlertService(t *testing.T) {
	store := memory.New()
	seedOrgs(store, "org-1")
	svc := alerts.New(store, store, alerts.Sources{DAF: store, Donors: store, Filings: store},
		alerts.WithClock(clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))))

	eval, err := EvaluatorProcessor{Evaluator: svc}.Process(context.Background(), "org-1")
	require.NoError(t, err)
	// No filings on record is the only rule that fires without data.
	assert.Equal(t, 1, eval.Count(domain.OutcomeCreated))

	_, err = EvaluatorProcessor{Evaluator: svc}.Process(context.Background(), "org-missing")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}
