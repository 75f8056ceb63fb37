package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civicwatch/internal/adapters/memory"
	"civicwatch/internal/domain"
	"civicwatch/internal/metrics"
)

type failingRepo struct{}

func (failingRepo) CreateAuditLog(context.Context, *domain.AuditLog) error {
	return errors.New("disk full")
}

func TestLogEvent_PersistsEntry(t *testing.T) {
	store := memory.New()
	now := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	l := NewLogger(store, clockwork.NewFakeClockAt(now), nil, nil)

	ctx := WithClientIP(context.Background(), "203.0.113.9")
	l.LogEvent(ctx, "org-1", "user-1", ActionReportGenerated, "report", `{"report_type":"risk_assessment"}`)

	logs := store.AuditLogs()
	require.Len(t, logs, 1)
	e := logs[0]
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "org-1", e.OrgID)
	assert.Equal(t, "user-1", e.UserID)
	assert.Equal(t, ActionReportGenerated, e.Action)
	assert.Equal(t, "report", e.Resource)
	assert.Equal(t, "203.0.113.9", e.IP)
	assert.Equal(t, now, e.CreatedAt)
}

func TestLogEvent_DefaultsOrgAndIP(t *testing.T) {
	store := memory.New()
	l := NewLogger(store, nil, nil, nil)

	l.LogEvent(context.Background(), "", "user-1", ActionAlertUpdated, "alert", "")

	logs := store.AuditLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, SentinelOrgID, logs[0].OrgID)
	assert.Equal(t, "unknown", logs[0].IP)
}

func TestLogEvent_FailureIsSwallowedAndCounted(t *testing.T) {
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)
	l := NewLogger(failingRepo{}, nil, nil, m)

	assert.NotPanics(t, func() {
		l.LogEvent(context.Background(), "org-1", "user-1", ActionEvaluationRequested, "evaluation", "")
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditWriteFailures))
}

func TestLogEvent_NilLoggerIsNoop(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.LogEvent(context.Background(), "org-1", "user-1", ActionAlertUpdated, "alert", "")
	})
}
