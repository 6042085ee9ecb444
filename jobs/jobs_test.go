package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-lms/lumen/internal/audit"
	jobmetrics "github.com/lumen-lms/lumen/internal/jobs"
)

type enqueued struct {
	task *asynq.Task
	opts []asynq.Option
}

type fakeEnqueuer struct {
	tasks []enqueued
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, enqueued{task: task, opts: opts})
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

func queueOf(opts []asynq.Option) string {
	for _, o := range opts {
		if o.Type() == asynq.QueueOpt {
			return o.Value().(string)
		}
	}
	return ""
}

func TestClientRedeliverUsesCriticalQueue(t *testing.T) {
	fake := &fakeEnqueuer{}
	failedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c := &Client{client: fake, now: func() time.Time { return failedAt }}

	entry := audit.Classify(audit.Entry{Action: audit.ActionUserLoginFailed, Details: map[string]any{"reason": "bad password"}})
	require.NoError(t, c.Redeliver(context.Background(), entry))

	require.Len(t, fake.tasks, 1)
	got := fake.tasks[0]
	assert.Equal(t, TaskAuditRedeliver, got.task.Type())
	assert.Equal(t, QueueCritical, queueOf(got.opts))

	var payload AuditRedeliverPayload
	require.NoError(t, json.Unmarshal(got.task.Payload(), &payload))
	assert.Equal(t, entry.Action, payload.Entry.Action)
	assert.Equal(t, audit.SeverityWarning, payload.Entry.Severity)
	assert.Equal(t, failedAt, payload.FailedAt)
}

func TestClientSendPasswordReset(t *testing.T) {
	fake := &fakeEnqueuer{}
	c := &Client{client: fake, now: time.Now}

	require.NoError(t, c.SendPasswordReset(context.Background(), "ana@example.com", "https://lumen.test/reset-password?token=abc"))
	require.Len(t, fake.tasks, 1)
	assert.Equal(t, QueueDefault, queueOf(fake.tasks[0].opts))

	var payload SendEmailPayload
	require.NoError(t, json.Unmarshal(fake.tasks[0].task.Payload(), &payload))
	assert.Equal(t, "ana@example.com", payload.To)
	assert.Contains(t, payload.Body, "token=abc")

	fake.err = errors.New("redis down")
	assert.Error(t, c.SendPasswordReset(context.Background(), "ana@example.com", "x"))
}

type failingInserter struct {
	err   error
	calls int
	got   audit.Entry
}

func (f *failingInserter) Insert(_ context.Context, e audit.Entry) (audit.Record, error) {
	f.calls++
	f.got = e
	if f.err != nil {
		return audit.Record{}, f.err
	}
	return audit.Record{ID: "1", Action: e.Action}, nil
}

func TestAuditRedeliverJob(t *testing.T) {
	store := audit.NewMemoryStore()
	job := NewAuditRedeliverJob(store, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewAuditRedeliverTask(AuditRedeliverPayload{Entry: audit.Entry{Action: audit.ActionUserRoleChanged, ActorID: "u1"}})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	records := store.Records()
	require.Len(t, records, 1)
	assert.Equal(t, audit.SeverityCritical, records[0].Severity, "entries are classified before insert")

	err = job.Handle(context.Background(), asynq.NewTask(TaskAuditRedeliver, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	err = job.Handle(context.Background(), asynq.NewTask(TaskAuditRedeliver, []byte(`{"entry":{}}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	failing := &failingInserter{err: errors.New("db down")}
	job = NewAuditRedeliverJob(failing, nil, nil)
	err = job.Handle(context.Background(), task)
	assert.EqualError(t, err, "db down")
	assert.Equal(t, 1, failing.calls)
}

func TestMailJobDisabledOnlyLogs(t *testing.T) {
	job := NewMailJob(MailConfig{}, nil, nil)
	job.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called without an smtp address")
		return nil
	}
	task, err := NewSendEmailTask(SendEmailPayload{To: "a@example.com", Subject: "hi", Body: "x"})
	require.NoError(t, err)
	assert.NoError(t, job.Handle(context.Background(), task))
}

func TestMailJobSends(t *testing.T) {
	job := NewMailJob(MailConfig{Addr: "smtp.example.com:587", From: "noreply@lumen.test", Username: "u", Password: "p"}, nil, nil)
	job.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	var gotTo []string
	var gotMsg string
	job.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		assert.Equal(t, "smtp.example.com:587", addr)
		assert.NotNil(t, a)
		assert.Equal(t, "noreply@lumen.test", from)
		gotTo, gotMsg = to, string(msg)
		return nil
	}
	task, err := NewSendEmailTask(SendEmailPayload{To: "a@example.com", Subject: "Reset your password", Body: "line1\nline2"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	assert.Equal(t, []string{"a@example.com"}, gotTo)
	assert.True(t, strings.HasPrefix(gotMsg, "From: noreply@lumen.test\r\n"))
	assert.Contains(t, gotMsg, "Subject: Reset your password\r\n")
	assert.Contains(t, gotMsg, "line1\r\nline2")

	job.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("relay refused") }
	assert.Error(t, job.Handle(context.Background(), task))
}

func TestMailJobRejectsHeaderInjection(t *testing.T) {
	job := NewMailJob(MailConfig{Addr: "smtp.example.com:25"}, nil, nil)
	job.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called")
		return nil
	}
	task, err := NewSendEmailTask(SendEmailPayload{To: "a@example.com\r\nBcc: x@example.com", Subject: "hi"})
	require.NoError(t, err)
	assert.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
	assert.ErrorIs(t, job.Handle(context.Background(), asynq.NewTask(TaskTypeSendEmail, []byte("nope"))), asynq.SkipRetry)
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	info := *s.info
	info.Queue = queue
	return &info, nil
}

func TestHealthHandler(t *testing.T) {
	router := chi.NewRouter()
	router.Route("/jobs", NewHandler(stubInspector{info: &asynq.QueueInfo{Pending: 2, Retry: 1}}, nil).MountRoutes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queues":[{"queue":"critical","pending":2,"retry":1,"archived":0},{"queue":"default","pending":2,"retry":1,"archived":0}]}`, rr.Body.String())

	router = chi.NewRouter()
	router.Route("/jobs", NewHandler(stubInspector{err: errors.New("redis down")}, nil).MountRoutes)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	router = chi.NewRouter()
	router.Route("/jobs", NewHandler(stubInspector{err: asynq.ErrQueueNotFound}, nil).MountRoutes)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
