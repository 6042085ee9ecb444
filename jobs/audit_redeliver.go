package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/lumen-lms/lumen/internal/audit"
	jobmetrics "github.com/lumen-lms/lumen/internal/jobs"
)

// AuditInserter is the write side of the audit store.
type AuditInserter interface {
	Insert(ctx context.Context, e audit.Entry) (audit.Record, error)
}

// AuditRedeliverJob writes entries that the API process failed to store.
type AuditRedeliverJob struct {
	Store   AuditInserter
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewAuditRedeliverJob initialises the redelivery handler.
func NewAuditRedeliverJob(store AuditInserter, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditRedeliverJob {
	return &AuditRedeliverJob{Store: store, Logger: logger, Metrics: metrics}
}

// Handle inserts the carried entry. Undecodable payloads are archived without retry;
// store failures are returned so asynq backs off and tries again.
func (j *AuditRedeliverJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("audit redeliver: handler not configured")
	}
	var payload AuditRedeliverPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.Entry.Action == "" {
		j.Metrics.AddSkipped(TaskAuditRedeliver)
		j.logger().Error("audit redeliver: unusable payload", slog.Any("error", err))
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskAuditRedeliver)
	entry := audit.Classify(payload.Entry)
	rec, err := j.Store.Insert(ctx, entry)
	if err != nil {
		retry, _ := asynq.GetRetryCount(ctx)
		j.logger().Warn("audit redeliver failed",
			slog.String("action", entry.Action),
			slog.Int("retry", retry),
			slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger().Info("audit entry redelivered",
		slog.String("id", rec.ID),
		slog.String("action", rec.Action),
		slog.Time("failed_at", payload.FailedAt))
	return tracker.End(nil)
}

func (j *AuditRedeliverJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
