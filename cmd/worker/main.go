package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lumen-lms/lumen/internal/app"
	"github.com/lumen-lms/lumen/internal/audit"
	jobmetrics "github.com/lumen-lms/lumen/internal/jobs"
	"github.com/lumen-lms/lumen/internal/platform/db"
	"github.com/lumen-lms/lumen/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := jobmetrics.NewMetrics(nil)
	redeliverJob := jobs.NewAuditRedeliverJob(audit.NewPGStore(pool), logger.With(slog.String("job", jobs.TaskAuditRedeliver)), metrics)
	mailJob := jobs.NewMailJob(jobs.MailConfig{
		Addr:     cfg.SMTPAddr(),
		From:     cfg.SMTPFrom,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
	}, logger.With(slog.String("job", jobs.TaskTypeSendEmail)), metrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.Redis().AsynqOpt(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAuditRedeliver, Handler: redeliverJob.Handle},
			{Type: jobs.TaskTypeSendEmail, Handler: mailJob.Handle},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
