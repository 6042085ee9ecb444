package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/lumen-lms/lumen/internal/jobs"
)

// MailConfig describes the outgoing SMTP relay. An empty Addr disables delivery and
// the job only logs the recipient.
type MailConfig struct {
	Addr     string
	From     string
	Username string
	Password string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// MailJob delivers SendEmailPayload tasks.
type MailJob struct {
	cfg     MailConfig
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
	send    sendFunc
	now     func() time.Time
}

// NewMailJob constructs the mail handler.
func NewMailJob(cfg MailConfig, logger *slog.Logger, metrics *jobmetrics.Metrics) *MailJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &MailJob{cfg: cfg, logger: logger, metrics: metrics, send: smtp.SendMail, now: time.Now}
}

// Handle processes TaskTypeSendEmail tasks.
func (j *MailJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		j.metrics.AddSkipped(TaskTypeSendEmail)
		return asynq.SkipRetry
	}
	if payload.To == "" || strings.ContainsAny(payload.To, "\r\n") || strings.ContainsAny(payload.Subject, "\r\n") {
		j.metrics.AddSkipped(TaskTypeSendEmail)
		j.logger.Error("send email: invalid headers", slog.String("to", payload.To))
		return asynq.SkipRetry
	}

	tracker := j.metrics.Track(TaskTypeSendEmail)
	if j.cfg.Addr == "" {
		j.logger.Info("mail delivery disabled", slog.String("to", payload.To), slog.String("subject", payload.Subject))
		return tracker.End(nil)
	}
	if err := ctx.Err(); err != nil {
		return tracker.End(err)
	}

	var auth smtp.Auth
	if j.cfg.Username != "" {
		host, _, err := net.SplitHostPort(j.cfg.Addr)
		if err != nil {
			return tracker.End(fmt.Errorf("send email: smtp addr: %w", err))
		}
		auth = smtp.PlainAuth("", j.cfg.Username, j.cfg.Password, host)
	}
	if err := j.send(j.cfg.Addr, auth, j.cfg.From, []string{payload.To}, j.message(payload)); err != nil {
		j.logger.Warn("send email failed", slog.String("to", payload.To), slog.Any("error", err))
		return tracker.End(err)
	}
	return tracker.End(nil)
}

func (j *MailJob) message(p SendEmailPayload) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", j.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", p.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", p.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", j.now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(p.Body, "\n", "\r\n"))
	return []byte(b.String())
}
