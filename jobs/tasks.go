package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/lumen-lms/lumen/internal/audit"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueCritical carries audit redeliveries ahead of mail.
	QueueCritical = "critical"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskAuditRedeliver retries an audit entry the store refused.
	TaskAuditRedeliver = "audit:redeliver"

	auditRedeliverMaxRetry = 10
	sendEmailMaxRetry      = 5
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// AuditRedeliverPayload carries an already classified entry.
type AuditRedeliverPayload struct {
	Entry    audit.Entry `json:"entry"`
	FailedAt time.Time   `json:"failedAt"`
}

// NewAuditRedeliverTask constructs an Asynq task.
func NewAuditRedeliverTask(payload AuditRedeliverPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRedeliver, data), nil
}
