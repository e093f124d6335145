package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/gbdelivering/backend-butchery/internal/common"
	"github.com/gbdelivering/backend-butchery/internal/obs"
)

// TypeEmailSend identifies the email delivery task.
const TypeEmailSend = "email:send"

// EmailPayload is the asynq task payload for a single outbound message.
type EmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Enqueuer schedules email deliveries on the task queue so that mail never
// blocks request handling.
type Enqueuer struct {
	Client *asynq.Client
}

// EnqueueEmail queues one message. A nil client degrades to a no-op so the
// API can run without a worker in development.
func (e Enqueuer) EnqueueEmail(ctx context.Context, to, subject, html string) error {
	if e.Client == nil {
		return nil
	}
	payload, err := json.Marshal(EmailPayload{To: to, Subject: subject, HTML: html})
	if err != nil {
		return fmt.Errorf("notify: marshal email payload: %w", err)
	}
	task := asynq.NewTask(TypeEmailSend, payload, asynq.MaxRetry(5), asynq.Queue("mail"))
	if _, err := e.Client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("notify: enqueue email: %w", err)
	}
	return nil
}

// NewEmailTaskHandler returns the worker-side handler for TypeEmailSend.
func NewEmailTaskHandler(sender common.EmailSender, logger zerolog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload EmailPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("notify: decode email payload: %w", asynq.SkipRetry)
		}
		if sender == nil {
			return nil
		}
		if err := sender.Send(payload.To, payload.Subject, payload.HTML); err != nil {
			if obs.EmailsSentTotal != nil {
				obs.EmailsSentTotal.WithLabelValues("error").Inc()
			}
			logger.Error().Err(err).Str("to", payload.To).Msg("email delivery failed")
			return err
		}
		if obs.EmailsSentTotal != nil {
			obs.EmailsSentTotal.WithLabelValues("ok").Inc()
		}
		logger.Info().Str("to", payload.To).Str("subject", payload.Subject).Msg("email sent")
		return nil
	}
}
