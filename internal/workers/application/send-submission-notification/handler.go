package sendsubmissionnotification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "social-support-wizard/internal/common/errors"
	"social-support-wizard/internal/common/logger"
	"social-support-wizard/internal/common/observability"
	"social-support-wizard/internal/i18n"
)

const (
	TaskType = "send-submission-notification"
)

// EmailSender is satisfied by *aws.Mailer.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) (string, error)
}

// SMSSender is satisfied by *aws.SMSSender.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) (string, error)
}

// Handler confirms receipt to the applicant in the language they applied
// in. Email is required when enabled; SMS is best-effort.
type Handler struct {
	config       *Config
	bundle       *i18n.Bundle
	email        EmailSender
	sms          SMSSender
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
	obs          *observability.Observability
	now          func() time.Time
}

func NewHandler(config *Config, bundle *i18n.Bundle, email EmailSender, sms SMSSender, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		bundle:       bundle,
		email:        email,
		sms:          sms,
		logger:       log,
		errorHandler: apperrors.NewErrorHandler(log),
		obs:          obs,
		now:          time.Now,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(ctx, client, job, start, apperrors.NewInvalidRequestError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(ctx, client, job, start, err)
		return
	}

	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err})
		return
	}
	if _, err = cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err})
		return
	}
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "completed")
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, start time.Time, err error) {
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "failed")
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	t := h.bundle.For(input.Language)
	applicant := input.ApplicationData.PersonalInfo
	output := &Output{
		Language:   t.Lang(),
		NotifiedAt: h.now().UTC().Format(time.RFC3339),
	}

	if h.config.EmailEnabled && h.email != nil {
		if applicant.Email == "" {
			return nil, apperrors.NewInvalidRequestError("applicant has no email address")
		}
		income, _ := input.ApplicationData.FamilyFinancialInfo.MonthlyIncome.Float64()
		subject := t.T("notifications.emailSubject", i18n.P("applicationId", input.ApplicationID))
		body := t.T("notifications.emailBody",
			i18n.P("name", applicant.Name),
			i18n.P("applicationId", input.ApplicationID),
			i18n.P("date", h.submittedOn(input.CreatedAt)),
			i18n.P("income", t.FormatNumber(income, 2)),
		)

		id, err := h.email.SendEmail(ctx, applicant.Email, subject, body)
		if err != nil {
			return nil, apperrors.NewNotificationSendFailedError("email", err)
		}
		output.EmailSent = true
		output.EmailMessageID = id
	}

	if h.config.SMSEnabled && h.sms != nil && applicant.Phone != "" {
		message := t.T("notifications.sms", i18n.P("applicationId", input.ApplicationID))
		id, err := h.sms.SendSMS(ctx, applicant.Phone, message)
		if err != nil {
			h.logger.Warn("sms send failed", map[string]interface{}{
				"applicationId": input.ApplicationID,
				"error":         err,
			})
		} else {
			output.SMSSent = true
			output.SMSMessageID = id
		}
	}

	h.logger.Info("submission notification sent", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"language":      output.Language,
		"emailSent":     output.EmailSent,
		"smsSent":       output.SMSSent,
	})
	return output, nil
}

// submittedOn renders the submission date as YYYY-MM-DD, falling back to
// today when createdAt is absent or unparseable.
func (h *Handler) submittedOn(createdAt string) string {
	at, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		at = h.now()
	}
	return at.UTC().Format("2006-01-02")
}

// Execute is exposed for testing.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
