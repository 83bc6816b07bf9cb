package createsupportapplicationrecord

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
	"github.com/lib/pq"

	apperrors "social-support-wizard/internal/common/errors"
	"social-support-wizard/internal/common/logger"
	"social-support-wizard/internal/common/observability"
	"social-support-wizard/internal/models"
)

const (
	TaskType = "create-support-application-record"

	uniqueViolation = "23505"
)

// Handler stores one row per application in support_applications:
//
//	id text primary key, national_id text unique, applicant_name text,
//	email text, phone text, monthly_income numeric, dependents int,
//	payload jsonb, language text, status text, created_at, updated_at
type Handler struct {
	config       *Config
	db           *sql.DB
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
	obs          *observability.Observability
	now          func() time.Time
}

func NewHandler(config *Config, db *sql.DB, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		db:           db,
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

	status := "completed"
	defer func() {
		h.obs.RecordJobProcessed(ctx, TaskType, status)
		h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), status)
	}()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		status = "failed"
		h.errorHandler.HandleJobError(ctx, client, job, apperrors.NewInvalidRequestError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		status = "failed"
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	sub := input.ApplicationData
	nationalID := sub.PersonalInfo.NationalID
	if nationalID == "" {
		return nil, apperrors.NewMissingSectionError(string(models.SectionPersonalInfo))
	}

	appID := input.ApplicationID
	if appID == "" {
		appID = uuid.NewString()
	}

	var exists bool
	err := h.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM support_applications
			WHERE national_id = $1 AND id <> $2
		)`, nationalID, appID).Scan(&exists)
	if err != nil {
		return nil, apperrors.NewDatabaseConnectionFailedError(fmt.Errorf("duplicate check: %w", err))
	}
	if exists {
		return nil, apperrors.NewDuplicateApplicationError(nationalID)
	}

	payload, err := json.Marshal(sub)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("marshal application: %w", err))
	}

	createdAt := h.now().UTC()
	// A retried job finds its own row and leaves it alone.
	_, err = h.db.ExecContext(ctx, `
		INSERT INTO support_applications (
			id, national_id, applicant_name, email, phone,
			monthly_income, dependents, payload, language,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (id) DO NOTHING`,
		appID,
		nationalID,
		sub.PersonalInfo.Name,
		sub.PersonalInfo.Email,
		sub.PersonalInfo.Phone,
		sub.FamilyFinancialInfo.MonthlyIncome,
		sub.FamilyFinancialInfo.Dependents,
		payload,
		input.Language,
		models.ApplicationStatusSubmitted,
		createdAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, apperrors.NewDuplicateApplicationError(nationalID)
		}
		return nil, apperrors.NewDatabaseInsertFailedError(err)
	}

	h.writeAudit(ctx, appID, sub, createdAt)

	h.logger.Info("application record created", map[string]interface{}{
		"applicationId": appID,
		"dependents":    sub.FamilyFinancialInfo.Dependents,
		"language":      input.Language,
	})

	return &Output{
		ApplicationID:     appID,
		ApplicationStatus: models.ApplicationStatusSubmitted,
		CreatedAt:         createdAt.Format(time.RFC3339),
	}, nil
}

// writeAudit never fails the job.
func (h *Handler) writeAudit(ctx context.Context, appID string, sub models.Submission, at time.Time) {
	details, err := json.Marshal(map[string]interface{}{
		"employmentStatus": sub.FamilyFinancialInfo.EmploymentStatus,
		"housingStatus":    sub.FamilyFinancialInfo.HousingStatus,
		"monthlyIncome":    sub.FamilyFinancialInfo.MonthlyIncome,
	})
	if err != nil {
		details = []byte("{}")
	}

	_, err = h.db.ExecContext(ctx, `
		INSERT INTO audit_log (event_type, resource_type, resource_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		"support_application_created",
		"support_application",
		appID,
		details,
		at,
	)
	if err != nil {
		h.logger.Warn("audit log insert failed", map[string]interface{}{
			"error":         err,
			"applicationId": appID,
		})
	}
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey":        job.Key,
		"applicationId": output.ApplicationID,
	})
}

// Execute is exposed for testing.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
