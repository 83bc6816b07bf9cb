package validatesupportapplication

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "social-support-wizard/internal/common/errors"
	"social-support-wizard/internal/common/logger"
	"social-support-wizard/internal/common/observability"
	"social-support-wizard/internal/i18n"
	"social-support-wizard/internal/models"
	"social-support-wizard/internal/wizard/schema"
)

const (
	TaskType = "validate-support-application"
)

// Handler re-runs the wizard's step schemas on a submitted application, so
// the process trusts nothing the browser already checked.
type Handler struct {
	config       *Config
	keys         schema.Set
	bundle       *i18n.Bundle
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
	obs          *observability.Observability
}

func NewHandler(config *Config, rules *schema.Rules, bundle *i18n.Bundle, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		// Identity keeps the catalog key as the message, used as the error code.
		keys:         rules.For(i18n.Identity{}),
		bundle:       bundle,
		logger:       log,
		errorHandler: apperrors.NewErrorHandler(log),
		obs:          obs,
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
		h.fail(ctx, client, job, start, apperrors.NewInvalidRequestError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, start, err)
		return
	}

	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.fail(ctx, client, job, start, apperrors.NewInternalError(err))
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err,
		})
		return
	}
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "completed")
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, start time.Time, err error) {
	h.errorHandler.HandleJobError(ctx, client, job, err)
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "failed")
}

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	t := h.bundle.For(input.Language)
	sub := input.ApplicationData

	var validationErrors []ValidationError
	collect := func(section models.Section, errs schema.Errors) {
		for _, field := range sortedFields(errs) {
			key := errs[field]
			path := string(section)
			if field != "" {
				path += "." + field
			}
			validationErrors = append(validationErrors, ValidationError{
				Field:   path,
				Code:    key,
				Message: t.T(key),
			})
		}
	}

	_, errs := h.keys.Personal.Validate(personalForm(sub.PersonalInfo))
	collect(models.SectionPersonalInfo, errs)
	_, errs = h.keys.Family.Validate(sub.FamilyFinancialInfo.Form())
	collect(models.SectionFamilyFinancialInfo, errs)
	_, errs = h.keys.Situation.Validate(sub.SituationDescriptions.Form())
	collect(models.SectionSituationDescriptions, errs)

	output := &Output{
		ApplicationID:    input.ApplicationID,
		IsValid:          len(validationErrors) == 0,
		ValidationErrors: validationErrors,
	}
	if output.ValidationErrors == nil {
		output.ValidationErrors = []ValidationError{}
	}

	h.logger.Info("validation completed", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"isValid":       output.IsValid,
		"errorCount":    len(validationErrors),
	})

	if !output.IsValid && h.config.RejectInvalid {
		fields := make([]string, len(validationErrors))
		for i, ve := range validationErrors {
			fields[i] = ve.Field
		}
		return output, apperrors.NewApplicationValidationFailedError(strings.Join(fields, ", ")).
			WithMetadata("validationErrors", validationErrors)
	}
	return output, nil
}

// personalForm keeps the date of birth as submitted so a malformed value is
// reported as a field error rather than a parse failure.
func personalForm(p models.SubmittedPersonalInfo) models.PersonalInfoForm {
	return models.PersonalInfoForm{
		Name:        p.Name,
		NationalID:  p.NationalID,
		DateOfBirth: p.DateOfBirth,
		Gender:      string(p.Gender),
		Address:     p.Address,
		City:        p.City,
		State:       p.State,
		Country:     p.Country,
		Phone:       p.Phone,
		Email:       p.Email,
	}
}

func sortedFields(errs schema.Errors) []string {
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Execute is exposed for testing.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
