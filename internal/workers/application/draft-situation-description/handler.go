package draftsituationdescription

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"social-support-wizard/internal/ai"
	apperrors "social-support-wizard/internal/common/errors"
	"social-support-wizard/internal/common/logger"
	"social-support-wizard/internal/common/observability"
)

const (
	TaskType = "draft-situation-description"
)

// Handler drafts one situation field for a caseworker, using the same
// generator and prompts as the applicant-facing helper.
type Handler struct {
	config       *Config
	generator    ai.Generator
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
	obs          *observability.Observability
	now          func() time.Time
}

func NewHandler(config *Config, generator ai.Generator, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		generator:    generator,
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
	err := json.Unmarshal([]byte(job.Variables), &input)
	if err != nil {
		err = apperrors.NewInvalidRequestError(fmt.Sprintf("parse input: %v", err))
	}

	var output *Output
	if err == nil {
		output, err = h.execute(ctx, &input)
	}

	status := "completed"
	if err != nil {
		status = "failed"
		h.errorHandler.HandleJobError(ctx, client, job, err)
	} else {
		h.completeJob(ctx, client, job, output)
	}
	h.obs.RecordJobProcessed(ctx, TaskType, status)
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), status)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if !input.Field.Valid() {
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("unknown situation field %q", input.Field))
	}

	draft, err := h.generator.Generate(ctx, ai.Request{
		Field:        input.Field,
		CurrentValue: input.CurrentValue,
		Timeout:      h.config.GenerationTimeout,
	})
	if err != nil {
		h.logger.Warn("draft generation failed", map[string]interface{}{
			"applicationId": input.ApplicationID,
			"field":         input.Field,
			"kind":          ai.Classify(err),
			"error":         err,
		})
		return nil, ai.StandardError(err, h.config.GenerationTimeout)
	}

	draft = strings.TrimSpace(draft)
	if draft == "" {
		return nil, apperrors.NewSuggestionEmptyError()
	}

	h.logger.Info("situation draft generated", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"field":         input.Field,
		"length":        len(draft),
	})
	return &Output{
		Field:       input.Field,
		Draft:       draft,
		GeneratedAt: h.now().UTC().Format(time.RFC3339),
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err})
	}
}

// Execute is exposed for testing.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
