package indexsupportapplication

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	apperrors "social-support-wizard/internal/common/errors"
	"social-support-wizard/internal/common/logger"
	"social-support-wizard/internal/common/observability"
	"social-support-wizard/internal/models"
)

const (
	TaskType = "index-support-application"
)

type Handler struct {
	config       *Config
	client       *elasticsearch.Client
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
	obs          *observability.Observability
	now          func() time.Time
}

func NewHandler(config *Config, client *elasticsearch.Client, obs *observability.Observability, log logger.Logger) *Handler {
	if config.Index == "" {
		config.Index = DefaultIndex
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		client:       client,
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
		h.finish(ctx, start, "failed")
		h.errorHandler.HandleJobError(ctx, client, job, apperrors.NewInvalidRequestError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.finish(ctx, start, "failed")
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err})
		return
	}
	h.finish(ctx, start, "completed")
}

func (h *Handler) finish(ctx context.Context, start time.Time, status string) {
	h.obs.RecordJobProcessed(ctx, TaskType, status)
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), status)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ApplicationID == "" {
		return nil, apperrors.NewInvalidRequestError("applicationId is required")
	}

	body, err := json.Marshal(h.document(input))
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("marshal document: %w", err))
	}

	opts := []func(*esapi.IndexRequest){
		h.client.Index.WithContext(ctx),
		h.client.Index.WithDocumentID(input.ApplicationID),
	}
	if h.config.Refresh != "" {
		opts = append(opts, h.client.Index.WithRefresh(h.config.Refresh))
	}

	res, err := h.client.Index(h.config.Index, bytes.NewReader(body), opts...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.NewTimeoutError("elasticsearch", err)
		}
		return nil, apperrors.NewIndexingFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		statusErr := fmt.Errorf("index %s: %s: %s", h.config.Index, res.Status(), strings.TrimSpace(string(raw)))
		// A rejected document will be rejected again; overload and outages won't last.
		if res.StatusCode >= http.StatusBadRequest && res.StatusCode < http.StatusInternalServerError &&
			res.StatusCode != http.StatusTooManyRequests && res.StatusCode != http.StatusRequestTimeout {
			return nil, apperrors.NewBusinessRuleError("Search document rejected", statusErr.Error())
		}
		return nil, apperrors.NewIndexingFailedError(statusErr)
	}

	var result struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		h.logger.Warn("could not decode index response", map[string]interface{}{"error": err})
	}

	h.logger.Info("application indexed", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"index":         h.config.Index,
		"result":        result.Result,
	})

	return &Output{
		Indexed:     true,
		SearchIndex: h.config.Index,
		Result:      result.Result,
	}, nil
}

func (h *Handler) document(input *Input) Document {
	sub := input.ApplicationData
	income, _ := sub.FamilyFinancialInfo.MonthlyIncome.Float64()

	submittedAt := input.CreatedAt
	if submittedAt == "" {
		submittedAt = h.now().UTC().Format(time.RFC3339)
	}

	var situation []string
	for _, field := range models.SituationFields {
		if text := strings.TrimSpace(sub.SituationDescriptions.Field(field)); text != "" {
			situation = append(situation, text)
		}
	}

	return Document{
		ApplicationID:    input.ApplicationID,
		ApplicantName:    sub.PersonalInfo.Name,
		NationalID:       sub.PersonalInfo.NationalID,
		Email:            sub.PersonalInfo.Email,
		City:             sub.PersonalInfo.City,
		Country:          sub.PersonalInfo.Country,
		MaritalStatus:    string(sub.FamilyFinancialInfo.MaritalStatus),
		Dependents:       sub.FamilyFinancialInfo.Dependents,
		EmploymentStatus: string(sub.FamilyFinancialInfo.EmploymentStatus),
		HousingStatus:    string(sub.FamilyFinancialInfo.HousingStatus),
		MonthlyIncome:    income,
		Situation:        strings.Join(situation, "\n\n"),
		Language:         input.Language,
		Status:           models.ApplicationStatusSubmitted,
		SubmittedAt:      submittedAt,
	}
}

// Execute is exposed for testing.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
