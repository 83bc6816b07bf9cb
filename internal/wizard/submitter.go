package wizard

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"social-support-wizard/internal/common/config"
	apperrors "social-support-wizard/internal/common/errors"
	httpclient "social-support-wizard/internal/common/http"
	"social-support-wizard/internal/common/logger"
	"social-support-wizard/internal/common/observability"
	"social-support-wizard/internal/common/validation"
	"social-support-wizard/internal/i18n"
	"social-support-wizard/internal/models"
)

// Submitter hands a validated application to wherever applications go.
// The active language travels in ctx (see i18n.WithLocalizer).
type Submitter interface {
	Submit(ctx context.Context, sub models.Submission) (models.Receipt, error)
}

// ProcessStarter starts a workflow instance; *camunda.Client implements it.
type ProcessStarter interface {
	StartProcess(ctx context.Context, processID string, variables map[string]interface{}) (int64, error)
}

// NewSubmitter builds the sink selected by cfg.Mode. starter is only used
// in process mode.
func NewSubmitter(cfg config.SubmissionConfig, starter ProcessStarter, obs *observability.Observability, log logger.Logger) (Submitter, error) {
	var sub Submitter
	switch cfg.Mode {
	case config.SubmissionLocal, "":
		sub = NewLocalSubmitter(log)
	case config.SubmissionHTTP:
		sub = NewHTTPSubmitter(cfg.Endpoint, config.GetDuration(cfg.Timeout))
	case config.SubmissionProcess:
		if starter == nil {
			return nil, fmt.Errorf("submission mode %q needs a workflow client", cfg.Mode)
		}
		sub = NewProcessSubmitter(starter, cfg.ProcessID, log)
	default:
		return nil, fmt.Errorf("submission mode %q is not supported", cfg.Mode)
	}

	mode := cfg.Mode
	if mode == "" {
		mode = config.SubmissionLocal
	}
	return &recorded{next: sub, mode: mode, obs: obs}, nil
}

type recorded struct {
	next Submitter
	mode string
	obs  *observability.Observability
}

func (r *recorded) Submit(ctx context.Context, sub models.Submission) (models.Receipt, error) {
	receipt, err := r.next.Submit(ctx, sub)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	r.obs.RecordSubmission(ctx, r.mode, outcome)
	return receipt, err
}

func newReceipt(id string, now time.Time) models.Receipt {
	return models.Receipt{
		ApplicationID: id,
		Status:        models.ApplicationStatusSubmitted,
		SubmittedAt:   now.UTC().Format(time.RFC3339),
	}
}

// LocalSubmitter accepts every application without sending it anywhere.
type LocalSubmitter struct {
	log logger.Logger
	now func() time.Time
}

func NewLocalSubmitter(log logger.Logger) *LocalSubmitter {
	return &LocalSubmitter{log: log, now: time.Now}
}

func (s *LocalSubmitter) Submit(_ context.Context, _ models.Submission) (models.Receipt, error) {
	receipt := newReceipt(uuid.NewString(), s.now())
	s.log.Info("application accepted locally", map[string]interface{}{
		"applicationId": receipt.ApplicationID,
	})
	return receipt, nil
}

// HTTPSubmitter posts the application to an intake service at
// <endpoint>/submissions.
type HTTPSubmitter struct {
	client   *httpclient.Client
	endpoint string
}

func NewHTTPSubmitter(endpoint string, timeout time.Duration) *HTTPSubmitter {
	return &HTTPSubmitter{
		client:   httpclient.NewClient(timeout),
		endpoint: strings.TrimRight(endpoint, "/"),
	}
}

func (s *HTTPSubmitter) Submit(ctx context.Context, sub models.Submission) (models.Receipt, error) {
	if res := validation.ValidateSubmission(sub); !res.Valid {
		return models.Receipt{}, apperrors.NewApplicationValidationFailedError(strings.Join(res.GetErrorMessages(), "; "))
	}

	headers := map[string]string{"Accept-Language": i18n.FromContext(ctx).Lang()}

	var receipt models.Receipt
	if err := s.client.PostJSON(ctx, s.endpoint+"/submissions", headers, sub, &receipt); err != nil {
		var statusErr *httpclient.StatusError
		if stderrors.As(err, &statusErr) {
			return models.Receipt{}, apperrors.NewSubmissionFailedError(err).WithMetadata("status", statusErr.StatusCode)
		}
		if stderrors.Is(err, context.DeadlineExceeded) {
			return models.Receipt{}, apperrors.NewTimeoutError("intake", err)
		}
		return models.Receipt{}, apperrors.NewSubmissionFailedError(err)
	}
	if receipt.ApplicationID == "" {
		return models.Receipt{}, apperrors.NewSubmissionFailedError(stderrors.New("intake response carried no applicationId"))
	}
	if receipt.Status == "" {
		receipt.Status = models.ApplicationStatusSubmitted
	}
	return receipt, nil
}

// ProcessSubmitter starts one workflow instance per application.
type ProcessSubmitter struct {
	starter   ProcessStarter
	processID string
	log       logger.Logger
	now       func() time.Time
}

func NewProcessSubmitter(starter ProcessStarter, processID string, log logger.Logger) *ProcessSubmitter {
	return &ProcessSubmitter{starter: starter, processID: processID, log: log, now: time.Now}
}

func (s *ProcessSubmitter) Submit(ctx context.Context, sub models.Submission) (models.Receipt, error) {
	id := uuid.NewString()
	variables := map[string]interface{}{
		"applicationId":   id,
		"applicationData": sub,
		"language":        i18n.FromContext(ctx).Lang(),
	}

	key, err := s.starter.StartProcess(ctx, s.processID, variables)
	if err != nil {
		if _, ok := apperrors.As(err); ok {
			return models.Receipt{}, err
		}
		return models.Receipt{}, apperrors.NewSubmissionFailedError(err)
	}

	s.log.Info("application process started", map[string]interface{}{
		"applicationId":      id,
		"processId":          s.processID,
		"processInstanceKey": key,
	})
	return newReceipt(id, s.now()), nil
}
