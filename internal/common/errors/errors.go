// Package errors provides standardized error handling for the wizard API and
// the workflow workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeApplicationValidationFailed ErrorCode = "APPLICATION_VALIDATION_FAILED"
	ErrCodeMissingSection              ErrorCode = "MISSING_SECTION"
	ErrCodeInvalidRequest              ErrorCode = "INVALID_REQUEST"
	ErrCodeInvalidStepTransition       ErrorCode = "INVALID_STEP_TRANSITION"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeDuplicateApplication     ErrorCode = "DUPLICATE_APPLICATION"
	ErrCodeIndexingFailed           ErrorCode = "INDEXING_FAILED"
	ErrCodeNotificationSendFailed   ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeSubmissionFailed         ErrorCode = "SUBMISSION_FAILED"

	ErrCodeSuggestionNotConfigured  ErrorCode = "SUGGESTION_NOT_CONFIGURED"
	ErrCodeSuggestionTimeout        ErrorCode = "SUGGESTION_TIMEOUT"
	ErrCodeSuggestionUpstreamStatus ErrorCode = "SUGGESTION_UPSTREAM_STATUS"
	ErrCodeSuggestionEmpty          ErrorCode = "SUGGESTION_EMPTY"
	ErrCodeSuggestionFailed         ErrorCode = "SUGGESTION_FAILED"
	ErrCodeSuggestionInFlight       ErrorCode = "SUGGESTION_IN_FLIGHT"

	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout         ErrorCode = "TIMEOUT"
	ErrCodeNotFound        ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeBusinessRule    ErrorCode = "BUSINESS_RULE_VIOLATION"
	ErrCodeAuthentication  ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key to the error's metadata and returns the error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

// As extracts a *StandardError from err's chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewApplicationValidationFailedError reports invalid sections; not retryable.
func NewApplicationValidationFailedError(details string) *StandardError {
	return newError(ErrCodeApplicationValidationFailed, "Application data failed validation", details, false)
}

// NewMissingSectionError reports a section absent from the submission payload.
func NewMissingSectionError(section string) *StandardError {
	return newError(ErrCodeMissingSection, "Application section is missing", fmt.Sprintf("section: %s", section), false)
}

func NewInvalidRequestError(details string) *StandardError {
	return newError(ErrCodeInvalidRequest, "Invalid request", details, false)
}

func NewInvalidStepTransitionError(details string) *StandardError {
	return newError(ErrCodeInvalidStepTransition, "Step transition not allowed", details, false)
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true)
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Application record insert failed", err.Error(), true)
}

func NewDuplicateApplicationError(nationalID string) *StandardError {
	return newError(ErrCodeDuplicateApplication, "An application already exists for this national id", fmt.Sprintf("nationalId: %s", nationalID), false)
}

func NewIndexingFailedError(err error) *StandardError {
	return newError(ErrCodeIndexingFailed, "Search indexing failed", err.Error(), true)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed", fmt.Sprintf("channel: %s, error: %s", channel, err.Error()), true)
}

func NewSubmissionFailedError(err error) *StandardError {
	return newError(ErrCodeSubmissionFailed, "Application submission failed", err.Error(), true)
}

func NewSuggestionNotConfiguredError() *StandardError {
	return newError(ErrCodeSuggestionNotConfigured, "Suggestion service is not configured", "", false)
}

func NewSuggestionTimeoutError(timeout time.Duration) *StandardError {
	return newError(ErrCodeSuggestionTimeout, "Suggestion request timed out", fmt.Sprintf("timeout: %s", timeout), true)
}

func NewSuggestionUpstreamStatusError(status int, body string) *StandardError {
	return newError(ErrCodeSuggestionUpstreamStatus, "Suggestion service returned an error status", fmt.Sprintf("status: %d, body: %s", status, body), true).
		WithMetadata("status", status)
}

func NewSuggestionEmptyError() *StandardError {
	return newError(ErrCodeSuggestionEmpty, "Suggestion service returned no usable completion", "", true)
}

func NewSuggestionFailedError(err error) *StandardError {
	return newError(ErrCodeSuggestionFailed, "Suggestion request failed", err.Error(), true)
}

func NewSuggestionInFlightError(field string) *StandardError {
	return newError(ErrCodeSuggestionInFlight, "A suggestion is already being generated", fmt.Sprintf("field: %s", field), false)
}

// NewBusinessRuleError creates a non-retryable business error.
func NewBusinessRuleError(message, details string) *StandardError {
	return newError(ErrCodeBusinessRule, message, details, false)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service %s failed", service), err.Error(), true)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Call to %s timed out", service), err.Error(), true)
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return newError(ErrCodeNotFound, fmt.Sprintf("Resource not found in %s", service), details, false)
}

func NewAuthenticationError(details string) *StandardError {
	return newError(ErrCodeAuthentication, "Authentication failed", details, false)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// ==========================
// 4. Error Conversion
// ==========================

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeIndexingFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeSubmissionFailed,
		ErrCodeExternalService,
		ErrCodeSuggestionUpstreamStatus,
		ErrCodeSuggestionEmpty,
		ErrCodeSuggestionFailed:
		return 3

	case ErrCodeTimeout:
		return 2

	case ErrCodeSuggestionTimeout:
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	// Metadata reaches the process as variables, e.g. validationErrors.
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// HTTPStatus maps an error code to the status the wizard API answers with.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeApplicationValidationFailed, ErrCodeMissingSection, ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidStepTransition, ErrCodeSuggestionInFlight, ErrCodeDuplicateApplication:
		return http.StatusConflict
	case ErrCodeSuggestionNotConfigured:
		return http.StatusServiceUnavailable
	case ErrCodeSuggestionTimeout, ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeSuggestionUpstreamStatus, ErrCodeSuggestionEmpty, ErrCodeSuggestionFailed,
		ErrCodeExternalService, ErrCodeSubmissionFailed:
		return http.StatusBadGateway
	case ErrCodeAuthentication:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "SUGGESTION"):
		return "AI"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "DUPLICATE"):
		return "DATABASE"
	case strings.Contains(codeStr, "INDEXING"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "SUBMISSION"):
		return "SUBMISSION"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "MISSING"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
