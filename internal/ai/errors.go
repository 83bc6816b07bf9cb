package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	apperrors "social-support-wizard/internal/common/errors"
)

var (
	ErrNotConfigured   = errors.New("AI_NOT_CONFIGURED")
	ErrTimeout         = errors.New("AI_TIMEOUT")
	ErrEmptyCompletion = errors.New("AI_EMPTY_COMPLETION")
	ErrUnknown         = errors.New("AI_UNKNOWN")
	ErrUnknownField    = errors.New("AI_UNKNOWN_FIELD")
)

// StatusError is an upstream response with an error status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Message)
}

// Kind is the failure class shown to the user.
type Kind string

const (
	KindNone           Kind = ""
	KindNotConfigured  Kind = "notConfigured"
	KindTimeout        Kind = "timeout"
	KindUpstreamStatus Kind = "upstreamStatus"
	KindEmpty          Kind = "emptyCompletion"
	KindUnknown        Kind = "unknown"
)

// Classify maps any generator error onto the user-facing taxonomy.
func Classify(err error) Kind {
	var statusErr *StatusError
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotConfigured):
		return KindNotConfigured
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.As(err, &statusErr):
		return KindUpstreamStatus
	case errors.Is(err, ErrEmptyCompletion):
		return KindEmpty
	default:
		return KindUnknown
	}
}

// MessageKey is the catalog key describing kind.
func MessageKey(kind Kind) string {
	if kind == KindNone {
		return ""
	}
	return "aiErrors." + string(kind)
}

// normalize turns transport and context errors into the typed errors above.
// deadlineOwned reports whether ctx's deadline was set by the generator.
func normalize(ctx context.Context, err error, deadlineOwned bool) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotConfigured) || errors.Is(err, ErrEmptyCompletion) || errors.Is(err, ErrTimeout) {
		return err
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return err
	}
	if deadlineOwned && (errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{StatusCode: apiErr.Code, Message: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &StatusError{StatusCode: apiErrPtr.Code, Message: apiErrPtr.Message}
	}
	return fmt.Errorf("%w: %v", ErrUnknown, err)
}

// StandardError maps a generator error onto the shared error codes so
// workflow jobs retry what may succeed later.
func StandardError(err error, timeout time.Duration) *apperrors.StandardError {
	var statusErr *StatusError
	switch {
	case errors.Is(err, ErrUnknownField):
		return apperrors.NewInvalidRequestError(err.Error())
	case errors.As(err, &statusErr):
		return apperrors.NewSuggestionUpstreamStatusError(statusErr.StatusCode, statusErr.Message)
	}

	switch Classify(err) {
	case KindNotConfigured:
		return apperrors.NewSuggestionNotConfiguredError()
	case KindTimeout:
		return apperrors.NewSuggestionTimeoutError(timeout)
	case KindEmpty:
		return apperrors.NewSuggestionEmptyError()
	default:
		return apperrors.NewSuggestionFailedError(err)
	}
}
