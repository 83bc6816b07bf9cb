package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name        string
		err         *StandardError
		wantRetries int
	}{
		{"insert failure retries", NewDatabaseInsertFailedError(stderrors.New("conn reset")), 3},
		{"suggestion timeout retries once", NewSuggestionTimeoutError(10 * time.Second), 1},
		{"validation never retries", NewApplicationValidationFailedError("personalInfo.name"), 0},
		{"duplicate never retries", NewDuplicateApplicationError("784-1990"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, string(tt.err.Code), bpmn.Code)
			assert.Equal(t, tt.wantRetries, bpmn.Retries)

			vars := bpmn.ToErrorVariables()
			assert.Equal(t, string(tt.err.Code), vars["originalErrorCode"])
			assert.Equal(t, tt.err.Message, vars["errorMessage"])
		})
	}
}

func TestGetRetryCount(t *testing.T) {
	assert.Equal(t, 3, GetRetryCount(ErrCodeDatabaseInsertFailed))
	assert.Equal(t, 1, GetRetryCount(ErrCodeSuggestionTimeout))
	assert.Zero(t, GetRetryCount(ErrCodeDuplicateApplication))
	assert.True(t, IsRetryableErrorCode(ErrCodeIndexingFailed))
	assert.False(t, IsRetryableErrorCode(ErrCodeApplicationValidationFailed))
}

func TestRemainingRetries(t *testing.T) {
	tests := []struct {
		name        string
		recommended int
		jobRetries  int32
		want        int32
	}{
		{"recommended below what is left", 1, 3, 1},
		{"capped by the broker", 3, 2, 1},
		{"last attempt", 3, 1, 0},
		{"never negative", 3, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RemainingRetries(tt.recommended, tt.jobRetries))
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ErrCodeInvalidRequest))
	assert.Equal(t, http.StatusConflict, HTTPStatus(ErrCodeInvalidStepTransition))
	assert.Equal(t, http.StatusConflict, HTTPStatus(ErrCodeSuggestionInFlight))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(ErrCodeSuggestionNotConfigured))
	assert.Equal(t, http.StatusGatewayTimeout, HTTPStatus(ErrCodeSuggestionTimeout))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(ErrCodeSuggestionUpstreamStatus))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(ErrCodeInternal))
}

func TestNormalize(t *testing.T) {
	wrapped := fmt.Errorf("submit: %w", NewSubmissionFailedError(stderrors.New("503")))
	stdErr := Normalize(wrapped)
	require.NotNil(t, stdErr)
	assert.Equal(t, ErrCodeSubmissionFailed, stdErr.Code)

	plain := Normalize(stderrors.New("boom"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, "boom", plain.Details)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeSuggestionEmpty))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeDuplicateApplication))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeIndexingFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeMissingSection))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeTimeout))
}

func TestConvertToBPMNError_MetadataBecomesVariables(t *testing.T) {
	stdErr := NewApplicationValidationFailedError("personalInfo.phone").
		WithMetadata("validationErrors", []string{"personalInfo.phone"})

	vars := ConvertToBPMNError(stdErr).ToErrorVariables()
	assert.Equal(t, []string{"personalInfo.phone"}, vars["validationErrors"])
	assert.Equal(t, false, vars["retryable"])
}
