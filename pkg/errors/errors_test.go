package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", http.StatusBadRequest)
	assert.Equal(t, "INVALID_INPUT: test error", err.Error())
}

func TestAppError_WithCause(t *testing.T) {
	original := errors.New("original error")
	err := WrapError(original, ErrCodeInternal, "wrapped error", http.StatusInternalServerError)

	assert.Same(t, original, err.Cause)
	assert.Contains(t, err.Error(), "original error")
	assert.True(t, errors.Is(err, original))
}

func TestAppError_WithContext(t *testing.T) {
	err := NewInvalidInputError("bad bid")
	err.WithContext("field", "amount").WithContext("min", 20)

	assert.Equal(t, "amount", err.Context["field"])
	assert.Equal(t, 20, err.Context["min"])
}

func TestConstructors(t *testing.T) {
	cases := []struct {
		err    *AppError
		code   ErrorCode
		status int
	}{
		{NewInvalidInputError("x"), ErrCodeInvalidInput, http.StatusBadRequest},
		{NewNotFoundError("stream"), ErrCodeNotFound, http.StatusNotFound},
		{NewUnauthorizedError("x"), ErrCodeUnauthorized, http.StatusUnauthorized},
		{NewConflictError("x"), ErrCodeConflict, http.StatusConflict},
		{NewRateLimitError(), ErrCodeRateLimit, http.StatusTooManyRequests},
		{NewTimeoutError("x"), ErrCodeTimeout, http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, tc.err.Code)
		assert.Equal(t, tc.status, tc.err.HTTPStatus)
	}
	assert.Equal(t, "NOT_FOUND: stream not found", NewNotFoundError("stream").Error())
}

func TestGetAppError(t *testing.T) {
	appErr := NewInvalidInputError("test")
	assert.Same(t, appErr, GetAppError(appErr))

	wrapped := fmt.Errorf("handler: %w", appErr)
	assert.False(t, IsAppError(wrapped))
	require.NotNil(t, GetAppError(wrapped))
	assert.Same(t, appErr, GetAppError(wrapped))

	assert.Nil(t, GetAppError(errors.New("regular error")))
	assert.Nil(t, GetAppError(nil))
}
