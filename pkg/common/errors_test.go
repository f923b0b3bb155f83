package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorUnwrap(t *testing.T) {
	err := NewValidationError("otp did not match", ErrOTPMismatch)
	assert.ErrorIs(t, err, ErrOTPMismatch)

	wrapped := fmt.Errorf("submit: %w", err)
	assert.ErrorIs(t, wrapped, ErrOTPMismatch)

	var appErr *AppError
	require.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, KindValidation, appErr.Kind)
	assert.Equal(t, "otp did not match", appErr.Message)
}

func TestAppErrorHTTPStatus(t *testing.T) {
	tests := []struct {
		kind   Kind
		status int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindConnection, http.StatusServiceUnavailable},
		{KindRemote, http.StatusConflict},
		{KindInternal, http.StatusInternalServerError},
		{Kind("unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := &AppError{Kind: tt.kind, Message: "x"}
			assert.Equal(t, tt.status, err.HTTPStatus())
		})
	}
}

func TestConstructorsDefaultSentinels(t *testing.T) {
	assert.ErrorIs(t, NewValidationError("m", nil), ErrValidation)
	assert.ErrorIs(t, NewConnectionError("m", nil), ErrNotConnected)
	assert.ErrorIs(t, NewRemoteError("m", nil), ErrRemoteRejected)
	assert.ErrorIs(t, NewInternalError("m", nil), ErrInternal)
}

func TestAsAppError(t *testing.T) {
	appErr := NewConnectionError("dispatch down", nil)
	assert.Same(t, appErr, AsAppError(appErr))
	assert.Same(t, appErr, AsAppError(fmt.Errorf("wrap: %w", appErr)))

	// Arbitrary errors default to internal
	plain := AsAppError(errors.New("boom"))
	assert.Equal(t, KindInternal, plain.Kind)
}
