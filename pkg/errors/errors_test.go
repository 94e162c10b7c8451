package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Is(t *testing.T) {
	err := ErrLifecycle.WithMessage("message %q not yet received", "abc")

	assert.True(t, stderrors.Is(err, ErrLifecycle))
	assert.False(t, stderrors.Is(err, ErrUsage))
	assert.True(t, stderrors.Is(fmt.Errorf("wrapped: %w", err), ErrLifecycle))
	assert.Contains(t, err.Error(), `message "abc" not yet received`)
}

func TestError_WithDetailDoesNotMutateSentinel(t *testing.T) {
	_ = ErrNotFound.WithDetail("id", "42")

	assert.Empty(t, ErrNotFound.Details)
}

func TestError_Classification(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		fatal bool
	}{
		{"validation", ErrValidation.WithMessage("bad"), IsValidation, true},
		{"lifecycle", ErrLifecycle, IsLifecycle, true},
		{"usage", ErrUsage, IsUsage, true},
		{"invalid argument", ErrInvalidArgument, IsInvalidArgument, true},
		{"unavailable", ErrUnavailable, IsUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(fmt.Errorf("ctx: %w", tt.err)))
			var appErr *Error
			assert.True(t, stderrors.As(tt.err, &appErr))
			assert.Equal(t, tt.fatal, appErr.IsFatal())
		})
	}
}

func TestToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, ToHTTPStatus(ErrNotFound))
	assert.Equal(t, http.StatusBadRequest, ToHTTPStatus(ErrValidation))
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(stderrors.New("boom")))
}

func TestToErrorResponse(t *testing.T) {
	resp := ToErrorResponse(ErrValidation.WithDetail("field", "period"))

	assert.Equal(t, "VALIDATION_ERROR", resp["error_code"])
	assert.Equal(t, map[string]interface{}{"field": "period"}, resp["details"])

	resp = ToErrorResponse(stderrors.New("boom"))
	assert.Equal(t, "INTERNAL_ERROR", resp["error_code"])
}

func TestFromPanic(t *testing.T) {
	assert.NoError(t, FromPanic(nil))

	err := FromPanic("kaboom")
	var appErr *Error
	assert.True(t, stderrors.As(err, &appErr))
	assert.True(t, appErr.IsFatal())
	assert.NotEmpty(t, appErr.Details["stack"])
	assert.Contains(t, err.Error(), "panic recovered")
	assert.Contains(t, err.Error(), "kaboom")

	cause := stderrors.New("nil map")
	assert.ErrorIs(t, FromPanic(cause), cause)
}

func TestError_IsDistinguishesDerivedSentinels(t *testing.T) {
	notReceived := ErrLifecycle.WithMessage("not received")
	notFinished := ErrLifecycle.WithMessage("not finished")

	assert.True(t, stderrors.Is(notReceived, ErrLifecycle))
	assert.True(t, stderrors.Is(notReceived, notReceived))
	assert.False(t, stderrors.Is(notReceived, notFinished))
	assert.False(t, stderrors.Is(ErrLifecycle, notReceived))
}
