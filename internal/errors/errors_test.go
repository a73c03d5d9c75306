package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("formats code and message", func(t *testing.T) {
		err := NotFound("User")
		assert.Equal(t, "NOT_FOUND: User not found", err.Error())
	})

	t.Run("includes and unwraps the cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Database(cause)
		assert.Contains(t, err.Error(), "DATABASE_ERROR")
		assert.Contains(t, err.Error(), "connection refused")
		assert.ErrorIs(t, err, cause)
	})

	t.Run("carries details", func(t *testing.T) {
		err := InvalidInput("fields", "unknown field x").WithDetails(map[string]string{"field": "x"})
		assert.Equal(t, map[string]string{"field": "x"}, err.Details)
	})
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name         string
		err          *AppError
		expectedCode ErrorCode
		outcome      bool
	}{
		{"Unauthorized", Unauthorized("Invalid token"), ErrCodeUnauthorized, false},
		{"NotFound", NotFound("User"), ErrCodeNotFound, false},
		{"InvalidInput", InvalidInput("token", "too long"), ErrCodeInvalidInput, false},
		{"PayloadTooLarge", PayloadTooLarge(), ErrCodePayloadTooLarge, false},
		{"RateLimitExceeded", RateLimitExceeded(), ErrCodeRateLimitExceeded, false},
		{"Internal", Internal("Failed to store token"), ErrCodeInternal, false},
		{"Params", Params("wrong_format"), ErrCodeParams, true},
		{"State", State("multiple_timers"), ErrCodeState, true},
		{"NotImplemented", NotImplemented("sticker"), ErrCodeNotImplemented, true},
		{"Handler", Handler("boom"), ErrCodeHandler, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expectedCode, tc.err.Code)
			assert.NotEmpty(t, tc.err.Message)
			assert.Equal(t, tc.outcome, tc.err.IsHandlerOutcome())
		})
	}
}

func TestAsAppError(t *testing.T) {
	t.Run("extracts wrapped AppError", func(t *testing.T) {
		original := NotFound("User")
		extracted, ok := AsAppError(fmt.Errorf("lookup: %w", original))
		assert.True(t, ok)
		assert.Same(t, original, extracted)
	})

	t.Run("returns false for non-AppError", func(t *testing.T) {
		extracted, ok := AsAppError(errors.New("standard error"))
		assert.False(t, ok)
		assert.Nil(t, extracted)
	})
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{"params", Params("wrong_format"), "params:wrong_format"},
		{"state", State("multiple_timers"), "state:multiple_timers"},
		{"not implemented", NotImplemented("not_implemented"), "not_implemented:not_implemented"},
		{"generic handler error", Handler("boom"), "error:boom"},
		{"non-outcome falls back to error", Internal("boom"), "error:boom"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.err.Classification())
		})
	}
}

func TestAsHandlerOutcome(t *testing.T) {
	t.Run("unwraps wrapped handler outcome", func(t *testing.T) {
		err := fmt.Errorf("timer_start: %w", State("multiple_timers"))
		outcome, ok := AsHandlerOutcome(err)
		assert.True(t, ok)
		assert.Equal(t, "state:multiple_timers", outcome.Classification())
	})

	t.Run("rejects non-outcome AppError", func(t *testing.T) {
		_, ok := AsHandlerOutcome(Database(errors.New("down")))
		assert.False(t, ok)
	})

	t.Run("rejects plain error", func(t *testing.T) {
		_, ok := AsHandlerOutcome(errors.New("plain"))
		assert.False(t, ok)
	})
}
