package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/trelloplus/bot-server-go/internal/errors"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   apperrors.ErrorCode
	}{
		{"invalid input", apperrors.InvalidInput("token", "too long"), http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"unauthorized", apperrors.Unauthorized("Invalid token"), http.StatusUnauthorized, apperrors.ErrCodeUnauthorized},
		{"not found", apperrors.NotFound("User"), http.StatusNotFound, apperrors.ErrCodeNotFound},
		{"too large", apperrors.PayloadTooLarge(), http.StatusRequestEntityTooLarge, apperrors.ErrCodePayloadTooLarge},
		{"rate limited", apperrors.RateLimitExceeded(), http.StatusTooManyRequests, apperrors.ErrCodeRateLimitExceeded},
		{"database", apperrors.Database(errors.New("down")), http.StatusInternalServerError, apperrors.ErrCodeDatabase},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError, apperrors.ErrCodeInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tc.err)

			assert.Equal(t, tc.expectedStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.expectedCode, body.Code)
			assert.NotEmpty(t, body.Error)
			assert.NotContains(t, body.Error, "down")
		})
	}
}

func TestStatusOf_HandlerOutcomes(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusOf(apperrors.ErrCodeParams))
	assert.Equal(t, http.StatusConflict, StatusOf(apperrors.ErrCodeState))
	assert.Equal(t, http.StatusNotImplemented, StatusOf(apperrors.ErrCodeNotImplemented))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(apperrors.ErrCodeHandler))
}
