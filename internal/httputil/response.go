package httputil

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/trelloplus/bot-server-go/internal/errors"
)

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ErrorResponse is the body of every JSON error.
type ErrorResponse struct {
	Error   string              `json:"error"`
	Code    apperrors.ErrorCode `json:"code"`
	Details any                 `json:"details,omitempty"`
}

// WriteError renders err with the status of its code. Errors that are not
// AppErrors are hidden behind a generic internal error.
func WriteError(w http.ResponseWriter, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.Internal("An unexpected error occurred")
	}

	WriteJSON(w, StatusOf(appErr.Code), ErrorResponse{
		Error:   appErr.Message,
		Code:    appErr.Code,
		Details: appErr.Details,
	})
}

var codeStatus = map[apperrors.ErrorCode]int{
	apperrors.ErrCodeInvalidInput:      http.StatusBadRequest,
	apperrors.ErrCodeParams:            http.StatusBadRequest,
	apperrors.ErrCodeUnauthorized:      http.StatusUnauthorized,
	apperrors.ErrCodeNotFound:          http.StatusNotFound,
	apperrors.ErrCodeState:             http.StatusConflict,
	apperrors.ErrCodePayloadTooLarge:   http.StatusRequestEntityTooLarge,
	apperrors.ErrCodeRateLimitExceeded: http.StatusTooManyRequests,
	apperrors.ErrCodeNotImplemented:    http.StatusNotImplemented,
}

// StatusOf maps an error code to its HTTP status, 500 by default.
func StatusOf(code apperrors.ErrorCode) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
