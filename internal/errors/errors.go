package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// HTTP surfaces
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodePayloadTooLarge   ErrorCode = "PAYLOAD_TOO_LARGE"
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Bot handler outcomes, recorded as execution classifications
	ErrCodeParams         ErrorCode = "PARAMS_ERROR"
	ErrCodeState          ErrorCode = "STATE_ERROR"
	ErrCodeNotImplemented ErrorCode = "NOT_IMPLEMENTED"
	ErrCodeHandler        ErrorCode = "HANDLER_ERROR"

	// Internal
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabase ErrorCode = "DATABASE_ERROR"
)

// handlerCategories maps handler outcome codes to their classification prefix.
var handlerCategories = map[ErrorCode]string{
	ErrCodeParams:         "params",
	ErrCodeState:          "state",
	ErrCodeNotImplemented: "not_implemented",
	ErrCodeHandler:        "error",
}

// AppError is either an HTTP error returned to clients or the expected
// outcome of a bot handler.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.cause
}

func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// IsHandlerOutcome reports whether the error is an expected bot handler
// outcome rather than a failure of the dispatch itself.
func (e *AppError) IsHandlerOutcome() bool {
	_, ok := handlerCategories[e.Code]
	return ok
}

// Classification renders the error as "<category>:<detail>".
func (e *AppError) Classification() string {
	category, ok := handlerCategories[e.Code]
	if !ok {
		category = "error"
	}
	return category + ":" + e.Message
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func InvalidInput(field string, reason string) *AppError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("Invalid %s: %s", field, reason))
}

func PayloadTooLarge() *AppError {
	return New(ErrCodePayloadTooLarge, "Request body too large")
}

func RateLimitExceeded() *AppError {
	return New(ErrCodeRateLimitExceeded, "Too many requests. Please try again later.")
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

func Database(cause error) *AppError {
	return Wrap(ErrCodeDatabase, "Database error", cause)
}

// Bot handler outcomes

// Params reports a malformed command or callback argument.
func Params(detail string) *AppError {
	return New(ErrCodeParams, detail)
}

// State reports that the user's data does not allow the requested action.
func State(detail string) *AppError {
	return New(ErrCodeState, detail)
}

func NotImplemented(detail string) *AppError {
	return New(ErrCodeNotImplemented, detail)
}

func Handler(detail string) *AppError {
	return New(ErrCodeHandler, detail)
}

func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// AsHandlerOutcome returns the handler outcome carried by err, if any.
func AsHandlerOutcome(err error) (*AppError, bool) {
	appErr, ok := AsAppError(err)
	if !ok || !appErr.IsHandlerOutcome() {
		return nil, false
	}
	return appErr, true
}
