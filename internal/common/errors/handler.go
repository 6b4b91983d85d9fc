// internal/common/errors/handler.go
package errors

import (
	"encoding/json"
	"net/http"
	"time"
)

// ErrorHandler normalizes errors and writes them as structured HTTP
// responses at the service boundary.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// WriteError normalizes err to a StandardError, logs it, and writes a
// JSON error body with a status derived from the error class.
func (h *ErrorHandler) WriteError(w http.ResponseWriter, requestID string, err error) {
	stdErr := h.normalizeError(err)

	h.logger.Error("request failed", map[string]interface{}{
		"requestId":     requestID,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(stdErr.Code))
	_ = json.NewEncoder(w).Encode(stdErr)
}

// normalizeError ensures we always have a StandardError.
func (h *ErrorHandler) normalizeError(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func statusFor(code ErrorCode) int {
	switch {
	case code == ErrCodeRequestInvalid:
		return http.StatusBadRequest
	case IsConfigError(code):
		return http.StatusInternalServerError
	case IsTransient(code):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
