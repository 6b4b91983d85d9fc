// internal/dispatch/service/handler.go
package service

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"vendor-dispatch/internal/common/errors"
	"vendor-dispatch/internal/common/logger"
	"vendor-dispatch/internal/common/validation"

	"github.com/google/uuid"
)

// maxRequestBytes bounds the intake payload size.
const maxRequestBytes = 4 << 20

// Handler exposes the dispatch service over HTTP.
type Handler struct {
	service  *Service
	errorOut *errors.ErrorHandler
	logger   logger.Logger
}

// NewHandler wraps the service for HTTP intake.
func NewHandler(svc *Service, log logger.Logger) *Handler {
	return &Handler{
		service:  svc,
		errorOut: errors.NewErrorHandler(log),
		logger:   log.WithFields(map[string]interface{}{"component": "http_handler"}),
	}
}

// Recommendations handles POST /v1/recommendations: validate the
// payload, run the decision pipeline, and return the ranked result with
// its automation decision.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.New().String()
	}

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		h.errorOut.WriteError(w, requestID, errors.NewRequestInvalidError("unable to read request body"))
		return
	}

	validated, err := validation.ValidateRecommendationRequest(body)
	if err != nil {
		h.errorOut.WriteError(w, requestID, errors.NewRequestInvalidError("request is not valid JSON"))
		return
	}
	if !validated.Valid {
		h.errorOut.WriteError(w, requestID, errors.NewRequestInvalidError(formatValidationErrors(validated)))
		return
	}

	var req DispatchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.errorOut.WriteError(w, requestID, errors.NewRequestInvalidError(err.Error()))
		return
	}

	resp, err := h.service.Recommend(r.Context(), req)
	if err != nil {
		h.errorOut.WriteError(w, requestID, err)
		return
	}

	h.logger.Info("recommendation served", map[string]interface{}{
		"requestId":       requestID,
		"jobId":           req.Job.ID,
		"runId":           resp.RunID,
		"recommendations": len(resp.Recommendations),
		"automationLevel": string(resp.Decision.Level),
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	_ = json.NewEncoder(w).Encode(resp)
}

func formatValidationErrors(result *validation.ValidationResult) string {
	if len(result.Errors) == 0 {
		return "request failed validation"
	}
	first := result.Errors[0]
	return fmt.Sprintf("%s: %s (%d issues total)", first.Field, first.Message, len(result.Errors))
}
