// Package errors provides standardized error handling for the dispatch core.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Configuration errors — fail fast at setup, never corrected at runtime.
	ErrCodeWeightsInvalid      ErrorCode = "WEIGHTS_INVALID"
	ErrCodeConfigInvalid       ErrorCode = "CONFIG_INVALID"
	ErrCodeAutomationRuleBad   ErrorCode = "AUTOMATION_RULE_INVALID"

	// Transient dependency failures — converted to fallback predictions.
	ErrCodeCircuitOpen           ErrorCode = "CIRCUIT_OPEN"
	ErrCodePredictionTimeout     ErrorCode = "PREDICTION_TIMEOUT"
	ErrCodePredictionUnavailable ErrorCode = "PREDICTION_UNAVAILABLE"
	ErrCodeMalformedPrediction   ErrorCode = "MALFORMED_PREDICTION"

	// Input-state edge cases — produce a valid result plus a warning.
	ErrCodeNoVendorsAvailable  ErrorCode = "NO_VENDORS_AVAILABLE"
	ErrCodeInsufficientVendors ErrorCode = "INSUFFICIENT_VENDORS"

	// Supporting infrastructure.
	ErrCodeMetricsLookupFailed ErrorCode = "METRICS_LOOKUP_FAILED"
	ErrCodeRequestInvalid      ErrorCode = "REQUEST_INVALID"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewWeightsInvalidError creates a non-retryable configuration error for a
// weight set that does not satisfy the sum-to-1.0 invariant.
func NewWeightsInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeWeightsInvalid,
		Message:   "Score weights must sum to 1.0",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewConfigInvalidError creates a non-retryable configuration error.
func NewConfigInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigInvalid,
		Message:   "Invalid configuration",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAutomationRuleError creates a non-retryable configuration error for
// an invalid automation override rule.
func NewAutomationRuleError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAutomationRuleBad,
		Message:   "Invalid automation rule",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCircuitOpenError records a request denied by the circuit breaker.
func NewCircuitOpenError() *StandardError {
	return &StandardError{
		Code:      ErrCodeCircuitOpen,
		Message:   "Prediction service circuit breaker is open",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPredictionTimeoutError records a prediction call that exceeded its deadline.
func NewPredictionTimeoutError(timeout time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodePredictionTimeout,
		Message:   "Prediction service call timed out",
		Details:   fmt.Sprintf("timeout: %s", timeout),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPredictionUnavailableError records a network or transport failure
// reaching the prediction service.
func NewPredictionUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePredictionUnavailable,
		Message:   "Prediction service unreachable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewMalformedPredictionError records an unparseable prediction response.
func NewMalformedPredictionError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMalformedPrediction,
		Message:   "Prediction service returned a malformed response",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewMetricsLookupFailedError creates a retryable storage error for a
// failed vendor metrics lookup.
func NewMetricsLookupFailedError(vendorID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMetricsLookupFailed,
		Message:   "Vendor metrics lookup failed",
		Details:   fmt.Sprintf("vendorId: %s, error: %s", vendorID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRequestInvalidError creates a non-retryable error for a request that
// failed schema validation.
func NewRequestInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRequestInvalid,
		Message:   "Request payload failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Classification helpers
// ==========================

// IsConfigError reports whether the code belongs to the fail-fast
// configuration class.
func IsConfigError(code ErrorCode) bool {
	switch code {
	case ErrCodeWeightsInvalid, ErrCodeConfigInvalid, ErrCodeAutomationRuleBad:
		return true
	}
	return false
}

// IsTransient reports whether the code belongs to the dependency-failure
// class that degrades to a fallback prediction.
func IsTransient(code ErrorCode) bool {
	switch code {
	case ErrCodeCircuitOpen, ErrCodePredictionTimeout,
		ErrCodePredictionUnavailable, ErrCodeMalformedPrediction,
		ErrCodeMetricsLookupFailed:
		return true
	}
	return false
}

// GetErrorCategory returns a coarse category string for logging.
func GetErrorCategory(code ErrorCode) string {
	switch {
	case IsConfigError(code):
		return "configuration"
	case IsTransient(code):
		return "transient_dependency"
	case code == ErrCodeNoVendorsAvailable || code == ErrCodeInsufficientVendors:
		return "input_state"
	default:
		return "internal"
	}
}
