// internal/dispatch/prediction/client.go
package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"vendor-dispatch/internal/common/config"
	"vendor-dispatch/internal/common/errors"
	commonhttp "vendor-dispatch/internal/common/http"
	"vendor-dispatch/internal/common/logger"
	"vendor-dispatch/internal/common/metrics"
	"vendor-dispatch/internal/dispatch/features"
	"vendor-dispatch/internal/models"
)

// Fallback prediction values returned whenever the prediction service
// cannot be consulted. Deliberately conservative.
const (
	fallbackCompletion   = 0.7
	fallbackTimeHours    = 4.0
	fallbackRework       = 0.15
	fallbackSatisfaction = 3.5
	fallbackConfidence   = 0.3

	// defaultResponseConfidence is assumed when a successful response
	// omits a confidence field.
	defaultResponseConfidence = 0.6
)

// Result is the outcome of one Predict call. The client never fails:
// when the service cannot be reached the Prediction holds the fallback
// values, DegradedMode is true, and Reason explains why.
type Result struct {
	Prediction   models.Prediction
	FromCache    bool
	DegradedMode bool
	Latency      time.Duration
	Reason       string
}

// Client calls the external prediction service with a circuit breaker
// and a TTL result cache in front of it. One Client instance is shared
// across all concurrent jobs; the breaker protects the shared dependency.
type Client struct {
	baseURL      string
	modelVersion string
	timeout      time.Duration

	http    *commonhttp.Client
	breaker *CircuitBreaker
	cache   Cache
	logger  logger.Logger
}

// NewClient builds a prediction client from config. cache may be nil, in
// which case an in-memory TTL cache is used.
func NewClient(cfg config.PredictiveConfig, cache Cache, log logger.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if cache == nil {
		cache = NewMemoryCache(time.Duration(cfg.CacheTTL) * time.Millisecond)
	}
	return &Client{
		baseURL:      cfg.BaseURL,
		modelVersion: cfg.ModelVersion,
		timeout:      timeout,
		http:         commonhttp.NewClient(timeout),
		breaker:      NewCircuitBreaker(cfg.Breaker, log),
		cache:        cache,
		logger:       log.WithFields(map[string]interface{}{"component": "prediction_client"}),
	}
}

// Breaker exposes the circuit breaker for health reporting.
func (c *Client) Breaker() *CircuitBreaker {
	return c.breaker
}

// predictRequest is the wire payload sent to the prediction service.
type predictRequest struct {
	Data []predictRequestItem `json:"data"`
}

type predictRequestItem struct {
	VendorID     string                `json:"vendor_id"`
	JobID        string                `json:"job_id"`
	JobType      string                `json:"job_type"`
	UrgencyLevel string                `json:"urgency_level"`
	CustomerTier string                `json:"customer_tier"`
	Metrics      *models.VendorMetrics `json:"metrics,omitempty"`
	Features     map[string]float64    `json:"features"`
}

// predictResponse mirrors the service's reply. Pointer fields let each
// missing value be defaulted individually instead of failing the call.
type predictResponse struct {
	Predictions []struct {
		VendorID              string   `json:"vendor_id"`
		CompletionProbability *float64 `json:"completion_probability"`
		EstimatedTimeHours    *float64 `json:"estimated_time_hours"`
		ReworkProbability     *float64 `json:"rework_probability"`
		PredictedSatisfaction *float64 `json:"predicted_satisfaction"`
		Confidence            *float64 `json:"confidence"`
	} `json:"predictions"`
	ModelVersion string `json:"model_version"`
}

// Predict returns an outcome forecast for one job/vendor pair. It checks
// the cache first (bypassing the breaker), then consults the service
// under the breaker and the hard call timeout. It never returns an
// error: every failure path yields the fallback prediction with
// DegradedMode set. Only service failures (timeout, transport, bad
// response) count toward the breaker; caller cancellation does not.
func (c *Client) Predict(ctx context.Context, job models.JobRequest, vendor models.VendorCandidate, vendorMetrics *models.VendorMetrics) Result {
	if cached, ok := c.cache.Get(ctx, job.ID, vendor.ID); ok {
		metrics.PredictionsTotal.WithLabelValues("cache_hit").Inc()
		return Result{Prediction: cached, FromCache: true}
	}

	if !c.breaker.Allow() {
		denial := errors.NewCircuitOpenError()
		metrics.PredictionsTotal.WithLabelValues("breaker_open").Inc()
		c.logger.Warn("prediction denied by circuit breaker", map[string]interface{}{
			"jobId":     job.ID,
			"vendorId":  vendor.ID,
			"errorCode": string(denial.Code),
		})
		return c.fallback(denial.Message)
	}

	start := time.Now()
	prediction, err := c.call(ctx, job, vendor, vendorMetrics)
	latency := time.Since(start)
	metrics.PredictionLatency.Observe(latency.Seconds())

	if err != nil {
		// A cancelled caller abandoned the job; the service may be
		// perfectly healthy, so the shared breaker must not count it.
		if ctx.Err() != nil {
			c.breaker.RecordCancellation()
			metrics.PredictionsTotal.WithLabelValues("cancelled").Inc()
			c.logger.Warn("prediction abandoned by caller", map[string]interface{}{
				"jobId":    job.ID,
				"vendorId": vendor.ID,
				"latency":  latency.String(),
			})
			result := c.fallback(fmt.Sprintf("prediction abandoned: %s", ctx.Err()))
			result.Latency = latency
			return result
		}

		c.breaker.RecordFailure()
		metrics.PredictionsTotal.WithLabelValues("failure").Inc()
		c.logger.Warn("prediction call failed, using fallback", map[string]interface{}{
			"jobId":     job.ID,
			"vendorId":  vendor.ID,
			"latency":   latency.String(),
			"errorCode": string(errorCode(err)),
			"error":     err.Error(),
		})
		result := c.fallback(failureReason(err))
		result.Latency = latency
		return result
	}

	c.breaker.RecordSuccess()
	c.cache.Set(ctx, job.ID, vendor.ID, prediction)
	metrics.PredictionsTotal.WithLabelValues("success").Inc()

	return Result{Prediction: prediction, Latency: latency}
}

func (c *Client) call(ctx context.Context, job models.JobRequest, vendor models.VendorCandidate, vendorMetrics *models.VendorMetrics) (models.Prediction, error) {
	featureSet := features.Extract(job, vendor, vendorMetrics, time.Now().UTC())
	payload := predictRequest{
		Data: []predictRequestItem{{
			VendorID:     vendor.ID,
			JobID:        job.ID,
			JobType:      string(job.Type),
			UrgencyLevel: string(job.Urgency),
			CustomerTier: string(job.CustomerTier),
			Metrics:      vendorMetrics,
			Features:     featureSet.Normalized(),
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return models.Prediction{}, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return models.Prediction{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return models.Prediction{}, errors.NewPredictionTimeoutError(c.timeout)
		}
		return models.Prediction{}, errors.NewPredictionUnavailableError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Prediction{}, errors.NewPredictionUnavailableError(
			fmt.Errorf("prediction service returned status %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.Prediction{}, errors.NewPredictionUnavailableError(fmt.Errorf("read response: %w", err))
	}

	var parsed predictResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return models.Prediction{}, errors.NewMalformedPredictionError(err.Error())
	}
	if len(parsed.Predictions) == 0 {
		return models.Prediction{}, errors.NewMalformedPredictionError("response contained no predictions")
	}

	entry := parsed.Predictions[0]
	prediction := models.Prediction{
		CompletionProbability: clampRange(valueOr(entry.CompletionProbability, fallbackCompletion), 0, 1),
		TimeToCompleteHours:   valueOr(entry.EstimatedTimeHours, fallbackTimeHours),
		ReworkRisk:            clampRange(valueOr(entry.ReworkProbability, fallbackRework), 0, 1),
		PredictedSatisfaction: clampRange(valueOr(entry.PredictedSatisfaction, fallbackSatisfaction), 0, 5),
		Confidence:            clampRange(valueOr(entry.Confidence, defaultResponseConfidence), 0, 1),
		ModelVersion:          c.resolveModelVersion(parsed.ModelVersion),
	}
	if prediction.TimeToCompleteHours < 0 {
		prediction.TimeToCompleteHours = 0
	}
	return prediction, nil
}

// resolveModelVersion prefers the version reported by the service and
// falls back to the configured identifier. Either way the value is
// opaque: attached for traceability, never interpreted.
func (c *Client) resolveModelVersion(reported string) string {
	if reported != "" {
		return reported
	}
	return c.modelVersion
}

func (c *Client) fallback(reason string) Result {
	return Result{
		Prediction: models.Prediction{
			CompletionProbability: fallbackCompletion,
			TimeToCompleteHours:   fallbackTimeHours,
			ReworkRisk:            fallbackRework,
			PredictedSatisfaction: fallbackSatisfaction,
			Confidence:            fallbackConfidence,
			ModelVersion:          c.modelVersion,
		},
		DegradedMode: true,
		Reason:       reason,
	}
}

// failureReason renders a call error for the Result, keeping the
// structured details a StandardError carries.
func failureReason(err error) string {
	if stdErr, ok := err.(*errors.StandardError); ok {
		if stdErr.Details != "" {
			return fmt.Sprintf("prediction call failed: %s (%s)", stdErr.Message, stdErr.Details)
		}
		return fmt.Sprintf("prediction call failed: %s", stdErr.Message)
	}
	return fmt.Sprintf("prediction call failed: %s", err.Error())
}

func errorCode(err error) errors.ErrorCode {
	if stdErr, ok := err.(*errors.StandardError); ok {
		return stdErr.Code
	}
	return "INTERNAL_ERROR"
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
