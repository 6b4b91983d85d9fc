// internal/dispatch/ruleengine/engine.go
package ruleengine

import (
	"fmt"
	"time"

	"vendor-dispatch/internal/common/errors"
	"vendor-dispatch/internal/common/logger"
	"vendor-dispatch/internal/models"
)

const (
	// defaultCompletionRate is assumed for vendors with no history.
	defaultCompletionRate = 0.7
)

// Result is the outcome of evaluating one job/vendor pair. Passed is
// false when any hard eligibility check fails; FailureReasons records
// which ones.
type Result struct {
	Passed         bool
	FailureReasons []string
	Breakdown      models.ScoreBreakdown
}

// Engine is the deterministic, explainable eligibility filter and base
// scorer for job/vendor pairs.
type Engine struct {
	weights FactorWeights
	logger  logger.Logger
}

// NewEngine creates a rule engine with the given factor weights. Invalid
// weights are a configuration error.
func NewEngine(weights FactorWeights, log logger.Logger) (*Engine, error) {
	if err := weights.Validate(); err != nil {
		return nil, errors.NewConfigInvalidError(err.Error())
	}
	return &Engine{
		weights: weights,
		logger:  log.WithFields(map[string]interface{}{"component": "ruleengine"}),
	}, nil
}

// Evaluate runs the hard eligibility checks and, when they pass, computes
// the weighted factor breakdown. now is the evaluation time used for
// certification expiry; passing it in keeps the engine deterministic.
func (e *Engine) Evaluate(job models.JobRequest, vendor models.VendorCandidate, metrics *models.VendorMetrics, now time.Time) Result {
	reasons := e.hardChecks(job, vendor, now)
	if len(reasons) > 0 {
		e.logger.Debug("vendor failed eligibility", map[string]interface{}{
			"jobId":    job.ID,
			"vendorId": vendor.ID,
			"reasons":  reasons,
		})
		return Result{Passed: false, FailureReasons: reasons}
	}

	factors := []models.ScoreFactor{
		e.availabilityFactor(job, vendor),
		e.proximityFactor(vendor),
		e.certificationFactor(job, vendor, now),
		e.capacityFactor(vendor),
		e.historicalFactor(metrics),
	}

	var total float64
	for i := range factors {
		factors[i].Contribution = factors[i].Value * factors[i].Weight
		total += factors[i].Contribution
	}

	return Result{
		Passed: true,
		Breakdown: models.ScoreBreakdown{
			Factors:        factors,
			RuleBasedScore: total,
		},
	}
}

// hardChecks returns a failure reason per violated eligibility rule.
func (e *Engine) hardChecks(job models.JobRequest, vendor models.VendorCandidate, now time.Time) []string {
	var reasons []string

	if vendor.Status != models.VendorActive {
		reasons = append(reasons, fmt.Sprintf("vendor status is %s, not active", vendor.Status))
	}

	if !vendor.ServiceArea.Covers(job.Location) {
		reasons = append(reasons, fmt.Sprintf("vendor does not serve zip %s or region %s",
			job.Location.ZipCode, job.Location.Region))
	}

	for _, required := range job.RequiredCertifications {
		if !hasValidCertification(vendor, required, now) {
			reasons = append(reasons, fmt.Sprintf("missing valid certification: %s", required))
		}
	}

	if !vendor.Capacity.HasFree() {
		reasons = append(reasons, fmt.Sprintf("vendor at capacity (%d/%d)",
			vendor.Capacity.Current, vendor.Capacity.Max))
	}

	return reasons
}

func hasValidCertification(vendor models.VendorCandidate, name string, now time.Time) bool {
	for _, cert := range vendor.Certifications {
		if cert.Name == name && cert.ValidAt(now) {
			return true
		}
	}
	return false
}

func (e *Engine) availabilityFactor(job models.JobRequest, vendor models.VendorCandidate) models.ScoreFactor {
	free := vendor.Capacity.FreeRatio()

	// Schedule fit is coarse: vendors publishing availability windows are
	// assumed schedulable; vendors without any get a neutral penalty.
	scheduleFit := 0.5
	if len(vendor.Availability) > 0 {
		scheduleFit = 1.0
	}

	value := clamp01(0.7*free + 0.3*scheduleFit)
	return models.ScoreFactor{
		Name:   "availability",
		Value:  value,
		Weight: e.weights.Availability,
		Explanation: fmt.Sprintf("%d of %d capacity slots free, %d availability windows published",
			vendor.Capacity.Max-vendor.Capacity.Current, vendor.Capacity.Max, len(vendor.Availability)),
	}
}

func (e *Engine) proximityFactor(vendor models.VendorCandidate) models.ScoreFactor {
	maxDist := vendor.ServiceArea.MaxDistanceKm
	var value float64
	var explanation string
	if maxDist <= 0 {
		// No declared travel limit: treat proximity as neutral.
		value = 0.5
		explanation = "vendor declares no maximum service distance"
	} else {
		ratio := vendor.DistanceKm / maxDist
		if ratio > 1 {
			ratio = 1
		}
		value = clamp01(1 - ratio)
		explanation = fmt.Sprintf("%.1f km from job site within %.1f km service radius",
			vendor.DistanceKm, maxDist)
	}
	return models.ScoreFactor{
		Name:        "proximity",
		Value:       value,
		Weight:      e.weights.Proximity,
		Explanation: explanation,
	}
}

func (e *Engine) certificationFactor(job models.JobRequest, vendor models.VendorCandidate, now time.Time) models.ScoreFactor {
	required := len(job.RequiredCertifications)
	if required == 0 {
		return models.ScoreFactor{
			Name:        "certification",
			Value:       1.0,
			Weight:      e.weights.Certification,
			Explanation: "no certifications required for this job",
		}
	}

	matched := 0
	for _, name := range job.RequiredCertifications {
		if hasValidCertification(vendor, name, now) {
			matched++
		}
	}
	return models.ScoreFactor{
		Name:   "certification",
		Value:  float64(matched) / float64(required),
		Weight: e.weights.Certification,
		Explanation: fmt.Sprintf("%d of %d required certifications held and valid",
			matched, required),
	}
}

func (e *Engine) capacityFactor(vendor models.VendorCandidate) models.ScoreFactor {
	return models.ScoreFactor{
		Name:   "capacity",
		Value:  vendor.Capacity.FreeRatio(),
		Weight: e.weights.Capacity,
		Explanation: fmt.Sprintf("%.0f%% of job capacity available",
			vendor.Capacity.FreeRatio()*100),
	}
}

func (e *Engine) historicalFactor(metrics *models.VendorMetrics) models.ScoreFactor {
	if metrics == nil {
		return models.ScoreFactor{
			Name:        "historicalCompletion",
			Value:       defaultCompletionRate,
			Weight:      e.weights.HistoricalCompletion,
			Explanation: "no job history available, assuming default completion rate",
		}
	}
	return models.ScoreFactor{
		Name:   "historicalCompletion",
		Value:  clamp01(metrics.CompletionRate),
		Weight: e.weights.HistoricalCompletion,
		Explanation: fmt.Sprintf("%.0f%% completion rate over %d jobs",
			metrics.CompletionRate*100, metrics.SampleSize),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
