// internal/dispatch/ranker/ranker.go
package ranker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"vendor-dispatch/internal/common/config"
	"vendor-dispatch/internal/common/logger"
	"vendor-dispatch/internal/common/metrics"
	"vendor-dispatch/internal/dispatch/prediction"
	"vendor-dispatch/internal/dispatch/ruleengine"
	"vendor-dispatch/internal/dispatch/scoring"
	"vendor-dispatch/internal/models"

	"github.com/google/uuid"
)

const (
	defaultMinVendors     = 3
	defaultMaxConcurrency = 4

	// Risk factor thresholds surfaced on individual recommendations.
	highReworkThreshold      = 0.3
	lowCompletionThreshold   = 0.6
	highUtilizationThreshold = 0.8

	defaultResponseTimeHours = 4.0
)

// Predictor is the prediction dependency of the ranker. Satisfied by
// *prediction.Client.
type Predictor interface {
	Predict(ctx context.Context, job models.JobRequest, vendor models.VendorCandidate, metrics *models.VendorMetrics) prediction.Result
}

// Ranker runs the full scoring pipeline across a candidate set for one
// job: eligibility filtering, per-vendor prediction with bounded
// fan-out, hybrid scoring, and final ordering.
type Ranker struct {
	engine    *ruleengine.Engine
	scorer    *scoring.Scorer
	predictor Predictor

	minVendors     int
	maxConcurrency int

	logger logger.Logger

	now func() time.Time
}

// New creates a ranker over the given pipeline components.
func New(engine *ruleengine.Engine, scorer *scoring.Scorer, predictor Predictor, cfg config.RankerConfig, log logger.Logger) *Ranker {
	r := &Ranker{
		engine:         engine,
		scorer:         scorer,
		predictor:      predictor,
		minVendors:     cfg.MinVendors,
		maxConcurrency: cfg.MaxConcurrency,
		logger:         log.WithFields(map[string]interface{}{"component": "ranker"}),
		now:            time.Now,
	}
	if r.minVendors <= 0 {
		r.minVendors = defaultMinVendors
	}
	if r.maxConcurrency <= 0 {
		r.maxConcurrency = defaultMaxConcurrency
	}
	return r
}

// scoredVendor pairs a scoring result with the per-vendor context needed
// to build a recommendation. The slice keeps candidate declaration
// order, so the stable sort breaks ties in input order.
type scoredVendor struct {
	vendor   models.VendorCandidate
	metrics  *models.VendorMetrics
	score    scoring.Result
	degraded bool
}

// Rank scores and orders the candidate vendors for one job. Input edge
// cases (no vendors, too few vendors, vendors without history) produce a
// valid result with warnings; the only error path is an invalid weight
// override, which is a configuration error.
func (r *Ranker) Rank(ctx context.Context, job models.JobRequest, vendors []models.VendorCandidate, vendorMetrics map[string]models.VendorMetrics, override *scoring.HybridWeights) (models.RankResult, error) {
	start := r.now()
	runID := uuid.New().String()

	scorer := r.scorer
	if override != nil {
		custom, err := scoring.NewScorer(*override, r.logger)
		if err != nil {
			metrics.ScoringRunsTotal.WithLabelValues("invalid_weights").Inc()
			return models.RankResult{}, err
		}
		scorer = custom
	}

	result := models.RankResult{
		RunID:                 runID,
		JobID:                 job.ID,
		TotalVendorsEvaluated: len(vendors),
	}

	if len(vendors) == 0 {
		result.DegradedMode = true
		result.Warning = "No vendors available for ranking"
		r.finishRun(result, start, "no_vendors")
		return result, nil
	}

	now := r.now().UTC()
	eligible := make([]scoredVendor, 0, len(vendors))
	for _, vendor := range vendors {
		var m *models.VendorMetrics
		if vm, ok := vendorMetrics[vendor.ID]; ok {
			m = &vm
		}
		ruleResult := r.engine.Evaluate(job, vendor, m, now)
		if !ruleResult.Passed {
			continue
		}
		eligible = append(eligible, scoredVendor{
			vendor:  vendor,
			metrics: m,
			score:   scoring.Result{VendorID: vendor.ID, Breakdown: ruleResult.Breakdown},
		})
	}
	result.EligibleVendorsCount = len(eligible)

	if len(eligible) == 0 {
		result.Warning = "No vendors passed eligibility checks"
		r.finishRun(result, start, "no_eligible")
		return result, nil
	}
	if len(eligible) < r.minVendors {
		result.Warning = fmt.Sprintf("Only %d eligible vendors found, %d preferred", len(eligible), r.minVendors)
	}

	r.scoreConcurrently(ctx, job, eligible, scorer, now)

	if ctx.Err() != nil {
		// The job was abandoned mid-run; partial scores are discarded.
		result.Recommendations = nil
		result.DegradedMode = true
		result.Warning = "Ranking cancelled before completion"
		r.finishRun(result, start, "cancelled")
		return result, nil
	}

	sort.SliceStable(eligible, func(a, b int) bool {
		return eligible[a].score.OverallScore > eligible[b].score.OverallScore
	})

	recommendations := make([]models.VendorRecommendation, 0, len(eligible))
	for i, sv := range eligible {
		recommendations = append(recommendations, r.buildRecommendation(i+1, sv))
		if sv.degraded {
			result.DegradedMode = true
		}
	}
	result.Recommendations = recommendations

	r.logger.Info("ranking complete", map[string]interface{}{
		"runId":        runID,
		"jobId":        job.ID,
		"eligible":     result.EligibleVendorsCount,
		"evaluated":    result.TotalVendorsEvaluated,
		"degradedMode": result.DegradedMode,
	})
	r.finishRun(result, start, "success")
	return result, nil
}

// scoreConcurrently fans out one prediction per eligible vendor under a
// bounded worker pool and fills in each entry's hybrid score in place.
func (r *Ranker) scoreConcurrently(ctx context.Context, job models.JobRequest, eligible []scoredVendor, scorer *scoring.Scorer, now time.Time) {
	sem := make(chan struct{}, r.maxConcurrency)
	var wg sync.WaitGroup

	for i := range eligible {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(sv *scoredVendor) {
			defer wg.Done()
			defer func() { <-sem }()

			predResult := r.predictor.Predict(ctx, job, sv.vendor, sv.metrics)
			p := predResult.Prediction

			sv.degraded = predResult.DegradedMode
			sv.score = scorer.Score(scoring.Input{
				VendorID:     sv.vendor.ID,
				Rule:         ruleengine.Result{Passed: true, Breakdown: sv.score.Breakdown},
				Prediction:   &p,
				Metrics:      sv.metrics,
				DegradedMode: predResult.DegradedMode,
				ContextScore: slaFit(job, p, now),
			})
		}(&eligible[i])
	}
	wg.Wait()
}

// slaFit measures how comfortably the predicted completion time sits
// inside the job's SLA window. Nil when the job has no deadline, leaving
// the scorer at its neutral midpoint.
func slaFit(job models.JobRequest, p models.Prediction, now time.Time) *float64 {
	if job.SLADeadline.IsZero() {
		return nil
	}
	window := job.SLADeadline.Sub(now).Hours()
	if window <= 0 {
		zero := 0.0
		return &zero
	}
	fit := 1 - p.TimeToCompleteHours/window
	if fit < 0 {
		fit = 0
	}
	if fit > 1 {
		fit = 1
	}
	return &fit
}

func (r *Ranker) buildRecommendation(rank int, sv scoredVendor) models.VendorRecommendation {
	responseTime := defaultResponseTimeHours
	if sv.metrics != nil && sv.metrics.AvgResponseTimeHours > 0 {
		responseTime = sv.metrics.AvgResponseTimeHours
	}

	return models.VendorRecommendation{
		Rank:                  rank,
		VendorID:              sv.vendor.ID,
		VendorName:            sv.vendor.Name,
		OverallScore:          sv.score.OverallScore,
		Confidence:            sv.score.Confidence,
		Breakdown:             sv.score.Breakdown,
		RiskFactors:           riskFactors(sv),
		EstimatedResponseTime: responseTime,
	}
}

// riskFactors lists the conditions an operator should weigh before
// accepting this vendor.
func riskFactors(sv scoredVendor) []string {
	var risks []string

	if sv.metrics == nil {
		risks = append(risks, "limited historical data")
	} else {
		if sv.metrics.ReworkRate > highReworkThreshold {
			risks = append(risks, fmt.Sprintf("high rework rate (%.0f%%)", sv.metrics.ReworkRate*100))
		}
		if sv.metrics.CompletionRate < lowCompletionThreshold {
			risks = append(risks, fmt.Sprintf("low completion rate (%.0f%%)", sv.metrics.CompletionRate*100))
		}
	}

	if sv.vendor.Capacity.Max > 0 {
		utilization := float64(sv.vendor.Capacity.Current) / float64(sv.vendor.Capacity.Max)
		if utilization > highUtilizationThreshold {
			risks = append(risks, fmt.Sprintf("high capacity utilization (%.0f%%)", utilization*100))
		}
	}

	return risks
}

func (r *Ranker) finishRun(result models.RankResult, start time.Time, outcome string) {
	metrics.ScoringRunsTotal.WithLabelValues(outcome).Inc()
	metrics.ScoringDuration.Observe(r.now().Sub(start).Seconds())
	metrics.RecommendationsReturned.Observe(float64(len(result.Recommendations)))
}
