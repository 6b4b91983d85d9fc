// internal/dispatch/service/service.go
package service

import (
	"context"
	"time"

	"vendor-dispatch/internal/common/logger"
	"vendor-dispatch/internal/common/observability"
	"vendor-dispatch/internal/dispatch/automation"
	"vendor-dispatch/internal/dispatch/history"
	"vendor-dispatch/internal/dispatch/ranker"
	"vendor-dispatch/internal/dispatch/scoring"
	"vendor-dispatch/internal/models"
)

// DispatchRequest is one recommendation request: a job, its candidate
// vendors, optionally their historical metrics, and an optional hybrid
// weight override. When Metrics is nil and a history store is wired, the
// metrics are loaded from storage.
type DispatchRequest struct {
	Job     models.JobRequest               `json:"job"`
	Vendors []models.VendorCandidate        `json:"vendors"`
	Metrics map[string]models.VendorMetrics `json:"metrics,omitempty"`
	Weights *WeightsOverride                `json:"weights,omitempty"`
}

// WeightsOverride is a per-request hybrid weight set. It must satisfy
// the same sum-to-1.0 invariant as the configured weights.
type WeightsOverride struct {
	Rule    float64 `json:"rule"`
	ML      float64 `json:"ml"`
	Context float64 `json:"context"`
}

// DispatchResponse is the ranked recommendation list plus the routing
// decision for the top pick.
type DispatchResponse struct {
	models.RankResult
	Decision models.AutomationDecision `json:"automationDecision"`
}

// Service runs the full decision pipeline for one request: metrics
// lookup, ranking, and automation routing.
type Service struct {
	ranker *ranker.Ranker
	router *automation.Router
	store  *history.Store
	obs    *observability.Observability
	logger logger.Logger
}

// New creates the dispatch service. store and obs may be nil.
func New(r *ranker.Ranker, router *automation.Router, store *history.Store, obs *observability.Observability, log logger.Logger) *Service {
	return &Service{
		ranker: r,
		router: router,
		store:  store,
		obs:    obs,
		logger: log.WithFields(map[string]interface{}{"component": "dispatch_service"}),
	}
}

// Recommend ranks the candidate vendors for the request's job and
// decides how the result may be dispatched. The only error path is an
// invalid weight override; every input edge case produces a valid
// response with warnings.
func (s *Service) Recommend(ctx context.Context, req DispatchRequest) (DispatchResponse, error) {
	start := time.Now()

	vendorMetrics := req.Metrics
	if vendorMetrics == nil && s.store != nil {
		vendorMetrics = s.loadMetrics(ctx, req.Vendors)
	}

	var override *scoring.HybridWeights
	if req.Weights != nil {
		override = &scoring.HybridWeights{
			Rule:    req.Weights.Rule,
			ML:      req.Weights.ML,
			Context: req.Weights.Context,
		}
	}

	rankResult, err := s.ranker.Rank(ctx, req.Job, req.Vendors, vendorMetrics, override)
	if err != nil {
		s.recordRun(ctx, start, "error")
		return DispatchResponse{}, err
	}

	decision := s.router.Route(req.Job, rankResult, topConfidence(rankResult))

	status := "success"
	if rankResult.DegradedMode {
		status = "degraded"
	}
	s.recordRun(ctx, start, status)

	return DispatchResponse{RankResult: rankResult, Decision: decision}, nil
}

// loadMetrics fetches stored history for the candidate set. A storage
// failure degrades to no-history scoring instead of failing the request.
func (s *Service) loadMetrics(ctx context.Context, vendors []models.VendorCandidate) map[string]models.VendorMetrics {
	ids := make([]string, 0, len(vendors))
	for _, v := range vendors {
		ids = append(ids, v.ID)
	}
	loaded, err := s.store.GetMetricsBatch(ctx, ids)
	if err != nil {
		s.logger.Warn("metrics lookup failed, scoring without history", map[string]interface{}{
			"vendorCount": len(ids),
			"error":       err.Error(),
		})
		return nil
	}
	return loaded
}

// topConfidence is the confidence fed to the router: the top-ranked
// vendor's, or zero when there is nothing to recommend.
func topConfidence(rank models.RankResult) float64 {
	if len(rank.Recommendations) == 0 {
		return 0
	}
	return rank.Recommendations[0].Confidence
}

func (s *Service) recordRun(ctx context.Context, start time.Time, status string) {
	if s.obs == nil {
		return
	}
	s.obs.RecordRun(ctx, status)
	s.obs.RecordRunDuration(ctx, time.Since(start), status)
}
