// internal/dispatch/service/service_test.go
package service

import (
	"context"
	"testing"
	"time"

	"vendor-dispatch/internal/common/config"
	"vendor-dispatch/internal/common/logger"
	"vendor-dispatch/internal/dispatch/automation"
	"vendor-dispatch/internal/dispatch/prediction"
	"vendor-dispatch/internal/dispatch/ranker"
	"vendor-dispatch/internal/dispatch/ruleengine"
	"vendor-dispatch/internal/dispatch/scoring"
	"vendor-dispatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedPredictor struct {
	result prediction.Result
}

func (f *fixedPredictor) Predict(context.Context, models.JobRequest, models.VendorCandidate, *models.VendorMetrics) prediction.Result {
	return f.result
}

func newTestService(t *testing.T, predictor ranker.Predictor) *Service {
	log := logger.NewTestLogger(t)

	engine, err := ruleengine.NewEngine(ruleengine.DefaultFactorWeights(), log)
	require.NoError(t, err)
	scorer, err := scoring.NewScorer(scoring.DefaultHybridWeights(), log)
	require.NoError(t, err)

	autoCfg := config.AutomationConfig{
		DefaultLevel:                "auto",
		ConfidenceThreshold:         0.85,
		DegradedConfidenceThreshold: 0.6,
		ScoreGapMargin:              0.05,
	}
	manager, err := automation.NewManager(autoCfg, log)
	require.NoError(t, err)
	router := automation.NewRouter(manager, autoCfg, log)

	rk := ranker.New(engine, scorer, predictor, config.RankerConfig{MinVendors: 3}, log)
	return New(rk, router, nil, nil, log)
}

func serviceVendor(id string) models.VendorCandidate {
	return models.VendorCandidate{
		ID:     id,
		Name:   "Vendor " + id,
		Status: models.VendorActive,
		ServiceArea: models.ServiceArea{
			ZipCodes: []string{"94110"}, Region: "bay-area", MaxDistanceKm: 50,
		},
		Capacity:   models.Capacity{Max: 10, Current: 3},
		DistanceKm: 8,
	}
}

func serviceRequest() DispatchRequest {
	metrics := models.VendorMetrics{
		CompletionRate:       0.9,
		ReworkRate:           0.05,
		AvgResponseTimeHours: 2.5,
		AvgSatisfaction:      4.5,
		SampleSize:           100,
	}
	return DispatchRequest{
		Job: models.JobRequest{
			ID:           "job-1",
			Type:         models.JobTypeRepair,
			Location:     models.JobLocation{ZipCode: "94110", Region: "bay-area"},
			Urgency:      models.UrgencyMedium,
			SLADeadline:  time.Now().Add(24 * time.Hour),
			CustomerTier: models.TierStandard,
		},
		Vendors: []models.VendorCandidate{
			serviceVendor("v1"), serviceVendor("v2"), serviceVendor("v3"),
		},
		Metrics: map[string]models.VendorMetrics{
			"v1": metrics, "v2": metrics, "v3": metrics,
		},
	}
}

func TestRecommend_HealthyPath(t *testing.T) {
	predictor := &fixedPredictor{result: prediction.Result{
		Prediction: models.Prediction{
			CompletionProbability: 0.92,
			TimeToCompleteHours:   3,
			ReworkRisk:            0.04,
			PredictedSatisfaction: 4.6,
			Confidence:            0.9,
		},
	}}
	svc := newTestService(t, predictor)

	resp, err := svc.Recommend(context.Background(), serviceRequest())
	require.NoError(t, err)

	assert.Len(t, resp.Recommendations, 3)
	assert.False(t, resp.DegradedMode)
	assert.Equal(t, models.AutomationAuto, resp.Decision.Level)
	assert.False(t, resp.Decision.Escalated)
	assert.NotEmpty(t, resp.RunID)
}

func TestRecommend_DegradedPredictionsEscalate(t *testing.T) {
	predictor := &fixedPredictor{result: prediction.Result{
		Prediction: models.Prediction{
			CompletionProbability: 0.7,
			TimeToCompleteHours:   4,
			ReworkRisk:            0.15,
			PredictedSatisfaction: 3.5,
			Confidence:            0.3,
		},
		DegradedMode: true,
		Reason:       "circuit breaker open, prediction service not consulted",
	}}
	svc := newTestService(t, predictor)

	resp, err := svc.Recommend(context.Background(), serviceRequest())
	require.NoError(t, err)

	assert.True(t, resp.DegradedMode)
	assert.Len(t, resp.Recommendations, 3)
	// Fallback confidence sits below even the degraded threshold.
	assert.Equal(t, models.AutomationAdvisory, resp.Decision.Level)
	assert.True(t, resp.Decision.Escalated)

	types := make([]string, 0, len(resp.Decision.Flags))
	for _, f := range resp.Decision.Flags {
		types = append(types, f.Type)
	}
	assert.Contains(t, types, "degraded_mode")
}

func TestRecommend_EmptyVendorList(t *testing.T) {
	svc := newTestService(t, &fixedPredictor{})

	req := serviceRequest()
	req.Vendors = nil

	resp, err := svc.Recommend(context.Background(), req)
	require.NoError(t, err)

	assert.Empty(t, resp.Recommendations)
	assert.True(t, resp.DegradedMode)
	assert.NotEmpty(t, resp.Warning)
	assert.True(t, resp.Decision.Escalated)
	assert.True(t, resp.Decision.RequiresHumanApproval)
}

func TestRecommend_InvalidWeightOverride(t *testing.T) {
	svc := newTestService(t, &fixedPredictor{})

	req := serviceRequest()
	req.Weights = &WeightsOverride{Rule: 0.9, ML: 0.9, Context: 0.1}

	_, err := svc.Recommend(context.Background(), req)
	require.Error(t, err)
}

func TestRecommend_WeightOverrideApplied(t *testing.T) {
	predictor := &fixedPredictor{result: prediction.Result{
		Prediction: models.Prediction{
			CompletionProbability: 0.95,
			TimeToCompleteHours:   2,
			ReworkRisk:            0.02,
			PredictedSatisfaction: 4.8,
			Confidence:            0.9,
		},
	}}
	svc := newTestService(t, predictor)

	req := serviceRequest()
	req.Weights = &WeightsOverride{Rule: 1.0}

	resp, err := svc.Recommend(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Recommendations)

	top := resp.Recommendations[0]
	assert.InDelta(t, top.Breakdown.RuleBasedScore, top.OverallScore, models.FloatTolerance)
}
