// internal/dispatch/scoring/hybrid.go
package scoring

import (
	"fmt"
	"math"

	"vendor-dispatch/internal/common/config"
	"vendor-dispatch/internal/common/errors"
	"vendor-dispatch/internal/common/logger"
	"vendor-dispatch/internal/dispatch/ruleengine"
	"vendor-dispatch/internal/models"
)

// neutralContextScore is used when no auxiliary context signal is
// supplied.
const neutralContextScore = 0.5

// noHistoryConfidencePenalty dampens confidence for vendors scored
// without any historical metrics.
const noHistoryConfidencePenalty = 0.85

// HybridWeights blend the rule-based, predictive, and context components
// into the overall score. They must sum to 1.0; invalid sets are a hard
// configuration error.
type HybridWeights struct {
	Rule    float64
	ML      float64
	Context float64
}

// DefaultHybridWeights returns the standard component weighting.
func DefaultHybridWeights() HybridWeights {
	return HybridWeights{Rule: 0.5, ML: 0.4, Context: 0.1}
}

// HybridWeightsFromConfig lifts the configured weight block.
func HybridWeightsFromConfig(cfg config.WeightsConfig) HybridWeights {
	return HybridWeights{Rule: cfg.Rule, ML: cfg.ML, Context: cfg.Context}
}

// Validate checks the sum-to-1.0 invariant.
func (w HybridWeights) Validate() error {
	for name, v := range map[string]float64{"rule": w.Rule, "ml": w.ML, "context": w.Context} {
		if v < 0 {
			return errors.NewWeightsInvalidError(
				fmt.Sprintf("hybrid weight %s must be non-negative, got %.3f", name, v))
		}
	}
	if sum := w.Rule + w.ML + w.Context; math.Abs(sum-1.0) > models.FloatTolerance {
		return errors.NewWeightsInvalidError(
			fmt.Sprintf("hybrid weights must sum to 1.0, got %.3f", sum))
	}
	return nil
}

// Input is everything the scorer needs for one vendor. ContextScore is
// optional; nil means no auxiliary signal and the neutral midpoint is
// used.
type Input struct {
	VendorID     string
	Rule         ruleengine.Result
	Prediction   *models.Prediction
	Metrics      *models.VendorMetrics
	DegradedMode bool
	ContextScore *float64
}

// Result is the blended score for one vendor.
type Result struct {
	VendorID     string
	OverallScore float64
	Confidence   float64
	Breakdown    models.ScoreBreakdown
	DegradedMode bool
}

// Scorer combines rule and predictive scores under validated weights.
// Scoring is deterministic: identical inputs always produce identical
// outputs.
type Scorer struct {
	weights HybridWeights
	logger  logger.Logger
}

// NewScorer creates a hybrid scorer. Invalid weights are rejected here,
// never renormalized at scoring time.
func NewScorer(weights HybridWeights, log logger.Logger) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{
		weights: weights,
		logger:  log.WithFields(map[string]interface{}{"component": "hybrid_scorer"}),
	}, nil
}

// Score blends the rule-based score, the ML score derived from the
// prediction, and the context score into one overall score.
//
// When the prediction is a fallback (DegradedMode), its ML score carries
// almost no information; the ML weight is redistributed onto the rule
// component so the fallback neither depresses nor inflates the ranking.
func (s *Scorer) Score(in Input) Result {
	breakdown := in.Rule.Breakdown
	breakdown.MLScore = mlScore(in.Prediction)

	ruleWeight := s.weights.Rule
	mlWeight := s.weights.ML
	if in.DegradedMode || in.Prediction == nil {
		ruleWeight += mlWeight
		mlWeight = 0
	}

	contextScore := neutralContextScore
	if in.ContextScore != nil {
		contextScore = clamp01(*in.ContextScore)
	}

	overall := ruleWeight*breakdown.RuleBasedScore +
		mlWeight*breakdown.MLScore +
		s.weights.Context*contextScore

	return Result{
		VendorID:     in.VendorID,
		OverallScore: clamp01(overall),
		Confidence:   s.confidence(in),
		Breakdown:    breakdown,
		DegradedMode: in.DegradedMode,
	}
}

// mlScore maps a prediction onto [0,1]: completion probability weighs
// heaviest, then speed, then rework avoidance, with a satisfaction
// component layered on top. A nil prediction scores zero.
func mlScore(p *models.Prediction) float64 {
	if p == nil {
		return 0
	}
	outcome := 0.5*clamp01(p.CompletionProbability) +
		0.3*(1-math.Min(math.Max(p.TimeToCompleteHours, 0)/24, 1)) +
		0.2*(1-clamp01(p.ReworkRisk))
	satisfaction := clamp01(p.PredictedSatisfaction / 5)
	return clamp01(0.8*outcome + 0.2*satisfaction)
}

// confidence is the prediction's own confidence, dampened for vendors
// with no recorded history.
func (s *Scorer) confidence(in Input) float64 {
	if in.Prediction == nil {
		return 0
	}
	confidence := clamp01(in.Prediction.Confidence)
	if in.Metrics == nil {
		confidence *= noHistoryConfidencePenalty
	}
	return confidence
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
