// internal/models/scoring.go
package models

import "math"

// FloatTolerance is the tolerance used for all score invariant checks.
const FloatTolerance = 0.001

// ScoreFactor is one explainable component of a rule-based score.
type ScoreFactor struct {
	Name         string  `json:"name"`
	Value        float64 `json:"value"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
	Explanation  string  `json:"explanation"`
}

// ScoreBreakdown is the ordered set of score factors for one job/vendor
// pair plus the rule-based and ML component scores.
type ScoreBreakdown struct {
	Factors        []ScoreFactor `json:"factors"`
	RuleBasedScore float64       `json:"ruleBasedScore"`
	MLScore        float64       `json:"mlScore"`
}

// WeightSum returns the sum of all factor weights.
func (b ScoreBreakdown) WeightSum() float64 {
	var sum float64
	for _, f := range b.Factors {
		sum += f.Weight
	}
	return sum
}

// Consistent reports whether the breakdown satisfies its numeric
// invariants: weights sum to 1.0, each contribution equals value*weight,
// and the rule score equals the sum of contributions.
func (b ScoreBreakdown) Consistent() bool {
	if math.Abs(b.WeightSum()-1.0) > FloatTolerance {
		return false
	}
	var total float64
	for _, f := range b.Factors {
		if math.Abs(f.Contribution-f.Value*f.Weight) > FloatTolerance {
			return false
		}
		total += f.Contribution
	}
	return math.Abs(total-b.RuleBasedScore) <= FloatTolerance
}

// Prediction is the outcome forecast returned by the predictive service,
// or the fixed fallback when the service is unavailable. A confidence
// below 0.5 signals a fallback or otherwise degraded result.
type Prediction struct {
	CompletionProbability float64 `json:"completionProbability"`
	TimeToCompleteHours   float64 `json:"timeToCompleteHours"`
	ReworkRisk            float64 `json:"reworkRisk"`
	PredictedSatisfaction float64 `json:"predictedSatisfaction"`
	Confidence            float64 `json:"confidence"`
	ModelVersion          string  `json:"modelVersion,omitempty"`
}

// VendorRecommendation is one ranked entry of a scoring pass. Created
// once per pass and immutable thereafter; downstream override and audit
// layers reference it by vendor identity and rank.
type VendorRecommendation struct {
	Rank                  int            `json:"rank"`
	VendorID              string         `json:"vendorId"`
	VendorName            string         `json:"vendorName,omitempty"`
	OverallScore          float64        `json:"overallScore"`
	Confidence            float64        `json:"confidence"`
	Breakdown             ScoreBreakdown `json:"scoreBreakdown"`
	RiskFactors           []string       `json:"riskFactors,omitempty"`
	EstimatedResponseTime float64        `json:"estimatedResponseTimeHours"`
}

// RankResult is the aggregate outcome of ranking one job's candidates.
type RankResult struct {
	RunID                 string                 `json:"runId"`
	JobID                 string                 `json:"jobId"`
	Recommendations       []VendorRecommendation `json:"recommendations"`
	EligibleVendorsCount  int                    `json:"eligibleVendorsCount"`
	TotalVendorsEvaluated int                    `json:"totalVendorsEvaluated"`
	DegradedMode          bool                   `json:"degradedMode"`
	Warning               string                 `json:"warning,omitempty"`
}
