// internal/dispatch/automation/router.go
package automation

import (
	"fmt"

	"vendor-dispatch/internal/common/config"
	"vendor-dispatch/internal/common/logger"
	"vendor-dispatch/internal/common/metrics"
	"vendor-dispatch/internal/models"
)

const defaultScoreGapMargin = 0.05

// Router layers review flags and the final escalation decision on top of
// the resolved automation level.
type Router struct {
	manager           *Manager
	degradedThreshold float64
	scoreGapMargin    float64
	logger            logger.Logger
}

// NewRouter builds a confidence router around the automation manager.
func NewRouter(manager *Manager, cfg config.AutomationConfig, log logger.Logger) *Router {
	r := &Router{
		manager:           manager,
		degradedThreshold: cfg.DegradedConfidenceThreshold,
		scoreGapMargin:    cfg.ScoreGapMargin,
		logger:            log.WithFields(map[string]interface{}{"component": "confidence_router"}),
	}
	if r.degradedThreshold <= 0 {
		r.degradedThreshold = defaultDegradedThreshold
	}
	if r.scoreGapMargin <= 0 {
		r.scoreGapMargin = defaultScoreGapMargin
	}
	return r
}

// Route produces the final automation decision for a ranked result:
// resolve the base level, attach review flags, and escalate to human
// review when the flags or confidence demand it. Escalation always
// forces the reported level to advisory.
func (r *Router) Route(job models.JobRequest, rank models.RankResult, confidence float64) models.AutomationDecision {
	level, threshold, reason := r.manager.resolveLevel(job)

	effectiveThreshold := threshold
	if rank.DegradedMode {
		// Fallback predictions cap confidence well below the normal
		// threshold; holding them to it would escalate every degraded
		// run for confidence alone.
		effectiveThreshold = r.degradedThreshold
	}

	if level == models.AutomationAuto && confidence < effectiveThreshold {
		level = models.AutomationAdvisory
		reason = fmt.Sprintf("confidence %.2f below threshold %.2f, downgraded from auto", confidence, effectiveThreshold)
	}

	decision := models.AutomationDecision{
		Level:               level,
		ConfidenceThreshold: effectiveThreshold,
		Reason:              reason,
	}
	decision.RequiresHumanApproval = level != models.AutomationAuto || confidence < effectiveThreshold

	decision.Flags = r.reviewFlags(rank, confidence, effectiveThreshold)

	escalate := decision.RequiresHumanApproval ||
		confidence < effectiveThreshold ||
		countSeverity(decision.Flags, models.SeverityHigh) > 0 ||
		countSeverity(decision.Flags, models.SeverityMedium) >= 2

	if escalate {
		decision.Escalated = true
		decision.RequiresHumanApproval = true
		if decision.Level == models.AutomationAuto {
			decision.Level = models.AutomationAdvisory
			decision.Reason = "escalated to human review"
		}
	}

	metrics.AutomationDecisions.WithLabelValues(
		string(decision.Level), fmt.Sprintf("%t", decision.Escalated)).Inc()

	r.logger.Info("routing decision", map[string]interface{}{
		"jobId":      job.ID,
		"runId":      rank.RunID,
		"level":      string(decision.Level),
		"escalated":  decision.Escalated,
		"flagCount":  len(decision.Flags),
		"confidence": confidence,
	})
	return decision
}

func (r *Router) reviewFlags(rank models.RankResult, confidence, threshold float64) []models.ReviewFlag {
	var flags []models.ReviewFlag

	if confidence < threshold {
		severity := models.SeverityMedium
		if confidence < 0.5 {
			severity = models.SeverityHigh
		}
		flags = append(flags, models.ReviewFlag{
			Type:     "low_confidence",
			Severity: severity,
			Message:  fmt.Sprintf("confidence %.2f below threshold %.2f", confidence, threshold),
		})
	}

	if rank.DegradedMode {
		flags = append(flags, models.ReviewFlag{
			Type:     "degraded_mode",
			Severity: models.SeverityMedium,
			Message:  "prediction service unavailable, scores based on rules only",
		})
	}

	if top := topRecommendation(rank); top != nil {
		if len(top.RiskFactors) > 2 {
			flags = append(flags, models.ReviewFlag{
				Type:     "high_risk_vendor",
				Severity: models.SeverityHigh,
				Message:  fmt.Sprintf("top vendor carries %d risk factors", len(top.RiskFactors)),
			})
		}
		if top.Confidence < 0.5 {
			flags = append(flags, models.ReviewFlag{
				Type:     "low_vendor_confidence",
				Severity: models.SeverityMedium,
				Message:  "top vendor scored with low confidence, possible new vendor",
			})
		}
	}

	if len(rank.Recommendations) >= 2 {
		gap := rank.Recommendations[0].OverallScore - rank.Recommendations[1].OverallScore
		if gap < r.scoreGapMargin {
			flags = append(flags, models.ReviewFlag{
				Type:     "narrow_score_gap",
				Severity: models.SeverityLow,
				Message:  fmt.Sprintf("top two vendors within %.3f of each other", gap),
			})
		}
	}

	if len(rank.Recommendations) < 3 {
		severity := models.SeverityMedium
		if len(rank.Recommendations) == 0 {
			severity = models.SeverityHigh
		}
		flags = append(flags, models.ReviewFlag{
			Type:     "few_recommendations",
			Severity: severity,
			Message:  fmt.Sprintf("only %d recommendations available", len(rank.Recommendations)),
		})
	}

	return flags
}

func topRecommendation(rank models.RankResult) *models.VendorRecommendation {
	if len(rank.Recommendations) == 0 {
		return nil
	}
	return &rank.Recommendations[0]
}

func countSeverity(flags []models.ReviewFlag, severity models.FlagSeverity) int {
	count := 0
	for _, f := range flags {
		if f.Severity == severity {
			count++
		}
	}
	return count
}
