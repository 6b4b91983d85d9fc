// internal/dispatch/automation/manager.go
package automation

import (
	"fmt"

	"vendor-dispatch/internal/common/config"
	"vendor-dispatch/internal/common/errors"
	"vendor-dispatch/internal/common/logger"
	"vendor-dispatch/internal/models"
)

const (
	defaultConfidenceThreshold = 0.85
	defaultDegradedThreshold   = 0.6
)

// override is a validated per-job-type or per-tier automation rule.
type override struct {
	level     models.AutomationLevel
	threshold float64
}

// Manager resolves the automation level for a job from the configured
// default, job-type overrides, and customer-tier overrides.
type Manager struct {
	defaultLevel     models.AutomationLevel
	defaultThreshold float64

	jobTypes map[models.JobType]override
	tiers    map[models.CustomerTier]override

	logger logger.Logger
}

// NewManager builds a manager from config. Every override is validated
// up front; a bad rule is a hard configuration error.
func NewManager(cfg config.AutomationConfig, log logger.Logger) (*Manager, error) {
	m := &Manager{
		defaultLevel:     models.AutomationLevel(cfg.DefaultLevel),
		defaultThreshold: cfg.ConfidenceThreshold,
		jobTypes:         make(map[models.JobType]override),
		tiers:            make(map[models.CustomerTier]override),
		logger:           log.WithFields(map[string]interface{}{"component": "automation_manager"}),
	}
	if m.defaultLevel == "" {
		m.defaultLevel = models.AutomationAdvisory
	}
	if !models.ValidAutomationLevel(m.defaultLevel) {
		return nil, errors.NewAutomationRuleError(
			fmt.Sprintf("unknown default automation level %q", cfg.DefaultLevel))
	}
	if m.defaultThreshold <= 0 {
		m.defaultThreshold = defaultConfidenceThreshold
	}

	for jobType, rule := range cfg.JobTypes {
		parsed, err := parseOverride("job type "+jobType, rule, m.defaultThreshold)
		if err != nil {
			return nil, err
		}
		m.jobTypes[models.JobType(jobType)] = parsed
	}
	for tier, rule := range cfg.Tiers {
		parsed, err := parseOverride("customer tier "+tier, rule, m.defaultThreshold)
		if err != nil {
			return nil, err
		}
		m.tiers[models.CustomerTier(tier)] = parsed
	}
	return m, nil
}

func parseOverride(scope string, rule config.OverrideConfig, fallbackThreshold float64) (override, error) {
	level := models.AutomationLevel(rule.Level)
	if !models.ValidAutomationLevel(level) {
		return override{}, errors.NewAutomationRuleError(
			fmt.Sprintf("unknown automation level %q for %s", rule.Level, scope))
	}
	if rule.ConfidenceThreshold < 0 || rule.ConfidenceThreshold > 1 {
		return override{}, errors.NewAutomationRuleError(
			fmt.Sprintf("confidence threshold for %s must be in [0,1], got %.3f", scope, rule.ConfidenceThreshold))
	}
	threshold := rule.ConfidenceThreshold
	if threshold == 0 {
		threshold = fallbackThreshold
	}
	return override{level: level, threshold: threshold}, nil
}

// Resolve determines the automation level and confidence threshold for
// one job, before review flags are layered on.
//
// Precedence: critical urgency always demands advisory review; a
// job-type override set to advisory or manual beats a tier override; a
// tier override beats an auto job-type override and the default; and a
// resolved auto level is forced down to advisory whenever confidence
// falls below the resolved threshold.
func (m *Manager) Resolve(job models.JobRequest, confidence float64) models.AutomationDecision {
	level, threshold, reason := m.resolveLevel(job)

	if level == models.AutomationAuto && confidence < threshold {
		level = models.AutomationAdvisory
		reason = fmt.Sprintf("confidence %.2f below threshold %.2f, downgraded from auto", confidence, threshold)
	}

	decision := models.AutomationDecision{
		Level:               level,
		ConfidenceThreshold: threshold,
		Reason:              reason,
	}
	decision.RequiresHumanApproval = level != models.AutomationAuto || confidence < threshold

	m.logger.Debug("automation level resolved", map[string]interface{}{
		"jobId":      job.ID,
		"level":      string(level),
		"threshold":  threshold,
		"confidence": confidence,
	})
	return decision
}

func (m *Manager) resolveLevel(job models.JobRequest) (models.AutomationLevel, float64, string) {
	if job.Urgency == models.UrgencyCritical {
		return models.AutomationAdvisory, m.defaultThreshold,
			"critical urgency always requires human review"
	}

	jobOverride, hasJobOverride := m.jobTypes[job.Type]
	if hasJobOverride && jobOverride.level != models.AutomationAuto {
		return jobOverride.level, jobOverride.threshold,
			fmt.Sprintf("job type %s override: %s", job.Type, jobOverride.level)
	}

	if tierOverride, ok := m.tiers[job.CustomerTier]; ok {
		return tierOverride.level, tierOverride.threshold,
			fmt.Sprintf("customer tier %s override: %s", job.CustomerTier, tierOverride.level)
	}

	if hasJobOverride {
		return jobOverride.level, jobOverride.threshold,
			fmt.Sprintf("job type %s override: %s", job.Type, jobOverride.level)
	}

	return m.defaultLevel, m.defaultThreshold,
		fmt.Sprintf("system default: %s", m.defaultLevel)
}
