// internal/dispatch/automation/manager_test.go
package automation

import (
	"testing"

	"vendor-dispatch/internal/common/config"
	"vendor-dispatch/internal/common/errors"
	"vendor-dispatch/internal/common/logger"
	"vendor-dispatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAutomationConfig() config.AutomationConfig {
	return config.AutomationConfig{
		DefaultLevel:        "auto",
		ConfidenceThreshold: 0.85,
		JobTypes: map[string]config.OverrideConfig{
			"installation": {Level: "manual", ConfidenceThreshold: 0.9},
			"inspection":   {Level: "auto", ConfidenceThreshold: 0.7},
		},
		Tiers: map[string]config.OverrideConfig{
			"enterprise": {Level: "advisory", ConfidenceThreshold: 0.95},
		},
	}
}

func newTestManager(t *testing.T, cfg config.AutomationConfig) *Manager {
	m, err := NewManager(cfg, logger.NewTestLogger(t))
	require.NoError(t, err)
	return m
}

func jobWith(jobType models.JobType, tier models.CustomerTier, urgency models.UrgencyLevel) models.JobRequest {
	return models.JobRequest{
		ID:           "job-1",
		Type:         jobType,
		Urgency:      urgency,
		CustomerTier: tier,
	}
}

func TestNewManager_RejectsInvalidRules(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.AutomationConfig
	}{
		{
			name: "bad default level",
			cfg:  config.AutomationConfig{DefaultLevel: "autopilot"},
		},
		{
			name: "bad job type level",
			cfg: config.AutomationConfig{
				DefaultLevel: "advisory",
				JobTypes:     map[string]config.OverrideConfig{"repair": {Level: "yolo"}},
			},
		},
		{
			name: "bad tier threshold",
			cfg: config.AutomationConfig{
				DefaultLevel: "advisory",
				Tiers:        map[string]config.OverrideConfig{"premium": {Level: "auto", ConfidenceThreshold: 1.5}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManager(tt.cfg, logger.NewNoOpLogger())
			require.Error(t, err)
			var stdErr *errors.StandardError
			require.ErrorAs(t, err, &stdErr)
			assert.Equal(t, errors.ErrCodeAutomationRuleBad, stdErr.Code)
		})
	}
}

func TestResolve_Precedence(t *testing.T) {
	manager := newTestManager(t, testAutomationConfig())

	tests := []struct {
		name          string
		job           models.JobRequest
		confidence    float64
		wantLevel     models.AutomationLevel
		wantThreshold float64
		wantApproval  bool
	}{
		{
			name:          "critical urgency always advisory",
			job:           jobWith(models.JobTypeInspection, models.TierStandard, models.UrgencyCritical),
			confidence:    0.99,
			wantLevel:     models.AutomationAdvisory,
			wantThreshold: 0.85,
			wantApproval:  true,
		},
		{
			name:          "manual job type beats enterprise tier",
			job:           jobWith(models.JobTypeInstallation, models.TierEnterprise, models.UrgencyHigh),
			confidence:    0.99,
			wantLevel:     models.AutomationManual,
			wantThreshold: 0.9,
			wantApproval:  true,
		},
		{
			name:          "tier override beats auto job type override",
			job:           jobWith(models.JobTypeInspection, models.TierEnterprise, models.UrgencyLow),
			confidence:    0.99,
			wantLevel:     models.AutomationAdvisory,
			wantThreshold: 0.95,
			wantApproval:  true,
		},
		{
			name:          "auto job type override applies without tier override",
			job:           jobWith(models.JobTypeInspection, models.TierStandard, models.UrgencyLow),
			confidence:    0.75,
			wantLevel:     models.AutomationAuto,
			wantThreshold: 0.7,
			wantApproval:  false,
		},
		{
			name:          "system default applies",
			job:           jobWith(models.JobTypeRepair, models.TierStandard, models.UrgencyMedium),
			confidence:    0.9,
			wantLevel:     models.AutomationAuto,
			wantThreshold: 0.85,
			wantApproval:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := manager.Resolve(tt.job, tt.confidence)
			assert.Equal(t, tt.wantLevel, decision.Level)
			assert.InDelta(t, tt.wantThreshold, decision.ConfidenceThreshold, models.FloatTolerance)
			assert.Equal(t, tt.wantApproval, decision.RequiresHumanApproval)
			assert.NotEmpty(t, decision.Reason)
		})
	}
}

func TestResolve_ConfidenceGateForcesAdvisory(t *testing.T) {
	manager := newTestManager(t, testAutomationConfig())

	job := jobWith(models.JobTypeRepair, models.TierStandard, models.UrgencyMedium)

	decision := manager.Resolve(job, 0.6)
	assert.Equal(t, models.AutomationAdvisory, decision.Level)
	assert.True(t, decision.RequiresHumanApproval)
	assert.Contains(t, decision.Reason, "below threshold")

	// The gate never upgrades a manual resolution.
	manualJob := jobWith(models.JobTypeInstallation, models.TierStandard, models.UrgencyMedium)
	decision = manager.Resolve(manualJob, 0.99)
	assert.Equal(t, models.AutomationManual, decision.Level)
}

func TestNewManager_Defaults(t *testing.T) {
	manager := newTestManager(t, config.AutomationConfig{})

	assert.Equal(t, models.AutomationAdvisory, manager.defaultLevel)
	assert.InDelta(t, 0.85, manager.defaultThreshold, models.FloatTolerance)

	// Override with zero threshold inherits the default.
	manager = newTestManager(t, config.AutomationConfig{
		DefaultLevel: "advisory",
		JobTypes:     map[string]config.OverrideConfig{"repair": {Level: "auto"}},
	})
	decision := manager.Resolve(jobWith(models.JobTypeRepair, models.TierStandard, models.UrgencyLow), 0.9)
	assert.Equal(t, models.AutomationAuto, decision.Level)
	assert.InDelta(t, 0.85, decision.ConfidenceThreshold, models.FloatTolerance)
}
