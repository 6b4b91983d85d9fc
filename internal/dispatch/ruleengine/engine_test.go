// internal/dispatch/ruleengine/engine_test.go
package ruleengine

import (
	"fmt"
	"math"
	"testing"
	"time"

	"vendor-dispatch/internal/common/logger"
	"vendor-dispatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func createTestEngine(t *testing.T) *Engine {
	engine, err := NewEngine(DefaultFactorWeights(), logger.NewTestLogger(t))
	require.NoError(t, err)
	return engine
}

func createJob(certs ...string) models.JobRequest {
	return models.JobRequest{
		ID:                     "job-1",
		Type:                   models.JobTypeRepair,
		Location:               models.JobLocation{ZipCode: "94110", Region: "bay-area"},
		Urgency:                models.UrgencyMedium,
		SLADeadline:            testNow.Add(24 * time.Hour),
		RequiredCertifications: certs,
		CustomerTier:           models.TierStandard,
	}
}

func createVendor(id string) models.VendorCandidate {
	return models.VendorCandidate{
		ID:     id,
		Status: models.VendorActive,
		ServiceArea: models.ServiceArea{
			ZipCodes:      []string{"94110", "94112"},
			Region:        "bay-area",
			MaxDistanceKm: 50,
		},
		Capacity:   models.Capacity{Max: 10, Current: 4},
		DistanceKm: 10,
		Availability: []models.AvailabilityWindow{
			{Day: "monday", Start: "08:00", End: "17:00"},
		},
	}
}

func validCert(name string) models.Certification {
	return models.Certification{
		Name:      name,
		Issuer:    "state-board",
		ExpiresAt: testNow.Add(365 * 24 * time.Hour),
		Verified:  true,
	}
}

// ==========================
// Hard Eligibility Checks
// ==========================

func TestEngine_HardChecks(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(job *models.JobRequest, vendor *models.VendorCandidate)
		wantPassed bool
		wantReason string
	}{
		{
			name:       "fully eligible vendor",
			mutate:     func(*models.JobRequest, *models.VendorCandidate) {},
			wantPassed: true,
		},
		{
			name: "inactive vendor excluded",
			mutate: func(_ *models.JobRequest, v *models.VendorCandidate) {
				v.Status = models.VendorInactive
			},
			wantPassed: false,
			wantReason: "not active",
		},
		{
			name: "suspended vendor excluded",
			mutate: func(_ *models.JobRequest, v *models.VendorCandidate) {
				v.Status = models.VendorSuspended
			},
			wantPassed: false,
			wantReason: "not active",
		},
		{
			name: "out of service area",
			mutate: func(j *models.JobRequest, v *models.VendorCandidate) {
				j.Location = models.JobLocation{ZipCode: "10001", Region: "nyc"}
			},
			wantPassed: false,
			wantReason: "does not serve",
		},
		{
			name: "region match without zip match passes",
			mutate: func(j *models.JobRequest, v *models.VendorCandidate) {
				j.Location = models.JobLocation{ZipCode: "94999", Region: "bay-area"}
			},
			wantPassed: true,
		},
		{
			name: "missing required certification",
			mutate: func(j *models.JobRequest, v *models.VendorCandidate) {
				j.RequiredCertifications = []string{"hvac-epa-608"}
			},
			wantPassed: false,
			wantReason: "missing valid certification",
		},
		{
			name: "expired certification rejected",
			mutate: func(j *models.JobRequest, v *models.VendorCandidate) {
				j.RequiredCertifications = []string{"hvac-epa-608"}
				cert := validCert("hvac-epa-608")
				cert.ExpiresAt = testNow.Add(-time.Hour)
				v.Certifications = []models.Certification{cert}
			},
			wantPassed: false,
			wantReason: "missing valid certification",
		},
		{
			name: "unverified certification rejected",
			mutate: func(j *models.JobRequest, v *models.VendorCandidate) {
				j.RequiredCertifications = []string{"hvac-epa-608"}
				cert := validCert("hvac-epa-608")
				cert.Verified = false
				v.Certifications = []models.Certification{cert}
			},
			wantPassed: false,
			wantReason: "missing valid certification",
		},
		{
			name: "valid certification passes",
			mutate: func(j *models.JobRequest, v *models.VendorCandidate) {
				j.RequiredCertifications = []string{"hvac-epa-608"}
				v.Certifications = []models.Certification{validCert("hvac-epa-608")}
			},
			wantPassed: true,
		},
		{
			name: "at capacity excluded",
			mutate: func(_ *models.JobRequest, v *models.VendorCandidate) {
				v.Capacity = models.Capacity{Max: 5, Current: 5}
			},
			wantPassed: false,
			wantReason: "at capacity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := createTestEngine(t)
			job := createJob()
			vendor := createVendor("v1")
			tt.mutate(&job, &vendor)

			result := engine.Evaluate(job, vendor, nil, testNow)

			assert.Equal(t, tt.wantPassed, result.Passed)
			if tt.wantReason != "" {
				require.NotEmpty(t, result.FailureReasons)
				found := false
				for _, r := range result.FailureReasons {
					if assert.ObjectsAreEqual(true, containsSubstring(r, tt.wantReason)) {
						found = true
					}
				}
				assert.True(t, found, "expected reason containing %q, got %v", tt.wantReason, result.FailureReasons)
			}
		})
	}
}

func containsSubstring(s, sub string) bool {
	return len(s) >= len(sub) && (s == sub || len(sub) == 0 || indexOf(s, sub) >= 0)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

// ==========================
// Score Breakdown Invariants
// ==========================

func TestEngine_BreakdownInvariants(t *testing.T) {
	engine := createTestEngine(t)

	metrics := &models.VendorMetrics{
		CompletionRate:       0.92,
		ReworkRate:           0.04,
		AvgResponseTimeHours: 2.5,
		AvgSatisfaction:      4.6,
		SampleSize:           120,
	}

	vendors := []models.VendorCandidate{
		createVendor("v1"),
		func() models.VendorCandidate {
			v := createVendor("v2")
			v.Capacity = models.Capacity{Max: 3, Current: 2}
			v.DistanceKm = 45
			return v
		}(),
		func() models.VendorCandidate {
			v := createVendor("v3")
			v.Availability = nil
			v.ServiceArea.MaxDistanceKm = 0
			return v
		}(),
	}

	for i, vendor := range vendors {
		for _, m := range []*models.VendorMetrics{nil, metrics} {
			t.Run(fmt.Sprintf("vendor %d metrics=%v", i, m != nil), func(t *testing.T) {
				result := engine.Evaluate(createJob(), vendor, m, testNow)
				require.True(t, result.Passed)

				b := result.Breakdown
				assert.True(t, b.Consistent(), "breakdown invariants violated: %+v", b)
				assert.InDelta(t, 1.0, b.WeightSum(), models.FloatTolerance)

				var sum float64
				for _, f := range b.Factors {
					assert.GreaterOrEqual(t, f.Value, 0.0)
					assert.LessOrEqual(t, f.Value, 1.0)
					assert.InDelta(t, f.Value*f.Weight, f.Contribution, models.FloatTolerance)
					assert.NotEmpty(t, f.Explanation)
					sum += f.Contribution
				}
				assert.InDelta(t, sum, b.RuleBasedScore, models.FloatTolerance)
				assert.GreaterOrEqual(t, b.RuleBasedScore, 0.0)
				assert.LessOrEqual(t, b.RuleBasedScore, 1.0)
			})
		}
	}
}

func TestEngine_FactorValues(t *testing.T) {
	engine := createTestEngine(t)

	t.Run("historical completion defaults without metrics", func(t *testing.T) {
		result := engine.Evaluate(createJob(), createVendor("v1"), nil, testNow)
		require.True(t, result.Passed)

		factor := findFactor(t, result.Breakdown, "historicalCompletion")
		assert.InDelta(t, 0.7, factor.Value, models.FloatTolerance)
	})

	t.Run("historical completion uses metrics", func(t *testing.T) {
		m := &models.VendorMetrics{CompletionRate: 0.95, SampleSize: 40}
		result := engine.Evaluate(createJob(), createVendor("v1"), m, testNow)
		require.True(t, result.Passed)

		factor := findFactor(t, result.Breakdown, "historicalCompletion")
		assert.InDelta(t, 0.95, factor.Value, models.FloatTolerance)
	})

	t.Run("certification is 1.0 when none required", func(t *testing.T) {
		result := engine.Evaluate(createJob(), createVendor("v1"), nil, testNow)
		require.True(t, result.Passed)

		factor := findFactor(t, result.Breakdown, "certification")
		assert.Equal(t, 1.0, factor.Value)
	})

	t.Run("certification is fractional match", func(t *testing.T) {
		job := createJob("cert-a", "cert-b")
		vendor := createVendor("v1")
		vendor.Certifications = []models.Certification{validCert("cert-a"), validCert("cert-b")}
		result := engine.Evaluate(job, vendor, nil, testNow)
		require.True(t, result.Passed)

		factor := findFactor(t, result.Breakdown, "certification")
		assert.Equal(t, 1.0, factor.Value)
	})

	t.Run("proximity decreases with distance", func(t *testing.T) {
		near := createVendor("near")
		near.DistanceKm = 5
		far := createVendor("far")
		far.DistanceKm = 45

		nearResult := engine.Evaluate(createJob(), near, nil, testNow)
		farResult := engine.Evaluate(createJob(), far, nil, testNow)

		nearProx := findFactor(t, nearResult.Breakdown, "proximity")
		farProx := findFactor(t, farResult.Breakdown, "proximity")
		assert.Greater(t, nearProx.Value, farProx.Value)
	})

	t.Run("capacity factor is free ratio", func(t *testing.T) {
		vendor := createVendor("v1")
		vendor.Capacity = models.Capacity{Max: 10, Current: 4}
		result := engine.Evaluate(createJob(), vendor, nil, testNow)
		require.True(t, result.Passed)

		factor := findFactor(t, result.Breakdown, "capacity")
		assert.InDelta(t, 0.6, factor.Value, models.FloatTolerance)
	})
}

func findFactor(t *testing.T, b models.ScoreBreakdown, name string) models.ScoreFactor {
	t.Helper()
	for _, f := range b.Factors {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("factor %s not found in breakdown", name)
	return models.ScoreFactor{}
}

// ==========================
// Weight Customization
// ==========================

func TestFactorWeights_Validate(t *testing.T) {
	tests := []struct {
		name    string
		weights FactorWeights
		wantErr bool
	}{
		{
			name:    "default weights valid",
			weights: DefaultFactorWeights(),
			wantErr: false,
		},
		{
			name: "custom weights summing to one",
			weights: FactorWeights{
				Availability: 0.3, Proximity: 0.3, Certification: 0.2,
				Capacity: 0.1, HistoricalCompletion: 0.1,
			},
			wantErr: false,
		},
		{
			name: "weights not summing rejected",
			weights: FactorWeights{
				Availability: 0.5, Proximity: 0.3, Certification: 0.2,
				Capacity: 0.1, HistoricalCompletion: 0.1,
			},
			wantErr: true,
		},
		{
			name: "negative weight rejected even when sum is one",
			weights: FactorWeights{
				Availability: 0.5, Proximity: 0.5, Certification: 0.2,
				Capacity: -0.2, HistoricalCompletion: 0.0,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.weights.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewEngine_RejectsInvalidWeights(t *testing.T) {
	bad := FactorWeights{Availability: 1.0, Proximity: 1.0}
	_, err := NewEngine(bad, logger.NewNoOpLogger())
	require.Error(t, err)
	// Weights are never silently renormalized.
	assert.Greater(t, math.Abs(bad.Sum()-1.0), models.FloatTolerance)
}

// ==========================
// Determinism
// ==========================

func TestEngine_Deterministic(t *testing.T) {
	engine := createTestEngine(t)
	job := createJob("cert-a")
	vendor := createVendor("v1")
	vendor.Certifications = []models.Certification{validCert("cert-a")}
	metrics := &models.VendorMetrics{CompletionRate: 0.88, SampleSize: 55}

	first := engine.Evaluate(job, vendor, metrics, testNow)
	for i := 0; i < 10; i++ {
		again := engine.Evaluate(job, vendor, metrics, testNow)
		assert.Equal(t, first, again)
	}
}
