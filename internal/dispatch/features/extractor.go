// internal/dispatch/features/extractor.go
package features

import (
	"time"

	"vendor-dispatch/internal/models"
)

// ==========================
// Categorical Encodings
// ==========================

// Encodings are fixed by the trained model's preprocessing and must not
// change without retraining.
var jobTypeEncoding = map[models.JobType]float64{
	models.JobTypeRepair:       0,
	models.JobTypeInstallation: 1,
	models.JobTypeMaintenance:  2,
	models.JobTypeInspection:   3,
}

var urgencyEncoding = map[models.UrgencyLevel]float64{
	models.UrgencyLow:      0,
	models.UrgencyMedium:   1,
	models.UrgencyHigh:     2,
	models.UrgencyCritical: 3,
}

var tierEncoding = map[models.CustomerTier]float64{
	models.TierStandard:   0,
	models.TierPremium:    1,
	models.TierEnterprise: 2,
}

// Defaults used when a vendor has no recorded history.
const (
	defaultCompletionRate    = 0.7
	defaultReworkRate        = 0.1
	defaultResponseTimeHours = 4.0
	defaultSatisfaction      = 3.5

	// defaultSLAWindowHours is assumed when a job carries no SLA deadline.
	defaultSLAWindowHours = 24.0

	// Normalization caps for model input.
	maxResponseTimeHours = 24.0
	maxSLAWindowHours    = 72.0
	maxCertCount         = 10.0
	maxSpecializations   = 10.0
	maxServiceAreas      = 20.0
)

// FeatureSet is the raw feature record for one job/vendor pair. Values
// are in natural units; Normalized maps them to [0,1] for model input.
type FeatureSet struct {
	// Job features
	JobTypeEncoded          float64
	UrgencyLevelEncoded     float64
	CustomerTierEncoded     float64
	RequiredCertCount       float64
	SpecialRequirementCount float64
	HoursUntilSLA           float64

	// Vendor features
	VendorCapacityUtilization float64
	VendorCertCount           float64
	VendorSpecializationCount float64
	VendorServiceAreaCount    float64

	// Historical performance features
	HistoricalCompletionRate   float64
	HistoricalReworkRate       float64
	HistoricalAvgResponseTime  float64
	HistoricalAvgSatisfaction  float64

	// Match features
	CertificationMatchRatio float64
	IsInServiceArea         float64

	// DataQuality reflects how much of the record came from real data
	// rather than defaults.
	DataQuality float64
}

// Extract builds the feature record for one job/vendor pair. It is pure:
// the same inputs always yield the same record, and nothing is mutated.
func Extract(job models.JobRequest, vendor models.VendorCandidate, metrics *models.VendorMetrics, now time.Time) FeatureSet {
	fs := FeatureSet{
		JobTypeEncoded:          jobTypeEncoding[job.Type],
		UrgencyLevelEncoded:     urgencyEncoding[job.Urgency],
		CustomerTierEncoded:     tierEncoding[job.CustomerTier],
		RequiredCertCount:       float64(len(job.RequiredCertifications)),
		SpecialRequirementCount: float64(len(job.SpecialRequirements)),
	}

	quality := 1.0

	if job.SLADeadline.IsZero() {
		fs.HoursUntilSLA = defaultSLAWindowHours
		quality -= 0.1
	} else {
		hours := job.SLADeadline.Sub(now).Hours()
		if hours < 0 {
			hours = 0
		}
		fs.HoursUntilSLA = hours
	}

	if vendor.Capacity.Max > 0 {
		fs.VendorCapacityUtilization = float64(vendor.Capacity.Current) / float64(vendor.Capacity.Max)
	} else {
		fs.VendorCapacityUtilization = 1.0
	}
	fs.VendorCertCount = float64(len(vendor.Certifications))
	fs.VendorSpecializationCount = float64(len(vendor.Specializations))
	fs.VendorServiceAreaCount = float64(len(vendor.ServiceArea.ZipCodes))

	switch {
	case metrics == nil:
		fs.HistoricalCompletionRate = defaultCompletionRate
		fs.HistoricalReworkRate = defaultReworkRate
		fs.HistoricalAvgResponseTime = defaultResponseTimeHours
		fs.HistoricalAvgSatisfaction = defaultSatisfaction
		quality -= 0.3
	default:
		fs.HistoricalCompletionRate = metrics.CompletionRate
		fs.HistoricalReworkRate = metrics.ReworkRate
		fs.HistoricalAvgResponseTime = metrics.AvgResponseTimeHours
		fs.HistoricalAvgSatisfaction = metrics.AvgSatisfaction
		if metrics.SampleSize < 10 {
			quality -= 0.2
		} else if metrics.SampleSize < 50 {
			quality -= 0.1
		}
	}

	fs.CertificationMatchRatio = certMatchRatio(job, vendor, now)
	if vendor.ServiceArea.Covers(job.Location) {
		fs.IsInServiceArea = 1.0
	}

	fs.DataQuality = clamp01(quality)
	return fs
}

func certMatchRatio(job models.JobRequest, vendor models.VendorCandidate, now time.Time) float64 {
	required := len(job.RequiredCertifications)
	if required == 0 {
		return 1.0
	}
	matched := 0
	for _, name := range job.RequiredCertifications {
		for _, cert := range vendor.Certifications {
			if cert.Name == name && cert.ValidAt(now) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(required)
}

// Normalized maps every feature to [0,1] keyed by the model's expected
// input column names. Caps mirror the training preprocessing.
func (fs FeatureSet) Normalized() map[string]float64 {
	return map[string]float64{
		"job_type_encoded":      fs.JobTypeEncoded / 3.0,
		"urgency_level_encoded": fs.UrgencyLevelEncoded / 3.0,
		"customer_tier_encoded": fs.CustomerTierEncoded / 2.0,

		"required_cert_count":       capRatio(fs.RequiredCertCount, maxCertCount),
		"special_requirement_count": capRatio(fs.SpecialRequirementCount, maxCertCount),
		"hours_until_sla":           capRatio(fs.HoursUntilSLA, maxSLAWindowHours),

		"vendor_capacity_utilization": clamp01(fs.VendorCapacityUtilization),
		"vendor_cert_count":           capRatio(fs.VendorCertCount, maxCertCount),
		"vendor_specialization_count": capRatio(fs.VendorSpecializationCount, maxSpecializations),
		"vendor_service_area_count":   capRatio(fs.VendorServiceAreaCount, maxServiceAreas),

		"historical_completion_rate":   clamp01(fs.HistoricalCompletionRate),
		"historical_rework_rate":       clamp01(fs.HistoricalReworkRate),
		"historical_avg_response_time": capRatio(fs.HistoricalAvgResponseTime, maxResponseTimeHours),
		"historical_avg_satisfaction":  clamp01(fs.HistoricalAvgSatisfaction / 5.0),

		"certification_match_ratio": clamp01(fs.CertificationMatchRatio),
		"is_in_service_area":        fs.IsInServiceArea,

		"data_quality": fs.DataQuality,
	}
}

func capRatio(v, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return clamp01(v / max)
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
