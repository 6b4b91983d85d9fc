// internal/models/job.go
package models

import "time"

// JobType classifies the kind of field work a job requires.
type JobType string

const (
	JobTypeRepair       JobType = "repair"
	JobTypeInstallation JobType = "installation"
	JobTypeMaintenance  JobType = "maintenance"
	JobTypeInspection   JobType = "inspection"
)

// UrgencyLevel is the dispatch priority of a job.
type UrgencyLevel string

const (
	UrgencyLow      UrgencyLevel = "low"
	UrgencyMedium   UrgencyLevel = "medium"
	UrgencyHigh     UrgencyLevel = "high"
	UrgencyCritical UrgencyLevel = "critical"
)

// CustomerTier is the service level of the requesting customer.
type CustomerTier string

const (
	TierStandard   CustomerTier = "standard"
	TierPremium    CustomerTier = "premium"
	TierEnterprise CustomerTier = "enterprise"
)

// JobLocation identifies where the work has to happen.
type JobLocation struct {
	ZipCode string `json:"zipCode"`
	Region  string `json:"region,omitempty"`
}

// JobRequest is one service-repair job to be matched against vendors.
// It is treated as immutable for the duration of a scoring pass.
type JobRequest struct {
	ID                     string       `json:"jobId"`
	Type                   JobType      `json:"jobType"`
	Location               JobLocation  `json:"location"`
	Urgency                UrgencyLevel `json:"urgencyLevel"`
	SLADeadline            time.Time    `json:"slaDeadline,omitempty"`
	RequiredCertifications []string     `json:"requiredCertifications,omitempty"`
	CustomerTier           CustomerTier `json:"customerTier"`
	SpecialRequirements    []string     `json:"specialRequirements,omitempty"`
}

// ValidJobType reports whether t is one of the known job types.
func ValidJobType(t JobType) bool {
	switch t {
	case JobTypeRepair, JobTypeInstallation, JobTypeMaintenance, JobTypeInspection:
		return true
	}
	return false
}

// ValidUrgency reports whether u is one of the known urgency levels.
func ValidUrgency(u UrgencyLevel) bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

// ValidTier reports whether c is one of the known customer tiers.
func ValidTier(c CustomerTier) bool {
	switch c {
	case TierStandard, TierPremium, TierEnterprise:
		return true
	}
	return false
}
