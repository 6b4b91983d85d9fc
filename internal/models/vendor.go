// internal/models/vendor.go
package models

import "time"

// VendorStatus is the operational state of a vendor account.
type VendorStatus string

const (
	VendorActive    VendorStatus = "active"
	VendorInactive  VendorStatus = "inactive"
	VendorSuspended VendorStatus = "suspended"
)

// Certification is one credential held by a vendor.
type Certification struct {
	Name      string    `json:"name"`
	Issuer    string    `json:"issuer,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
	Verified  bool      `json:"verified"`
}

// ValidAt reports whether the certification is verified and unexpired at t.
// A zero ExpiresAt means the credential does not expire.
func (c Certification) ValidAt(t time.Time) bool {
	if !c.Verified {
		return false
	}
	return c.ExpiresAt.IsZero() || c.ExpiresAt.After(t)
}

// ServiceArea describes the geography a vendor covers.
type ServiceArea struct {
	ZipCodes      []string `json:"zipCodes,omitempty"`
	Region        string   `json:"region,omitempty"`
	MaxDistanceKm float64  `json:"maxDistanceKm,omitempty"`
}

// Covers reports whether the area includes the given job location.
func (a ServiceArea) Covers(loc JobLocation) bool {
	for _, zip := range a.ZipCodes {
		if zip == loc.ZipCode {
			return true
		}
	}
	return a.Region != "" && a.Region == loc.Region
}

// Capacity tracks concurrent job load for a vendor.
type Capacity struct {
	Max     int `json:"max"`
	Current int `json:"current"`
}

// HasFree reports whether the vendor can take one more job.
func (c Capacity) HasFree() bool {
	return c.Current < c.Max
}

// FreeRatio returns the fraction of capacity still available, in [0,1].
func (c Capacity) FreeRatio() float64 {
	if c.Max <= 0 {
		return 0
	}
	free := float64(c.Max-c.Current) / float64(c.Max)
	if free < 0 {
		return 0
	}
	return free
}

// AvailabilityWindow is a recurring time slot the vendor accepts work in.
type AvailabilityWindow struct {
	Day   string `json:"day"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// VendorCandidate is one vendor under consideration for a job.
// DistanceKm is the precomputed distance from the vendor to the job site,
// supplied by the caller along with the candidate list.
type VendorCandidate struct {
	ID              string               `json:"vendorId"`
	Name            string               `json:"name,omitempty"`
	Status          VendorStatus         `json:"status"`
	Certifications  []Certification      `json:"certifications,omitempty"`
	ServiceArea     ServiceArea          `json:"serviceArea"`
	Capacity        Capacity             `json:"capacity"`
	Availability    []AvailabilityWindow `json:"availability,omitempty"`
	Specializations []string             `json:"specializations,omitempty"`
	DistanceKm      float64              `json:"distanceKm,omitempty"`
}

// VendorMetrics is the historical performance record of a vendor.
// Absence is a normal state for new vendors; lookups use the comma-ok
// form so every consumer handles the no-history path explicitly.
type VendorMetrics struct {
	CompletionRate       float64 `json:"completionRate"`
	ReworkRate           float64 `json:"reworkRate"`
	AvgResponseTimeHours float64 `json:"avgResponseTimeHours"`
	AvgSatisfaction      float64 `json:"avgSatisfaction"`
	SampleSize           int     `json:"sampleSize"`
}
