// internal/models/vendor.go
package models

import (
	"fmt"
	"strings"
	"time"
)

// VendorStatus gates whether a vendor can be scored at all.
type VendorStatus string

const (
	VendorActive    VendorStatus = "active"
	VendorInactive  VendorStatus = "inactive"
	VendorSuspended VendorStatus = "suspended"
)

// Certification is a vendor credential with its verification state.
type Certification struct {
	Name      string    `json:"name"`
	Verified  bool      `json:"verified"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// IsValid reports whether the certification is verified and unexpired at t.
func (c Certification) IsValid(t time.Time) bool {
	return c.Verified && (c.ExpiresAt.IsZero() || c.ExpiresAt.After(t))
}

// ServiceArea is one geographic coverage unit for a vendor.
type ServiceArea struct {
	Region      string   `json:"region"`
	PostalCodes []string `json:"postalCodes"`
	MaxDistance float64  `json:"maxDistanceKm"`
}

// CoversPostalCode reports whether the area lists the given postal code.
func (a ServiceArea) CoversPostalCode(code string) bool {
	for _, pc := range a.PostalCodes {
		if strings.EqualFold(pc, code) {
			return true
		}
	}
	return false
}

// AvailabilityWindow is a recurring weekly slot in the vendor's timezone.
type AvailabilityWindow struct {
	DayOfWeek time.Weekday `json:"dayOfWeek"`
	StartHour int          `json:"startHour"`
	EndHour   int          `json:"endHour"`
	Timezone  string       `json:"timezone"`
}

// Contains reports whether t (converted to the window's timezone when it
// resolves) falls inside the window.
func (w AvailabilityWindow) Contains(t time.Time) bool {
	local := t
	if loc, err := time.LoadLocation(w.Timezone); err == nil && w.Timezone != "" {
		local = t.In(loc)
	}
	if local.Weekday() != w.DayOfWeek {
		return false
	}
	hour := local.Hour()
	return hour >= w.StartHour && hour < w.EndHour
}

// VendorProfile is the read-only vendor snapshot scored during one
// ranking call. Mutations happen externally between calls.
type VendorProfile struct {
	ID                  string               `json:"id"`
	Name                string               `json:"name"`
	Status              VendorStatus         `json:"status"`
	Certifications      []Certification      `json:"certifications,omitempty"`
	ServiceAreas        []ServiceArea        `json:"serviceAreas,omitempty"`
	BaseLocation        *Location            `json:"baseLocation,omitempty"`
	MaxCapacity         int                  `json:"maxCapacity"`
	CurrentCapacity     int                  `json:"currentCapacity"`
	AvailabilityWindows []AvailabilityWindow `json:"availabilityWindows,omitempty"`
}

// Validate rejects malformed vendor records so they are excluded with a
// reason instead of crashing a filter.
func (v *VendorProfile) Validate() error {
	if strings.TrimSpace(v.ID) == "" {
		return fmt.Errorf("vendor id is required")
	}
	if v.MaxCapacity < 0 || v.CurrentCapacity < 0 {
		return fmt.Errorf("vendor %s: negative capacity", v.ID)
	}
	if v.CurrentCapacity > v.MaxCapacity {
		return fmt.Errorf("vendor %s: current capacity %d exceeds max %d",
			v.ID, v.CurrentCapacity, v.MaxCapacity)
	}
	return nil
}

// CapacityUtilization returns currentCapacity/maxCapacity, 1.0 when no
// capacity is configured.
func (v *VendorProfile) CapacityUtilization() float64 {
	if v.MaxCapacity <= 0 {
		return 1.0
	}
	return float64(v.CurrentCapacity) / float64(v.MaxCapacity)
}

// Default historical metrics used when a vendor has no recorded history.
const (
	DefaultCompletionRate   = 0.7
	DefaultReworkRate       = 0.1
	DefaultAvgResponseHours = 4.0
	DefaultAvgSatisfaction  = 3.5
)

// VendorMetrics is the optional historical performance record for one
// vendor. Absence degrades to the documented defaults.
type VendorMetrics struct {
	VendorID         string  `json:"vendorId"`
	CompletionRate   float64 `json:"completionRate"`
	ReworkRate       float64 `json:"reworkRate"`
	AvgResponseHours float64 `json:"avgResponseHours"`
	AvgSatisfaction  float64 `json:"avgSatisfaction"`
	DataPoints       int     `json:"dataPoints"`
}

// DefaultVendorMetrics returns the documented fallback metrics for a
// vendor with no history.
func DefaultVendorMetrics(vendorID string) *VendorMetrics {
	return &VendorMetrics{
		VendorID:         vendorID,
		CompletionRate:   DefaultCompletionRate,
		ReworkRate:       DefaultReworkRate,
		AvgResponseHours: DefaultAvgResponseHours,
		AvgSatisfaction:  DefaultAvgSatisfaction,
	}
}
