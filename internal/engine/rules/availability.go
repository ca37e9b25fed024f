// internal/engine/rules/availability.go
package rules

import (
	"fmt"
	"time"

	"vendor-ranking-workers/internal/models"
)

// AvailabilityFilter checks vendor status, free capacity, and scheduled
// availability windows. A vendor with no windows is treated as always
// available.
type AvailabilityFilter struct{}

func NewAvailabilityFilter() *AvailabilityFilter {
	return &AvailabilityFilter{}
}

func (f *AvailabilityFilter) Name() string {
	return "availability"
}

func (f *AvailabilityFilter) Evaluate(vendor *models.VendorProfile, _ *models.JobRequest, now time.Time) FilterResult {
	if vendor.Status != models.VendorActive {
		return FilterResult{
			Passed:      false,
			Score:       0,
			Explanation: fmt.Sprintf("vendor status is %s, not active", vendor.Status),
		}
	}

	if vendor.CurrentCapacity >= vendor.MaxCapacity {
		return FilterResult{
			Passed:      false,
			Score:       0,
			Explanation: fmt.Sprintf("at capacity (%d/%d jobs)", vendor.CurrentCapacity, vendor.MaxCapacity),
		}
	}

	if len(vendor.AvailabilityWindows) > 0 {
		inWindow := false
		for _, w := range vendor.AvailabilityWindows {
			if w.Contains(now) {
				inWindow = true
				break
			}
		}
		if !inWindow {
			return FilterResult{
				Passed:      false,
				Score:       0,
				Explanation: "current time falls outside all scheduled availability windows",
			}
		}
	}

	utilization := vendor.CapacityUtilization()
	return FilterResult{
		Passed:      true,
		Score:       models.Clamp01(1 - utilization),
		Explanation: fmt.Sprintf("available, capacity utilization %.0f%%", utilization*100),
	}
}
