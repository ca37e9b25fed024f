// internal/engine/rules/capacity.go
package rules

import (
	"fmt"
	"time"

	"vendor-ranking-workers/internal/models"
)

// CapacityFilter scores free capacity against the job's urgency. Urgent
// jobs favor vendors with plenty of headroom: a vendor down to its last
// slot is a risky pick for a critical job even though it technically has
// room.
type CapacityFilter struct{}

func NewCapacityFilter() *CapacityFilter {
	return &CapacityFilter{}
}

func (f *CapacityFilter) Name() string {
	return "capacity"
}

func urgencyMultiplier(u models.UrgencyLevel) float64 {
	switch u {
	case models.UrgencyCritical:
		return 1.5
	case models.UrgencyHigh:
		return 1.25
	case models.UrgencyLow:
		return 0.75
	default:
		return 1.0
	}
}

func (f *CapacityFilter) Evaluate(vendor *models.VendorProfile, job *models.JobRequest, _ time.Time) FilterResult {
	if vendor.MaxCapacity <= 0 {
		return FilterResult{
			Passed:      false,
			Score:       0,
			Explanation: "no capacity configured",
		}
	}

	remaining := vendor.MaxCapacity - vendor.CurrentCapacity
	if remaining <= 0 {
		return FilterResult{
			Passed:      false,
			Score:       0,
			Explanation: fmt.Sprintf("no free slots (%d/%d jobs)", vendor.CurrentCapacity, vendor.MaxCapacity),
		}
	}

	score := (1 - vendor.CapacityUtilization()) * urgencyMultiplier(job.Urgency)

	// Nearly-full vendors are penalized for urgent work.
	if job.Urgency >= models.UrgencyHigh {
		switch remaining {
		case 1:
			score *= 0.5
		case 2:
			score *= 0.75
		}
	}

	return FilterResult{
		Passed:      true,
		Score:       models.Clamp01(score),
		Explanation: fmt.Sprintf("%d of %d slots free under %s urgency", remaining, vendor.MaxCapacity, job.Urgency),
	}
}
