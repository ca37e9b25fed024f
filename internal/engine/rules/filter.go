// internal/engine/rules/filter.go
package rules

import (
	"time"

	"vendor-ranking-workers/internal/models"
)

// FilterResult is the outcome of one filter for one vendor/job pair.
type FilterResult struct {
	Passed      bool
	Score       float64
	Explanation string
}

// Filter scores one vendor against one job. Implementations are pure and
// total: well-formed input never panics or errors, it fails the filter
// with an explanation instead.
type Filter interface {
	Name() string
	Evaluate(vendor *models.VendorProfile, job *models.JobRequest, now time.Time) FilterResult
}
