// internal/engine/rules/engine.go
package rules

import (
	"fmt"
	"time"

	"vendor-ranking-workers/internal/models"
)

// Weights assigns a weight to each rule factor. The set, including the
// historical-completion factor, must sum to 1.0 within tolerance.
type Weights struct {
	Availability         float64 `mapstructure:"availability"`
	Proximity            float64 `mapstructure:"proximity"`
	Certification        float64 `mapstructure:"certification"`
	Capacity             float64 `mapstructure:"capacity"`
	HistoricalCompletion float64 `mapstructure:"historical_completion"`
}

// DefaultWeights returns the production rule weight set.
func DefaultWeights() Weights {
	return Weights{
		Availability:         0.25,
		Proximity:            0.20,
		Certification:        0.20,
		Capacity:             0.15,
		HistoricalCompletion: 0.20,
	}
}

// Result is a rule engine verdict for one vendor: weighted score, the
// AND of all filter pass flags, and every failure explanation collected
// for exclusion reporting.
type Result struct {
	VendorID       string
	Passed         bool
	Score          float64
	Factors        []models.ScoreFactor
	FailureReasons []string
}

// Factor returns the named factor, or a zero factor when absent.
func (r *Result) Factor(name string) models.ScoreFactor {
	for _, f := range r.Factors {
		if f.Name == name {
			return f
		}
	}
	return models.ScoreFactor{Name: name}
}

type weightedFilter struct {
	name   string
	filter Filter
	weight float64
}

// Engine runs the rule filters plus the historical-completion factor and
// combines them into a weighted rule-based score. Evaluate is pure given
// (vendor, job, metrics, now) and safe to call from many goroutines.
type Engine struct {
	filters          []weightedFilter
	historicalWeight float64
}

// NewEngine validates the weight set and builds the filter chain. Weight
// sets that do not sum to 1.0 ± 0.001 are rejected, never normalized.
func NewEngine(w Weights) (*Engine, error) {
	if !models.WeightsSumValid(w.Availability, w.Proximity, w.Certification, w.Capacity, w.HistoricalCompletion) {
		return nil, fmt.Errorf("rule weights must sum to 1.0 ± %.3f, got %.4f",
			models.WeightTolerance,
			w.Availability+w.Proximity+w.Certification+w.Capacity+w.HistoricalCompletion)
	}

	return &Engine{
		filters: []weightedFilter{
			{name: "availability", filter: NewAvailabilityFilter(), weight: w.Availability},
			{name: "proximity", filter: NewGeographyFilter(), weight: w.Proximity},
			{name: "certification", filter: NewCertificationFilter(), weight: w.Certification},
			{name: "capacity", filter: NewCapacityFilter(), weight: w.Capacity},
		},
		historicalWeight: w.HistoricalCompletion,
	}, nil
}

// Evaluate scores one vendor against one job. The historical-completion
// factor never fails the vendor; missing metrics fall back to the
// documented defaults.
func (e *Engine) Evaluate(vendor *models.VendorProfile, job *models.JobRequest, metrics *models.VendorMetrics, now time.Time) Result {
	result := Result{
		VendorID: vendor.ID,
		Passed:   true,
		Factors:  make([]models.ScoreFactor, 0, len(e.filters)+1),
	}

	for _, wf := range e.filters {
		fr := wf.filter.Evaluate(vendor, job, now)
		result.Factors = append(result.Factors,
			models.NewScoreFactor(wf.name, fr.Score, wf.weight, fr.Explanation))
		if !fr.Passed {
			result.Passed = false
			result.FailureReasons = append(result.FailureReasons,
				fmt.Sprintf("%s: %s", wf.name, fr.Explanation))
		}
	}

	completionRate := models.DefaultCompletionRate
	explanation := "no history, default completion rate assumed"
	if metrics != nil {
		completionRate = models.Clamp01(metrics.CompletionRate)
		explanation = fmt.Sprintf("historical completion rate %.0f%% over %d jobs",
			completionRate*100, metrics.DataPoints)
	}
	result.Factors = append(result.Factors,
		models.NewScoreFactor("historicalCompletion", completionRate, e.historicalWeight, explanation))

	for _, f := range result.Factors {
		result.Score += f.Contribution
	}
	result.Score = models.Clamp01(result.Score)

	return result
}
