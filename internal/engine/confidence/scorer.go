// internal/engine/confidence/scorer.go
package confidence

import (
	"fmt"
	"math"
	"sort"

	"vendor-ranking-workers/internal/models"
)

// Weights distributes overall confidence across the five sub-factors.
// The set must sum to 1.0 within tolerance. These weights are configured
// independently of the ML component weights; the two sets share no
// derivation.
type Weights struct {
	DataQuality         float64 `mapstructure:"data_quality"`
	ModelCertainty      float64 `mapstructure:"model_certainty"`
	HistoricalData      float64 `mapstructure:"historical_data"`
	FeatureCompleteness float64 `mapstructure:"feature_completeness"`
	Consistency         float64 `mapstructure:"consistency"`
}

// DefaultWeights returns the production confidence weight set.
func DefaultWeights() Weights {
	return Weights{
		DataQuality:         0.25,
		ModelCertainty:      0.30,
		HistoricalData:      0.20,
		FeatureCompleteness: 0.15,
		Consistency:         0.10,
	}
}

// Routing thresholds.
const (
	AbstainThreshold   = 0.40
	ReviewThreshold    = 0.70
	AutomaticThreshold = 0.85

	// Minimum historical jobs for a fully reliable history signal.
	minReliableDataPoints = 10

	// Rule/ML divergence where consistency starts to be penalized, and
	// where the penalty escalates.
	consistencyGap         = 0.1
	consistencyEscalateGap = 0.4
)

// Scorer turns scoring signals into an overall confidence plus the
// abstention / human-review routing decision.
type Scorer struct {
	weights Weights
}

// New validates the confidence weight set at construction.
func New(w Weights) (*Scorer, error) {
	if !models.WeightsSumValid(w.DataQuality, w.ModelCertainty, w.HistoricalData, w.FeatureCompleteness, w.Consistency) {
		return nil, fmt.Errorf("confidence weights must sum to 1.0 ± %.3f, got %.4f",
			models.WeightTolerance,
			w.DataQuality+w.ModelCertainty+w.HistoricalData+w.FeatureCompleteness+w.Consistency)
	}
	return &Scorer{weights: w}, nil
}

// Input carries everything one confidence decision is derived from.
type Input struct {
	Vendor     *models.VendorProfile
	Metrics    *models.VendorMetrics
	Prediction *models.MLPrediction // nil in degraded mode
	RuleScore  float64
	MLScore    *float64
}

type reason struct {
	severity float64
	text     string
}

// Score computes the five sub-factors, the weighted overall confidence,
// and the routing decision. Every low-confidence outcome enumerates the
// reasons that produced it, ranked most severe first.
func (s *Scorer) Score(in Input) models.ConfidenceScoreResult {
	var reasons []reason

	dataQuality := s.dataQuality(in, &reasons)
	modelCertainty := s.modelCertainty(in, &reasons)
	historical := s.historicalData(in, &reasons)
	completeness := s.featureCompleteness(in, &reasons)
	consistency := s.consistency(in, &reasons)

	overall := models.Clamp01(
		dataQuality*s.weights.DataQuality +
			modelCertainty*s.weights.ModelCertainty +
			historical*s.weights.HistoricalData +
			completeness*s.weights.FeatureCompleteness +
			consistency*s.weights.Consistency)

	result := models.ConfidenceScoreResult{
		OverallConfidence:     overall,
		DataQuality:           dataQuality,
		ModelCertainty:        modelCertainty,
		HistoricalData:        historical,
		FeatureCompleteness:   completeness,
		PredictionConsistency: consistency,
	}

	result.Level = route(overall)
	result.Abstain = result.Level == models.ConfidenceAbstain
	result.RequiresHumanReview = result.Abstain || result.Level == models.ConfidenceReview

	if result.RequiresHumanReview || result.Abstain {
		sort.SliceStable(reasons, func(i, j int) bool {
			return reasons[i].severity > reasons[j].severity
		})
		for _, r := range reasons {
			result.LowConfidenceReasons = append(result.LowConfidenceReasons, r.text)
		}
	}

	return result
}

// route maps an overall confidence to its routing level. The abstain
// boundary is exclusive: a score of exactly AbstainThreshold still
// routes to human review, not abstention.
func route(overall float64) models.ConfidenceLevel {
	switch {
	case overall < AbstainThreshold:
		return models.ConfidenceAbstain
	case overall < ReviewThreshold:
		return models.ConfidenceReview
	case overall >= AutomaticThreshold:
		return models.ConfidenceAutomatic
	default:
		return models.ConfidenceAcceptable
	}
}

func (s *Scorer) dataQuality(in Input, reasons *[]reason) float64 {
	score := 1.0
	if in.Metrics == nil {
		score -= 0.4
		*reasons = append(*reasons, reason{0.4, "no historical metrics recorded for vendor"})
	}
	if len(in.Vendor.Certifications) == 0 {
		score -= 0.15
		*reasons = append(*reasons, reason{0.15, "vendor has no certifications on file"})
	}
	if len(in.Vendor.ServiceAreas) == 0 {
		score -= 0.2
		*reasons = append(*reasons, reason{0.2, "vendor has no service areas configured"})
	}
	if in.Vendor.BaseLocation == nil {
		score -= 0.1
		*reasons = append(*reasons, reason{0.1, "vendor base location unknown, proximity estimated"})
	}
	return models.Clamp01(score)
}

// modelCertainty penalizes extreme or internally inconsistent model
// outputs; a model claiming near-certain completion alongside high
// rework risk is not trustworthy.
func (s *Scorer) modelCertainty(in Input, reasons *[]reason) float64 {
	if in.Prediction == nil {
		*reasons = append(*reasons, reason{0.5, "no ML prediction available, rule-only scoring"})
		return 0.3
	}

	p := in.Prediction
	score := p.Confidence

	if p.CompletionProbability > 0.99 || p.CompletionProbability < 0.01 {
		score -= 0.2
		*reasons = append(*reasons, reason{0.2, fmt.Sprintf("extreme completion probability %.2f", p.CompletionProbability)})
	}
	if p.CompletionProbability > 0.9 && p.ReworkRisk > 0.5 {
		score -= 0.25
		*reasons = append(*reasons, reason{0.25, "model output inconsistent: high completion probability with high rework risk"})
	}
	if score < 0.5 {
		*reasons = append(*reasons, reason{0.3, fmt.Sprintf("model certainty low (%.2f)", models.Clamp01(score))})
	}
	return models.Clamp01(score)
}

func (s *Scorer) historicalData(in Input, reasons *[]reason) float64 {
	if in.Metrics == nil || in.Metrics.DataPoints == 0 {
		*reasons = append(*reasons, reason{0.35, "vendor has no completed-job history"})
		return 0.2
	}
	score := models.Clamp01(float64(in.Metrics.DataPoints) / minReliableDataPoints)
	if in.Metrics.DataPoints < minReliableDataPoints {
		*reasons = append(*reasons, reason{0.25, fmt.Sprintf("only %d historical jobs, below the %d needed for reliable history",
			in.Metrics.DataPoints, minReliableDataPoints)})
	}
	return score
}

func (s *Scorer) featureCompleteness(in Input, reasons *[]reason) float64 {
	present := 0
	total := 4
	if len(in.Vendor.Certifications) > 0 {
		present++
	}
	if len(in.Vendor.ServiceAreas) > 0 {
		present++
	}
	if len(in.Vendor.AvailabilityWindows) > 0 {
		present++
	}
	if in.Metrics != nil {
		present++
	}
	score := float64(present) / float64(total)
	if score < 0.5 {
		*reasons = append(*reasons, reason{0.2, fmt.Sprintf("vendor profile sparse: %d of %d feature groups populated", present, total)})
	}
	return score
}

// consistency penalizes divergence between what the rules and the model
// say about the same vendor.
func (s *Scorer) consistency(in Input, reasons *[]reason) float64 {
	if in.MLScore == nil {
		return 0.5 // nothing to compare against
	}
	gap := math.Abs(in.RuleScore - *in.MLScore)
	switch {
	case gap <= consistencyGap:
		return 1.0
	case gap <= consistencyEscalateGap:
		*reasons = append(*reasons, reason{0.2, fmt.Sprintf("rule and ML scores diverge by %.2f", gap)})
		return models.Clamp01(1.0 - (gap-consistencyGap)*2)
	default:
		*reasons = append(*reasons, reason{0.45, fmt.Sprintf("rule and ML scores strongly disagree (gap %.2f)", gap)})
		return 0.1
	}
}
