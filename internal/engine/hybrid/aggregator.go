// internal/engine/hybrid/aggregator.go
package hybrid

import (
	"fmt"

	"vendor-ranking-workers/internal/engine/rules"
	"vendor-ranking-workers/internal/models"
)

// Weights splits the overall score between rule, ML, and context
// components. The set must sum to 1.0 within tolerance.
type Weights struct {
	Rule    float64 `mapstructure:"rule"`
	ML      float64 `mapstructure:"ml"`
	Context float64 `mapstructure:"context"`
}

// DefaultWeights returns the production hybrid weight split.
func DefaultWeights() Weights {
	return Weights{Rule: 0.4, ML: 0.5, Context: 0.1}
}

// Inner weights of the ML component score.
const (
	mlCompletionWeight   = 0.4
	mlReworkWeight       = 0.3
	mlSatisfactionWeight = 0.3

	satisfactionScale = 5.0
)

// Context bonus contributions.
const (
	preferredBonus     = 0.3
	recentSuccessBonus = 0.2
	slaUrgencyWeight   = 0.5
)

// Aggregator fuses the rule score, an optional ML prediction, and the
// context bonus into one overall score with tie-break metadata.
type Aggregator struct {
	weights Weights
}

// New validates the hybrid weight set. A bad set is rejected at
// construction, never normalized.
func New(w Weights) (*Aggregator, error) {
	if !models.WeightsSumValid(w.Rule, w.ML, w.Context) {
		return nil, fmt.Errorf("hybrid weights must sum to 1.0 ± %.3f, got %.4f",
			models.WeightTolerance, w.Rule+w.ML+w.Context)
	}
	return &Aggregator{weights: w}, nil
}

// Input is everything one hybrid score is computed from.
type Input struct {
	RuleResult *rules.Result
	Prediction *models.MLPrediction // nil in degraded mode
	Metrics    *models.VendorMetrics
	Context    models.ContextFactors
	Degraded   bool
}

// Score fuses the inputs. When the prediction is absent, the ML weight
// is redistributed onto the rule score; the ML component is never
// silently scored as zero under full weight.
func (a *Aggregator) Score(in Input) models.HybridScoreResult {
	ruleScore := in.RuleResult.Score
	contextBonus := ContextBonus(in.Context)
	degraded := in.Degraded || in.Prediction == nil

	var overall float64
	var mlScore *float64
	if degraded {
		overall = ruleScore*(a.weights.Rule+a.weights.ML) + contextBonus*a.weights.Context
	} else {
		score := MLScore(in.Prediction)
		mlScore = &score
		overall = ruleScore*a.weights.Rule + score*a.weights.ML + contextBonus*a.weights.Context
	}

	result := models.HybridScoreResult{
		VendorID:     in.RuleResult.VendorID,
		OverallScore: models.Clamp01(overall),
		Confidence:   a.confidence(in, degraded),
		RuleScore:    ruleScore,
		MLScore:      mlScore,
		ContextBonus: contextBonus,
		Degraded:     degraded,
		TieBreak: models.TieBreak{
			AvailabilityScore: in.RuleResult.Factor("availability").Value,
			ProximityScore:    in.RuleResult.Factor("proximity").Value,
			VendorID:          in.RuleResult.VendorID,
		},
	}
	result.Breakdown = a.breakdown(in, result)
	return result
}

// MLScore collapses a prediction into a single 0–1 component score.
func MLScore(p *models.MLPrediction) float64 {
	satisfaction := models.Clamp01(p.PredictedSatisfaction / satisfactionScale)
	return models.Clamp01(
		mlCompletionWeight*p.CompletionProbability +
			mlReworkWeight*(1-p.ReworkRisk) +
			mlSatisfactionWeight*satisfaction)
}

// ContextBonus combines the job-context signals into a 0–1 bonus.
func ContextBonus(c models.ContextFactors) float64 {
	bonus := 0.0
	if c.CustomerPreferred {
		bonus += preferredBonus
	}
	if c.RecentSuccess {
		bonus += recentSuccessBonus
	}
	bonus += slaUrgencyWeight * models.Clamp01(c.SLAUrgency)
	return models.Clamp01(bonus)
}

// confidence derives the score-level confidence from ML certainty and
// the quality of the vendor's historical record.
func (a *Aggregator) confidence(in Input, degraded bool) float64 {
	base := 0.5
	switch {
	case degraded:
		base = 0.4
	case in.Prediction != nil:
		base = 0.3 + 0.5*in.Prediction.Confidence
	}

	if in.Metrics == nil {
		base -= 0.1
	} else {
		if in.Metrics.DataPoints >= 10 {
			base += 0.1
		}
		if in.Metrics.CompletionRate >= 0.9 {
			base += 0.05
		}
	}

	return models.Clamp01(base)
}

// breakdown concatenates the rule factors with ML-derived factors when
// a prediction is present.
func (a *Aggregator) breakdown(in Input, result models.HybridScoreResult) models.ScoreBreakdown {
	factors := make([]models.ScoreFactor, len(in.RuleResult.Factors))
	copy(factors, in.RuleResult.Factors)

	if in.Prediction != nil {
		p := in.Prediction
		factors = append(factors,
			models.NewScoreFactor("mlCompletionProbability", p.CompletionProbability, a.weights.ML*mlCompletionWeight,
				fmt.Sprintf("model predicts %.0f%% completion probability", p.CompletionProbability*100)),
			models.NewScoreFactor("mlReworkRisk", 1-p.ReworkRisk, a.weights.ML*mlReworkWeight,
				fmt.Sprintf("model predicts %.0f%% rework risk", p.ReworkRisk*100)),
			models.NewScoreFactor("mlPredictedSatisfaction", models.Clamp01(p.PredictedSatisfaction/satisfactionScale), a.weights.ML*mlSatisfactionWeight,
				fmt.Sprintf("model predicts %.1f/5 satisfaction", p.PredictedSatisfaction)),
		)
	}

	return models.ScoreBreakdown{
		RuleBasedScore: result.RuleScore,
		MLScore:        result.MLScore,
		Factors:        factors,
	}
}
