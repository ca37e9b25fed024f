// internal/models/scoring.go
package models

import "math"

// WeightTolerance bounds how far a weight set may drift from 1.0 before
// the configuration is rejected.
const WeightTolerance = 0.001

// ScoreFactor is one named contribution to a vendor's score.
type ScoreFactor struct {
	Name         string  `json:"name"`
	Value        float64 `json:"value"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
	Explanation  string  `json:"explanation"`
}

// NewScoreFactor builds a factor with contribution = value × weight.
func NewScoreFactor(name string, value, weight float64, explanation string) ScoreFactor {
	return ScoreFactor{
		Name:         name,
		Value:        value,
		Weight:       weight,
		Contribution: value * weight,
		Explanation:  explanation,
	}
}

// ScoreBreakdown carries the full factor list behind a hybrid score.
type ScoreBreakdown struct {
	RuleBasedScore float64       `json:"ruleBasedScore"`
	MLScore        *float64      `json:"mlScore,omitempty"`
	Factors        []ScoreFactor `json:"factors"`
}

// TieBreak orders vendors whose overall scores are equal within epsilon.
// Comparison priority: availability, then proximity, then vendor id.
type TieBreak struct {
	AvailabilityScore float64 `json:"availabilityScore"`
	ProximityScore    float64 `json:"proximityScore"`
	VendorID          string  `json:"vendorId"`
}

// HybridScoreResult is the fused rule/ML/context score for one vendor.
type HybridScoreResult struct {
	VendorID     string         `json:"vendorId"`
	OverallScore float64        `json:"overallScore"`
	Confidence   float64        `json:"confidence"`
	RuleScore    float64        `json:"ruleScore"`
	MLScore      *float64       `json:"mlScore,omitempty"`
	ContextBonus float64        `json:"contextBonus"`
	Breakdown    ScoreBreakdown `json:"breakdown"`
	Degraded     bool           `json:"degraded"`
	TieBreak     TieBreak       `json:"tieBreak"`
}

// ConfidenceLevel buckets an overall confidence into routing outcomes.
type ConfidenceLevel string

const (
	ConfidenceAbstain    ConfidenceLevel = "abstain"
	ConfidenceReview     ConfidenceLevel = "human_review"
	ConfidenceAutomatic  ConfidenceLevel = "automatic"
	ConfidenceAcceptable ConfidenceLevel = "acceptable"
)

// ConfidenceScoreResult carries the confidence decision and every signal
// that contributed to it. Low-confidence outcomes always enumerate their
// reasons, never a bare flag.
type ConfidenceScoreResult struct {
	OverallConfidence     float64         `json:"overallConfidence"`
	DataQuality           float64         `json:"dataQuality"`
	ModelCertainty        float64         `json:"modelCertainty"`
	HistoricalData        float64         `json:"historicalData"`
	FeatureCompleteness   float64         `json:"featureCompleteness"`
	PredictionConsistency float64         `json:"predictionConsistency"`
	Level                 ConfidenceLevel `json:"level"`
	Abstain               bool            `json:"abstain"`
	RequiresHumanReview   bool            `json:"requiresHumanReview"`
	LowConfidenceReasons  []string        `json:"lowConfidenceReasons,omitempty"`
}

// MLPrediction is the prediction-service output for one vendor/job pair.
type MLPrediction struct {
	VendorID              string  `json:"vendorId"`
	CompletionProbability float64 `json:"completionProbability"`
	ReworkRisk            float64 `json:"reworkRisk"`
	PredictedSatisfaction float64 `json:"predictedSatisfaction"`
	Confidence            float64 `json:"confidence"`
	EstimatedTimeHours    float64 `json:"estimatedTimeHours"`
}

// ContextFactors are the job-context signals blended into the hybrid score.
type ContextFactors struct {
	CustomerPreferred bool    `json:"customerPreferred"`
	RecentSuccess     bool    `json:"recentSuccess"`
	SLAUrgency        float64 `json:"slaUrgency"`
}

// ResponseTimeBucket is the human-facing estimate attached to a
// recommendation.
type ResponseTimeBucket string

const (
	ResponseSubHour   ResponseTimeBucket = "sub-1h"
	ResponseOneTwo    ResponseTimeBucket = "1-2h"
	ResponseTwoFour   ResponseTimeBucket = "2-4h"
	ResponseFourEight ResponseTimeBucket = "4-8h"
	ResponseSameDay   ResponseTimeBucket = "same-day"
)

// BucketResponseHours maps an estimated response time to its bucket.
func BucketResponseHours(hours float64) ResponseTimeBucket {
	switch {
	case hours < 1:
		return ResponseSubHour
	case hours < 2:
		return ResponseOneTwo
	case hours < 4:
		return ResponseTwoFour
	case hours < 8:
		return ResponseFourEight
	default:
		return ResponseSameDay
	}
}

// VendorRecommendation is one ranked entry in a RankingResult.
type VendorRecommendation struct {
	Rank              int                   `json:"rank"`
	VendorID          string                `json:"vendorId"`
	VendorName        string                `json:"vendorName"`
	OverallScore      float64               `json:"overallScore"`
	Confidence        float64               `json:"confidence"`
	Breakdown         ScoreBreakdown        `json:"breakdown"`
	ConfidenceDetail  ConfidenceScoreResult `json:"confidenceDetail"`
	Rationale         string                `json:"rationale"`
	RiskFactors       []string              `json:"riskFactors,omitempty"`
	EstimatedResponse ResponseTimeBucket    `json:"estimatedResponse"`
	SLACompliance     float64               `json:"slaCompliance"`
	MeetsSLA          bool                  `json:"meetsSla"`
}

// VendorExclusion records why a vendor produced no recommendation.
type VendorExclusion struct {
	VendorID string `json:"vendorId"`
	Reason   string `json:"reason"`
}

// RankingResult is the complete outcome of one ranking call. It is always
// returned, possibly empty and possibly degraded, rather than failing the
// call on partial errors.
type RankingResult struct {
	RankingID       string                 `json:"rankingId"`
	JobID           string                 `json:"jobId"`
	Recommendations []VendorRecommendation `json:"recommendations"`
	Exclusions      []VendorExclusion      `json:"exclusions,omitempty"`
	TotalEvaluated  int                    `json:"totalEvaluated"`
	EligibleCount   int                    `json:"eligibleCount"`
	Warning         string                 `json:"warning,omitempty"`
	Degraded        bool                   `json:"degraded"`
	ModelVersion    string                 `json:"modelVersion"`
}

// Clamp01 bounds a score to [0, 1].
func Clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// WeightsSumValid reports whether a weight set sums to 1.0 within the
// configured tolerance.
func WeightsSumValid(weights ...float64) bool {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	return math.Abs(sum-1.0) <= WeightTolerance
}
