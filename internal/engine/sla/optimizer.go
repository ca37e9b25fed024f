// internal/engine/sla/optimizer.go
package sla

import (
	"time"

	"vendor-ranking-workers/internal/models"
)

// UrgencyConfig caps and weights one urgency tier.
type UrgencyConfig struct {
	MaxResponseHours   float64
	MaxCompletionHours float64
	ResponseWeight     float64
	ReliabilityWeight  float64
	QualityWeight      float64
}

var urgencyConfigs = map[models.UrgencyLevel]UrgencyConfig{
	models.UrgencyCritical: {
		MaxResponseHours:   1,
		MaxCompletionHours: 6,
		ResponseWeight:     0.5,
		ReliabilityWeight:  0.3,
		QualityWeight:      0.2,
	},
	models.UrgencyHigh: {
		MaxResponseHours:   2,
		MaxCompletionHours: 12,
		ResponseWeight:     0.4,
		ReliabilityWeight:  0.35,
		QualityWeight:      0.25,
	},
	models.UrgencyMedium: {
		MaxResponseHours:   4,
		MaxCompletionHours: 24,
		ResponseWeight:     0.35,
		ReliabilityWeight:  0.35,
		QualityWeight:      0.3,
	},
	models.UrgencyLow: {
		MaxResponseHours:   8,
		MaxCompletionHours: 48,
		ResponseWeight:     0.3,
		ReliabilityWeight:  0.35,
		QualityWeight:      0.35,
	},
}

// Weight of the compliance probability when blending into the hybrid
// score, by effective urgency.
var blendWeights = map[models.UrgencyLevel]float64{
	models.UrgencyCritical: 0.5,
	models.UrgencyHigh:     0.35,
	models.UrgencyMedium:   0.2,
	models.UrgencyLow:      0.1,
}

// Result is the SLA fitness assessment for one vendor.
type Result struct {
	EffectiveUrgency      models.UrgencyLevel `json:"effectiveUrgency"`
	ResponseTimeScore     float64             `json:"responseTimeScore"`
	ReliabilityScore      float64             `json:"reliabilityScore"`
	QualityScore          float64             `json:"qualityScore"`
	CapacityFactor        float64             `json:"capacityFactor"`
	ComplianceProbability float64             `json:"complianceProbability"`
	AdjustedScore         float64             `json:"adjustedScore"`
	EstimatedResponse     float64             `json:"estimatedResponseHours"`
	MeetsSLA              bool                `json:"meetsSla"`
}

// EffectiveUrgency escalates declared urgency as the SLA deadline
// approaches. Escalation only ever moves urgency upward.
func EffectiveUrgency(declared models.UrgencyLevel, deadline time.Time, now time.Time) models.UrgencyLevel {
	remaining := deadline.Sub(now)
	floor := declared
	switch {
	case remaining <= 2*time.Hour:
		floor = models.UrgencyCritical
	case remaining <= 4*time.Hour:
		floor = models.UrgencyHigh
	case remaining <= 8*time.Hour:
		floor = models.UrgencyMedium
	}
	if floor > declared {
		return floor
	}
	return declared
}

// Optimize re-weights a hybrid score by SLA fitness: how fast the vendor
// responds, how reliably it completes, and how much headroom it has left.
func Optimize(job *models.JobRequest, vendor *models.VendorProfile, metrics *models.VendorMetrics, hybrid *models.HybridScoreResult, now time.Time) Result {
	if metrics == nil {
		metrics = models.DefaultVendorMetrics(vendor.ID)
	}

	urgency := EffectiveUrgency(job.Urgency, job.SLADeadline, now)
	cfg := urgencyConfigs[urgency]

	// Response fitness blends the vendor's measured response time with
	// proximity: a nearby vendor tends to arrive sooner than its
	// historical average suggests.
	responseRatio := models.Clamp01(1 - metrics.AvgResponseHours/cfg.MaxResponseHours/2)
	proximity := hybrid.TieBreak.ProximityScore
	responseTimeScore := models.Clamp01(0.7*responseRatio + 0.3*proximity)

	reliabilityScore := models.Clamp01(metrics.CompletionRate - 0.3*metrics.ReworkRate)

	qualityScore := models.Clamp01(0.6*(metrics.AvgSatisfaction/5.0) + 0.4*(1-metrics.ReworkRate))

	capacityFactor := capacityFactor(vendor.CapacityUtilization())

	compliance := models.Clamp01((responseTimeScore*cfg.ResponseWeight +
		reliabilityScore*cfg.ReliabilityWeight +
		qualityScore*cfg.QualityWeight) * capacityFactor)

	blend := blendWeights[urgency]
	adjusted := models.Clamp01(hybrid.OverallScore*(1-blend) + compliance*blend)

	estimatedResponse := estimateResponseHours(metrics.AvgResponseHours, proximity)
	estimatedCompletion := estimatedResponse + metrics.AvgResponseHours*2

	return Result{
		EffectiveUrgency:      urgency,
		ResponseTimeScore:     responseTimeScore,
		ReliabilityScore:      reliabilityScore,
		QualityScore:          qualityScore,
		CapacityFactor:        capacityFactor,
		ComplianceProbability: compliance,
		AdjustedScore:         adjusted,
		EstimatedResponse:     estimatedResponse,
		MeetsSLA: estimatedResponse <= cfg.MaxResponseHours &&
			estimatedCompletion <= cfg.MaxCompletionHours &&
			compliance >= 0.6,
	}
}

// capacityFactor is 1.0 below 70% utilization and decays linearly to
// 0.5 at full utilization.
func capacityFactor(utilization float64) float64 {
	if utilization < 0.7 {
		return 1.0
	}
	over := models.Clamp01((utilization - 0.7) / 0.3)
	return 1.0 - 0.5*over
}

// estimateResponseHours shades the historical average by proximity: a
// vendor right next to the job site responds faster than its fleet-wide
// average.
func estimateResponseHours(avgResponseHours, proximity float64) float64 {
	factor := 1.2 - 0.4*models.Clamp01(proximity)
	estimate := avgResponseHours * factor
	if estimate < 0.25 {
		estimate = 0.25
	}
	return estimate
}
