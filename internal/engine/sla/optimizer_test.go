// internal/engine/sla/optimizer_test.go
package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"vendor-ranking-workers/internal/models"
)

var slaNow = time.Date(2026, time.March, 10, 14, 0, 0, 0, time.UTC)

func TestEffectiveUrgency(t *testing.T) {
	cases := []struct {
		name      string
		declared  models.UrgencyLevel
		remaining time.Duration
		want      models.UrgencyLevel
	}{
		{"low with ample time stays low", models.UrgencyLow, 20 * time.Hour, models.UrgencyLow},
		{"low inside 8h escalates to medium", models.UrgencyLow, 6 * time.Hour, models.UrgencyMedium},
		{"low inside 4h escalates to high", models.UrgencyLow, 3 * time.Hour, models.UrgencyHigh},
		{"low inside 2h escalates to critical", models.UrgencyLow, 90 * time.Minute, models.UrgencyCritical},
		{"exactly 2h is critical", models.UrgencyLow, 2 * time.Hour, models.UrgencyCritical},
		{"exactly 4h is high", models.UrgencyLow, 4 * time.Hour, models.UrgencyHigh},
		{"exactly 8h is medium", models.UrgencyLow, 8 * time.Hour, models.UrgencyMedium},
		{"critical never downgrades", models.UrgencyCritical, 48 * time.Hour, models.UrgencyCritical},
		{"high above a lower floor is kept", models.UrgencyHigh, 6 * time.Hour, models.UrgencyHigh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := EffectiveUrgency(tc.declared, slaNow.Add(tc.remaining), slaNow)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCapacityFactor(t *testing.T) {
	cases := []struct {
		utilization float64
		want        float64
	}{
		{0.0, 1.0},
		{0.69, 1.0},
		{0.7, 1.0},
		{0.85, 0.75},
		{1.0, 0.5},
		{1.4, 0.5},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, capacityFactor(tc.utilization), 0.001,
			"utilization %.2f", tc.utilization)
	}
}

func TestOptimize_MediumUrgencyVector(t *testing.T) {
	job := &models.JobRequest{
		ID:          "job-1",
		Urgency:     models.UrgencyMedium,
		SLADeadline: slaNow.Add(20 * time.Hour),
	}
	vendor := &models.VendorProfile{
		ID:              "vendor-1",
		Status:          models.VendorActive,
		MaxCapacity:     10,
		CurrentCapacity: 5,
	}
	metrics := &models.VendorMetrics{
		CompletionRate:   0.9,
		ReworkRate:       0.1,
		AvgResponseHours: 2,
		AvgSatisfaction:  4.0,
		DataPoints:       15,
	}
	hybrid := &models.HybridScoreResult{
		OverallScore: 0.8,
		TieBreak:     models.TieBreak{AvailabilityScore: 0.7, ProximityScore: 0.9},
	}

	result := Optimize(job, vendor, metrics, hybrid, slaNow)

	assert.Equal(t, models.UrgencyMedium, result.EffectiveUrgency)
	assert.InDelta(t, 0.795, result.ResponseTimeScore, 0.001)
	assert.InDelta(t, 0.87, result.ReliabilityScore, 0.001)
	assert.InDelta(t, 0.84, result.QualityScore, 0.001)
	assert.InDelta(t, 1.0, result.CapacityFactor, 0.001)
	assert.InDelta(t, 0.8348, result.ComplianceProbability, 0.001)
	// 0.8*0.8 + 0.8348*0.2 with the medium blend weight.
	assert.InDelta(t, 0.8070, result.AdjustedScore, 0.001)
	assert.InDelta(t, 1.68, result.EstimatedResponse, 0.001)
	assert.True(t, result.MeetsSLA)
}

func TestOptimize_NilMetricsUsesDefaults(t *testing.T) {
	job := &models.JobRequest{
		ID:          "job-2",
		Urgency:     models.UrgencyLow,
		SLADeadline: slaNow.Add(1 * time.Hour), // escalates to critical
	}
	vendor := &models.VendorProfile{
		ID:          "vendor-2",
		Status:      models.VendorActive,
		MaxCapacity: 10,
	}
	hybrid := &models.HybridScoreResult{
		OverallScore: 0.6,
		TieBreak:     models.TieBreak{ProximityScore: 0.5},
	}

	result := Optimize(job, vendor, nil, hybrid, slaNow)

	assert.Equal(t, models.UrgencyCritical, result.EffectiveUrgency)
	// Default 4h average response cannot satisfy the 1h critical cap.
	assert.InDelta(t, 0.15, result.ResponseTimeScore, 0.001)
	assert.InDelta(t, 0.67, result.ReliabilityScore, 0.001)
	assert.InDelta(t, 0.78, result.QualityScore, 0.001)
	assert.InDelta(t, 0.432, result.ComplianceProbability, 0.001)
	// Critical blend weight pulls half the score from SLA compliance.
	assert.InDelta(t, 0.516, result.AdjustedScore, 0.001)
	assert.InDelta(t, 4.0, result.EstimatedResponse, 0.001)
	assert.False(t, result.MeetsSLA)
}

func TestOptimize_LowComplianceFailsSLADespiteFastResponse(t *testing.T) {
	job := &models.JobRequest{
		ID:          "job-3",
		Urgency:     models.UrgencyLow,
		SLADeadline: slaNow.Add(40 * time.Hour),
	}
	vendor := &models.VendorProfile{
		ID:              "vendor-3",
		Status:          models.VendorActive,
		MaxCapacity:     4,
		CurrentCapacity: 4,
	}
	metrics := &models.VendorMetrics{
		CompletionRate:   0.5,
		ReworkRate:       0.4,
		AvgResponseHours: 1,
		AvgSatisfaction:  2.0,
		DataPoints:       12,
	}
	hybrid := &models.HybridScoreResult{
		OverallScore: 0.55,
		TieBreak:     models.TieBreak{ProximityScore: 1.0},
	}

	result := Optimize(job, vendor, metrics, hybrid, slaNow)

	assert.InDelta(t, 0.5, result.CapacityFactor, 0.001)
	assert.Less(t, result.ComplianceProbability, 0.6)
	assert.LessOrEqual(t, result.EstimatedResponse, 8.0)
	assert.False(t, result.MeetsSLA, "compliance below 0.6 must fail SLA even when response is fast")
}

func TestEstimateResponseHours(t *testing.T) {
	// Far vendor gets the full 1.2x shading, near vendor 0.8x.
	assert.InDelta(t, 4.8, estimateResponseHours(4, 0), 0.001)
	assert.InDelta(t, 3.2, estimateResponseHours(4, 1), 0.001)
	// Floor keeps estimates from dropping below 15 minutes.
	assert.InDelta(t, 0.25, estimateResponseHours(0.1, 1), 0.001)
}
