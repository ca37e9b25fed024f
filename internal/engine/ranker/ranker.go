// internal/engine/ranker/ranker.go
package ranker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"vendor-ranking-workers/internal/common/logger"
	"vendor-ranking-workers/internal/common/metrics"
	"vendor-ranking-workers/internal/engine/confidence"
	"vendor-ranking-workers/internal/engine/hybrid"
	"vendor-ranking-workers/internal/engine/mlclient"
	"vendor-ranking-workers/internal/engine/rules"
	"vendor-ranking-workers/internal/engine/sla"
	"vendor-ranking-workers/internal/models"
)

const (
	// MaxVendors caps each recommendation list.
	MaxVendors = 5
	// MinVendors is advisory: fewer eligible vendors produces a warning,
	// never an error.
	MinVendors = 3

	// Overall scores closer than this are considered tied and fall
	// through to the tie-break tuple.
	scoreEpsilon = 0.001

	// Completion rate at which a vendor's history counts as recent
	// success for the context bonus.
	recentSuccessRate = 0.85
)

// Config tunes one Ranker instance.
type Config struct {
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	MLTimeout      time.Duration `mapstructure:"ml_timeout"`
}

// DefaultConfig returns production ranker settings.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 8,
		MLTimeout:      3 * time.Second,
	}
}

// Ranker orchestrates the full scoring pipeline across a vendor set. All
// dependencies are injected; a nil predictor makes every run rule-only
// by design with no breaker interaction.
type Ranker struct {
	cfg        Config
	ruleEngine *rules.Engine
	aggregator *hybrid.Aggregator
	scorer     *confidence.Scorer
	predictor  mlclient.Predictor
	logger     logger.Logger
	clock      func() time.Time
}

// New wires a Ranker. Weight validation already happened in the
// component constructors, so this never fails on configuration.
func New(cfg Config, ruleEngine *rules.Engine, aggregator *hybrid.Aggregator, scorer *confidence.Scorer, predictor mlclient.Predictor, log logger.Logger) *Ranker {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultConfig().MaxConcurrency
	}
	if cfg.MLTimeout <= 0 {
		cfg.MLTimeout = DefaultConfig().MLTimeout
	}
	return &Ranker{
		cfg:        cfg,
		ruleEngine: ruleEngine,
		aggregator: aggregator,
		scorer:     scorer,
		predictor:  predictor,
		logger:     log.WithFields(map[string]interface{}{"component": "vendor-ranker"}),
		clock:      time.Now,
	}
}

// WithClock replaces the ranker's time source. Test hook.
func (r *Ranker) WithClock(clock func() time.Time) *Ranker {
	r.clock = clock
	return r
}

// evaluation is one vendor's full pipeline outcome before sorting.
type evaluation struct {
	vendor     *models.VendorProfile
	hybrid     models.HybridScoreResult
	confidence models.ConfidenceScoreResult
	slaResult  sla.Result
}

// RankVendors scores every vendor concurrently, then sorts with the
// deterministic tie-break and slices the top recommendations. It always
// returns a result: dependency failures degrade, they never propagate.
func (r *Ranker) RankVendors(ctx context.Context, job *models.JobRequest, vendors []*models.VendorProfile, vendorMetrics map[string]*models.VendorMetrics) (*models.RankingResult, error) {
	start := r.clock()
	result := &models.RankingResult{
		RankingID:      uuid.NewString(),
		JobID:          job.ID,
		TotalEvaluated: len(vendors),
		ModelVersion:   "rule-only",
	}

	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job request: %w", err)
	}

	if len(vendors) == 0 {
		result.Degraded = true
		result.Warning = "no vendors supplied for ranking"
		return result, nil
	}

	now := start
	var (
		mu          sync.Mutex
		evaluations []evaluation
		exclusions  []models.VendorExclusion
		abstained   int
		degraded    bool
		cancelled   bool
	)

	sem := make(chan struct{}, r.cfg.MaxConcurrency)
	var wg sync.WaitGroup

	for _, vendor := range vendors {
		// Once the deadline fires, stop issuing work and return what was
		// already scored.
		select {
		case <-ctx.Done():
			cancelled = true
		default:
		}
		if cancelled {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(vendor *models.VendorProfile) {
			defer wg.Done()
			defer func() { <-sem }()

			ev, exclusion, wasEligible, wasDegraded := r.evaluateVendor(ctx, job, vendor, vendorMetrics[vendor.ID], now)
			metrics.VendorsEvaluated.Inc()

			mu.Lock()
			defer mu.Unlock()
			if wasDegraded {
				degraded = true
			}
			if exclusion != nil {
				// Abstained vendors passed the rules and stay eligible;
				// they are only withheld from the recommendation list.
				if wasEligible {
					abstained++
				}
				exclusions = append(exclusions, *exclusion)
				return
			}
			evaluations = append(evaluations, *ev)
		}(vendor)
	}
	wg.Wait()

	if cancelled {
		degraded = true
		result.Warning = "ranking deadline reached, returning partially scored vendor set"
	}

	sortEvaluations(evaluations)

	result.EligibleCount = len(evaluations) + abstained
	result.Degraded = degraded
	result.Exclusions = sortedExclusions(exclusions)
	if r.predictor != nil {
		if v := r.predictor.ModelVersion(); v != "" {
			result.ModelVersion = v
		}
	}

	limit := len(evaluations)
	if limit > MaxVendors {
		limit = MaxVendors
	}
	for i := 0; i < limit; i++ {
		result.Recommendations = append(result.Recommendations, r.recommend(i+1, &evaluations[i]))
	}

	if result.Warning == "" {
		switch {
		case result.EligibleCount == 0:
			result.Warning = "no eligible vendors for this job"
		case result.EligibleCount < MinVendors:
			result.Warning = fmt.Sprintf("only %d eligible vendor(s), minimum expected %d", result.EligibleCount, MinVendors)
		}
	}

	if degraded {
		metrics.DegradedRankings.Inc()
	}
	metrics.RankingsCompleted.WithLabelValues(outcomeLabel(result)).Inc()
	metrics.RankingDuration.Observe(r.clock().Sub(start).Seconds())

	r.logger.Info("ranking completed", map[string]interface{}{
		"rankingId":  result.RankingID,
		"jobId":      job.ID,
		"evaluated":  result.TotalEvaluated,
		"eligible":   result.EligibleCount,
		"returned":   len(result.Recommendations),
		"degraded":   result.Degraded,
		"durationMs": r.clock().Sub(start).Milliseconds(),
	})

	return result, nil
}

// RankRuleOnly is the synchronous rule-only variant for deployments
// without a prediction service. No breaker is consulted.
func (r *Ranker) RankRuleOnly(job *models.JobRequest, vendors []*models.VendorProfile, vendorMetrics map[string]*models.VendorMetrics) (*models.RankingResult, error) {
	ruleOnly := *r
	ruleOnly.predictor = nil
	return ruleOnly.RankVendors(context.Background(), job, vendors, vendorMetrics)
}

// evaluateVendor runs one vendor through the whole pipeline. It returns
// either an evaluation or an exclusion record, whether the vendor was
// rule-eligible, and whether its scoring was degraded.
func (r *Ranker) evaluateVendor(ctx context.Context, job *models.JobRequest, vendor *models.VendorProfile, vm *models.VendorMetrics, now time.Time) (*evaluation, *models.VendorExclusion, bool, bool) {
	if err := vendor.Validate(); err != nil {
		return nil, &models.VendorExclusion{VendorID: vendor.ID, Reason: fmt.Sprintf("malformed vendor record: %v", err)}, false, false
	}
	if vendor.Status != models.VendorActive {
		return nil, &models.VendorExclusion{VendorID: vendor.ID, Reason: fmt.Sprintf("vendor status is %s", vendor.Status)}, false, false
	}
	if job.IsBlocked(vendor.ID) {
		return nil, &models.VendorExclusion{VendorID: vendor.ID, Reason: "vendor is blocked for this job"}, false, false
	}

	ruleResult := r.ruleEngine.Evaluate(vendor, job, vm, now)
	if !ruleResult.Passed {
		return nil, &models.VendorExclusion{
			VendorID: vendor.ID,
			Reason:   strings.Join(ruleResult.FailureReasons, "; "),
		}, false, false
	}

	prediction, vendorDegraded := r.predict(ctx, job, vendor, vm)

	contextFactors := models.ContextFactors{
		CustomerPreferred: job.IsPreferred(vendor.ID),
		RecentSuccess:     vm != nil && vm.DataPoints > 0 && vm.CompletionRate >= recentSuccessRate,
		SLAUrgency:        slaUrgencyFraction(job, now),
	}

	hybridResult := r.aggregator.Score(hybrid.Input{
		RuleResult: &ruleResult,
		Prediction: prediction,
		Metrics:    vm,
		Context:    contextFactors,
		Degraded:   vendorDegraded,
	})

	confidenceResult := r.scorer.Score(confidence.Input{
		Vendor:     vendor,
		Metrics:    vm,
		Prediction: prediction,
		RuleScore:  hybridResult.RuleScore,
		MLScore:    hybridResult.MLScore,
	})
	if confidenceResult.Abstain {
		metrics.Abstentions.Inc()
		return nil, &models.VendorExclusion{
			VendorID: vendor.ID,
			Reason: fmt.Sprintf("abstained at confidence %.2f, manual selection required: %s",
				confidenceResult.OverallConfidence,
				strings.Join(confidenceResult.LowConfidenceReasons, "; ")),
		}, true, vendorDegraded
	}

	slaResult := sla.Optimize(job, vendor, vm, &hybridResult, now)

	return &evaluation{
		vendor:     vendor,
		hybrid:     hybridResult,
		confidence: confidenceResult,
		slaResult:  slaResult,
	}, nil, true, vendorDegraded
}

// predict calls the ML service under its own timeout. Circuit denial,
// timeout, and transport errors all collapse to (nil, degraded): the
// prediction is treated as absent, never zero-filled.
func (r *Ranker) predict(ctx context.Context, job *models.JobRequest, vendor *models.VendorProfile, vm *models.VendorMetrics) (*models.MLPrediction, bool) {
	if r.predictor == nil {
		return nil, true
	}

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.MLTimeout)
	defer cancel()

	prediction, err := r.predictor.Predict(callCtx, job, vendor, vm)
	if err != nil {
		return nil, true
	}
	return prediction, false
}

// slaUrgencyFraction maps effective urgency onto [0, 1] for the context
// bonus.
func slaUrgencyFraction(job *models.JobRequest, now time.Time) float64 {
	effective := sla.EffectiveUrgency(job.Urgency, job.SLADeadline, now)
	return float64(effective) / float64(models.UrgencyCritical)
}

// sortEvaluations orders by SLA-adjusted score descending. Scores within
// epsilon fall through the tie-break tuple: availability, proximity,
// then vendor id lexical order. The comparator is total, so the final
// order is independent of input ordering.
func sortEvaluations(evals []evaluation) {
	sort.SliceStable(evals, func(i, j int) bool {
		a, b := &evals[i], &evals[j]
		if diff := a.slaResult.AdjustedScore - b.slaResult.AdjustedScore; diff > scoreEpsilon || diff < -scoreEpsilon {
			return diff > 0
		}
		if a.hybrid.TieBreak.AvailabilityScore != b.hybrid.TieBreak.AvailabilityScore {
			return a.hybrid.TieBreak.AvailabilityScore > b.hybrid.TieBreak.AvailabilityScore
		}
		if a.hybrid.TieBreak.ProximityScore != b.hybrid.TieBreak.ProximityScore {
			return a.hybrid.TieBreak.ProximityScore > b.hybrid.TieBreak.ProximityScore
		}
		return a.hybrid.TieBreak.VendorID < b.hybrid.TieBreak.VendorID
	})
}

// sortedExclusions keeps exclusion reporting deterministic regardless of
// goroutine completion order.
func sortedExclusions(exclusions []models.VendorExclusion) []models.VendorExclusion {
	sort.Slice(exclusions, func(i, j int) bool {
		return exclusions[i].VendorID < exclusions[j].VendorID
	})
	return exclusions
}

func (r *Ranker) recommend(rank int, ev *evaluation) models.VendorRecommendation {
	return models.VendorRecommendation{
		Rank:              rank,
		VendorID:          ev.vendor.ID,
		VendorName:        ev.vendor.Name,
		OverallScore:      ev.slaResult.AdjustedScore,
		Confidence:        ev.confidence.OverallConfidence,
		Breakdown:         ev.hybrid.Breakdown,
		ConfidenceDetail:  ev.confidence,
		Rationale:         buildRationale(ev),
		RiskFactors:       buildRiskFactors(ev),
		EstimatedResponse: models.BucketResponseHours(ev.slaResult.EstimatedResponse),
		SLACompliance:     ev.slaResult.ComplianceProbability,
		MeetsSLA:          ev.slaResult.MeetsSLA,
	}
}

// buildRationale produces the human-readable explanation attached to a
// recommendation: the strongest factors first, then the scoring mode.
func buildRationale(ev *evaluation) string {
	factors := make([]models.ScoreFactor, len(ev.hybrid.Breakdown.Factors))
	copy(factors, ev.hybrid.Breakdown.Factors)
	sort.SliceStable(factors, func(i, j int) bool {
		return factors[i].Contribution > factors[j].Contribution
	})

	parts := make([]string, 0, 3)
	for i, f := range factors {
		if i >= 2 {
			break
		}
		parts = append(parts, f.Explanation)
	}

	mode := "hybrid rule and ML scoring"
	if ev.hybrid.Degraded {
		mode = "rule-based scoring (ML unavailable)"
	}
	return fmt.Sprintf("%s; ranked via %s with overall score %.2f",
		strings.Join(parts, "; "), mode, ev.slaResult.AdjustedScore)
}

func buildRiskFactors(ev *evaluation) []string {
	var risks []string
	if ev.hybrid.Degraded {
		risks = append(risks, "scored without ML prediction")
	}
	if ev.confidence.RequiresHumanReview {
		risks = append(risks, fmt.Sprintf("confidence %.2f requires human review", ev.confidence.OverallConfidence))
	}
	if !ev.slaResult.MeetsSLA {
		risks = append(risks, "may not meet SLA response or completion targets")
	}
	if ev.vendor.CapacityUtilization() > 0.8 {
		risks = append(risks, fmt.Sprintf("high capacity utilization (%.0f%%)", ev.vendor.CapacityUtilization()*100))
	}
	for _, f := range ev.hybrid.Breakdown.Factors {
		if f.Name == "mlReworkRisk" && f.Value < 0.7 {
			risks = append(risks, fmt.Sprintf("model predicts elevated rework risk (%.0f%%)", (1-f.Value)*100))
		}
	}
	return risks
}

func outcomeLabel(result *models.RankingResult) string {
	switch {
	case result.Degraded:
		return "degraded"
	case len(result.Recommendations) == 0:
		return "empty"
	default:
		return "ok"
	}
}
