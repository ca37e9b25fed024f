// internal/engine/mlclient/client.go
package mlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"vendor-ranking-workers/internal/common/httpclient"
	"vendor-ranking-workers/internal/common/logger"
	"vendor-ranking-workers/internal/common/metrics"
	"vendor-ranking-workers/internal/models"
)

var (
	// ErrCircuitOpen is returned without any network call while the
	// breaker denies requests. Callers treat it as degraded mode.
	ErrCircuitOpen = errors.New("ml circuit breaker is open")

	// ErrPredictionUnavailable covers malformed or missing predictions.
	ErrPredictionUnavailable = errors.New("ml prediction unavailable")
)

// Predictor is the contract the ranker consumes. A nil Predictor means
// the deployment runs rule-only.
type Predictor interface {
	Predict(ctx context.Context, job *models.JobRequest, vendor *models.VendorProfile, vendorMetrics *models.VendorMetrics) (*models.MLPrediction, error)
	ModelVersion() string
}

// Config tunes the ML HTTP client.
type Config struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

// predictRequest mirrors the prediction service wire format: a batch
// envelope carrying flattened job/vendor feature rows.
type predictRequest struct {
	Data []featureRow `json:"data"`
}

type featureRow struct {
	VendorID                  string  `json:"vendor_id"`
	JobType                   string  `json:"job_type"`
	UrgencyLevel              string  `json:"urgency_level"`
	CustomerTier              string  `json:"customer_tier"`
	RequiredCertCount         int     `json:"required_cert_count"`
	HoursUntilSLA             float64 `json:"hours_until_sla"`
	VendorCapacityUtilization float64 `json:"vendor_capacity_utilization"`
	VendorCertCount           int     `json:"vendor_cert_count"`
	VendorServiceAreaCount    int     `json:"vendor_service_area_count"`
	HistoricalCompletionRate  float64 `json:"historical_completion_rate"`
	HistoricalReworkRate      float64 `json:"historical_rework_rate"`
	HistoricalAvgResponseTime float64 `json:"historical_avg_response_time"`
	HistoricalAvgSatisfaction float64 `json:"historical_avg_satisfaction"`
	CertificationMatchRatio   float64 `json:"certification_match_ratio"`
	IsInServiceArea           int     `json:"is_in_service_area"`
}

type predictResponse struct {
	Predictions []struct {
		VendorID              string  `json:"vendor_id"`
		CompletionProbability float64 `json:"completion_probability"`
		ReworkProbability     float64 `json:"rework_probability"`
		PredictedSatisfaction float64 `json:"predicted_satisfaction"`
		Confidence            float64 `json:"confidence"`
		EstimatedTimeHours    float64 `json:"estimated_time_hours"`
	} `json:"predictions"`
	ModelVersion string `json:"model_version"`
}

// Client calls the external prediction service behind a circuit breaker.
// Every outcome feeds the breaker; denial, timeout, and transport errors
// all surface as errors the caller maps to degraded mode.
type Client struct {
	cfg     Config
	http    *httpclient.Client
	breaker *CircuitBreaker
	logger  logger.Logger

	// versionMu guards version; Predict runs from many goroutines.
	versionMu sync.RWMutex
	version   string
}

// New builds an ML client with its own breaker instance.
func New(cfg Config, log logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{
		cfg:     cfg,
		http:    httpclient.New(cfg.Timeout),
		breaker: NewCircuitBreaker(cfg.Breaker),
		logger:  log.WithFields(map[string]interface{}{"component": "ml-client"}),
	}
}

// Breaker exposes the underlying breaker for operational inspection.
func (c *Client) Breaker() *CircuitBreaker {
	return c.breaker
}

// ModelVersion returns the version string reported by the last
// successful prediction, empty before any call succeeds.
func (c *Client) ModelVersion() string {
	c.versionMu.RLock()
	defer c.versionMu.RUnlock()
	return c.version
}

// Predict scores one vendor/job pair. When the breaker is open it fails
// fast with ErrCircuitOpen and no network activity.
func (c *Client) Predict(ctx context.Context, job *models.JobRequest, vendor *models.VendorProfile, vendorMetrics *models.VendorMetrics) (*models.MLPrediction, error) {
	if !c.breaker.AllowRequest() {
		metrics.MLPredictions.WithLabelValues("circuit_open").Inc()
		return nil, ErrCircuitOpen
	}

	prediction, err := c.predict(ctx, job, vendor, vendorMetrics)
	if err != nil {
		c.breaker.RecordFailure()
		metrics.MLPredictions.WithLabelValues("failure").Inc()
		c.logger.WithError(err).Warn("ml prediction failed", map[string]interface{}{
			"jobId":    job.ID,
			"vendorId": vendor.ID,
			"breaker":  c.breaker.GetState().String(),
		})
		return nil, err
	}

	c.breaker.RecordSuccess()
	metrics.MLPredictions.WithLabelValues("success").Inc()
	return prediction, nil
}

func (c *Client) predict(ctx context.Context, job *models.JobRequest, vendor *models.VendorProfile, vendorMetrics *models.VendorMetrics) (*models.MLPrediction, error) {
	if vendorMetrics == nil {
		vendorMetrics = models.DefaultVendorMetrics(vendor.ID)
	}

	row := featureRow{
		VendorID:                  vendor.ID,
		JobType:                   job.JobType,
		UrgencyLevel:              job.Urgency.String(),
		CustomerTier:              string(job.CustomerTier),
		RequiredCertCount:         len(job.RequiredCertifications),
		HoursUntilSLA:             time.Until(job.SLADeadline).Hours(),
		VendorCapacityUtilization: vendor.CapacityUtilization(),
		VendorCertCount:           len(vendor.Certifications),
		VendorServiceAreaCount:    len(vendor.ServiceAreas),
		HistoricalCompletionRate:  vendorMetrics.CompletionRate,
		HistoricalReworkRate:      vendorMetrics.ReworkRate,
		HistoricalAvgResponseTime: vendorMetrics.AvgResponseHours,
		HistoricalAvgSatisfaction: vendorMetrics.AvgSatisfaction,
		CertificationMatchRatio:   certificationMatchRatio(job, vendor),
		IsInServiceArea:           inServiceArea(job, vendor),
	}

	body, err := json.Marshal(predictRequest{Data: []featureRow{row}})
	if err != nil {
		return nil, fmt.Errorf("marshal prediction request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.cfg.BaseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build prediction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.DoWithContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("prediction call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("prediction service returned status %d", resp.StatusCode)
	}

	var parsed predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode prediction response: %w", err)
	}
	if len(parsed.Predictions) == 0 {
		return nil, ErrPredictionUnavailable
	}

	if parsed.ModelVersion != "" {
		c.versionMu.Lock()
		c.version = parsed.ModelVersion
		c.versionMu.Unlock()
	}

	p := parsed.Predictions[0]
	return &models.MLPrediction{
		VendorID:              p.VendorID,
		CompletionProbability: models.Clamp01(p.CompletionProbability),
		ReworkRisk:            models.Clamp01(p.ReworkProbability),
		PredictedSatisfaction: p.PredictedSatisfaction,
		Confidence:            models.Clamp01(p.Confidence),
		EstimatedTimeHours:    p.EstimatedTimeHours,
	}, nil
}

// Healthy probes the prediction service health endpoint.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequest(http.MethodGet, c.cfg.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.DoWithContext(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("prediction service health returned status %d", resp.StatusCode)
	}
	return nil
}

func certificationMatchRatio(job *models.JobRequest, vendor *models.VendorProfile) float64 {
	if len(job.RequiredCertifications) == 0 {
		return 1.0
	}
	matched := 0
	now := time.Now()
	for _, req := range job.RequiredCertifications {
		for _, c := range vendor.Certifications {
			if c.IsValid(now) && containsFold(c.Name, req) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(job.RequiredCertifications))
}

func inServiceArea(job *models.JobRequest, vendor *models.VendorProfile) int {
	for _, a := range vendor.ServiceAreas {
		if a.CoversPostalCode(job.Location.PostalCode) {
			return 1
		}
	}
	return 0
}

func containsFold(haystack, needle string) bool {
	return len(needle) > 0 && len(haystack) >= len(needle) &&
		bytes.Contains(bytes.ToLower([]byte(haystack)), bytes.ToLower([]byte(needle)))
}
