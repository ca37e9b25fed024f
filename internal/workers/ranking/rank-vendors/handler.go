// internal/workers/ranking/rank-vendors/handler.go
package rankvendors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "vendor-ranking-workers/internal/common/errors"
	"vendor-ranking-workers/internal/common/logger"
	"vendor-ranking-workers/internal/common/observability"
	"vendor-ranking-workers/internal/engine/ranker"
	"vendor-ranking-workers/internal/models"
	"vendor-ranking-workers/internal/notify"
	"vendor-ranking-workers/internal/store"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/xeipuuv/gojsonschema"
)

const (
	TaskType = "rank-vendors"
)

var (
	ErrVendorLoadFailed = errors.New("VENDOR_LOAD_FAILED")
)

type Handler struct {
	config   *Config
	ranker   *ranker.Ranker
	vendors  *store.VendorStore
	metrics  *store.MetricsProvider
	alerter  *notify.Alerter
	errorHdl *apperrors.ErrorHandler
	obs      *observability.Observability
	logger   logger.Logger
}

// NewHandler wires the ranking worker. The vendor store, metrics
// provider and alerter are optional; a nil store restricts the worker
// to inline vendor payloads.
func NewHandler(config *Config, rk *ranker.Ranker, vendors *store.VendorStore, metrics *store.MetricsProvider, alerter *notify.Alerter, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		ranker:   rk,
		vendors:  vendors,
		metrics:  metrics,
		alerter:  alerter,
		errorHdl: apperrors.NewErrorHandler(scoped),
		logger:   scoped,
	}
}

// WithObservability attaches OpenTelemetry instruments to the worker.
func (h *Handler) WithObservability(obs *observability.Observability) *Handler {
	h.obs = obs
	return h
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	if err := h.validateInput(job.Variables); err != nil {
		h.errorHdl.HandleJobError(context.Background(), client, job, apperrors.NewInvalidJobDataError(err.Error()))
		h.recordJob("rejected", start)
		return
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errorHdl.HandleJobError(context.Background(), client, job, apperrors.NewInvalidJobDataError(fmt.Sprintf("parse input: %v", err)))
		h.recordJob("rejected", start)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errorHdl.HandleJobError(context.Background(), client, job, h.classify(err))
		h.recordJob("failed", start)
		return
	}

	h.completeJob(client, job, output)
	h.recordJob("completed", start)
}

func (h *Handler) recordJob(status string, start time.Time) {
	if h.obs == nil {
		return
	}
	ctx := context.Background()
	h.obs.RecordJobProcessed(ctx, status)
	h.obs.RecordJobDuration(ctx, time.Since(start), status)
}

// classify maps execution errors onto the standard error taxonomy so
// the workflow engine retries what is transient and escalates what is
// not.
func (h *Handler) classify(err error) error {
	switch {
	case errors.Is(err, ErrVendorLoadFailed):
		return apperrors.NewVendorLoadFailedError(err)
	case strings.Contains(err.Error(), "invalid job request"):
		return apperrors.NewInvalidJobDataError(err.Error())
	default:
		return err
	}
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	vendors, err := h.resolveVendors(ctx, input)
	if err != nil {
		return nil, err
	}

	vendorMetrics := input.Metrics
	if vendorMetrics == nil && h.metrics != nil && len(vendors) > 0 {
		ids := make([]string, len(vendors))
		for i, v := range vendors {
			ids[i] = v.ID
		}
		vendorMetrics, err = h.metrics.GetMetrics(ctx, ids)
		if err != nil {
			// Missing history degrades to documented defaults downstream.
			h.logger.Warn("metrics load failed, ranking without history", map[string]interface{}{
				"jobId": input.Job.ID,
				"error": err.Error(),
			})
			vendorMetrics = nil
		}
	}

	rankStart := time.Now()
	result, err := h.ranker.RankVendors(ctx, &input.Job, vendors, vendorMetrics)
	if err != nil {
		return nil, err
	}
	if h.obs != nil {
		mode := "hybrid"
		if result.Degraded {
			mode = "degraded"
		}
		h.obs.RecordRanking(ctx, result.TotalEvaluated, time.Since(rankStart), mode)
	}

	if h.alerter != nil && h.config.AlertOnReview {
		h.alerter.RankingAlert(ctx, result)
	}

	h.logger.Info("vendors ranked", map[string]interface{}{
		"jobId":        input.Job.ID,
		"rankingId":    result.RankingID,
		"evaluated":    result.TotalEvaluated,
		"eligible":     result.EligibleCount,
		"recommended":  len(result.Recommendations),
		"degraded":     result.Degraded,
		"modelVersion": result.ModelVersion,
	})

	return &Output{Ranking: result}, nil
}

// resolveVendors prefers the inline payload, then falls back to the
// vendor store by explicit IDs, then to every active vendor.
func (h *Handler) resolveVendors(ctx context.Context, input *Input) ([]*models.VendorProfile, error) {
	if len(input.Vendors) > 0 {
		vendors := make([]*models.VendorProfile, len(input.Vendors))
		for i := range input.Vendors {
			vendors[i] = &input.Vendors[i]
		}
		return vendors, nil
	}

	if h.vendors == nil {
		return nil, fmt.Errorf("%w: no inline vendors and no vendor store configured", ErrVendorLoadFailed)
	}

	var (
		loaded []models.VendorProfile
		err    error
	)
	if len(input.VendorIDs) > 0 {
		loaded, err = h.vendors.GetByIDs(ctx, input.VendorIDs)
	} else {
		loaded, err = h.vendors.ListActive(ctx, h.config.MaxVendorLoad)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVendorLoadFailed, err)
	}

	vendors := make([]*models.VendorProfile, len(loaded))
	for i := range loaded {
		vendors[i] = &loaded[i]
	}
	return vendors, nil
}

func (h *Handler) validateInput(variables string) error {
	schemaLoader := gojsonschema.NewGoLoader(inputSchema)
	documentLoader := gojsonschema.NewStringLoader(variables)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("input validation failed: %v", errs)
	}
	return nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

// Execute exposes the core path for tests and local tooling.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
