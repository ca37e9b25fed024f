// internal/workers/ranking/rank-vendors/handler_test.go
package rankvendors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "vendor-ranking-workers/internal/common/errors"
	"vendor-ranking-workers/internal/common/logger"
	"vendor-ranking-workers/internal/engine/confidence"
	"vendor-ranking-workers/internal/engine/hybrid"
	"vendor-ranking-workers/internal/engine/ranker"
	"vendor-ranking-workers/internal/engine/rules"
	"vendor-ranking-workers/internal/models"
	"vendor-ranking-workers/internal/store"
)

var handlerNow = time.Date(2026, time.March, 10, 14, 0, 0, 0, time.UTC)

func createTestConfig() *Config {
	return &Config{
		Timeout:       30 * time.Second,
		MaxVendorLoad: 200,
		AlertOnReview: false,
	}
}

func createTestRanker(t *testing.T) *ranker.Ranker {
	t.Helper()
	engine, err := rules.NewEngine(rules.DefaultWeights())
	require.NoError(t, err)
	aggregator, err := hybrid.New(hybrid.DefaultWeights())
	require.NoError(t, err)
	scorer, err := confidence.New(confidence.DefaultWeights())
	require.NoError(t, err)
	r := ranker.New(ranker.Config{}, engine, aggregator, scorer, nil, logger.NewTestLogger(t))
	return r.WithClock(func() time.Time { return handlerNow })
}

func createTestHandler(t *testing.T, vendors *store.VendorStore) *Handler {
	t.Helper()
	return NewHandler(createTestConfig(), createTestRanker(t), vendors, nil, nil, logger.NewTestLogger(t))
}

func inlineVendor(id string) models.VendorProfile {
	return models.VendorProfile{
		ID:              id,
		Name:            "Vendor " + id,
		Status:          models.VendorActive,
		MaxCapacity:     10,
		CurrentCapacity: 3,
		Certifications: []models.Certification{
			{Name: "EPA 608", Verified: true, ExpiresAt: handlerNow.Add(365 * 24 * time.Hour)},
		},
		ServiceAreas: []models.ServiceArea{
			{Region: "north", PostalCodes: []string{"75001"}, MaxDistance: 50},
		},
		AvailabilityWindows: []models.AvailabilityWindow{
			{DayOfWeek: time.Tuesday, StartHour: 8, EndHour: 18},
		},
		BaseLocation: &models.Location{Latitude: 32.98, Longitude: -96.89, PostalCode: "75001"},
	}
}

func createValidInput() *Input {
	return &Input{
		Job: models.JobRequest{
			ID:          "job-1",
			JobType:     "hvac_repair",
			Urgency:     models.UrgencyMedium,
			SLADeadline: handlerNow.Add(24 * time.Hour),
			Location:    models.Location{Latitude: 32.99, Longitude: -96.90, PostalCode: "75001"},
		},
		Vendors: []models.VendorProfile{inlineVendor("vendor-1"), inlineVendor("vendor-2")},
		Metrics: map[string]*models.VendorMetrics{
			"vendor-1": {CompletionRate: 0.95, ReworkRate: 0.05, AvgResponseHours: 2, AvgSatisfaction: 4.5, DataPoints: 20},
			"vendor-2": {CompletionRate: 0.82, ReworkRate: 0.08, AvgResponseHours: 3, AvgSatisfaction: 4.0, DataPoints: 15},
		},
	}
}

func TestHandler_Execute_InlineVendors(t *testing.T) {
	h := createTestHandler(t, nil)

	output, err := h.Execute(context.Background(), createValidInput())
	require.NoError(t, err)
	require.NotNil(t, output.Ranking)

	result := output.Ranking
	assert.Equal(t, "job-1", result.JobID)
	assert.Equal(t, 2, result.TotalEvaluated)
	require.Len(t, result.Recommendations, 2)
	assert.Equal(t, "vendor-1", result.Recommendations[0].VendorID)
	assert.Equal(t, "vendor-2", result.Recommendations[1].VendorID)
	// No predictor configured, so this deployment runs rule-only.
	assert.True(t, result.Degraded)
	assert.Equal(t, "rule-only", result.ModelVersion)
}

func TestHandler_Execute_LoadsVendorsByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	rows := sqlmock.NewRows([]string{
		"id", "name", "status", "max_capacity", "current_capacity",
		"certifications", "service_areas", "base_location", "availability_windows",
	}).AddRow(
		"vendor-1", "Acme HVAC", "active", 10, 3,
		[]byte(`[{"name":"EPA 608","verified":true}]`),
		[]byte(`[{"region":"north","postalCodes":["75001"],"maxDistanceKm":50}]`),
		`{"latitude":32.98,"longitude":-96.89,"postalCode":"75001"}`,
		nil,
	)
	mock.ExpectQuery(`SELECT .+ FROM vendors WHERE id IN \(\$1\)`).
		WithArgs("vendor-1").
		WillReturnRows(rows)

	h := createTestHandler(t, store.NewVendorStore(db, logger.NewTestLogger(t)))

	input := createValidInput()
	input.Vendors = nil
	input.VendorIDs = []string{"vendor-1"}

	output, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, output.Ranking.Recommendations, 1)
	assert.Equal(t, "vendor-1", output.Ranking.Recommendations[0].VendorID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_ListsActiveWhenNoIDsGiven(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectQuery(`SELECT .+ FROM vendors WHERE status = \$1 ORDER BY id LIMIT \$2`).
		WithArgs("active", 200).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "status", "max_capacity", "current_capacity",
			"certifications", "service_areas", "base_location", "availability_windows",
		}))

	h := createTestHandler(t, store.NewVendorStore(db, logger.NewTestLogger(t)))

	input := createValidInput()
	input.Vendors = nil

	output, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, output.Ranking.Degraded)
	assert.Equal(t, "no vendors supplied for ranking", output.Ranking.Warning)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_VendorLoadFailure(t *testing.T) {
	t.Run("no store and no inline vendors", func(t *testing.T) {
		h := createTestHandler(t, nil)

		input := createValidInput()
		input.Vendors = nil

		_, err := h.Execute(context.Background(), input)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrVendorLoadFailed)
	})

	t.Run("store query failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })

		mock.ExpectQuery(`SELECT .+ FROM vendors`).WillReturnError(assert.AnError)

		h := createTestHandler(t, store.NewVendorStore(db, logger.NewTestLogger(t)))

		input := createValidInput()
		input.Vendors = nil
		input.VendorIDs = []string{"vendor-1"}

		_, execErr := h.Execute(context.Background(), input)
		require.Error(t, execErr)
		assert.ErrorIs(t, execErr, ErrVendorLoadFailed)
	})
}

func TestHandler_ValidateInput(t *testing.T) {
	h := createTestHandler(t, nil)

	cases := []struct {
		name    string
		payload interface{}
		wantErr bool
	}{
		{
			name:    "valid input",
			payload: createValidInput(),
			wantErr: false,
		},
		{
			name:    "missing job",
			payload: map[string]interface{}{"vendorIds": []string{"vendor-1"}},
			wantErr: true,
		},
		{
			name: "missing job type",
			payload: map[string]interface{}{
				"job": map[string]interface{}{
					"id":          "job-1",
					"urgency":     "medium",
					"slaDeadline": "2026-03-11T14:00:00Z",
				},
			},
			wantErr: true,
		},
		{
			name: "unknown urgency",
			payload: map[string]interface{}{
				"job": map[string]interface{}{
					"id":          "job-1",
					"jobType":     "hvac_repair",
					"urgency":     "urgent",
					"slaDeadline": "2026-03-11T14:00:00Z",
				},
			},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			variables, err := json.Marshal(tc.payload)
			require.NoError(t, err)

			err = h.validateInput(string(variables))
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHandler_Execute_InlineMetricsSkipProvider(t *testing.T) {
	// A metrics provider is configured but the payload already carries
	// metrics, so no lookup happens and history shapes the scores.
	h := NewHandler(createTestConfig(), createTestRanker(t), nil, nil, nil, logger.NewTestLogger(t))

	input := createValidInput()
	output, err := h.Execute(context.Background(), input)
	require.NoError(t, err)

	top := output.Ranking.Recommendations[0]
	assert.Equal(t, "vendor-1", top.VendorID)
	assert.Greater(t, top.OverallScore, output.Ranking.Recommendations[1].OverallScore)
}

func TestHandler_Classify(t *testing.T) {
	h := createTestHandler(t, nil)

	t.Run("vendor load failures map to the retryable load code", func(t *testing.T) {
		classified := h.classify(fmt.Errorf("%w: connection refused", ErrVendorLoadFailed))
		stdErr, ok := classified.(*apperrors.StandardError)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeVendorLoadFailed, stdErr.Code)
		assert.True(t, stdErr.Retryable)
	})

	t.Run("invalid job requests map to the non-retryable input code", func(t *testing.T) {
		classified := h.classify(errors.New("invalid job request: job id is required"))
		stdErr, ok := classified.(*apperrors.StandardError)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeInvalidJobData, stdErr.Code)
		assert.False(t, stdErr.Retryable)
	})

	t.Run("unrecognized errors pass through unchanged", func(t *testing.T) {
		cause := errors.New("unexpected failure")
		assert.Same(t, cause, h.classify(cause))
	})
}
