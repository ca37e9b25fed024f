// internal/store/metrics_test.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendor-ranking-workers/internal/common/logger"
	"vendor-ranking-workers/internal/models"
)

// fakeES serves canned aggregation responses with the product header the
// v8 client insists on.
func fakeES(t *testing.T, handler http.HandlerFunc) *elasticsearch.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client
}

func aggregationResponse(buckets ...map[string]interface{}) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"aggregations": map[string]interface{}{
			"by_vendor": map[string]interface{}{
				"buckets": buckets,
			},
		},
	})
	return body
}

func vendorBucket(key string, docCount int, completion, rework, response, satisfaction interface{}) map[string]interface{} {
	return map[string]interface{}{
		"key":                key,
		"doc_count":          docCount,
		"completion_rate":    map[string]interface{}{"value": completion},
		"rework_rate":        map[string]interface{}{"value": rework},
		"avg_response_hours": map[string]interface{}{"value": response},
		"avg_satisfaction":   map[string]interface{}{"value": satisfaction},
	}
}

func newTestProvider(t *testing.T, es *elasticsearch.Client) (*MetricsProvider, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })
	return NewMetricsProvider(es, redisClient, 5*time.Minute, logger.NewTestLogger(t)), mr
}

func TestMetricsProvider_AggregatesAndCaches(t *testing.T) {
	var esCalls atomic.Int32
	es := fakeES(t, func(w http.ResponseWriter, r *http.Request) {
		esCalls.Add(1)
		w.Write(aggregationResponse(
			vendorBucket("vendor-1", 14, 0.9, 0.05, 2.5, 4.4),
		))
	})
	provider, mr := newTestProvider(t, es)

	metrics, err := provider.GetMetrics(context.Background(), []string{"vendor-1"})
	require.NoError(t, err)
	require.Contains(t, metrics, "vendor-1")

	m := metrics["vendor-1"]
	assert.InDelta(t, 0.9, m.CompletionRate, 0.001)
	assert.InDelta(t, 0.05, m.ReworkRate, 0.001)
	assert.InDelta(t, 2.5, m.AvgResponseHours, 0.001)
	assert.InDelta(t, 4.4, m.AvgSatisfaction, 0.001)
	assert.Equal(t, 14, m.DataPoints)
	assert.True(t, mr.Exists("ranking:metrics:vendor-1"))

	// Second fetch is served entirely from the cache.
	again, err := provider.GetMetrics(context.Background(), []string{"vendor-1"})
	require.NoError(t, err)
	assert.InDelta(t, 0.9, again["vendor-1"].CompletionRate, 0.001)
	assert.Equal(t, int32(1), esCalls.Load())
}

func TestMetricsProvider_VendorsWithoutHistoryAreAbsent(t *testing.T) {
	es := fakeES(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(aggregationResponse(
			vendorBucket("vendor-1", 8, 0.8, 0.1, 3.0, 4.0),
		))
	})
	provider, _ := newTestProvider(t, es)

	metrics, err := provider.GetMetrics(context.Background(), []string{"vendor-1", "vendor-ghost"})
	require.NoError(t, err)
	assert.Contains(t, metrics, "vendor-1")
	assert.NotContains(t, metrics, "vendor-ghost")
}

func TestMetricsProvider_NullAggregatesFallBackToDefaults(t *testing.T) {
	es := fakeES(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(aggregationResponse(
			vendorBucket("vendor-1", 3, nil, nil, nil, nil),
		))
	})
	provider, _ := newTestProvider(t, es)

	metrics, err := provider.GetMetrics(context.Background(), []string{"vendor-1"})
	require.NoError(t, err)
	require.Contains(t, metrics, "vendor-1")

	m := metrics["vendor-1"]
	assert.InDelta(t, models.DefaultCompletionRate, m.CompletionRate, 0.001)
	assert.InDelta(t, models.DefaultReworkRate, m.ReworkRate, 0.001)
	assert.InDelta(t, models.DefaultAvgResponseHours, m.AvgResponseHours, 0.001)
	assert.InDelta(t, models.DefaultAvgSatisfaction, m.AvgSatisfaction, 0.001)
	assert.Equal(t, 3, m.DataPoints)
}

func TestMetricsProvider_ServesCachedSubsetWhenESFails(t *testing.T) {
	es := fakeES(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"search_phase_execution_exception"}`, http.StatusInternalServerError)
	})
	provider, mr := newTestProvider(t, es)

	cached, _ := json.Marshal(&models.VendorMetrics{
		VendorID:       "vendor-1",
		CompletionRate: 0.88,
		DataPoints:     12,
	})
	require.NoError(t, mr.Set("ranking:metrics:vendor-1", string(cached)))

	metrics, err := provider.GetMetrics(context.Background(), []string{"vendor-1", "vendor-2"})
	require.NoError(t, err, "a cached subset beats failing the whole ranking")
	require.Contains(t, metrics, "vendor-1")
	assert.NotContains(t, metrics, "vendor-2")
	assert.InDelta(t, 0.88, metrics["vendor-1"].CompletionRate, 0.001)
}

func TestMetricsProvider_ErrorWhenNothingCached(t *testing.T) {
	es := fakeES(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unavailable"}`, http.StatusServiceUnavailable)
	})
	provider, _ := newTestProvider(t, es)

	_, err := provider.GetMetrics(context.Background(), []string{"vendor-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "elasticsearch")
}

func TestMetricsProvider_EmptyInput(t *testing.T) {
	provider, _ := newTestProvider(t, nil)

	metrics, err := provider.GetMetrics(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, metrics)
}

func TestMetricsProvider_CacheWriteFailureIsNonFatal(t *testing.T) {
	es := fakeES(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(aggregationResponse(
			vendorBucket("vendor-9", 6, 0.8, 0.1, 3.0, 4.0),
		))
	})

	db, mock := redismock.NewClientMock()
	expected, _ := json.Marshal(&models.VendorMetrics{
		VendorID:         "vendor-9",
		CompletionRate:   0.8,
		ReworkRate:       0.1,
		AvgResponseHours: 3.0,
		AvgSatisfaction:  4.0,
		DataPoints:       6,
	})
	mock.ExpectGet("ranking:metrics:vendor-9").RedisNil()
	mock.ExpectSet("ranking:metrics:vendor-9", expected, time.Minute).SetErr(errors.New("connection refused"))

	provider := NewMetricsProvider(es, db, time.Minute, logger.NewTestLogger(t))

	metrics, err := provider.GetMetrics(context.Background(), []string{"vendor-9"})
	require.NoError(t, err)
	require.Contains(t, metrics, "vendor-9")
	assert.Equal(t, 6, metrics["vendor-9"].DataPoints)
	assert.NoError(t, mock.ExpectationsWereMet())
}
