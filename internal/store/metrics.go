// internal/store/metrics.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/redis/go-redis/v9"

	"vendor-ranking-workers/internal/common/logger"
	"vendor-ranking-workers/internal/models"
)

const (
	jobOutcomesIndex   = "job-outcomes"
	metricsCachePrefix = "ranking:metrics:"
)

// MetricsProvider aggregates historical vendor performance out of the
// job-outcomes index, with a Redis cache in front. A vendor missing
// from the index simply has no metrics; callers degrade to defaults.
type MetricsProvider struct {
	esClient    *elasticsearch.Client
	redisClient *redis.Client
	cacheTTL    time.Duration
	logger      logger.Logger
}

func NewMetricsProvider(esClient *elasticsearch.Client, redisClient *redis.Client, cacheTTL time.Duration, log logger.Logger) *MetricsProvider {
	return &MetricsProvider{
		esClient:    esClient,
		redisClient: redisClient,
		cacheTTL:    cacheTTL,
		logger: log.WithFields(map[string]interface{}{
			"component": "metrics-provider",
		}),
	}
}

// GetMetrics returns historical metrics keyed by vendor ID. Vendors
// with no recorded outcomes are absent from the map.
func (p *MetricsProvider) GetMetrics(ctx context.Context, vendorIDs []string) (map[string]*models.VendorMetrics, error) {
	if len(vendorIDs) == 0 {
		return map[string]*models.VendorMetrics{}, nil
	}

	results := make(map[string]*models.VendorMetrics, len(vendorIDs))
	missing := p.loadFromCache(ctx, vendorIDs, results)
	if len(missing) == 0 {
		return results, nil
	}

	aggregated, err := p.aggregateFromES(ctx, missing)
	if err != nil {
		if len(results) > 0 {
			p.logger.Warn("metrics aggregation failed, serving cached subset", map[string]interface{}{
				"cached": len(results), "missing": len(missing), "error": err.Error(),
			})
			return results, nil
		}
		return nil, err
	}

	for id, m := range aggregated {
		results[id] = m
		p.storeInCache(ctx, id, m)
	}
	return results, nil
}

// loadFromCache fills results from Redis and returns the IDs still missing.
func (p *MetricsProvider) loadFromCache(ctx context.Context, vendorIDs []string, results map[string]*models.VendorMetrics) []string {
	if p.redisClient == nil {
		return vendorIDs
	}

	var missing []string
	for _, id := range vendorIDs {
		val, err := p.redisClient.Get(ctx, metricsCachePrefix+id).Result()
		if err != nil {
			missing = append(missing, id)
			continue
		}
		var m models.VendorMetrics
		if err := json.Unmarshal([]byte(val), &m); err != nil {
			missing = append(missing, id)
			continue
		}
		results[id] = &m
	}
	return missing
}

func (p *MetricsProvider) storeInCache(ctx context.Context, vendorID string, m *models.VendorMetrics) {
	if p.redisClient == nil {
		return
	}
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	if err := p.redisClient.Set(ctx, metricsCachePrefix+vendorID, data, p.cacheTTL).Err(); err != nil {
		p.logger.Warn("failed to cache vendor metrics", map[string]interface{}{
			"vendorId": vendorID, "error": err.Error(),
		})
	}
}

func (p *MetricsProvider) aggregateFromES(ctx context.Context, vendorIDs []string) (map[string]*models.VendorMetrics, error) {
	queryBody := map[string]interface{}{
		"size": 0,
		"query": map[string]interface{}{
			"terms": map[string]interface{}{"vendor_id.keyword": vendorIDs},
		},
		"aggs": map[string]interface{}{
			"by_vendor": map[string]interface{}{
				"terms": map[string]interface{}{
					"field": "vendor_id.keyword",
					"size":  len(vendorIDs),
				},
				"aggs": map[string]interface{}{
					"completion_rate":    map[string]interface{}{"avg": map[string]interface{}{"field": "completed"}},
					"rework_rate":        map[string]interface{}{"avg": map[string]interface{}{"field": "reworked"}},
					"avg_response_hours": map[string]interface{}{"avg": map[string]interface{}{"field": "response_hours"}},
					"avg_satisfaction":   map[string]interface{}{"avg": map[string]interface{}{"field": "satisfaction"}},
				},
			},
		},
	}

	body, _ := json.Marshal(queryBody)
	req := esapi.SearchRequest{
		Index: []string{jobOutcomesIndex},
		Body:  strings.NewReader(string(body)),
	}

	res, err := req.Do(ctx, p.esClient)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch: metrics aggregation failed: %s", res.String())
	}

	var r struct {
		Aggregations struct {
			ByVendor struct {
				Buckets []struct {
					Key              string    `json:"key"`
					DocCount         int       `json:"doc_count"`
					CompletionRate   avgBucket `json:"completion_rate"`
					ReworkRate       avgBucket `json:"rework_rate"`
					AvgResponseHours avgBucket `json:"avg_response_hours"`
					AvgSatisfaction  avgBucket `json:"avg_satisfaction"`
				} `json:"buckets"`
			} `json:"by_vendor"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("elasticsearch: decode aggregation response: %w", err)
	}

	metrics := make(map[string]*models.VendorMetrics, len(r.Aggregations.ByVendor.Buckets))
	for _, b := range r.Aggregations.ByVendor.Buckets {
		metrics[b.Key] = &models.VendorMetrics{
			VendorID:         b.Key,
			CompletionRate:   b.CompletionRate.value(models.DefaultCompletionRate),
			ReworkRate:       b.ReworkRate.value(models.DefaultReworkRate),
			AvgResponseHours: b.AvgResponseHours.value(models.DefaultAvgResponseHours),
			AvgSatisfaction:  b.AvgSatisfaction.value(models.DefaultAvgSatisfaction),
			DataPoints:       b.DocCount,
		}
	}
	return metrics, nil
}

type avgBucket struct {
	Value *float64 `json:"value"`
}

func (b avgBucket) value(fallback float64) float64 {
	if b.Value == nil {
		return fallback
	}
	return *b.Value
}
