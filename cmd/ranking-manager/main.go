package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"vendor-ranking-workers/internal/common/config"
	"vendor-ranking-workers/internal/common/database"
	"vendor-ranking-workers/internal/common/logger"
	"vendor-ranking-workers/internal/common/observability"
	"vendor-ranking-workers/internal/engine/confidence"
	"vendor-ranking-workers/internal/engine/hybrid"
	"vendor-ranking-workers/internal/engine/mlclient"
	"vendor-ranking-workers/internal/engine/ranker"
	"vendor-ranking-workers/internal/engine/rules"
	"vendor-ranking-workers/internal/notify"
	"vendor-ranking-workers/internal/store"

	rv "vendor-ranking-workers/internal/workers/ranking/rank-vendors"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting ranking manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("ranking-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var zeebeClient zbc.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebeClient, err = zbc.NewClient(&zbc.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init ML prediction client ---
	mlCfg := mlclient.Config{
		BaseURL: cfg.ML.BaseURL,
		Timeout: config.GetDuration(cfg.ML.Timeout),
		Breaker: mlclient.BreakerConfig{
			FailureThreshold: cfg.ML.Breaker.FailureThreshold,
			SuccessThreshold: cfg.ML.Breaker.SuccessThreshold,
			Timeout:          config.GetDuration(cfg.ML.Breaker.Timeout),
			HalfOpenRequests: cfg.ML.Breaker.HalfOpenRequests,
		},
	}
	mlClient := mlclient.New(mlCfg, log)
	if err := mlClient.Healthy(ctx); err != nil {
		// Degraded start. The breaker keeps probing; rankings run
		// rule-only until the service comes back.
		zapLog.Warn("ML prediction service unreachable at startup", zap.Error(err))
	} else {
		zapLog.Info("ML prediction service healthy")
	}

	// --- Build the scoring pipeline ---
	ruleEngine, err := rules.NewEngine(ruleWeights(cfg))
	if err != nil {
		zapLog.Fatal("invalid rule weights", zap.Error(err))
	}
	aggregator, err := hybrid.New(hybridWeights(cfg))
	if err != nil {
		zapLog.Fatal("invalid hybrid weights", zap.Error(err))
	}
	scorer, err := confidence.New(confidenceWeights(cfg))
	if err != nil {
		zapLog.Fatal("invalid confidence weights", zap.Error(err))
	}

	vendorRanker := ranker.New(ranker.Config{
		MaxConcurrency: cfg.Ranker.MaxConcurrency,
		MLTimeout:      config.GetDuration(cfg.Ranker.MLTimeout),
	}, ruleEngine, aggregator, scorer, mlClient, log)

	vendorStore := store.NewVendorStore(pg.DB, log)
	metricsProvider := store.NewMetricsProvider(
		esClient.Client, redis.Client,
		time.Duration(cfg.Ranker.CacheTTL)*time.Second, log,
	)

	alerter, err := notify.NewAlerter(ctx, cfg.Notifications, log)
	if err != nil {
		zapLog.Fatal("failed to create ranking alerter", zap.Error(err))
	}

	// --- Register the ranking worker ---
	wcfg := config.GetWorkerConfig(cfg, rv.TaskType)
	if wcfg.Enabled {
		handler := rv.NewHandler(
			&rv.Config{
				Timeout:       config.GetDuration(wcfg.Timeout),
				MaxVendorLoad: 200,
				AlertOnReview: true,
			},
			vendorRanker, vendorStore, metricsProvider, alerter, log,
		).WithObservability(obs)
		startWorker(zeebeClient, rv.TaskType, wcfg, handler.Handle, zapLog)
	}

	zapLog.Info("All workers registered successfully")

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")

	if err := zeebeClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Ranking manager stopped")
}

func ruleWeights(cfg *config.Config) rules.Weights {
	if cfg.Engine.RuleWeights.IsZero() {
		return rules.DefaultWeights()
	}
	return rules.Weights{
		Availability:         cfg.Engine.RuleWeights.Availability,
		Proximity:            cfg.Engine.RuleWeights.Proximity,
		Certification:        cfg.Engine.RuleWeights.Certification,
		Capacity:             cfg.Engine.RuleWeights.Capacity,
		HistoricalCompletion: cfg.Engine.RuleWeights.HistoricalCompletion,
	}
}

func hybridWeights(cfg *config.Config) hybrid.Weights {
	if cfg.Engine.HybridWeights.IsZero() {
		return hybrid.DefaultWeights()
	}
	return hybrid.Weights{
		Rule:    cfg.Engine.HybridWeights.Rule,
		ML:      cfg.Engine.HybridWeights.ML,
		Context: cfg.Engine.HybridWeights.Context,
	}
}

func confidenceWeights(cfg *config.Config) confidence.Weights {
	if cfg.Engine.ConfidenceWeights.IsZero() {
		return confidence.DefaultWeights()
	}
	return confidence.Weights{
		DataQuality:         cfg.Engine.ConfidenceWeights.DataQuality,
		ModelCertainty:      cfg.Engine.ConfidenceWeights.ModelCertainty,
		HistoricalData:      cfg.Engine.ConfidenceWeights.HistoricalData,
		FeatureCompleteness: cfg.Engine.ConfidenceWeights.FeatureCompleteness,
		Consistency:         cfg.Engine.ConfidenceWeights.Consistency,
	}
}

func startWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handlerFunc func(worker.JobClient, entities.Job), log *zap.Logger) {
	if !wcfg.Enabled {
		log.Info("worker disabled", zap.String("taskType", taskType))
		return
	}

	client.NewJobWorker().
		JobType(taskType).
		Handler(handlerFunc).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	log.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)
}
