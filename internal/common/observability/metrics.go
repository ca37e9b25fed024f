package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

type Observability struct {
	meterProvider   *metric.MeterProvider
	meter           otelmetric.Meter
	jobCounter      otelmetric.Int64Counter
	jobDuration     otelmetric.Float64Histogram
	vendorsRanked   otelmetric.Int64Counter
	rankingDuration otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
	)

	provider := metric.NewMeterProvider(
		metric.WithReader(exporter),
		metric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	jobCounter, _ := meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)

	jobDuration, _ := meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	)

	vendorsRanked, _ := meter.Int64Counter(
		"vendors.ranked",
		otelmetric.WithDescription("Number of vendors processed by ranking runs"),
	)

	rankingDuration, _ := meter.Float64Histogram(
		"ranking.duration",
		otelmetric.WithDescription("End to end ranking run duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:   provider,
		meter:           meter,
		jobCounter:      jobCounter,
		jobDuration:     jobDuration,
		vendorsRanked:   vendorsRanked,
		rankingDuration: rankingDuration,
	}
}

func (o *Observability) RecordJobProcessed(ctx context.Context, status string) {
	if o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordJobDuration(ctx context.Context, duration time.Duration, status string) {
	if o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

// RecordRanking records one completed ranking run with its vendor count
// and wall time. Mode is "hybrid" or "degraded".
func (o *Observability) RecordRanking(ctx context.Context, vendors int, duration time.Duration, mode string) {
	attrs := otelmetric.WithAttributes(attribute.String("mode", mode))
	if o.vendorsRanked != nil {
		o.vendorsRanked.Add(ctx, int64(vendors), attrs)
	}
	if o.rankingDuration != nil {
		o.rankingDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
