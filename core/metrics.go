package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	conversionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tzevents",
		Name:      "conversions_total",
		Help:      "Time conversions served, by outcome.",
	}, []string{"outcome"})

	eventsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tzevents",
		Name:      "events_created_total",
		Help:      "Events created through the API.",
	})

	eventLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tzevents",
		Name:      "event_lookups_total",
		Help:      "Event lookups, by kind and outcome.",
	}, []string{"kind", "outcome"})
)

type DBMetrics struct {
	qTotal   metric.Int64Counter
	qErrors  metric.Int64Counter
	qLatency metric.Float64Histogram
}

func NewDBMetrics() *DBMetrics {
	meter := otel.Meter("tzevents/db")

	qTotal, _ := meter.Int64Counter("db.query.total")
	qErrors, _ := meter.Int64Counter("db.query.errors.total")
	qLatency, _ := meter.Float64Histogram("db.query.duration.ms")

	return &DBMetrics{qTotal: qTotal, qErrors: qErrors, qLatency: qLatency}
}

func (m *DBMetrics) Observe(ctx context.Context, op string, start time.Time, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", "postgres"),
		attribute.String("db.operation", op),
	}

	m.qTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	ms := float64(time.Since(start).Milliseconds())
	m.qLatency.Record(ctx, ms, metric.WithAttributes(attrs...))

	if err != nil {
		m.qErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}
