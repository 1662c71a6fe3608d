package retryx

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Instruments records attempt counts and outcomes of Execute calls.
type Instruments struct {
	attempts metric.Int64Counter
	results  metric.Int64Counter
	duration metric.Float64Histogram
}

// NewInstruments creates the retry instruments on meter.
func NewInstruments(meter metric.Meter) (*Instruments, error) {
	attempts, err := meter.Int64Counter("cofind.retry.attempts",
		metric.WithDescription("Attempts made by retried operations."))
	if err != nil {
		return nil, fmt.Errorf("create attempts counter: %w", err)
	}
	results, err := meter.Int64Counter("cofind.retry.results",
		metric.WithDescription("Finished retried operations by outcome class."))
	if err != nil {
		return nil, fmt.Errorf("create results counter: %w", err)
	}
	duration, err := meter.Float64Histogram("cofind.retry.duration",
		metric.WithDescription("Wall time of retried operations including pauses."),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}
	return &Instruments{attempts: attempts, results: results, duration: duration}, nil
}

// NopInstruments returns instruments backed by a no-op meter.
func NopInstruments() *Instruments {
	i, _ := NewInstruments(noop.NewMeterProvider().Meter("retryx"))
	return i
}

func (i *Instruments) attempt(ctx context.Context, name string) {
	i.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", name)))
}

func (i *Instruments) finish(ctx context.Context, name string, class Class, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("operation", name),
		attribute.String("class", class.String()),
	)
	i.results.Add(ctx, 1, attrs)
	i.duration.Record(ctx, float64(d)/float64(time.Millisecond), attrs)
}
