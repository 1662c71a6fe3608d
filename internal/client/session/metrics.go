package session

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/dmitrijs2005/cofind/internal/client/models"
)

// Instruments counts processed and coalesced authentication events.
type Instruments struct {
	events    metric.Int64Counter
	coalesced metric.Int64Counter
}

func NewInstruments(meter metric.Meter) (*Instruments, error) {
	events, err := meter.Int64Counter("cofind.session.events",
		metric.WithDescription("Authentication events processed by the coordinator."))
	if err != nil {
		return nil, err
	}
	coalesced, err := meter.Int64Counter("cofind.session.events.coalesced",
		metric.WithDescription("Buffered events replaced by a newer one before processing."))
	if err != nil {
		return nil, err
	}
	return &Instruments{events: events, coalesced: coalesced}, nil
}

func NopInstruments() *Instruments {
	i, _ := NewInstruments(noop.NewMeterProvider().Meter("cofind/session"))
	return i
}

func (i *Instruments) recordEvent(ctx context.Context, kind models.EventKind) {
	i.events.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
}

func (i *Instruments) recordCoalesced(ctx context.Context, kind models.EventKind) {
	i.coalesced.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
}
