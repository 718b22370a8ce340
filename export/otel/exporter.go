// Package otel exposes event counts as an OpenTelemetry observable counter.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/xerrors"
)

// InstrumentName is the observable counter every event key is reported under.
const InstrumentName = "eventcounter.events"

// KeyAttribute carries the event key on each observation.
const KeyAttribute = attribute.Key("event.key")

var (
	ErrNilMeter  = xerrors.New("nil meter")
	ErrNilSource = xerrors.New("nil metrics source")
)

// Source supplies point-in-time counts.
type Source interface {
	Snapshot() map[string]int64
}

// Exporter reports a Source through one observable counter, with the event key
// as an attribute on each observation.
type Exporter struct {
	source       Source
	counter      metric.Int64ObservableCounter
	registration metric.Registration
}

// NewExporter creates the instrument on meter and registers the callback that
// reads source on every collection.
func NewExporter(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	counter, err := meter.Int64ObservableCounter(
		InstrumentName,
		metric.WithDescription("Number of times each tracked event occurred since the last reset."),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, xerrors.Errorf("create observable counter %s: %w", InstrumentName, err)
	}

	exporter := &Exporter{source: source, counter: counter}
	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		for key, count := range exporter.source.Snapshot() {
			observer.ObserveInt64(exporter.counter, count, metric.WithAttributes(KeyAttribute.String(key)))
		}
		return nil
	}, counter)
	if err != nil {
		return nil, xerrors.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

// Close unregisters the callback. It is safe on a nil Exporter.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
