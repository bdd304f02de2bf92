// Package telemetry holds the OpenTelemetry instruments of the broker. When
// metrics are disabled every instrument comes from a noop meter.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// MeterName is the instrumentation scope of broker metrics.
const MeterName = "codetutor.broker"

// Metrics holds all broker instruments.
type Metrics struct {
	TokensIssued    metric.Int64Counter
	TokensRevoked   metric.Int64Counter
	SharedPoolDraws metric.Int64Counter
	PromptsFiltered metric.Int64Counter
	BackendCalls    metric.Int64Counter
	BackendDuration metric.Float64Histogram
}

// NewMetrics creates all instruments from meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.TokensIssued, err = meter.Int64Counter("codetutor.tokens.issued",
		metric.WithDescription("Session tokens issued"),
	)
	if err != nil {
		return nil, err
	}

	m.TokensRevoked, err = meter.Int64Counter("codetutor.tokens.revoked",
		metric.WithDescription("Session tokens revoked"),
	)
	if err != nil {
		return nil, err
	}

	m.SharedPoolDraws, err = meter.Int64Counter("codetutor.pool.draws",
		metric.WithDescription("Shared credentials handed out"),
	)
	if err != nil {
		return nil, err
	}

	m.PromptsFiltered, err = meter.Int64Counter("codetutor.prompts.filtered",
		metric.WithDescription("Exam prompts answered with the canned refusal"),
	)
	if err != nil {
		return nil, err
	}

	m.BackendCalls, err = meter.Int64Counter("codetutor.backend.calls",
		metric.WithDescription("Generative backend calls by outcome"),
	)
	if err != nil {
		return nil, err
	}

	m.BackendDuration, err = meter.Float64Histogram("codetutor.backend.duration",
		metric.WithDescription("Generative backend call duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// New returns instruments from the global meter provider when enabled, or
// from a noop provider otherwise.
func New(enabled bool) (*Metrics, error) {
	if !enabled {
		return Noop(), nil
	}
	return NewMetrics(otel.Meter(MeterName))
}

// Noop returns instruments that record nothing.
func Noop() *Metrics {
	m, err := NewMetrics(noop.NewMeterProvider().Meter(MeterName))
	if err != nil {
		// noop instruments never fail
		panic(err)
	}
	return m
}

// RecordBackendCall records one backend call with its model and outcome.
func (m *Metrics) RecordBackendCall(ctx context.Context, model, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("outcome", outcome),
	)
	m.BackendCalls.Add(ctx, 1, attrs)
	m.BackendDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordSharedDraw counts one shared pool draw for mode.
func (m *Metrics) RecordSharedDraw(ctx context.Context, mode string) {
	m.SharedPoolDraws.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}
