// Package observe holds the OpenTelemetry metric instruments for OttoFit.
//
// Components receive a *Metrics at construction. Tests should use
// [NewMetrics] with their own [metric.MeterProvider] (or [Noop]) so
// recordings never leak across tests. [InitProvider] wires a Prometheus
// exporter for the CLI.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/hammamikhairi/ottofit"

// Metrics holds every instrument. All fields are safe for concurrent use.
type Metrics struct {
	// CacheLookups counts cue cache reads. Attribute: result=hit|miss.
	CacheLookups metric.Int64Counter

	// Generations counts calls to the external services.
	// Attributes: stage=text|speech, status=ok|error.
	Generations metric.Int64Counter

	// GenerationDuration tracks the full text+speech latency of one cue.
	GenerationDuration metric.Float64Histogram

	// Deliveries counts spoken cues by how they were resolved.
	// Attribute: source=cached|generated|static|silent.
	Deliveries metric.Int64Counter

	// Preemptions counts cues stopped by a newer one.
	Preemptions metric.Int64Counter

	// PhaseTransitions counts phase entries. Attribute: phase.
	PhaseTransitions metric.Int64Counter

	// ActiveSessions tracks running sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets are histogram boundaries (seconds) tuned for TTS + LLM.
var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16}

// NewMetrics creates every instrument on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.CacheLookups, err = m.Int64Counter("ottofit.cache.lookups",
		metric.WithDescription("Cue cache lookups by result."),
	); err != nil {
		return nil, err
	}
	if met.Generations, err = m.Int64Counter("ottofit.generation.calls",
		metric.WithDescription("Calls to the text and speech services."),
	); err != nil {
		return nil, err
	}
	if met.GenerationDuration, err = m.Float64Histogram("ottofit.generation.duration",
		metric.WithDescription("Latency of generating one cue (text and speech)."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Deliveries, err = m.Int64Counter("ottofit.cue.deliveries",
		metric.WithDescription("Spoken cues by resolution source."),
	); err != nil {
		return nil, err
	}
	if met.Preemptions, err = m.Int64Counter("ottofit.cue.preemptions",
		metric.WithDescription("Cues stopped by a newer cue."),
	); err != nil {
		return nil, err
	}
	if met.PhaseTransitions, err = m.Int64Counter("ottofit.phase.transitions",
		metric.WithDescription("Phase entries by phase."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("ottofit.sessions.active",
		metric.WithDescription("Currently running workout sessions."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// Noop returns metrics that record nothing.
func Noop() *Metrics {
	met, _ := NewMetrics(noop.NewMeterProvider())
	return met
}

// RecordCacheLookup counts a hit or miss.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordGenerationCall counts one service call.
func (m *Metrics) RecordGenerationCall(ctx context.Context, stage string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Generations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", status),
	))
}

// RecordGenerationDuration records the latency of one cue generation.
func (m *Metrics) RecordGenerationDuration(ctx context.Context, d time.Duration) {
	m.GenerationDuration.Record(ctx, d.Seconds())
}

// RecordDelivery counts a delivered (or silent) cue.
func (m *Metrics) RecordDelivery(ctx context.Context, source string) {
	m.Deliveries.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordPreemption counts a stopped cue.
func (m *Metrics) RecordPreemption(ctx context.Context) {
	m.Preemptions.Add(ctx, 1)
}

// RecordPhase counts a phase entry.
func (m *Metrics) RecordPhase(ctx context.Context, phase string) {
	m.PhaseTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("phase", phase)))
}

// RecordActiveSession adds delta (+1 on start, -1 on end) to the gauge.
func (m *Metrics) RecordActiveSession(ctx context.Context, delta int64) {
	m.ActiveSessions.Add(ctx, delta)
}
