package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/reflow-dev/reflow/pkg/reactive"
)

// Default tracer name for reflow graphs.
const defaultTracerName = "reflow"

// TracerConfig configures the OpenTelemetry flush observer.
type TracerConfig struct {
	// TracerName is the name of the tracer (default: "reflow").
	TracerName string

	// Filter determines which flushes to trace. Return true to trace the
	// flush, false to skip. If nil, all flushes are traced.
	Filter func(stats reactive.FlushStats) bool

	// Attributes are constant attributes added to every flush span.
	Attributes []attribute.KeyValue
}

// TracerOption configures the OpenTelemetry flush observer.
type TracerOption func(*TracerConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracerOption {
	return func(c *TracerConfig) {
		c.TracerName = name
	}
}

// WithFlushFilter sets a filter deciding which flushes are recorded. The
// filter sees the completed flush stats, so it can trace only slow or
// multi-iteration flushes.
func WithFlushFilter(filter func(stats reactive.FlushStats) bool) TracerOption {
	return func(c *TracerConfig) {
		c.Filter = filter
	}
}

// WithAttributes sets constant attributes added to every flush span.
func WithAttributes(attrs ...attribute.KeyValue) TracerOption {
	return func(c *TracerConfig) {
		c.Attributes = attrs
	}
}

// Tracer is a reactive.FlushObserver that records one span per flush.
//
// Flushes run on the graph's loop goroutine with no inbound trace context,
// so spans are roots. The span carries the flush shape as attributes:
// iteration count, views refreshed, effects run/skipped, and recovered
// effect panics. Flushes that recovered panics get an Error span status.
//
// The tracer resolves from the global OpenTelemetry provider; configure it
// in main() before building the graph:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
//	g := reactive.New(reactive.WithObserver(observe.NewTracer()))
type Tracer struct {
	config TracerConfig
	tracer trace.Tracer

	mu    sync.Mutex
	start time.Time
}

// NewTracer creates an OpenTelemetry flush observer.
func NewTracer(opts ...TracerOption) *Tracer {
	config := TracerConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	return &Tracer{
		config: config,
		tracer: otel.Tracer(config.TracerName),
	}
}

// FlushStart implements reactive.FlushObserver.
func (t *Tracer) FlushStart() {
	t.mu.Lock()
	t.start = time.Now()
	t.mu.Unlock()
}

// FlushEnd implements reactive.FlushObserver. The span is created
// retroactively once the flush shape is known, so filtered flushes cost
// nothing but a timestamp.
func (t *Tracer) FlushEnd(stats reactive.FlushStats) {
	if t.config.Filter != nil && !t.config.Filter(stats) {
		return
	}

	t.mu.Lock()
	start := t.start
	t.mu.Unlock()
	if start.IsZero() {
		start = time.Now().Add(-stats.Duration)
	}

	attrs := []attribute.KeyValue{
		attribute.Int("reflow.flush_iterations", stats.Iterations),
		attribute.Int("reflow.views_refreshed", stats.ViewsRefreshed),
		attribute.Int("reflow.effects_run", stats.EffectsRun),
		attribute.Int("reflow.effects_skipped", stats.EffectsSkipped),
		attribute.Int("reflow.effect_errors", stats.EffectErrors),
	}
	attrs = append(attrs, t.config.Attributes...)

	_, span := t.tracer.Start(
		context.Background(),
		"reflow.flush",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithTimestamp(start),
		trace.WithAttributes(attrs...),
	)

	if stats.EffectErrors > 0 {
		span.SetStatus(codes.Error, "effect panics recovered during flush")
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End(trace.WithTimestamp(start.Add(stats.Duration)))
}
