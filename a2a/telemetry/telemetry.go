// Package telemetry abstracts structured logging, metrics, and tracing for
// the A2A task manager, so call sites stay agnostic of the underlying
// provider. The default implementation delegates to goa.design/clue/log and
// OpenTelemetry; a Noop implementation is available for tests.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger captures structured logging used throughout the task manager.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Metrics exposes counter, timer, and gauge helpers for task manager
// instrumentation (a2a.tasks.created, a2a.tasks.completed,
// a2a.subscribers.active).
type Metrics interface {
	IncCounter(name string, value float64, tags ...string)
	RecordTimer(name string, duration time.Duration, tags ...string)
	RecordGauge(name string, value float64, tags ...string)
}

// Tracer abstracts span creation so task manager code stays agnostic of the
// underlying OpenTelemetry provider.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
	Span(ctx context.Context) Span
}

// Span represents an in-flight tracing span.
type Span interface {
	End(opts ...trace.SpanEndOption)
	AddEvent(name string, attrs ...any)
	SetStatus(code codes.Code, description string)
	RecordError(err error, opts ...trace.EventOption)
}

// Telemetry bundles the three signals the Task Manager records. A nil field
// on a caller-supplied Telemetry is replaced by its Noop counterpart so
// callers may configure only what they need.
type Telemetry struct {
	Log     Logger
	Metrics Metrics
	Trace   Tracer
}

// Noop returns a Telemetry whose every signal discards its input, for tests
// and for servers run without observability configured.
func Noop() Telemetry {
	return Telemetry{Log: NoopLogger{}, Metrics: NoopMetrics{}, Trace: NoopTracer{}}
}

// Normalize fills any nil field of t with its Noop counterpart, so callers
// that only configure a subset of signals never need a nil check.
func Normalize(t Telemetry) Telemetry {
	if t.Log == nil {
		t.Log = NoopLogger{}
	}
	if t.Metrics == nil {
		t.Metrics = NoopMetrics{}
	}
	if t.Trace == nil {
		t.Trace = NoopTracer{}
	}
	return t
}
