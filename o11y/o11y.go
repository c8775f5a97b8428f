// Package o11y is how the service reports what it is doing. Code opens spans, adds
// fields and asks for metrics to be derived from them; the Provider carried in the
// context decides where all of that ends up.
//
// Without a Provider in the context every call is a no-op, so packages can be
// exercised in isolation.
package o11y

import (
	"context"
	"io"

	"github.com/DataDog/datadog-go/statsd"
)

type Provider interface {
	// StartSpan opens a span for one unit of work. The caller must End it.
	StartSpan(ctx context.Context, name string) (context.Context, Span)
	// GetSpan returns the innermost span in ctx, or a no-op span if there is none.
	GetSpan(ctx context.Context) Span
	// Log emits a zero length span carrying fields.
	Log(ctx context.Context, name string, fields ...Pair)
	// MetricsProvider is the statsd style sink used for span metrics and gauges.
	MetricsProvider() MetricsProvider
	// Close flushes anything buffered.
	Close(ctx context.Context)
}

type Span interface {
	// AddField records an application field, stored under "app.<key>".
	AddField(key string, val interface{})
	// AddRawField records a field under key as is, e.g. "http.status_code".
	AddRawField(key string, val interface{})
	// RecordMetric derives a metric from the span's fields when it ends.
	RecordMetric(m Metric)
	End()
}

// MetricsProvider has the same method set as a datadog statsd client.
type MetricsProvider interface {
	TimeInMilliseconds(name string, value float64, tags []string, rate float64) error
	Gauge(name string, value float64, tags []string, rate float64) error
	Count(name string, value int64, tags []string, rate float64) error
}

type MetricsCloser interface {
	MetricsProvider
	io.Closer
}

type Pair struct {
	Key   string
	Value interface{}
}

func Field(key string, value interface{}) Pair {
	return Pair{Key: key, Value: value}
}

type providerKey struct{}

func WithProvider(ctx context.Context, p Provider) context.Context {
	return context.WithValue(ctx, providerKey{}, p)
}

// FromContext returns the Provider in ctx, or Noop.
func FromContext(ctx context.Context) Provider {
	if p, ok := ctx.Value(providerKey{}).(Provider); ok {
		return p
	}
	return Noop
}

func StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return FromContext(ctx).StartSpan(ctx, name)
}

// AddField adds an application field to the current span.
func AddField(ctx context.Context, key string, val interface{}) {
	FromContext(ctx).GetSpan(ctx).AddField(key, val)
}

func Log(ctx context.Context, name string, fields ...Pair) {
	FromContext(ctx).Log(ctx, name, fields...)
}

// LogError emits a span named name with err recorded as its result.
func LogError(ctx context.Context, name string, err error, fields ...Pair) {
	_, span := StartSpan(ctx, name)
	for _, f := range fields {
		span.AddField(f.Key, f.Value)
	}
	AddResultToSpan(span, err)
	span.End()
}

// Noop discards everything. It is what FromContext returns when ctx has no Provider.
var Noop Provider = noop{}

type noop struct{}

func (noop) StartSpan(ctx context.Context, _ string) (context.Context, Span) { return ctx, noop{} }
func (noop) GetSpan(context.Context) Span                                     { return noop{} }
func (noop) Log(context.Context, string, ...Pair)                             {}
func (noop) MetricsProvider() MetricsProvider                                 { return &statsd.NoOpClient{} }
func (noop) Close(context.Context)                                            {}

func (noop) AddField(string, interface{})    {}
func (noop) AddRawField(string, interface{}) {}
func (noop) RecordMetric(Metric)             {}
func (noop) End()                            {}
