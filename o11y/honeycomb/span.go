package honeycomb

import (
	"fmt"
	"sync"
	"time"

	"github.com/honeycombio/beeline-go/trace"

	"github.com/circleci/myk8sapp/o11y"
)

// metricsField carries a span's pending metrics to the presend hook, which removes it.
const metricsField = "__o11y_metrics__"

// pending holds the metrics recorded against each live span, since GetSpan hands out
// a fresh wrapper every time.
var pending sync.Map // *trace.Span -> []o11y.Metric

type span struct {
	span *trace.Span
}

func (s *span) AddField(key string, val interface{}) {
	s.span.AddField("app."+key, plain(val))
}

func (s *span) AddRawField(key string, val interface{}) {
	s.span.AddField(key, plain(val))
}

func (s *span) RecordMetric(m o11y.Metric) {
	var metrics []o11y.Metric
	if v, ok := pending.Load(s.span); ok {
		metrics = v.([]o11y.Metric)
	}
	metrics = append(metrics, m)
	pending.Store(s.span, metrics)
	s.span.AddField(metricsField, metrics)
}

func (s *span) End() {
	s.span.Send()
	pending.Delete(s.span)
}

func plain(val interface{}) interface{} {
	if err, ok := val.(error); ok {
		return err.Error()
	}
	return val
}

type metricHook struct {
	metrics o11y.MetricsProvider
}

func (h metricHook) presend(fields map[string]interface{}) {
	metrics, _ := fields[metricsField].([]o11y.Metric)
	delete(fields, metricsField)
	if h.metrics == nil {
		return
	}
	for _, m := range metrics {
		h.publish(m, fields)
	}
}

func (h metricHook) publish(m o11y.Metric, fields map[string]interface{}) {
	tags := make([]string, 0, len(m.Tags))
	for _, name := range m.Tags {
		if v, ok := lookup(fields, name); ok {
			tags = append(tags, fmt.Sprintf("%s:%v", name, v))
		}
	}

	switch m.Kind {
	case o11y.KindCount:
		_ = h.metrics.Count(m.Name, 1, tags, 1)
	case o11y.KindTimer:
		if ms, ok := number(fields["duration_ms"]); ok {
			_ = h.metrics.TimeInMilliseconds(m.Name, ms, tags, 1)
		}
	case o11y.KindGauge:
		v, _ := lookup(fields, m.Field)
		if f, ok := number(v); ok {
			_ = h.metrics.Gauge(m.Name, f, tags, 1)
		}
	}
}

// lookup finds an application field with or without its "app." prefix.
func lookup(fields map[string]interface{}, name string) (interface{}, bool) {
	if v, ok := fields["app."+name]; ok {
		return v, true
	}
	v, ok := fields[name]
	return v, ok
}

// number converts numeric field values to float64. Durations become milliseconds.
func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case time.Duration:
		return float64(n) / float64(time.Millisecond), true
	}
	return 0, false
}
