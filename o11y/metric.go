package o11y

type MetricKind int

const (
	// KindTimer reports the span's duration in milliseconds.
	KindTimer MetricKind = iota + 1
	// KindCount counts one per span.
	KindCount
	// KindGauge reports the numeric value of one of the span's fields.
	KindGauge
)

// Metric describes a statsd metric to derive from a span once it ends. Tags name span
// fields whose values become "field:value" tags; fields without a value are skipped.
type Metric struct {
	Kind  MetricKind
	Name  string
	Field string
	Tags  []string
}

func Timing(name string, tags ...string) Metric {
	return Metric{Kind: KindTimer, Name: name, Tags: tags}
}

func Count(name string, tags ...string) Metric {
	return Metric{Kind: KindCount, Name: name, Tags: tags}
}

func Gauge(name, field string, tags ...string) Metric {
	return Metric{Kind: KindGauge, Name: name, Field: field, Tags: tags}
}
