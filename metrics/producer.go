package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricName satisfies system.MetricProducer
func (s *Store) MetricName() string {
	if s.namespace == "" {
		return "requests"
	}
	return s.namespace + "-requests"
}

// Gauges satisfies system.MetricProducer, so the same values the /metrics page shows
// are also published to statsd by the system metrics reporter.
func (s *Store) Gauges(_ context.Context) map[string]float64 {
	snap := s.Snapshot()
	return map[string]float64{
		requestsTotal: float64(snap.RequestsTotal),
		errorsTotal:   float64(snap.ErrorsTotal),
		lastLatency:   snap.LastRequestLatencySeconds,
	}
}

// Collector adapts a Store to a prometheus.Collector, for registries that want the
// request counters next to the Go runtime and process collectors.
type Collector struct {
	store *Store

	requests *prometheus.Desc
	errors   *prometheus.Desc
	latency  *prometheus.Desc
}

func NewCollector(s *Store) *Collector {
	return &Collector{
		store: s,
		requests: prometheus.NewDesc(s.name(requestsTotal),
			"Total requests received by the app", nil, nil),
		errors: prometheus.NewDesc(s.name(errorsTotal),
			"Total errors encountered", nil, nil),
		latency: prometheus.NewDesc(s.name(lastLatency),
			"Latency of last request in seconds", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requests
	ch <- c.errors
	ch <- c.latency
}

// Collect takes one snapshot, so the three values are always from the same pass.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.store.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(snap.RequestsTotal))
	ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(snap.ErrorsTotal))
	ch <- prometheus.MustNewConstMetric(c.latency, prometheus.GaugeValue, snap.LastRequestLatencySeconds)
}
