/*
Package metrics holds the in-process request counters for the service and renders
them in the Prometheus text exposition format (version 0.0.4).

A Store is explicitly constructed and passed to whatever needs to record or read
it. All of its fields are guarded by a single mutex, so a reader always sees a
request counted together with the latency recorded for it.
*/
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	requestsTotal = "requests_total"
	errorsTotal   = "errors_total"
	lastLatency   = "last_request_latency_seconds"
)

type Store struct {
	namespace string

	mu       sync.Mutex
	requests uint64
	errors   uint64
	latency  float64
}

// Snapshot is a consistent copy of the store's values at a point in time.
type Snapshot struct {
	RequestsTotal             uint64
	ErrorsTotal               uint64
	LastRequestLatencySeconds float64
}

// New returns an empty store whose metric names are prefixed with namespace and an underscore.
func New(namespace string) *Store {
	return &Store{namespace: namespace}
}

// Record counts one completed request. Every error is also a request, so errors can never
// exceed requests. The latency gauge is overwritten, not accumulated.
func (s *Store) Record(isError bool, latency time.Duration) {
	if latency < 0 {
		latency = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
	if isError {
		s.errors++
	}
	s.latency = latency.Seconds()
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		RequestsTotal:             s.requests,
		ErrorsTotal:               s.errors,
		LastRequestLatencySeconds: s.latency,
	}
}

// Render returns the store in the Prometheus text format. The values are snapshotted under
// the lock; formatting happens outside it.
func (s *Store) Render() string {
	snap := s.Snapshot()

	lines := make([]string, 0, 10)
	lines = appendMetric(lines, s.name(requestsTotal), "Total requests received by the app", "counter",
		fmt.Sprintf("%d", snap.RequestsTotal))
	lines = appendMetric(lines, s.name(errorsTotal), "Total errors encountered", "counter",
		fmt.Sprintf("%d", snap.ErrorsTotal))
	lines = appendMetric(lines, s.name(lastLatency), "Latency of last request in seconds", "gauge",
		fmt.Sprintf("%.6f", snap.LastRequestLatencySeconds))
	// trailing blank line
	lines = append(lines, "")

	return strings.Join(lines, "\n")
}

func appendMetric(lines []string, name, help, typ, value string) []string {
	return append(lines,
		fmt.Sprintf("# HELP %s %s", name, help),
		fmt.Sprintf("# TYPE %s %s", name, typ),
		fmt.Sprintf("%s %s", name, value),
	)
}

func (s *Store) name(metric string) string {
	if s.namespace == "" {
		return metric
	}
	return s.namespace + "_" + metric
}
