package system

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/circleci/myk8sapp/o11y"
	"github.com/circleci/myk8sapp/termination"
)

// HealthChecker reports the readiness and liveness of one component. Either check may
// be nil.
type HealthChecker interface {
	HealthChecks() (name string, ready, live func(ctx context.Context) error)
}

type System struct {
	services  []func(context.Context) error
	checks    []HealthChecker
	producers []MetricProducer
	cleanups  []func(context.Context) error
}

func New() *System {
	return &System{}
}

// waitForSignal is swapped out in tests.
var waitForSignal = termination.Handle

// Run blocks until the process is signalled or a service fails, then cancels the rest.
// Gauges from every MetricProducer are reported while it runs.
func (s *System) Run(ctx context.Context, shutdownDelay time.Duration) (err error) {
	ctx, span := o11y.StartSpan(ctx, "system: run")
	defer o11y.End(span, &err)
	span.AddField("services", len(s.services))
	span.RecordMetric(o11y.Timing("system.run", "result"))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return waitForSignal(ctx, shutdownDelay)
	})
	for _, svc := range s.services {
		svc := svc
		g.Go(func() error {
			return svc(ctx)
		})
	}
	if len(s.producers) > 0 {
		g.Go(func() error {
			reportMetrics(ctx, s.producers, reportInterval)
			return nil
		})
	}
	return g.Wait()
}

// AddService registers a func that runs until ctx is cancelled. Returning early, with
// or without an error, stops the whole system.
func (s *System) AddService(svc func(ctx context.Context) error) {
	s.services = append(s.services, svc)
}

func (s *System) AddHealthCheck(c HealthChecker) {
	s.checks = append(s.checks, c)
}

func (s *System) AddMetrics(p MetricProducer) {
	s.producers = append(s.producers, p)
}

func (s *System) AddCleanup(f func(ctx context.Context) error) {
	s.cleanups = append(s.cleanups, f)
}

func (s *System) HealthChecks() []HealthChecker {
	return s.checks
}

// Cleanup runs the cleanups, last registered first. Failures are logged, not returned.
func (s *System) Cleanup(ctx context.Context) {
	for i := len(s.cleanups) - 1; i >= 0; i-- {
		if err := s.cleanups[i](ctx); err != nil {
			o11y.LogError(ctx, "system: cleanup", err)
		}
	}
}
