package system

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/circleci/myk8sapp/o11y"
)

// MetricProducer exposes instantaneous values to be published as statsd gauges named
// "gauge.<MetricName>.<key>". Dashes in the name become underscores.
type MetricProducer interface {
	MetricName() string
	Gauges(ctx context.Context) map[string]float64
}

const reportInterval = 10 * time.Second

// reportMetrics publishes every producer's gauges straight away and then once per
// interval, until ctx is done.
func reportMetrics(ctx context.Context, producers []MetricProducer, interval time.Duration) {
	ticker := backoff.NewTicker(backoff.WithContext(backoff.NewConstantBackOff(interval), ctx))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ticker.C:
			if !ok {
				return
			}
			report(ctx, producers)
		}
	}
}

// report publishes one round of gauges. A panicking producer is logged and skipped
// until the next round.
func report(ctx context.Context, producers []MetricProducer) {
	ctx, span := o11y.StartSpan(ctx, "system: report metrics")
	var err error
	defer o11y.End(span, &err)
	defer func() {
		if r := recover(); r != nil {
			err = o11y.HandlePanic(ctx, span, r, nil)
		}
	}()

	metrics := o11y.FromContext(ctx).MetricsProvider()
	published := 0
	for _, p := range producers {
		prefix := "gauge." + strings.ReplaceAll(p.MetricName(), "-", "_") + "."
		for key, value := range p.Gauges(ctx) {
			_ = metrics.Gauge(prefix+key, value, nil, 1)
			published++
		}
	}
	span.AddField("gauges", published)
}
