// Package o11y builds the service's o11y provider from its command line settings.
package o11y

import (
	"context"
	"fmt"
	"os"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/rollbar/rollbar-go"

	"github.com/circleci/myk8sapp/config/secret"
	"github.com/circleci/myk8sapp/o11y"
	"github.com/circleci/myk8sapp/o11y/honeycomb"
)

type Config struct {
	Service string
	Version string
	// Mode distinguishes processes of the same service, e.g. "api".
	Mode string

	// Format is the stderr output: json, text, color or none.
	Format string
	Debug  bool

	HoneycombEnabled bool
	HoneycombDataset string
	HoneycombKey     secret.String

	// Statsd is the agent address. Metrics are discarded when it is empty.
	Statsd         string
	StatsNamespace string

	// RollbarToken enables panic reporting when set.
	RollbarToken      secret.String
	RollbarEnv        string
	RollbarServerRoot string
	RollbarDisabled   bool
}

// Setup returns ctx carrying the provider, and a func that flushes and closes it.
func Setup(ctx context.Context, c Config) (context.Context, func(context.Context), error) {
	host, _ := os.Hostname()

	metrics, err := statsdClient(c, host)
	if err != nil {
		return nil, nil, fmt.Errorf("statsd: %w", err)
	}

	fields := map[string]interface{}{
		"service": c.Service,
		"version": c.Version,
	}
	if c.Mode != "" {
		fields["mode"] = c.Mode
	}
	hc := honeycomb.Config{
		Service: c.Service,
		Dataset: c.HoneycombDataset,
		Key:     c.HoneycombKey.Raw(),
		Send:    c.HoneycombEnabled,
		Format:  c.Format,
		Metrics: metrics,
		Fields:  fields,
		Debug:   c.Debug,
	}
	if err := hc.Validate(); err != nil {
		_ = metrics.Close()
		return nil, nil, err
	}

	var p o11y.Provider = honeycomb.New(hc)
	if c.RollbarToken != "" {
		rb := rollbar.NewAsync(c.RollbarToken.Raw(), c.RollbarEnv, c.Version, host, c.RollbarServerRoot)
		rb.SetEnabled(!c.RollbarDisabled)
		rb.Message(rollbar.INFO, "Deployment")
		p = &withRollbar{Provider: p, rollbar: rb}
	}

	return o11y.WithProvider(ctx, p), p.Close, nil
}

func statsdClient(c Config, host string) (o11y.MetricsCloser, error) {
	if c.Statsd == "" {
		return &statsd.NoOpClient{}, nil
	}

	tags := []string{"service:" + c.Service, "version:" + c.Version, "hostname:" + host}
	if c.Mode != "" {
		tags = append(tags, "mode:"+c.Mode)
	}
	return statsd.New(c.Statsd, statsd.WithNamespace(c.StatsNamespace), statsd.WithTags(tags))
}

// withRollbar makes o11y.HandlePanic report to rollbar.
type withRollbar struct {
	o11y.Provider
	rollbar *rollbar.Client
}

func (p *withRollbar) RollBarClient() *rollbar.Client {
	return p.rollbar
}

func (p *withRollbar) Close(ctx context.Context) {
	p.Provider.Close(ctx)
	_ = p.rollbar.Close()
}
