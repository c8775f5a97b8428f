// Package honeycomb is the o11y.Provider the service runs with. Spans go through the
// honeycomb beeline, are written to a local writer in the configured format and, when
// enabled, are also sent to the honeycomb API. Metrics recorded on spans are published
// to a statsd style sink just before each span is sent.
package honeycomb

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/honeycombio/beeline-go"
	"github.com/honeycombio/beeline-go/client"
	"github.com/honeycombio/beeline-go/trace"
	"github.com/honeycombio/libhoney-go"
	"github.com/honeycombio/libhoney-go/transmission"

	"github.com/circleci/myk8sapp/o11y"
)

type Config struct {
	Service string
	Dataset string
	Key     string
	// Host overrides the honeycomb API address.
	Host string
	// Send delivers spans to the honeycomb API as well as to Writer.
	Send bool
	// Format of the local output: json, text, color or none.
	Format string
	// Writer receives the local output. Defaults to stderr.
	Writer io.Writer
	// Sender replaces the honeycomb API sender when Send is set.
	Sender transmission.Sender
	// Metrics receives span metrics. It is closed with the provider.
	Metrics o11y.MetricsCloser
	// Fields are added to every span.
	Fields map[string]interface{}
	Debug  bool
}

func (c Config) Validate() error {
	if c.Send && c.Key == "" && c.Sender == nil {
		return errors.New("a honeycomb key is required to send traces")
	}
	return nil
}

func (c Config) senders() []transmission.Sender {
	w := c.Writer
	if w == nil {
		w = os.Stderr
	}

	var out []transmission.Sender
	if c.Send {
		if c.Sender != nil {
			out = append(out, c.Sender)
		} else {
			out = append(out, &transmission.Honeycomb{
				MaxBatchSize:         libhoney.DefaultMaxBatchSize,
				BatchTimeout:         libhoney.DefaultBatchTimeout,
				MaxConcurrentBatches: libhoney.DefaultMaxConcurrentBatches,
				PendingWorkCapacity:  libhoney.DefaultPendingWorkCapacity,
				UserAgentAddition:    c.Service,
			})
		}
	}

	switch c.Format {
	case "none":
	case "text":
		out = append(out, &textSender{w: w})
	case "color", "colour":
		out = append(out, &textSender{w: w, colour: true})
	default:
		out = append(out, &transmission.WriterSender{W: w})
	}
	return out
}

type Provider struct {
	metrics o11y.MetricsCloser
}

// New initialises the beeline. The beeline is process global, so only the most recently
// created Provider is live.
func New(conf Config) *Provider {
	var tx transmission.Sender = &transmission.DiscardSender{}
	switch s := conf.senders(); len(s) {
	case 0:
	case 1:
		tx = s[0]
	default:
		tx = fanout(s)
	}

	// libhoney only fails here on invalid config, which it also logs.
	lc, _ := libhoney.NewClient(libhoney.ClientConfig{
		APIKey:       conf.Key,
		APIHost:      conf.Host,
		Dataset:      conf.Dataset,
		Transmission: tx,
	})
	beeline.Init(beeline.Config{
		Client:      lc,
		WriteKey:    conf.Key,
		ServiceName: conf.Service,
		Debug:       conf.Debug,
		PresendHook: metricHook{metrics: conf.Metrics}.presend,
	})
	for k, v := range conf.Fields {
		client.AddField(k, v)
	}

	return &Provider{metrics: conf.Metrics}
}

func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, o11y.Span) {
	var s *trace.Span
	if parent := trace.GetSpanFromContext(ctx); parent != nil {
		ctx, s = parent.CreateChild(ctx)
	} else {
		var tr *trace.Trace
		ctx, tr = trace.NewTrace(ctx, nil)
		s = tr.GetRootSpan()
	}
	s.AddField("name", name)
	return ctx, &span{span: s}
}

func (p *Provider) GetSpan(ctx context.Context) o11y.Span {
	if s := trace.GetSpanFromContext(ctx); s != nil {
		return &span{span: s}
	}
	return o11y.Noop.GetSpan(ctx)
}

func (p *Provider) Log(ctx context.Context, name string, fields ...o11y.Pair) {
	_, s := p.StartSpan(ctx, name)
	for _, f := range fields {
		s.AddField(f.Key, f.Value)
	}
	s.End()
}

func (p *Provider) MetricsProvider() o11y.MetricsProvider {
	if p.metrics == nil {
		return &statsd.NoOpClient{}
	}
	return p.metrics
}

func (p *Provider) Close(context.Context) {
	beeline.Close()
	if p.metrics != nil {
		_ = p.metrics.Close()
	}
}
