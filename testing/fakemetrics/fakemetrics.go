// Package fakemetrics is an in-memory o11y.MetricsProvider that remembers every call.
package fakemetrics

import (
	"sort"
	"strings"
	"sync"

	gocmp "github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Call is one metric sent. Counts are stored as float values. The sample rate is not
// kept, since the service always sends at a rate of 1.
type Call struct {
	Kind  string
	Name  string
	Value float64
	Tags  []string
}

// CMPCalls ignores call order and tag order.
var CMPCalls = gocmp.Options{
	cmpopts.SortSlices(func(a, b string) bool { return a < b }),
	cmpopts.SortSlices(func(a, b Call) bool { return a.key() < b.key() }),
}

// CMPTimings is CMPCalls with values within 10 of each other treated as equal, for
// comparing calls that include timings.
var CMPTimings = append(gocmp.Options{cmpopts.EquateApprox(0, 10)}, CMPCalls...)

func (c Call) key() string {
	tags := append([]string(nil), c.Tags...)
	sort.Strings(tags)
	return c.Kind + "|" + c.Name + "|" + strings.Join(tags, ",")
}

type Provider struct {
	mu     sync.Mutex
	calls  []Call
	closed bool
}

func (p *Provider) TimeInMilliseconds(name string, value float64, tags []string, _ float64) error {
	return p.add(Call{Kind: "timer", Name: name, Value: value, Tags: tags})
}

func (p *Provider) Gauge(name string, value float64, tags []string, _ float64) error {
	return p.add(Call{Kind: "gauge", Name: name, Value: value, Tags: tags})
}

func (p *Provider) Count(name string, value int64, tags []string, _ float64) error {
	return p.add(Call{Kind: "count", Name: name, Value: float64(value), Tags: tags})
}

func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *Provider) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// Named filters Calls down to one metric name.
func (p *Provider) Named(name string) []Call {
	var out []Call
	for _, c := range p.Calls() {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
}

func (p *Provider) add(c Call) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, c)
	return nil
}
