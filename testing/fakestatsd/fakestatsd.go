// Package fakestatsd listens for statsd datagrams on a local UDP port and keeps what
// it receives, so tests can check what the service published.
package fakestatsd

import (
	"net"
	"strings"
	"sync"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/poll"
)

// Metric is one statsd line, e.g. "myk8sapp.gauge.myk8sapp_requests.requests_total:3|g|#service:myk8sapp".
type Metric struct {
	Name  string
	Value string
	// Type is the statsd type: g, c, ms, h, d or s.
	Type string
	Tags []string
}

type Server struct {
	conn net.PacketConn

	mu       sync.Mutex
	received []Metric
}

// New listens on a random loopback port until the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	assert.Assert(t, err)

	s := &Server{conn: conn}
	go s.read()
	t.Cleanup(func() { _ = conn.Close() })
	return s
}

func (s *Server) Addr() string {
	return s.conn.LocalAddr().String()
}

func (s *Server) Metrics() []Metric {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Metric(nil), s.received...)
}

// Named returns what was received under the fully qualified name.
func (s *Server) Named(name string) []Metric {
	var out []Metric
	for _, m := range s.Metrics() {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// WaitFor polls until name has been received, and returns its first sample.
func (s *Server) WaitFor(t poll.TestingT, name string) Metric {
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if len(s.Named(name)) == 0 {
			return poll.Continue("%s not received, have %d metrics", name, len(s.Metrics()))
		}
		return poll.Success()
	})
	return s.Named(name)[0]
}

func (s *Server) read() {
	buf := make([]byte, 64*1024)
	for {
		n, _, err := s.conn.ReadFrom(buf)
		if err != nil {
			return
		}
		var batch []Metric
		for _, line := range strings.Split(string(buf[:n]), "\n") {
			if m, ok := parse(strings.TrimSpace(line)); ok {
				batch = append(batch, m)
			}
		}
		s.mu.Lock()
		s.received = append(s.received, batch...)
		s.mu.Unlock()
	}
}

// parse reads name:value|type[|@rate][|#tag,tag].
func parse(line string) (Metric, bool) {
	name, rest, ok := strings.Cut(line, ":")
	if !ok || name == "" {
		return Metric{}, false
	}
	parts := strings.Split(rest, "|")
	if len(parts) < 2 {
		return Metric{}, false
	}
	m := Metric{Name: name, Value: parts[0], Type: parts[1]}
	for _, p := range parts[2:] {
		if strings.HasPrefix(p, "#") {
			m.Tags = strings.Split(p[1:], ",")
		}
	}
	return m, true
}
