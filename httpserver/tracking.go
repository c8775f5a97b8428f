package httpserver

import (
	"context"
	"net"
	"sync"
)

// trackedListener wraps a net.Listener to count accepted and open connections, grouped
// by remote host, so the spread of clients across pods can be watched.
type trackedListener struct {
	net.Listener

	name string

	mu       sync.Mutex
	accepted int
	active   int
	remotes  map[string]int
}

func (l *trackedListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return conn, err
	}
	tc := &trackedConn{Conn: conn, l: l, host: remoteHost(conn)}
	l.opened(tc.host)
	return tc, nil
}

// MetricName satisfies system.MetricProducer.
func (l *trackedListener) MetricName() string {
	return l.name + "-listener"
}

// Gauges satisfies system.MetricProducer.
func (l *trackedListener) Gauges(_ context.Context) map[string]float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	maxPer, minPer := 0, 0
	for _, n := range l.remotes {
		if n > maxPer {
			maxPer = n
		}
		if minPer == 0 || n < minPer {
			minPer = n
		}
	}
	return map[string]float64{
		"number_of_remotes":          float64(len(l.remotes)),
		"total_connections":          float64(l.accepted),
		"active_connections":         float64(l.active),
		"max_connections_per_remote": float64(maxPer),
		"min_connections_per_remote": float64(minPer),
	}
}

func (l *trackedListener) opened(host string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.remotes == nil {
		l.remotes = map[string]int{}
	}
	l.accepted++
	l.active++
	l.remotes[host]++
}

func (l *trackedListener) closed(host string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active--
	l.remotes[host]--
	if l.remotes[host] <= 0 {
		delete(l.remotes, host)
	}
}

// remoteHost is the remote address without its port. Unix sockets have no port and
// are returned as is.
func remoteHost(conn net.Conn) string {
	addr := conn.RemoteAddr().String()
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

type trackedConn struct {
	net.Conn

	l    *trackedListener
	host string
	once sync.Once
}

// Close may be called more than once by net/http, but is only counted once.
func (c *trackedConn) Close() error {
	c.once.Do(func() { c.l.closed(c.host) })
	return c.Conn.Close()
}
