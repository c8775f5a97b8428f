package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/circleci/myk8sapp/o11y"
	"github.com/circleci/myk8sapp/system"
)

// ErrShuttingDown fails the readiness check once the server has started draining.
var ErrShuttingDown = errors.New("server is shutting down")

type Config struct {
	// Name identifies the server in spans, gauges and health checks, e.g. "api".
	Name string
	// Addr is a host:port, or a socket path for unix networks.
	Addr    string
	Handler http.Handler

	// Network is any net.Listen network. Defaults to tcp.
	Network string
	// ShutdownTimeout bounds the drain of in flight requests. Defaults to 10s.
	ShutdownTimeout time.Duration
}

func (c *Config) defaults() {
	if c.Network == "" {
		c.Network = "tcp"
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

type HTTPServer struct {
	cfg      Config
	listener *trackedListener
	server   *http.Server
	draining int32
}

// New listens on cfg.Addr immediately, so a taken port is reported at startup.
func New(ctx context.Context, cfg Config) (s *HTTPServer, err error) {
	cfg.defaults()
	_, span := o11y.StartSpan(ctx, "httpserver: listen "+cfg.Name)
	defer o11y.End(span, &err)
	span.AddField("server_name", cfg.Name)
	span.AddField("network", cfg.Network)

	ln, err := net.Listen(cfg.Network, cfg.Addr)
	if err != nil {
		return nil, err
	}
	span.AddField("address", ln.Addr().String())

	return &HTTPServer{
		cfg:      cfg,
		listener: &trackedListener{Listener: ln, name: cfg.Name},
		server: &http.Server{
			Handler:           cfg.Handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       55 * time.Second,
			WriteTimeout:      55 * time.Second,
		},
	}, nil
}

// Serve answers requests until ctx is done, then drains for up to ShutdownTimeout.
func (s *HTTPServer) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := s.server.Serve(s.listener)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		return s.drain(ctx)
	})
	return g.Wait()
}

func (s *HTTPServer) drain(ctx context.Context) error {
	atomic.StoreInt32(&s.draining, 1)
	o11y.Log(ctx, "httpserver: draining",
		o11y.Field("server_name", s.cfg.Name),
		o11y.Field("timeout", s.cfg.ShutdownTimeout),
	)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s server shutdown: %w", s.cfg.Name, err)
	}
	return nil
}

func (s *HTTPServer) Addr() string {
	return s.listener.Addr().String()
}

// MetricsProducer publishes the listener's connection counts.
func (s *HTTPServer) MetricsProducer() system.MetricProducer {
	return s.listener
}

// HealthChecks makes the server unready while it drains. It has no liveness check.
func (s *HTTPServer) HealthChecks() (name string, ready, live func(ctx context.Context) error) {
	ready = func(context.Context) error {
		if atomic.LoadInt32(&s.draining) == 1 {
			return ErrShuttingDown
		}
		return nil
	}
	return s.cfg.Name + "-server", ready, nil
}
