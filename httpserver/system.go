package httpserver

import (
	"context"
	"fmt"

	"github.com/circleci/myk8sapp/system"
)

// Load creates the server and registers it with sys as a service, a metric producer
// and a health check.
func Load(ctx context.Context, cfg Config, sys *system.System) (*HTTPServer, error) {
	server, err := New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("error starting %q server: %w", cfg.Name, err)
	}

	sys.AddService(server.Serve)
	sys.AddMetrics(server.MetricsProducer())
	sys.AddHealthCheck(server)
	return server, nil
}
