package healthcheck

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/circleci/myk8sapp/httpserver"
	"github.com/circleci/myk8sapp/system"
)

// Load starts the admin API on addr. It should be called after everything else has been
// loaded into sys, so it picks up every health check.
func Load(ctx context.Context, addr string, sys *system.System, extra ...prometheus.Collector) (*httpserver.HTTPServer, error) {
	api, err := New(ctx, sys.HealthChecks(), extra...)
	if err != nil {
		return nil, fmt.Errorf("error creating admin API: %w", err)
	}

	return httpserver.Load(ctx, httpserver.Config{
		Name:    "admin",
		Addr:    addr,
		Handler: api.Handler(),
	}, sys)
}
