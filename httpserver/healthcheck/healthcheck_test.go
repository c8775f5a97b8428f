package healthcheck

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/circleci/myk8sapp/httpserver"
	"github.com/circleci/myk8sapp/metrics"
	"github.com/circleci/myk8sapp/system"
	"github.com/circleci/myk8sapp/testing/testcontext"
)

func TestAdmin_ReadyUntilAPIServerStops(t *testing.T) {
	ctx := testcontext.Background()
	apiServer, err := httpserver.New(ctx, httpserver.Config{
		Name:    "api",
		Addr:    "localhost:0",
		Handler: http.NotFoundHandler(),
	})
	assert.Assert(t, err)

	admin := serveAdmin(t, []system.HealthChecker{apiServer})

	serveCtx, stop := context.WithCancel(ctx)
	g, serveCtx := errgroup.WithContext(serveCtx)
	g.Go(func() error { return apiServer.Serve(serveCtx) })

	body, status := get(t, admin+"/ready")
	assert.Check(t, cmp.Equal(status, http.StatusOK))
	assert.Check(t, cmp.Contains(body, `"status":"OK"`))

	stop()
	assert.Check(t, g.Wait())

	body, status = get(t, admin+"/ready")
	assert.Check(t, cmp.Equal(status, http.StatusServiceUnavailable))
	assert.Check(t, cmp.Contains(body, `"api-server":"server is shutting down"`))

	// shutting down is not a reason to be restarted
	_, status = get(t, admin+"/live")
	assert.Check(t, cmp.Equal(status, http.StatusOK))
}

func TestAdmin_LivenessFailure(t *testing.T) {
	admin := serveAdmin(t, []system.HealthChecker{checker{
		name: "store",
		live: func(context.Context) error { return errors.New("store snapshot stalled") },
	}})

	body, status := get(t, admin+"/live")
	assert.Check(t, cmp.Equal(status, http.StatusServiceUnavailable))
	assert.Check(t, cmp.Contains(body, `"status":"Unavailable"`))

	_, status = get(t, admin+"/ready")
	assert.Check(t, cmp.Equal(status, http.StatusOK))
}

func TestAdmin_Metrics(t *testing.T) {
	store := metrics.New("myk8sapp")
	store.Record(false, 20*time.Millisecond)
	store.Record(true, 30*time.Millisecond)

	admin := serveAdmin(t, nil, metrics.NewCollector(store))

	body, status := get(t, admin+"/metrics")
	assert.Check(t, cmp.Equal(status, http.StatusOK))
	for _, want := range []string{
		"myk8sapp_requests_total 2\n",
		"myk8sapp_errors_total 1\n",
		"myk8sapp_last_request_latency_seconds 0.03\n",
		"go_goroutines ",
		"process_start_time_seconds ",
	} {
		assert.Check(t, cmp.Contains(body, want))
	}
}

func TestAdmin_Pprof(t *testing.T) {
	admin := serveAdmin(t, nil)

	body, status := get(t, admin+"/debug/pprof/")
	assert.Check(t, cmp.Equal(status, http.StatusOK))
	assert.Check(t, cmp.Contains(body, "goroutine"))

	for _, path := range []string{"/debug/pprof/goroutine?debug=1", "/debug/pprof/cmdline", "/debug/pprof/symbol"} {
		_, status = get(t, admin+path)
		assert.Check(t, cmp.Equal(status, http.StatusOK), path)
	}

	_, status = get(t, admin+"/debug/pprof/no-such-profile")
	assert.Check(t, cmp.Equal(status, http.StatusNotFound))
}

func TestNew_DuplicateCollector(t *testing.T) {
	store := metrics.New("myk8sapp")
	_, err := New(testcontext.Background(), nil, metrics.NewCollector(store), metrics.NewCollector(store))
	assert.Check(t, cmp.ErrorContains(err, "failed to register collector"))
}

func TestLoad_AddsAdminServer(t *testing.T) {
	ctx := testcontext.Background()
	sys := system.New()
	_, err := httpserver.Load(ctx, httpserver.Config{
		Name:    "api",
		Addr:    "localhost:0",
		Handler: http.NotFoundHandler(),
	}, sys)
	assert.Assert(t, err)

	admin, err := Load(ctx, "localhost:0", sys)
	assert.Assert(t, err)
	assert.Check(t, admin.Addr() != "")

	var names []string
	for _, c := range sys.HealthChecks() {
		name, _, _ := c.HealthChecks()
		names = append(names, name)
	}
	assert.Check(t, cmp.DeepEqual(names, []string{"api-server", "admin-server"}))
}

func serveAdmin(t *testing.T, checked []system.HealthChecker, extra ...prometheus.Collector) string {
	t.Helper()
	a, err := New(testcontext.Background(), checked, extra...)
	assert.Assert(t, err)
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func get(t *testing.T, url string) (string, int) {
	t.Helper()
	res, err := http.Get(url)
	assert.Assert(t, err)
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	assert.Assert(t, err)
	return string(b), res.StatusCode
}

type checker struct {
	name        string
	ready, live func(context.Context) error
}

func (c checker) HealthChecks() (string, func(context.Context) error, func(context.Context) error) {
	return c.name, c.ready, c.live
}
