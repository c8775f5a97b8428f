package httpserver

import (
	"context"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/circleci/myk8sapp/system"
	"github.com/circleci/myk8sapp/testing/testcontext"
)

var healthz = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "healthy")
})

// serve runs s until the test ends, and returns a func that stops it and reports
// what Serve returned.
func serve(t *testing.T, s *HTTPServer) (stop func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(testcontext.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	var (
		once sync.Once
		err  error
	)
	stop = func() error {
		once.Do(func() {
			cancel()
			select {
			case err = <-done:
			case <-time.After(5 * time.Second):
				t.Error("server did not shut down")
			}
		})
		return err
	}
	t.Cleanup(func() { _ = stop() })
	return stop
}

func fetch(t *testing.T, c *http.Client, url string) (string, int) {
	t.Helper()
	res, err := c.Get(url)
	assert.Assert(t, err)
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	assert.Assert(t, err)
	return string(b), res.StatusCode
}

func TestServe_TCP(t *testing.T) {
	s, err := New(testcontext.Background(), Config{Name: "api", Addr: "localhost:0", Handler: healthz})
	assert.Assert(t, err)
	stop := serve(t, s)

	name, ready, live := s.HealthChecks()
	assert.Check(t, cmp.Equal(name, "api-server"))
	assert.Check(t, live == nil)
	assert.Check(t, ready(context.Background()))

	body, status := fetch(t, http.DefaultClient, "http://"+s.Addr()+"/healthz")
	assert.Check(t, cmp.Equal(status, http.StatusOK))
	assert.Check(t, cmp.Equal(body, "healthy"))

	assert.Check(t, stop())
	assert.Check(t, cmp.ErrorIs(ready(context.Background()), ErrShuttingDown))
}

func TestServe_Unix(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "api.sock")
	s, err := New(testcontext.Background(), Config{
		Name:    "api",
		Addr:    socket,
		Network: "unix",
		Handler: healthz,
	})
	assert.Assert(t, err)
	serve(t, s)

	c := &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socket)
		},
	}}
	body, status := fetch(t, c, "http://api/healthz")
	assert.Check(t, cmp.Equal(status, http.StatusOK))
	assert.Check(t, cmp.Equal(body, "healthy"))
}

func TestServe_DrainsInFlightRequests(t *testing.T) {
	arrived := make(chan struct{})
	release := make(chan struct{})
	s, err := New(testcontext.Background(), Config{
		Name: "api",
		Addr: "localhost:0",
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			close(arrived)
			<-release
			healthz(w, r)
		}),
		ShutdownTimeout: 5 * time.Second,
	})
	assert.Assert(t, err)
	stop := serve(t, s)

	got := make(chan *http.Response, 1)
	go func() {
		res, err := http.Get("http://" + s.Addr() + "/healthz")
		if err != nil {
			t.Error(err)
		}
		got <- res
	}()
	<-arrived

	stopped := make(chan error, 1)
	go func() { stopped <- stop() }()
	time.Sleep(50 * time.Millisecond)
	close(release)

	res := <-got
	assert.Assert(t, res != nil)
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	assert.Check(t, err)
	assert.Check(t, cmp.Equal(res.StatusCode, http.StatusOK))
	assert.Check(t, cmp.Equal(string(b), "healthy"))
	assert.Check(t, <-stopped)
}

func TestNew_AddressInUse(t *testing.T) {
	ctx := testcontext.Background()
	first, err := New(ctx, Config{Name: "api", Addr: "localhost:0"})
	assert.Assert(t, err)
	t.Cleanup(func() { _ = first.listener.Close() })

	_, err = New(ctx, Config{Name: "admin", Addr: first.Addr()})
	assert.Check(t, cmp.ErrorContains(err, "address already in use"))
}

func TestLoad(t *testing.T) {
	ctx := testcontext.Background()
	sys := system.New()

	s, err := Load(ctx, Config{Name: "api", Addr: "localhost:0", Handler: healthz}, sys)
	assert.Assert(t, err)
	t.Cleanup(func() { _ = s.listener.Close() })

	checks := sys.HealthChecks()
	assert.Assert(t, cmp.Len(checks, 1))
	name, _, _ := checks[0].HealthChecks()
	assert.Check(t, cmp.Equal(name, "api-server"))

	_, err = Load(ctx, Config{Name: "admin", Addr: s.Addr()}, sys)
	assert.Check(t, cmp.ErrorContains(err, `error starting "admin" server`))
}
