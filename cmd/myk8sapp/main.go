package main

import (
	"context"
	"errors"
	"log" //nolint:depguard // non-o11y log is allowed for a top-level fatal
	"net"
	"strconv"
	"time"

	"github.com/alecthomas/kong"

	"github.com/circleci/myk8sapp/api"
	"github.com/circleci/myk8sapp/config/o11y"
	"github.com/circleci/myk8sapp/config/secret"
	"github.com/circleci/myk8sapp/httpserver"
	"github.com/circleci/myk8sapp/httpserver/healthcheck"
	"github.com/circleci/myk8sapp/metrics"
	o11ycore "github.com/circleci/myk8sapp/o11y"
	"github.com/circleci/myk8sapp/system"
	"github.com/circleci/myk8sapp/termination"
)

// Set at build time with -ldflags "-X main.Version=... -X main.Date=..."
var (
	Version = "dev"
	Date    = "now"
)

const serviceName = "myk8sapp"

type cli struct {
	Host          string        `env:"HOST" default:"0.0.0.0" help:"The interface for the app to listen on"`
	Port          int           `env:"PORT" default:"8080" help:"The port for the app to listen on"`
	AdminAddr     string        `env:"ADMIN_ADDR" default:"" help:"The address for the admin api to listen on, disabled when empty"`
	ShutdownDelay time.Duration `env:"SHUTDOWN_DELAY" default:"0s" help:"Delay shutdown by this amount" hidden:""`

	O11yStatsd           string        `name:"o11y-statsd" env:"O11Y_STATSD" default:"" help:"Address to send statsd metrics"`
	O11yHoneycombEnabled bool          `name:"o11y-honeycomb" env:"O11Y_HONEYCOMB" default:"false" help:"Send traces to honeycomb"`
	O11yHoneycombDataset string        `name:"o11y-honeycomb-dataset" env:"O11Y_HONEYCOMB_DATASET" default:"myk8sapp"`
	O11yHoneycombKey     secret.String `name:"o11y-honeycomb-key" env:"O11Y_HONEYCOMB_KEY"`
	O11yFormat           string        `name:"o11y-format" env:"O11Y_FORMAT" enum:"json,color,text,none" default:"text" help:"Format used for stderr logging"`
	O11yRollbarToken     secret.String `name:"o11y-rollbar-token" env:"O11Y_ROLLBAR_TOKEN"`
	O11yRollbarEnv       string        `name:"o11y-rollbar-env" env:"O11Y_ROLLBAR_ENV" default:"production"`
}

func main() {
	c := cli{}
	kong.Parse(&c,
		kong.Name(serviceName),
		kong.Description("A minimal HTTP service with a Prometheus style metrics page."),
	)

	err := run(c, Version, Date)
	if err != nil && !errors.Is(err, termination.ErrTerminated) {
		log.Fatal("Unexpected Error: ", err)
	}
	log.Println("exited 0")
}

func run(c cli, version, date string) (err error) {
	ctx, o11yCleanup, err := loadO11y(c, version)
	if err != nil {
		return err
	}
	defer o11yCleanup(ctx)

	ctx, runSpan := o11ycore.StartSpan(ctx, "main: run")
	defer o11ycore.End(runSpan, &err)

	sys := system.New()
	defer sys.Cleanup(ctx)

	store := metrics.New(serviceName)
	sys.AddMetrics(store)

	a, srv, err := loadAPI(ctx, c, store, sys)
	if err != nil {
		return err
	}

	if c.AdminAddr != "" {
		// Should be last so it collects all the health checks
		_, err = healthcheck.Load(ctx, c.AdminAddr, sys, metrics.NewCollector(store))
		if err != nil {
			return err
		}
	}

	o11ycore.Log(ctx, "starting server",
		o11ycore.Field("address", srv.Addr()),
		o11ycore.Field("endpoints", a.Endpoints()),
		o11ycore.Field("version", version),
		o11ycore.Field("date", date),
	)

	return sys.Run(ctx, c.ShutdownDelay)
}

func loadO11y(c cli, version string) (context.Context, func(context.Context), error) {
	return o11y.Setup(context.Background(), o11y.Config{
		Statsd:            c.O11yStatsd,
		RollbarToken:      c.O11yRollbarToken,
		RollbarEnv:        c.O11yRollbarEnv,
		RollbarServerRoot: "github.com/circleci/myk8sapp",
		HoneycombEnabled:  c.O11yHoneycombEnabled,
		HoneycombDataset:  c.O11yHoneycombDataset,
		HoneycombKey:      c.O11yHoneycombKey,
		Format:            c.O11yFormat,
		Version:           version,
		Service:           serviceName,
		StatsNamespace:    serviceName + ".",
		Mode:              "api",
	})
}

func loadAPI(ctx context.Context, c cli, store *metrics.Store, sys *system.System) (*api.API, *httpserver.HTTPServer, error) {
	a := api.New(ctx, api.Options{
		Store: store,
	})

	srv, err := httpserver.Load(ctx, httpserver.Config{
		Name:    "api",
		Addr:    net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Handler: a.Handler(),
	}, sys)
	if err != nil {
		return nil, nil, err
	}
	return a, srv, nil
}
