// Package termination turns SIGINT and SIGTERM into an error that stops a system.
package termination

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/circleci/myk8sapp/o11y"
)

// ErrTerminated is returned by Handle when the process was asked to stop.
var ErrTerminated = errors.New("terminated")

var notify = signal.Notify

// Handle blocks until the process receives SIGINT or SIGTERM, or until ctx is done.
// After a signal it waits for delay, so a load balancer has time to stop routing to
// this pod, and then returns ErrTerminated.
func Handle(ctx context.Context, delay time.Duration) error {
	quit := make(chan os.Signal, 1)
	notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		o11y.Log(ctx, "shutting down",
			o11y.Field("signal", sig.String()),
			o11y.Field("delay", delay.String()),
		)
	case <-ctx.Done():
		return nil
	}

	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
		}
	}
	return ErrTerminated
}
