package termination

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

func fakeSignal(t *testing.T, sig os.Signal) {
	t.Helper()
	orig := notify
	t.Cleanup(func() { notify = orig })
	notify = func(c chan<- os.Signal, _ ...os.Signal) {
		c <- sig
	}
}

func TestHandle_Signal(t *testing.T) {
	fakeSignal(t, syscall.SIGTERM)

	err := Handle(context.Background(), 0)
	assert.Check(t, cmp.ErrorIs(err, ErrTerminated))
}

func TestHandle_SignalWaitsForDelay(t *testing.T) {
	fakeSignal(t, os.Interrupt)

	start := time.Now()
	err := Handle(context.Background(), 50*time.Millisecond)
	assert.Check(t, cmp.ErrorIs(err, ErrTerminated))
	assert.Check(t, time.Since(start) >= 50*time.Millisecond)
}

func TestHandle_ContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Handle(ctx, time.Hour)
	assert.Check(t, err)
}
