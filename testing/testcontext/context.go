// Package testcontext provides a context with a working o11y provider for use in tests.
package testcontext

import (
	"context"

	"github.com/circleci/myk8sapp/config/o11y"
)

// ctx is built once at package init, since the beeline underneath is a global singleton
var ctx = newContext()

// Background returns a context for use in tests which contains a working o11y, so you get logs.
func Background() context.Context {
	return ctx
}

func newContext() context.Context {
	cx, _, err := o11y.Setup(context.Background(), o11y.Config{
		Format:  "color",
		Service: "test-service",
		Version: "dev",
		Mode:    "test",
	})
	if err != nil {
		panic(err)
	}
	return cx
}
