// Package ginrouter builds gin engines with the standard o11y middleware installed.
package ginrouter

import (
	"context"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/circleci/myk8sapp/o11y"
	"github.com/circleci/myk8sapp/o11y/wrappers/o11ygin"
)

var once sync.Once

// Default returns a gin engine in release mode with tracing, panic recovery and client
// cancellation handling. The engine does not clean or redirect paths, so handlers see
// the request target exactly as sent.
func Default(ctx context.Context, serverName string) *gin.Engine {
	once.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	r := gin.New()
	r.Use(
		o11ygin.Middleware(o11y.FromContext(ctx), serverName),
		o11ygin.Recovery(),
		o11ygin.ClientCancelled(),
	)

	r.UseRawPath = true
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.HandleMethodNotAllowed = false

	return r
}
