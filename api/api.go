// Package api is the public HTTP surface of the service: a fixed table of four GET
// endpoints, each request counted in a metrics.Store.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/circleci/myk8sapp/httpserver/ginrouter"
	"github.com/circleci/myk8sapp/metrics"
)

type Options struct {
	Store *metrics.Store
}

type API struct {
	router *gin.Engine
	store  *metrics.Store
	routes []route
}

// New builds the router. Every GET reaches dispatch, which matches on the raw request
// target. Other methods are answered 501 and are not counted.
func New(ctx context.Context, opts Options) *API {
	a := &API{
		store: opts.Store,
	}
	a.routes = defaultRoutes(a.store)

	r := ginrouter.Default(ctx, "api")
	r.Use(accessLog)
	r.GET("/*target", a.dispatch)
	r.NoRoute(notImplemented)

	a.router = r
	return a
}

func (a *API) Handler() http.Handler {
	return a.router
}

// Endpoints lists the paths served, in dispatch order.
func (a *API) Endpoints() []string {
	paths := make([]string, 0, len(a.routes))
	for _, rt := range a.routes {
		paths = append(paths, rt.path)
	}
	return paths
}

func notImplemented(c *gin.Context) {
	write(c, response{
		status:      http.StatusNotImplemented,
		contentType: "text/plain",
		body:        []byte("not implemented"),
	})
}
