// Package o11ygin gives every request through a gin router its own span, named after
// the route that matched, and a "handler" timing derived from it.
package o11ygin

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/circleci/myk8sapp/o11y"
)

const cancelledKey = "o11ygin.client-cancelled"

// StatusClientClosedRequest is recorded when the client went away before the
// response was written.
const StatusClientClosedRequest = 499

// unmatched stands in for the route of requests no route matched.
const unmatched = "not-found"

var handlerTiming = o11y.Timing("handler",
	"http.server_name", "http.method", "http.route", "http.status_code")

// Middleware opens the request span. Its name is the method and the route pattern,
// so "GET /*target" for the api; the raw request target is kept in http.target.
func Middleware(provider o11y.Provider, serverName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = unmatched
		}

		ctx := o11y.WithProvider(c.Request.Context(), provider)
		ctx, span := provider.StartSpan(ctx, c.Request.Method+" "+route)
		c.Request = c.Request.WithContext(ctx)

		for k, v := range map[string]string{
			"meta.type":        "http_server",
			"http.server_name": serverName,
			"http.route":       route,
			"http.method":      c.Request.Method,
			"http.target":      c.Request.RequestURI,
			"http.host":        c.Request.Host,
			"http.client_ip":   c.ClientIP(),
			"http.user_agent":  c.Request.UserAgent(),
		} {
			span.AddRawField(k, v)
		}
		span.RecordMetric(handlerTiming)

		defer func() {
			status := c.Writer.Status()
			if c.GetBool(cancelledKey) {
				status = StatusClientClosedRequest
			}
			span.AddRawField("http.status_code", status)
			span.AddRawField("http.response_content_length", c.Writer.Size())
			span.End()
		}()

		c.Next()
	}
}

// ClientCancelled marks requests whose context the client cancelled, and records
// errors gin collected along the chain.
func ClientCancelled() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		ctx := c.Request.Context()
		if errors.Is(ctx.Err(), context.Canceled) {
			c.Set(cancelledKey, true)
			return
		}
		if len(c.Errors) > 0 {
			o11y.AddField(ctx, "gin_errors", c.Errors.String())
		}
	}
}

// Recovery answers 500 for a panic no handler caught, and reports it on the span.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered interface{}) {
		c.AbortWithStatus(http.StatusInternalServerError)
		ctx := c.Request.Context()
		span := o11y.FromContext(ctx).GetSpan(ctx)

		// net/http uses ErrAbortHandler to drop a connection, it is not a fault.
		if err, ok := recovered.(error); ok && errors.Is(err, http.ErrAbortHandler) {
			o11y.AddResultToSpan(span, o11y.NewWarning(err.Error()))
			return
		}
		_ = o11y.HandlePanic(ctx, span, recovered, c.Request)
	})
}
