package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/circleci/myk8sapp/metrics"
	"github.com/circleci/myk8sapp/o11y"
)

const (
	contentTypeText    = "text/plain; charset=utf-8"
	contentTypeJSON    = "application/json"
	contentTypeMetrics = "text/plain; version=0.0.4"
	contentTypePlain   = "text/plain"

	greeting = "Hello from my zero-dependency K8s test app!"
)

type response struct {
	status      int
	contentType string
	body        []byte
}

var (
	notFound = response{
		status:      http.StatusNotFound,
		contentType: contentTypePlain,
		body:        []byte("not found"),
	}
	internalError = response{
		status:      http.StatusInternalServerError,
		contentType: contentTypePlain,
		body:        []byte("internal error"),
	}
)

type route struct {
	path    string
	match   func(target string) bool
	respond func(ctx context.Context) (response, error)
}

func exact(path string) func(string) bool {
	return func(target string) bool {
		return target == path
	}
}

// root also answers "/?anything", but not "/anything".
func root(target string) bool {
	return target == "/" || strings.HasPrefix(target, "/?")
}

func defaultRoutes(store *metrics.Store) []route {
	return []route{
		{path: "/", match: root, respond: static(contentTypeText, greeting)},
		{path: "/ping", match: exact("/ping"), respond: ping},
		{path: "/healthz", match: exact("/healthz"), respond: static(contentTypeText, "healthy")},
		{path: "/metrics", match: exact("/metrics"), respond: func(context.Context) (response, error) {
			return response{
				status:      http.StatusOK,
				contentType: contentTypeMetrics,
				body:        []byte(store.Render()),
			}, nil
		}},
	}
}

func static(contentType, body string) func(context.Context) (response, error) {
	return func(context.Context) (response, error) {
		return response{status: http.StatusOK, contentType: contentType, body: []byte(body)}, nil
	}
}

func ping(context.Context) (response, error) {
	body, err := flatJSON(field{key: "status", value: "ok"})
	if err != nil {
		return response{}, err
	}
	return response{status: http.StatusOK, contentType: contentTypeJSON, body: body}, nil
}

type field struct {
	key   string
	value interface{}
}

// flatJSON encodes a single level object with ", " and ": " separators,
// e.g. {"status": "ok"}.
func flatJSON(fields ...field) ([]byte, error) {
	buf := bytes.NewBufferString("{")
	for i, f := range fields {
		k, err := json.Marshal(f.key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.value)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.Write(k)
		buf.WriteString(": ")
		buf.Write(v)
	}
	buf.WriteString("}")
	return buf.Bytes(), nil
}

// dispatch answers a GET from the route table. Whatever happens the request is
// recorded in the store exactly once.
func (a *API) dispatch(c *gin.Context) {
	start := time.Now()
	isError := false
	defer func() {
		a.store.Record(isError, time.Since(start))
	}()

	ctx := c.Request.Context()
	target := c.Request.RequestURI
	o11y.AddField(ctx, "target", target)

	res, rt, err := a.respond(ctx, c, target)
	switch {
	case rt == nil:
		isError = true
		o11y.AddField(ctx, "route", "not-found")
		res = notFound
	case err != nil:
		isError = true
		o11y.AddField(ctx, "route", rt.path)
		o11y.AddResultToSpan(o11y.FromContext(ctx).GetSpan(ctx), err)
		o11y.LogError(ctx, "api: responder failed", err, o11y.Field("target", target))
		res = internalError
	default:
		o11y.AddField(ctx, "route", rt.path)
	}

	if err := send(c, res); err != nil {
		isError = true
		o11y.AddResultToSpan(o11y.FromContext(ctx).GetSpan(ctx), err)
		o11y.LogError(ctx, "api: write failed", err, o11y.Field("target", target))
	}
	o11y.AddField(ctx, "counted_as_error", isError)
}

// send writes res, falling back to internalError if that fails before anything
// reached the client.
func send(c *gin.Context, res response) (err error) {
	defer func() {
		if r := recover(); r != nil {
			ctx := c.Request.Context()
			err = o11y.HandlePanic(ctx, o11y.FromContext(ctx).GetSpan(ctx), r, c.Request)
			fallback(c)
		}
	}()

	if err := res.check(); err != nil {
		fallback(c)
		return err
	}
	write(c, res)
	return nil
}

func fallback(c *gin.Context) {
	defer func() { _ = recover() }()
	if !c.Writer.Written() {
		write(c, internalError)
	}
}

// check rejects status codes net/http would panic on.
func (r response) check() error {
	if r.status < 100 || r.status > 999 {
		return fmt.Errorf("invalid status code %d", r.status)
	}
	return nil
}

// respond runs the first matching responder. The route is nil if none matched.
func (a *API) respond(ctx context.Context, c *gin.Context, target string) (response, *route, error) {
	for i := range a.routes {
		rt := &a.routes[i]
		if rt.match(target) {
			res, err := call(ctx, c, *rt)
			return res, rt, err
		}
	}
	return response{}, nil, nil
}

// call runs a responder, converting a panic into an error.
func call(ctx context.Context, c *gin.Context, rt route) (res response, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = o11y.HandlePanic(ctx, o11y.FromContext(ctx).GetSpan(ctx), r, c.Request)
		}
	}()
	return rt.respond(ctx)
}

func write(c *gin.Context, res response) {
	c.Header("Content-Type", res.contentType)
	c.Header("Content-Length", strconv.Itoa(len(res.body)))
	c.Status(res.status)
	if _, err := c.Writer.Write(res.body); err != nil {
		ctx := c.Request.Context()
		o11y.AddResultToSpan(o11y.FromContext(ctx).GetSpan(ctx), o11y.NewWarning("write response: "+err.Error()))
	}
}
