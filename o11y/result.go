package o11y

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rollbar/rollbar-go"
)

// End records err as the span's result and ends it. Pass a pointer to the named
// error return so a deferred End sees the final value:
//
//	ctx, span := o11y.StartSpan(ctx, "system: run")
//	defer o11y.End(span, &err)
func End(span Span, err *error) {
	var e error
	if err != nil {
		e = *err
	}
	AddResultToSpan(span, e)
	span.End()
}

// AddResultToSpan sets "result" to success, canceled or error. Warnings and
// cancellations are kept in "warning" and do not count as errors.
func AddResultToSpan(span Span, err error) {
	result := "success"
	switch {
	case err == nil:
	case IsWarning(err):
		span.AddRawField("warning", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		result = "canceled"
		span.AddRawField("warning", err.Error())
	default:
		result = "error"
		span.AddRawField("error", err.Error())
	}
	span.AddRawField("result", result)
}

// Warning is an error worth recording that is not a failure of the service,
// such as a client hanging up before its response was written.
type Warning struct {
	msg string
}

func NewWarning(msg string) error {
	return &Warning{msg: msg}
}

func (w *Warning) Error() string {
	return w.msg
}

func IsWarning(err error) bool {
	var w *Warning
	return errors.As(err, &w)
}

// PanicReporter is implemented by providers that forward panics to rollbar.
type PanicReporter interface {
	RollBarClient() *rollbar.Client
}

// HandlePanic records a recovered value on span, counts it in the "panics" metric
// and returns it as an error. r is the request being served, if any.
func HandlePanic(ctx context.Context, span Span, recovered interface{}, r *http.Request) error {
	err := fmt.Errorf("panic handled: %+v", recovered)

	span.AddRawField("panic", fmt.Sprint(recovered))
	span.AddRawField("has_panicked", "true")
	span.AddRawField("stack", string(debug.Stack()))
	span.RecordMetric(Count("panics", "name"))

	if reporter, ok := FromContext(ctx).(PanicReporter); ok {
		if r != nil {
			reporter.RollBarClient().RequestError(rollbar.CRIT, r, err)
		} else {
			reporter.RollBarClient().LogPanic(recovered, true)
		}
	}
	return err
}
