package honeycomb

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/honeycombio/libhoney-go/transmission"

	"github.com/circleci/myk8sapp/colourise"
)

// textSender writes each span as one line:
//
//	19:01:12.137 access 0.075ms [1e113] client_addr=10.1.2.3:51234 request_line="GET / HTTP/1.1" status=200
//
// Application fields lose their "app." prefix. Plumbing fields are left out.
type textSender struct {
	w      io.Writer
	colour bool

	mu        sync.Mutex
	responses chan transmission.Response
}

func (t *textSender) Start() error {
	t.responses = make(chan transmission.Response, 100)
	return nil
}

func (t *textSender) Stop() error  { return nil }
func (t *textSender) Flush() error { return nil }

func (t *textSender) Add(ev *transmission.Event) {
	line := t.line(ev)

	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = io.WriteString(t.w, line)
	t.SendResponse(transmission.Response{Metadata: ev.Metadata})
}

func (t *textSender) TxResponses() chan transmission.Response {
	return t.responses
}

// SendResponse drops the response if nobody is reading them.
func (t *textSender) SendResponse(r transmission.Response) bool {
	select {
	case t.responses <- r:
		return false
	default:
		return true
	}
}

func (t *textSender) line(ev *transmission.Event) string {
	name, _ := ev.Data["name"].(string)
	ms, _ := number(ev.Data["duration_ms"])

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %.3fms [%s]",
		ev.Timestamp.Format("15:04:05.000"),
		t.paint(name),
		ms,
		t.paint(shortTrace(ev.Data["trace.trace_id"])),
	)

	keys := make([]string, 0, len(ev.Data))
	for k := range ev.Data {
		if !hidden(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		label := strings.TrimPrefix(k, "app.")
		value := quote(fmt.Sprint(ev.Data[k]))
		if t.colour {
			switch {
			case k == "error" || k == "panic":
				label = colourise.ErrorHighlight(label)
			case k == "app.status" || k == "http.status_code":
				if code, ok := ev.Data[k].(int); ok {
					value = colourise.Status(code)
				}
			}
		}
		fmt.Fprintf(&b, " %s=%s", label, value)
	}
	b.WriteByte('\n')
	return b.String()
}

func (t *textSender) paint(s string) string {
	if !t.colour {
		return s
	}
	return colourise.ApplyColour(s)
}

func hidden(k string) bool {
	switch k {
	case "name", "duration_ms", "service", "service_name", "service.name", "version", "stack", metricsField:
		return true
	}
	for _, prefix := range []string{"trace.", "meta.", "rollup."} {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " =\"") {
		return strconv.Quote(s)
	}
	return s
}

func shortTrace(v interface{}) string {
	id, _ := v.(string)
	if len(id) < 5 {
		return "-----"
	}
	return id[len(id)-5:]
}
