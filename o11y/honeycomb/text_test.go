package honeycomb

import (
	"bytes"
	"testing"
	"time"

	"github.com/honeycombio/libhoney-go/transmission"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

var eventTime = time.Date(2022, 9, 12, 19, 1, 12, 137602525, time.UTC)

func TestTextSender(t *testing.T) {
	tests := []struct {
		name   string
		data   map[string]interface{}
		expect string
	}{
		{
			name: "access",
			data: map[string]interface{}{
				"name":                 "access",
				"duration_ms":          0.075231,
				"trace.trace_id":       "9e020857-1248-431f-b2dd-f1541bd1e113",
				"meta.beeline_version": "1.11.1",
				"service":              "myk8sapp",
				"service.name":         "myk8sapp",
				"app.client_addr":      "10.1.2.3:51234",
				"app.request_line":     "GET /ping HTTP/1.1",
				"app.status":           200,
				"app.timestamp":        "12/Sep/2022 19:01:12",
			},
			expect: `19:01:12.137 access 0.075ms [1e113] client_addr=10.1.2.3:51234 ` +
				`request_line="GET /ping HTTP/1.1" status=200 timestamp="12/Sep/2022 19:01:12"` + "\n",
		},
		{
			name: "dispatch error",
			data: map[string]interface{}{
				"name":                 "GET /*target",
				"duration_ms":          12.455143,
				"trace.trace_id":       "9e020857-1248-431f-b2dd-f1541bd1e113",
				"app.counted_as_error": true,
				"app.route":            "/metrics",
				"error":                "panic handled: render exploded",
				"http.status_code":     500,
				"result":               "error",
				"stack":                "goroutine 1 [running]:",
				"__o11y_metrics__":     nil,
			},
			expect: `19:01:12.137 GET /*target 12.455ms [1e113] counted_as_error=true route=/metrics ` +
				`error="panic handled: render exploded" http.status_code=500 result=error` + "\n",
		},
		{
			name: "no trace",
			data: map[string]interface{}{
				"name":          "shutting down",
				"duration_ms":   1.455143,
				"app.signal":    "terminated",
				"app.empty":     "",
				"rollup.dur_ms": 3.0,
			},
			expect: `19:01:12.137 shutting down 1.455ms [-----] empty="" signal=terminated` + "\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			s := &textSender{w: buf}
			assert.Assert(t, s.Start())

			s.Add(&transmission.Event{Timestamp: eventTime, Data: tt.data})
			assert.Check(t, cmp.Equal(buf.String(), tt.expect))
		})
	}
}

func TestTextSender_Colour(t *testing.T) {
	buf := &bytes.Buffer{}
	s := &textSender{w: buf, colour: true}
	assert.Assert(t, s.Start())

	s.Add(&transmission.Event{
		Timestamp: eventTime,
		Data: map[string]interface{}{
			"name":       "access",
			"app.status": 404,
			"error":      "boom",
		},
	})
	assert.Check(t, cmp.Contains(buf.String(), "\033[1;37;41merror\033[0m=boom"))
	assert.Check(t, cmp.Contains(buf.String(), "status=\033[1;38;5;11m404\033[0m"))
}

func TestTextSender_Responses(t *testing.T) {
	s := &textSender{w: &bytes.Buffer{}}
	assert.Assert(t, s.Start())

	s.Add(&transmission.Event{Timestamp: eventTime, Metadata: "access"})
	r := <-s.TxResponses()
	assert.Check(t, cmp.Equal(r.Metadata, "access"))

	for i := 0; i < cap(s.responses); i++ {
		assert.Check(t, !s.SendResponse(transmission.Response{}))
	}
	assert.Check(t, s.SendResponse(transmission.Response{}), "a full queue drops responses")
}
