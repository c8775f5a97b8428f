package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/circleci/myk8sapp/o11y"
)

const accessTimeLayout = "02/Jan/2006 15:04:05"

// accessLog emits one "access" event per request once the response is written.
func accessLog(c *gin.Context) {
	received := time.Now()
	c.Next()

	r := c.Request
	o11y.Log(r.Context(), "access",
		o11y.Field("client_addr", r.RemoteAddr),
		o11y.Field("timestamp", received.Format(accessTimeLayout)),
		o11y.Field("request_line", r.Method+" "+r.RequestURI+" "+r.Proto),
		o11y.Field("status", c.Writer.Status()),
	)
}
