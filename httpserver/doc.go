/*
Package httpserver runs an http.Handler on a tracked listener with graceful shutdown.

The listener counts connections per remote host and publishes them as gauges. The server
reports itself not ready once shutdown has begun, so the admin /ready endpoint fails
while in flight requests drain.
*/
package httpserver
