/*
Package healthcheck is the admin API. It serves liveness and readiness checks built from
the system's health checkers, the Prometheus registry at /metrics, and the Go runtime's
pprof profiles under /debug/pprof.
*/
package healthcheck
