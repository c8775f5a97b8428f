/*
Package system runs the long lived parts of the service together and stops them together.

Services, health checks, metric producers and cleanups are registered up front. Run starts
every service in an errgroup alongside a signal handler and a metrics reporter, and returns
the first error. A SIGTERM produces termination.ErrTerminated, which callers treat as a
clean exit.
*/
package system
