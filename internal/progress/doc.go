// Package progress provides the event primitives, non-blocking hub, and
// emitter interface a harvest session uses to report what it is doing. The
// hub batches events on a background goroutine and fans them out to
// pluggable sinks such as Prometheus metrics, logs, or the live session
// view served by the ops API.
package progress
