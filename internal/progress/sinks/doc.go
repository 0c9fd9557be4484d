// Package sinks implements concrete progress consumers: Prometheus metrics,
// structured logging, and an in-memory session view for the ops API. Each
// sink satisfies progress.Sink.
package sinks
