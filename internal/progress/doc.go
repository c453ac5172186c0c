// Package progress provides the event primitives, the run estimator, and the
// synchronous fanout that the crawl driver uses to report progress. Events are
// delivered to pluggable sinks such as structured logs or Prometheus gauges
// on the caller's goroutine.
package progress
