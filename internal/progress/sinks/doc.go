// Package sinks implements concrete progress consumers: structured logging
// and Prometheus gauges. Each sink satisfies the progress.Sink interface and
// is safe for repeated Consume/Close cycles.
package sinks
