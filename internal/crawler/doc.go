// Package crawler defines the contracts shared by the harvester subsystems:
// the transport, clock, chunk persistence and observability interfaces, plus
// the sentinel errors used to classify per-ID failures.
package crawler
