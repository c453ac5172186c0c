// Package main hosts the harvester command line.
//
// Architecture overview:
//   - Configuration: internal/config loads defaults, an optional YAML/JSON file (--config) and HARVESTER_*
//     environment overrides through Viper. Every command shares the same configuration.
//   - Crawl driver: internal/worker walks catalog IDs upwards from crawl.floor, one request at a time. IDs already in
//     the checkpoint are skipped without touching the network; every other ID is paced by internal/policy/ratelimit,
//     fetched through the Colly transport, and turned into an item or tombstone by internal/extract.
//   - Checkpoint: internal/checkpoint keeps one chunk of the ID space resident and persists chunks through the
//     configured backend (local directory, GCS bucket, or memory). Chunks are flushed every crawl.flush_every IDs,
//     on every chunk switch that carries changes, and on shutdown.
//   - Observability: zap logs carry the run ID; Prometheus collectors are written to metrics.textfile for the
//     node-exporter textfile collector. There is no HTTP surface.
//
// Commands:
//   - harvester crawl  runs until SIGINT/SIGTERM, crawl.stop_after, or a storage error.
//   - harvester stats  summarizes the checkpoint and prints the ID the next crawl resumes at.
//   - harvester export copies every recorded ID into Postgres (export.dsn, export.table).
package main
