// Package metrics exposes Prometheus collectors for the harvester. The
// process has no network surface, so collectors are registered on a
// caller-owned registry and periodically written to a node-exporter textfile.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/catalog-harvester/internal/crawler"
)

// Collectors implements crawler.Observer on top of Prometheus collectors.
type Collectors struct {
	fetchDuration *prometheus.HistogramVec
	fetchTotal    *prometheus.CounterVec
	pacingDelay   prometheus.Histogram
	softFailures  *prometheus.CounterVec
	chunkLoads    *prometheus.CounterVec
	chunkFlush    prometheus.Histogram
}

var _ crawler.Observer = (*Collectors)(nil)

// New registers the collectors against reg.
func New(reg prometheus.Registerer) (*Collectors, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collectors{
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harvester_fetch_duration_seconds",
			Help:    "Fetch latency partitioned by endpoint kind and status class.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"kind", "status_class"}),
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_fetch_total",
			Help: "Completed fetches partitioned by endpoint kind and status class.",
		}, []string{"kind", "status_class"}),
		pacingDelay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "harvester_pacing_delay_seconds",
			Help:    "Time spent waiting on the request pacer.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5},
		}),
		softFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_soft_failures_total",
			Help: "Field-level extraction failures that degraded a record.",
		}, []string{"kind"}),
		chunkLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_chunk_loads_total",
			Help: "Chunk loads partitioned by whether the chunk already existed.",
		}, []string{"found"}),
		chunkFlush: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "harvester_chunk_flush_seconds",
			Help:    "Time spent writing a chunk to its backend.",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
	for _, collector := range []prometheus.Collector{
		c.fetchDuration,
		c.fetchTotal,
		c.pacingDelay,
		c.softFailures,
		c.chunkLoads,
		c.chunkFlush,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return c, nil
}

// StatusClass buckets an HTTP status code into 2xx/3xx/4xx/5xx, or "error"
// when no response was received.
func StatusClass(code int) string {
	switch {
	case code <= 0:
		return "error"
	case code >= 200 && code < 600:
		return strconv.Itoa(code/100) + "xx"
	default:
		return "other"
	}
}

// ObserveFetch implements crawler.Observer.
func (c *Collectors) ObserveFetch(kind crawler.FetchKind, statusCode int, d time.Duration) {
	class := StatusClass(statusCode)
	c.fetchTotal.WithLabelValues(string(kind), class).Inc()
	c.fetchDuration.WithLabelValues(string(kind), class).Observe(d.Seconds())
}

// ObservePacingDelay implements crawler.Observer.
func (c *Collectors) ObservePacingDelay(d time.Duration) {
	c.pacingDelay.Observe(d.Seconds())
}

// ObserveSoftFailure implements crawler.Observer.
func (c *Collectors) ObserveSoftFailure(kind string) {
	c.softFailures.WithLabelValues(kind).Inc()
}

// ObserveChunkLoad implements crawler.Observer.
func (c *Collectors) ObserveChunkLoad(found bool) {
	c.chunkLoads.WithLabelValues(strconv.FormatBool(found)).Inc()
}

// ObserveChunkFlush implements crawler.Observer.
func (c *Collectors) ObserveChunkFlush(d time.Duration) {
	c.chunkFlush.Observe(d.Seconds())
}

// WriteTextfile writes every metric in g to path in the Prometheus text
// format. An empty path is a no-op.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
