// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes worker state to Prometheus.
//
// Buffer state is read at scrape time through BufferCollector rather
// than mirrored into gauges on every Add and Delete: the buffer already
// keeps exact counters under its own lock, and a collector reads them
// in one consistent snapshot. Flush outcomes are plain counters
// incremented by the flusher.
//
// Nothing here registers on the global registry. The worker builds a
// prometheus.Registry, registers what it needs, and serves it with
// Handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bureau-foundation/bureau-connect/lib/evictbuffer"
)

const namespace = "bureau_connect"

// StatsSource is anything that reports buffer stats. *evictbuffer.Buffer
// satisfies it.
type StatsSource interface {
	Stats() evictbuffer.Stats
}

// BufferCollector reports an eviction buffer's occupancy and lifetime
// counters.
type BufferCollector struct {
	source StatsSource

	entries  *prometheus.Desc
	occupied *prometheus.Desc
	capacity *prometheus.Desc
	admitted *prometheus.Desc
	evicted  *prometheus.Desc
	rejected *prometheus.Desc
	deleted  *prometheus.Desc
}

// NewBufferCollector returns a collector reading from source.
func NewBufferCollector(source StatsSource) *BufferCollector {
	describe := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "buffer", name), help, nil, nil)
	}
	return &BufferCollector{
		source:   source,
		entries:  describe("entries", "Replies held awaiting acknowledgement."),
		occupied: describe("occupied_bytes", "Total payload bytes held."),
		capacity: describe("capacity_bytes", "Byte ceiling of the buffer."),
		admitted: describe("admitted_total", "Replies admitted, including rewrites of an existing id."),
		evicted:  describe("evicted_total", "Replies dropped to make room for newer ones."),
		rejected: describe("rejected_total", "Replies larger than the whole buffer."),
		deleted:  describe("deleted_total", "Replies removed after an ack or a flush."),
	}
}

// Describe implements prometheus.Collector.
func (c *BufferCollector) Describe(descriptions chan<- *prometheus.Desc) {
	descriptions <- c.entries
	descriptions <- c.occupied
	descriptions <- c.capacity
	descriptions <- c.admitted
	descriptions <- c.evicted
	descriptions <- c.rejected
	descriptions <- c.deleted
}

// Collect implements prometheus.Collector.
func (c *BufferCollector) Collect(metrics chan<- prometheus.Metric) {
	stats := c.source.Stats()
	metrics <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(stats.Entries))
	metrics <- prometheus.MustNewConstMetric(c.occupied, prometheus.GaugeValue, float64(stats.Occupied))
	metrics <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(stats.Capacity))
	metrics <- prometheus.MustNewConstMetric(c.admitted, prometheus.CounterValue, float64(stats.Admitted))
	metrics <- prometheus.MustNewConstMetric(c.evicted, prometheus.CounterValue, float64(stats.Evicted))
	metrics <- prometheus.MustNewConstMetric(c.rejected, prometheus.CounterValue, float64(stats.Rejected))
	metrics <- prometheus.MustNewConstMetric(c.deleted, prometheus.CounterValue, float64(stats.Deleted))
}

// FlushMetrics counts flush outcomes. The zero value is not usable;
// construct with NewFlushMetrics.
type FlushMetrics struct {
	Flushed  prometheus.Counter
	Failures *prometheus.CounterVec
	Latency  prometheus.Histogram
}

// NewFlushMetrics creates flush counters and registers them on
// registerer.
func NewFlushMetrics(registerer prometheus.Registerer) *FlushMetrics {
	metrics := &FlushMetrics{
		Flushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "flush",
			Name:      "flushed_total",
			Help:      "Unacknowledged replies delivered through the flush endpoint.",
		}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "flush",
			Name:      "failures_total",
			Help:      "Flush attempts that did not deliver the reply, by reason.",
		}, []string{"reason"}),
		Latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "flush",
			Name:      "request_seconds",
			Help:      "Duration of flush requests, including a fallback-key retry.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 11),
		}),
	}
	registerer.MustRegister(metrics.Flushed, metrics.Failures, metrics.Latency)
	return metrics
}

// Handler serves gatherer in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
