// Package metrics exposes settlement engine telemetry through a dedicated
// Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tip submission paths
const (
	PathSameChain  = "same_chain"
	PathCrossChain = "cross_chain"
)

// Collector provides settlement metrics collection.
type Collector struct {
	registry *prometheus.Registry

	tipsSubmitted  *prometheus.CounterVec
	sendFailures   *prometheus.CounterVec
	tipsTerminal   *prometheus.CounterVec
	retries        prometheus.Counter
	activeMonitors prometheus.Gauge
	pollResults    *prometheus.CounterVec
	pollErrors     prometheus.Counter
	quoteLatency   *prometheus.HistogramVec
	settleDuration *prometheus.HistogramVec
}

// NewCollector creates a new settlement metrics collector.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "tips"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.tipsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "submitted_total",
			Help:      "Tips accepted for settlement by path",
		},
		[]string{"path"},
	)

	c.sendFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "send_failures_total",
			Help:      "Tips that failed before settlement tracking started, by stage",
		},
		[]string{"stage"},
	)

	c.tipsTerminal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "terminal_total",
			Help:      "Cross-chain tips that reached a terminal status",
		},
		[]string{"status"},
	)

	c.retries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "retries_total",
			Help:      "Retries of failed tips",
		},
	)

	c.activeMonitors = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "active",
			Help:      "Transactions currently being polled",
		},
	)

	c.pollResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "polls_total",
			Help:      "Status polls by routing service answer",
		},
		[]string{"status"},
	)

	c.pollErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "poll_errors_total",
			Help:      "Status polls that failed to reach the routing service",
		},
	)

	c.quoteLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "duration_seconds",
			Help:      "Time taken to resolve a quote",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"result"},
	)

	c.settleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "duration_seconds",
			Help:      "Time from submission to terminal status",
			Buckets:   prometheus.ExponentialBuckets(15, 2, 10), // 15s to ~2h
		},
		[]string{"status"},
	)

	c.registry.MustRegister(
		c.tipsSubmitted,
		c.sendFailures,
		c.tipsTerminal,
		c.retries,
		c.activeMonitors,
		c.pollResults,
		c.pollErrors,
		c.quoteLatency,
		c.settleDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

func (c *Collector) RecordTipSubmitted(path string) {
	c.tipsSubmitted.WithLabelValues(path).Inc()
}

func (c *Collector) RecordSendFailure(stage string) {
	c.sendFailures.WithLabelValues(stage).Inc()
}

// RecordTerminal counts a terminal outcome and how long settlement took
func (c *Collector) RecordTerminal(status string, elapsed time.Duration) {
	c.tipsTerminal.WithLabelValues(status).Inc()
	c.settleDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

func (c *Collector) RecordRetry() {
	c.retries.Inc()
}

func (c *Collector) MonitorStarted() {
	c.activeMonitors.Inc()
}

func (c *Collector) MonitorStopped() {
	c.activeMonitors.Dec()
}

func (c *Collector) RecordPoll(status string) {
	c.pollResults.WithLabelValues(status).Inc()
}

func (c *Collector) RecordPollError() {
	c.pollErrors.Inc()
}

func (c *Collector) RecordQuote(duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	c.quoteLatency.WithLabelValues(result).Observe(duration.Seconds())
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
