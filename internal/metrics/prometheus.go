package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes exported metric names.
const DefaultNamespace = "throttler"

// Collector exports an Engine's counters as Prometheus metrics. Values are
// read from a fresh Snapshot on every scrape.
type Collector struct {
	engine *Engine

	executions        *prometheus.Desc
	failures          *prometheus.Desc
	sleeps            *prometheus.Desc
	interruptedSleeps *prometheus.Desc
	workSeconds       *prometheus.Desc
	idleSeconds       *prometheus.Desc
	requestedIdle     *prometheus.Desc
	targetFactor      *prometheus.Desc
	achievedFactor    *prometheus.Desc
	pendingDelay      *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector for engine.
func NewCollector(engine *Engine, namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil)
	}

	return &Collector{
		engine:            engine,
		executions:        desc("executions_total", "Total number of executed work units"),
		failures:          desc("work_failures_total", "Total number of work units that returned an error"),
		sleeps:            desc("sleeps_total", "Total number of idle delays attempted"),
		interruptedSleeps: desc("sleeps_interrupted_total", "Total number of idle delays cut short by cancellation"),
		workSeconds:       desc("work_seconds_total", "Total time spent running work"),
		idleSeconds:       desc("idle_seconds_total", "Total idle time delivered"),
		requestedIdle:     desc("requested_idle_seconds_total", "Total idle time requested from the clock"),
		targetFactor:      desc("work_factor", "Target work factor currently in force"),
		achievedFactor:    desc("achieved_work_factor", "Achieved fraction of busy time"),
		pendingDelay:      desc("pending_delay_seconds", "Outstanding idle debt carried to the next unit of work"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.executions
	ch <- c.failures
	ch <- c.sleeps
	ch <- c.interruptedSleeps
	ch <- c.workSeconds
	ch <- c.idleSeconds
	ch <- c.requestedIdle
	ch <- c.targetFactor
	ch <- c.achievedFactor
	ch <- c.pendingDelay
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.engine.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.executions, prometheus.CounterValue, float64(s.Executions))
	ch <- prometheus.MustNewConstMetric(c.failures, prometheus.CounterValue, float64(s.Failures))
	ch <- prometheus.MustNewConstMetric(c.sleeps, prometheus.CounterValue, float64(s.Sleeps))
	ch <- prometheus.MustNewConstMetric(c.interruptedSleeps, prometheus.CounterValue, float64(s.InterruptedSleeps))
	ch <- prometheus.MustNewConstMetric(c.workSeconds, prometheus.CounterValue, s.WorkTime.Seconds())
	ch <- prometheus.MustNewConstMetric(c.idleSeconds, prometheus.CounterValue, s.IdleTime.Seconds())
	ch <- prometheus.MustNewConstMetric(c.requestedIdle, prometheus.CounterValue, s.RequestedIdleTime.Seconds())
	ch <- prometheus.MustNewConstMetric(c.targetFactor, prometheus.GaugeValue, s.TargetWorkFactor)
	ch <- prometheus.MustNewConstMetric(c.achievedFactor, prometheus.GaugeValue, s.AchievedWorkFactor)
	ch <- prometheus.MustNewConstMetric(c.pendingDelay, prometheus.GaugeValue, s.PendingDelay.Seconds())
}

// NewRegistry returns a private registry holding the engine collector plus
// the standard Go and process collectors.
func NewRegistry(engine *Engine, namespace string) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		NewCollector(engine, namespace),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// Handler returns an HTTP handler serving the registry in the Prometheus
// exposition format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}
