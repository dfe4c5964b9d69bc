// Package metrics exposes reminder scheduling and delivery metrics to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the reminder metrics.
type Collector struct {
	jobsScheduled  prometheus.Counter
	jobsFired      prometheus.Counter
	jobsCancelled  prometheus.Counter
	deliveriesOK   prometheus.Counter
	deliveriesFail prometheus.Counter

	deliveryLatency prometheus.Histogram
	jobsPending     prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg *prometheus.Registry) *Collector {
	c := &Collector{
		jobsScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medreminder_jobs_scheduled_total",
			Help: "Total number of reminder jobs armed",
		}),
		jobsFired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medreminder_jobs_fired_total",
			Help: "Total number of reminder jobs fired",
		}),
		jobsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medreminder_jobs_cancelled_total",
			Help: "Total number of reminder jobs cancelled before firing",
		}),
		deliveriesOK: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medreminder_deliveries_succeeded_total",
			Help: "Total number of reminder notifications delivered",
		}),
		deliveriesFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medreminder_deliveries_failed_total",
			Help: "Total number of reminder notifications that failed after all attempts",
		}),
		deliveryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "medreminder_delivery_latency_seconds",
			Help:    "Time spent delivering one reminder notification, including retries",
			Buckets: prometheus.DefBuckets,
		}),
		jobsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "medreminder_jobs_pending",
			Help: "Current number of armed reminder jobs",
		}),
		gatherer: reg,
	}

	reg.MustRegister(
		c.jobsScheduled,
		c.jobsFired,
		c.jobsCancelled,
		c.deliveriesOK,
		c.deliveriesFail,
		c.deliveryLatency,
		c.jobsPending,
	)
	return c
}

// RecordScheduled counts an armed job.
func (c *Collector) RecordScheduled() {
	c.jobsScheduled.Inc()
}

// RecordFired counts a fired job.
func (c *Collector) RecordFired() {
	c.jobsFired.Inc()
}

// RecordCancelled counts a job cancelled before firing.
func (c *Collector) RecordCancelled() {
	c.jobsCancelled.Inc()
}

// RecordDelivery counts a delivery outcome and its latency.
func (c *Collector) RecordDelivery(ok bool, latencySeconds float64) {
	if ok {
		c.deliveriesOK.Inc()
	} else {
		c.deliveriesFail.Inc()
	}
	c.deliveryLatency.Observe(latencySeconds)
}

// SetPending sets the number of armed jobs.
func (c *Collector) SetPending(n int) {
	c.jobsPending.Set(float64(n))
}

// Handler serves the registered metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
