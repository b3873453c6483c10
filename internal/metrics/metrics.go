// Package metrics exports crawl and notification counters for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the pipeline reports into.
type Recorder interface {
	RecordCrawlSuccess(duration time.Duration)
	RecordCrawlFailure(duration time.Duration)
	RecordSnapshotStored()
	RecordPriceChange()
	RecordNotificationSent()
	RecordNotificationFailed()
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	crawlSuccess        prometheus.Counter
	crawlFailure        prometheus.Counter
	crawlDuration       prometheus.Histogram
	snapshotsStored     prometheus.Counter
	priceChanges        prometheus.Counter
	notificationsSent   prometheus.Counter
	notificationsFailed prometheus.Counter
}

// NewCollector creates the metrics and registers them on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		crawlSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cruisewatch_crawl_success_total",
			Help: "Number of successful booking page crawls.",
		}),
		crawlFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cruisewatch_crawl_failure_total",
			Help: "Number of failed booking page crawls.",
		}),
		crawlDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cruisewatch_crawl_duration_seconds",
			Help:    "Wall time of a crawl including ingestion.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		snapshotsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cruisewatch_snapshots_stored_total",
			Help: "Number of snapshots persisted.",
		}),
		priceChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cruisewatch_price_changes_total",
			Help: "Number of total price changes detected.",
		}),
		notificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cruisewatch_notifications_sent_total",
			Help: "Number of price change notifications handed to the notifier without error.",
		}),
		notificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cruisewatch_notifications_failed_total",
			Help: "Number of price change notifications that failed.",
		}),
	}

	reg.MustRegister(
		c.crawlSuccess,
		c.crawlFailure,
		c.crawlDuration,
		c.snapshotsStored,
		c.priceChanges,
		c.notificationsSent,
		c.notificationsFailed,
	)
	return c
}

func (c *Collector) RecordCrawlSuccess(duration time.Duration) {
	c.crawlSuccess.Inc()
	c.crawlDuration.Observe(duration.Seconds())
}

func (c *Collector) RecordCrawlFailure(duration time.Duration) {
	c.crawlFailure.Inc()
	c.crawlDuration.Observe(duration.Seconds())
}

func (c *Collector) RecordSnapshotStored()     { c.snapshotsStored.Inc() }
func (c *Collector) RecordPriceChange()        { c.priceChanges.Inc() }
func (c *Collector) RecordNotificationSent()   { c.notificationsSent.Inc() }
func (c *Collector) RecordNotificationFailed() { c.notificationsFailed.Inc() }

// Nop discards everything.
type Nop struct{}

func (Nop) RecordCrawlSuccess(time.Duration) {}
func (Nop) RecordCrawlFailure(time.Duration) {}
func (Nop) RecordSnapshotStored()            {}
func (Nop) RecordPriceChange()               {}
func (Nop) RecordNotificationSent()          {}
func (Nop) RecordNotificationFailed()        {}

// Handler serves the exposition format for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
