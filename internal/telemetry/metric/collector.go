// Package metric provides Prometheus metrics for TokenGate.
package metric

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CountFunc reports the number of live token records in a store.
type CountFunc func(ctx context.Context) (int64, error)

// StoreCollector exports the live-token count of a backend, polled at
// scrape time.
type StoreCollector struct {
	count      CountFunc
	timeout    time.Duration
	scrapeErrs atomic.Int64

	liveDesc *prometheus.Desc
	errDesc  *prometheus.Desc
}

// NewStoreCollector creates a collector for the given backend name.
func NewStoreCollector(backend string, count CountFunc) *StoreCollector {
	return &StoreCollector{
		count:   count,
		timeout: 5 * time.Second,
		liveDesc: prometheus.NewDesc(
			namespace+"_store_live_tokens",
			"Current number of token records in the store.",
			nil,
			prometheus.Labels{"backend": backend},
		),
		errDesc: prometheus.NewDesc(
			namespace+"_store_scrape_errors_total",
			"Total number of failed live-token count scrapes.",
			nil,
			prometheus.Labels{"backend": backend},
		),
	}
}

// Describe implements prometheus.Collector.
func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.liveDesc
	ch <- c.errDesc
}

// Collect implements prometheus.Collector.
func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if n, err := c.count(ctx); err != nil {
		c.scrapeErrs.Add(1)
	} else {
		ch <- prometheus.MustNewConstMetric(c.liveDesc, prometheus.GaugeValue, float64(n))
	}

	ch <- prometheus.MustNewConstMetric(c.errDesc, prometheus.CounterValue, float64(c.scrapeErrs.Load()))
}
