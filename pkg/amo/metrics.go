package amo

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// retries counts provider progress() calls driven by NoResource/InProgress
// retries across every Facade sharing this counter.
type retryCounter struct {
	n uint64
}

func (r *retryCounter) inc() { atomic.AddUint64(&r.n, 1) }
func (r *retryCounter) get() uint64 { return atomic.LoadUint64(&r.n) }

// Collector exposes a Facade's retry count as a prometheus.Collector.
type Collector struct {
	f    *Facade
	desc *prometheus.Desc
}

// NewCollector builds a Collector for f.
func NewCollector(f *Facade, constLabels prometheus.Labels) *Collector {
	return &Collector{
		f: f,
		desc: prometheus.NewDesc(
			"amo_retries_total",
			"Number of provider progress() calls driven by NoResource/InProgress retries in the AMO facade and emulator.",
			nil, constLabels,
		),
	}
}

func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.desc
}

func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	metrics <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(c.f.retries.get()))
}
