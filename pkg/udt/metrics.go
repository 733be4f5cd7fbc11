package udt

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector implements prometheus.Collector over an Interface, exposing two
// gauges: interface-wide outstanding posts, and per-endpoint
// posted-datagram state.
type Collector struct {
	mu          sync.Mutex
	ifc         *Interface
	outstanding *prometheus.Desc
	posted      *prometheus.Desc
}

// NewCollector builds a Collector for ifc. constLabels follows the
// teacher's convention of attaching process-wide labels (app, hostname) at
// construction time rather than per-metric.
func NewCollector(ifc *Interface, constLabels prometheus.Labels) *Collector {
	return &Collector{
		ifc: ifc,
		outstanding: prometheus.NewDesc(
			"udt_interface_outstanding",
			"Number of UDT posts submitted but not yet completed on this interface.",
			nil, constLabels,
		),
		posted: prometheus.NewDesc(
			"udt_endpoint_posted",
			"Whether an endpoint currently has an outstanding posted datagram (0 or 1).",
			[]string{"endpoint"}, constLabels,
		),
	}
}

func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.outstanding
	descs <- c.posted
}

func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ifc.endpointsMu.Lock()
	defer c.ifc.endpointsMu.Unlock()

	metrics <- prometheus.MustNewConstMetric(c.outstanding, prometheus.GaugeValue, float64(c.ifc.outstanding))

	for key, ep := range c.ifc.endpoints {
		posted := 0.0
		if ep.postedDesc != nil {
			posted = 1.0
		}
		metrics <- prometheus.MustNewConstMetric(c.posted, prometheus.GaugeValue, posted, strconv.FormatUint(uint64(key), 16))
	}
}
