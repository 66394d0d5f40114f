// SPDX-License-Identifier: MIT
// Package metrics exposes driver and capture counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"pdmcap/internal/pdm"
)

const namespace = "pdmcap"

// StatsSource is the part of *pdm.Driver the collector reads.
type StatsSource interface {
	Stats() pdm.Stats
	State() pdm.State
}

// DriverCollector reads the driver counters at scrape time, so the capture
// path never touches Prometheus.
type DriverCollector struct {
	src   StatsSource
	state *prometheus.Desc
	descs [8]*prometheus.Desc
}

var _ prometheus.Collector = (*DriverCollector)(nil)

var driverCounters = [8]struct{ name, help string }{
	{"buffers_published_total", "Buffers staged for polling."},
	{"buffers_delivered_total", "Buffers pushed to the interrupt callback."},
	{"buffers_claimed_total", "Buffers taken by CopySamples or NoCopySamples."},
	{"buffers_superseded_total", "Staged buffers replaced before being claimed."},
	{"overruns_total", "Filled buffers recycled because no slot was free."},
	{"buffers_discarded_total", "Buffers released while not armed or after a restart."},
	{"event_errors_total", "Errors reported alongside peripheral events."},
	{"stray_buffers_total", "Released buffers outside the sample region."},
}

// NewDriverCollector returns a collector for src. Labels are attached to
// every series, e.g. {"target": "nrf52"}.
func NewDriverCollector(src StatsSource, labels prometheus.Labels) *DriverCollector {
	c := &DriverCollector{
		src: src,
		state: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "driver", "state"),
			"Driver state: 0 uninitialized, 1 idle, 2 armed, 3 stopped.",
			nil, labels,
		),
	}
	for i, m := range driverCounters {
		c.descs[i] = prometheus.NewDesc(prometheus.BuildFQName(namespace, "driver", m.name), m.help, nil, labels)
	}
	return c
}

// Describe implements the Collector interface
func (c *DriverCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.state
	for _, d := range c.descs {
		ch <- d
	}
}

// Collect implements the Collector interface
func (c *DriverCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	values := [8]uint64{
		s.Published, s.Delivered, s.Claimed, s.Superseded,
		s.Overruns, s.Discarded, s.EventErrors, s.Stray,
	}
	ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, float64(c.src.State()))
	for i, v := range values {
		ch <- prometheus.MustNewConstMetric(c.descs[i], prometheus.CounterValue, float64(v))
	}
}
