// SPDX-License-Identifier: MIT
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CaptureMetrics contains Prometheus metrics for the capture session
type CaptureMetrics struct {
	sinkWritesTotal   *prometheus.CounterVec
	sinkErrorsTotal   *prometheus.CounterVec
	sinkBytesTotal    *prometheus.CounterVec
	sinkWriteDuration *prometheus.HistogramVec
	ringDroppedTotal  prometheus.Counter
	levelDBFS         *prometheus.GaugeVec
	peakDBFS          *prometheus.GaugeVec
}

var _ prometheus.Collector = (*CaptureMetrics)(nil)

// NewCaptureMetrics creates and registers capture metrics
func NewCaptureMetrics(registry prometheus.Registerer) (*CaptureMetrics, error) {
	m := &CaptureMetrics{
		sinkWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sink_writes_total",
				Help:      "Buffers handed to each sink",
			},
			[]string{"sink"},
		),
		sinkErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sink_errors_total",
				Help:      "Sink writes that returned an error",
			},
			[]string{"sink"},
		),
		sinkBytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sink_bytes_total",
				Help:      "Sample bytes handed to each sink",
			},
			[]string{"sink"},
		),
		sinkWriteDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sink_write_duration_seconds",
				Help:      "Time spent in each sink write",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8), // 10us to ~160ms
			},
			[]string{"sink"},
		),
		ringDroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ring_dropped_bytes_total",
				Help:      "Bytes dropped by the interrupt ring because the consumer fell behind",
			},
		),
		levelDBFS: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "level_dbfs",
				Help:      "RMS level of the latest buffer in dBFS",
			},
			[]string{"channel"},
		),
		peakDBFS: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "peak_dbfs",
				Help:      "Peak level of the latest buffer in dBFS",
			},
			[]string{"channel"},
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ObserveSink records one sink write.
func (m *CaptureMetrics) ObserveSink(sink string, bytes int, d time.Duration, err error) {
	m.sinkWritesTotal.WithLabelValues(sink).Inc()
	m.sinkBytesTotal.WithLabelValues(sink).Add(float64(bytes))
	m.sinkWriteDuration.WithLabelValues(sink).Observe(d.Seconds())
	if err != nil {
		m.sinkErrorsTotal.WithLabelValues(sink).Inc()
	}
}

// ObserveDropped records bytes the interrupt ring could not hold.
func (m *CaptureMetrics) ObserveDropped(bytes int) {
	m.ringDroppedTotal.Add(float64(bytes))
}

// SetLevel publishes the latest level of a channel.
func (m *CaptureMetrics) SetLevel(channel int, rmsDBFS, peakDBFS float64) {
	ch := strconv.Itoa(channel)
	m.levelDBFS.WithLabelValues(ch).Set(rmsDBFS)
	m.peakDBFS.WithLabelValues(ch).Set(peakDBFS)
}

// Describe implements the Collector interface
func (m *CaptureMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.sinkWritesTotal.Describe(ch)
	m.sinkErrorsTotal.Describe(ch)
	m.sinkBytesTotal.Describe(ch)
	m.sinkWriteDuration.Describe(ch)
	m.ringDroppedTotal.Describe(ch)
	m.levelDBFS.Describe(ch)
	m.peakDBFS.Describe(ch)
}

// Collect implements the Collector interface
func (m *CaptureMetrics) Collect(ch chan<- prometheus.Metric) {
	m.sinkWritesTotal.Collect(ch)
	m.sinkErrorsTotal.Collect(ch)
	m.sinkBytesTotal.Collect(ch)
	m.sinkWriteDuration.Collect(ch)
	m.ringDroppedTotal.Collect(ch)
	m.levelDBFS.Collect(ch)
	m.peakDBFS.Collect(ch)
}
