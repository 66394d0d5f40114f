// SPDX-License-Identifier: MIT
package transport

import (
	"sync/atomic"

	"pdmcap/internal/pdm"
)

// LoggingTransport implements the Transport interface by logging a summary
// of every buffer at debug level. It is the default when no network
// transport is configured.
type LoggingTransport struct {
	format  pdm.Format
	buffers atomic.Int64
	samples atomic.Int64
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport(f pdm.Format) *LoggingTransport {
	logger.Infof("using LoggingTransport")
	return &LoggingTransport{format: f}
}

// Send logs the buffer's first sample; it never fails.
func (lt *LoggingTransport) Send(samples []byte, numSamples int) error {
	n := lt.buffers.Add(1)
	lt.samples.Add(int64(numSamples))
	if numSamples > 0 {
		logger.Debugf("buffer %d: %d samples, first %d", n, numSamples, lt.format.Size.Sample(samples, 0))
	}
	return nil
}

// Buffers returns how many buffers were sent.
func (lt *LoggingTransport) Buffers() int64 { return lt.buffers.Load() }

// Close logs the totals.
func (lt *LoggingTransport) Close() error {
	logger.Infof("LoggingTransport: %d buffers, %d samples", lt.buffers.Load(), lt.samples.Load())
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
