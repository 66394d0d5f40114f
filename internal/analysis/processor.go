// SPDX-License-Identifier: MIT
// Package analysis computes level and spectrum statistics over delivered
// sample buffers. Processors run on the consumer side.
package analysis

// Processor analyses one delivered buffer. Implementations must not retain
// samples past the call, so they can be fed from NoCopySamples.
type Processor interface {
	Process(samples []byte, numSamples int) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(samples []byte, numSamples int) error

func (f ProcessorFunc) Process(samples []byte, numSamples int) error {
	return f(samples, numSamples)
}
