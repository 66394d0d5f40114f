// SPDX-License-Identifier: MIT
package capture

import "errors"

// ErrStop is returned by a sink that wants the session to end normally,
// e.g. a recorder that reached its duration limit.
var ErrStop = errors.New("capture: stop requested by sink")

// Sink consumes delivered buffers on the consumer side. samples is only
// valid until Write returns.
type Sink interface {
	Write(samples []byte, numSamples int) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(samples []byte, numSamples int) error

func (f SinkFunc) Write(samples []byte, numSamples int) error {
	return f(samples, numSamples)
}

// StopOn wraps sink so that err (matched with errors.Is) ends the session
// instead of being reported as a failure.
func StopOn(sink Sink, err error) Sink {
	return SinkFunc(func(samples []byte, numSamples int) error {
		werr := sink.Write(samples, numSamples)
		if werr != nil && errors.Is(werr, err) {
			return ErrStop
		}
		return werr
	})
}
