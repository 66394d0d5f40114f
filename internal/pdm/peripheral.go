// SPDX-License-Identifier: MIT
package pdm

import (
	"fmt"

	"pdmcap/pkg/bitint"
)

// Buffer geometry of the supported targets. The DMA engines are sized at
// build time; the driver never resizes them.
const (
	NRF52BufferSamples   = 512 // 1024 bytes per buffer
	NRF52NumBuffers      = 2
	RTL872xBufferSamples = 256 // 512 bytes, the optimal RTL872x DMA size
	RTL872xNumBuffers    = 4

	// HardwareSampleRate is the PCM rate produced by the decimation filter
	// with the default 1.032 MHz PDM clock (16125 Hz, nominally 16 kHz).
	HardwareSampleRate = 16000
)

// Geometry describes the fixed sample region of a target.
type Geometry struct {
	BufferSizeSamples int // int16 samples per DMA buffer
	NumBuffers        int // buffers cycled through the peripheral
	SampleRate        int // PCM samples per second per channel
}

var (
	GeometryNRF52   = Geometry{NRF52BufferSamples, NRF52NumBuffers, HardwareSampleRate}
	GeometryRTL872x = Geometry{RTL872xBufferSamples, RTL872xNumBuffers, HardwareSampleRate}
)

// RegionSamples returns the size of the backing region in samples.
func (g Geometry) RegionSamples() int {
	return g.BufferSizeSamples * g.NumBuffers
}

func (g Geometry) validate() error {
	if !bitint.IsPowerOfTwo(g.BufferSizeSamples) {
		return fmt.Errorf("%w: buffer size %d is not a power of two", ErrInvalidConfig, g.BufferSizeSamples)
	}
	if g.NumBuffers < 2 {
		return fmt.Errorf("%w: need at least 2 buffers, got %d", ErrInvalidConfig, g.NumBuffers)
	}
	if g.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidConfig, g.SampleRate)
	}
	return nil
}

// Capabilities lists what the hardware can do beyond streaming.
type Capabilities struct {
	CanStop   bool // the DMA engine can be halted
	CanUninit bool // the peripheral resources can be released
}

// Event is delivered by the hardware layer from its interrupt context.
// Released is the buffer that has just been filled (nil if none); Requested
// asks the driver to queue the next destination with SetBuffer.
type Event struct {
	Released  []int16
	Requested bool
	Err       error
}

// EventHandler is invoked from the producer (interrupt) context. It must not
// block or allocate.
type EventHandler func(Event)

// HardwareConfig is consumed by Peripheral.Init only.
type HardwareConfig struct {
	ClockPin       Pin
	DataPin        Pin
	ClockFrequency ClockFrequency
	Edge           Edge
	GainLeft       uint8
	GainRight      uint8
	Stereo         bool
}

// Peripheral is the hardware-specific DMA layer underneath the driver.
type Peripheral interface {
	Geometry() Geometry
	Capabilities() Capabilities
	Init(cfg HardwareConfig, handler EventHandler) error
	Uninit() error
	Start() error
	Stop() error
	// SetBuffer queues buf as the next fill destination. Called from the
	// event handler.
	SetBuffer(buf []int16) error
}
