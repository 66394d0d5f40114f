// SPDX-License-Identifier: MIT
package pdm

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"pdmcap/pkg/bitint"
)

// OutputSize selects the representation handed to the consumer.
type OutputSize uint8

const (
	Signed16    OutputSize = iota // signed 16-bit scaled by Range (default)
	Unsigned8                     // unsigned 8-bit scaled by Range, 128 is silence
	RawSigned16                   // signed 16-bit as produced by the peripheral
)

func (o OutputSize) String() string {
	switch o {
	case Signed16:
		return "signed16"
	case Unsigned8:
		return "unsigned8"
	case RawSigned16:
		return "raw16"
	default:
		return "unknown"
	}
}

// SampleSize returns the size of one converted sample in bytes.
func (o OutputSize) SampleSize() int {
	if o == Unsigned8 {
		return 1
	}
	return 2
}

// BitDepth returns the bits per converted sample.
func (o OutputSize) BitDepth() int {
	return o.SampleSize() * 8
}

// ParseOutputSize converts a config string (case-insensitive) to an OutputSize.
func ParseOutputSize(s string) (OutputSize, error) {
	switch strings.ToLower(s) {
	case "signed16", "s16", "":
		return Signed16, nil
	case "unsigned8", "u8":
		return Unsigned8, nil
	case "raw16", "raw", "rawsigned16":
		return RawSigned16, nil
	default:
		return Signed16, fmt.Errorf("%w: unknown output size %q", ErrInvalidConfig, s)
	}
}

// Range is the effective bit depth of the microphone, stored as the shift
// that maps it onto 8 bits. The Adafruit PDM microphone is 12-bit, hence the
// Range2048 default.
type Range uint8

const (
	Range128   Range = iota // -128 to 127 (8 bits)
	Range256                // 9 bits
	Range512                // 10 bits
	Range1024               // 11 bits
	Range2048               // 12 bits (default)
	Range4096               // 13 bits
	Range8192               // 14 bits
	Range16384              // 15 bits
	Range32768              // 16 bits, same as raw
)

// Shift returns the power-of-two exponent applied during conversion.
func (r Range) Shift() uint { return uint(r) }

// Span returns the positive magnitude of the range, e.g. 2048.
func (r Range) Span() int { return 128 << r }

func (r Range) String() string { return strconv.Itoa(r.Span()) }

// ParseRange accepts the span ("2048") of a supported range.
func ParseRange(s string) (Range, error) {
	v, err := strconv.Atoi(strings.TrimPrefix(strings.ToLower(s), "range_"))
	if err != nil {
		return Range2048, fmt.Errorf("%w: range %q", ErrInvalidConfig, s)
	}
	e := bitint.Log2(v)
	if e < 7 || e > 15 {
		return Range2048, fmt.Errorf("%w: unsupported range %d", ErrInvalidConfig, v)
	}
	return Range(e - 7), nil
}

// Pin is a board pin number. NoPin keeps the target default.
type Pin int16

const NoPin Pin = -1

// Edge selects the clock edge on which the left (or mono) channel is sampled.
type Edge uint8

const (
	EdgeLeftFalling Edge = iota
	EdgeLeftRising
)

// ClockFrequency is the PDM clock in Hz.
type ClockFrequency uint32

const (
	Freq1000K ClockFrequency = 1000000
	Freq1032K ClockFrequency = 1032000 // 16125 Hz PCM
	Freq1067K ClockFrequency = 1067000
)

// Gain register values, 0.5 dB per step.
const (
	GainMinimum uint8 = 0x00 // -20 dB
	GainDefault uint8 = 0x28 // 0 dB
	GainMaximum uint8 = 0x50 // +20 dB
)

// GainFromDB converts a gain in dB to the register value, clamping to
// [-20, +20] dB.
func GainFromDB(db float64) uint8 {
	db = math.Max(-20, math.Min(20, db))
	halfSteps := int(db * 2)
	return uint8(halfSteps + int(GainDefault))
}

// Config holds every setting of a capture session. It can only be changed
// while the driver is not armed.
type Config struct {
	OutputSize OutputSize
	Range      Range
	Stereo     bool
	// SampleRate is the rate delivered to the consumer. Zero means the
	// hardware rate; lower rates must divide it evenly and are produced by
	// dropping samples.
	SampleRate int

	ClockPin       Pin
	DataPin        Pin
	ClockFrequency ClockFrequency
	Edge           Edge
	GainLeft       uint8
	GainRight      uint8
}

// DefaultConfig returns signed 16-bit mono output for a 12-bit microphone.
func DefaultConfig() Config {
	return Config{
		OutputSize:     Signed16,
		Range:          Range2048,
		ClockPin:       NoPin,
		DataPin:        NoPin,
		ClockFrequency: Freq1032K,
		Edge:           EdgeLeftFalling,
		GainLeft:       GainDefault,
		GainRight:      GainDefault,
	}
}

// Channels returns 2 in stereo mode, otherwise 1.
func (c Config) Channels() int {
	if c.Stereo {
		return 2
	}
	return 1
}

// decimation returns the drop factor needed to reach SampleRate from the
// hardware geometry.
func (c Config) decimation(g Geometry) (int, error) {
	if c.SampleRate == 0 || c.SampleRate == g.SampleRate {
		return 1, nil
	}
	if c.SampleRate < 0 || c.SampleRate > g.SampleRate || g.SampleRate%c.SampleRate != 0 {
		return 0, fmt.Errorf("%w: sample rate %d Hz is not an integer divisor of %d Hz",
			ErrInvalidConfig, c.SampleRate, g.SampleRate)
	}
	n := g.SampleRate / c.SampleRate
	if (g.BufferSizeSamples/c.Channels())%n != 0 {
		return 0, fmt.Errorf("%w: decimation %d does not divide %d frames per buffer",
			ErrInvalidConfig, n, g.BufferSizeSamples/c.Channels())
	}
	return n, nil
}

func (c Config) validate(g Geometry) error {
	if c.OutputSize > RawSigned16 {
		return fmt.Errorf("%w: output size %d", ErrInvalidConfig, c.OutputSize)
	}
	if c.Range > Range32768 {
		return fmt.Errorf("%w: range shift %d", ErrInvalidConfig, c.Range)
	}
	if c.GainLeft > GainMaximum || c.GainRight > GainMaximum {
		return fmt.Errorf("%w: gain above 0x%02x", ErrInvalidConfig, GainMaximum)
	}
	_, err := c.decimation(g)
	return err
}

func (c Config) hardware() HardwareConfig {
	return HardwareConfig{
		ClockPin:       c.ClockPin,
		DataPin:        c.DataPin,
		ClockFrequency: c.ClockFrequency,
		Edge:           c.Edge,
		GainLeft:       c.GainLeft,
		GainRight:      c.GainRight,
		Stereo:         c.Stereo,
	}
}
