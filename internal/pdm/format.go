// SPDX-License-Identifier: MIT
package pdm

import "encoding/binary"

// Sample returns converted sample i of buf as stored: 0..255 for
// Unsigned8, a signed value for the 16-bit sizes.
func (o OutputSize) Sample(buf []byte, i int) int {
	if o == Unsigned8 {
		return int(buf[i])
	}
	return int(int16(binary.NativeEndian.Uint16(buf[i*2:])))
}

// Normalized returns sample i of buf scaled to [-1, 1].
func (o OutputSize) Normalized(buf []byte, i int) float64 {
	if o == Unsigned8 {
		return float64(int(buf[i])-128) / 128
	}
	return float64(o.Sample(buf, i)) / 32768
}

// Format describes the buffers a driver delivers.
type Format struct {
	SampleRate int
	Channels   int
	Size       OutputSize
}

// FrameSize returns the bytes per frame.
func (f Format) FrameSize() int {
	return f.Channels * f.Size.SampleSize()
}

// Format returns the delivered format for the current configuration.
func (d *Driver) Format() Format {
	cfg := d.Config()
	return Format{
		SampleRate: d.SampleRate(),
		Channels:   cfg.Channels(),
		Size:       cfg.OutputSize,
	}
}
