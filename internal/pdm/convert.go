// SPDX-License-Identifier: MIT
package pdm

import "encoding/binary"

// converter rescales raw peripheral samples into the configured output
// representation. It runs in the producer context and never allocates.
type converter struct {
	size       OutputSize
	shift      uint
	decimation int // keep one frame out of every decimation frames
	channels   int
}

func newConverter(cfg Config, g Geometry) (converter, error) {
	n, err := cfg.decimation(g)
	if err != nil {
		return converter{}, err
	}
	return converter{
		size:       cfg.OutputSize,
		shift:      cfg.Range.Shift(),
		decimation: n,
		channels:   cfg.Channels(),
	}, nil
}

// outputSamples returns how many samples convert produces from n raw samples.
func (c converter) outputSamples(n int) int {
	return n / c.decimation
}

// convert writes the converted form of src into dst and returns the number
// of samples written. dst may share memory with src: output sample j never
// lands beyond the bytes of input sample j, and input is only read at
// indexes >= j.
func (c converter) convert(dst []byte, src []int16) int {
	out := 0
	step := c.decimation * c.channels
	for frame := 0; frame+c.channels <= len(src); frame += step {
		for ch := 0; ch < c.channels; ch++ {
			v := src[frame+ch]
			switch c.size {
			case Unsigned8:
				dst[out] = toUnsigned8(v, c.shift)
			case Signed16:
				binary.NativeEndian.PutUint16(dst[out*2:], uint16(toSigned16(v, c.shift)))
			default:
				binary.NativeEndian.PutUint16(dst[out*2:], uint16(v))
			}
			out++
		}
	}
	return out
}

// toUnsigned8 divides by 2^shift (truncating toward zero), clips to signed
// 8-bit and offsets into 0..255.
func toUnsigned8(v int16, shift uint) uint8 {
	val := int32(v) / (int32(1) << shift)
	if val < -128 {
		val = -128
	}
	if val > 127 {
		val = 127
	}
	return uint8(val + 128)
}

// toSigned16 multiplies by 2^(8-shift) and clips symmetrically.
func toSigned16(v int16, shift uint) int16 {
	val := int32(v) * (int32(1) << (8 - shift))
	if val < -32767 {
		val = -32767
	}
	if val > 32767 {
		val = 32767
	}
	return int16(val)
}
