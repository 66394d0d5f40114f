// SPDX-License-Identifier: MIT
/*
Package waveform generates continuous test signals as raw microphone
samples. Generators keep their phase between calls so consecutive buffers
join without discontinuities, and quantize to the bit depth of the
simulated microphone (12 bits for the Adafruit PDM breakout).
*/
package waveform

import "math"

// Generator fills buf with the next len(buf) samples of a signal.
type Generator interface {
	Fill(buf []int16)
}

// FullScale returns the largest positive sample of a microphone with the
// given bit depth.
func FullScale(bits int) int {
	if bits < 2 || bits > 16 {
		bits = 16
	}
	return 1<<(bits-1) - 1
}

// Sine is a single tone. Amplitude is a fraction of full scale.
type Sine struct {
	Frequency  float64
	SampleRate float64
	Amplitude  float64
	Bits       int
	Channels   int // interleaved copies of the same tone, 1 if zero

	phase float64
}

func (s *Sine) Fill(buf []int16) {
	ch := max(s.Channels, 1)
	scale := s.Amplitude * float64(FullScale(s.Bits))
	step := 2 * math.Pi * s.Frequency / s.SampleRate
	for i := 0; i+ch <= len(buf); i += ch {
		v := int16(math.Round(math.Sin(s.phase) * scale))
		for c := range ch {
			buf[i+c] = v
		}
		s.phase += step
		if s.phase >= 2*math.Pi {
			s.phase -= 2 * math.Pi
		}
	}
}

// Complex is a 440 Hz fundamental with its second and third harmonics at
// 0.5, 0.3 and 0.2 of the amplitude.
type Complex struct {
	SampleRate float64
	Amplitude  float64
	Bits       int

	n int
}

func (c *Complex) Fill(buf []int16) {
	scale := c.Amplitude * float64(FullScale(c.Bits))
	for i := range buf {
		t := float64(c.n) / c.SampleRate
		signal := math.Sin(2*math.Pi*440*t)*0.5 +
			math.Sin(2*math.Pi*880*t)*0.3 +
			math.Sin(2*math.Pi*1320*t)*0.2
		buf[i] = int16(signal * scale)
		c.n++
		if c.n == int(c.SampleRate) {
			c.n = 0
		}
	}
}

// Ramp counts up by one per sample from Start, wrapping at the int16 range.
// Each buffer continues where the previous one ended.
type Ramp struct {
	Start int16
	Step  int16 // 1 if zero

	started bool
	next    int16
}

func (r *Ramp) Fill(buf []int16) {
	if !r.started {
		r.next = r.Start
		r.started = true
	}
	step := r.Step
	if step == 0 {
		step = 1
	}
	for i := range buf {
		buf[i] = r.next
		r.next += step
	}
}

// Constant fills every sample with Value; zero is silence.
type Constant struct {
	Value int16
}

func (c Constant) Fill(buf []int16) {
	for i := range buf {
		buf[i] = c.Value
	}
}

// New returns a generator by name: sine, complex, ramp or silence. Unknown
// names fall back to sine.
func New(name string, sampleRate float64, frequency float64, bits int) Generator {
	switch name {
	case "complex":
		return &Complex{SampleRate: sampleRate, Amplitude: 0.9, Bits: bits}
	case "ramp":
		return &Ramp{}
	case "silence":
		return Constant{}
	default:
		return &Sine{Frequency: frequency, SampleRate: sampleRate, Amplitude: 0.5, Bits: bits}
	}
}
