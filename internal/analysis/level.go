// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"pdmcap/internal/pdm"
)

// MinDBFS is the floor reported for silence.
const MinDBFS = -96.0

// Level summarises one channel of a buffer, scaled to [-1, 1].
type Level struct {
	RMS     float64
	Peak    float64 // largest absolute sample
	DC      float64 // mean, i.e. the offset of the signal
	Clipped int     // samples at full scale
}

// DBFS returns the RMS level in decibels relative to full scale.
func (l Level) DBFS() float64 {
	if l.RMS <= 0 {
		return MinDBFS
	}
	return max(20*math.Log10(l.RMS), MinDBFS)
}

// PeakDBFS returns the peak level in decibels relative to full scale.
func (l Level) PeakDBFS() float64 {
	if l.Peak <= 0 {
		return MinDBFS
	}
	return max(20*math.Log10(l.Peak), MinDBFS)
}

// Meter tracks per-channel levels of the latest buffer.
type Meter struct {
	format pdm.Format
	work   []float64 // one channel, deinterleaved

	mu      sync.RWMutex // Protects levels and buffers
	levels  []Level
	buffers int64
}

var _ Processor = (*Meter)(nil)

// NewMeter returns a meter for buffers of up to maxSamples samples.
func NewMeter(f pdm.Format, maxSamples int) (*Meter, error) {
	if f.Channels < 1 || f.Channels > 2 {
		return nil, fmt.Errorf("analysis: unsupported channel count %d", f.Channels)
	}
	return &Meter{
		format: f,
		work:   make([]float64, maxSamples/f.Channels),
		levels: make([]Level, f.Channels),
	}, nil
}

// Process measures samples. It only allocates when a buffer is larger than
// the one the meter was sized for.
func (m *Meter) Process(samples []byte, numSamples int) error {
	ch := m.format.Channels
	frames := numSamples / ch
	if frames == 0 {
		return nil
	}
	if cap(m.work) < frames {
		m.work = make([]float64, frames)
	}
	work := m.work[:frames]

	m.mu.Lock()
	defer m.mu.Unlock()
	for c := range ch {
		clipped := 0
		for i := range work {
			v := m.format.Size.Normalized(samples, i*ch+c)
			if isFullScale(m.format.Size, samples, i*ch+c) {
				clipped++
			}
			work[i] = v
		}
		m.levels[c] = measure(work, clipped)
	}
	m.buffers++
	return nil
}

func measure(work []float64, clipped int) Level {
	peak := math.Max(floats.Max(work), -floats.Min(work))
	return Level{
		RMS:     math.Sqrt(floats.Dot(work, work) / float64(len(work))),
		Peak:    peak,
		DC:      stat.Mean(work, nil),
		Clipped: clipped,
	}
}

func isFullScale(size pdm.OutputSize, buf []byte, i int) bool {
	v := size.Sample(buf, i)
	switch size {
	case pdm.Unsigned8:
		return v == 0 || v == 255
	case pdm.Signed16:
		return v >= 32767 || v <= -32767
	default:
		return false
	}
}

// Levels returns a copy of the latest per-channel levels.
func (m *Meter) Levels() []Level {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Level, len(m.levels))
	copy(out, m.levels)
	return out
}

// LevelsInto copies the latest levels into dst and returns how many were
// written.
func (m *Meter) LevelsInto(dst []Level) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copy(dst, m.levels)
}

// Buffers returns the number of buffers measured.
func (m *Meter) Buffers() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.buffers
}

// Format returns the format the meter was built for.
func (m *Meter) Format() pdm.Format { return m.format }
