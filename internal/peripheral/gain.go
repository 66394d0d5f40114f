// SPDX-License-Identifier: MIT
package peripheral

import (
	"math"

	"pdmcap/internal/pdm"
	"pdmcap/pkg/waveform"
)

// Gain emulates the PDM gain stage: register values in half-dB steps
// around pdm.GainDefault, applied per channel and clipped at the
// microphone resolution.
type Gain struct {
	left, right float64
	stereo      bool
	limit       float64
}

// NewGain returns the gain stage for cfg on a microphone with the given
// bit depth.
func NewGain(cfg pdm.HardwareConfig, bits int) Gain {
	return Gain{
		left:   GainFactor(cfg.GainLeft),
		right:  GainFactor(cfg.GainRight),
		stereo: cfg.Stereo,
		limit:  float64(waveform.FullScale(bits)),
	}
}

// GainFactor converts a gain register value to a linear factor.
func GainFactor(reg uint8) float64 {
	if reg == pdm.GainDefault {
		return 1
	}
	db := (float64(reg) - float64(pdm.GainDefault)) / 2
	return math.Pow(10, db/20)
}

// Unity reports whether Apply would leave samples unchanged.
func (g Gain) Unity() bool {
	return g.left == 1 && g.right == 1
}

// Apply scales buf in place. Interleaved stereo uses the right gain for odd
// samples.
func (g Gain) Apply(buf []int16) {
	if g.Unity() {
		return
	}
	for i := range buf {
		f := g.left
		if g.stereo && i%2 == 1 {
			f = g.right
		}
		v := math.Round(float64(buf[i]) * f)
		buf[i] = int16(math.Max(-g.limit-1, math.Min(g.limit, v)))
	}
}
