// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math/cmplx"
	"strings"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"

	applog "pdmcap/internal/log"
	"pdmcap/internal/pdm"
	"pdmcap/pkg/bitint"
)

var logger = applog.For("analysis")

// WindowFunc selects the FFT window.
type WindowFunc int

const (
	Hann WindowFunc = iota
	Hamming
	Blackman
	Rectangular
)

// ParseWindowFunc converts a name (case-insensitive) to a WindowFunc. It
// returns Hann and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "hann", "hanning", "":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "blackman":
		return Blackman, nil
	case "rectangular", "none":
		return Rectangular, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// Pre-allocated buffers for FFT calculations.
type fftWorkspace struct {
	input     []float64
	fftOutput []complex128
	magnitude []float64
	window    []float64
}

// Spectrum computes the magnitude spectrum of the first channel of each
// buffer. Shorter buffers are zero padded; longer ones are truncated.
type Spectrum struct {
	fft       *fourier.FFT
	size      int
	format    pdm.Format
	mu        sync.RWMutex // Protects workspace.magnitude
	workspace fftWorkspace
}

var _ Processor = (*Spectrum)(nil)

// NewSpectrum returns an analyser of size points; size must be a power of two.
func NewSpectrum(size int, f pdm.Format, wf WindowFunc) (*Spectrum, error) {
	if !bitint.IsPowerOfTwo(size) || size < 2 {
		return nil, fmt.Errorf("fft size must be a power of 2, got %d", size)
	}
	if f.SampleRate <= 0 || f.Channels < 1 {
		return nil, fmt.Errorf("analysis: invalid format %+v", f)
	}

	coeffs := make([]float64, size)
	floats.AddConst(1, coeffs)
	switch wf {
	case Hamming:
		window.Hamming(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case Rectangular:
	default:
		window.Hann(coeffs)
	}

	logger.Debugf("spectrum: size %d, rate %d Hz, window %d", size, f.SampleRate, wf)
	bins := size/2 + 1
	return &Spectrum{
		fft:    fourier.NewFFT(size),
		size:   size,
		format: f,
		workspace: fftWorkspace{
			input:     make([]float64, size),
			fftOutput: make([]complex128, bins),
			magnitude: make([]float64, bins),
			window:    coeffs,
		},
	}, nil
}

// Process windows the first channel of samples and updates the spectrum.
func (s *Spectrum) Process(samples []byte, numSamples int) error {
	ch := s.format.Channels
	frames := numSamples / ch
	w := &s.workspace
	for i := range s.size {
		if i < frames {
			w.input[i] = s.format.Size.Normalized(samples, i*ch) * w.window[i]
		} else {
			w.input[i] = 0
		}
	}
	s.fft.Coefficients(w.fftOutput, w.input)

	s.mu.Lock()
	for i, c := range w.fftOutput {
		w.magnitude[i] = cmplx.Abs(c)
	}
	s.mu.Unlock()
	return nil
}

// MagnitudesInto copies the latest magnitudes into dst, which must hold
// Bins() values.
func (s *Spectrum) MagnitudesInto(dst []float64) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(dst) != len(s.workspace.magnitude) {
		return fmt.Errorf("destination slice length %d does not match required length %d", len(dst), len(s.workspace.magnitude))
	}
	copy(dst, s.workspace.magnitude)
	return nil
}

// Bins returns the number of magnitude bins.
func (s *Spectrum) Bins() int { return s.size/2 + 1 }

// FrequencyForBin returns the centre frequency of bin i in Hz.
func (s *Spectrum) FrequencyForBin(i int) float64 {
	if i < 0 || i >= s.Bins() {
		return 0
	}
	return s.fft.Freq(i) * float64(s.format.SampleRate)
}

// Dominant returns the frequency of the strongest non-DC bin and its
// magnitude.
func (s *Spectrum) Dominant() (freq, magnitude float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mags := s.workspace.magnitude[1:]
	i := floats.MaxIdx(mags)
	return s.FrequencyForBin(i + 1), mags[i]
}
