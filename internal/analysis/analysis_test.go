// SPDX-License-Identifier: MIT
package analysis

import (
	"encoding/binary"
	"math"
	"testing"

	"pdmcap/internal/pdm"
	"pdmcap/pkg/waveform"
)

func encode16(vals []int16) []byte {
	b := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.NativeEndian.PutUint16(b[2*i:], uint16(v))
	}
	return b
}

func approx(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestMeterSine(t *testing.T) {
	f := pdm.Format{SampleRate: 16000, Channels: 1, Size: pdm.Signed16}
	m, err := NewMeter(f, 1600)
	if err != nil {
		t.Fatal(err)
	}

	// 1 kHz at half scale over exactly 100 periods.
	buf := make([]int16, 1600)
	(&waveform.Sine{Frequency: 1000, SampleRate: 16000, Amplitude: 0.5, Bits: 16}).Fill(buf)
	if err := m.Process(encode16(buf), len(buf)); err != nil {
		t.Fatal(err)
	}

	l := m.Levels()[0]
	if !approx(l.Peak, 0.5, 0.001) {
		t.Errorf("Peak = %f, want 0.5", l.Peak)
	}
	if !approx(l.RMS, 0.5/math.Sqrt2, 0.001) {
		t.Errorf("RMS = %f, want %f", l.RMS, 0.5/math.Sqrt2)
	}
	if !approx(l.DC, 0, 0.001) {
		t.Errorf("DC = %f, want 0", l.DC)
	}
	if !approx(l.DBFS(), -9.03, 0.05) {
		t.Errorf("DBFS = %f, want about -9.03", l.DBFS())
	}
	if l.Clipped != 0 {
		t.Errorf("Clipped = %d, want 0", l.Clipped)
	}
	if m.Buffers() != 1 {
		t.Errorf("Buffers() = %d, want 1", m.Buffers())
	}
}

func TestMeterUnsigned8Stereo(t *testing.T) {
	f := pdm.Format{SampleRate: 8000, Channels: 2, Size: pdm.Unsigned8}
	m, err := NewMeter(f, 8)
	if err != nil {
		t.Fatal(err)
	}
	// Left is silent at the midpoint, right is clipped at both rails.
	samples := []byte{128, 255, 128, 0, 128, 255, 128, 0}
	m.Process(samples, len(samples))

	levels := make([]Level, 2)
	if n := m.LevelsInto(levels); n != 2 {
		t.Fatalf("LevelsInto = %d, want 2", n)
	}
	if levels[0].RMS != 0 || levels[0].DBFS() != MinDBFS {
		t.Errorf("left = %+v, dBFS %f; want silence", levels[0], levels[0].DBFS())
	}
	if levels[1].Clipped != 4 {
		t.Errorf("right Clipped = %d, want 4", levels[1].Clipped)
	}
	if !approx(levels[1].Peak, 1, 0.01) {
		t.Errorf("right Peak = %f, want about 1", levels[1].Peak)
	}
}

func TestMeterDCOffset(t *testing.T) {
	f := pdm.Format{SampleRate: 16000, Channels: 1, Size: pdm.Signed16}
	m, _ := NewMeter(f, 4)
	m.Process(encode16([]int16{8192, 8192, 8192, 8192}), 4)
	l := m.Levels()[0]
	if !approx(l.DC, 0.25, 1e-9) || !approx(l.RMS, 0.25, 1e-9) {
		t.Errorf("level = %+v, want DC and RMS 0.25", l)
	}
}

func TestMeterRejectsChannels(t *testing.T) {
	if _, err := NewMeter(pdm.Format{SampleRate: 16000, Channels: 3}, 12); err == nil {
		t.Fatal("expected error for 3 channels")
	}
}

func TestMeterAllocs(t *testing.T) {
	f := pdm.Format{SampleRate: 16000, Channels: 1, Size: pdm.Signed16}
	m, _ := NewMeter(f, 512)
	samples := encode16(make([]int16, 512))
	allocs := testing.AllocsPerRun(100, func() {
		m.Process(samples, 512)
	})
	if allocs != 0 {
		t.Errorf("Process allocated %v times, want 0", allocs)
	}
}

func TestParseWindowFunc(t *testing.T) {
	tests := []struct {
		in      string
		want    WindowFunc
		wantErr bool
	}{
		{"hann", Hann, false},
		{"HAMMING", Hamming, false},
		{"blackman", Blackman, false},
		{"none", Rectangular, false},
		{"", Hann, false},
		{"kaiser", Hann, true},
	}
	for _, tt := range tests {
		got, err := ParseWindowFunc(tt.in)
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("ParseWindowFunc(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestSpectrumDominant(t *testing.T) {
	f := pdm.Format{SampleRate: 16000, Channels: 1, Size: pdm.Signed16}
	s, err := NewSpectrum(1024, f, Hann)
	if err != nil {
		t.Fatal(err)
	}

	// 1000 Hz falls exactly on bin 64 (16000 / 1024 = 15.625 Hz per bin).
	buf := make([]int16, 1024)
	(&waveform.Sine{Frequency: 1000, SampleRate: 16000, Amplitude: 0.8, Bits: 16}).Fill(buf)
	s.Process(encode16(buf), len(buf))

	freq, mag := s.Dominant()
	if freq != 1000 {
		t.Errorf("dominant frequency = %f, want 1000", freq)
	}
	if mag <= 0 {
		t.Errorf("dominant magnitude = %f, want > 0", mag)
	}

	mags := make([]float64, s.Bins())
	if err := s.MagnitudesInto(mags); err != nil {
		t.Fatal(err)
	}
	if mags[64] != mag {
		t.Errorf("bin 64 = %f, want %f", mags[64], mag)
	}
	if err := s.MagnitudesInto(mags[1:]); err == nil {
		t.Error("expected error for short destination")
	}
}

func TestSpectrumStereoUsesLeft(t *testing.T) {
	f := pdm.Format{SampleRate: 16000, Channels: 2, Size: pdm.Signed16}
	s, _ := NewSpectrum(256, f, Rectangular)

	left := make([]int16, 256)
	(&waveform.Sine{Frequency: 2000, SampleRate: 16000, Amplitude: 0.5, Bits: 16}).Fill(left)
	inter := make([]int16, 512)
	for i, v := range left {
		inter[2*i] = v
		inter[2*i+1] = 0
	}
	s.Process(encode16(inter), len(inter))
	if freq, _ := s.Dominant(); freq != 2000 {
		t.Errorf("dominant frequency = %f, want 2000", freq)
	}
}

func TestNewSpectrumValidation(t *testing.T) {
	f := pdm.Format{SampleRate: 16000, Channels: 1, Size: pdm.Signed16}
	if _, err := NewSpectrum(1000, f, Hann); err == nil {
		t.Error("expected error for non power of two size")
	}
	if _, err := NewSpectrum(256, pdm.Format{Channels: 1}, Hann); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

func BenchmarkMeter(b *testing.B) {
	f := pdm.Format{SampleRate: 16000, Channels: 1, Size: pdm.Signed16}
	m, _ := NewMeter(f, 512)
	samples := encode16(make([]int16, 512))
	for b.Loop() {
		m.Process(samples, 512)
	}
}

func BenchmarkSpectrum(b *testing.B) {
	f := pdm.Format{SampleRate: 16000, Channels: 1, Size: pdm.Signed16}
	s, _ := NewSpectrum(512, f, Hann)
	samples := encode16(make([]int16, 512))
	for b.Loop() {
		s.Process(samples, 512)
	}
}
