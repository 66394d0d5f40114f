// SPDX-License-Identifier: MIT
package sim

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"pdmcap/internal/pdm"
	"pdmcap/pkg/waveform"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newDriver(t *testing.T, mic *Mic, cfg pdm.Config) *pdm.Driver {
	t.Helper()
	d, err := pdm.New(mic)
	if err != nil {
		t.Fatalf("pdm.New: %v", err)
	}
	if err := d.Configure(cfg); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := d.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = mic.Close() })
	return d
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"nrf52", "nrf52", false},
		{"RTL872x", "rtl872x", false},
		{"esp32", "", true},
	}
	for _, tt := range tests {
		p, err := Lookup(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("Lookup(%q) error = %v", tt.name, err)
			continue
		}
		if err != nil && !errors.Is(err, ErrUnknownTarget) {
			t.Errorf("Lookup(%q) error = %v, want ErrUnknownTarget", tt.name, err)
		}
		if p.Name != tt.want {
			t.Errorf("Lookup(%q) = %q, want %q", tt.name, p.Name, tt.want)
		}
	}
}

func TestBufferPeriod(t *testing.T) {
	if got := NRF52.BufferPeriod(1); got != 32*time.Millisecond {
		t.Errorf("nrf52 mono period = %v", got)
	}
	if got := RTL872x.BufferPeriod(2); got != 8*time.Millisecond {
		t.Errorf("rtl872x stereo period = %v", got)
	}
}

func TestManualClockDeliversConvertedRamp(t *testing.T) {
	mic := New(NRF52, WithManualClock(), WithSource(&waveform.Ramp{Start: -256}))
	cfg := pdm.DefaultConfig()
	cfg.OutputSize = pdm.Unsigned8
	d := newDriver(t, mic, cfg)

	if mic.Step() {
		t.Fatal("Step before Start completed a buffer")
	}
	if err := d.Start(pdm.Polled()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !mic.Step() {
		t.Fatal("Step did not complete a buffer")
	}

	dst := make([]byte, d.BufferSizeInBytes())
	if !d.CopySamples(dst) {
		t.Fatal("no samples after one buffer")
	}
	for i := range d.NumberOfSamples() {
		want := (i-256)/16 + 128
		if got := pdm.Unsigned8.Sample(dst, i); got != want {
			t.Fatalf("sample %d = %d, want %d", i, got, want)
		}
	}

	if err := d.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if mic.Step() {
		t.Error("Step after Stop completed a buffer")
	}
	if err := d.Uninit(); err != nil {
		t.Fatalf("Uninit: %v", err)
	}
}

func TestRTL872xKeepsRunningWhenStopped(t *testing.T) {
	mic := New(RTL872x, WithManualClock(), WithSource(waveform.Constant{Value: 100}))
	d := newDriver(t, mic, pdm.DefaultConfig())

	if err := mic.Stop(); !errors.Is(err, pdm.ErrUnsupported) {
		t.Errorf("Stop = %v, want ErrUnsupported", err)
	}
	if err := d.Uninit(); !errors.Is(err, pdm.ErrUnsupported) {
		t.Errorf("Uninit = %v, want ErrUnsupported", err)
	}

	_ = d.Start(pdm.Polled())
	mic.Step()
	if err := d.Stop(); err != nil {
		t.Fatalf("driver Stop: %v", err)
	}
	if d.State() != pdm.Stopped {
		t.Fatalf("state = %v", d.State())
	}

	before := mic.Released()
	if !mic.Step() || mic.Released() != before+1 {
		t.Fatal("DMA stopped with the driver")
	}
	if d.SamplesAvailable() {
		t.Error("buffer delivered while stopped")
	}
}

func TestGainScalesAndClips(t *testing.T) {
	mic := New(NRF52, WithManualClock(), WithSource(waveform.Constant{Value: 100}))
	cfg := pdm.DefaultConfig()
	cfg.OutputSize = pdm.RawSigned16
	cfg.GainLeft = pdm.GainDefault + 12 // +6 dB
	cfg.GainRight = cfg.GainLeft
	d := newDriver(t, mic, cfg)
	_ = d.Start(pdm.Polled())
	mic.Step()

	dst := make([]byte, d.BufferSizeInBytes())
	if !d.CopySamples(dst) {
		t.Fatal("no samples")
	}
	if got := pdm.RawSigned16.Sample(dst, 0); got != 200 {
		t.Errorf("+6 dB of 100 = %d, want 200", got)
	}

	loud := New(NRF52, WithManualClock(), WithSource(waveform.Constant{Value: 2000}))
	cfg.GainLeft = pdm.GainMaximum
	cfg.GainRight = pdm.GainMaximum
	d = newDriver(t, loud, cfg)
	_ = d.Start(pdm.Polled())
	loud.Step()
	d.CopySamples(dst)
	if got := pdm.RawSigned16.Sample(dst, 0); got != 2047 {
		t.Errorf("clipped sample = %d, want 2047", got)
	}
}

func TestInjectFault(t *testing.T) {
	mic := New(NRF52, WithManualClock())
	d := newDriver(t, mic, pdm.DefaultConfig())
	_ = d.Start(pdm.Polled())

	fault := errors.New("fifo overflow")
	mic.InjectFault(fault)
	mic.Step()

	if !d.SamplesAvailable() {
		t.Error("faulted buffer was not delivered")
	}
	if err := d.Stop(); !errors.Is(err, fault) || !errors.Is(err, pdm.ErrPeripheral) {
		t.Errorf("Stop = %v", err)
	}
}

func TestClockDrivesInterruptDelivery(t *testing.T) {
	mic := New(RTL872x, WithPeriod(time.Millisecond))
	d := newDriver(t, mic, pdm.DefaultConfig())

	var delivered atomic.Int64
	err := d.Start(pdm.Interrupt(func(samples []byte, n int) {
		if n == pdm.RTL872xBufferSamples && len(samples) == 2*n {
			delivered.Add(1)
		}
	}))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for delivered.Load() < 5 {
		if time.Now().After(deadline) {
			t.Fatalf("only %d buffers delivered", delivered.Load())
		}
		time.Sleep(time.Millisecond)
	}

	if err := d.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	// Let a delivery that raced Stop finish.
	time.Sleep(5 * time.Millisecond)
	stopped := delivered.Load()
	time.Sleep(10 * time.Millisecond)
	if delivered.Load() != stopped {
		t.Error("buffers delivered after Stop")
	}
	if err := mic.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestInitTwice(t *testing.T) {
	mic := New(NRF52, WithManualClock())
	if err := mic.Init(pdm.HardwareConfig{}, func(pdm.Event) {}); err != nil {
		t.Fatal(err)
	}
	if err := mic.Init(pdm.HardwareConfig{}, func(pdm.Event) {}); !errors.Is(err, ErrBusy) {
		t.Errorf("second Init = %v", err)
	}
	if err := mic.Start(); err != nil {
		t.Fatal(err)
	}
	_ = mic.Close()
}
