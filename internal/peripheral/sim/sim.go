// SPDX-License-Identifier: MIT
/*
Package sim provides software PDM targets. A Mic runs the DMA engine from a
ticker paced at the buffer period, or from Step when built with
WithManualClock, and fills each buffer from a waveform source scaled by the
configured gain.

Profiles mirror the supported boards:
- nrf52: 512 samples x 2 buffers, the DMA can be stopped and released
- rtl872x: 256 samples x 4 buffers, once started the DMA runs until power
  off; Stop and Uninit report pdm.ErrUnsupported
*/
package sim

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"pdmcap/internal/peripheral"
	"pdmcap/internal/pdm"
	"pdmcap/pkg/waveform"
)

var (
	ErrUnknownTarget = errors.New("sim: unknown target")
	ErrNotReady      = errors.New("sim: not initialized")
	ErrBusy          = errors.New("sim: already initialized")
)

// Profile describes a simulated board.
type Profile struct {
	Name         string
	Geometry     pdm.Geometry
	Capabilities pdm.Capabilities
	Bits         int // effective microphone resolution
}

var (
	NRF52 = Profile{
		Name:         "nrf52",
		Geometry:     pdm.GeometryNRF52,
		Capabilities: pdm.Capabilities{CanStop: true, CanUninit: true},
		Bits:         12,
	}
	RTL872x = Profile{
		Name:         "rtl872x",
		Geometry:     pdm.GeometryRTL872x,
		Capabilities: pdm.Capabilities{},
		Bits:         12,
	}
)

// Profiles lists the known boards.
func Profiles() []Profile {
	return []Profile{NRF52, RTL872x}
}

// Lookup finds a profile by name (case-insensitive).
func Lookup(name string) (Profile, error) {
	for _, p := range Profiles() {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("%w: %q", ErrUnknownTarget, name)
}

// BufferPeriod is the time the DMA takes to fill one buffer.
func (p Profile) BufferPeriod(channels int) time.Duration {
	frames := p.Geometry.BufferSizeSamples / max(channels, 1)
	return time.Duration(frames) * time.Second / time.Duration(p.Geometry.SampleRate)
}

type Option func(*Mic)

// WithSource replaces the default 1 kHz sine.
func WithSource(src peripheral.Source) Option {
	return func(m *Mic) { m.source = src }
}

// WithManualClock disables the ticker; buffers complete only on Step.
func WithManualClock() Option {
	return func(m *Mic) { m.manual = true }
}

// WithPeriod overrides the buffer period derived from the profile.
func WithPeriod(d time.Duration) Option {
	return func(m *Mic) { m.period = d }
}

// Mic is a simulated PDM microphone and its DMA engine.
type Mic struct {
	profile Profile
	source  peripheral.Source
	manual  bool
	period  time.Duration

	mu          sync.Mutex // clock vs lifecycle
	dma         peripheral.DMA
	hw          pdm.HardwareConfig
	gain        peripheral.Gain
	initialized bool
	running     bool
	stop        chan struct{}
	done        chan struct{}
}

// New returns an unpowered microphone for the given board.
func New(p Profile, opts ...Option) *Mic {
	m := &Mic{
		profile: p,
		source: &waveform.Sine{
			Frequency:  1000,
			SampleRate: float64(p.Geometry.SampleRate),
			Amplitude:  0.5,
			Bits:       p.Bits,
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Mic) Profile() Profile               { return m.profile }
func (m *Mic) Geometry() pdm.Geometry         { return m.profile.Geometry }
func (m *Mic) Capabilities() pdm.Capabilities { return m.profile.Capabilities }

// HardwareConfig returns the settings received at Init.
func (m *Mic) HardwareConfig() pdm.HardwareConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hw
}

func (m *Mic) Init(cfg pdm.HardwareConfig, h pdm.EventHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return ErrBusy
	}
	m.hw = cfg
	m.gain = peripheral.NewGain(cfg, m.profile.Bits)
	m.dma.Attach(h)
	m.initialized = true
	return nil
}

func (m *Mic) Uninit() error {
	if !m.profile.Capabilities.CanUninit {
		return pdm.ErrUnsupported
	}
	m.halt()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = false
	m.dma.Attach(nil)
	return nil
}

func (m *Mic) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return ErrNotReady
	}
	if m.running {
		return nil
	}
	m.running = true
	m.dma.Begin()

	if !m.manual {
		period := m.period
		if period <= 0 {
			channels := 1
			if m.hw.Stereo {
				channels = 2
			}
			period = m.profile.BufferPeriod(channels)
		}
		m.stop = make(chan struct{})
		m.done = make(chan struct{})
		go m.clock(period, m.stop, m.done)
	}
	return nil
}

func (m *Mic) Stop() error {
	if !m.profile.Capabilities.CanStop {
		return pdm.ErrUnsupported
	}
	m.halt()
	return nil
}

// Close powers the microphone off whatever the board supports, ending the
// clock goroutine.
func (m *Mic) Close() error {
	m.halt()
	return nil
}

func (m *Mic) halt() {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.running = false
	m.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}

	m.mu.Lock()
	m.dma.Reset()
	m.mu.Unlock()
}

// SetBuffer is called back from the driver while the clock holds mu.
func (m *Mic) SetBuffer(buf []int16) error {
	return m.dma.SetBuffer(buf)
}

// Step completes the outstanding buffer. It reports false when the DMA is
// not running or had no destination queued.
func (m *Mic) Step() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return false
	}
	return m.dma.Complete(m)
}

// InjectFault reports err with the next released buffer.
func (m *Mic) InjectFault(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dma.Fail(err)
}

// Released returns the number of buffers the DMA has completed.
func (m *Mic) Released() uint64 { return m.dma.Released() }

// Fill reads the source through the gain stage.
func (m *Mic) Fill(buf []int16) {
	m.source.Fill(buf)
	m.gain.Apply(buf)
}

func (m *Mic) clock(period time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.Step()
		}
	}
}
