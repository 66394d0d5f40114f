// SPDX-License-Identifier: MIT
/*
Package host turns a PortAudio input device into a PDM target so the
driver can run against a real microphone on a desktop machine. The stream
callback plays the role of the DMA engine: frames are copied into the
outstanding buffer and each full buffer is released to the driver with the
next one requested in the same event.

Thread Safety:
- The PortAudio callback runs on its own OS thread and holds mu while it
  feeds the DMA
- Stop and Uninit never hold mu while waiting for the stream to drain
*/
package host

import (
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	applog "pdmcap/internal/log"
	"pdmcap/internal/pdm"
	"pdmcap/internal/peripheral"
)

var logger = applog.For("host")

var ErrNotReady = errors.New("host: not initialized")

// Bits is the resolution PortAudio delivers.
const Bits = 16

type Mic struct {
	deviceID   int
	lowLatency bool
	geometry   pdm.Geometry

	mu      sync.Mutex
	dma     peripheral.DMA
	gain    peripheral.Gain
	hw      pdm.HardwareConfig
	device  *portaudio.DeviceInfo
	stream  *portaudio.Stream
	running bool
}

// New returns a target reading deviceID (DefaultDevice for the system
// default) with geometry g. PortAudio is not touched until Init.
func New(deviceID int, g pdm.Geometry, lowLatency bool) *Mic {
	return &Mic{deviceID: deviceID, geometry: g, lowLatency: lowLatency}
}

func (m *Mic) Geometry() pdm.Geometry { return m.geometry }

func (m *Mic) Capabilities() pdm.Capabilities {
	return pdm.Capabilities{CanStop: true, CanUninit: true}
}

func (m *Mic) Init(cfg pdm.HardwareConfig, h pdm.EventHandler) error {
	if err := Initialize(); err != nil {
		return err
	}
	device, err := inputDevice(m.deviceID)
	if err != nil {
		Terminate()
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.device = device
	m.hw = cfg
	m.gain = peripheral.NewGain(cfg, Bits)
	m.dma.Attach(h)
	logger.Infof("using %q (%.0f Hz native)", device.Name, device.DefaultSampleRate)
	return nil
}

func (m *Mic) Uninit() error {
	if err := m.Stop(); err != nil {
		return err
	}
	m.mu.Lock()
	m.device = nil
	m.dma.Attach(nil)
	m.mu.Unlock()
	return Terminate()
}

func (m *Mic) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return ErrNotReady
	}
	if m.running {
		return nil
	}

	channels := 1
	if m.hw.Stereo {
		channels = 2
	}
	latency := m.device.DefaultHighInputLatency
	if m.lowLatency {
		latency = m.device.DefaultLowInputLatency
	}
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: channels,
			Device:   m.device,
			Latency:  latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: m.geometry.BufferSizeSamples / channels,
		SampleRate:      float64(m.geometry.SampleRate),
	}

	stream, err := portaudio.OpenStream(params, m.process)
	if err != nil {
		return err
	}
	m.dma.Begin()
	if err := stream.Start(); err != nil {
		stream.Close()
		m.dma.Reset()
		return err
	}
	m.stream = stream
	m.running = true
	logger.Debugf("stream open: %d ch, %d frames, latency %v",
		channels, params.FramesPerBuffer, latency.Round(time.Microsecond))
	return nil
}

func (m *Mic) Stop() error {
	m.mu.Lock()
	stream := m.stream
	m.stream = nil
	m.running = false
	m.mu.Unlock()

	if stream == nil {
		return nil
	}
	// Stop waits for an in-flight callback, which needs mu.
	if err := stream.Stop(); err != nil {
		stream.Close()
		return err
	}
	if err := stream.Close(); err != nil {
		return err
	}

	m.mu.Lock()
	m.dma.Reset()
	m.mu.Unlock()
	return nil
}

// SetBuffer is called back from the driver inside process.
func (m *Mic) SetBuffer(buf []int16) error {
	return m.dma.SetBuffer(buf)
}

// Starved returns the samples dropped with no buffer queued.
func (m *Mic) Starved() uint64 { return m.dma.Starved() }

// process is the PortAudio callback.
// Performance Critical:
// - Runs in a dedicated OS thread (LockOSThread)
// - Writes straight into the driver's buffers, no allocation
func (m *Mic) process(in []int16) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.gain.Apply(in)
	m.dma.Write(in)
}
