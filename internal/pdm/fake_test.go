// SPDX-License-Identifier: MIT
package pdm

import "errors"

var errHardware = errors.New("hardware fault")

// fakePeripheral models a DMA engine with a single outstanding destination:
// complete releases it and requests the next one in the same event.
type fakePeripheral struct {
	geometry Geometry
	caps     Capabilities
	handler  EventHandler
	hw       HardwareConfig
	cur      []int16
	running  bool

	initErr, startErr, stopErr, setErr error

	inits, uninits, starts, stops int
}

func newFake(g Geometry, canStop bool) *fakePeripheral {
	return &fakePeripheral{
		geometry: g,
		caps:     Capabilities{CanStop: canStop, CanUninit: canStop},
	}
}

func (f *fakePeripheral) Geometry() Geometry         { return f.geometry }
func (f *fakePeripheral) Capabilities() Capabilities { return f.caps }

func (f *fakePeripheral) Init(cfg HardwareConfig, h EventHandler) error {
	if f.initErr != nil {
		return f.initErr
	}
	f.inits++
	f.hw = cfg
	f.handler = h
	return nil
}

func (f *fakePeripheral) Uninit() error {
	if !f.caps.CanUninit {
		return ErrUnsupported
	}
	f.uninits++
	f.handler = nil
	return nil
}

func (f *fakePeripheral) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.starts++
	f.running = true
	f.handler(Event{Requested: true})
	return nil
}

func (f *fakePeripheral) Stop() error {
	if !f.caps.CanStop {
		return ErrUnsupported
	}
	if f.stopErr != nil {
		return f.stopErr
	}
	f.stops++
	f.running = false
	f.cur = nil
	return nil
}

func (f *fakePeripheral) SetBuffer(buf []int16) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.cur = buf
	return nil
}

// complete fills the outstanding buffer from fill and hands it back.
func (f *fakePeripheral) complete(fill func(i int) int16, err error) []int16 {
	buf := f.cur
	f.cur = nil
	for i := range buf {
		buf[i] = fill(i)
	}
	f.handler(Event{Released: buf, Requested: true, Err: err})
	return buf
}

func ramp(offset int) func(int) int16 {
	return func(i int) int16 { return int16(offset + i) }
}
