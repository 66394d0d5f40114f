// SPDX-License-Identifier: MIT
/*
Package peripheral provides the PDM targets behind pdm.Peripheral. DMA
models the transfer engine they share: one destination is outstanding at a
time, and completing it releases the buffer and requests the next in the
same event, so acquisition never pauses between buffers.

DMA is not safe for concurrent use. Each target serializes its clock (a
ticker goroutine, a manual Step, a PortAudio callback) against Begin and
Reset. SetBuffer is only called back from inside the event handler.
*/
package peripheral

import (
	"errors"
	"sync/atomic"

	"pdmcap/internal/pdm"
)

var ErrEmptyBuffer = errors.New("peripheral: empty DMA buffer")

// Source produces raw microphone samples.
type Source interface {
	Fill(buf []int16)
}

// DMA is a single-channel transfer engine.
type DMA struct {
	handler pdm.EventHandler
	cur     []int16
	filled  int   // samples of cur written so far
	fault   error // reported with the next release

	released atomic.Uint64
	starved  atomic.Uint64 // samples lost with no destination queued
}

// Attach sets the handler that receives transfer events.
func (d *DMA) Attach(h pdm.EventHandler) {
	d.handler = h
	d.cur = nil
	d.filled = 0
}

// Begin asks for the first destination.
func (d *DMA) Begin() {
	d.cur = nil
	d.filled = 0
	d.handler(pdm.Event{Requested: true})
}

// Reset drops the outstanding destination.
func (d *DMA) Reset() {
	d.cur = nil
	d.filled = 0
}

// SetBuffer queues buf. It replaces any destination not yet written to.
func (d *DMA) SetBuffer(buf []int16) error {
	if len(buf) == 0 {
		return ErrEmptyBuffer
	}
	d.cur = buf
	d.filled = 0
	return nil
}

// Fail reports err with the next release event.
func (d *DMA) Fail(err error) {
	d.fault = err
}

// Complete fills the rest of the outstanding destination from src and
// releases it. With nothing queued it requests a destination again and
// returns false.
func (d *DMA) Complete(src Source) bool {
	if d.cur == nil {
		d.handler(pdm.Event{Requested: true})
		return false
	}
	src.Fill(d.cur[d.filled:])
	d.release()
	return true
}

// Write streams samples into the outstanding destinations, releasing each
// one as it fills. Samples arriving with nothing queued are counted and
// dropped. It returns the number of buffers released.
func (d *DMA) Write(samples []int16) int {
	n := 0
	for len(samples) > 0 {
		if d.cur == nil {
			d.starved.Add(uint64(len(samples)))
			d.handler(pdm.Event{Requested: true})
			return n
		}
		c := copy(d.cur[d.filled:], samples)
		d.filled += c
		samples = samples[c:]
		if d.filled == len(d.cur) {
			d.release()
			n++
		}
	}
	return n
}

func (d *DMA) release() {
	buf := d.cur
	err := d.fault
	d.cur = nil
	d.filled = 0
	d.fault = nil
	d.released.Add(1)
	d.handler(pdm.Event{Released: buf, Requested: true, Err: err})
}

// Released returns the number of buffers handed back.
func (d *DMA) Released() uint64 { return d.released.Load() }

// Starved returns the samples dropped because no destination was queued.
func (d *DMA) Starved() uint64 { return d.starved.Load() }
