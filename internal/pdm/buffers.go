// SPDX-License-Identifier: MIT
package pdm

import (
	"sync/atomic"
	"unsafe"
)

// Slot ownership states.
const (
	slotFree    int32 = iota
	slotFilling       // queued to or being written by the peripheral
	slotReady         // converted and published to the consumer
	slotClaimed       // being read by the consumer
)

type slot struct {
	index   int
	raw     []int16  // DMA destination
	out     []byte   // converted samples, same memory as raw
	n       int      // converted sample count, written before publication
	session *session // session the slot was converted under
	state   atomic.Int32
}

// bufferRing owns the static sample region and hands slots to the
// peripheral in round-robin order. Only the producer context touches
// active; everything shared with the consumer goes through slot.state.
type bufferRing struct {
	geometry Geometry
	region   []int16
	slots    []slot
	active   int // slot most recently queued, -1 before the first request
}

func newBufferRing(g Geometry) *bufferRing {
	b := &bufferRing{
		geometry: g,
		region:   make([]int16, g.RegionSamples()),
		slots:    make([]slot, g.NumBuffers),
		active:   -1,
	}
	for i := range b.slots {
		s := &b.slots[i]
		s.index = i
		s.raw = b.region[i*g.BufferSizeSamples : (i+1)*g.BufferSizeSamples : (i+1)*g.BufferSizeSamples]
		s.out = unsafe.Slice((*byte)(unsafe.Pointer(&s.raw[0])), len(s.raw)*2)
	}
	return b
}

// lookup maps a buffer handed back by the peripheral to its slot.
func (b *bufferRing) lookup(buf []int16) *slot {
	if len(buf) == 0 {
		return nil
	}
	for i := range b.slots {
		if &b.slots[i].raw[0] == &buf[0] {
			return &b.slots[i]
		}
	}
	return nil
}

// next picks the slot to queue after the active one. Claimed and filling
// slots are skipped; a ready slot is taken back from the consumer, which
// is how an unclaimed buffer gets superseded. It returns nil when no slot
// can be taken.
func (b *bufferRing) next(h *handoff) (s *slot, superseded bool) {
	n := len(b.slots)
	for i := 1; i <= n; i++ {
		s = &b.slots[(b.active+i+n)%n]
		if s.state.CompareAndSwap(slotFree, slotFilling) {
			b.active = s.index
			return s, false
		}
		if s.state.CompareAndSwap(slotReady, slotFilling) {
			b.active = s.index
			return s, h.retract(s)
		}
	}
	return nil, false
}

// reset returns every slot not held by the consumer to the free pool.
// Callers must make sure the producer is quiescent.
func (b *bufferRing) reset() {
	b.active = -1
	for i := range b.slots {
		s := &b.slots[i]
		if !s.state.CompareAndSwap(slotFilling, slotFree) {
			s.state.CompareAndSwap(slotReady, slotFree)
		}
	}
}

// filling lists the slots currently owned by the peripheral.
func (b *bufferRing) filling() []int {
	var idx []int
	for i := range b.slots {
		if b.slots[i].state.Load() == slotFilling {
			idx = append(idx, i)
		}
	}
	return idx
}
