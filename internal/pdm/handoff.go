// SPDX-License-Identifier: MIT
package pdm

import "sync/atomic"

// handoff publishes at most one converted slot to the consumer. The
// producer replaces the handle with Swap; the consumer takes it with Swap
// and then has to win the ready->claimed transition, which the producer
// races with ready->filling when it needs the slot back.
type handoff struct {
	available atomic.Pointer[slot]
}

// publish makes s the available slot and returns the slot it replaced, if
// that one was still unclaimed.
func (h *handoff) publish(s *slot) (superseded bool) {
	s.state.Store(slotReady)
	old := h.available.Swap(s)
	if old != nil && old != s {
		return old.state.CompareAndSwap(slotReady, slotFree)
	}
	return false
}

// retract drops the handle if it still points at s.
func (h *handoff) retract(s *slot) bool {
	return h.available.CompareAndSwap(s, nil)
}

// clear drops whatever handle is published.
func (h *handoff) clear() {
	if s := h.available.Swap(nil); s != nil {
		s.state.CompareAndSwap(slotReady, slotFree)
	}
}

func (h *handoff) pending() bool {
	return h.available.Load() != nil
}

// claim takes the published slot for reading. The handle is consumed even
// when the producer wins the race for the slot.
func (h *handoff) claim() *slot {
	s := h.available.Swap(nil)
	if s == nil {
		return nil
	}
	if !s.state.CompareAndSwap(slotReady, slotClaimed) {
		return nil
	}
	return s
}

// done returns a claimed slot to the free pool. A handle still pointing at
// s was re-published while the claim raced the producer and is stale.
func (h *handoff) done(s *slot) {
	h.available.CompareAndSwap(s, nil)
	s.state.CompareAndSwap(slotClaimed, slotFree)
}
