// SPDX-License-Identifier: MIT
/*
Package pdm implements the acquisition core of a PDM microphone driver:
- a ring of statically allocated DMA buffers handed to the peripheral in
  round-robin order so it is never left without a destination
- in-place conversion of raw samples to unsigned 8-bit or scaled signed
  16-bit output, with optional sample dropping for lower rates
- a single-slot handoff to one consumer, read either by copying
  (CopySamples) or in place (NoCopySamples), or pushed from the interrupt
  context with Interrupt delivery

Thread Safety:
- The event handler runs in the producer (interrupt) context; it never
  blocks, logs or allocates
- The consumer API is lock-free and safe against a concurrent event
- Lifecycle and configuration calls are serialized by a mutex that the
  producer never takes
*/
package pdm

import (
	"sync"
	"sync/atomic"

	applog "pdmcap/internal/log"
)

var logger = applog.For("pdm")

// State is the acquisition state of the driver.
type State int32

const (
	Uninitialized State = iota
	Idle
	Armed
	// Stopped is used on targets whose DMA cannot be halted: the peripheral
	// keeps running but nothing is delivered.
	Stopped
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// BufferHandler receives converted samples. samples is only valid until the
// handler returns.
type BufferHandler func(samples []byte, numSamples int)

// DeliveryMode tells how converted buffers reach the consumer.
type DeliveryMode uint8

const (
	DeliverPolled    DeliveryMode = iota // staged for CopySamples / NoCopySamples
	DeliverInterrupt                     // pushed from the producer context
)

func (m DeliveryMode) String() string {
	if m == DeliverInterrupt {
		return "interrupt"
	}
	return "polled"
}

// Delivery is chosen once per capture session at Start.
type Delivery struct {
	mode    DeliveryMode
	handler BufferHandler
}

// Polled stages each converted buffer for CopySamples or NoCopySamples.
func Polled() Delivery { return Delivery{mode: DeliverPolled} }

// Interrupt calls fn from the producer context for every converted buffer.
// fn must not block; nothing is staged for polling.
func Interrupt(fn BufferHandler) Delivery {
	return Delivery{mode: DeliverInterrupt, handler: fn}
}

func (d Delivery) Mode() DeliveryMode { return d.mode }

// Stats are running counters of the producer and consumer paths.
type Stats struct {
	Published   uint64 // buffers staged for polling
	Delivered   uint64 // buffers pushed with Interrupt delivery
	Claimed     uint64 // buffers taken by CopySamples / NoCopySamples
	Superseded  uint64 // staged buffers replaced before being claimed
	Overruns    uint64 // filled buffers recycled because no slot was free
	Discarded   uint64 // buffers released while not armed or after a restart
	EventErrors uint64 // errors reported alongside peripheral events
	Stray       uint64 // released buffers that are not part of the region
}

type counters struct {
	published, delivered, claimed, superseded atomic.Uint64
	overruns, discarded, eventErrors, stray   atomic.Uint64
}

// session is the immutable view of one Start. Every Start installs a new
// one, so a buffer converted under an older session can be told apart.
type session struct {
	conv        converter
	delivery    Delivery
	sampleSize  int
	bufferBytes int
}

func newSession(cfg Config, g Geometry, delivery Delivery) (*session, error) {
	conv, err := newConverter(cfg, g)
	if err != nil {
		return nil, err
	}
	size := cfg.OutputSize.SampleSize()
	return &session{
		conv:        conv,
		delivery:    delivery,
		sampleSize:  size,
		bufferBytes: conv.outputSamples(g.BufferSizeSamples) * size,
	}, nil
}

// Driver owns one PDM peripheral and its sample region. There is exactly
// one per peripheral; the application creates it and passes it around.
type Driver struct {
	periph   Peripheral
	geometry Geometry
	caps     Capabilities
	ring     *bufferRing
	hand     handoff
	stats    counters

	// Producer-visible state. The producer loads session once per buffer
	// and never reads cfg.
	state   atomic.Int32
	session atomic.Pointer[session]
	restart atomic.Bool // reset the ring position on the next event
	discard atomic.Bool // drop the next released buffer

	mu  sync.Mutex // lifecycle and configuration
	cfg Config

	errMu   sync.Mutex
	lastErr error
}

// New allocates the sample region for p. The peripheral is not touched
// until Init.
func New(p Peripheral) (*Driver, error) {
	g := p.Geometry()
	if err := g.validate(); err != nil {
		return nil, err
	}
	return &Driver{
		periph:   p,
		geometry: g,
		caps:     p.Capabilities(),
		ring:     newBufferRing(g),
		cfg:      DefaultConfig(),
	}, nil
}

// Handler returns the trampoline the peripheral calls from its interrupt
// context.
func (d *Driver) Handler() EventHandler {
	return func(ev Event) { handleEvent(d, ev) }
}

func handleEvent(d *Driver, ev Event) {
	if d.restart.CompareAndSwap(true, false) {
		d.ring.active = -1
	}
	if ev.Err != nil {
		d.recordEventErr(ev.Err)
	}

	var released *slot
	if ev.Released != nil {
		if released = d.ring.lookup(ev.Released); released == nil {
			d.stats.stray.Add(1)
		}
	}

	if ev.Requested {
		next, superseded := d.ring.next(&d.hand)
		if superseded {
			d.stats.superseded.Add(1)
		}
		if next == nil && released != nil {
			// Every other slot is held by the consumer. Refill the buffer
			// that just completed and lose its samples.
			next, released = released, nil
			d.stats.overruns.Add(1)
		}
		if next == nil {
			d.stats.overruns.Add(1)
		} else if err := d.periph.SetBuffer(next.raw); err != nil {
			d.recordEventErr(err)
			next.state.CompareAndSwap(slotFilling, slotFree)
		}
	}

	if released != nil {
		deliver(d, released)
	}
}

func deliver(d *Driver, s *slot) {
	sess := d.session.Load()
	if sess == nil || State(d.state.Load()) != Armed || d.discard.CompareAndSwap(true, false) {
		s.state.CompareAndSwap(slotFilling, slotFree)
		d.stats.discarded.Add(1)
		return
	}

	s.n = sess.conv.convert(s.out, s.raw)
	s.session = sess

	if sess.delivery.mode == DeliverInterrupt {
		sess.delivery.handler(s.out[:s.n*sess.sampleSize], s.n)
		s.state.CompareAndSwap(slotFilling, slotFree)
		d.stats.delivered.Add(1)
		return
	}

	if d.hand.publish(s) {
		d.stats.superseded.Add(1)
	}
	// A Stop or Start that ran during the conversion has already cleared
	// the handoff; take back what it could not see.
	if State(d.state.Load()) != Armed || d.session.Load() != sess {
		if d.hand.retract(s) {
			s.state.CompareAndSwap(slotReady, slotFree)
			d.stats.discarded.Add(1)
			return
		}
	}
	d.stats.published.Add(1)
}

// recordEventErr keeps the most recent event error without blocking the
// producer; a concurrent reader just makes it skip the update.
func (d *Driver) recordEventErr(err error) {
	d.stats.eventErrors.Add(1)
	if d.errMu.TryLock() {
		d.lastErr = err
		d.errMu.Unlock()
	}
}

// Err returns the last error reported with a peripheral event, if any.
func (d *Driver) Err() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	return peripheralError("event", d.lastErr)
}

func (d *Driver) takeEventErr() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	err := peripheralError("event", d.lastErr)
	d.lastErr = nil
	return err
}

// Init configures the peripheral with the current pin, clock and gain
// settings.
func (d *Driver) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.State() != Uninitialized {
		return ErrAlreadyInitialized
	}
	if err := d.cfg.validate(d.geometry); err != nil {
		return err
	}
	if err := d.periph.Init(d.cfg.hardware(), d.Handler()); err != nil {
		logger.Errorf("init failed: %v", err)
		return peripheralError("init", err)
	}
	d.state.Store(int32(Idle))
	logger.Infof("initialized (%d x %d samples, %d Hz)",
		d.geometry.NumBuffers, d.geometry.BufferSizeSamples, d.geometry.SampleRate)
	return nil
}

// Uninit releases the peripheral. The sample region stays allocated.
func (d *Driver) Uninit() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.State() {
	case Uninitialized:
		return ErrNotInitialized
	case Armed, Stopped:
		return ErrArmed
	}
	if !d.caps.CanUninit {
		return ErrUnsupported
	}
	if err := d.periph.Uninit(); err != nil {
		return peripheralError("uninit", err)
	}
	d.hand.clear()
	d.ring.reset()
	d.state.Store(int32(Uninitialized))
	logger.Infof("uninitialized")
	return nil
}

// Start arms the driver with the given delivery. Any buffer staged by a
// previous session is dropped. On targets that were only Stopped the
// hardware keeps running and the buffer in flight is discarded.
func (d *Driver) Start(delivery Delivery) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev := d.State()
	switch prev {
	case Uninitialized:
		return ErrNotInitialized
	case Armed:
		return nil
	}
	if delivery.mode == DeliverInterrupt && delivery.handler == nil {
		return ErrInvalidConfig
	}
	sess, err := newSession(d.cfg, d.geometry, delivery)
	if err != nil {
		return err
	}

	d.session.Store(sess)
	d.hand.clear()
	d.restart.Store(true)

	if prev == Stopped {
		d.discard.Store(true)
		d.state.Store(int32(Armed))
		logger.Infof("resumed (%s delivery)", delivery.mode)
		return nil
	}

	d.ring.reset()
	d.discard.Store(false)
	d.state.Store(int32(Armed))
	if err := d.periph.Start(); err != nil {
		d.state.Store(int32(Idle))
		logger.Errorf("start failed: %v", err)
		return peripheralError("start", err)
	}
	logger.Infof("started (%s delivery, %s, range %s, %d samples per buffer)",
		delivery.mode, d.cfg.OutputSize, d.cfg.Range, sess.conv.outputSamples(d.geometry.BufferSizeSamples))
	return nil
}

// Stop ends delivery. Targets that cannot halt their DMA keep running in
// the Stopped state. An error recorded from peripheral events during the
// session is returned once the driver is stopped.
func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.State() {
	case Uninitialized:
		return ErrNotInitialized
	case Idle, Stopped:
		return nil
	}

	if !d.caps.CanStop {
		d.state.Store(int32(Stopped))
		d.hand.clear()
		logger.Infof("delivery suppressed, peripheral keeps running")
		return d.takeEventErr()
	}

	d.state.Store(int32(Idle))
	err := d.periph.Stop()
	d.hand.clear()
	if err != nil {
		d.state.Store(int32(Stopped))
		logger.Errorf("stop failed: %v", err)
		return peripheralError("stop", err)
	}
	logger.Infof("stopped")
	return d.takeEventErr()
}

// SamplesAvailable reports whether a converted buffer is waiting.
func (d *Driver) SamplesAvailable() bool {
	return d.hand.pending()
}

// CopySamples copies the waiting buffer into dst, which must hold at least
// BufferSizeInBytes bytes. It returns false and leaves dst untouched when no
// buffer is waiting.
func (d *Driver) CopySamples(dst []byte) bool {
	sess := d.session.Load()
	if sess == nil || len(dst) < sess.bufferBytes {
		return false
	}
	s := d.claim(sess)
	if s == nil {
		return false
	}
	copy(dst, s.out[:s.n*sess.sampleSize])
	d.hand.done(s)
	d.stats.claimed.Add(1)
	return true
}

// claim takes the waiting slot if it was converted under sess while armed.
// A slot left over from an earlier session goes back to the pool.
func (d *Driver) claim(sess *session) *slot {
	s := d.hand.claim()
	if s == nil {
		return nil
	}
	if s.session != sess || d.State() != Armed {
		d.hand.done(s)
		d.stats.discarded.Add(1)
		return nil
	}
	return s
}

// NoCopySamples calls fn with the waiting buffer in place. fn must finish
// quickly and must not keep samples; the slot goes back to the peripheral
// as soon as it returns.
func (d *Driver) NoCopySamples(fn BufferHandler) bool {
	if fn == nil {
		return false
	}
	sess := d.session.Load()
	if sess == nil {
		return false
	}
	s := d.claim(sess)
	if s == nil {
		return false
	}
	fn(s.out[:s.n*sess.sampleSize], s.n)
	d.hand.done(s)
	d.stats.claimed.Add(1)
	return true
}

// State returns the acquisition state.
func (d *Driver) State() State {
	return State(d.state.Load())
}

// Geometry returns the fixed buffer geometry of the target.
func (d *Driver) Geometry() Geometry { return d.geometry }

// Capabilities returns what the target supports.
func (d *Driver) Capabilities() Capabilities { return d.caps }

// NumberOfSamples returns the samples in every buffer handed to the
// consumer. It never changes while armed.
func (d *Driver) NumberOfSamples() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.geometry.BufferSizeSamples / d.decimation()
}

// SampleSizeInBytes returns 1 for Unsigned8 output and 2 otherwise.
func (d *Driver) SampleSizeInBytes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg.OutputSize.SampleSize()
}

// BufferSizeInBytes is the destination size CopySamples needs.
func (d *Driver) BufferSizeInBytes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.geometry.BufferSizeSamples / d.decimation() * d.cfg.OutputSize.SampleSize()
}

// SampleRate returns the rate of the delivered samples.
func (d *Driver) SampleRate() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.geometry.SampleRate / d.decimation()
}

// decimation must be called with mu held.
func (d *Driver) decimation() int {
	n, err := d.cfg.decimation(d.geometry)
	if err != nil {
		return 1
	}
	return n
}

// Stats returns a snapshot of the driver counters.
func (d *Driver) Stats() Stats {
	return Stats{
		Published:   d.stats.published.Load(),
		Delivered:   d.stats.delivered.Load(),
		Claimed:     d.stats.claimed.Load(),
		Superseded:  d.stats.superseded.Load(),
		Overruns:    d.stats.overruns.Load(),
		Discarded:   d.stats.discarded.Load(),
		EventErrors: d.stats.eventErrors.Load(),
		Stray:       d.stats.stray.Load(),
	}
}
