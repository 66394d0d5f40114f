// SPDX-License-Identifier: MIT
// Package capture runs a capture session: it arms a driver, moves every
// delivered buffer through a set of sinks and disarms the driver when the
// context ends or a sink asks to stop.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/smallnest/ringbuffer"

	applog "pdmcap/internal/log"
	"pdmcap/internal/pdm"
)

var logger = applog.For("capture")

// Mode selects how the session consumes buffers.
type Mode string

const (
	// ModeCopy polls CopySamples into a buffer owned by the session.
	ModeCopy Mode = "copy"
	// ModeNoCopy polls NoCopySamples; sinks see the driver's slot in place.
	ModeNoCopy Mode = "nocopy"
	// ModeInterrupt pushes buffers from the producer into a byte ring that
	// the session drains.
	ModeInterrupt Mode = "interrupt"
)

// ParseMode converts a name (case-insensitive) to a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(s)); m {
	case ModeCopy, ModeNoCopy, ModeInterrupt:
		return m, nil
	case "":
		return ModeCopy, nil
	default:
		return "", fmt.Errorf("capture: unknown consume mode %q", s)
	}
}

// Observer receives per-sink timings; *metrics.CaptureMetrics satisfies it.
type Observer interface {
	ObserveSink(sink string, bytes int, d time.Duration, err error)
	ObserveDropped(bytes int)
}

// Options tune a session. Zero values pick defaults.
type Options struct {
	Mode         Mode
	PollInterval time.Duration // default: a quarter of the buffer period
	RingBuffers  int           // interrupt ring capacity in buffers, default 8
	StopOnError  bool          // end the session on the first sink error
	Observer     Observer
}

type namedSink struct {
	name string
	sink Sink
}

// Stats are counters of a session.
type Stats struct {
	Buffers    uint64 // buffers handed to the sinks
	Samples    uint64
	SinkErrors uint64
	Dropped    uint64 // bytes the interrupt ring could not hold
}

// byteQueue is the part of *ringbuffer.RingBuffer a session uses.
type byteQueue interface {
	TryWrite(p []byte) (int, error)
	Read(p []byte) (int, error)
	Capacity() int
}

// Session moves buffers from one driver to its sinks. It is not safe to
// Run a session twice concurrently.
type Session struct {
	driver *pdm.Driver
	opts   Options
	sinks  []namedSink

	buf        []byte
	ring       byteQueue
	queued     atomic.Int64 // bytes in ring, raised only after a write lands
	wake       chan struct{}
	dispatchFn pdm.BufferHandler
	stopErr    error
	reported   uint64 // dropped bytes already passed to the observer

	buffers    atomic.Uint64
	samples    atomic.Uint64
	sinkErrors atomic.Uint64
	dropped    atomic.Uint64
}

// New returns a session for an initialized driver.
func New(d *pdm.Driver, opts Options) (*Session, error) {
	if opts.Mode == "" {
		opts.Mode = ModeCopy
	}
	if _, err := ParseMode(string(opts.Mode)); err != nil {
		return nil, err
	}
	if opts.RingBuffers <= 0 {
		opts.RingBuffers = 8
	}
	s := &Session{
		driver: d,
		opts:   opts,
		wake:   make(chan struct{}, 1),
	}
	s.dispatchFn = func(samples []byte, n int) { s.dispatch(samples, n) }
	return s, nil
}

// Add registers a sink. Sinks are called in the order they were added.
func (s *Session) Add(name string, sink Sink) {
	s.sinks = append(s.sinks, namedSink{name: name, sink: sink})
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	return Stats{
		Buffers:    s.buffers.Load(),
		Samples:    s.samples.Load(),
		SinkErrors: s.sinkErrors.Load(),
		Dropped:    s.dropped.Load(),
	}
}

func (s *Session) pollInterval() time.Duration {
	if s.opts.PollInterval > 0 {
		return s.opts.PollInterval
	}
	f := s.driver.Format()
	frames := s.driver.NumberOfSamples() / f.Channels
	period := time.Duration(float64(time.Second) * float64(frames) / float64(f.SampleRate))
	return max(period/4, time.Millisecond)
}

// Run arms the driver and consumes buffers until ctx ends or a sink
// returns ErrStop. The driver is stopped before Run returns; the error
// combines a sink failure (with StopOnError) and the driver's Stop result.
func (s *Session) Run(ctx context.Context) error {
	s.stopErr = nil
	s.reported = s.dropped.Load()
	s.buf = make([]byte, s.driver.BufferSizeInBytes())

	delivery := pdm.Polled()
	if s.opts.Mode == ModeInterrupt {
		s.ring = ringbuffer.New(s.opts.RingBuffers * len(s.buf))
		s.queued.Store(0)
		delivery = pdm.Interrupt(s.push)
	}
	if err := s.driver.Start(delivery); err != nil {
		return fmt.Errorf("capture: start: %w", err)
	}
	logger.Infof("running in %s mode with %d sinks", s.opts.Mode, len(s.sinks))

	var err error
	if s.opts.Mode == ModeInterrupt {
		err = s.drainLoop(ctx)
	} else {
		err = s.pollLoop(ctx)
	}

	stopErr := s.driver.Stop()
	if s.opts.Mode == ModeInterrupt && err == nil {
		s.drain(true)
		err = s.result()
	}
	st := s.Stats()
	logger.Infof("finished: %d buffers, %d sink errors, %d bytes dropped", st.Buffers, st.SinkErrors, st.Dropped)
	if stopErr != nil {
		stopErr = fmt.Errorf("capture: stop: %w", stopErr)
	}
	return errors.Join(err, stopErr)
}

func (s *Session) pollLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		switch s.opts.Mode {
		case ModeNoCopy:
			s.driver.NoCopySamples(s.dispatchFn)
		default:
			if s.driver.CopySamples(s.buf) {
				s.dispatch(s.buf, s.driver.NumberOfSamples())
			}
		}
		if s.stopErr != nil {
			return s.result()
		}
	}
}

func (s *Session) drainLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.wake:
		case <-ticker.C:
		}
		s.drain(false)
		if s.stopErr != nil {
			return s.result()
		}
	}
}

// push runs in the producer context. It never blocks on the consumer: a
// buffer that does not fit, or that would have to wait for the ring's lock,
// is dropped whole. Only the consumer lowers queued, so a buffer that fits
// here still fits when TryWrite runs.
func (s *Session) push(samples []byte, _ int) {
	if int(s.queued.Load())+len(samples) > s.ring.Capacity() {
		s.dropped.Add(uint64(len(samples)))
		return
	}
	n, err := s.ring.TryWrite(samples)
	s.queued.Add(int64(n))
	if err != nil || n < len(samples) {
		s.dropped.Add(uint64(len(samples) - n))
		return
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// drain hands whole buffers from the ring to the sinks. With final set a
// trailing partial buffer is flushed too, cut to whole frames.
func (s *Session) drain(final bool) {
	if s.opts.Observer != nil {
		if d := s.dropped.Load(); d > s.reported {
			s.opts.Observer.ObserveDropped(int(d - s.reported))
			s.reported = d
		}
	}

	size := s.driver.SampleSizeInBytes()
	frame := s.driver.Format().FrameSize()
	for s.stopErr == nil {
		avail := int(s.queued.Load())
		chunk := len(s.buf)
		if avail < chunk {
			if !final {
				return
			}
			chunk = avail - avail%frame
		}
		if chunk == 0 {
			return
		}
		n, err := s.ring.Read(s.buf[:chunk])
		s.queued.Add(-int64(n))
		if err != nil || n == 0 {
			return
		}
		s.dispatch(s.buf[:n], n/size)
	}
}

func (s *Session) dispatch(samples []byte, n int) {
	s.buffers.Add(1)
	s.samples.Add(uint64(n))
	for _, ns := range s.sinks {
		start := time.Now()
		err := ns.sink.Write(samples, n)
		if s.opts.Observer != nil {
			s.opts.Observer.ObserveSink(ns.name, len(samples), time.Since(start), err)
		}
		if err == nil {
			continue
		}
		if errors.Is(err, ErrStop) {
			logger.Infof("sink %s requested stop", ns.name)
			s.stopErr = ErrStop
			return
		}
		if c := s.sinkErrors.Add(1); c == 1 || c%100 == 0 {
			logger.Warnf("sink %s: %v (%d errors)", ns.name, err, c)
		}
		if s.opts.StopOnError {
			s.stopErr = fmt.Errorf("capture: sink %s: %w", ns.name, err)
			return
		}
	}
}

func (s *Session) result() error {
	if s.stopErr == nil || errors.Is(s.stopErr, ErrStop) {
		return nil
	}
	return s.stopErr
}
