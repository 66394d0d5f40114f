// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"pdmcap/internal/analysis"
	"pdmcap/internal/capture"
	"pdmcap/internal/config"
	"pdmcap/internal/metrics"
	"pdmcap/internal/pdm"
	"pdmcap/internal/peripheral/host"
	"pdmcap/internal/peripheral/sim"
	"pdmcap/pkg/waveform"
)

// rig is an initialized driver on the configured target.
type rig struct {
	cfg     *config.Config
	target  string
	driver  *pdm.Driver
	closeFn func() error
}

func openRig(cfg *config.Config) (*rig, error) {
	pc, err := cfg.Mic.PDMConfig()
	if err != nil {
		return nil, err
	}

	var (
		periph  pdm.Peripheral
		closeFn = func() error { return nil }
		target  = strings.ToLower(cfg.Mic.Target)
	)
	switch target {
	case config.TargetHost:
		periph = host.New(cfg.Mic.Device, pdm.GeometryNRF52, cfg.Mic.LowLatency)
	default:
		profile, err := sim.Lookup(target)
		if err != nil {
			return nil, err
		}
		src := waveform.New(cfg.Mic.Source, float64(profile.Geometry.SampleRate), cfg.Mic.ToneHz, profile.Bits)
		mic := sim.New(profile, sim.WithSource(src))
		periph, closeFn = mic, mic.Close
	}

	d, err := pdm.New(periph)
	if err != nil {
		closeFn()
		return nil, err
	}
	if err := d.Configure(pc); err != nil {
		closeFn()
		return nil, err
	}
	if err := d.Init(); err != nil {
		closeFn()
		return nil, err
	}
	return &rig{cfg: cfg, target: target, driver: d, closeFn: closeFn}, nil
}

// Close releases the peripheral where the target allows it. Targets that
// cannot be released are powered off through closeFn.
func (r *rig) Close() error {
	var err error
	if r.driver.Capabilities().CanUninit {
		err = r.driver.Uninit()
	}
	return errors.Join(err, r.closeFn())
}

// instrumentation holds the optional metrics endpoint of a session.
type instrumentation struct {
	server  *metrics.Server
	capture *metrics.CaptureMetrics
}

func (r *rig) instrument() (*instrumentation, error) {
	if !r.cfg.Metrics.Enabled {
		return nil, nil
	}
	reg := metrics.NewRegistry()
	reg.MustRegister(metrics.NewDriverCollector(r.driver, prometheus.Labels{"target": r.target}))
	cm, err := metrics.NewCaptureMetrics(reg)
	if err != nil {
		return nil, err
	}
	srv, err := metrics.Listen(r.cfg.Metrics.Address, reg)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	return &instrumentation{server: srv, capture: cm}, nil
}

func (in *instrumentation) shutdown() {
	if in == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := in.server.Shutdown(ctx); err != nil {
		logger.Warnf("metrics shutdown: %v", err)
	}
}

// newSession builds a capture session for the rig. With metrics enabled a
// level meter feeds the level gauges.
func (r *rig) newSession(in *instrumentation) (*capture.Session, error) {
	mode, err := r.cfg.Mic.ConsumeMode()
	if err != nil {
		return nil, err
	}
	opts := capture.Options{Mode: mode, PollInterval: r.cfg.Mic.PollInterval}
	if in != nil {
		opts.Observer = in.capture
	}
	s, err := capture.New(r.driver, opts)
	if err != nil {
		return nil, err
	}

	if in != nil {
		meter, err := analysis.NewMeter(r.driver.Format(), r.driver.NumberOfSamples())
		if err != nil {
			return nil, err
		}
		levels := make([]analysis.Level, r.driver.Format().Channels)
		s.Add("level", capture.SinkFunc(func(samples []byte, n int) error {
			if err := meter.Process(samples, n); err != nil {
				return err
			}
			meter.LevelsInto(levels)
			for ch, l := range levels {
				in.capture.SetLevel(ch, l.DBFS(), l.PeakDBFS())
			}
			return nil
		}))
	}
	return s, nil
}
