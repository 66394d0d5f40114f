// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"strings"

	"pdmcap/internal/capture"
	"pdmcap/internal/pdm"
	"pdmcap/internal/transport"
)

// PDMConfig converts the mic section into a driver configuration.
func (m MicConfig) PDMConfig() (pdm.Config, error) {
	cfg := pdm.DefaultConfig()

	size, err := pdm.ParseOutputSize(m.OutputSize)
	if err != nil {
		return cfg, fmt.Errorf("mic.output_size: %w", err)
	}
	r, err := pdm.ParseRange(fmt.Sprint(m.Range))
	if err != nil {
		return cfg, fmt.Errorf("mic.range: %w", err)
	}
	if m.SampleRate < 0 {
		return cfg, fmt.Errorf("mic.sample_rate must not be negative, got %d", m.SampleRate)
	}
	if m.GainDB < MinGainDB || m.GainDB > MaxGainDB {
		return cfg, fmt.Errorf("mic.gain_db %.1f outside [%.0f, %.0f]", m.GainDB, MinGainDB, MaxGainDB)
	}

	switch strings.ToLower(m.Edge) {
	case EdgeLeftFalling, "":
		cfg.Edge = pdm.EdgeLeftFalling
	case EdgeLeftRising:
		cfg.Edge = pdm.EdgeLeftRising
	default:
		return cfg, fmt.Errorf("mic.edge %q is not one of %s, %s", m.Edge, EdgeLeftFalling, EdgeLeftRising)
	}

	switch f := pdm.ClockFrequency(m.ClockFrequency); f {
	case pdm.Freq1000K, pdm.Freq1032K, pdm.Freq1067K:
		cfg.ClockFrequency = f
	case 0:
	default:
		return cfg, fmt.Errorf("mic.clock_frequency %d Hz is not one of 1000000, 1032000, 1067000", m.ClockFrequency)
	}

	gain := pdm.GainFromDB(m.GainDB)
	cfg.OutputSize = size
	cfg.Range = r
	cfg.SampleRate = m.SampleRate
	cfg.Stereo = m.Stereo
	cfg.ClockPin = pdm.Pin(m.ClockPin)
	cfg.DataPin = pdm.Pin(m.DataPin)
	cfg.GainLeft = gain
	cfg.GainRight = gain
	return cfg, nil
}

// ConsumeMode returns the capture mode named by mic.consume.
func (m MicConfig) ConsumeMode() (capture.Mode, error) {
	mode, err := capture.ParseMode(m.Consume)
	if err != nil {
		return mode, fmt.Errorf("mic.consume: %w", err)
	}
	return mode, nil
}

// ToTransport converts the transport section for transport.New.
func (t TransportConfig) ToTransport() transport.Config {
	return transport.Config{
		Kind:         t.Kind,
		Address:      t.Address,
		DialTimeout:  t.DialTimeout,
		WriteTimeout: t.WriteTimeout,
		QueueSize:    t.QueueSize,
	}
}
