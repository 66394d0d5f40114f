// SPDX-License-Identifier: MIT
package config

import "time"

// Built-in defaults used when neither the config file nor the environment
// sets a value.
const (
	DefaultLogLevel   = "info"
	DefaultTarget     = TargetNRF52
	DefaultDeviceID   = -1 // host default input device
	DefaultSource     = "sine"
	DefaultToneHz     = 1000.0
	DefaultOutputSize = "signed16"
	DefaultRange      = 2048 // 12-bit microphone
	DefaultConsume    = "copy"
	DefaultEdge       = EdgeLeftFalling
	DefaultClockHz    = 1032000

	DefaultRecordingDir   = "./recordings"
	DefaultTransportKind  = "log"
	DefaultTransportAddr  = "127.0.0.1:9000"
	DefaultDialTimeout    = 5 * time.Second
	DefaultWriteTimeout   = time.Second
	DefaultQueueSize      = 64
	DefaultMetricsAddress = ":9464"

	MinGainDB = -20.0
	MaxGainDB = 20.0

	// ConfigFileName is searched for in the working directory when no path
	// is given.
	ConfigFileName = "pdmcap.yaml"

	envPrefix = "PDMCAP_"
)

// Targets the mic section can select.
const (
	TargetNRF52   = "nrf52"
	TargetRTL872x = "rtl872x"
	TargetHost    = "host"
)

// Edge names.
const (
	EdgeLeftFalling = "left_falling"
	EdgeLeftRising  = "left_rising"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		Mic: MicConfig{
			Target:         DefaultTarget,
			Device:         DefaultDeviceID,
			Source:         DefaultSource,
			ToneHz:         DefaultToneHz,
			OutputSize:     DefaultOutputSize,
			Range:          DefaultRange,
			ClockPin:       -1,
			DataPin:        -1,
			Edge:           DefaultEdge,
			ClockFrequency: DefaultClockHz,
			Consume:        DefaultConsume,
		},
		Recording: RecordingConfig{
			Dir: DefaultRecordingDir,
		},
		Transport: TransportConfig{
			Kind:         DefaultTransportKind,
			Address:      DefaultTransportAddr,
			DialTimeout:  DefaultDialTimeout,
			WriteTimeout: DefaultWriteTimeout,
			QueueSize:    DefaultQueueSize,
		},
		Metrics: MetricsConfig{
			Address: DefaultMetricsAddress,
		},
	}
}
