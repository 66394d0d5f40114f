// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	applog "pdmcap/internal/log"
)

var logger = applog.For("config")

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	LogLevel  string          `yaml:"log_level"` // debug, info, warn, error
	Mic       MicConfig       `yaml:"mic"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// MicConfig selects the target and the capture settings of the driver.
type MicConfig struct {
	Target     string  `yaml:"target"`      // nrf52, rtl872x (simulated) or host
	Device     int     `yaml:"device"`      // PortAudio input device for host, -1 for default
	LowLatency bool    `yaml:"low_latency"` // host only
	Source     string  `yaml:"source"`      // simulated signal: sine, complex, ramp, silence
	ToneHz     float64 `yaml:"tone_hz"`     // sine frequency

	OutputSize     string  `yaml:"output_size"` // signed16, unsigned8, raw16
	Range          int     `yaml:"range"`       // 128 .. 32768
	SampleRate     int     `yaml:"sample_rate"` // 0 for the hardware rate
	Stereo         bool    `yaml:"stereo"`
	ClockPin       int     `yaml:"clock_pin"` // -1 keeps the board default
	DataPin        int     `yaml:"data_pin"`
	GainDB         float64 `yaml:"gain_db"`
	Edge           string  `yaml:"edge"` // left_falling, left_rising
	ClockFrequency int     `yaml:"clock_frequency"`

	Consume      string        `yaml:"consume"`       // copy, nocopy, interrupt
	PollInterval time.Duration `yaml:"poll_interval"` // 0 derives it from the buffer period
}

// RecordingConfig holds settings for WAV recordings.
type RecordingConfig struct {
	Dir         string        `yaml:"dir"`
	MaxDuration time.Duration `yaml:"max_duration"` // 0 for unlimited
}

// TransportConfig selects where the stream command sends buffers.
type TransportConfig struct {
	Kind         string        `yaml:"kind"`    // tcp, udp, websocket, log
	Address      string        `yaml:"address"` // dial address, or listen address for websocket
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	QueueSize    int           `yaml:"queue_size"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches the working directory for pdmcap.yaml. If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies PDMCAP_* environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(ConfigFileName); err == nil {
			path = ConfigFileName
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		logger.Debugf("loaded %s", path)
	}

	// Apply environment variable overrides AFTER loading from file.
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}

	switch strings.ToLower(c.Mic.Target) {
	case TargetNRF52, TargetRTL872x, TargetHost:
	default:
		errs = append(errs, fmt.Errorf("mic.target %q is not one of nrf52, rtl872x, host", c.Mic.Target))
	}
	if _, err := c.Mic.PDMConfig(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Mic.ConsumeMode(); err != nil {
		errs = append(errs, err)
	}
	if c.Mic.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("mic.poll_interval must not be negative"))
	}

	if c.Recording.MaxDuration < 0 {
		errs = append(errs, fmt.Errorf("recording.max_duration must not be negative"))
	}

	switch strings.ToLower(c.Transport.Kind) {
	case "tcp", "udp":
		if !strings.Contains(c.Transport.Address, ":") {
			errs = append(errs, fmt.Errorf("transport.address '%s' appears invalid (missing port?)", c.Transport.Address))
		}
	case "websocket", "ws", "log", "":
	default:
		errs = append(errs, fmt.Errorf("transport.kind %q is not one of tcp, udp, websocket, log", c.Transport.Kind))
	}
	if c.Transport.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("transport.queue_size must not be negative"))
	}

	if c.Metrics.Enabled && c.Metrics.Address == "" {
		errs = append(errs, fmt.Errorf("metrics.address must be set when metrics are enabled"))
	}

	return errors.Join(errs...)
}

// applyEnvOverrides applies PDMCAP_* variables on top of the file values.
func (c *Config) applyEnvOverrides() error {
	str := func(name string, dst *string) {
		if val, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = val
			logger.Infof("overriding %s from env: %s", strings.ToLower(name), val)
		}
	}
	var errs []error
	parsed := func(name string, parse func(string) error) {
		val, ok := os.LookupEnv(envPrefix + name)
		if !ok {
			return
		}
		if err := parse(val); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
			return
		}
		logger.Infof("overriding %s from env: %s", strings.ToLower(name), val)
	}

	str("LOG_LEVEL", &c.LogLevel)
	str("TARGET", &c.Mic.Target)
	str("SOURCE", &c.Mic.Source)
	str("OUTPUT_SIZE", &c.Mic.OutputSize)
	str("EDGE", &c.Mic.Edge)
	str("CONSUME", &c.Mic.Consume)
	str("RECORDING_DIR", &c.Recording.Dir)
	str("TRANSPORT", &c.Transport.Kind)
	str("TRANSPORT_ADDRESS", &c.Transport.Address)
	str("METRICS_ADDRESS", &c.Metrics.Address)

	parsed("RANGE", func(v string) (err error) {
		c.Mic.Range, err = strconv.Atoi(v)
		return err
	})
	parsed("SAMPLE_RATE", func(v string) (err error) {
		c.Mic.SampleRate, err = strconv.Atoi(v)
		return err
	})
	parsed("DEVICE", func(v string) (err error) {
		c.Mic.Device, err = strconv.Atoi(v)
		return err
	})
	parsed("STEREO", func(v string) (err error) {
		c.Mic.Stereo, err = strconv.ParseBool(v)
		return err
	})
	parsed("GAIN_DB", func(v string) (err error) {
		c.Mic.GainDB, err = strconv.ParseFloat(v, 64)
		return err
	})
	parsed("MAX_DURATION", func(v string) (err error) {
		c.Recording.MaxDuration, err = time.ParseDuration(v)
		return err
	})
	parsed("METRICS_ENABLED", func(v string) (err error) {
		c.Metrics.Enabled, err = strconv.ParseBool(v)
		return err
	})

	return errors.Join(errs...)
}
