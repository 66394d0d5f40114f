// SPDX-License-Identifier: MIT
// Package cmd implements the pdmcap command line.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"pdmcap/internal/config"
	applog "pdmcap/internal/log"
	"pdmcap/pkg/build"
)

var logger = applog.For("cli")

// options are the persistent flags. Only flags set on the command line
// override the config file and environment.
type options struct {
	configPath  string
	logLevel    string
	target      string
	source      string
	outputSize  string
	rangeSpan   int
	sampleRate  int
	stereo      bool
	gainDB      float64
	consume     string
	metrics     bool
	metricsAddr string
}

// Execute runs the command line with args until ctx is cancelled.
func Execute(ctx context.Context, args []string) error {
	root := newRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCommand() *cobra.Command {
	info := build.Get()
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           info.Name,
		Short:         "Capture, record and stream audio from a PDM microphone",
		Version:       info.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
	}
	rootCmd.SetVersionTemplate(info.String() + "\n")

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "",
		"Config file. Default is ./"+config.ConfigFileName+" if present")
	flags.StringVar(&opts.logLevel, "log-level", config.DefaultLogLevel,
		"Log level: debug, info, warn, error")
	flags.StringVarP(&opts.target, "target", "t", config.DefaultTarget,
		"Target: nrf52, rtl872x (simulated) or host (PortAudio microphone)")
	flags.StringVar(&opts.source, "source", config.DefaultSource,
		"Simulated signal: sine, complex, ramp, silence")
	flags.StringVarP(&opts.outputSize, "output-size", "f", config.DefaultOutputSize,
		"Sample format: signed16, unsigned8, raw16")
	flags.IntVarP(&opts.rangeSpan, "range", "r", config.DefaultRange,
		"Effective microphone range, a power of two from 128 to 32768")
	flags.IntVarP(&opts.sampleRate, "sample-rate", "s", 0,
		"Delivered sample rate in Hz, a divisor of the hardware rate. 0 keeps the hardware rate")
	flags.BoolVar(&opts.stereo, "stereo", false,
		"Capture interleaved left/right samples")
	flags.Float64VarP(&opts.gainDB, "gain", "g", 0,
		"Microphone gain in dB, -20 to +20")
	flags.StringVar(&opts.consume, "consume", config.DefaultConsume,
		"How buffers are consumed: copy, nocopy, interrupt")
	flags.BoolVar(&opts.metrics, "metrics", false,
		"Serve Prometheus metrics while capturing")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", config.DefaultMetricsAddress,
		"Listen address of the metrics endpoint")

	rootCmd.AddCommand(
		newRecordCommand(opts),
		newStreamCommand(opts),
		newMonitorCommand(opts),
		newTargetsCommand(),
		newDevicesCommand(),
	)
	return rootCmd
}

// load reads the config and applies the flags that were set explicitly.
func (o *options) load(flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}

	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("log-level", func() { cfg.LogLevel = o.logLevel })
	set("target", func() { cfg.Mic.Target = o.target })
	set("source", func() { cfg.Mic.Source = o.source })
	set("output-size", func() { cfg.Mic.OutputSize = o.outputSize })
	set("range", func() { cfg.Mic.Range = o.rangeSpan })
	set("sample-rate", func() { cfg.Mic.SampleRate = o.sampleRate })
	set("stereo", func() { cfg.Mic.Stereo = o.stereo })
	set("gain", func() { cfg.Mic.GainDB = o.gainDB })
	set("consume", func() { cfg.Mic.Consume = o.consume })
	set("metrics", func() { cfg.Metrics.Enabled = o.metrics })
	set("metrics-addr", func() { cfg.Metrics.Address = o.metricsAddr })

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	level, _ := applog.ParseLevel(cfg.LogLevel)
	applog.SetLevel(level)
	return cfg, nil
}
