// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"pdmcap/internal/analysis"
	applog "pdmcap/internal/log"
	"pdmcap/internal/tui"
	"pdmcap/pkg/bitint"
)

func newMonitorCommand(opts *options) *cobra.Command {
	var (
		plain  bool
		window string
	)
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Show live input levels",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd.Flags())
			if err != nil {
				return err
			}
			wf, err := analysis.ParseWindowFunc(window)
			if err != nil {
				return err
			}

			r, err := openRig(cfg)
			if err != nil {
				return err
			}
			defer r.Close()

			f := r.driver.Format()
			n := r.driver.NumberOfSamples()
			meter, err := analysis.NewMeter(f, n)
			if err != nil {
				return err
			}
			spectrum, err := analysis.NewSpectrum(bitint.NextPowerOfTwo(n/f.Channels), f, wf)
			if err != nil {
				return err
			}

			in, err := r.instrument()
			if err != nil {
				return err
			}
			defer in.shutdown()

			s, err := r.newSession(in)
			if err != nil {
				return err
			}
			s.Add("meter", meter)
			s.Add("spectrum", spectrum)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			errc := make(chan error, 1)
			go func() { errc <- s.Run(ctx) }()

			if plain {
				printLevels(ctx, cmd.OutOrStdout(), meter)
			} else {
				// The TUI owns the terminal.
				applog.SetOutput(io.Discard)
				defer applog.SetOutput(os.Stderr)

				status := func() tui.Status {
					freq, _ := spectrum.Dominant()
					return tui.Status{State: r.driver.State(), Stats: r.driver.Stats(), Dominant: freq}
				}
				title := fmt.Sprintf("pdmcap monitor: %s", r.target)
				if err := tui.RunMeter(ctx, tui.NewMeterModel(title, f, meter, status, 0)); err != nil {
					cancel()
					<-errc
					return err
				}
			}
			cancel()
			return <-errc
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "Print one line per second instead of the interactive meter")
	cmd.Flags().StringVar(&window, "window", "hann", "FFT window for the tone estimate: hann, hamming, blackman, none")
	return cmd
}

func printLevels(ctx context.Context, w io.Writer, meter *analysis.Meter) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for ch, l := range meter.Levels() {
				fmt.Fprintf(w, "ch%d %6.1f dBFS  peak %6.1f  dc %+.3f  clipped %d\n",
					ch, l.DBFS(), l.PeakDBFS(), l.DC, l.Clipped)
			}
		}
	}
}
