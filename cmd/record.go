// SPDX-License-Identifier: MIT
package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pdmcap/internal/capture"
	"pdmcap/internal/recorder"
)

func newRecordCommand(opts *options) *cobra.Command {
	var (
		output   string
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record the microphone to a WAV file",
		Long: "Record converted samples to a WAV file until the duration is reached or the\n" +
			"process is interrupted. unsigned8 output is written as 8-bit WAV, the other\n" +
			"formats as 16-bit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd.Flags())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("duration") {
				cfg.Recording.MaxDuration = duration
			}
			if output == "" {
				output = recorder.DefaultFileName(cfg.Recording.Dir, time.Now())
			}

			r, err := openRig(cfg)
			if err != nil {
				return err
			}
			defer r.Close()

			rec, err := recorder.Create(output, r.driver.Format(), cfg.Recording.MaxDuration)
			if err != nil {
				return err
			}

			in, err := r.instrument()
			if err != nil {
				rec.Close()
				return err
			}
			defer in.shutdown()

			s, err := r.newSession(in)
			if err != nil {
				rec.Close()
				return err
			}
			s.Add("wav", capture.StopOn(rec, recorder.ErrLimitReached))

			runErr := s.Run(cmd.Context())
			if err := errors.Join(runErr, rec.Close()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recording saved to: %s (%s)\n", rec.Path(), rec.Duration().Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "",
		"Output file. Default is <recording dir>/recording-MM-DD-YYYY-HHMMSS.wav")
	cmd.Flags().DurationVarP(&duration, "duration", "d", 0,
		"Stop after this long, e.g. 10s. 0 records until interrupted")
	return cmd
}
