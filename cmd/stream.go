// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"pdmcap/internal/capture"
	"pdmcap/internal/transport"
)

func newStreamCommand(opts *options) *cobra.Command {
	var (
		kind     string
		address  string
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Stream converted buffers over the network",
		Long: "Stream converted buffers to a remote consumer:\n" +
			"  tcp        raw little-endian PCM to a capture server\n" +
			"  udp        one framed packet per buffer\n" +
			"  websocket  serve /ws and broadcast framed packets to every client\n" +
			"  log        log a summary of every buffer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd.Flags())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("transport") {
				cfg.Transport.Kind = kind
			}
			if cmd.Flags().Changed("address") {
				cfg.Transport.Address = address
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			r, err := openRig(cfg)
			if err != nil {
				return err
			}
			defer r.Close()

			tr, err := transport.New(cfg.Transport.ToTransport(), r.driver.Format())
			if err != nil {
				return err
			}

			in, err := r.instrument()
			if err != nil {
				tr.Close()
				return err
			}
			defer in.shutdown()

			s, err := r.newSession(in)
			if err != nil {
				tr.Close()
				return err
			}
			s.Add(cfg.Transport.Kind, capture.SinkFunc(tr.Send))

			ctx := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}
			return errors.Join(s.Run(ctx), tr.Close())
		},
	}
	cmd.Flags().StringVar(&kind, "transport", "", "Transport: tcp, udp, websocket, log")
	cmd.Flags().StringVarP(&address, "address", "a", "",
		"Address to dial (tcp, udp) or listen on (websocket)")
	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "Stop after this long. 0 streams until interrupted")
	return cmd
}
