// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"pdmcap/internal/peripheral/host"
	"pdmcap/internal/tui"
)

func newDevicesCommand() *cobra.Command {
	var pick bool
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List host audio devices for the host target",
		RunE: func(cmd *cobra.Command, args []string) error {
			if pick {
				id, err := tui.PickDevice(host.Devices)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Selected device %d. Use it with PDMCAP_DEVICE=%d or mic.device in the config.\n", id, id)
				return nil
			}
			devices, err := host.Devices()
			if err != nil {
				return err
			}
			host.PrintDevices(cmd.OutOrStdout(), devices)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&pick, "pick", "p", false, "Choose an input device interactively")
	return cmd
}
