// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pdmcap/internal/peripheral/sim"
)

func newTargetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List the buffer geometry of the known targets",
		Run: func(cmd *cobra.Command, args []string) {
			printTargets(cmd.OutOrStdout(), sim.Profiles())
		},
	}
}

func printTargets(w io.Writer, profiles []sim.Profile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tBUFFERS\tSAMPLES\tBYTES\tRATE\tPERIOD\tSTOP\tUNINIT")
	for _, p := range profiles {
		g := p.Geometry
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d Hz\t%v\t%t\t%t\n",
			p.Name, g.NumBuffers, g.BufferSizeSamples, g.BufferSizeSamples*2, g.SampleRate,
			p.BufferPeriod(1), p.Capabilities.CanStop, p.Capabilities.CanUninit)
	}
	tw.Flush()
}
