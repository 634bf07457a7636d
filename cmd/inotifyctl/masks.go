package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/hawkingrei/inotify/inotify"

	"github.com/spf13/cobra"
)

func newMasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "masks",
		Short: "List the event categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, c := range inotify.Categories() {
				fmt.Fprintf(tw, "%#08x\t%s\t%s\t%s\n", c.Bit, c.Name, c.Short(), c.Description)
			}
			return tw.Flush()
		},
	}
}
