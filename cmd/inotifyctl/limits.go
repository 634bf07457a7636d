package main

import (
	"fmt"

	"github.com/hawkingrei/inotify/inotify"

	"github.com/spf13/cobra"
)

func newLimitsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "limits",
		Short: "Print the kernel limits on inotify instances and watches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limits := []struct {
				name string
				get  func() (int, error)
			}{
				{"max_queued_events", inotify.MaxQueuedEvents},
				{"max_user_instances", inotify.MaxUserInstances},
				{"max_user_watches", inotify.MaxUserWatches},
			}
			for _, l := range limits {
				v, err := l.get()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", l.name, v)
			}
			return nil
		},
	}
}
