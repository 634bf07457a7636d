package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hawkingrei/inotify/fsnotify"
	"github.com/hawkingrei/inotify/inotify"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		monitor bool
		follow  bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch PATH...",
		Short: "Print the events of the given paths",
		Long: `Watch the given files and directories and print one line per event.
Without --monitor the command exits after the first event. With --follow
the paths are watched as paths: symlinks and directories on the way are
tracked and the watch moves when they change.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			opt := inotify.WithBufferSize(a.cfg.BufferSize)
			logrus.WithField("paths", args).Infof("watching for %s", inotify.MaskString(a.cfg.Mask))
			if follow {
				s, err := followPaths(args, a.cfg.Mask, opt)
				if err != nil {
					return err
				}
				defer s.stop()
				return printEvents(ctx, cmd.OutOrStdout(), s.events, s.errors, monitor, writePathEvent)
			}

			n, err := fsnotify.New(args, a.cfg.Mask, opt)
			if err != nil {
				return err
			}
			n.Start()
			defer n.Stop()
			return printEvents(ctx, cmd.OutOrStdout(), n.Events(), n.Errors(), monitor, writeEvent)
		},
	}
	addStreamFlags(cmd)
	cmd.Flags().BoolVarP(&monitor, "monitor", "m", false, "keep printing events instead of exiting after the first one")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "follow symlinks and renamed directories on the way to each path")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "stop after this long, 0 waits forever")
	return cmd
}

// printEvents writes events with write until the stream ends, ctx is done
// or, unless monitor is set, one event was written.
func printEvents[E any](ctx context.Context, w io.Writer, events <-chan E, errs <-chan error, monitor bool,
	write func(io.Writer, E) error,
) error {
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := write(w, event); err != nil {
				return err
			}
			if !monitor {
				return nil
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			return err
		case <-ctx.Done():
			return nil
		}
	}
}

func writeEvent(w io.Writer, event inotify.WatchEvent) error {
	path := event.FullPath()
	if path == "" {
		path = "-"
	}
	var err error
	if event.HasCookie {
		_, err = fmt.Fprintf(w, "%s %s cookie=%d\n", path, inotify.MaskString(event.Mask), event.Cookie)
	} else {
		_, err = fmt.Fprintf(w, "%s %s\n", path, inotify.MaskString(event.Mask))
	}
	return err
}
