package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hawkingrei/inotify/activity"
	"github.com/hawkingrei/inotify/fsnotify"
	"github.com/hawkingrei/inotify/inotify"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newStatsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats PATH...",
		Short: "Count events per category and report the busiest paths",
		Long: `Watch the given paths for --interval, then print the number of events
per category and the paths with the most activity.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := fsnotify.New(args, a.cfg.Mask, inotify.WithBufferSize(a.cfg.BufferSize))
			if err != nil {
				return err
			}
			n.Start()
			defer n.Stop()

			if a.cfg.MetricsAddr != "" {
				stop := serveMetrics(a.cfg.MetricsAddr)
				defer stop()
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Interval)
			defer cancel()
			go func() {
				for err := range n.Errors() {
					logrus.WithError(err).Error("Stopped reading events")
					cancel()
				}
			}()

			tracker := activity.New(a.cfg.Top)
			tracker.Run(ctx, n.Events(), fadeInterval(a.cfg.Interval))
			_, err = tracker.Report().WriteTo(cmd.OutOrStdout())
			return err
		},
	}
	addStreamFlags(cmd)
	cmd.Flags().Duration("interval", 10*time.Second, "how long to collect events")
	cmd.Flags().Int("top", 10, "number of busiest paths to report")
	cmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address while collecting")
	return cmd
}

// fadeInterval is how often a busy tracker halves its counts while
// collecting for d.
func fadeInterval(d time.Duration) time.Duration {
	f := d / 4
	if f < time.Second {
		f = time.Second
	}
	return f
}

func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logrus.WithField("addr", addr).Info("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("Metrics server failed")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logrus.WithError(err).Warn("Failed to shut down metrics server")
		}
	}
}
