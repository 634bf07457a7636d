package main

import (
	"github.com/hawkingrei/inotify/inotify"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries the state shared by all subcommands.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config
}

func newRootCmd() *cobra.Command {
	a := &app{v: newViper()}
	cmd := &cobra.Command{
		Use:           "inotifyctl",
		Short:         "Watch paths through Linux inotify",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			if err := readConfigFile(a.v, a.cfgFile); err != nil {
				return err
			}
			cfg, err := loadConfig(a.v)
			if err != nil {
				return err
			}
			setupLogging(cfg)
			a.cfg = cfg
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (any format viper reads)")
	flags.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text or json)")

	cmd.AddCommand(
		newWatchCmd(a),
		newStatsCmd(a),
		newMasksCmd(),
		newLimitsCmd(),
	)
	return cmd
}

// addStreamFlags registers the flags of commands that read events.
func addStreamFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceP("events", "e", defaultEvents, "event categories to watch, e.g. create,modify or IN_MOVE")
	cmd.Flags().Int("buffer-size", inotify.DefaultBufferSize, "decoder buffer size in bytes")
}
