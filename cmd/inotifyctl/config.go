package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/hawkingrei/inotify/inotify"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const envPrefix = "INOTIFYCTL"

var defaultEvents = []string{"IN_ALL_EVENTS"}

// config is the resolved configuration of one invocation. Values come from
// flags, INOTIFYCTL_* environment variables, the config file and defaults,
// in that order.
type config struct {
	LogLevel    logrus.Level
	LogFormat   string
	Mask        uint32
	BufferSize  int
	Interval    time.Duration
	Top         int
	MetricsAddr string
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")
	v.SetDefault("events", defaultEvents)
	v.SetDefault("buffer-size", inotify.DefaultBufferSize)
	v.SetDefault("interval", 10*time.Second)
	v.SetDefault("top", 10)
	v.SetDefault("metrics-addr", "")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func readConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

func loadConfig(v *viper.Viper) (*config, error) {
	level, err := logrus.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return nil, err
	}
	format := v.GetString("log-format")
	if format != "text" && format != "json" {
		return nil, fmt.Errorf("unknown log format %q, want text or json", format)
	}
	mask, err := inotify.ParseMask(splitList(v.GetStringSlice("events"))...)
	if err != nil {
		return nil, err
	}
	if mask == 0 {
		return nil, fmt.Errorf("no event categories selected")
	}
	cfg := &config{
		LogLevel:    level,
		LogFormat:   format,
		Mask:        mask,
		BufferSize:  v.GetInt("buffer-size"),
		Interval:    v.GetDuration("interval"),
		Top:         v.GetInt("top"),
		MetricsAddr: v.GetString("metrics-addr"),
	}
	if cfg.BufferSize < inotify.MinBufferSize {
		return nil, fmt.Errorf("buffer size %d is below the minimum of %d", cfg.BufferSize, inotify.MinBufferSize)
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", cfg.Interval)
	}
	if cfg.Top < 1 {
		return nil, fmt.Errorf("top must be at least 1, got %d", cfg.Top)
	}
	return cfg, nil
}

// splitList accepts both repeated values and comma or space separated ones.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})...)
	}
	return out
}

func setupLogging(cfg *config) {
	logrus.SetLevel(cfg.LogLevel)
	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}
