package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hawkingrei/inotify/inotify"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(newViper())
	require.NoError(t, err)
	require.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	require.Equal(t, "text", cfg.LogFormat)
	require.Equal(t, inotify.InAllEvents, cfg.Mask)
	require.Equal(t, inotify.DefaultBufferSize, cfg.BufferSize)
	require.Equal(t, 10*time.Second, cfg.Interval)
	require.Equal(t, 10, cfg.Top)
	require.Empty(t, cfg.MetricsAddr)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("INOTIFYCTL_EVENTS", "create,moved_to")
	t.Setenv("INOTIFYCTL_BUFFER_SIZE", "4096")
	t.Setenv("INOTIFYCTL_INTERVAL", "2s")
	t.Setenv("INOTIFYCTL_LOG_LEVEL", "debug")

	cfg, err := loadConfig(newViper())
	require.NoError(t, err)
	require.Equal(t, inotify.InCreate|inotify.InMovedTo, cfg.Mask)
	require.Equal(t, 4096, cfg.BufferSize)
	require.Equal(t, 2*time.Second, cfg.Interval)
	require.Equal(t, logrus.DebugLevel, cfg.LogLevel)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inotifyctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log-format: json\ntop: 3\nevents: [IN_DELETE, IN_DELETE_SELF]\n"), 0o644))

	v := newViper()
	require.NoError(t, readConfigFile(v, path))
	cfg, err := loadConfig(v)
	require.NoError(t, err)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, 3, cfg.Top)
	require.Equal(t, inotify.InDelete|inotify.InDeleteSelf, cfg.Mask)
}

func TestReadConfigFileMissing(t *testing.T) {
	err := readConfigFile(newViper(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadConfigRejects(t *testing.T) {
	for name, env := range map[string][2]string{
		"log level":   {"INOTIFYCTL_LOG_LEVEL", "loud"},
		"log format":  {"INOTIFYCTL_LOG_FORMAT", "xml"},
		"events":      {"INOTIFYCTL_EVENTS", "create,explode"},
		"no events":   {"INOTIFYCTL_EVENTS", ","},
		"buffer size": {"INOTIFYCTL_BUFFER_SIZE", "16"},
		"interval":    {"INOTIFYCTL_INTERVAL", "0s"},
		"top":         {"INOTIFYCTL_TOP", "0"},
	} {
		t.Run(name, func(t *testing.T) {
			t.Setenv(env[0], env[1])
			_, err := loadConfig(newViper())
			require.Error(t, err)
		})
	}
}

func TestUnknownEventIsReported(t *testing.T) {
	t.Setenv("INOTIFYCTL_EVENTS", "explode")
	_, err := loadConfig(newViper())
	require.ErrorIs(t, err, inotify.ErrUnknownCategory)
}

func TestSplitList(t *testing.T) {
	require.Equal(t, []string{"a", "b", "c", "d"}, splitList([]string{"a,b", " c ", "", "d"}))
}

func TestMasksCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"masks"})
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, len(inotify.Categories()))
	require.Contains(t, lines[0], "IN_ACCESS")
	require.Contains(t, lines[len(lines)-1], "IN_EXCL_UNLINK")
}

func TestLimitsCommand(t *testing.T) {
	dir := t.TempDir()
	for name, v := range map[string]string{
		"max_queued_events":  "16384\n",
		"max_user_instances": "128\n",
		"max_user_watches":   "8192\n",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(v), 0o644))
	}
	old := inotify.ProcfsPath
	inotify.ProcfsPath = dir
	t.Cleanup(func() { inotify.ProcfsPath = old })

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"limits"})
	require.NoError(t, cmd.Execute())
	require.Equal(t, "max_queued_events 16384\nmax_user_instances 128\nmax_user_watches 8192\n", out.String())
}

func TestRootRejectsBadFlag(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"masks", "--log-format", "xml"})
	require.Error(t, cmd.Execute())
}
