package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkermage/esplink/internal/config"
)

func TestFlagsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	file := &config.Config{}
	file.Defaults()
	file.Device.Port = 8080
	file.Reporting.Interval = time.Minute
	require.NoError(t, file.Save(path))

	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"--config", path,
		"--ip", "10.0.0.9",
		"--ap",
		"--interval", "2s",
		"--log-level", "debug",
		"--log-format", "text",
		"--cache", filepath.Join(dir, "device.yaml"),
	}))

	opts := &globalOptions{}
	opts.configPath, _ = cmd.Flags().GetString("config")
	opts.ip, _ = cmd.Flags().GetString("ip")
	opts.apMode, _ = cmd.Flags().GetBool("ap")
	opts.interval, _ = cmd.Flags().GetDuration("interval")
	opts.logLevel, _ = cmd.Flags().GetString("log-level")
	opts.logFormat, _ = cmd.Flags().GetString("log-format")
	opts.cache, _ = cmd.Flags().GetString("cache")

	cfg, _, err := opts.load(cmd)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.9", cfg.Device.PinnedHost)
	assert.Equal(t, config.APModeHost, cfg.Device.FallbackHost)
	// unchanged flags keep the file's values
	assert.Equal(t, 8080, cfg.Device.Port)
	assert.Equal(t, 2*time.Second, cfg.Reporting.Interval)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, filepath.Join(dir, "device.yaml"), cfg.Cache.Path)
}

func TestLoad_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	bad := &config.Config{}
	bad.Defaults()
	bad.Reporting.KillMatch = "regex"
	require.NoError(t, bad.Save(path))

	cmd := newRootCmd()
	opts := &globalOptions{configPath: path, logFormat: "text"}
	_, _, err := opts.load(cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kill_match")
}
