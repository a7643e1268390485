package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkermage/esplink/internal/command"
	"github.com/darkermage/esplink/internal/device"
	"github.com/darkermage/esplink/internal/discovery"
)

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device: [1, 2"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	cfg := &Config{Discovery: DiscoveryCfg{UniFi: &UniFiCfg{}}}
	cfg.Defaults()

	assert.Equal(t, DefaultHostname, cfg.Device.Hostname)
	assert.Equal(t, device.DefaultPort, cfg.Device.Port)
	assert.Equal(t, device.DefaultMarker, cfg.Device.Marker)
	assert.Equal(t, 800*time.Millisecond, cfg.Discovery.ProbeTimeout)
	assert.Equal(t, discovery.DefaultWorkers, cfg.Discovery.Workers)
	assert.Equal(t, discovery.MaxHosts, cfg.Discovery.MaxHosts)
	assert.Equal(t, discovery.DefaultFallbackSubnets, cfg.Discovery.FallbackSubnets)
	assert.Equal(t, "esp32*", cfg.Discovery.UniFi.HostnamePattern)
	assert.Equal(t, 5*time.Second, cfg.Reporting.Interval)
	assert.Equal(t, 5, cfg.Reporting.FailureThreshold)
	assert.Equal(t, command.MatchSubstring, cfg.Reporting.KillMatch)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "auto", cfg.Log.Format)
	// controller credentials are still required
	assert.Error(t, cfg.Validate())
}

func TestValidate_Defaults(t *testing.T) {
	cfg := &Config{}
	cfg.Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := &Config{}
	cfg.Defaults()
	cfg.Device.Port = 70000
	cfg.Discovery.MaxHosts = 1024
	cfg.Discovery.FallbackSubnets = []string{"10.0.0.0/24", "bogus"}
	cfg.Reporting.KillMatch = "regex"
	cfg.Log.Level = "trace"
	cfg.Discovery.UniFi = &UniFiCfg{HostnamePattern: "esp32*"}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"device.port", "max_hosts", "bogus", "kill_match", "log.level", "controller_url", "username and password"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := &Config{}
	cfg.Defaults()
	cfg.Device.PinnedHost = "10.0.0.9"
	cfg.Reporting.KillMatch = command.MatchExact

	require.NoError(t, cfg.Save(path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestFallbackAddress(t *testing.T) {
	cfg := &Config{}
	cfg.Defaults()
	assert.Equal(t, device.NewAddress(DefaultHostname, 80), cfg.FallbackAddress())

	cfg.Device.FallbackHost = APModeHost
	assert.Equal(t, device.NewAddress("192.168.4.1", 80), cfg.FallbackAddress())
}
