package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/darkermage/esplink/internal/command"
	"github.com/darkermage/esplink/internal/device"
	"github.com/darkermage/esplink/internal/discovery"
)

// Well-known device addresses
const (
	DefaultHostname = "esp32.local"
	// APModeHost is the device's address on its own soft-AP network
	APModeHost = "192.168.4.1"
)

// Config is the agent configuration
type Config struct {
	Device    DeviceCfg    `yaml:"device"`
	Discovery DiscoveryCfg `yaml:"discovery"`
	Reporting ReportingCfg `yaml:"reporting"`
	Cache     CacheCfg     `yaml:"cache"`
	Metrics   MetricsCfg   `yaml:"metrics"`
	Log       LogCfg       `yaml:"log"`
}

// DeviceCfg describes how to reach and recognise the device
type DeviceCfg struct {
	Hostname       string        `yaml:"hostname"`
	Port           int           `yaml:"port"`
	Marker         string        `yaml:"marker"`
	PinnedHost     string        `yaml:"pinned_host,omitempty"`   // skips discovery
	FallbackHost   string        `yaml:"fallback_host,omitempty"` // used when discovery fails; defaults to hostname
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// DiscoveryCfg tunes the search
type DiscoveryCfg struct {
	ProbeTimeout    time.Duration `yaml:"probe_timeout"`
	Workers         int           `yaml:"workers"`
	MaxHosts        int           `yaml:"max_hosts"`
	FallbackSubnets []string      `yaml:"fallback_subnets"`
	DisableMDNS     bool          `yaml:"disable_mdns"`
	MDNSTimeout     time.Duration `yaml:"mdns_timeout"`
	UniFi           *UniFiCfg     `yaml:"unifi,omitempty"`
}

// UniFiCfg enables the router client-list strategy
type UniFiCfg struct {
	ControllerURL   string `yaml:"controller_url"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	Site            string `yaml:"site,omitempty"`
	VerifySSL       bool   `yaml:"verify_ssl"`
	HostnamePattern string `yaml:"hostname_pattern"`
}

// ReportingCfg tunes the steady-state loop
type ReportingCfg struct {
	Interval         time.Duration     `yaml:"interval"`
	FailureThreshold int               `yaml:"failure_threshold"`
	KillMatch        command.MatchMode `yaml:"kill_match"`
}

// CacheCfg locates the address cache
type CacheCfg struct {
	Path string `yaml:"path"`
}

// MetricsCfg enables the Prometheus endpoint
type MetricsCfg struct {
	Addr string `yaml:"addr,omitempty"`
}

// LogCfg selects log verbosity and encoding
type LogCfg struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// GetDefaultConfigPath returns ~/.esplink/config.yaml
func GetDefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".esplink", "config.yaml"), nil
}

// Load reads config from path. A missing file yields an empty config.
func Load(path string) (*Config, error) {
	c := new(Config)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return c, nil
}

// Save writes the config to path with restricted permissions, since it
// may hold controller credentials
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Defaults fills unset fields
func (c *Config) Defaults() {
	if c.Device.Hostname == "" {
		c.Device.Hostname = DefaultHostname
	}
	if c.Device.Port <= 0 {
		c.Device.Port = device.DefaultPort
	}
	if c.Device.Marker == "" {
		c.Device.Marker = device.DefaultMarker
	}
	if c.Device.RequestTimeout <= 0 {
		c.Device.RequestTimeout = 10 * time.Second
	}
	if c.Discovery.ProbeTimeout <= 0 {
		c.Discovery.ProbeTimeout = 800 * time.Millisecond
	}
	if c.Discovery.Workers <= 0 {
		c.Discovery.Workers = discovery.DefaultWorkers
	}
	if c.Discovery.MaxHosts <= 0 {
		c.Discovery.MaxHosts = discovery.MaxHosts
	}
	if len(c.Discovery.FallbackSubnets) == 0 {
		c.Discovery.FallbackSubnets = append([]string(nil), discovery.DefaultFallbackSubnets...)
	}
	if c.Discovery.MDNSTimeout <= 0 {
		c.Discovery.MDNSTimeout = 2 * time.Second
	}
	if u := c.Discovery.UniFi; u != nil && u.HostnamePattern == "" {
		u.HostnamePattern = "esp32*"
	}
	if c.Reporting.Interval <= 0 {
		c.Reporting.Interval = 5 * time.Second
	}
	if c.Reporting.FailureThreshold <= 0 {
		c.Reporting.FailureThreshold = 5
	}
	if c.Reporting.KillMatch == "" {
		c.Reporting.KillMatch = command.MatchSubstring
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "auto"
	}
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs error
	if c.Device.Port > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("device.port %d out of range", c.Device.Port))
	}
	if c.Discovery.MaxHosts > discovery.MaxHosts {
		errs = multierr.Append(errs, fmt.Errorf("discovery.max_hosts %d exceeds %d", c.Discovery.MaxHosts, discovery.MaxHosts))
	}
	if _, err := discovery.ParseSubnets(c.Discovery.FallbackSubnets, discovery.SourceFallback); err != nil {
		errs = multierr.Append(errs, err)
	}
	switch c.Reporting.KillMatch {
	case command.MatchSubstring, command.MatchExact:
	default:
		errs = multierr.Append(errs, fmt.Errorf("reporting.kill_match %q must be %q or %q", c.Reporting.KillMatch, command.MatchSubstring, command.MatchExact))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = multierr.Append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "auto", "text", "json":
	default:
		errs = multierr.Append(errs, fmt.Errorf("log.format %q is not one of auto, text, json", c.Log.Format))
	}
	if u := c.Discovery.UniFi; u != nil {
		if u.ControllerURL == "" {
			errs = multierr.Append(errs, errors.New("discovery.unifi.controller_url is required"))
		}
		if u.Username == "" || u.Password == "" {
			errs = multierr.Append(errs, errors.New("discovery.unifi username and password are required"))
		}
	}
	return errs
}

// FallbackAddress is where reports go when discovery finds nothing
func (c *Config) FallbackAddress() device.Address {
	host := c.Device.FallbackHost
	if host == "" {
		host = c.Device.Hostname
	}
	return device.NewAddress(host, c.Device.Port)
}
