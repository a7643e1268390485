package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/darkermage/esplink/internal/device"
)

// ErrCacheMiss is returned when there is no usable cached address
var ErrCacheMiss = errors.New("no cached address")

// Record is the persisted last-known-good device address
type Record struct {
	Host       string    `yaml:"host"`
	Port       int       `yaml:"port"`
	VerifiedAt time.Time `yaml:"verified_at"`
}

// Cache persists the last verified device address in a YAML file
type Cache struct {
	filePath string
	log      *slog.Logger
	now      func() time.Time
}

// NewCache creates a cache backed by filePath
func NewCache(filePath string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{filePath: filePath, log: logger, now: time.Now}
}

// DefaultCachePath returns ~/.esplink/device.yaml
func DefaultCachePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".esplink", "device.yaml"), nil
}

// Path returns the backing file
func (c *Cache) Path() string {
	return c.filePath
}

// Read loads the record. A missing file or an empty record is ErrCacheMiss.
func (c *Cache) Read() (*Record, error) {
	data, err := os.ReadFile(c.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}

	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache: %w", err)
	}
	if rec.Host == "" {
		return nil, ErrCacheMiss
	}
	return &rec, nil
}

// Load returns the cached address, if any. Unreadable or corrupt
// files are treated as a miss.
func (c *Cache) Load() (device.Address, bool) {
	rec, err := c.Read()
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			c.log.Debug("no cached address", "path", c.filePath)
		} else {
			c.log.Warn("ignoring unreadable address cache", "path", c.filePath, "err", err)
		}
		return device.Address{}, false
	}
	c.log.Debug("loaded cached address", "host", rec.Host, "port", rec.Port, "verified_at", rec.VerifiedAt)
	return device.NewAddress(rec.Host, rec.Port), true
}

// Save persists addr. Failure only costs startup latency, so it is logged, not returned.
func (c *Cache) Save(addr device.Address) {
	if err := c.Write(Record{Host: addr.Host, Port: addr.Port, VerifiedAt: c.now().UTC()}); err != nil {
		c.log.Warn("failed to save address cache", "path", c.filePath, "err", err)
		return
	}
	c.log.Debug("saved address cache", "addr", addr.String())
}

// Write replaces the record atomically
func (c *Cache) Write(rec Record) error {
	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".device-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close cache: %w", err)
	}

	if err := os.Rename(tmp.Name(), c.filePath); err != nil {
		return fmt.Errorf("failed to replace cache: %w", err)
	}
	return nil
}
