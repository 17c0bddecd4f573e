package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/ardanlabs/blockfeed/business/core/feedsync"
	"gopkg.in/yaml.v3"
)

// Config represents the watcher settings that can be kept in a file.
type Config struct {
	URL        string        `yaml:"url"`
	Store      string        `yaml:"store"`
	StorePath  string        `yaml:"store_path"`
	Interval   time.Duration `yaml:"interval"`
	Capacity   int           `yaml:"capacity"`
	Dwell      time.Duration `yaml:"dwell"`
	Optimistic bool          `yaml:"optimistic"`
	Timeout    time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the settings used when no file is present.
func DefaultConfig() Config {
	return Config{
		URL:        "http://localhost:3000",
		Store:      StoreSQLite,
		Interval:   feedsync.DefaultPollInterval,
		Capacity:   feedsync.DefaultCapacity,
		Dwell:      feedsync.DefaultNewItemDwell,
		Optimistic: true,
		Timeout:    10 * time.Second,
	}
}

// DefaultConfigPath returns where the config file lives when no path is
// provided.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "blockfeed", "watcher.yaml")
}

// DefaultStorePath returns the cache location for the store kind.
func DefaultStorePath(kind string) string {
	switch kind {
	case StoreDisk:
		return filepath.Join(xdg.CacheHome, "blockfeed", "cache")
	default:
		return filepath.Join(xdg.CacheHome, "blockfeed", "cache.db")
	}
}

// LoadConfig reads the yaml file at path over the defaults. With an empty
// path the default location is tried and a missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the settings are usable.
func (c Config) Validate() error {
	switch c.Store {
	case StoreSQLite, StoreDisk, StoreMemory:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}

	if c.URL == "" {
		return errors.New("url is required")
	}
	if c.Capacity < 1 || c.Capacity > feedsync.MaxCapacity {
		return fmt.Errorf("capacity must be between 1 and %d", feedsync.MaxCapacity)
	}
	if c.Interval <= 0 || c.Dwell <= 0 || c.Timeout <= 0 {
		return errors.New("interval, dwell and timeout must be positive")
	}

	return nil
}
