// Package config reads and writes the global ~/.bstore/config.toml.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the global daemon configuration.
type Config struct {
	DefaultSession string `toml:"default_session"`
	// PinBlindSort disables pin-aware chat ordering in the replica.
	PinBlindSort bool `toml:"pin_blind_sort"`
	// SnapshotIntervalSeconds is how often the replica snapshot is written.
	// Zero means the default of 60.
	SnapshotIntervalSeconds int `toml:"snapshot_interval_seconds"`
}

// SnapshotInterval returns the configured snapshot cadence in seconds.
func (c *Config) SnapshotInterval() int {
	if c.SnapshotIntervalSeconds <= 0 {
		return 60
	}
	return c.SnapshotIntervalSeconds
}

// Load reads config from path. Returns an error if the file is missing.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
