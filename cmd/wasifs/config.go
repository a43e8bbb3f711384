package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/absfs/wasifs"
)

// Config is the on-disk configuration of the wasifs command.
type Config struct {
	Sources []wasifs.Record `yaml:"sources"`
	Native  NativeConfig    `yaml:"native"`
	Cache   CacheConfig     `yaml:"cache"`
	Log     LogConfig       `yaml:"log"`
}

// NativeConfig binds Native sources to a host directory.
type NativeConfig struct {
	Root     string `yaml:"root"`
	ReadOnly bool   `yaml:"readonly"`
}

// CacheConfig enables the union lookup cache when TTL is positive.
type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

// LogConfig selects the log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// defaultConfig mounts the standard streams over the host directory, if any.
func defaultConfig() *Config {
	return &Config{
		Sources: []wasifs.Record{
			{Type: wasifs.TypeDevice},
			{Type: wasifs.TypeNative},
		},
		Native: NativeConfig{ReadOnly: true},
		Log:    LogConfig{Level: "warn"},
	}
}

// loadConfig reads path over the defaults. An empty path yields the defaults.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
