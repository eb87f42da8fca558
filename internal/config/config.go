// Package config loads host settings from a YAML file.
//
// A missing file is not an error: every field has a default, and command
// flags override whatever the file sets.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "hsmgrid.yaml"

// Redis selects the Redis definition store. An empty Addr disables it.
type Redis struct {
	Addr     string        `yaml:"addr,omitempty"`
	Password string        `yaml:"password,omitempty"`
	DB       int           `yaml:"db,omitempty"`
	Prefix   string        `yaml:"prefix,omitempty"`
	TTL      time.Duration `yaml:"ttl,omitempty"`
	LockTTL  time.Duration `yaml:"lock_ttl,omitempty"`
}

// Encryption seals stored definitions with AES-256-GCM. Keys are base64
// encoded and 32 bytes long once decoded. An empty Key disables it.
type Encryption struct {
	Key          string   `yaml:"key,omitempty"`
	FallbackKeys []string `yaml:"fallback_keys,omitempty"`
}

// Enabled reports whether an active key is set.
func (e Encryption) Enabled() bool { return e.Key != "" }

// Decode returns the raw active and fallback keys.
func (e Encryption) Decode() ([]byte, [][]byte, error) {
	active, err := base64.StdEncoding.DecodeString(e.Key)
	if err != nil {
		return nil, nil, fmt.Errorf("encryption key: %w", err)
	}
	var fallback [][]byte
	for i, k := range e.FallbackKeys {
		raw, err := base64.StdEncoding.DecodeString(k)
		if err != nil {
			return nil, nil, fmt.Errorf("encryption fallback key %d: %w", i, err)
		}
		fallback = append(fallback, raw)
	}
	return active, fallback, nil
}

// Config holds the settings of a host process.
type Config struct {
	LogLevel     string        `yaml:"log_level"`
	LogFormat    string        `yaml:"log_format"`
	TickInterval time.Duration `yaml:"tick_interval"`
	HTTPAddr     string        `yaml:"http_addr,omitempty"`
	Codec        string        `yaml:"codec"`
	Actions      string        `yaml:"actions,omitempty"`
	Redis        Redis         `yaml:"redis,omitempty"`
	Encryption   Encryption    `yaml:"encryption,omitempty"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		LogLevel:     "info",
		LogFormat:    "text",
		TickInterval: 100 * time.Millisecond,
		Codec:        "yaml",
		Redis: Redis{
			Prefix:  "hsmgrid:definition:",
			LockTTL: 10 * time.Second,
		},
	}
}

// Load reads path over the defaults. If the file does not exist, the
// defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %s", c.TickInterval)
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	if c.Encryption.Enabled() {
		if _, _, err := c.Encryption.Decode(); err != nil {
			return err
		}
	}
	return nil
}
