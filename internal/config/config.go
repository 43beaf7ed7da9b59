package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.chatsync/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile"`
	Cloud          Cloud  `toml:"cloud"`
	Sync           Sync   `toml:"sync"`
}

// Cloud configures the remote API.
type Cloud struct {
	BaseURL         string   `toml:"base_url"`
	Token           string   `toml:"token"`
	PrivacyMode     string   `toml:"privacy_mode"` // cloud or local
	Compress        bool     `toml:"compress"`
	MaxPayloadBytes int64    `toml:"max_payload_bytes"`
	Timeout         Duration `toml:"timeout"`
}

// Sync tunes push and pull timing.
type Sync struct {
	Debounce      Duration `toml:"debounce"`
	RepushDelay   Duration `toml:"repush_delay"`
	PullInterval  Duration `toml:"pull_interval"`
	SweepInterval Duration `toml:"sweep_interval"`
}

// Duration is a time.Duration written as a string such as "750ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DefaultProfile: "main",
		Cloud: Cloud{
			PrivacyMode:     "local",
			Compress:        true,
			MaxPayloadBytes: 15 << 20,
			Timeout:         Duration{30 * time.Second},
		},
		Sync: Sync{
			Debounce:      Duration{750 * time.Millisecond},
			RepushDelay:   Duration{2 * time.Second},
			PullInterval:  Duration{5 * time.Minute},
			SweepInterval: Duration{time.Minute},
		},
	}
}

// Load reads config from the given path on top of Default. Returns error if
// the file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields Default.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
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
