package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the kith configuration
type Config struct {
	Owner     OwnerConfig     `yaml:"owner"`
	Discovery DiscoveryConfig `yaml:"discovery"`
}

// OwnerConfig identifies the vault owner. Every direct feed (my calendar,
// my mailbox, my phone) implicitly includes this person.
type OwnerConfig struct {
	PersonID string `yaml:"person_id"`
}

// DiscoveryConfig tunes the relationship discovery run.
type DiscoveryConfig struct {
	LookbackDays int `yaml:"lookback_days"`

	// Minimum co-occurrence counts per extractor. Pairs below the
	// minimum are dropped without touching the graph.
	MinSharedEvents   int `yaml:"min_shared_events"`
	MinSharedThreads  int `yaml:"min_shared_threads"`
	MinCoMentions     int `yaml:"min_co_mentions"`
	MinSharedGroups   int `yaml:"min_shared_groups"`
	MinSharedPhotos   int `yaml:"min_shared_photos"`
	MinDirectMessages int `yaml:"min_direct_messages"`
	MinPhoneCalls     int `yaml:"min_phone_calls"`

	// DefaultTypes maps an extractor name to the relationship type it
	// assigns on edge creation. The shipped defaults are intentionally
	// uneven (calendar co-attendance says "coworker", everything else
	// says "inferred") to match observed production data; override them
	// here rather than in code.
	DefaultTypes map[string]string `yaml:"default_types,omitempty"`
}

// WithDefaults fills in zero values with the production defaults.
func (d DiscoveryConfig) WithDefaults() DiscoveryConfig {
	if d.LookbackDays <= 0 {
		d.LookbackDays = 3650 // ~10 years, effectively all history
	}
	if d.MinSharedEvents <= 0 {
		d.MinSharedEvents = 2
	}
	if d.MinSharedThreads <= 0 {
		d.MinSharedThreads = 1
	}
	if d.MinCoMentions <= 0 {
		d.MinCoMentions = 2
	}
	if d.MinSharedGroups <= 0 {
		d.MinSharedGroups = 1
	}
	if d.MinSharedPhotos <= 0 {
		d.MinSharedPhotos = 3
	}
	if d.MinDirectMessages <= 0 {
		d.MinDirectMessages = 1
	}
	if d.MinPhoneCalls <= 0 {
		d.MinPhoneCalls = 1
	}
	if d.DefaultTypes == nil {
		d.DefaultTypes = map[string]string{}
	}
	return d
}

// DefaultType returns the relationship type assigned by the named
// extractor, falling back to the given default.
func (d DiscoveryConfig) DefaultType(extractor, fallback string) string {
	if t, ok := d.DefaultTypes[extractor]; ok && t != "" {
		return t
	}
	return fallback
}

// GetConfigDir returns the XDG-compliant config directory
func GetConfigDir() (string, error) {
	// Explicit override (useful for tests and portable installs)
	if override := os.Getenv("KITH_CONFIG_DIR"); override != "" {
		return override, nil
	}

	var base string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		base = xdg
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "kith"), nil
}

// GetDataDir returns the platform-specific data directory
func GetDataDir() (string, error) {
	// Explicit override (useful for tests and portable installs)
	if override := os.Getenv("KITH_DATA_DIR"); override != "" {
		return override, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "Kith"), nil
	}

	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "kith"), nil
	}

	return filepath.Join(home, ".local", "share", "kith"), nil
}

// Load loads config from the config file
func Load() (*Config, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(configDir, "config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Return default empty config
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// Save saves the config to the config file
func (c *Config) Save() error {
	configDir, err := GetConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
