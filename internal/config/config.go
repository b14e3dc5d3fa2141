// Package config manages the shortsget configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const configFile = "config.yml"

// RapidAPI holds credentials for RapidAPI-hosted download services.
type RapidAPI struct {
	Key  string `yaml:"key,omitempty"`
	Host string `yaml:"host,omitempty"`
}

// Config is the persisted application configuration.
type Config struct {
	OutputDir       string        `yaml:"output_dir"`
	ListenAddr      string        `yaml:"listen_addr"`
	LogLevel        string        `yaml:"log_level"`
	ProviderTimeout time.Duration `yaml:"provider_timeout"`
	ProbeTimeout    time.Duration `yaml:"probe_timeout"`
	MaxAttempts     int           `yaml:"max_attempts"`
	AuditEnabled    bool          `yaml:"audit_enabled"`

	// Providers lists enabled adapters in the order they are tried.
	// Empty means the built-in default order.
	Providers []string `yaml:"providers,omitempty"`

	RapidAPI  RapidAPI `yaml:"rapidapi,omitempty"`
	CobaltURL string   `yaml:"cobalt_url,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		OutputDir:       filepath.Join(home, "Downloads"),
		ListenAddr:      ":3001",
		LogLevel:        "info",
		ProviderTimeout: 8 * time.Second,
		ProbeTimeout:    5 * time.Second,
		MaxAttempts:     3,
		AuditEnabled:    true,
	}
}

// ConfigDir returns the directory holding the config file and databases.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}
	return filepath.Join(base, "shortsget"), nil
}

// SavePath returns the full path of the config file.
func SavePath() string {
	dir, err := ConfigDir()
	if err != nil {
		return configFile
	}
	return filepath.Join(dir, configFile)
}

// Exists reports whether a config file has been written.
func Exists() bool {
	_, err := os.Stat(SavePath())
	return err == nil
}

// Load reads the config file from disk.
func Load() (*Config, error) {
	data, err := os.ReadFile(SavePath())
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyEnv()
	cfg.fillDefaults()
	return cfg, nil
}

// LoadOrDefault loads the config file, falling back to defaults when
// it is missing or unreadable.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		cfg = Default()
		cfg.applyEnv()
	}
	return cfg
}

// Save writes the config to disk, creating the config directory if needed.
func Save(cfg *Config) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(filepath.Join(dir, configFile), data, 0600)
}

// applyEnv overlays secrets from the environment. Env always wins so
// deployments never need credentials on disk.
func (c *Config) applyEnv() {
	if key := os.Getenv("SHORTSGET_RAPIDAPI_KEY"); key != "" {
		c.RapidAPI.Key = key
	}
	if host := os.Getenv("SHORTSGET_RAPIDAPI_HOST"); host != "" {
		c.RapidAPI.Host = host
	}
	if addr := os.Getenv("SHORTSGET_LISTEN_ADDR"); addr != "" {
		c.ListenAddr = addr
	}
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.OutputDir == "" {
		c.OutputDir = def.OutputDir
	}
	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = def.ProviderTimeout
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = def.ProbeTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
}
