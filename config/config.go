// Package config loads the exporter configuration from an optional YAML file
// and environment variables. Environment variables override file values.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Storage StorageConfig `yaml:"storage"`
	Store   StoreConfig   `yaml:"store"`
	Host    HostConfig    `yaml:"host"`
}

// APIConfig holds the form-fill backend connection settings.
type APIConfig struct {
	BaseURL           string        `yaml:"base_url" envconfig:"FORMFILL_API_URL"`
	Token             string        `yaml:"token" envconfig:"FORMFILL_API_TOKEN"`
	DetailPath        string        `yaml:"detail_path" envconfig:"FORMFILL_DETAIL_PATH"`
	PreviewTimeout    time.Duration `yaml:"preview_timeout" envconfig:"FORMFILL_PREVIEW_TIMEOUT"`
	GenerationTimeout time.Duration `yaml:"generation_timeout" envconfig:"FORMFILL_GENERATION_TIMEOUT"`
}

// StorageConfig selects where exported files end up.
type StorageConfig struct {
	// Backend is "scoped" (user-granted folder, remembered across runs) or
	// "sandbox" (private document directory).
	Backend     string `yaml:"backend" envconfig:"FORMFILL_STORAGE_BACKEND"`
	DocumentDir string `yaml:"document_dir" envconfig:"FORMFILL_DOCUMENT_DIR"`
	CacheDir    string `yaml:"cache_dir" envconfig:"FORMFILL_CACHE_DIR"`
}

// StoreConfig configures the durable key-value store.
type StoreConfig struct {
	Kind string `yaml:"kind" envconfig:"FORMFILL_STORE_KIND"`
	Path string `yaml:"path" envconfig:"FORMFILL_STORE_PATH"`
}

// HostConfig names the external commands standing in for the platform share
// sheet and print service. Empty means the capability is unavailable.
type HostConfig struct {
	ShareCommand string `yaml:"share_command" envconfig:"FORMFILL_SHARE_COMMAND"`
	PrintCommand string `yaml:"print_command" envconfig:"FORMFILL_PRINT_COMMAND"`
}

// Storage backend names.
const (
	BackendScoped  = "scoped"
	BackendSandbox = "sandbox"
)

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyDefaults fills unset values. Defaults are applied after the file and the
// environment because envconfig would otherwise overwrite values read from YAML.
func (c *Config) applyDefaults() {
	if c.API.DetailPath == "" {
		c.API.DetailPath = "/form-fills"
	}
	if c.API.PreviewTimeout == 0 {
		c.API.PreviewTimeout = 120 * time.Second
	}
	if c.API.GenerationTimeout == 0 {
		c.API.GenerationTimeout = 600 * time.Second
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendSandbox
	}
	if c.Store.Kind == "" {
		c.Store.Kind = "json"
	}
	if c.Host.PrintCommand == "" {
		c.Host.PrintCommand = "lp"
	}
	if c.Storage.CacheDir == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			c.Storage.CacheDir = dir + string(os.PathSeparator) + "formfill-exporter"
		}
	}
	if c.Store.Path == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			name := "state.json"
			if c.Store.Kind == "sqlite" {
				name = "state.db"
			}
			c.Store.Path = dir + string(os.PathSeparator) + "formfill-exporter" + string(os.PathSeparator) + name
		}
	}
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("FORMFILL_API_URL is required")
	}
	switch c.Storage.Backend {
	case BackendScoped:
	case BackendSandbox:
		if c.Storage.DocumentDir == "" {
			return fmt.Errorf("FORMFILL_DOCUMENT_DIR is required for the sandbox backend")
		}
	default:
		return fmt.Errorf("unknown storage backend: %q", c.Storage.Backend)
	}
	switch c.Store.Kind {
	case "json", "sqlite":
	default:
		return fmt.Errorf("unknown store kind: %q", c.Store.Kind)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("FORMFILL_STORE_PATH is required")
	}
	if c.API.PreviewTimeout <= 0 || c.API.GenerationTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}
