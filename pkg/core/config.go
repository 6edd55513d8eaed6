// pkg/core/config.go
package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultRoot is the conventional environment directory
	DefaultRoot = ".venv"
	// DefaultManifest is the conventional manifest filename
	DefaultManifest = "requirements.txt"
	// LocalConfigName is looked up in the working directory before the user config
	LocalConfigName = "envboot.yaml"
)

// Config holds envboot configuration
type Config struct {
	Root          string        `yaml:"root"`
	Manifest      string        `yaml:"manifest"`
	Backend       string        `yaml:"backend"`
	Python        string        `yaml:"python"`
	ArchiveDir    string        `yaml:"archive_dir,omitempty"`
	IndexURL      string        `yaml:"index_url,omitempty"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	RetryTimeout  time.Duration `yaml:"retry_timeout"`
	Debug         bool          `yaml:"debug"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Root:          getDefaultRoot(),
		Manifest:      DefaultManifest,
		Backend:       "auto",
		Python:        "python3",
		RetryInterval: 2 * time.Second,
		RetryTimeout:  30 * time.Second,
	}
}

// LoadConfig loads configuration from file. An empty path searches
// ./envboot.yaml and then the user config directory. Values missing from the
// file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = findConfig()
	}

	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig saves configuration to file
func SaveConfig(cfg *Config, path string) error {
	if path == "" {
		path = LocalConfigName
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

func findConfig() string {
	if _, err := os.Stat(LocalConfigName); err == nil {
		return LocalConfigName
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "envboot", "config.yaml")
}

func getDefaultRoot() string {
	if path := os.Getenv("ENVBOOT_ROOT"); path != "" {
		return path
	}
	return DefaultRoot
}
