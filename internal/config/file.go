package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is looked up in the working directory
const DefaultConfigFile = ".pulep-events.yaml"

// FindConfigFile returns the config file to read, or "" when there is none.
// An explicit path is returned as-is so a missing file can be reported.
// Otherwise the working directory is checked, then the XDG config directory.
func FindConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}

	if cwd, err := os.Getwd(); err == nil {
		path := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	if path := XDGConfigFile(); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// LoadFile overlays the YAML file at path onto c. Keys missing from the file
// keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided config path
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	c.Layout = c.Layout.WithDefaults()
	c.ConfigFile = path
	return nil
}

// Load builds a Config from defaults, the config file and the environment.
// Flags are applied afterwards by the caller, followed by Validate.
func Load(explicitPath string) (*Config, error) {
	cfg := NewConfig()

	if path := FindConfigFile(explicitPath); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.LoadEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}
