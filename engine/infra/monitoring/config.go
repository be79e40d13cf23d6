package monitoring

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Config holds configuration for the monitoring service
type Config struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	// Path is the Prometheus textfile the run's metrics are written to.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// DefaultConfig returns default monitoring configuration
func DefaultConfig() *Config {
	return &Config{Enabled: false}
}

// Validate validates the monitoring configuration
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Path) == "" {
		return fmt.Errorf("metrics file path cannot be empty")
	}
	if filepath.Ext(c.Path) != ".prom" {
		return fmt.Errorf("metrics file must have a .prom extension: got %s", c.Path)
	}
	return nil
}
