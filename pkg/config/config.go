// Package config loads the server configuration file and exposes saved
// connection parameter sets to the connect-from-named-config path. Saved
// connections are never opened at startup; they are parameter sets the
// caller may explicitly ask to connect.
package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/quarkdata/mcp-dbgate/pkg/driver"
)

// Config is the complete server configuration.
type Config struct {
	Server      ServerConfig             `yaml:"server"`
	Connections map[string]driver.Config `yaml:"connections"`
}

// ServerConfig configures the MCP server identity and transport.
type ServerConfig struct {
	Name      string `yaml:"name"`
	Version   string `yaml:"version"`
	Transport string `yaml:"transport"` // "stdio" or "http"
	Address   string `yaml:"address"`
	LogLevel  string `yaml:"log_level"`
}

// Resolver supplies named connection parameter sets. The connection manager
// core never touches it; only the connect-from-named-config tool path does.
type Resolver interface {
	Lookup(name string) (driver.Config, bool)
	Names() []string
}

// Load reads and parses a configuration file. ${VAR} references are
// expanded from the environment before parsing so secrets can stay out of
// the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is from CLI args, controlled by the operator
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Lookup returns the saved connection parameters registered under name.
func (c *Config) Lookup(name string) (driver.Config, bool) {
	params, ok := c.Connections[name]
	return params, ok
}

// Names returns the saved connection names, sorted.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Connections))
	for name := range c.Connections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// applyDefaults fills in defaults for unset fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Name == "" {
		cfg.Server.Name = "mcp-dbgate"
	}
	if cfg.Server.Version == "" {
		cfg.Server.Version = "1.0.0"
	}
	if cfg.Server.Transport == "" {
		cfg.Server.Transport = "stdio"
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
}
