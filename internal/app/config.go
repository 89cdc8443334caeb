package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration for the whole application. Zero values
// fall back to the defaults below, so a partial YAML file is enough.
type Config struct {
	// ListenAddr is the HTTP API listen address.
	ListenAddr string `yaml:"listen_addr"`

	// StorageRoot holds report artifacts and the run history database.
	StorageRoot string `yaml:"storage_root"`

	ZAP struct {
		// Addr is the base URL of the ZAP daemon's JSON API.
		Addr   string `yaml:"addr"`
		APIKey string `yaml:"api_key"`
	} `yaml:"zap"`

	Nuclei struct {
		Binary    string `yaml:"binary"`
		Severity  string `yaml:"severity"`
		RateLimit int    `yaml:"rate_limit"`
	} `yaml:"nuclei"`

	Subfinder struct {
		Binary string `yaml:"binary"`
	} `yaml:"subfinder"`

	Scan struct {
		// PollInterval is the default status-poll cadence for tool-driven
		// sub-scans.
		PollInterval time.Duration `yaml:"poll_interval"`
	} `yaml:"scan"`
}

// DefaultConfig returns a Config populated with development defaults.
func DefaultConfig() *Config {
	cfg := &Config{
		ListenAddr:  ":8090",
		StorageRoot: "~/.config/sentinelscan",
	}
	cfg.ZAP.Addr = "http://127.0.0.1:8080"
	cfg.Nuclei.Binary = "nuclei"
	cfg.Subfinder.Binary = "subfinder"
	cfg.Scan.PollInterval = 2 * time.Second
	return cfg
}

// LoadConfig overlays the YAML file at path onto the defaults. An empty path
// returns the defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ProxyAddr is the host:port browsers are pointed at, derived from the ZAP
// API address.
func (c *Config) ProxyAddr() string {
	addr := c.ZAP.Addr
	addr = strings.TrimPrefix(addr, "http://")
	addr = strings.TrimPrefix(addr, "https://")
	return strings.TrimRight(addr, "/")
}

func expandPath(p string) (string, error) {
	if len(p) > 0 && p[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, p[1:]), nil
	}
	return p, nil
}
