package conf

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configFileName = "responder.yaml"

// LoadFile loads configuration from a YAML file layered over Default.
// With an empty path the usual locations are tried and a missing file is not an error.
func LoadFile(configPath string) (*Config, error) {
	// Try multiple paths
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			filepath.Join("configs", configFileName),
			filepath.Join("/etc/chat-responder", configFileName),
		}
		// Add path relative to executable
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", configFileName))
		}
	}

	var data []byte
	var loadedPath string
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err == nil {
			data, loadedPath = b, p
			break
		}
		if configPath != "" {
			return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
		}
	}

	cfg := Default()
	if data == nil {
		slog.Debug("no config file found, using defaults", "component", "conf")
		return cfg, nil
	}

	slog.Info("loading config", "component", "conf", "path", loadedPath)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", loadedPath, err)
	}
	cfg.fillDefaults()
	return cfg, nil
}

// fillDefaults restores defaults for fields the file explicitly zeroed
func (c *Config) fillDefaults() {
	defaults := Default()

	if c.DB.Driver == "" {
		c.DB.Driver = defaults.DB.Driver
	}
	if c.Cache.Staleness == 0 {
		c.Cache.Staleness = defaults.Cache.Staleness
	}
	if c.Cache.RegexTimeout == 0 {
		c.Cache.RegexTimeout = defaults.Cache.RegexTimeout
	}
	if c.Cache.EvalTimeout == 0 {
		c.Cache.EvalTimeout = defaults.Cache.EvalTimeout
	}
	if c.Transport == "" {
		c.Transport = defaults.Transport
	}
	if c.Twitch.Server == "" {
		c.Twitch.Server = defaults.Twitch.Server
	}
	if c.Twitch.Port == 0 {
		c.Twitch.Port = defaults.Twitch.Port
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = defaults.RateLimit.Burst
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
}
