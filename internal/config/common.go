package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigDir is the default directory holding the node's
	// configuration and self-signed certificate store.
	DefaultConfigDir = "/etc/ncp-node"
	// DefaultConfigFile is the default path to the node's configuration file.
	DefaultConfigFile = DefaultConfigDir + "/config.yaml"

	envConfigFile = "NCP_CONFIG_FILE"
	envBindAddr   = "NCP_BIND_ADDRESS"
	envAudience   = "NCP_VALIDATOR_AUDIENCE"
	envScope      = "NCP_VALIDATOR_SCOPE"
)

// ConfigFile resolves the configuration file path: NCP_CONFIG_FILE if set,
// otherwise DefaultConfigFile.
func ConfigFile() string {
	if f := os.Getenv(envConfigFile); f != "" {
		return f
	}
	return DefaultConfigFile
}

// ClientConfigFile is the bootstrap client configuration file written
// alongside the node's own config, for tooling that connects to this node.
func ClientConfigFile() string {
	return filepath.Join(filepath.Dir(ConfigFile()), "client.yaml")
}

// LoadOrGenerate reads path, filling any fields it sets on top of
// NewDefault(); if path does not exist, it writes out the defaults first
// so a later edit has something to start from. Environment variables
// always take precedence over the file.
func LoadOrGenerate(path string) (*Config, error) {
	cfg := NewDefault()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		if err := writeDefault(path, cfg); err != nil {
			return nil, fmt.Errorf("writing default config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if cfg.Service.CertStore == "" {
		cfg.Service.CertStore = filepath.Join(filepath.Dir(path), "certs")
	}

	return cfg, nil
}

func writeDefault(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(envBindAddr); v != "" {
		cfg.Service.BindAddress = v
	}
	if v := os.Getenv(envAudience); v != "" {
		cfg.Validator.Audience = v
	}
	if v := os.Getenv(envScope); v != "" {
		cfg.Validator.Scope = v
	}
}
