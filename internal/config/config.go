// Package config loads the reference node's YAML configuration file,
// applying environment-variable overrides and filling in defaults,
// following the teacher's config.LoadOrGenerate/Config.String pattern
// (compare cmd/flightctl-api/main.go).
package config

import (
	"encoding/json"
)

// Config is the root of the reference node's configuration.
type Config struct {
	Service   *ServiceConfig   `yaml:"service,omitempty" json:"service,omitempty"`
	Validator *ValidatorConfig `yaml:"validator,omitempty" json:"validator,omitempty"`
	Session   *SessionConfig   `yaml:"session,omitempty" json:"session,omitempty"`
	Client    *ClientConfig    `yaml:"client,omitempty" json:"client,omitempty"`
}

// ServiceConfig controls the bind address, log level and TLS server
// certificate the control-protocol WebSocket listener uses.
type ServiceConfig struct {
	BindAddress    string   `yaml:"bindAddress,omitempty" json:"bindAddress,omitempty"`
	LogLevel       string   `yaml:"logLevel,omitempty" json:"logLevel,omitempty"`
	CertStore      string   `yaml:"certStore,omitempty" json:"certStore,omitempty"`
	ServerCertName string   `yaml:"serverCertName,omitempty" json:"serverCertName,omitempty"`
	SrvCertFile    string   `yaml:"srvCertFile,omitempty" json:"srvCertFile,omitempty"`
	SrvKeyFile     string   `yaml:"srvKeyFile,omitempty" json:"srvKeyFile,omitempty"`
	AltNames       []string `yaml:"altNames,omitempty" json:"altNames,omitempty"`
}

// ValidatorConfig configures the access-token validator's own resource
// identity (see pkg/ncp/validator.Config, which this maps onto directly).
type ValidatorConfig struct {
	Audience               string `yaml:"audience,omitempty" json:"audience,omitempty"`
	Scope                  string `yaml:"scope,omitempty" json:"scope,omitempty"`
	KeyFetchTimeoutSeconds int    `yaml:"keyFetchTimeoutSeconds,omitempty" json:"keyFetchTimeoutSeconds,omitempty"`
	KeySetTTLSeconds       int    `yaml:"keySetTtlSeconds,omitempty" json:"keySetTtlSeconds,omitempty"`
}

// SessionConfig bounds a control-protocol session's resource usage.
type SessionConfig struct {
	MaxSessions         int `yaml:"maxSessions,omitempty" json:"maxSessions,omitempty"`
	PingIntervalSeconds int `yaml:"pingIntervalSeconds,omitempty" json:"pingIntervalSeconds,omitempty"`
	SendQueueDepth      int `yaml:"sendQueueDepth,omitempty" json:"sendQueueDepth,omitempty"`
}

// ClientConfig carries the bearer token this node presents when it acts as
// a client of its own registry (the embedder.TokenSource case).
type ClientConfig struct {
	RegistryURL string       `yaml:"registryUrl,omitempty" json:"registryUrl,omitempty"`
	BearerToken SecureString `yaml:"bearerToken,omitempty" json:"bearerToken,omitempty"`
}

const (
	defaultBindAddress            = ":8080"
	defaultLogLevel               = "info"
	defaultServerCertName         = "server"
	defaultKeyFetchTimeoutSeconds = 5
	defaultKeySetTTLSeconds       = 600
	defaultMaxSessions            = 32
	defaultPingIntervalSeconds    = 5
	defaultSendQueueDepth         = 64
)

// NewDefault returns a Config with every field set to its documented
// default, ready for a caller to override from file or environment.
func NewDefault() *Config {
	return &Config{
		Service: &ServiceConfig{
			BindAddress:    defaultBindAddress,
			LogLevel:       defaultLogLevel,
			ServerCertName: defaultServerCertName,
		},
		Validator: &ValidatorConfig{
			KeyFetchTimeoutSeconds: defaultKeyFetchTimeoutSeconds,
			KeySetTTLSeconds:       defaultKeySetTTLSeconds,
		},
		Session: &SessionConfig{
			MaxSessions:         defaultMaxSessions,
			PingIntervalSeconds: defaultPingIntervalSeconds,
			SendQueueDepth:      defaultSendQueueDepth,
		},
		Client: &ClientConfig{},
	}
}

// String renders cfg as indented JSON with every SecureString field
// redacted; safe to log directly.
func (c *Config) String() string {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "<config: " + err.Error() + ">"
	}
	return string(b)
}
