package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigStringRedactsBearerToken(t *testing.T) {
	cfg := &Config{
		Service:   &ServiceConfig{BindAddress: ":8080"},
		Validator: &ValidatorConfig{Audience: "api.example.com"},
		Client: &ClientConfig{
			RegistryURL: "https://registry.example.com",
			BearerToken: SecureString("super-secret-token"),
		},
	}

	result := cfg.String()

	require.False(t, strings.Contains(result, "super-secret-token"), "bearer token should be redacted")
	require.Contains(t, result, redactedPlaceholder)
	require.Contains(t, result, ":8080")
	require.Contains(t, result, "registry.example.com")
}

func TestConfigStringDoesNotMutateOriginal(t *testing.T) {
	cfg := &Config{Client: &ClientConfig{BearerToken: SecureString("original-secret")}}

	_ = cfg.String()
	_ = cfg.String()

	require.Equal(t, SecureString("original-secret"), cfg.Client.BearerToken)
}

func TestConfigStringHandlesNilSections(t *testing.T) {
	cfg := &Config{Service: &ServiceConfig{BindAddress: ":9090"}}

	result := cfg.String()
	require.Contains(t, result, ":9090")
}

func TestNewDefaultPopulatesEveryDefault(t *testing.T) {
	cfg := NewDefault()

	require.Equal(t, defaultBindAddress, cfg.Service.BindAddress)
	require.Equal(t, defaultLogLevel, cfg.Service.LogLevel)
	require.Equal(t, defaultServerCertName, cfg.Service.ServerCertName)
	require.Equal(t, defaultKeyFetchTimeoutSeconds, cfg.Validator.KeyFetchTimeoutSeconds)
	require.Equal(t, defaultMaxSessions, cfg.Session.MaxSessions)
}
