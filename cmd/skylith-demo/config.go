package main

import (
	"fmt"
	"os"
	"time"

	"github.com/ghodss/yaml"
)

// Config is the on-disk configuration for skylith-demo, a minimal
// embedding of the skylith engine that auto-approves every checkid
// request as a single fixed identity. It exists to exercise the engine
// end to end, not as a template for a real deployment.
type Config struct {
	// ProviderEndpoint is this OP's externally reachable URL; it is also
	// the path the engine is mounted at.
	ProviderEndpoint string `json:"providerEndpoint"`
	// ListenAddr is the address the HTTP server binds.
	ListenAddr string `json:"listenAddr"`
	// TelemetryAddr, if set, serves /metrics and /healthz.
	TelemetryAddr string `json:"telemetryAddr"`

	// Identity is the fixed local identifier asserted for every
	// successful authentication.
	Identity string `json:"identity"`

	// AllowedOrigins configures CORS on the engine's endpoint.
	AllowedOrigins []string `json:"allowedOrigins"`

	// AssociationExpiry/NonceExpiry are parsed with time.ParseDuration;
	// empty uses the engine's defaults.
	AssociationExpiry string `json:"associationExpiry"`
	NonceExpiry       string `json:"nonceExpiry"`

	LogLevel  string `json:"logLevel"`
	LogFormat string `json:"logFormat"`
}

func loadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}
	if c.ProviderEndpoint == "" {
		return Config{}, fmt.Errorf("providerEndpoint is required")
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.Identity == "" {
		c.Identity = "demo-user"
	}
	return c, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
