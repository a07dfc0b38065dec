// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/bureau-connect/lib/compress"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// EnvironmentVariable names the variable Load reads the config path
// from.
const EnvironmentVariable = "BUREAU_CONNECT_CONFIG"

// Config is the complete configuration for bureau-connect-worker.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Gateway configures the persistent connection to the gateway.
	Gateway GatewayConfig `yaml:"gateway"`

	// Apps lists the local applications requests are dispatched to,
	// keyed by the app name the gateway sends.
	Apps []AppConfig `yaml:"apps"`

	// Buffer configures the unacknowledged-reply buffer.
	Buffer BufferConfig `yaml:"buffer"`

	// Flush configures delivery of replies the gateway never acked.
	Flush FlushConfig `yaml:"flush"`

	// Service configures the worker's own status and metrics surfaces.
	Service ServiceConfig `yaml:"service"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Gateway *GatewayConfig `yaml:"gateway,omitempty"`
	Buffer  *BufferConfig  `yaml:"buffer,omitempty"`
	Flush   *FlushConfig   `yaml:"flush,omitempty"`
	Service *ServiceConfig `yaml:"service,omitempty"`
}

// GatewayConfig configures the gateway connection.
type GatewayConfig struct {
	// Network is "unix" or "tcp".
	// Default: unix
	Network string `yaml:"network"`

	// Address is the socket path or host:port of the gateway.
	// Default: /run/bureau/connect-gateway.sock
	Address string `yaml:"address"`

	// HeartbeatInterval is how often the worker sends a heartbeat.
	// Default: 10s
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// LeaseExtendInterval is how often the worker renews the lease of
	// every request it is still executing. It should match the
	// gateway's lease interval, as does flush.ttl.
	// Default: 10s
	LeaseExtendInterval time.Duration `yaml:"lease_extend_interval"`

	// ReconnectInitial and ReconnectMax bound the exponential backoff
	// between connection attempts.
	// Default: 1s, 30s
	ReconnectInitial time.Duration `yaml:"reconnect_initial"`
	ReconnectMax     time.Duration `yaml:"reconnect_max"`
}

// AppConfig names one local application.
type AppConfig struct {
	// Name matches the app name in executor requests.
	Name string `yaml:"name"`

	// URL is the endpoint executor payloads are POSTed to. The
	// function slug is appended as the fnId query parameter.
	URL string `yaml:"url"`
}

// BufferConfig configures the reply buffer.
type BufferConfig struct {
	// CapacityBytes is the byte ceiling across all buffered replies.
	// Default: 524288000 (500 MiB)
	CapacityBytes int `yaml:"capacity_bytes"`
}

// FlushConfig configures the flush poller.
type FlushConfig struct {
	// APIOrigin is the scheme and host of the flush endpoint. The
	// path /v0/connect/flush is appended.
	APIOrigin string `yaml:"api_origin"`

	// PollInterval is how often the buffer is swept for stale replies.
	// Default: 1s
	PollInterval time.Duration `yaml:"poll_interval"`

	// TTL is how long a reply may wait for its ack before it is
	// flushed.
	// Default: 10s
	TTL time.Duration `yaml:"ttl"`

	// Timeout bounds each flush request.
	// Default: 5s
	Timeout time.Duration `yaml:"timeout"`

	// Compression is the body codec: none, lz4, or zstd.
	// Default: none
	Compression string `yaml:"compression"`

	// SigningKey authenticates flush requests. Typically set as
	// ${BUREAU_SIGNING_KEY} so the secret stays out of the file.
	SigningKey string `yaml:"signing_key"`

	// SigningKeyFallback is tried when SigningKey is rejected, to
	// cover key rotation.
	SigningKeyFallback string `yaml:"signing_key_fallback"`
}

// ServiceConfig configures the worker's local surfaces.
type ServiceConfig struct {
	// SocketPath is the Unix socket serving status and dump actions.
	// Default: /run/bureau/connect-worker.sock
	SocketPath string `yaml:"socket_path"`

	// MetricsAddress is the host:port serving Prometheus metrics.
	// Empty disables the metrics listener.
	MetricsAddress string `yaml:"metrics_address"`

	// LogLevel is debug, info, warn, or error.
	// Default: info
	LogLevel string `yaml:"log_level"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist to give every field a sensible value, not as a fallback
// for a missing file.
func Default() *Config {
	return &Config{
		Environment: Development,
		Gateway: GatewayConfig{
			Network:           "unix",
			Address:           "/run/bureau/connect-gateway.sock",
			HeartbeatInterval:   10 * time.Second,
			LeaseExtendInterval: 10 * time.Second,
			ReconnectInitial:    time.Second,
			ReconnectMax:        30 * time.Second,
		},
		Apps: []AppConfig{
			{Name: "default", URL: "http://127.0.0.1:3000/api/connect"},
		},
		Buffer: BufferConfig{
			CapacityBytes: 500 << 20,
		},
		Flush: FlushConfig{
			APIOrigin:    "http://127.0.0.1:8288",
			PollInterval: time.Second,
			TTL:          10 * time.Second,
			Timeout:      5 * time.Second,
			Compression:  "none",
		},
		Service: ServiceConfig{
			SocketPath: "/run/bureau/connect-worker.sock",
			LogLevel:   "info",
		},
	}
}

// Load loads configuration from the BUREAU_CONNECT_CONFIG environment
// variable. There is no fallback when it is unset.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your worker config file, or use --config flag", EnvironmentVariable)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. Files ending
// in .json or .jsonc are read as JSON with comments; anything else is
// YAML.
//
// Environment variables never override config values. The only
// expansion performed is ${VAR} and ${VAR:-default} in path, address,
// and signing key fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// loadFile merges a single configuration file into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// Plain JSON is valid YAML, so after stripping comments and
		// trailing commas both formats share one decoder and one set
		// of struct tags.
		data = jsonc.ToJSON(data)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: no debug logging.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Service: &ServiceConfig{LogLevel: "info"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Gateway != nil {
		if overrides.Gateway.Network != "" {
			c.Gateway.Network = overrides.Gateway.Network
		}
		if overrides.Gateway.Address != "" {
			c.Gateway.Address = overrides.Gateway.Address
		}
		if overrides.Gateway.HeartbeatInterval != 0 {
			c.Gateway.HeartbeatInterval = overrides.Gateway.HeartbeatInterval
		}
		if overrides.Gateway.LeaseExtendInterval != 0 {
			c.Gateway.LeaseExtendInterval = overrides.Gateway.LeaseExtendInterval
		}
		if overrides.Gateway.ReconnectInitial != 0 {
			c.Gateway.ReconnectInitial = overrides.Gateway.ReconnectInitial
		}
		if overrides.Gateway.ReconnectMax != 0 {
			c.Gateway.ReconnectMax = overrides.Gateway.ReconnectMax
		}
	}

	if overrides.Buffer != nil && overrides.Buffer.CapacityBytes != 0 {
		c.Buffer.CapacityBytes = overrides.Buffer.CapacityBytes
	}

	if overrides.Flush != nil {
		if overrides.Flush.APIOrigin != "" {
			c.Flush.APIOrigin = overrides.Flush.APIOrigin
		}
		if overrides.Flush.PollInterval != 0 {
			c.Flush.PollInterval = overrides.Flush.PollInterval
		}
		if overrides.Flush.TTL != 0 {
			c.Flush.TTL = overrides.Flush.TTL
		}
		if overrides.Flush.Timeout != 0 {
			c.Flush.Timeout = overrides.Flush.Timeout
		}
		if overrides.Flush.Compression != "" {
			c.Flush.Compression = overrides.Flush.Compression
		}
		if overrides.Flush.SigningKey != "" {
			c.Flush.SigningKey = overrides.Flush.SigningKey
		}
		if overrides.Flush.SigningKeyFallback != "" {
			c.Flush.SigningKeyFallback = overrides.Flush.SigningKeyFallback
		}
	}

	if overrides.Service != nil {
		if overrides.Service.SocketPath != "" {
			c.Service.SocketPath = overrides.Service.SocketPath
		}
		if overrides.Service.MetricsAddress != "" {
			c.Service.MetricsAddress = overrides.Service.MetricsAddress
		}
		if overrides.Service.LogLevel != "" {
			c.Service.LogLevel = overrides.Service.LogLevel
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Gateway.Address = expandVars(c.Gateway.Address, vars)
	for i := range c.Apps {
		c.Apps[i].URL = expandVars(c.Apps[i].URL, vars)
	}
	c.Flush.APIOrigin = expandVars(c.Flush.APIOrigin, vars)
	c.Flush.SigningKey = expandVars(c.Flush.SigningKey, vars)
	c.Flush.SigningKeyFallback = expandVars(c.Flush.SigningKeyFallback, vars)
	c.Service.SocketPath = expandVars(c.Service.SocketPath, vars)
	c.Service.MetricsAddress = expandVars(c.Service.MetricsAddress, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns. Provided
// vars take precedence over the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// App returns the app config for name.
func (c *Config) App(name string) (AppConfig, bool) {
	for _, app := range c.Apps {
		if app.Name == name {
			return app, true
		}
	}
	return AppConfig{}, false
}

// Validate checks the configuration for errors. Every problem is
// reported, not just the first.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Gateway.Network != "unix" && c.Gateway.Network != "tcp" {
		errs = append(errs, fmt.Errorf("gateway.network must be unix or tcp, got %q", c.Gateway.Network))
	}
	if c.Gateway.Address == "" {
		errs = append(errs, fmt.Errorf("gateway.address is required"))
	}
	if c.Gateway.HeartbeatInterval <= 0 {
		errs = append(errs, fmt.Errorf("gateway.heartbeat_interval must be positive"))
	}
	if c.Gateway.LeaseExtendInterval <= 0 {
		errs = append(errs, fmt.Errorf("gateway.lease_extend_interval must be positive"))
	}
	if c.Gateway.ReconnectInitial <= 0 {
		errs = append(errs, fmt.Errorf("gateway.reconnect_initial must be positive"))
	}
	if c.Gateway.ReconnectMax < c.Gateway.ReconnectInitial {
		errs = append(errs, fmt.Errorf("gateway.reconnect_max must be at least gateway.reconnect_initial"))
	}

	if len(c.Apps) == 0 {
		errs = append(errs, fmt.Errorf("apps: at least one app is required"))
	}
	seen := make(map[string]bool)
	for i, app := range c.Apps {
		if app.Name == "" {
			errs = append(errs, fmt.Errorf("apps[%d].name is required", i))
		} else if seen[app.Name] {
			errs = append(errs, fmt.Errorf("apps[%d].name %q is duplicated", i, app.Name))
		}
		seen[app.Name] = true
		if err := validateHTTPURL(app.URL); err != nil {
			errs = append(errs, fmt.Errorf("apps[%d].url: %w", i, err))
		}
	}

	if c.Buffer.CapacityBytes <= 0 {
		errs = append(errs, fmt.Errorf("buffer.capacity_bytes must be positive"))
	}

	if err := validateHTTPURL(c.Flush.APIOrigin); err != nil {
		errs = append(errs, fmt.Errorf("flush.api_origin: %w", err))
	}
	if c.Flush.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("flush.poll_interval must be positive"))
	}
	if c.Flush.TTL <= 0 {
		errs = append(errs, fmt.Errorf("flush.ttl must be positive"))
	}
	if c.Flush.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("flush.timeout must be positive"))
	}
	if _, err := compress.Parse(c.Flush.Compression); err != nil {
		errs = append(errs, fmt.Errorf("flush.compression: %w", err))
	}

	if c.Service.SocketPath == "" {
		errs = append(errs, fmt.Errorf("service.socket_path is required"))
	}
	switch c.Service.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("service.log_level must be one of debug, info, warn, error"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func validateHTTPURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}
