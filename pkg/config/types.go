// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
	"net"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// CurrentConfigVersion is written into new config files and checked on load.
const CurrentConfigVersion = "1"

// =============================================================================
// Shared Validator Instance
// =============================================================================

// connectValidate is the validator instance for config types.
// Initialized in init() with custom validators.
var connectValidate *validator.Validate

func init() {
	connectValidate = validator.New()

	// "hostport" checks host:port listen/dial addresses
	_ = connectValidate.RegisterValidation("hostport", validateHostPort)
}

// validateHostPort validates that a field parses as host:port.
func validateHostPort(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return false
	}
	_, port, err := net.SplitHostPort(value)
	if err != nil {
		return false
	}
	return port != ""
}

// =============================================================================
// Duration
// =============================================================================

// Duration wraps time.Duration so YAML configs can say "10s" or "15m".
type Duration time.Duration

// UnmarshalYAML parses Go duration strings and bare integers (nanoseconds).
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw interface{}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
		return nil
	case int:
		*d = Duration(time.Duration(v))
		return nil
	default:
		return fmt.Errorf("invalid duration value %v", raw)
	}
}

// MarshalYAML renders the duration in Go string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// AsDuration returns the underlying time.Duration.
func (d Duration) AsDuration() time.Duration {
	return time.Duration(d)
}

// =============================================================================
// Config Types
// =============================================================================

// ConnectConfig is the root configuration for connect and connectd.
type ConnectConfig struct {
	// Meta carries the config schema version
	Meta MetaConfig `yaml:"meta"`

	// Endpoint is the suggested default endpoint for sign-in
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`

	// Daemon configures the connectd HTTP surface
	Daemon DaemonConfig `yaml:"daemon"`

	// Gateway configures outbound validation requests
	Gateway GatewayConfig `yaml:"gateway"`

	// Vault configures credential storage
	Vault VaultConfig `yaml:"vault"`

	// Settings configures non-secret session state storage
	Settings SettingsConfig `yaml:"settings"`

	// Logging configures structured log output
	Logging LoggingConfig `yaml:"logging"`

	// Tracing configures OpenTelemetry export
	Tracing TracingConfig `yaml:"tracing"`

	// Models configures the model catalog sync
	Models ModelsConfig `yaml:"models"`

	// Embeddings configures the workspace embeddings readiness check
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
}

// MetaConfig identifies the config schema.
type MetaConfig struct {
	Version string `yaml:"version"`
}

// DaemonConfig configures the connectd HTTP server.
type DaemonConfig struct {
	// ListenAddr is the host:port the daemon binds. Default: 127.0.0.1:7821.
	ListenAddr string `yaml:"listen_addr" validate:"required,hostport"`

	// EnableMetrics exposes GET /metrics. Default: true.
	EnableMetrics bool `yaml:"enable_metrics"`

	// EnableEvents exposes the GET /v1/session/events websocket. Default: true.
	EnableEvents bool `yaml:"enable_events"`
}

// GatewayConfig configures outbound endpoint validation.
type GatewayConfig struct {
	// Timeout bounds each validation request. Default: 10s.
	Timeout Duration `yaml:"timeout"`

	// RateLimitRPS throttles outbound requests per endpoint. Default: 5.
	RateLimitRPS float64 `yaml:"rate_limit_rps" validate:"gte=0"`

	// RateLimitBurst is the token bucket burst. Default: 10.
	RateLimitBurst int `yaml:"rate_limit_burst" validate:"gte=0"`

	// CustomHeaders are sent on every validation request (e.g. proxy auth).
	CustomHeaders map[string]string `yaml:"custom_headers,omitempty"`
}

// VaultConfig configures credential storage.
type VaultConfig struct {
	// Path is the vault database directory. Default: ~/.aleutian/connect/vault.
	Path string `yaml:"path"`

	// AllowInsecureMemory skips the locked-memory requirement without
	// prompting. Equivalent to ALEUTIAN_INSECURE_MEMORY=true.
	AllowInsecureMemory bool `yaml:"allow_insecure_memory"`
}

// SettingsConfig configures non-secret session state storage.
type SettingsConfig struct {
	// Path is the settings database directory. Default: ~/.aleutian/connect/settings.
	Path string `yaml:"path"`
}

// LoggingConfig configures structured log output.
type LoggingConfig struct {
	// Level is debug, info, warn, or error. Default: info.
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`

	// Dir enables file logging when set.
	Dir string `yaml:"dir,omitempty"`

	// JSON switches console output to JSON (connectd always logs JSON).
	JSON bool `yaml:"json"`

	// GCS enables batched log export to a GCS bucket when Bucket is set.
	GCS GCSLogConfig `yaml:"gcs"`
}

// GCSLogConfig configures the GCS log exporter.
type GCSLogConfig struct {
	Bucket          string `yaml:"bucket,omitempty"`
	Prefix          string `yaml:"prefix,omitempty"`
	CredentialsFile string `yaml:"credentials_file,omitempty"`
}

// TracingConfig configures OpenTelemetry trace export.
type TracingConfig struct {
	// Enabled turns on span export. Default: false.
	Enabled bool `yaml:"enabled"`

	// OTLPEndpoint is the OTLP gRPC collector address. Default: localhost:4317.
	OTLPEndpoint string `yaml:"otlp_endpoint" validate:"omitempty,hostport"`

	// Stdout dumps spans to stdout instead of OTLP (development only).
	Stdout bool `yaml:"stdout"`
}

// ModelsConfig configures the model catalog sync.
type ModelsConfig struct {
	// SyncInterval is how often the catalog is refreshed while signed in.
	// Zero disables periodic refresh (sync still runs on sign-in). Default: 15m.
	SyncInterval Duration `yaml:"sync_interval"`
}

// EmbeddingsConfig configures the workspace embeddings readiness check.
type EmbeddingsConfig struct {
	// Enabled turns on the embeddings store integration. Default: false.
	Enabled bool `yaml:"enabled"`

	// Host is the Weaviate host:port. Default: localhost:8080.
	Host string `yaml:"host" validate:"omitempty,hostport"`

	// Scheme is http or https. Default: http.
	Scheme string `yaml:"scheme" validate:"omitempty,oneof=http https"`

	// APIKey authenticates against a protected Weaviate instance.
	APIKey string `yaml:"api_key,omitempty"`
}

// =============================================================================
// Defaults and Validation
// =============================================================================

// ApplyDefaults fills zero values with production defaults.
func (c *ConnectConfig) ApplyDefaults() {
	if c.Meta.Version == "" {
		c.Meta.Version = CurrentConfigVersion
	}
	if c.Daemon.ListenAddr == "" {
		c.Daemon.ListenAddr = "127.0.0.1:7821"
	}
	if c.Gateway.Timeout == 0 {
		c.Gateway.Timeout = Duration(10 * time.Second)
	}
	if c.Gateway.RateLimitRPS == 0 {
		c.Gateway.RateLimitRPS = 5
	}
	if c.Gateway.RateLimitBurst == 0 {
		c.Gateway.RateLimitBurst = 10
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.GCS.Prefix == "" {
		c.Logging.GCS.Prefix = "logs/connect"
	}
	if c.Tracing.OTLPEndpoint == "" {
		c.Tracing.OTLPEndpoint = "localhost:4317"
	}
	if c.Models.SyncInterval == 0 {
		c.Models.SyncInterval = Duration(15 * time.Minute)
	}
	if c.Embeddings.Host == "" {
		c.Embeddings.Host = "localhost:8080"
	}
	if c.Embeddings.Scheme == "" {
		c.Embeddings.Scheme = "http"
	}
}

// Validate checks the configuration after defaults are applied.
func (c *ConnectConfig) Validate() error {
	if c.Meta.Version != CurrentConfigVersion {
		return fmt.Errorf("unsupported config version %q (want %q)", c.Meta.Version, CurrentConfigVersion)
	}
	if err := connectValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Gateway.Timeout < 0 {
		return fmt.Errorf("gateway.timeout must be >= 0")
	}
	if c.Models.SyncInterval < 0 {
		return fmt.Errorf("models.sync_interval must be >= 0")
	}
	return nil
}

// DefaultConfig returns the config written on first run.
func DefaultConfig() ConnectConfig {
	cfg := ConnectConfig{
		Meta:     MetaConfig{Version: CurrentConfigVersion},
		Endpoint: "https://cloud.aleutian.ai",
		Daemon: DaemonConfig{
			ListenAddr:    "127.0.0.1:7821",
			EnableMetrics: true,
			EnableEvents:  true,
		},
	}
	cfg.ApplyDefaults()
	return cfg
}
