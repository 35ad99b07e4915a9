// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package config

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	"gopkg.in/yaml.v3"
)

// Config represents the complete passkeyd server configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	TLS       TLSConfig       `yaml:"tls"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Passkey   passkey.Config  `yaml:"passkey"`
	Token     TokenConfig     `yaml:"token"`
	Relay     RelayConfig     `yaml:"relay"`
}

// ServerConfig contains the HTTP listener settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TLSConfig contains TLS settings for the HTTP listener. WebAuthn requires a
// secure context, so the listener serves HTTPS unless explicitly disabled.
// SelfSigned generates an in-memory certificate at startup instead of loading
// cert_file/key_file, which is only suitable for development.
type TLSConfig struct {
	Enabled      bool     `yaml:"enabled"`
	SelfSigned   bool     `yaml:"self_signed"`
	CertFile     string   `yaml:"cert_file"`
	KeyFile      string   `yaml:"key_file"`
	CAFile       string   `yaml:"ca_file"`
	ClientCAs    []string `yaml:"client_cas"`
	ClientAuth   string   `yaml:"client_auth"`
	MinVersion   string   `yaml:"min_version"`
	MaxVersion   string   `yaml:"max_version"`
	CipherSuites []string `yaml:"cipher_suites"`
}

// RateLimitConfig contains per-client request rate limiting settings
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// MetricsConfig contains Prometheus metrics settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TokenConfig contains session token settings. When enabled, the server mints
// a signed JWT for the authenticated user handle after each verified ceremony.
type TokenConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Secret     string `yaml:"secret"`
	SecretFile string `yaml:"secret_file"`
	Issuer     string `yaml:"issuer"`
	Audience   string `yaml:"audience"`
	TTL        string `yaml:"ttl"`
}

// RelayConfig contains ceremony relay settings. Timeout bounds how long a
// begun ceremony waits for the browser to deliver its response.
type RelayConfig struct {
	Timeout string `yaml:"timeout"`
}

// Load reads configuration from a YAML file and applies environment variable overrides
func Load(path string) (*Config, error) {
	// #nosec G304 - Config file path is provided by admin/user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&cfg)
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault loads the configuration file at path, or falls back to the
// development defaults when path is empty. Environment overrides apply in
// both cases.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}

	cfg := devDefaults()
	applyEnvOverrides(cfg)
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Default returns the development configuration: passkeys for localhost
// served over a self-signed certificate, no config file required.
func Default() *Config {
	cfg := devDefaults()
	cfg.SetDefaults()
	return cfg
}

// devDefaults returns the skeleton the development configuration is built
// from. SetDefaults fills in the rest.
func devDefaults() *Config {
	return &Config{
		TLS:     TLSConfig{Enabled: true, SelfSigned: true},
		Metrics: MetricsConfig{Enabled: true},
		Passkey: passkey.Config{Domain: "localhost"},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	// Server settings
	if host := os.Getenv("PASSKEY_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("PASSKEY_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			log.Printf("Warning: invalid PASSKEY_PORT value %q, using default %d: %v",
				portStr, cfg.Server.Port, err)
		} else if port < 1 || port > 65535 {
			log.Printf("Warning: invalid PASSKEY_PORT value %q (out of range 1-65535), using default %d",
				portStr, cfg.Server.Port)
		} else {
			cfg.Server.Port = port
		}
	}

	// Logging
	if level := os.Getenv("PASSKEY_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("PASSKEY_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	// Relying party
	if domain := os.Getenv("PASSKEY_DOMAIN"); domain != "" {
		cfg.Passkey.Domain = domain
	}
	if appName := os.Getenv("PASSKEY_APP_NAME"); appName != "" {
		cfg.Passkey.AppName = appName
	}
	if origins := os.Getenv("PASSKEY_ORIGINS"); origins != "" {
		parsed := make([]string, 0)
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				parsed = append(parsed, origin)
			}
		}
		if len(parsed) > 0 {
			cfg.Passkey.Origins = parsed
		}
	}

	// TLS settings. An explicit certificate wins over self-signed generation.
	if certFile := os.Getenv("PASSKEY_TLS_CERT"); certFile != "" {
		cfg.TLS.CertFile = certFile
		cfg.TLS.SelfSigned = false
	}
	if keyFile := os.Getenv("PASSKEY_TLS_KEY"); keyFile != "" {
		cfg.TLS.KeyFile = keyFile
		cfg.TLS.SelfSigned = false
	}

	// Token settings
	if secret := os.Getenv("PASSKEY_TOKEN_SECRET"); secret != "" {
		cfg.Token.Secret = secret
	}
}

// SetDefaults fills in default values for unset fields
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8443
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute == 0 {
		c.RateLimit.RequestsPerMinute = 60
	}
	if c.Token.TTL == "" {
		c.Token.TTL = "15m"
	}
	if c.Relay.Timeout == "" {
		c.Relay.Timeout = "2m"
	}
	if c.Passkey.AppName == "" {
		c.Passkey.AppName = c.Passkey.Domain
	}
	if len(c.Passkey.Origins) == 0 && c.Passkey.Domain != "" {
		if c.Server.Port == 443 {
			c.Passkey.Origins = []string{"https://" + c.Passkey.Domain}
		} else {
			c.Passkey.Origins = []string{fmt.Sprintf("https://%s:%d", c.Passkey.Domain, c.Server.Port)}
		}
	}
	c.Passkey.SetDefaults()
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server port
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	// Validate logging level
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	// Validate TLS settings
	if c.TLS.Enabled && !c.TLS.SelfSigned {
		if c.TLS.CertFile == "" {
			return fmt.Errorf("TLS cert_file is required when TLS is enabled")
		}
		if c.TLS.KeyFile == "" {
			return fmt.Errorf("TLS key_file is required when TLS is enabled")
		}
	}

	// Validate rate limiting
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute < 1 {
		return fmt.Errorf("ratelimit requests_per_minute must be positive")
	}

	// Validate token settings
	if c.Token.Enabled {
		if c.Token.Secret == "" && c.Token.SecretFile == "" {
			return fmt.Errorf("token secret or secret_file is required when tokens are enabled")
		}
		if _, err := time.ParseDuration(c.Token.TTL); err != nil {
			return fmt.Errorf("invalid token ttl: %w", err)
		}
	}

	// Validate relay settings
	if c.Relay.Timeout != "" {
		if _, err := time.ParseDuration(c.Relay.Timeout); err != nil {
			return fmt.Errorf("invalid relay timeout: %w", err)
		}
	}

	// Validate relying party settings
	if err := c.Passkey.Validate(); err != nil {
		return fmt.Errorf("passkey: %w", err)
	}

	return nil
}

// ListenAddr returns the host:port address the server listens on.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// RelayTimeout returns the configured ceremony relay timeout.
func (c *Config) RelayTimeout() time.Duration {
	d, err := time.ParseDuration(c.Relay.Timeout)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

// TTLDuration returns the configured token lifetime.
func (t *TokenConfig) TTLDuration() time.Duration {
	d, err := time.ParseDuration(t.TTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// SecretBytes returns the token signing secret, reading secret_file when no
// inline secret is set.
func (t *TokenConfig) SecretBytes() ([]byte, error) {
	if t.Secret != "" {
		return []byte(t.Secret), nil
	}
	if t.SecretFile == "" {
		return nil, fmt.Errorf("token secret is not configured")
	}
	// #nosec G304 - Secret file path from trusted config
	data, err := os.ReadFile(t.SecretFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read token secret file: %w", err)
	}
	secret := bytes.TrimSpace(data)
	if len(secret) == 0 {
		return nil, fmt.Errorf("token secret file %s is empty", t.SecretFile)
	}
	return secret, nil
}
