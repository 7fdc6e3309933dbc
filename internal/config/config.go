// Package config loads and validates CLI configuration from YAML files and
// environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root CLI configuration.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	HTTP     HTTPConfig     `yaml:"http"`
	Auth     AuthConfig     `yaml:"auth"`
	Security SecurityConfig `yaml:"security"`
	Log      LogConfig      `yaml:"log"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// ServiceConfig describes the remote service to talk to.
type ServiceConfig struct {
	WSDL        string `yaml:"wsdl"`
	Endpoint    string `yaml:"endpoint"`
	Namespace   string `yaml:"namespace"`
	SOAPVersion int    `yaml:"soap_version"`
}

// HTTPConfig describes transport settings.
type HTTPConfig struct {
	OpenTimeout        time.Duration `yaml:"open_timeout"`
	ReadTimeout        time.Duration `yaml:"read_timeout"`
	Proxy              string        `yaml:"proxy"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
}

// AuthConfig describes request authentication.
type AuthConfig struct {
	Basic *CredentialsConfig `yaml:"basic"`
	WSSE  *WSSEConfig        `yaml:"wsse"`
}

// CredentialsConfig is a username/password pair.
type CredentialsConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// WSSEConfig describes WS-Security UsernameToken settings.
type WSSEConfig struct {
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Digest    bool   `yaml:"digest"`
	Timestamp bool   `yaml:"timestamp"`
}

// SecurityConfig describes response verification settings.
type SecurityConfig struct {
	VerifyResponse bool   `yaml:"verify_response"`
	Verifier       string `yaml:"verifier"` // "hmac" or "digest"
	HMACSecret     string `yaml:"hmac_secret"`
}

// LogConfig describes logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// TracingConfig describes span export settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"` // "otlp" (default) or "stdout"
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			SOAPVersion: 1,
		},
		HTTP: HTTPConfig{
			OpenTimeout: 10 * time.Second,
			ReadTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates required fields.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Service.WSDL == "" && (c.Service.Endpoint == "" || c.Service.Namespace == "") {
		errs = append(errs, "service.wsdl or both service.endpoint and service.namespace are required")
	}
	if v := c.Service.SOAPVersion; v != 1 && v != 2 {
		errs = append(errs, "service.soap_version must be 1 or 2")
	}
	if c.Security.VerifyResponse {
		switch c.Security.Verifier {
		case "hmac":
			if c.Security.HMACSecret == "" {
				errs = append(errs, "security.hmac_secret is required for the hmac verifier")
			}
		case "digest":
		default:
			errs = append(errs, "security.verifier must be hmac or digest when verify_response is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides reads SAVON_* environment variables and overrides config
// values. Only the most commonly overridden fields are supported.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SAVON_WSDL"); v != "" {
		cfg.Service.WSDL = v
	}
	if v := os.Getenv("SAVON_ENDPOINT"); v != "" {
		cfg.Service.Endpoint = v
	}
	if v := os.Getenv("SAVON_NAMESPACE"); v != "" {
		cfg.Service.Namespace = v
	}
	if v := os.Getenv("SAVON_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SAVON_HMAC_SECRET"); v != "" {
		cfg.Security.HMACSecret = v
	}
	if v := os.Getenv("SAVON_TRACING_ENDPOINT"); v != "" {
		cfg.Tracing.Enabled = true
		cfg.Tracing.Endpoint = v
	}
}
