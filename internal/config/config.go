package config

import (
	"errors"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Runtime RuntimeConfig `koanf:"runtime"`
	Events  EventsConfig  `koanf:"events"`
	Relay   RelayConfig   `koanf:"relay"`
	Storage StorageConfig `koanf:"storage"`
	Invoke  InvokeConfig  `koanf:"invoke"`
	Tracing TracingConfig `koanf:"tracing"`
}

type ServerConfig struct {
	Port    int            `koanf:"port"`
	APIKeys []APIKeyConfig `koanf:"api_keys"`
}

type APIKeyConfig struct {
	KeyHash     string `koanf:"key_hash"`
	Description string `koanf:"description"`
}

// RuntimeConfig points at the agent runtime that answers prompts.
type RuntimeConfig struct {
	BaseURL    string `koanf:"base_url"`
	RuntimeARN string `koanf:"runtime_arn"`
	APIKey     string `koanf:"api_key"`
}

// EventsConfig points at the events API that fans out session events.
type EventsConfig struct {
	Endpoint      string `koanf:"endpoint"`
	SigningKey    string `koanf:"signing_key"`
	SigningSecret string `koanf:"signing_secret"`
}

type RelayConfig struct {
	QueueSize  int    `koanf:"queue_size"`
	JobTimeout string `koanf:"job_timeout"` // Duration string like "45s"
}

type StorageConfig struct {
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type InvokeConfig struct {
	MaxPromptTokens int `koanf:"max_prompt_tokens"`
}

// TracingConfig selects the span exporter: "stdout" or "none".
type TracingConfig struct {
	Exporter string `koanf:"exporter"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Try to load from the config file first
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider("RELAY_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "RELAY_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("relay.queue_size") {
		k.Set("relay.queue_size", 64)
	}
	if !k.Exists("relay.job_timeout") {
		k.Set("relay.job_timeout", "45s")
	}
	if !k.Exists("storage.sqlite.path") {
		k.Set("storage.sqlite.path", "./data/relay.db")
	}
	if !k.Exists("tracing.exporter") {
		k.Set("tracing.exporter", "stdout")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Substitute environment variables in secrets
	cfg.Runtime.APIKey = substituteEnvVars(cfg.Runtime.APIKey)
	cfg.Events.SigningKey = substituteEnvVars(cfg.Events.SigningKey)
	cfg.Events.SigningSecret = substituteEnvVars(cfg.Events.SigningSecret)

	return &cfg, nil
}

// JobTimeout parses the relay job timeout, falling back to 45s on a bad value.
func (c *Config) JobTimeout() time.Duration {
	d, err := time.ParseDuration(c.Relay.JobTimeout)
	if err != nil || d <= 0 {
		return 45 * time.Second
	}
	return d
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
