package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/FairForge/warden/internal/alerting"
	"github.com/FairForge/warden/internal/failover"
	"github.com/FairForge/warden/internal/ratelimit"
)

// Config is the full warden configuration
type Config struct {
	Server    ServerConfig             `yaml:"server"`
	Auth      AuthConfig               `yaml:"auth"`
	RateLimit ratelimit.Config         `yaml:"rate_limit"`
	Alerting  AlertingConfig           `yaml:"alerting"`
	Notify    []ChannelConfig          `yaml:"notify"`
	Audit     AuditConfig              `yaml:"audit"`
	Services  []failover.ServiceConfig `yaml:"services"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

type AuthConfig struct {
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

type AlertingConfig struct {
	EvaluationInterval time.Duration         `yaml:"evaluation_interval"`
	Rules              []alerting.RuleConfig `yaml:"rules"`
}

// ChannelConfig declares one notification channel
type ChannelConfig struct {
	Name     string            `yaml:"name"`
	Kind     string            `yaml:"kind"`
	Settings map[string]string `yaml:"settings"`
}

type AuditConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Default returns a config with every default filled in
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     8080,
			LogLevel: "info",
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		RateLimit: ratelimit.DefaultConfig,
		Alerting: AlertingConfig{
			EvaluationInterval: time.Minute,
		},
	}
}

// Load reads a YAML config file, applies defaults and environment
// overrides, and validates the result
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	LoadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config, filling per-service defaults as a side
// effect
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}

	seen := make(map[string]bool, len(c.Services))
	for i := range c.Services {
		if err := c.Services[i].Validate(); err != nil {
			return err
		}
		name := c.Services[i].ServiceName
		if seen[name] {
			return fmt.Errorf("config: duplicate service %q", name)
		}
		seen[name] = true
	}

	for _, ch := range c.Notify {
		if ch.Name == "" {
			return fmt.Errorf("config: notify channel with kind %q has no name", ch.Kind)
		}
	}

	for i := range c.Alerting.Rules {
		if err := c.Alerting.Rules[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// LoadFromEnv applies WARDEN_* environment overrides
func LoadFromEnv(cfg *Config) {
	if port := os.Getenv("WARDEN_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if level := os.Getenv("WARDEN_LOG_LEVEL"); level != "" {
		cfg.Server.LogLevel = level
	}
	if secret := os.Getenv("WARDEN_AUTH_SECRET"); secret != "" {
		cfg.Auth.Secret = secret
	}
	if dsn := os.Getenv("WARDEN_AUDIT_DSN"); dsn != "" {
		cfg.Audit.PostgresDSN = dsn
	}
}

// GetEnvOrDefault returns an environment variable or the fallback
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
