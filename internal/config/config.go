// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig selects and locates the content store.
type DatabaseConfig struct {
	Driver     string // "postgres" or "sqlite"
	URL        string
	SQLitePath string
}

// RedisConfig holds the optional Redis settings. An empty URL disables the
// cache layer, idempotency keys and the audit relay.
type RedisConfig struct {
	URL            string
	CacheTTL       time.Duration
	AuditQueue     string
	IdempotencyTTL time.Duration
}

// GenerationConfig selects the language-model provider.
type GenerationConfig struct {
	Provider     string // "openai" or "gemini"
	BaseURL      string
	APIKey       string
	Model        string
	PremiumModel string
	Timeout      time.Duration
}

// SMSConfig holds Twilio credentials. Empty credentials disable SMS.
type SMSConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
}

// Enabled reports whether SMS delivery is configured.
func (c SMSConfig) Enabled() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

// EmailConfig holds Microsoft Graph credentials. Empty credentials disable email.
type EmailConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	Sender       string
	GraphBaseURL string
}

// Enabled reports whether email delivery is configured.
func (c EmailConfig) Enabled() bool {
	return c.TenantID != "" && c.ClientID != "" && c.ClientSecret != "" && c.Sender != ""
}

// DispatchConfig bounds the emergency fan-out.
type DispatchConfig struct {
	ChannelTimeout time.Duration
	MessageTimeout time.Duration
	AlertTimeout   time.Duration
}

// WarmupConfig controls periodic cache warm-up. A zero interval disables it.
type WarmupConfig struct {
	Interval time.Duration
	Delay    time.Duration
}

// Config holds all configuration for the engine.
type Config struct {
	Port     int
	LogLevel slog.Level

	Database   DatabaseConfig
	Redis      RedisConfig
	Generation GenerationConfig
	SMS        SMSConfig
	Email      EmailConfig
	Dispatch   DispatchConfig
	Warmup     WarmupConfig
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Server struct {
		Port     int    `yaml:"port"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"server"`
	Database struct {
		Driver     string `yaml:"driver"`
		URL        string `yaml:"url"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Redis struct {
		URL            string `yaml:"url"`
		CacheTTL       string `yaml:"cache_ttl"`
		AuditQueue     string `yaml:"audit_queue"`
		IdempotencyTTL string `yaml:"idempotency_ttl"`
	} `yaml:"redis"`
	Generation struct {
		Provider     string `yaml:"provider"`
		BaseURL      string `yaml:"base_url"`
		APIKey       string `yaml:"api_key"`
		Model        string `yaml:"model"`
		PremiumModel string `yaml:"premium_model"`
		Timeout      string `yaml:"timeout"`
	} `yaml:"generation"`
	SMS struct {
		AccountSID string `yaml:"account_sid"`
		AuthToken  string `yaml:"auth_token"`
		FromNumber string `yaml:"from_number"`
		BaseURL    string `yaml:"base_url"`
	} `yaml:"sms"`
	Email struct {
		TenantID     string `yaml:"tenant_id"`
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		Sender       string `yaml:"sender"`
		GraphBaseURL string `yaml:"graph_base_url"`
	} `yaml:"email"`
	Dispatch struct {
		ChannelTimeout string `yaml:"channel_timeout"`
		MessageTimeout string `yaml:"message_timeout"`
		AlertTimeout   string `yaml:"alert_timeout"`
	} `yaml:"dispatch"`
	Warmup struct {
		Interval string `yaml:"interval"`
		Delay    string `yaml:"delay"`
	} `yaml:"warmup"`
}

// Load reads configuration from the file named by CONFIG_PATH (with env var
// expansion). Environment variables fill anything the file leaves empty.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "/app/config/config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse builds a Config from YAML bytes.
func Parse(data []byte) (*Config, error) {
	// Expand ${VAR} references in the YAML
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	cfg := &Config{
		Port: firstPositive(raw.Server.Port, envOrDefaultInt("PORT", 8080)),
		Database: DatabaseConfig{
			Driver:     strings.ToLower(firstNonEmpty(raw.Database.Driver, envOrDefault("DATABASE_DRIVER", "sqlite"))),
			URL:        firstNonEmpty(raw.Database.URL, os.Getenv("DATABASE_URL")),
			SQLitePath: firstNonEmpty(raw.Database.SQLitePath, envOrDefault("SQLITE_PATH", "/app/data/kyrn.db")),
		},
		Redis: RedisConfig{
			URL:        firstNonEmpty(raw.Redis.URL, os.Getenv("REDIS_URL")),
			AuditQueue: firstNonEmpty(raw.Redis.AuditQueue, envOrDefault("AUDIT_QUEUE", "audit")),
		},
		Generation: GenerationConfig{
			Provider:     strings.ToLower(firstNonEmpty(raw.Generation.Provider, envOrDefault("LLM_PROVIDER", "openai"))),
			BaseURL:      firstNonEmpty(raw.Generation.BaseURL, os.Getenv("LLM_BASE_URL")),
			APIKey:       firstNonEmpty(raw.Generation.APIKey, os.Getenv("LLM_API_KEY")),
			Model:        firstNonEmpty(raw.Generation.Model, os.Getenv("LLM_MODEL")),
			PremiumModel: firstNonEmpty(raw.Generation.PremiumModel, os.Getenv("LLM_PREMIUM_MODEL")),
		},
		SMS: SMSConfig{
			AccountSID: firstNonEmpty(raw.SMS.AccountSID, os.Getenv("TWILIO_ACCOUNT_SID")),
			AuthToken:  firstNonEmpty(raw.SMS.AuthToken, os.Getenv("TWILIO_AUTH_TOKEN")),
			FromNumber: firstNonEmpty(raw.SMS.FromNumber, os.Getenv("TWILIO_FROM_NUMBER")),
			BaseURL:    raw.SMS.BaseURL,
		},
		Email: EmailConfig{
			TenantID:     firstNonEmpty(raw.Email.TenantID, os.Getenv("GRAPH_TENANT_ID")),
			ClientID:     firstNonEmpty(raw.Email.ClientID, os.Getenv("GRAPH_CLIENT_ID")),
			ClientSecret: firstNonEmpty(raw.Email.ClientSecret, os.Getenv("GRAPH_CLIENT_SECRET")),
			Sender:       firstNonEmpty(raw.Email.Sender, os.Getenv("GRAPH_SENDER")),
			GraphBaseURL: firstNonEmpty(raw.Email.GraphBaseURL, "https://graph.microsoft.com/v1.0"),
		},
	}

	level, err := parseLevel(firstNonEmpty(raw.Server.LogLevel, envOrDefault("LOG_LEVEL", "info")))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	durations := []struct {
		name     string
		raw      string
		env      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"redis.cache_ttl", raw.Redis.CacheTTL, "CACHE_TTL", 6 * time.Hour, &cfg.Redis.CacheTTL},
		{"redis.idempotency_ttl", raw.Redis.IdempotencyTTL, "IDEMPOTENCY_TTL", 10 * time.Minute, &cfg.Redis.IdempotencyTTL},
		{"generation.timeout", raw.Generation.Timeout, "LLM_TIMEOUT", 20 * time.Second, &cfg.Generation.Timeout},
		{"dispatch.channel_timeout", raw.Dispatch.ChannelTimeout, "CHANNEL_TIMEOUT", 10 * time.Second, &cfg.Dispatch.ChannelTimeout},
		{"dispatch.message_timeout", raw.Dispatch.MessageTimeout, "MESSAGE_TIMEOUT", 8 * time.Second, &cfg.Dispatch.MessageTimeout},
		{"dispatch.alert_timeout", raw.Dispatch.AlertTimeout, "ALERT_TIMEOUT", 30 * time.Second, &cfg.Dispatch.AlertTimeout},
		{"warmup.interval", raw.Warmup.Interval, "WARMUP_INTERVAL", 0, &cfg.Warmup.Interval},
		{"warmup.delay", raw.Warmup.Delay, "WARMUP_DELAY", 500 * time.Millisecond, &cfg.Warmup.Delay},
	}
	for _, d := range durations {
		if strings.TrimSpace(d.raw) == "" {
			*d.dst = envOrDefaultDuration(d.env, d.fallback)
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return nil, fmt.Errorf("parse %s %q: %w", d.name, d.raw, err)
		}
		*d.dst = v
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the postgres driver")
		}
	case "sqlite":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	switch c.Generation.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("unknown generation provider %q", c.Generation.Provider)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("parse log level %q: %w", s, err)
	}
	return level, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
