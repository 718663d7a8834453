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

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "openai", cfg.Generation.Provider)
	assert.Equal(t, 20*time.Second, cfg.Generation.Timeout)
	assert.Equal(t, 6*time.Hour, cfg.Redis.CacheTTL)
	assert.Equal(t, 10*time.Minute, cfg.Redis.IdempotencyTTL)
	assert.Equal(t, 10*time.Second, cfg.Dispatch.ChannelTimeout)
	assert.Equal(t, 30*time.Second, cfg.Dispatch.AlertTimeout)
	assert.Zero(t, cfg.Warmup.Interval)
	assert.False(t, cfg.SMS.Enabled())
	assert.False(t, cfg.Email.Enabled())
}

func TestParse_FullFileWithEnvExpansion(t *testing.T) {
	t.Setenv("TEST_TWILIO_TOKEN", "secret-token")

	cfg, err := Parse([]byte(`
server:
  port: 9090
  log_level: debug
database:
  driver: postgres
  url: postgres://kyrn@localhost/kyrn
redis:
  url: redis://localhost:6379/1
  cache_ttl: 1h
generation:
  provider: gemini
  api_key: key
  timeout: 5s
sms:
  account_sid: AC123
  auth_token: ${TEST_TWILIO_TOKEN}
  from_number: "+15550000000"
email:
  tenant_id: t
  client_id: c
  client_secret: s
  sender: alerts@example.org
dispatch:
  channel_timeout: 3s
warmup:
  interval: 24h
`))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, time.Hour, cfg.Redis.CacheTTL)
	assert.Equal(t, "gemini", cfg.Generation.Provider)
	assert.Equal(t, 5*time.Second, cfg.Generation.Timeout)
	assert.Equal(t, "secret-token", cfg.SMS.AuthToken)
	assert.True(t, cfg.SMS.Enabled())
	assert.True(t, cfg.Email.Enabled())
	assert.Equal(t, 3*time.Second, cfg.Dispatch.ChannelTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Warmup.Interval)
}

func TestParse_EnvFallbacks(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("LLM_TIMEOUT", "9s")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")

	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, 9*time.Second, cfg.Generation.Timeout)
	assert.Equal(t, "redis://cache:6379/0", cfg.Redis.URL)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "server: [unclosed"},
		{"bad duration", "generation:\n  timeout: soon\n"},
		{"unknown driver", "database:\n  driver: mysql\n"},
		{"postgres without url", "database:\n  driver: postgres\n"},
		{"unknown provider", "generation:\n  provider: carrier-pigeon\n"},
		{"bad log level", "server:\n  log_level: loud\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_ReadsConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 6060\n"), 0o600))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 6060, cfg.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}
