// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults, and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("JARVIS_DB_PATH", "")

	path := writeConfig(t, "gateway.yaml", `
server:
  http_addr: "0.0.0.0:9000"
  environment: "production"
  allowed_origins: "http://a.example, http://b.example ,"
  max_request_bytes: 2048
  trusted_proxies: ["10.0.0.0/8", "127.0.0.1"]
  read_header_timeout: "5s"

database:
  path: "./jarvis.db"

rate_limit:
  window: "30s"
  general_per_window: 100
  chat_per_window: 5

assistant:
  report_handler_name: false
  fallback_timeout: "12s"
  disabled_handlers: ["weather"]

llm:
  api_key: "key-123"
  model: "gemini-2.5-flash"
  timeout: "20s"

realtime:
  metrics_interval: "1s"

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
  path: "/prom"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.HTTPAddr)
	assert.False(t, cfg.Server.IsDevelopment())
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Server.Origins())
	assert.Equal(t, int64(2048), cfg.Server.MaxRequestBytes)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.Server.TrustedProxies)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadHeaderTimeout)
	assert.Equal(t, "./jarvis.db", cfg.Database.Path)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, 100, cfg.RateLimit.GeneralPerWindow)
	assert.Equal(t, 5, cfg.RateLimit.ChatPerWindow)
	assert.False(t, cfg.Assistant.ReportsHandlerName())
	assert.Equal(t, 12*time.Second, cfg.Assistant.FallbackTimeout)
	assert.Equal(t, []string{"weather"}, cfg.Assistant.DisabledHandlers)
	assert.True(t, cfg.LLM.Configured())
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	assert.Equal(t, 20*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, time.Second, cfg.Realtime.MetricsInterval)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/prom", cfg.Metrics.Path)
}

func TestLoad_ValidTOML(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("JARVIS_DB_PATH", "")

	path := writeConfig(t, "gateway.toml", `
[server]
http_addr = "127.0.0.1:8123"

[rate_limit]
window = "2m"
chat_per_window = 3

[news]
cache_ttl = "90s"

[speech]
workers = 2
timeout = "15s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8123", cfg.Server.HTTPAddr)
	assert.Equal(t, 2*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 3, cfg.RateLimit.ChatPerWindow)
	assert.Equal(t, 60, cfg.RateLimit.GeneralPerWindow, "unset values take defaults")
	assert.Equal(t, 2, cfg.Speech.Workers)
	assert.Equal(t, 15*time.Second, cfg.Speech.Timeout)
	assert.Equal(t, 90*time.Second, cfg.News.CacheTTL)
	assert.Equal(t, 10*time.Second, cfg.News.Timeout)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("JARVIS_TEST_KEY", "expanded-key")
	t.Setenv("JARVIS_DB_PATH", "")

	path := writeConfig(t, "gateway.yaml", `
llm:
  api_key: "${JARVIS_TEST_KEY}"
speech:
  elevenlabs_api_key: "${JARVIS_UNSET_VARIABLE}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "expanded-key", cfg.LLM.APIKey)
	assert.Empty(t, cfg.Speech.ElevenLabsAPIKey)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("JARVIS_DB_PATH", "/tmp/override.db")
	t.Setenv("GEMINI_API_KEY", "from-env")

	path := writeConfig(t, "gateway.yaml", `
database:
  path: "./file.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override.db", cfg.Database.Path)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("JARVIS_DB_PATH", "")

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad duration", "rate_limit:\n  window: \"soon\"\n", "rate_limit.window"},
		{"negative duration", "llm:\n  timeout: \"-5s\"\n", "must be positive"},
		{"unknown provider", "llm:\n  provider: \"other\"\n", "llm.provider"},
		{"tailscale without hostname", "tailscale:\n  enabled: true\n", "tailscale.hostname"},
		{"negative limit", "rate_limit:\n  chat_per_window: -1\n", "must not be negative"},
		{"bad metrics path", "metrics:\n  path: \"metrics\"\n", "metrics.path"},
		{"bad trusted proxy", "server:\n  trusted_proxies: [\"10.0.0.0/8\", \"proxy.local\"]\n", "server.trusted_proxies"},
		{"invalid yaml", "server: [unclosed\n", "parsing config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "gateway.yaml", tt.content)
			_, err := Load(path)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), "error %q should mention %q", err, tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "localhost:8000", cfg.Server.HTTPAddr)
	assert.True(t, cfg.Server.IsDevelopment())
	assert.Equal(t, ":memory:", cfg.Database.Path)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 60, cfg.RateLimit.GeneralPerWindow)
	assert.Equal(t, 20, cfg.RateLimit.ChatPerWindow)
	assert.True(t, cfg.Assistant.ReportsHandlerName())
	assert.Equal(t, 3*time.Second, cfg.Realtime.MetricsInterval)
	assert.Equal(t, int64(1<<20), cfg.Server.MaxRequestBytes)
	assert.False(t, cfg.LLM.Configured())
}

func TestLLMConfig_PlaceholderKeyIsUnconfigured(t *testing.T) {
	assert.False(t, LLMConfig{APIKey: "your_gemini_api_key_here"}.Configured())
	assert.True(t, LLMConfig{APIKey: "real"}.Configured())
}
