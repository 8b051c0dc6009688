// ABOUTME: Configuration loading and parsing for jarvis-gateway
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// placeholderAPIKey is the value shipped in sample env files; treated as unset.
const placeholderAPIKey = "your_gemini_api_key_here"

// Config represents the complete jarvis-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	Assistant AssistantConfig `yaml:"assistant" toml:"assistant"`
	LLM       LLMConfig       `yaml:"llm" toml:"llm"`
	News      NewsConfig      `yaml:"news" toml:"news"`
	Speech    SpeechConfig    `yaml:"speech" toml:"speech"`
	Realtime  RealtimeConfig  `yaml:"realtime" toml:"realtime"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPAddr        string `yaml:"http_addr" toml:"http_addr"`
	Environment     string `yaml:"environment" toml:"environment"`
	AllowedOrigins  string `yaml:"allowed_origins" toml:"allowed_origins"` // comma separated
	MaxRequestBytes int64  `yaml:"max_request_bytes" toml:"max_request_bytes"`
	// TrustedProxies lists peer IPs or CIDRs whose X-Forwarded-For header
	// identifies the client. Empty means the header is ignored.
	TrustedProxies []string `yaml:"trusted_proxies" toml:"trusted_proxies"`

	ReadHeaderTimeout    time.Duration `yaml:"-" toml:"-"`
	ReadHeaderTimeoutRaw string        `yaml:"read_header_timeout" toml:"read_header_timeout"`
}

// Origins splits AllowedOrigins into trimmed, non-empty entries.
func (s ServerConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(s.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// IsDevelopment reports whether error details may be returned to callers.
func (s ServerConfig) IsDevelopment() bool {
	return s.Environment == "" || s.Environment == "development"
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	// HTTPS serves on :443 with certificates provisioned by the tailnet.
	HTTPS bool `yaml:"https" toml:"https"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// AuthConfig holds the reserved signing secret. Nothing verifies requests yet.
type AuthConfig struct {
	SecretKey string `yaml:"secret_key" toml:"secret_key"`
}

// RateLimitConfig holds admission limits per client
type RateLimitConfig struct {
	GeneralPerWindow int `yaml:"general_per_window" toml:"general_per_window"`
	ChatPerWindow    int `yaml:"chat_per_window" toml:"chat_per_window"`

	Window    time.Duration `yaml:"-" toml:"-"`
	WindowRaw string        `yaml:"window" toml:"window"`
}

// AssistantConfig controls the response orchestrator
type AssistantConfig struct {
	// ReportHandlerName records which handler answered in plugin_used.
	// When false the fixed "plugin_system" marker is reported instead.
	ReportHandlerName *bool    `yaml:"report_handler_name" toml:"report_handler_name"`
	DisabledHandlers  []string `yaml:"disabled_handlers" toml:"disabled_handlers"`

	FallbackTimeout    time.Duration `yaml:"-" toml:"-"`
	FallbackTimeoutRaw string        `yaml:"fallback_timeout" toml:"fallback_timeout"`
}

// ReportsHandlerName resolves ReportHandlerName with its default of true.
func (a AssistantConfig) ReportsHandlerName() bool {
	return a.ReportHandlerName == nil || *a.ReportHandlerName
}

// LLMConfig holds generative-language provider settings
type LLMConfig struct {
	Provider string `yaml:"provider" toml:"provider"`
	APIKey   string `yaml:"api_key" toml:"api_key"`
	Model    string `yaml:"model" toml:"model"`

	Timeout    time.Duration `yaml:"-" toml:"-"`
	TimeoutRaw string        `yaml:"timeout" toml:"timeout"`
}

// Configured reports whether a usable API key is present.
func (l LLMConfig) Configured() bool {
	return l.APIKey != "" && l.APIKey != placeholderAPIKey
}

// NewsConfig holds the headline feed settings
type NewsConfig struct {
	BaseURL      string `yaml:"base_url" toml:"base_url"`
	MaxHeadlines int    `yaml:"max_headlines" toml:"max_headlines"`

	Timeout    time.Duration `yaml:"-" toml:"-"`
	TimeoutRaw string        `yaml:"timeout" toml:"timeout"`

	// CacheTTL is how long fetched headlines are reused per topic
	CacheTTL    time.Duration `yaml:"-" toml:"-"`
	CacheTTLRaw string        `yaml:"cache_ttl" toml:"cache_ttl"`
}

// SpeechConfig holds transcription and synthesis settings
type SpeechConfig struct {
	STTEndpoint       string `yaml:"stt_endpoint" toml:"stt_endpoint"`
	TTSEndpoint       string `yaml:"tts_endpoint" toml:"tts_endpoint"`
	ElevenLabsAPIKey  string `yaml:"elevenlabs_api_key" toml:"elevenlabs_api_key"`
	ElevenLabsVoiceID string `yaml:"elevenlabs_voice_id" toml:"elevenlabs_voice_id"`
	ElevenLabsModel   string `yaml:"elevenlabs_model" toml:"elevenlabs_model"`
	Workers           int    `yaml:"workers" toml:"workers"`

	Timeout    time.Duration `yaml:"-" toml:"-"`
	TimeoutRaw string        `yaml:"timeout" toml:"timeout"`
}

// RealtimeConfig holds websocket fan-out settings
type RealtimeConfig struct {
	MetricsInterval    time.Duration `yaml:"-" toml:"-"`
	MetricsIntervalRaw string        `yaml:"metrics_interval" toml:"metrics_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// Default returns a configuration that runs without any file: in-memory
// database, limited-mode assistant, localhost listener.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyEnvOverrides lets deployment environments override file values.
func applyEnvOverrides(cfg *Config) {
	if envPath := os.Getenv("JARVIS_DB_PATH"); envPath != "" {
		cfg.Database.Path = envPath
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = "localhost:8000"
	}
	if cfg.Server.Environment == "" {
		cfg.Server.Environment = "development"
	}
	if cfg.Server.AllowedOrigins == "" {
		cfg.Server.AllowedOrigins = "http://localhost:3000,http://localhost:5173,http://localhost:8080"
	}
	if cfg.Server.MaxRequestBytes == 0 {
		cfg.Server.MaxRequestBytes = 1 << 20
	}
	if cfg.Server.ReadHeaderTimeout == 0 {
		cfg.Server.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = ":memory:"
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.RateLimit.GeneralPerWindow == 0 {
		cfg.RateLimit.GeneralPerWindow = 60
	}
	if cfg.RateLimit.ChatPerWindow == 0 {
		cfg.RateLimit.ChatPerWindow = 20
	}
	if cfg.Assistant.FallbackTimeout == 0 {
		cfg.Assistant.FallbackTimeout = 30 * time.Second
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "gemini"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gemini-2.0-flash"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 30 * time.Second
	}
	if cfg.News.BaseURL == "" {
		cfg.News.BaseURL = "https://news.google.com/rss"
	}
	if cfg.News.MaxHeadlines == 0 {
		cfg.News.MaxHeadlines = 6
	}
	if cfg.News.Timeout == 0 {
		cfg.News.Timeout = 10 * time.Second
	}
	if cfg.News.CacheTTL == 0 {
		cfg.News.CacheTTL = 5 * time.Minute
	}
	if cfg.Speech.ElevenLabsVoiceID == "" {
		cfg.Speech.ElevenLabsVoiceID = "pNInz6obpgDQGcFmaJgB"
	}
	if cfg.Speech.ElevenLabsModel == "" {
		cfg.Speech.ElevenLabsModel = "eleven_monolingual_v1"
	}
	if cfg.Speech.Workers == 0 {
		cfg.Speech.Workers = 4
	}
	if cfg.Speech.Timeout == 0 {
		cfg.Speech.Timeout = 30 * time.Second
	}
	if cfg.Realtime.MetricsInterval == 0 {
		cfg.Realtime.MetricsInterval = 3 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.RateLimit.GeneralPerWindow < 0 || c.RateLimit.ChatPerWindow < 0 {
		return fmt.Errorf("rate_limit limits must not be negative")
	}

	for _, p := range c.Server.TrustedProxies {
		if !validProxy(strings.TrimSpace(p)) {
			return fmt.Errorf("server.trusted_proxies entry %q is not an IP or CIDR", p)
		}
	}

	if c.Server.MaxRequestBytes < 0 {
		return fmt.Errorf("server.max_request_bytes must not be negative")
	}

	if c.LLM.Provider != "gemini" {
		return fmt.Errorf("llm.provider %q is not supported (want \"gemini\")", c.LLM.Provider)
	}

	if c.Speech.Workers < 0 {
		return fmt.Errorf("speech.workers must not be negative")
	}

	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.read_header_timeout", cfg.Server.ReadHeaderTimeoutRaw, &cfg.Server.ReadHeaderTimeout},
		{"rate_limit.window", cfg.RateLimit.WindowRaw, &cfg.RateLimit.Window},
		{"assistant.fallback_timeout", cfg.Assistant.FallbackTimeoutRaw, &cfg.Assistant.FallbackTimeout},
		{"llm.timeout", cfg.LLM.TimeoutRaw, &cfg.LLM.Timeout},
		{"news.timeout", cfg.News.TimeoutRaw, &cfg.News.Timeout},
		{"news.cache_ttl", cfg.News.CacheTTLRaw, &cfg.News.CacheTTL},
		{"speech.timeout", cfg.Speech.TimeoutRaw, &cfg.Speech.Timeout},
		{"realtime.metrics_interval", cfg.Realtime.MetricsIntervalRaw, &cfg.Realtime.MetricsInterval},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %q", f.name, f.raw)
		}
		*f.dst = d
	}

	return nil
}

func validProxy(s string) bool {
	if strings.Contains(s, "/") {
		_, err := netip.ParsePrefix(s)
		return err == nil
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}
