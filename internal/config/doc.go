// Package config handles configuration loading for jarvis-gateway.
//
// # Overview
//
// Configuration is loaded from YAML (or TOML, by file extension) with
// environment variable expansion. Every field has a default so an empty file,
// or no file at all via Default(), yields a runnable gateway.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from JARVIS_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/jarvis/gateway.yaml
//  3. ~/.config/jarvis/gateway.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	llm:
//	  api_key: "${GEMINI_API_KEY}"
//
// JARVIS_DB_PATH overrides database.path, and GEMINI_API_KEY is used when
// llm.api_key is left empty.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	rate_limit:
//	  window: "1m"
//	realtime:
//	  metrics_interval: "3s"
//
// # Configuration Sections
//
//	server:     http_addr, environment, allowed_origins, max_request_bytes, trusted_proxies
//	tailscale:  enabled, hostname, auth_key, state_dir, ephemeral
//	database:   path (":memory:" for an ephemeral store)
//	rate_limit: window, general_per_window, chat_per_window
//	assistant:  report_handler_name, fallback_timeout, disabled_handlers
//	llm:        provider, api_key, model, timeout
//	news:       base_url, max_headlines, timeout, cache_ttl
//	speech:     stt_endpoint, tts_endpoint, elevenlabs_*, workers, timeout
//	realtime:   metrics_interval
//	logging:    level, format
//	metrics:    enabled, path
package config
