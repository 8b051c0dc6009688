// ABOUTME: Interactive `init` subcommand that writes a starter YAML config.

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// initAnswers are the values collected by runInit.
type initAnswers struct {
	HTTPAddr      string
	Environment   string
	DBPath        string
	GeminiKey     string
	Tailscale     bool
	TSHostname    string
	TSAuthKey     string
	TSEphemeral   bool
	TSHTTPS       bool
	LogLevel      string
	LogFormat     string
	EnableMetrics bool
}

func runInit(in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "jarvis-gateway configuration setup")
	fmt.Fprintln(out, "==================================")
	fmt.Fprintln(out)

	defaultConfigPath := getConfigPath()
	defaultDBPath := filepath.Join(getDataPath(), "jarvis.db")

	outputFile := prompt(reader, out, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, out, "File exists. Overwrite?", "no")) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	var a initAnswers

	fmt.Fprintln(out, "\n--- Server Configuration ---")
	a.HTTPAddr = prompt(reader, out, "HTTP address", "localhost:8000")
	a.Environment = prompt(reader, out, "Environment (development/production)", "development")

	fmt.Fprintln(out, "\n--- Database Configuration ---")
	a.DBPath = prompt(reader, out, "SQLite database path (:memory: for none)", defaultDBPath)

	fmt.Fprintln(out, "\n--- Language Model ---")
	a.GeminiKey = prompt(reader, out, "Gemini API key (leave empty to use GEMINI_API_KEY)", "")

	fmt.Fprintln(out, "\n--- Tailscale Configuration ---")
	a.Tailscale = yes(prompt(reader, out, "Enable Tailscale?", "no"))
	if a.Tailscale {
		a.TSHostname = prompt(reader, out, "Tailscale hostname", "jarvis")
		a.TSAuthKey = prompt(reader, out, "Tailscale auth key (leave empty to use TS_AUTHKEY)", "")
		a.TSEphemeral = yes(prompt(reader, out, "Ephemeral node?", "no"))
		a.TSHTTPS = yes(prompt(reader, out, "Serve HTTPS with tailnet certificates?", "no"))
	}

	fmt.Fprintln(out, "\n--- Logging Configuration ---")
	a.LogLevel = prompt(reader, out, "Log level (debug/info/warn/error)", "info")
	a.LogFormat = prompt(reader, out, "Log format (text/json)", "text")
	a.EnableMetrics = yes(prompt(reader, out, "Expose Prometheus metrics?", "yes"))

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// The file may hold API keys.
	if err := os.WriteFile(outputFile, []byte(renderConfig(a)), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	if a.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(a.DBPath), 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", outputFile)
	fmt.Fprintln(out, "\nTo start the server:")
	fmt.Fprintln(out, "  jarvis-gateway serve")
	return nil
}

// renderConfig produces the YAML written by init. Unasked sections carry
// their defaults so the file documents every knob.
func renderConfig(a initAnswers) string {
	var b strings.Builder
	b.WriteString("# jarvis-gateway configuration\n")
	b.WriteString("# Generated by jarvis-gateway init\n\n")

	b.WriteString("server:\n")
	fmt.Fprintf(&b, "  http_addr: %q\n", a.HTTPAddr)
	fmt.Fprintf(&b, "  environment: %q\n", a.Environment)
	b.WriteString("  allowed_origins: \"http://localhost:3000,http://localhost:5173\"\n")
	b.WriteString("  max_request_bytes: 1048576\n")
	b.WriteString("  # peers allowed to set X-Forwarded-For, e.g. [\"10.0.0.0/8\"]\n")
	b.WriteString("  trusted_proxies: []\n")
	b.WriteString("  read_header_timeout: \"10s\"\n\n")

	b.WriteString("database:\n")
	fmt.Fprintf(&b, "  path: %q\n\n", a.DBPath)

	b.WriteString("tailscale:\n")
	fmt.Fprintf(&b, "  enabled: %t\n", a.Tailscale)
	if a.Tailscale {
		fmt.Fprintf(&b, "  hostname: %q\n", a.TSHostname)
		if a.TSAuthKey != "" {
			fmt.Fprintf(&b, "  auth_key: %q\n", a.TSAuthKey)
		}
		fmt.Fprintf(&b, "  ephemeral: %t\n", a.TSEphemeral)
		fmt.Fprintf(&b, "  https: %t\n", a.TSHTTPS)
	}
	b.WriteString("\n")

	b.WriteString("rate_limit:\n")
	b.WriteString("  window: \"1m\"\n")
	b.WriteString("  general_per_window: 60\n")
	b.WriteString("  chat_per_window: 20\n\n")

	b.WriteString("assistant:\n")
	b.WriteString("  report_handler_name: true\n")
	b.WriteString("  fallback_timeout: \"30s\"\n")
	b.WriteString("  disabled_handlers: []\n\n")

	b.WriteString("llm:\n")
	b.WriteString("  provider: \"gemini\"\n")
	if a.GeminiKey != "" {
		fmt.Fprintf(&b, "  api_key: %q\n", a.GeminiKey)
	} else {
		b.WriteString("  api_key: \"${GEMINI_API_KEY}\"\n")
	}
	b.WriteString("  model: \"gemini-2.0-flash\"\n")
	b.WriteString("  timeout: \"30s\"\n\n")

	b.WriteString("news:\n")
	b.WriteString("  base_url: \"https://news.google.com/rss\"\n")
	b.WriteString("  max_headlines: 6\n")
	b.WriteString("  timeout: \"10s\"\n")
	b.WriteString("  cache_ttl: \"5m\"\n\n")

	b.WriteString("speech:\n")
	b.WriteString("  stt_endpoint: \"\"\n")
	b.WriteString("  tts_endpoint: \"\"\n")
	b.WriteString("  elevenlabs_api_key: \"${ELEVENLABS_API_KEY}\"\n")
	b.WriteString("  workers: 4\n")
	b.WriteString("  timeout: \"30s\"\n\n")

	b.WriteString("realtime:\n")
	b.WriteString("  metrics_interval: \"3s\"\n\n")

	b.WriteString("logging:\n")
	fmt.Fprintf(&b, "  level: %q\n", a.LogLevel)
	fmt.Fprintf(&b, "  format: %q\n\n", a.LogFormat)

	b.WriteString("metrics:\n")
	fmt.Fprintf(&b, "  enabled: %t\n", a.EnableMetrics)
	b.WriteString("  path: \"/metrics\"\n")
	return b.String()
}

func yes(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		// On EOF or error, return default
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
