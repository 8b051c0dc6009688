// ABOUTME: Entry point for the jarvis-gateway assistant backend
// ABOUTME: Subcommands to serve, write a starter config and query a running gateway

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/jarvis-gateway/internal/config"
	"github.com/2389/jarvis-gateway/internal/gateway"
	"github.com/2389/jarvis-gateway/internal/plugins"
	"github.com/2389/jarvis-gateway/internal/sysinfo"
)

// version is overridden at link time with -ldflags "-X main.version=...".
var version = "dev"

const banner = `
     _                  _
    (_) __ _ _ ____   _(_)___
    | |/ _' | '__\ \ / / / __|
    | | (_| | |   \ V /| \__ \
   _/ |\__,_|_|    \_/ |_|___/
  |__/
`

// clientTimeout bounds the health and plugins subcommands.
const clientTimeout = 10 * time.Second

// getConfigPath returns the path to the gateway config file.
// Priority: JARVIS_CONFIG env var > XDG_CONFIG_HOME/jarvis/gateway.yaml > ~/.config/jarvis/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("JARVIS_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "jarvis", "gateway.yaml")
}

// getDataPath returns the path to the jarvis data directory.
// Priority: XDG_DATA_HOME/jarvis > ~/.local/share/jarvis
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "jarvis")
}

// loadConfig reads the config file, falling back to defaults when it does
// not exist. The boolean reports whether the file was found.
func loadConfig(path string) (*config.Config, bool, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), false, nil
	}
	return nil, false, fmt.Errorf("loading config: %w", err)
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: jarvis-gateway <command>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve     Start the gateway server")
	fmt.Fprintln(w, "  init      Create a new config file interactively")
	fmt.Fprintln(w, "  health    Show host telemetry from a running gateway")
	fmt.Fprintln(w, "  plugins   List capability handlers on a running gateway")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stdout)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit(os.Stdin, os.Stdout)
	case "health":
		err = runHealth(ctx, os.Stdout)
	case "plugins":
		err = runPlugins(ctx, os.Stdout)
	case "help", "-h", "--help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, found, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging, os.Stdout)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	if found {
		fmt.Printf("Config:    %s\n", configPath)
	} else {
		fmt.Printf("Config:    ")
		yellow.Printf("defaults (%s not found)\n", configPath)
	}
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Model:     ")
	if cfg.LLM.Configured() {
		fmt.Println(cfg.LLM.Model)
	} else {
		yellow.Println("limited mode (no API key)")
	}

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.HTTPS {
			yellow.Print(" [https]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}

	fmt.Println()

	logger.Info("starting jarvis-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"environment", cfg.Server.Environment,
	)

	gw, err := gateway.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

// gatewayURL is the base URL the client subcommands talk to.
func gatewayURL(cfg *config.Config) string {
	if cfg.Tailscale.Enabled {
		scheme := "http"
		if cfg.Tailscale.HTTPS {
			scheme = "https"
		}
		return scheme + "://" + cfg.Tailscale.Hostname
	}
	return "http://" + cfg.Server.HTTPAddr
}

// getJSON fetches path from the running gateway and decodes the body into v.
func getJSON(ctx context.Context, path string, v any) error {
	cfg, _, err := loadConfig(getConfigPath())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, clientTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, gatewayURL(cfg)+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func runHealth(ctx context.Context, out io.Writer) error {
	var snap sysinfo.Snapshot
	if err := getJSON(ctx, gateway.APIPrefix+"/system/health", &snap); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	printHealth(out, snap)
	return nil
}

func printHealth(out io.Writer, snap sysinfo.Snapshot) {
	green := color.New(color.FgGreen)
	green.Fprintln(out, "healthy")
	fmt.Fprintf(out, "  system:  %s\n", snap.System)
	fmt.Fprintf(out, "  cpu:     %.1f%%\n", snap.CPUUsage)
	fmt.Fprintf(out, "  memory:  %.1f%% (%.1f / %.1f GiB)\n", snap.MemoryUsage, sysinfo.GiB(snap.MemoryUsed), sysinfo.GiB(snap.MemoryTotal))
	fmt.Fprintf(out, "  disk:    %.1f%%\n", snap.DiskUsage)
	if snap.Error != "" {
		color.New(color.FgYellow).Fprintf(out, "  partial: %s\n", snap.Error)
	}
}

func runPlugins(ctx context.Context, out io.Writer) error {
	var list []plugins.Metadata
	if err := getJSON(ctx, gateway.APIPrefix+"/plugins", &list); err != nil {
		return fmt.Errorf("listing plugins: %w", err)
	}
	printPlugins(out, list)
	return nil
}

func printPlugins(out io.Writer, list []plugins.Metadata) {
	if len(list) == 0 {
		fmt.Fprintln(out, "no handlers registered")
		return
	}
	green := color.New(color.FgGreen)
	gray := color.New(color.FgHiBlack)
	for _, md := range list {
		if md.Enabled {
			green.Fprint(out, "● ")
		} else {
			gray.Fprint(out, "○ ")
		}
		fmt.Fprintf(out, "%-18s v%-7s priority %-4d %s\n", md.Name, md.Version, md.Priority, md.Description)
	}
}
