// ABOUTME: Gateway orchestrator that wires handlers, assistant, realtime hub and HTTP server
// ABOUTME: Manages listener setup (TCP or tailnet), store, and graceful shutdown

package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/jarvis-gateway/internal/assistant"
	"github.com/2389/jarvis-gateway/internal/builtins"
	"github.com/2389/jarvis-gateway/internal/config"
	"github.com/2389/jarvis-gateway/internal/llm"
	"github.com/2389/jarvis-gateway/internal/metrics"
	"github.com/2389/jarvis-gateway/internal/plugins"
	"github.com/2389/jarvis-gateway/internal/ratelimit"
	"github.com/2389/jarvis-gateway/internal/realtime"
	"github.com/2389/jarvis-gateway/internal/speech"
	"github.com/2389/jarvis-gateway/internal/store"
	"github.com/2389/jarvis-gateway/internal/sysinfo"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "jarvis-ai-v2"

// Version is reported by the root banner.
const Version = "2.0.0"

// shutdownTimeout bounds the graceful shutdown that follows cancellation of Run.
const shutdownTimeout = 5 * time.Second

// Gateway owns every long-lived component and the HTTP server in front of them.
type Gateway struct {
	config      *config.Config
	store       store.ConversationStore
	registry    *plugins.Registry
	assistant   *assistant.Service
	speech      *speech.Service
	probe       sysinfo.Probe
	hub         *realtime.Hub
	guard       *ratelimit.Guard
	metrics     *metrics.Metrics
	handler     http.Handler
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger
	now         func() time.Time

	shutdownOnce sync.Once
	shutdownErr  error
}

// Options overrides collaborators New would otherwise build from config.
// Zero fields are built from config.
type Options struct {
	Store      store.ConversationStore
	Provider   llm.Provider
	Probe      sysinfo.Probe
	Speech     *speech.Service
	HTTPClient *http.Client
	// Factories replaces the built-in handler table.
	Factories []plugins.Factory
	Now       func() time.Time
}

// New creates a Gateway with every collaborator built from cfg.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	return NewWithOptions(ctx, cfg, logger, Options{})
}

// NewWithOptions creates a Gateway, using the collaborators in opts where set.
// Handlers are discovered and loaded before it returns.
func NewWithOptions(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Gateway, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	proxies, err := ratelimit.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("server.trusted_proxies: %w", err)
	}

	s := opts.Store
	if s == nil {
		s, err = initStore(cfg)
		if err != nil {
			return nil, err
		}
	}

	provider := opts.Provider
	if provider == nil {
		provider, err = llm.New(ctx, cfg.LLM, logger.With("component", "llm"))
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("creating llm provider: %w", err)
		}
	}

	probe := opts.Probe
	if probe == nil {
		probe = sysinfo.NewCollector(sysinfo.CollectorConfig{Now: now, Logger: logger})
	}

	m := metrics.New()

	speechSvc := opts.Speech
	if speechSvc == nil {
		speechSvc, err = speech.New(cfg.Speech, m, logger)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("creating speech service: %w", err)
		}
	}

	registry := plugins.NewRegistry(logger)
	factories := opts.Factories
	if factories == nil {
		factories = builtins.Factories(builtins.Deps{
			News:       cfg.News,
			HTTPClient: opts.HTTPClient,
			Probe:      probe,
			Now:        now,
			Logger:     logger,
		})
	}
	registry.DiscoverAndLoad(ctx, factories)
	for _, name := range cfg.Assistant.DisabledHandlers {
		if !registry.Disable(name) {
			logger.Warn("disabled_handlers names an unknown handler", "handler", name)
		}
	}

	dispatcher := plugins.NewDispatcher(plugins.DispatcherConfig{
		Registry: registry,
		Logger:   logger,
		Observer: m,
	})

	gw := &Gateway{
		config:   cfg,
		store:    s,
		registry: registry,
		speech:   speechSvc,
		probe:    probe,
		metrics:  m,
		logger:   logger.With("component", "gateway"),
		now:      now,
	}

	gw.assistant = assistant.NewService(assistant.Config{
		Dispatcher:        dispatcher,
		Provider:          provider,
		ReportHandlerName: cfg.Assistant.ReportsHandlerName(),
		FallbackTimeout:   cfg.Assistant.FallbackTimeout,
		Observer:          m,
		Logger:            logger,
		Now:               now,
	})

	gw.hub = realtime.NewHub(realtime.HubConfig{
		Responder:      gw.assistant,
		Probe:          probe,
		Interval:       cfg.Realtime.MetricsInterval,
		OriginPatterns: originPatterns(cfg.Server.Origins()),
		Recorder:       gw.recorder(ChannelWebSocket),
		Observer:       m,
		Logger:         logger,
		Now:            now,
	})

	gw.guard = ratelimit.NewGuard(ratelimit.GuardConfig{
		Chat:        ratelimit.NewLimiter(cfg.RateLimit.ChatPerWindow, cfg.RateLimit.Window, now),
		General:     ratelimit.NewLimiter(cfg.RateLimit.GeneralPerWindow, cfg.RateLimit.Window, now),
		ExemptPaths: []string{cfg.Metrics.Path},
		Proxies:     proxies,
		Observer:    m,
		Logger:      logger,
		Now:         now,
	})
	m.TrackClients(gw.guard.Clients)

	gw.handler = gw.middleware(gw.routes())
	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	gw.logger.Info("gateway initialized",
		"handlers", registry.Len(),
		"llm_configured", llm.IsConfigured(provider),
		"environment", cfg.Server.Environment,
	)
	return gw, nil
}

// initStore opens the configured conversation store.
func initStore(cfg *config.Config) (store.ConversationStore, error) {
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// originPatterns converts allowed origins into the host patterns the
// websocket handshake checks.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			out = append(out, o)
			continue
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
		}
	}
	return out
}

// Handler returns the complete middleware-wrapped HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// Hub returns the realtime hub.
func (g *Gateway) Hub() *realtime.Hub {
	return g.hub
}

// Registry returns the handler registry.
func (g *Gateway) Registry() *plugins.Registry {
	return g.registry
}

// setupTCPListener creates a standard TCP listener for HTTP.
func (g *Gateway) setupTCPListener() (net.Listener, error) {
	g.logger.Info("starting gateway", "http_addr", g.config.Server.HTTPAddr)
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// setupListener creates the listener based on configuration (Tailscale or TCP).
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", g.config.Server.HTTPAddr)
		}
		return g.setupTailscaleListener(ctx)
	}
	return g.setupTCPListener()
}

// Run serves HTTP until ctx is canceled or the server fails, then shuts
// everything down. It returns nil after a clean shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		defer cancel()
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		g.logger.Info("context canceled, initiating shutdown")
		return g.gracefulShutdown()
	})

	return eg.Wait()
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "jarvis", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListener joins the tailnet and listens on :80, or :443 with
// tailnet certificates when HTTPS is enabled.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	g.logTailscaleStatus(tsCfg.Hostname, status)

	if tsCfg.HTTPS {
		return g.createTailscaleTLSListener()
	}
	ln, err := g.tsnetServer.Listen("tcp", ":80")
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
	}
	return ln, nil
}

// logTailscaleStatus logs info about the tailscale node status.
func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	g.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

// createTailscaleTLSListener creates a TLS listener using Tailscale's auto-provisioned certs.
func (g *Gateway) createTailscaleTLSListener() (net.Listener, error) {
	g.logger.Info("enabling HTTPS with Tailscale certs on :443")
	ln, err := g.tsnetServer.Listen("tcp", ":443")
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	lc, err := g.tsnetServer.LocalClient()
	if err != nil {
		_ = ln.Close()
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("getting tailscale local client: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: lc.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}), nil
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown gracefully stops the HTTP server and releases every component.
// Later calls return the first call's result.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.shutdownOnce.Do(func() {
		g.logger.Info("shutting down gateway")

		var errs []error
		errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

		// Hijacked websocket connections are not tracked by the HTTP server.
		g.hub.Close()
		g.registry.Close(ctx)

		if g.tsnetServer != nil {
			errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
		}
		errs = appendCloseError(errs, "store close", g.store.Close())

		g.shutdownErr = errors.Join(errs...)
	})
	return g.shutdownErr
}
