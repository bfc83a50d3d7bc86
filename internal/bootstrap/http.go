package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lotledger/lotledger/config"
	httpx "github.com/lotledger/lotledger/internal/http"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	// DB backs /healthz when set.
	DB     httpx.Pinger
	Logger *slog.Logger
}

// routerServices maps the container and config onto the router's inputs.
func routerServices(cfg *HTTPServerConfig, logger *slog.Logger) httpx.RouterServices {
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	secure := appCfg.HTTP.CookieSecure
	if appCfg.IsDev {
		secure = false
	}

	rs := httpx.RouterServices{
		Auth:       cfg.Services.Auth,
		Lots:       cfg.Services.Lots,
		Items:      cfg.Services.Items,
		Bids:       cfg.Services.Bids,
		Identities: cfg.Services.Identities,
		Migration:  cfg.Services.Migration,
		Cookies: httpx.CookieSettings{
			Name:   appCfg.Auth.CookieName,
			Domain: appCfg.HTTP.CookieDomain,
			Secure: secure,
		},
		SSOCallbackURL: appCfg.Auth.SSO.RedirectURL,
		EmailDomain:    appCfg.Migration.EmailDomain,
		MaxBodyBytes:   appCfg.HTTP.MaxBodyBytes,
		Metrics:        cfg.Services.MetricsSink(),
		Logger:         logger,
	}
	// Avoid storing a typed nil in the interface.
	if cfg.DB != nil {
		rs.DB = cfg.DB
	}
	return rs
}

// NewHTTPServer builds the server without starting it.
func NewHTTPServer(cfg *HTTPServerConfig) *http.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	addr := appCfg.HTTP.Addr
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}

	return &http.Server{
		Addr:              addr,
		Handler:           httpx.NewRouter(routerServices(cfg, logger)),
		ReadTimeout:       appCfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      appCfg.HTTP.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}
}

// ServeHTTP runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully within the configured shutdown timeout.
func ServeHTTP(ctx context.Context, cfg *HTTPServerConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	server := NewHTTPServer(cfg)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := 15 * time.Second
	if cfg.Config != nil && cfg.Config.HTTP.ShutdownTimeout > 0 {
		timeout = cfg.Config.HTTP.ShutdownTimeout
	}
	return ShutdownHTTPServer(ShutdownConfig{Server: server, Timeout: timeout, Logger: logger})
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Server  *http.Server
	Timeout time.Duration
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	// A fresh context: the caller's is already cancelled.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}

	return nil
}
