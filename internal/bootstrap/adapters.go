package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/lotledger/lotledger/config"
	"github.com/lotledger/lotledger/internal/adapters/idp"
	"github.com/lotledger/lotledger/internal/adapters/reaper"
	"github.com/lotledger/lotledger/internal/core"
	"github.com/lotledger/lotledger/internal/data/cryptoutil"
	"github.com/lotledger/lotledger/internal/observability/statsd"
	"github.com/lotledger/lotledger/internal/service"
)

// MigrationConfig contains configuration for the credential migration service.
type MigrationConfig struct {
	Migration  config.MigrationConfig
	Identities core.IdentityRepository
	Vault      *cryptoutil.Vault
	PageSize   int
	Metrics    statsd.Sink
	Logger     *slog.Logger
}

// BuildMigrationService creates the credential migration service backed by
// the identity provider client. Returns nil when no provider is configured.
func BuildMigrationService(cfg MigrationConfig) (*service.CredentialMigrationService, error) {
	if !cfg.Migration.Enabled() {
		return nil, nil
	}

	client, err := idp.NewClient(idp.Config{
		Endpoint:   cfg.Migration.ProviderURL,
		APIKey:     cfg.Migration.ProviderAPIKey,
		IDPath:     cfg.Migration.ProviderIDPath,
		HTTPClient: &http.Client{Timeout: cfg.Migration.Timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("create identity provider client: %w", err)
	}

	settings := service.MigrationSettings{PageSize: cfg.PageSize, Metrics: cfg.Metrics, Logger: cfg.Logger}
	if cfg.Vault != nil {
		settings.Vault = cfg.Vault
	}
	return service.NewCredentialMigrationService(service.CredentialMigrationServiceOptions{
		Identities: cfg.Identities,
		Provider:   client,
		Settings:   settings,
	}), nil
}

// BuildMetricsSink dials the StatsD agent when metrics are enabled. A dial
// failure is logged and metrics stay off; it never blocks startup.
func BuildMetricsSink(cfg config.ObservabilityMetricsConfig, logger *slog.Logger) *statsd.Client {
	if !cfg.IsEnabled() {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := statsd.NewClient(statsd.Config{
		Address: cfg.StatsdAddress,
		Prefix:  cfg.Prefix,
		Logger:  logger.With("component", "metrics"),
	})
	if err != nil {
		logger.Error("failed to initialise statsd client", "error", err)
		return nil
	}
	return client
}

// ReaperConfig contains configuration for the session reaper.
type ReaperConfig struct {
	Store   reaper.Sweeper
	Auth    config.AuthConfig
	Metrics statsd.Sink
	Logger  *slog.Logger
}

// RunReaper starts the session reaper and blocks until ctx is cancelled.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		Store:    cfg.Store,
		Interval: cfg.Auth.SessionSweepInterval,
		Logger:   cfg.Logger,
		Metrics:  cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}

	return runner.Run(ctx)
}
