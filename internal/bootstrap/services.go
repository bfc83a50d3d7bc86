package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/lotledger/lotledger/config"
	"github.com/lotledger/lotledger/internal/data"
	"github.com/lotledger/lotledger/internal/data/cryptoutil"
	"github.com/lotledger/lotledger/internal/observability/statsd"
	"github.com/lotledger/lotledger/internal/ports"
	"github.com/lotledger/lotledger/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Auth       *service.AuthService
	Lots       *service.LotService
	Items      *service.ItemService
	Bids       *service.BidService
	Identities *service.IdentityService
	// Migration is nil when no identity provider is configured.
	Migration *service.CredentialMigrationService
	Sessions  SessionStores
	Vault     *cryptoutil.Vault
	// Metrics is nil when metrics are disabled.
	Metrics *statsd.Client
}

// MetricsSink returns Metrics as a statsd.Sink, or a nil interface when
// metrics are disabled.
//
//nolint:ireturn // nil interface signals metrics disabled.
func (c ServiceContainer) MetricsSink() statsd.Sink {
	if c.Metrics == nil {
		return nil
	}
	return c.Metrics
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	// SSO is optional; nil disables the single sign-on routes.
	SSO    ports.AuthProvider
	Logger *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	Lots       *data.LotRepo
	Items      *data.ItemRepo
	Bids       *data.BidRepo
	Identities *data.IdentityRepo
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(db *sql.DB) *serviceRepositories {
	return &serviceRepositories{
		Lots:       data.NewLotRepo(db),
		Items:      data.NewItemRepo(db),
		Bids:       data.NewBidRepo(db),
		Identities: data.NewIdentityRepo(db),
	}
}

// NewServices wires every business service against Postgres and the
// configured session backend.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service dependencies and config are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	vault, err := BuildVault(cfg.Auth.Vault, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	sessions, err := BuildSessionStore(*cfg, deps.RedisClient)
	if err != nil {
		return ServiceContainer{}, err
	}

	repos := buildRepositories(deps.DB)
	list := service.ListSettings{PageSize: cfg.Pagination.PageSize, Logger: logger}
	container := ServiceContainer{
		Sessions: sessions,
		Vault:    vault,
		Metrics:  BuildMetricsSink(cfg.Observability.Metrics, logger),
	}
	sink := container.MetricsSink()

	migration, err := BuildMigrationService(MigrationConfig{
		Migration:  cfg.Migration,
		Identities: repos.Identities,
		Vault:      vault,
		PageSize:   cfg.Pagination.PageSize,
		Metrics:    sink,
		Logger:     logger,
	})
	if err != nil {
		closeMetrics(container.Metrics, logger)
		return ServiceContainer{}, err
	}

	container.Auth = BuildAuthService(AuthConfig{
		Auth:       cfg.Auth,
		Identities: repos.Identities,
		Sessions:   sessions.Store,
		Vault:      vault,
		SSO:        deps.SSO,
		Metrics:    sink,
		Logger:     logger,
	})
	container.Lots = service.NewLotService(service.LotServiceOptions{
		Lots:     repos.Lots,
		Items:    repos.Items,
		Settings: list,
	})
	container.Items = service.NewItemService(service.ItemServiceOptions{
		Items:    repos.Items,
		Lots:     repos.Lots,
		Settings: list,
	})
	container.Bids = service.NewBidService(service.BidServiceOptions{
		Bids:     repos.Bids,
		Items:    repos.Items,
		Settings: list,
	})
	container.Identities = service.NewIdentityService(service.IdentityServiceOptions{
		Identities: repos.Identities,
		Vault:      vault,
		Logger:     logger,
	})
	container.Migration = migration
	return container, nil
}

func closeMetrics(client *statsd.Client, logger *slog.Logger) {
	if err := client.Close(); err != nil {
		logger.Warn("statsd close failed", "error", err)
	}
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	DB       *sql.DB
	Logger   *slog.Logger
}

// backgroundService describes a long-running component. start blocks until
// ctx is cancelled.
type backgroundService struct {
	name  string
	start func(context.Context) error
}

// backgroundServices lists the components to run for cfg.
func backgroundServices(cfg *ServiceOrchestrationConfig, logger *slog.Logger) []backgroundService {
	httpCfg := &HTTPServerConfig{
		Config:   cfg.Config,
		Services: cfg.Services,
		Logger:   logger,
	}
	if cfg.DB != nil {
		httpCfg.DB = cfg.DB
	}

	services := []backgroundService{{
		name: "http server",
		start: func(ctx context.Context) error {
			return ServeHTTP(ctx, httpCfg)
		},
	}}

	if sweeper := cfg.Services.Sessions.Sweeper; sweeper != nil {
		services = append(services, backgroundService{
			name: "session reaper",
			start: func(ctx context.Context) error {
				return RunReaper(ctx, ReaperConfig{
					Store:   sweeper,
					Auth:    cfg.Config.Auth,
					Metrics: cfg.Services.MetricsSink(),
					Logger:  logger,
				})
			},
		})
	}
	return services
}

// RunServicesWithShutdown runs every background service until a signal
// arrives or one of them fails, then waits for the rest to stop.
func RunServicesWithShutdown(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("service orchestration config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer closeMetrics(cfg.Services.Metrics, logger)

	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range backgroundServices(cfg, logger) {
		g.Go(func() error {
			logger.InfoContext(gctx, "background service started", "service", svc.name)
			if err := svc.start(gctx); err != nil {
				return fmt.Errorf("%s failed: %w", svc.name, err)
			}
			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		logger.ErrorContext(ctx, "service stopped with error", "error", err)
		return err
	}
	logger.InfoContext(ctx, "all services stopped")
	return nil
}
