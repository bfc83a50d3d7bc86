package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/lotledger/lotledger/config"
	"github.com/lotledger/lotledger/internal/adapters/devauth"
	"github.com/lotledger/lotledger/internal/adapters/memstore"
	"github.com/lotledger/lotledger/internal/adapters/oidc"
	redisadapter "github.com/lotledger/lotledger/internal/adapters/redis"
	"github.com/lotledger/lotledger/internal/core"
	"github.com/lotledger/lotledger/internal/data/cryptoutil"
	"github.com/lotledger/lotledger/internal/observability/statsd"
	"github.com/lotledger/lotledger/internal/ports"
	"github.com/lotledger/lotledger/internal/service"
)

// SessionStores is the result of BuildSessionStore. Sweeper is set only for
// backends that do not expire records on their own.
type SessionStores struct {
	Store   ports.SessionStore
	Sweeper *memstore.SessionStore
}

// BuildSessionStore selects the session backend.
func BuildSessionStore(cfg config.AppConfig, client redis.UniversalClient) (SessionStores, error) {
	switch cfg.Auth.SessionBackend {
	case config.SessionBackendMemory:
		mem := memstore.NewSessionStore()
		return SessionStores{Store: mem, Sweeper: mem}, nil
	case config.SessionBackendRedis, "":
		if client == nil {
			return SessionStores{}, errors.New("redis session backend selected but redis client not configured")
		}
		return SessionStores{Store: redisadapter.NewSessionStoreWithPrefix(client, cfg.Redis.KeyPrefix)}, nil
	default:
		return SessionStores{}, fmt.Errorf("unknown session backend %q", cfg.Auth.SessionBackend)
	}
}

// BuildSSOProvider returns the OIDC provider, or nil when SSO is not configured.
// In dev mode a configured DevSubject selects the local dev provider instead.
//
//nolint:ireturn // nil interface signals SSO disabled.
func BuildSSOProvider(ctx context.Context, cfg config.OAuthConfig, dev bool, logger *slog.Logger) (ports.AuthProvider, error) {
	if dev && cfg.DevSubject != "" {
		if logger != nil {
			logger.WarnContext(ctx, "using dev sso provider", "subject", cfg.DevSubject)
		}
		prov, err := devauth.NewProvider(devauth.Config{Subject: cfg.DevSubject})
		if err != nil {
			return nil, fmt.Errorf("create dev sso provider: %w", err)
		}
		return prov, nil
	}
	if !cfg.Enabled() {
		if logger != nil {
			logger.InfoContext(ctx, "sso disabled: discovery url or client id not configured")
		}
		return nil, nil
	}

	prov, err := oidc.NewProvider(ctx, oidc.ProviderConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scope:        cfg.Scope,
		DiscoveryURL: cfg.DiscoveryURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create oidc provider: %w", err)
	}
	return prov, nil
}

// AuthConfig contains configuration for the auth service.
type AuthConfig struct {
	Auth       config.AuthConfig
	Identities core.IdentityRepository
	Sessions   ports.SessionStore
	Vault      *cryptoutil.Vault
	SSO        ports.AuthProvider
	Metrics    statsd.Sink
	Logger     *slog.Logger
}

// BuildAuthService wires the session authenticator.
func BuildAuthService(cfg AuthConfig) *service.AuthService {
	settings := service.AuthSettings{
		SessionTTL:   cfg.Auth.SessionTTL,
		GuestEnabled: cfg.Auth.GuestEnabled,
		Metrics:      cfg.Metrics,
		Logger:       cfg.Logger,
	}
	if cfg.Vault != nil {
		settings.Vault = cfg.Vault
	}
	if cfg.SSO != nil {
		settings.SSO = cfg.SSO
	}
	return service.NewAuthService(service.AuthServiceOptions{
		Identities: cfg.Identities,
		Sessions:   cfg.Sessions,
		Settings:   settings,
	})
}
