package bootstrap

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotledger/lotledger/config"
)

func memoryConfig() *config.AppConfig {
	cfg := &config.AppConfig{
		Auth: config.AuthConfig{
			SessionBackend:       config.SessionBackendMemory,
			SessionSweepInterval: time.Minute,
			CookieName:           "session_id",
			Vault:                config.VaultConfig{N: 2, R: 1, P: 1, KeyLen: 16},
		},
		HTTP: config.HTTPConfig{CookieSecure: true},
	}
	cfg.Sanitize()
	return cfg
}

func TestNewServices(t *testing.T) {
	cfg := memoryConfig()
	svcs, err := NewServices(&ServiceDeps{Config: cfg, Logger: slog.Default()})
	require.NoError(t, err)

	assert.NotNil(t, svcs.Auth)
	assert.NotNil(t, svcs.Lots)
	assert.NotNil(t, svcs.Items)
	assert.NotNil(t, svcs.Bids)
	assert.NotNil(t, svcs.Identities)
	assert.Nil(t, svcs.Migration, "migration needs an identity provider url")
	assert.NotNil(t, svcs.Sessions.Sweeper)
}

func TestNewServicesWithIdentityProvider(t *testing.T) {
	cfg := memoryConfig()
	cfg.Migration = config.MigrationConfig{ProviderURL: "http://idp.invalid/users", ProviderIDPath: "id", Timeout: time.Second}

	svcs, err := NewServices(&ServiceDeps{Config: cfg})
	require.NoError(t, err)
	assert.NotNil(t, svcs.Migration)
}

func TestNewServicesRequiresConfig(t *testing.T) {
	_, err := NewServices(&ServiceDeps{})
	require.Error(t, err)
}

func TestBackgroundServices(t *testing.T) {
	cfg := memoryConfig()
	svcs, err := NewServices(&ServiceDeps{Config: cfg})
	require.NoError(t, err)

	names := func(list []backgroundService) []string {
		out := make([]string, 0, len(list))
		for _, s := range list {
			out = append(out, s.name)
		}
		return out
	}

	got := backgroundServices(&ServiceOrchestrationConfig{Config: cfg, Services: svcs}, slog.Default())
	assert.Equal(t, []string{"http server", "session reaper"}, names(got))

	svcs.Sessions.Sweeper = nil
	got = backgroundServices(&ServiceOrchestrationConfig{Config: cfg, Services: svcs}, slog.Default())
	assert.Equal(t, []string{"http server"}, names(got))
}

func TestRouterServicesDisablesSecureCookieInDev(t *testing.T) {
	t.Setenv("NODE_ENV", "production")
	cfg := memoryConfig()
	svcs, err := NewServices(&ServiceDeps{Config: cfg})
	require.NoError(t, err)

	rs := routerServices(&HTTPServerConfig{Config: cfg, Services: svcs}, slog.Default())
	assert.True(t, rs.Cookies.Secure)
	assert.Nil(t, rs.DB)

	cfg.IsDev = true
	rs = routerServices(&HTTPServerConfig{Config: cfg, Services: svcs}, slog.Default())
	assert.False(t, rs.Cookies.Secure)
}

func TestNewHTTPServerServesHealth(t *testing.T) {
	cfg := memoryConfig()
	svcs, err := NewServices(&ServiceDeps{Config: cfg})
	require.NoError(t, err)

	srv := NewHTTPServer(&HTTPServerConfig{Config: cfg, Services: svcs})
	assert.Equal(t, ":8080", srv.Addr)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunServicesWithShutdownStopsOnCancel(t *testing.T) {
	cfg := memoryConfig()
	cfg.HTTP.Addr = "127.0.0.1:0"
	svcs, err := NewServices(&ServiceDeps{Config: cfg})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- RunServicesWithShutdown(ctx, &ServiceOrchestrationConfig{Config: cfg, Services: svcs})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("services did not stop after cancellation")
	}
}

func TestBuildMetricsSink(t *testing.T) {
	assert.Nil(t, BuildMetricsSink(config.ObservabilityMetricsConfig{}, nil))

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	client := BuildMetricsSink(config.ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: pc.LocalAddr().String(),
		Prefix:        "lotledger",
	}, slog.Default())
	require.NotNil(t, client)
	require.NoError(t, client.Close())
}

func TestNewServicesWiresMetrics(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	cfg := memoryConfig()
	cfg.Observability.Metrics = config.ObservabilityMetricsConfig{Enabled: true, StatsdAddress: pc.LocalAddr().String(), Prefix: "lotledger"}
	svcs, err := NewServices(&ServiceDeps{Config: cfg})
	require.NoError(t, err)
	require.NotNil(t, svcs.Metrics)
	assert.NotNil(t, svcs.MetricsSink())
	require.NoError(t, svcs.Metrics.Close())

	cfg.Observability.Metrics = config.ObservabilityMetricsConfig{}
	svcs, err = NewServices(&ServiceDeps{Config: cfg})
	require.NoError(t, err)
	assert.Nil(t, svcs.MetricsSink())
}
