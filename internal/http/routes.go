package httpx

import (
	"log/slog"
	"net/http"

	domainauth "github.com/lotledger/lotledger/internal/domain/auth"
	"github.com/lotledger/lotledger/internal/observability/statsd"
	"github.com/lotledger/lotledger/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth       *service.AuthService
	Lots       *service.LotService
	Items      *service.ItemService
	Bids       *service.BidService
	Identities *service.IdentityService
	// Optional: credential migration is only routed when set.
	Migration *service.CredentialMigrationService
	// Optional: health checks ping the database when set.
	DB Pinger

	Policy         domainauth.Policy
	Cookies        CookieSettings
	SSOCallbackURL string
	EmailDomain    string
	MaxBodyBytes   int64
	Metrics        statsd.Sink
	Logger         *slog.Logger
}

// NewRouter creates and configures the HTTP router. Every /api route passes
// through the session guard for its operation.
func NewRouter(services RouterServices) http.Handler {
	if services.Auth == nil {
		panic("NewRouter: Auth service is required") //nolint:forbidigo // Fail fast during server setup.
	}
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policy := services.Policy
	if policy == nil {
		policy = domainauth.DefaultPolicy()
	}

	mux := http.NewServeMux()
	guard := &SessionGuard{
		Auth:       services.Auth,
		Policy:     policy,
		CookieName: services.Cookies.Name,
		Logger:     logger,
	}

	registerAuthRoutes(mux, &AuthHandlers{
		Svc:            services.Auth,
		Cookies:        services.Cookies,
		SSOCallbackURL: services.SSOCallbackURL,
		Logger:         logger,
	})
	registerLotRoutes(mux, guard, &LotHandlers{Svc: services.Lots, Logger: logger})
	registerItemRoutes(mux, guard, &ItemHandlers{Svc: services.Items, Logger: logger})
	registerBidRoutes(mux, guard, &BidHandlers{Svc: services.Bids, Logger: logger})
	registerAdminRoutes(mux, guard, &AdminHandlers{
		Identities: services.Identities,
		Migration:  services.Migration,
		Settings:   AdminSettings{EmailDomain: services.EmailDomain, Logger: logger},
	})

	health := &HealthHandler{DB: services.DB}
	mux.Handle("GET /healthz", health)
	mux.Handle("HEAD /healthz", health)

	return Chain(mux,
		Recover(logger),
		RequestID(),
		Logging(logger),
		LimitBody(services.MaxBodyBytes),
		Metrics(services.Metrics),
	)
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("POST /auth/login", h.Login)
	mux.HandleFunc("POST /auth/guest", h.Guest)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("GET /auth/status", h.Status)
	mux.HandleFunc("GET /auth/sso/login", h.SSOLogin)
	mux.HandleFunc("GET /auth/sso/callback", h.SSOCallback)
}

func registerLotRoutes(mux *http.ServeMux, g *SessionGuard, h *LotHandlers) {
	if h.Svc == nil {
		return
	}
	mux.Handle("GET /api/lots", g.Require(domainauth.OpLotsList, h.List))
	mux.Handle("POST /api/lots", g.Require(domainauth.OpLotsCreate, h.Create))
	mux.Handle("GET /api/lots/{id}", g.Require(domainauth.OpLotsGet, h.GetByID))
	mux.Handle("PUT /api/lots/{id}", g.Require(domainauth.OpLotsUpdate, h.Update))
	mux.Handle("DELETE /api/lots/{id}", g.Require(domainauth.OpLotsDelete, h.Delete))
	mux.Handle("POST /api/lots/{id}/lock", g.Require(domainauth.OpLotsLock, h.Lock))
}

func registerItemRoutes(mux *http.ServeMux, g *SessionGuard, h *ItemHandlers) {
	if h.Svc == nil {
		return
	}
	mux.Handle("GET /api/lots/{id}/items", g.Require(domainauth.OpItemsList, h.ListByLot))
	mux.Handle("POST /api/lots/{id}/items", g.Require(domainauth.OpItemsCreate, h.Create))
	mux.Handle("GET /api/lots/{id}/checklist", g.Require(domainauth.OpChecklistView, h.Checklist))
	mux.Handle("GET /api/items/mine", g.Require(domainauth.OpItemsMine, h.Mine))
	mux.Handle("PUT /api/items/{id}", g.Require(domainauth.OpItemsUpdate, h.Update))
	mux.Handle("DELETE /api/items/{id}", g.Require(domainauth.OpItemsDelete, h.Delete))
	mux.Handle("POST /api/items/{id}/cancel", g.Require(domainauth.OpItemsCancel, h.Cancel))
	mux.Handle("PUT /api/items/{id}/checklist", g.Require(domainauth.OpChecklistSet, h.SetChecklist))
}

func registerBidRoutes(mux *http.ServeMux, g *SessionGuard, h *BidHandlers) {
	if h.Svc == nil {
		return
	}
	mux.Handle("GET /api/items/{id}/bids", g.Require(domainauth.OpBidsList, h.ListByItem))
	mux.Handle("POST /api/items/{id}/bids", g.Require(domainauth.OpBidsCreate, h.Create))
}

func registerAdminRoutes(mux *http.ServeMux, g *SessionGuard, h *AdminHandlers) {
	if h.Identities != nil {
		mux.Handle("POST /api/admin/identities", g.Require(domainauth.OpIdentitiesCreate, h.CreateIdentity))
	}
	if h.Migration != nil {
		mux.Handle("POST /api/admin/credentials/migrate", g.Require(domainauth.OpCredentialsMigrate, h.MigrateCredentials))
	}
}
