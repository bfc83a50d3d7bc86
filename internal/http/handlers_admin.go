package httpx

import (
	"log/slog"
	"net/http"
	"strings"

	domainauth "github.com/lotledger/lotledger/internal/domain/auth"
	"github.com/lotledger/lotledger/internal/service"
)

// AdminHandlers serves identity provisioning and credential migration.
type AdminHandlers struct {
	Identities *service.IdentityService
	// Migration is nil when no identity provider is configured.
	Migration *service.CredentialMigrationService
	Settings  AdminSettings
}

// AdminSettings holds defaults for admin operations.
type AdminSettings struct {
	// EmailDomain is used for identities without an email unless the
	// request supplies ?email_domain.
	EmailDomain string
	Logger      *slog.Logger
}

func (h *AdminHandlers) logger() *slog.Logger {
	if h.Settings.Logger == nil {
		return slog.Default()
	}
	return h.Settings.Logger
}

// CreateIdentity handles POST /api/admin/identities.
func (h *AdminHandlers) CreateIdentity(w http.ResponseWriter, r *http.Request) {
	var req domainauth.CreateIdentityRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	ident, err := h.Identities.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	WriteOK(w, http.StatusCreated, "identity", ident)
}

// migrateCredentialsRequest is the optional body of a migration run.
type migrateCredentialsRequest struct {
	// KnownExternalIDs is the "reconcilable" map of an earlier report.
	KnownExternalIDs map[int64]string `json:"known_external_ids"`
}

// MigrateCredentials handles POST /api/admin/credentials/migrate[?dry_run=true].
// The body is optional. The report is returned even when rows failed; a
// failed identity scan yields an error response.
func (h *AdminHandlers) MigrateCredentials(w http.ResponseWriter, r *http.Request) {
	dryRun, err := boolQuery(r, "dry_run", false)
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	var req migrateCredentialsRequest
	if r.ContentLength != 0 && !DecodeJSON(w, r, &req) {
		return
	}
	domain := h.Settings.EmailDomain
	if v := strings.TrimSpace(r.URL.Query().Get("email_domain")); v != "" {
		domain = v
	}

	report, err := h.Migration.Run(r.Context(), service.MigrationOptions{
		DryRun:           dryRun,
		EmailDomain:      domain,
		KnownExternalIDs: req.KnownExternalIDs,
	})
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"ok":           true,
		"report":       report,
		"reconcilable": report.Reconcilable(),
		"summary": map[string]int{
			"migrated": report.Count(service.OutcomeMigrated),
			"skipped":  report.Count(service.OutcomeSkipped),
			"failed":   report.Count(service.OutcomeFailed),
		},
	})
}
