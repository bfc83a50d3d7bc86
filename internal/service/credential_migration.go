package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/lotledger/lotledger/internal/core"
	"github.com/lotledger/lotledger/internal/data/cryptoutil"
	"github.com/lotledger/lotledger/internal/data/cursor"
	domainauth "github.com/lotledger/lotledger/internal/domain/auth"
	"github.com/lotledger/lotledger/internal/domain/model"
	"github.com/lotledger/lotledger/internal/observability/metrics"
	"github.com/lotledger/lotledger/internal/observability/statsd"
	"github.com/lotledger/lotledger/internal/ports"
)

// MigrationOutcome classifies what happened to one identity.
type MigrationOutcome string

const (
	OutcomeMigrated MigrationOutcome = "migrated"
	OutcomeSkipped  MigrationOutcome = "skipped"
	OutcomeFailed   MigrationOutcome = "failed"
)

// Skip reasons reported by CredentialMigrationService.
const (
	ReasonCredentialMissing = "credential missing"
	ReasonAlreadyMigrated   = "already migrated"
	ReasonAlreadyHashed     = "credential already hashed"
	ReasonNoEmail           = "no email"
	ReasonWouldMigrate      = "would migrate"
)

// RowResult is the outcome for one identity.
type RowResult struct {
	IdentityID int64            `json:"identity_id"`
	Username   string           `json:"username"`
	Outcome    MigrationOutcome `json:"outcome"`
	Reason     string           `json:"reason,omitempty"`
	ExternalID string           `json:"external_id,omitempty"`
}

// MigrationReport lists one row per scanned identity in id order.
type MigrationReport struct {
	RunID  string      `json:"run_id"`
	DryRun bool        `json:"dry_run"`
	Rows   []RowResult `json:"rows"`
}

// Count returns how many rows ended with outcome.
func (r MigrationReport) Count(outcome MigrationOutcome) int {
	n := 0
	for _, row := range r.Rows {
		if row.Outcome == outcome {
			n++
		}
	}
	return n
}

// HasFailures reports whether any row failed.
func (r MigrationReport) HasFailures() bool { return r.Count(OutcomeFailed) > 0 }

// Reconcilable returns the provider accounts created for rows that then
// failed to record, keyed by identity id. Feed it to
// MigrationOptions.KnownExternalIDs on the next run.
func (r MigrationReport) Reconcilable() map[int64]string {
	out := map[int64]string{}
	for _, row := range r.Rows {
		if row.Outcome == OutcomeFailed && row.ExternalID != "" {
			out[row.IdentityID] = row.ExternalID
		}
	}
	return out
}

// MigrationOptions controls a single run.
type MigrationOptions struct {
	DryRun bool
	// EmailDomain builds "<username>@<domain>" for identities without an email.
	EmailDomain string
	// KnownExternalIDs maps identity ids to provider accounts created by an
	// earlier run whose store write failed. Those rows are recorded against
	// the existing account instead of creating another one.
	KnownExternalIDs map[int64]string
}

// CredentialMigrationServiceOptions groups dependencies for CredentialMigrationService.
type CredentialMigrationServiceOptions struct {
	Identities core.IdentityRepository
	Provider   ports.IdentityProvider
	Settings   MigrationSettings
}

// MigrationSettings holds the optional knobs of CredentialMigrationService.
type MigrationSettings struct {
	// Vault defaults to cryptoutil.Default().
	Vault    cryptoutil.Hasher
	PageSize int
	Metrics  statsd.Sink
	Logger   *slog.Logger
}

// CredentialMigrationService moves identities that still hold a legacy
// plaintext credential to the external identity provider.
type CredentialMigrationService struct {
	identities core.IdentityRepository
	provider   ports.IdentityProvider
	vault      cryptoutil.Hasher
	pageSize   int
	metrics    statsd.Sink
	logger     *slog.Logger
}

// NewCredentialMigrationService constructs a new CredentialMigrationService.
func NewCredentialMigrationService(opts CredentialMigrationServiceOptions) *CredentialMigrationService {
	if opts.Identities == nil {
		panic("IdentityRepository is required")
	}
	if opts.Provider == nil {
		panic("IdentityProvider is required")
	}
	s := opts.Settings
	svc := &CredentialMigrationService{
		identities: opts.Identities,
		provider:   opts.Provider,
		vault:      s.Vault,
		pageSize:   ListSettings{PageSize: s.PageSize}.pageSize(),
		metrics:    s.Metrics,
		logger:     s.Logger,
	}
	if svc.vault == nil {
		svc.vault = cryptoutil.Default()
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// Run scans every identity in id order and migrates the eligible ones one at
// a time. Per-identity problems become report rows. A failure to read the
// identity store stops the run and is returned with the rows gathered so far.
func (s *CredentialMigrationService) Run(ctx context.Context, opts MigrationOptions) (MigrationReport, error) {
	report := MigrationReport{RunID: uuid.NewString(), DryRun: opts.DryRun, Rows: []RowResult{}}
	logger := s.logger.With("component", "credential_migration", "run_id", report.RunID, "dry_run", opts.DryRun)
	domain := strings.TrimPrefix(strings.TrimSpace(opts.EmailDomain), "@")

	seq := cursor.Iterate(ctx, cursor.Pager[domainauth.Identity]{
		Fetch: func(ctx context.Context, after *int64, limit int) ([]domainauth.Identity, error) {
			return s.identities.ListPage(ctx, model.PageQuery{After: after, Limit: limit})
		},
		Cursor:   domainauth.IdentityID,
		PageSize: s.pageSize,
	})
	for ident, err := range seq {
		if err != nil {
			logger.ErrorContext(ctx, "identity scan failed", "error", err, "processed", len(report.Rows))
			return report, fmt.Errorf("scan identities: %w", err)
		}
		row := s.migrateOne(ctx, ident, domain, opts)
		metrics.EmitMigrationRow(s.metrics, string(row.Outcome), opts.DryRun)
		if row.Outcome == OutcomeFailed {
			logger.WarnContext(ctx, "identity migration failed", "identity_id", row.IdentityID, "reason", row.Reason)
		}
		report.Rows = append(report.Rows, row)
	}

	logger.InfoContext(ctx, "credential migration finished",
		"migrated", report.Count(OutcomeMigrated),
		"skipped", report.Count(OutcomeSkipped),
		"failed", report.Count(OutcomeFailed),
	)
	return report, nil
}

func (s *CredentialMigrationService) migrateOne(ctx context.Context, ident domainauth.Identity, domain string, opts MigrationOptions) RowResult {
	row := RowResult{IdentityID: ident.ID, Username: ident.Username}
	skip := func(reason string) RowResult {
		row.Outcome, row.Reason = OutcomeSkipped, reason
		return row
	}
	fail := func(reason string) RowResult {
		row.Outcome, row.Reason = OutcomeFailed, reason
		return row
	}

	if !ident.HasCredential() {
		return skip(ReasonCredentialMissing)
	}
	if ident.ExternalID != nil && *ident.ExternalID != "" {
		return skip(ReasonAlreadyMigrated)
	}
	plaintext := *ident.Credential
	if cryptoutil.IsHashed(plaintext) {
		return skip(ReasonAlreadyHashed)
	}
	email := migrationEmail(ident, domain)
	if email == "" {
		return skip(ReasonNoEmail)
	}
	known := strings.TrimSpace(opts.KnownExternalIDs[ident.ID])
	if opts.DryRun {
		row.Outcome, row.Reason, row.ExternalID = OutcomeMigrated, ReasonWouldMigrate, known
		return row
	}

	record, err := s.vault.Hash(plaintext)
	if err != nil {
		return fail(fmt.Sprintf("hash credential: %v", err))
	}
	externalID := known
	if externalID == "" {
		if externalID, err = s.provider.CreateIdentity(ctx, email, plaintext); err != nil {
			return fail(fmt.Sprintf("create external identity: %v", err))
		}
	}
	if err := s.identities.UpdateMigrated(ctx, domainauth.MigratedCredential{
		IdentityID: ident.ID,
		Credential: record,
		ExternalID: externalID,
	}); err != nil {
		// The provider account exists now; keep its id so a rerun can
		// record it instead of creating a duplicate.
		row.ExternalID = externalID
		return fail(fmt.Sprintf("record migration for external id %s: %v", externalID, err))
	}
	row.Outcome, row.ExternalID = OutcomeMigrated, externalID
	return row
}

func migrationEmail(ident domainauth.Identity, domain string) string {
	if ident.Email != nil {
		if e := strings.TrimSpace(*ident.Email); e != "" {
			return e
		}
	}
	if domain == "" {
		return ""
	}
	return ident.Username + "@" + domain
}
