package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/lotledger/lotledger/internal/bootstrap"
	"github.com/lotledger/lotledger/internal/data"
	domainauth "github.com/lotledger/lotledger/internal/domain/auth"
	"github.com/lotledger/lotledger/internal/service"
)

type createIdentityOptions struct {
	Username      string
	DisplayNumber int
	Email         string
	Role          domainauth.Role
	Timeout       time.Duration
}

type migrateCredentialsOptions struct {
	DryRun      bool
	EmailDomain string
	Reconcile   map[int64]string
	Timeout     time.Duration
}

// readSecret reads one line from r without the trailing newline.
func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return "", errors.New("password must be provided on stdin")
	}
	return secret, nil
}

func runHashPassword(cmdCtx *commandContext, _ []string) error {
	secret, err := readSecret(cmdCtx.In)
	if err != nil {
		return err
	}
	vault, err := bootstrap.BuildVault(cmdCtx.Config.Auth.Vault, cmdCtx.Logger)
	if err != nil {
		return err
	}
	record, err := vault.Hash(secret)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return writeln(cmdCtx.Out, record)
}

func parseCreateIdentityFlags(cmdCtx *commandContext, args []string) (createIdentityOptions, error) {
	fs := flag.NewFlagSet("create-identity", flag.ContinueOnError)
	fs.SetOutput(cmdCtx.Err)

	var (
		opts createIdentityOptions
		role string
	)
	fs.StringVar(&opts.Username, "username", "", "Login name (required)")
	fs.IntVar(&opts.DisplayNumber, "display-number", 0, "Public number shown instead of the username")
	fs.StringVar(&opts.Email, "email", "", "Email used for credential migration")
	fs.StringVar(&role, "role", string(domainauth.RoleViewer), "One of admin, manager, viewer")
	fs.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "Maximum duration for the command")

	if err := fs.Parse(args); err != nil {
		return createIdentityOptions{}, err
	}
	opts.Username = strings.TrimSpace(opts.Username)
	if opts.Username == "" {
		return createIdentityOptions{}, errors.New("--username is required")
	}
	parsed, err := domainauth.ParseRole(role)
	if err != nil {
		return createIdentityOptions{}, err
	}
	opts.Role = parsed
	if opts.Timeout <= 0 {
		return createIdentityOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func runCreateIdentity(cmdCtx *commandContext, args []string) error {
	opts, err := parseCreateIdentityFlags(cmdCtx, args)
	if err != nil {
		return err
	}
	password, err := readSecret(cmdCtx.In)
	if err != nil {
		return err
	}
	vault, err := bootstrap.BuildVault(cmdCtx.Config.Auth.Vault, cmdCtx.Logger)
	if err != nil {
		return err
	}

	req := domainauth.CreateIdentityRequest{
		Username:      opts.Username,
		DisplayNumber: opts.DisplayNumber,
		Role:          opts.Role,
		Password:      password,
	}
	if opts.Email != "" {
		req.Email = &opts.Email
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		svc := service.NewIdentityService(service.IdentityServiceOptions{
			Identities: data.NewIdentityRepo(db),
			Vault:      vault,
			Logger:     cmdCtx.Logger,
		})
		ident, createErr := svc.Create(ctx, req)
		if createErr != nil {
			return fmt.Errorf("create identity: %w", createErr)
		}
		return writef(cmdCtx.Out, "created identity %d (%s, %s)\n", ident.ID, ident.Username, ident.Role)
	})
}

func parseMigrateCredentialsFlags(cmdCtx *commandContext, args []string) (migrateCredentialsOptions, error) {
	fs := flag.NewFlagSet("migrate-credentials", flag.ContinueOnError)
	fs.SetOutput(cmdCtx.Err)

	var reconcile string
	opts := migrateCredentialsOptions{}
	fs.StringVar(&reconcile, "reconcile", "",
		"Comma separated id=external_id pairs for accounts a previous run created but could not record")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Report what would migrate without contacting the provider")
	fs.StringVar(&opts.EmailDomain, "email-domain", cmdCtx.Config.Migration.EmailDomain,
		"Domain used to build username@domain for identities without an email")
	fs.DurationVar(&opts.Timeout, "timeout", defaultMigrationTimeout, "Maximum duration for the whole run")

	if err := fs.Parse(args); err != nil {
		return migrateCredentialsOptions{}, err
	}
	opts.EmailDomain = strings.TrimPrefix(strings.TrimSpace(opts.EmailDomain), "@")
	if opts.Timeout <= 0 {
		return migrateCredentialsOptions{}, errors.New("--timeout must be greater than zero")
	}
	known, err := parseReconcilePairs(reconcile)
	if err != nil {
		return migrateCredentialsOptions{}, err
	}
	opts.Reconcile = known
	return opts, nil
}

// parseReconcilePairs reads "1=ext-a,7=ext-b" into an identity id map.
func parseReconcilePairs(raw string) (map[int64]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	out := make(map[int64]string)
	for _, pair := range strings.Split(raw, ",") {
		idPart, ext, ok := strings.Cut(strings.TrimSpace(pair), "=")
		ext = strings.TrimSpace(ext)
		if !ok || ext == "" {
			return nil, fmt.Errorf("--reconcile entry %q must look like id=external_id", pair)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(idPart), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("--reconcile entry %q has an invalid identity id", pair)
		}
		if prev, dup := out[id]; dup && prev != ext {
			return nil, fmt.Errorf("--reconcile lists identity %d twice", id)
		}
		out[id] = ext
	}
	return out, nil
}

// formatReconcilePairs is the inverse of parseReconcilePairs, ordered by id.
func formatReconcilePairs(known map[int64]string) string {
	ids := make([]int64, 0, len(known))
	for id := range known {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%d=%s", id, known[id]))
	}
	return strings.Join(parts, ",")
}

func runMigrateCredentials(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateCredentialsFlags(cmdCtx, args)
	if err != nil {
		return err
	}
	if !cmdCtx.Config.Migration.Enabled() {
		return errors.New("identity provider not configured; set IDP_PROVIDER_URL")
	}
	vault, err := bootstrap.BuildVault(cmdCtx.Config.Auth.Vault, cmdCtx.Logger)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		svc, buildErr := bootstrap.BuildMigrationService(bootstrap.MigrationConfig{
			Migration:  cmdCtx.Config.Migration,
			Identities: data.NewIdentityRepo(db),
			Vault:      vault,
			PageSize:   cmdCtx.Config.Pagination.PageSize,
			Logger:     cmdCtx.Logger,
		})
		if buildErr != nil {
			return buildErr
		}

		report, runErr := svc.Run(ctx, service.MigrationOptions{
			DryRun:           opts.DryRun,
			EmailDomain:      opts.EmailDomain,
			KnownExternalIDs: opts.Reconcile,
		})
		if runErr != nil {
			return fmt.Errorf("migrate credentials: %w", runErr)
		}
		if printErr := printMigrationReport(cmdCtx.Out, report); printErr != nil {
			return printErr
		}
		return migrationFailure(report)
	})
}

func printMigrationReport(w io.Writer, report service.MigrationReport) error {
	mode := "live"
	if report.DryRun {
		mode = "dry run"
	}
	if err := writef(w, "Credential migration %s (%s)\n\n", report.RunID, mode); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "ID\tUSERNAME\tOUTCOME\tDETAIL"); err != nil {
		return fmt.Errorf("write report header row: %w", err)
	}
	for _, row := range report.Rows {
		detail := row.Reason
		if row.ExternalID != "" && row.Outcome != service.OutcomeFailed {
			detail = "external id " + row.ExternalID
		}
		if detail == "" {
			detail = "-"
		}
		if err := writef(tw, "%d\t%s\t%s\t%s\n", row.IdentityID, row.Username, row.Outcome, detail); err != nil {
			return fmt.Errorf("write report row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush report table: %w", err)
	}

	if err := writef(w, "\nmigrated: %d  skipped: %d  failed: %d\n",
		report.Count(service.OutcomeMigrated),
		report.Count(service.OutcomeSkipped),
		report.Count(service.OutcomeFailed),
	); err != nil {
		return err
	}
	if known := report.Reconcilable(); len(known) > 0 {
		return writef(w, "provider accounts exist for unrecorded rows; rerun with --reconcile %s\n",
			formatReconcilePairs(known))
	}
	return nil
}

// migrationFailure turns failed rows into a non-nil error so the process exits non-zero.
func migrationFailure(report service.MigrationReport) error {
	if !report.HasFailures() {
		return nil
	}
	return fmt.Errorf("%d identities failed to migrate", report.Count(service.OutcomeFailed))
}
