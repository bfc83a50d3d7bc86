package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lotledger/lotledger/internal/bootstrap"
	"github.com/lotledger/lotledger/internal/devseed"
)

var errAborted = errors.New("aborted by user")

type migrateOptions struct {
	Timeout time.Duration
}

type dbResetOptions struct {
	Timeout     time.Duration
	Yes         bool
	AllowRemote bool
	Seed        bool
}

type dbSeedOptions struct {
	Timeout     time.Duration
	AllowRemote bool
}

// dbFlagSet returns a flag set that already carries -timeout.
func dbFlagSet(cmdCtx *commandContext, name string, timeout *time.Duration, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cmdCtx.Err)
	fs.DurationVar(timeout, "timeout", defaultMigrationTimeout, usage)
	return fs
}

func parseWithTimeout(fs *flag.FlagSet, args []string, timeout *time.Duration) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *timeout <= 0 {
		return errors.New("--timeout must be greater than zero")
	}
	return nil
}

func parseMigrateFlags(cmdCtx *commandContext, args []string) (migrateOptions, error) {
	var opts migrateOptions
	fs := dbFlagSet(cmdCtx, "migrate", &opts.Timeout, "Maximum duration to wait for migrations to complete")
	if err := parseWithTimeout(fs, args, &opts.Timeout); err != nil {
		return migrateOptions{}, err
	}
	return opts, nil
}

func parseDBResetFlags(cmdCtx *commandContext, args []string) (dbResetOptions, error) {
	var opts dbResetOptions
	fs := dbFlagSet(cmdCtx, "db-reset", &opts.Timeout, "Maximum duration for drop, migrate and optional seed")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")
	fs.BoolVar(&opts.AllowRemote, "allow-remote", false, "Permit running against database hosts that do not look local")
	fs.BoolVar(&opts.Seed, "seed", false, "Load development data after migrating")
	if err := parseWithTimeout(fs, args, &opts.Timeout); err != nil {
		return dbResetOptions{}, err
	}
	return opts, nil
}

func parseDBSeedFlags(cmdCtx *commandContext, args []string) (dbSeedOptions, error) {
	var opts dbSeedOptions
	fs := dbFlagSet(cmdCtx, "db-seed", &opts.Timeout, "Maximum duration for seeding")
	fs.BoolVar(&opts.AllowRemote, "allow-remote", false, "Permit running against database hosts that do not look local")
	if err := parseWithTimeout(fs, args, &opts.Timeout); err != nil {
		return dbSeedOptions{}, err
	}
	return opts, nil
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(cmdCtx, args)
	if err != nil {
		return err
	}
	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		return applyMigrations(ctx, cmdCtx, db)
	})
}

func applyMigrations(ctx context.Context, cmdCtx *commandContext, db *sql.DB) error {
	cmdCtx.Logger.InfoContext(ctx, "applying schema migrations", "database", cmdCtx.Config.Postgres.Name)
	if err := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	cmdCtx.Logger.InfoContext(ctx, "schema is up to date")
	return nil
}

func runDBReset(cmdCtx *commandContext, args []string) error {
	opts, err := parseDBResetFlags(cmdCtx, args)
	if err != nil {
		return err
	}
	if _, err = guardRemoteHost(cmdCtx, opts.AllowRemote, "drop and recreate the public schema"); err != nil {
		return err
	}
	if !opts.Yes {
		pg := cmdCtx.Config.Postgres
		target := fmt.Sprintf("database %q on %s:%d", pg.Name, pg.Host, pg.Port)
		if err = confirmAction(cmdCtx, "reset database schema", target); err != nil {
			return err
		}
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		if resetErr := cmdCtx.resetDatabase(ctx, db); resetErr != nil {
			return resetErr
		}
		if migrateErr := applyMigrations(ctx, cmdCtx, db); migrateErr != nil {
			return migrateErr
		}
		if opts.Seed {
			return seedDatabase(ctx, cmdCtx, db)
		}
		return nil
	})
}

func runDBSeed(cmdCtx *commandContext, args []string) error {
	opts, err := parseDBSeedFlags(cmdCtx, args)
	if err != nil {
		return err
	}
	if _, err = guardRemoteHost(cmdCtx, opts.AllowRemote, "seed development data"); err != nil {
		return err
	}
	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		return seedDatabase(ctx, cmdCtx, db)
	})
}

func seedDatabase(ctx context.Context, cmdCtx *commandContext, db *sql.DB) error {
	vault, err := bootstrap.BuildVault(cmdCtx.Config.Auth.Vault, cmdCtx.Logger)
	if err != nil {
		return err
	}
	cmdCtx.Logger.InfoContext(ctx, "seeding development data")
	if seedErr := devseed.Run(ctx, devseed.NewServices(db, vault), cmdCtx.Logger); seedErr != nil {
		return fmt.Errorf("seed database: %w", seedErr)
	}
	return nil
}

// withDatabase opens a connection bounded by timeout and by SIGINT/SIGTERM.
func withDatabase(cmdCtx *commandContext, timeout time.Duration, fn func(context.Context, *sql.DB) error) error {
	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: cmdCtx.Config.Postgres, Logger: cmdCtx.Logger})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			cmdCtx.Logger.Warn("closing database failed", "error", cerr)
		}
	}()
	return fn(ctx, db)
}

// resetDatabase drops every table by recreating the public schema.
func (cmdCtx *commandContext) resetDatabase(ctx context.Context, db *sql.DB) error {
	stmts := []string{"DROP SCHEMA public CASCADE", "CREATE SCHEMA public", "GRANT ALL ON SCHEMA public TO public"}
	if owner := strings.TrimSpace(cmdCtx.Config.Postgres.User); owner != "" && !strings.EqualFold(owner, "public") {
		stmts = append(stmts, "GRANT ALL ON SCHEMA public TO "+quoteIdentifier(owner))
	}
	cmdCtx.Logger.InfoContext(ctx, "dropping public schema", "database", cmdCtx.Config.Postgres.Name)
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}

func quoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// guardRemoteHost reports whether the configured host looks remote. A remote
// host requires allow and the operator retyping the host name.
func guardRemoteHost(cmdCtx *commandContext, allow bool, action string) (bool, error) {
	host := cmdCtx.Config.Postgres.Host
	if !isLikelyRemoteHost(host) {
		return false, nil
	}
	if !allow {
		return true, fmt.Errorf("database host %q does not look local; pass --allow-remote to %s there", host, action)
	}
	prompt := fmt.Sprintf("\nWARNING: %q does not look like a local database host.\nThis will %s.\nType the host name to continue: ", host, action)
	answer, err := ask(cmdCtx, cmdCtx.Err, prompt)
	if err != nil || answer != host {
		_ = writeln(cmdCtx.Err, "\nHost name did not match; aborting.")
		return true, errAborted
	}
	return true, nil
}

func isLikelyRemoteHost(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	switch {
	case h == "", h == "localhost", strings.HasSuffix(h, ".local"):
		return false
	}
	if ip := net.ParseIP(h); ip != nil {
		return !ip.IsLoopback()
	}
	return true
}

// confirmAction asks for y/yes on cmdCtx.In.
func confirmAction(cmdCtx *commandContext, actionType, target string) error {
	if err := writef(cmdCtx.Out, "About to %s for %s.\n", actionType, target); err != nil {
		return fmt.Errorf("print confirmation message: %w", err)
	}
	answer, err := ask(cmdCtx, cmdCtx.Out, "Continue? [y/N]: ")
	if err != nil {
		return errAborted
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return nil
	default:
		return errAborted
	}
}

// ask prints prompt to w and returns one trimmed line from cmdCtx.In. A final
// line without a newline still counts as an answer.
func ask(cmdCtx *commandContext, w io.Writer, prompt string) (string, error) {
	if err := write(w, prompt); err != nil {
		return "", fmt.Errorf("print prompt: %w", err)
	}
	line, err := bufio.NewReader(cmdCtx.In).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
