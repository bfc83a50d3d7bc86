package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lotledger/lotledger/config"
	redisadapter "github.com/lotledger/lotledger/internal/adapters/redis"
	"github.com/lotledger/lotledger/internal/bootstrap"
	domainauth "github.com/lotledger/lotledger/internal/domain/auth"
)

var errRedisNotConfigured = errors.New("redis not configured")

type sessionListOptions struct {
	Username string
	Limit    int
}

type sessionRevokeOptions struct {
	Username string
	All      bool
	DryRun   bool
	Yes      bool
}

type sessionRow struct {
	Session domainauth.Session
	TTL     time.Duration
}

func hasRedisConfig(cfg *config.RedisConfig) bool {
	if cfg == nil {
		return false
	}
	if cfg.UseCluster {
		return len(cfg.ClusterNodes) > 0 || cfg.URI != ""
	}
	if cfg.UseSentinel {
		return len(cfg.SentinelNodes) > 0
	}
	return cfg.URI != ""
}

// withSessionStore connects to Redis and hands fn the session store under
// the configured key prefix.
func withSessionStore(cmdCtx *commandContext, fn func(context.Context, *redisadapter.SessionStore) error) error {
	if !hasRedisConfig(&cmdCtx.Config.Redis) {
		return errRedisNotConfigured
	}
	client, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{RedisConfig: cmdCtx.Config.Redis, Logger: cmdCtx.Logger})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", cerr)
		}
	}()

	return fn(cmdCtx.Ctx, sessionStoreFor(client, cmdCtx.Config.Redis))
}

func sessionStoreFor(client redis.UniversalClient, cfg config.RedisConfig) *redisadapter.SessionStore {
	return redisadapter.NewSessionStoreWithPrefix(client, cfg.KeyPrefix)
}

// collectSessions returns sessions matching username (all when empty),
// ordered by expiry.
func collectSessions(ctx context.Context, store *redisadapter.SessionStore, username string) ([]sessionRow, error) {
	var rows []sessionRow
	err := store.Each(ctx, func(sess domainauth.Session, ttl time.Duration) error {
		if username != "" && !strings.EqualFold(sess.Username, username) {
			return nil
		}
		rows = append(rows, sessionRow{Session: sess, TTL: ttl})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Session.ExpiresAt.Before(rows[j].Session.ExpiresAt)
	})
	return rows, nil
}

func parseSessionListFlags(cmdCtx *commandContext, args []string) (sessionListOptions, error) {
	fs := flag.NewFlagSet("list-sessions", flag.ContinueOnError)
	fs.SetOutput(cmdCtx.Err)

	opts := sessionListOptions{}
	fs.StringVar(&opts.Username, "username", "", "Only show sessions for this username")
	fs.IntVar(&opts.Limit, "limit", 50, "Maximum rows to print (0 for all)")

	if err := fs.Parse(args); err != nil {
		return sessionListOptions{}, err
	}
	if opts.Limit < 0 {
		return sessionListOptions{}, errors.New("--limit must be zero or positive")
	}
	opts.Username = strings.TrimSpace(opts.Username)
	return opts, nil
}

func runListSessions(cmdCtx *commandContext, args []string) error {
	opts, err := parseSessionListFlags(cmdCtx, args)
	if err != nil {
		return err
	}
	return withSessionStore(cmdCtx, func(ctx context.Context, store *redisadapter.SessionStore) error {
		rows, collectErr := collectSessions(ctx, store, opts.Username)
		if collectErr != nil {
			return collectErr
		}
		return renderSessionTable(cmdCtx.Out, rows, opts.Limit)
	})
}

func renderSessionTable(w io.Writer, rows []sessionRow, limit int) error {
	if len(rows) == 0 {
		return writeln(w, "  (no sessions found)")
	}
	shown := rows
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "USERNAME\tROLE\tSTATE\tTTL\tTOKEN"); err != nil {
		return fmt.Errorf("write sessions header row: %w", err)
	}
	for _, row := range shown {
		if err := writef(tw, "%s\t%s\t%s\t%s\t%s\n",
			row.Session.Username,
			row.Session.Role,
			sessionState(row.Session),
			formatRedisTTL(row.TTL),
			maskToken(row.Session.Token),
		); err != nil {
			return fmt.Errorf("write session row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush sessions table: %w", err)
	}

	if err := writef(w, "Total sessions matched: %d\n", len(rows)); err != nil {
		return err
	}
	if len(shown) < len(rows) {
		return writeln(w, "More sessions available; increase --limit to view additional entries.")
	}
	return nil
}

func sessionState(s domainauth.Session) string {
	switch {
	case s.Revoked:
		return "revoked"
	case s.Guest:
		return "guest"
	default:
		return "active"
	}
}

// maskToken keeps only enough of a bearer token to tell rows apart.
func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:6] + "…"
}

func formatRedisTTL(ttl time.Duration) string {
	if ttl == -1 {
		return "no expiry"
	}
	if ttl == -2 {
		return "missing"
	}
	if ttl < 0 {
		return ttl.String()
	}
	return ttl.Round(time.Second).String()
}

func parseSessionRevokeFlags(cmdCtx *commandContext, args []string) (sessionRevokeOptions, error) {
	fs := flag.NewFlagSet("revoke-sessions", flag.ContinueOnError)
	fs.SetOutput(cmdCtx.Err)

	opts := sessionRevokeOptions{}
	fs.StringVar(&opts.Username, "username", "", "Revoke sessions for this username")
	fs.BoolVar(&opts.All, "all", false, "Revoke every session")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Show what would be revoked")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return sessionRevokeOptions{}, err
	}
	opts.Username = strings.TrimSpace(opts.Username)
	if opts.Username == "" && !opts.All {
		return sessionRevokeOptions{}, errors.New("provide --username or --all")
	}
	if opts.Username != "" && opts.All {
		return sessionRevokeOptions{}, errors.New("--username and --all are mutually exclusive")
	}
	return opts, nil
}

func runRevokeSessions(cmdCtx *commandContext, args []string) error {
	opts, err := parseSessionRevokeFlags(cmdCtx, args)
	if err != nil {
		return err
	}
	return withSessionStore(cmdCtx, func(ctx context.Context, store *redisadapter.SessionStore) error {
		return revokeSessions(ctx, cmdCtx, store, opts)
	})
}

func revokeSessions(ctx context.Context, cmdCtx *commandContext, store *redisadapter.SessionStore, opts sessionRevokeOptions) error {
	rows, err := collectSessions(ctx, store, opts.Username)
	if err != nil {
		return err
	}
	live := rows[:0]
	for _, row := range rows {
		if !row.Session.Revoked {
			live = append(live, row)
		}
	}

	if opts.DryRun {
		return writef(cmdCtx.Out, "Dry run: %d sessions would be revoked.\n", len(live))
	}
	if len(live) == 0 {
		return writeln(cmdCtx.Out, "No live sessions matched.")
	}
	if !opts.Yes {
		target := fmt.Sprintf("%d sessions", len(live))
		if opts.Username != "" {
			target += fmt.Sprintf(" of %q", opts.Username)
		}
		if confirmErr := confirmAction(cmdCtx, "revoke", target); confirmErr != nil {
			return confirmErr
		}
	}

	for _, row := range live {
		if revokeErr := store.Revoke(ctx, row.Session.Token); revokeErr != nil {
			return fmt.Errorf("revoke session: %w", revokeErr)
		}
	}
	return writef(cmdCtx.Out, "Revoked %d sessions.\n", len(live))
}
