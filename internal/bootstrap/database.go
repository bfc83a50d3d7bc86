package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	// Register the pgx driver with database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/lotledger/lotledger/config"
	"github.com/lotledger/lotledger/internal/migrate"
)

// DatabaseConfig contains configuration for database connections.
type DatabaseConfig struct {
	DBConfig    config.DBConfig
	RedisConfig config.RedisConfig
	Logger      *slog.Logger
}

// ConnectDB establishes a connection to the PostgreSQL database.
func ConnectDB(cfg DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DBConfig.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	maxOpen := cfg.DBConfig.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 20
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(max(maxOpen/4, 1))
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		if closeErr := db.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close database connection: %w", closeErr))
		}
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("database connected", "dsn", cfg.DBConfig.String())
	}

	return db, nil
}

// ConnectRedis dials the Redis deployment described by cfg.RedisConfig and
// pings it. Cluster wins over sentinel, which wins over a direct URI.
//
//nolint:ireturn // the deployment shape picks the concrete client.
func ConnectRedis(cfg DatabaseConfig) (redis.UniversalClient, error) {
	rc := cfg.RedisConfig
	var (
		client redis.UniversalClient
		desc   string
		err    error
	)
	switch {
	case rc.UseCluster:
		client, desc, err = clusterClient(rc)
	case rc.UseSentinel:
		client, desc, err = sentinelClient(rc)
	default:
		client, desc, err = directClient(rc)
	}
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if pingErr := client.Ping(ctx).Err(); pingErr != nil {
		if closeErr := client.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close redis client: %w", closeErr))
		}
		return nil, fmt.Errorf("ping redis: %w", pingErr)
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("redis connected", "addr", redactAddr(desc), "session_prefix", rc.KeyPrefix)
	}
	return client, nil
}

// redactAddr strips credentials from a connection description for logging.
func redactAddr(desc string) string {
	if u, err := url.Parse(desc); err == nil && u.User != nil {
		u.User = url.User("*")
		return u.Redacted()
	}
	if i := strings.LastIndex(desc, "@"); i > -1 {
		return desc[i+1:]
	}
	return desc
}

// clusterClient uses REDIS_CLUSTER_NODES, falling back to REDIS_URI as a
// single seed node whose URL may carry credentials and TLS.
//
//nolint:ireturn // see ConnectRedis.
func clusterClient(rc config.RedisConfig) (redis.UniversalClient, string, error) {
	opts := &redis.ClusterOptions{Addrs: trimmedAddrs(rc.ClusterNodes), Password: rc.Password}
	if len(opts.Addrs) == 0 {
		seed := strings.TrimSpace(rc.URI)
		switch {
		case seed == "":
			return nil, "", errors.New("redis cluster configuration requires at least one address")
		case isRedisURL(seed):
			parsed, err := redis.ParseURL(seed)
			if err != nil {
				return nil, "", fmt.Errorf("parse redis cluster url: %w", err)
			}
			opts.Addrs = []string{parsed.Addr}
			opts.Username = parsed.Username
			opts.TLSConfig = parsed.TLSConfig
			if parsed.Password != "" {
				opts.Password = parsed.Password
			}
		default:
			opts.Addrs = []string{seed}
		}
	}
	return redis.NewClusterClient(opts), "cluster:" + strings.Join(opts.Addrs, ","), nil
}

//nolint:ireturn // see ConnectRedis.
func sentinelClient(rc config.RedisConfig) (redis.UniversalClient, string, error) {
	nodes := trimmedAddrs(rc.SentinelNodes)
	if len(nodes) == 0 {
		return nil, "", errors.New("redis sentinel configuration requires at least one sentinel node")
	}
	return redis.NewFailoverClient(&redis.FailoverOptions{
		MasterName:       rc.SentinelMasterName,
		SentinelAddrs:    nodes,
		Password:         rc.Password,
		SentinelPassword: rc.SentinelPassword,
		DB:               rc.DB,
	}), "sentinel:" + rc.SentinelMasterName, nil
}

// directClient accepts either a redis:// URL or a bare host:port.
//
//nolint:ireturn // see ConnectRedis.
func directClient(rc config.RedisConfig) (redis.UniversalClient, string, error) {
	uri := strings.TrimSpace(rc.URI)
	if uri == "" {
		return nil, "", errors.New("redis direct configuration requires a URI")
	}
	if !isRedisURL(uri) {
		return redis.NewClient(&redis.Options{Addr: uri, Password: rc.Password, DB: rc.DB}), uri, nil
	}
	opt, err := redis.ParseURL(uri)
	if err != nil {
		return nil, "", fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opt), uri, nil
}

func trimmedAddrs(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, a := range raw {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func isRedisURL(v string) bool {
	return strings.HasPrefix(v, "redis://") || strings.HasPrefix(v, "rediss://")
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if err := migrate.Run(ctx, db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	if logger != nil {
		logger.InfoContext(ctx, "database migrations completed")
	}

	return nil
}
