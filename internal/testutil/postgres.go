// Package testutil holds shared fixtures for package tests: a Postgres
// harness gated on database availability, an in-process Redis and builders.
package testutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/lotledger/lotledger/internal/migrate"
)

// TestingTB is the subset of testing.TB the database helpers need.
type TestingTB interface {
	Helper()
	Skip(args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Logf(format string, args ...any)
	Cleanup(func())
}

// TestDBConfig locates the test database.
type TestDBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DefaultTestDBConfig reads TEST_DB_* variables. The default port 55432 is
// the docker-compose test profile; CI sets TEST_DB_PORT=5432.
func DefaultTestDBConfig() TestDBConfig {
	return TestDBConfig{
		Host:     envOr("TEST_DB_HOST", "localhost"),
		Port:     envOr("TEST_DB_PORT", "55432"),
		User:     envOr("TEST_DB_USER", "lotledger"),
		Password: envOr("TEST_DB_PASSWORD", "lotledger"),
		DBName:   envOr("TEST_DB_NAME", "lotledger"),
		SSLMode:  envOr("DB_SSL_MODE", "disable"),
	}
}

// DSN renders the config as a postgres URL. A non-empty schema is put first
// on the search_path.
func (c TestDBConfig) DSN(schema string) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, c.Port),
		Path:   "/" + c.DBName,
	}
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	if schema != "" {
		q.Set("search_path", schema+",public")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// SkipIfNoTestDB skips t when the test database cannot be reached, or fails
// it when TEST_REQUIRE_DB / TEST_REQUIRE_INFRA is set.
func SkipIfNoTestDB(t TestingTB) {
	t.Helper()
	db, err := sql.Open("pgx", DefaultTestDBConfig().DSN(""))
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = db.PingContext(ctx)
		cancel()
		closeQuietly(t, "probe db", db)
	}
	if err == nil {
		return
	}
	if envBool("TEST_REQUIRE_DB") || envBool("TEST_REQUIRE_INFRA") {
		t.Fatal("test database not available:", err)
	}
	t.Skip("test database not available:", err)
}

// WithAutoDB runs fn against a migrated database. With TEST_DB_EPHEMERAL set
// every call gets its own schema, dropped afterwards; otherwise the shared
// database is used and its tables are emptied before and after fn.
func WithAutoDB(t TestingTB, fn func(*sql.DB)) {
	t.Helper()
	SkipIfNoTestDB(t)
	if envBool("TEST_DB_EPHEMERAL") {
		fn(ephemeralSchemaDB(t))
		return
	}
	db := openMigrated(t, "")
	truncateAll(t, db)
	t.Cleanup(func() {
		truncateAll(t, db)
		closeQuietly(t, "test db", db)
	})
	fn(db)
}

func openMigrated(t TestingTB, schema string) *sql.DB {
	t.Helper()
	db, err := sql.Open("pgx", DefaultTestDBConfig().DSN(schema))
	if err != nil {
		t.Fatal("open test db:", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		closeQuietly(t, "test db", db)
		t.Fatal("ping test db (is docker-compose up?):", err)
	}
	if err := migrate.Run(ctx, db); err != nil {
		closeQuietly(t, "test db", db)
		t.Fatal("migrate test db:", err)
	}
	return db
}

// truncateAll empties the domain tables. Bids reference items and items
// reference lots, so children go first.
func truncateAll(t TestingTB, db *sql.DB) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, table := range []string{"bids", "items", "lots", "identities"} {
		if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("clean table %s: %v", table, err)
		}
	}
}

func ephemeralSchemaDB(t TestingTB) *sql.DB {
	t.Helper()
	admin, err := sql.Open("pgx", DefaultTestDBConfig().DSN(""))
	if err != nil {
		t.Fatal("open admin db:", err)
	}
	schema := schemaName()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := admin.ExecContext(ctx, "CREATE SCHEMA "+schema); err != nil {
		closeQuietly(t, "admin db", admin)
		t.Fatalf("create schema %s: %v", schema, err)
	}
	t.Logf("using ephemeral schema %s", schema)

	var db *sql.DB
	t.Cleanup(func() {
		if db != nil {
			closeQuietly(t, "schema db", db)
		}
		dropCtx, dropCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer dropCancel()
		if _, err := admin.ExecContext(dropCtx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); err != nil {
			t.Logf("drop schema %s: %v", schema, err)
		}
		closeQuietly(t, "admin db", admin)
	})
	db = openMigrated(t, schema)
	return db
}

// schemaName returns "t_" plus 8 hex chars.
func schemaName() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("t_%d", time.Now().UnixNano())
	}
	return "t_" + hex.EncodeToString(b)
}

func closeQuietly(t TestingTB, name string, c interface{ Close() error }) {
	if err := c.Close(); err != nil {
		t.Logf("close %s: %v", name, err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}
