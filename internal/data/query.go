package data

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"

	"github.com/lotledger/lotledger/internal/data/cursor"
	"github.com/lotledger/lotledger/internal/data/pgxutil"
)

// collectRows runs query on a pgx connection and scans every row into T by column name.
func collectRows[T any](ctx context.Context, db *sql.DB, query string, args ...any) ([]T, error) {
	var out []T
	err := pgxutil.WithPgxConn(ctx, db, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[T])
		return err
	})
	return out, err
}

// collectOne is collectRows for exactly one row; zero rows yields pgx.ErrNoRows.
func collectOne[T any](ctx context.Context, db *sql.DB, query string, args ...any) (*T, error) {
	var out T
	err := pgxutil.WithPgxConn(ctx, db, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[T])
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// execAffected runs a statement and returns the number of affected rows.
func execAffected(ctx context.Context, db *sql.DB, query string, args ...any) (int64, error) {
	var n int64
	err := pgxutil.WithPgxConn(ctx, db, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		n = ct.RowsAffected()
		return nil
	})
	return n, err
}

func pageLimit(limit int) int {
	if limit <= 0 {
		return cursor.DefaultPageSize
	}
	return limit
}
