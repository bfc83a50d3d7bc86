package data

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/lotledger/lotledger/internal/errors"
)

// ErrNilRequest is returned when a repository write receives a nil request.
var ErrNilRequest = errors.New("request is required")

// mapRowErr turns pgx.ErrNoRows into the aggregate's not-found sentinel and
// passes everything else through apperrors.MapDBError.
func mapRowErr(err, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}
	return apperrors.MapDBError(err)
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}
