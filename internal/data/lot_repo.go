package data

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/lotledger/lotledger/internal/data/database"
	"github.com/lotledger/lotledger/internal/domain/model"
	apperrors "github.com/lotledger/lotledger/internal/errors"
)

const lotReturning = ` RETURNING id, name, description, locked, created_at`

// LotRepo provides database operations for lots.
type LotRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewLotRepo creates a new LotRepo using the system clock.
func NewLotRepo(db *sql.DB) *LotRepo {
	return &LotRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewLotRepoWithTimeProvider creates a new LotRepo with a custom time provider (useful for tests).
func NewLotRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *LotRepo {
	return &LotRepo{DB: db, timeProvider: tp}
}

// Create inserts a new unlocked lot.
func (r *LotRepo) Create(ctx context.Context, req *model.CreateLotRequest) (*model.Lot, error) {
	if req == nil {
		return nil, ErrNilRequest
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	out, err := collectOne[model.Lot](ctx, r.DB,
		`INSERT INTO lots (name, description, locked, created_at) VALUES ($1, $2, FALSE, $3)`+lotReturning,
		req.Name, req.Description, nowFrom(r.timeProvider),
	)
	if err != nil {
		return nil, fmt.Errorf("create lot: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// GetByID retrieves a lot by id.
func (r *LotRepo) GetByID(ctx context.Context, id int64) (*model.Lot, error) {
	out, err := collectOne[model.Lot](ctx, r.DB,
		`SELECT id, name, description, locked, created_at FROM lots WHERE id = $1`, id)
	if err != nil {
		return nil, mapRowErr(err, model.ErrLotNotFound)
	}
	return out, nil
}

// ListPage returns up to q.Limit lots with id greater than q.After, ordered by id.
func (r *LotRepo) ListPage(ctx context.Context, q model.PageQuery) ([]model.Lot, error) {
	query, args := database.BuildListQuery(database.NewListQueryOptions("lots",
		database.WithColumns("id", "name", "description", "locked", "created_at"),
		database.WithKeyset("id", q.After, pageLimit(q.Limit)),
	))
	rows, err := collectRows[model.Lot](ctx, r.DB, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list lots: %w", apperrors.MapDBError(err))
	}
	return rows, nil
}

// Update changes the name and/or description of a lot.
func (r *LotRepo) Update(ctx context.Context, id int64, req model.UpdateLotRequest) (*model.Lot, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	setParts := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if req.Name != nil {
		args = append(args, *req.Name)
		setParts = append(setParts, "name = $"+strconv.Itoa(len(args)))
	}
	if req.Description != nil {
		args = append(args, *req.Description)
		setParts = append(setParts, "description = $"+strconv.Itoa(len(args)))
	}
	args = append(args, id)
	query := "UPDATE lots SET " + strings.Join(setParts, ", ") +
		" WHERE id = $" + strconv.Itoa(len(args)) + lotReturning

	out, err := collectOne[model.Lot](ctx, r.DB, query, args...)
	if err != nil {
		return nil, mapRowErr(err, model.ErrLotNotFound)
	}
	return out, nil
}

// SetLocked sets the lot's locked flag.
func (r *LotRepo) SetLocked(ctx context.Context, id int64, locked bool) (*model.Lot, error) {
	out, err := collectOne[model.Lot](ctx, r.DB,
		`UPDATE lots SET locked = $1 WHERE id = $2`+lotReturning, locked, id)
	if err != nil {
		return nil, mapRowErr(err, model.ErrLotNotFound)
	}
	return out, nil
}

// Delete removes a lot. Lots that still hold items are rejected by the
// foreign key and surface as a foreign_key AppError.
func (r *LotRepo) Delete(ctx context.Context, id int64) (bool, error) {
	n, err := execAffected(ctx, r.DB, `DELETE FROM lots WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete lot: %w", apperrors.MapDBError(err))
	}
	return n > 0, nil
}
