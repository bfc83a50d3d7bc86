package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/lotledger/lotledger/internal/data/database"
	"github.com/lotledger/lotledger/internal/data/pgxutil"
	"github.com/lotledger/lotledger/internal/domain/model"
	apperrors "github.com/lotledger/lotledger/internal/errors"
)

const itemReturning = ` RETURNING id, lot_id, owner_username, picture_url, price, cancelled, checklist_status, checked, created_at`

// ItemRepo provides database operations for items. Every write that touches
// checklist_status also writes checked, so the two never disagree.
type ItemRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewItemRepo creates a new ItemRepo using the system clock.
func NewItemRepo(db *sql.DB) *ItemRepo {
	return &ItemRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewItemRepoWithTimeProvider creates a new ItemRepo with a custom time provider (useful for tests).
func NewItemRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *ItemRepo {
	return &ItemRepo{DB: db, timeProvider: tp}
}

// Create inserts an unchecked item into an unlocked lot. The lot row is
// share-locked for the duration of the insert so a concurrent lock cannot
// slip in between the check and the write.
func (r *ItemRepo) Create(ctx context.Context, req *model.CreateItemRequest) (*model.Item, error) {
	if req == nil {
		return nil, ErrNilRequest
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var out model.Item
	err := pgxutil.WithPgxTx(ctx, r.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var locked bool
		if err := tx.QueryRow(ctx, `SELECT locked FROM lots WHERE id = $1 FOR SHARE`, req.LotID).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return model.ErrLotNotFound
			}
			return err
		}
		if locked {
			return model.ErrLotLocked
		}

		rows, err := tx.Query(ctx, `
			INSERT INTO items (lot_id, owner_username, picture_url, price, cancelled, checklist_status, checked, created_at)
			VALUES ($1, $2, $3, $4, FALSE, $5, FALSE, $6)`+itemReturning,
			req.LotID,
			req.OwnerUsername,
			req.PictureURL,
			req.Price,
			string(model.ChecklistUnchecked),
			nowFrom(r.timeProvider),
		)
		if err != nil {
			return err
		}
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Item])
		return err
	})
	if err != nil {
		if errors.Is(err, model.ErrLotNotFound) || errors.Is(err, model.ErrLotLocked) {
			return nil, err
		}
		return nil, fmt.Errorf("create item: %w", apperrors.MapDBError(err))
	}
	return &out, nil
}

// GetByID retrieves an item by id.
func (r *ItemRepo) GetByID(ctx context.Context, id int64) (*model.Item, error) {
	query, args := database.BuildListQuery(database.NewListQueryOptions("items",
		database.WithColumns(itemColumns()...),
		database.WithCondition(database.WhereCond("id", database.Equal, id)),
	))
	out, err := collectOne[model.Item](ctx, r.DB, query, args...)
	if err != nil {
		return nil, mapRowErr(err, model.ErrItemNotFound)
	}
	return out, nil
}

// ListPage returns one keyset page of items, optionally scoped to a set of
// lots and/or an owner. A non-nil empty LotIDs matches nothing.
func (r *ItemRepo) ListPage(ctx context.Context, q model.ItemPageQuery) ([]model.Item, error) {
	if q.LotIDs != nil && len(q.LotIDs) == 0 {
		return nil, nil
	}

	opts := []database.ListQueryOption{database.WithColumns(itemColumns()...)}
	if len(q.LotIDs) > 0 {
		opts = append(opts, database.WithCondition(database.WhereCond("lot_id", database.Any, q.LotIDs)))
	}
	if q.Owner != nil {
		opts = append(opts, database.WithCondition(database.WhereCond("owner_username", database.Equal, *q.Owner)))
	}
	opts = append(opts, database.WithKeyset("id", q.After, pageLimit(q.Limit)))

	query, args := database.BuildListQuery(database.NewListQueryOptions("items", opts...))
	rows, err := collectRows[model.Item](ctx, r.DB, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", apperrors.MapDBError(err))
	}
	return rows, nil
}

// Update changes the picture URL and/or price of an item.
func (r *ItemRepo) Update(ctx context.Context, id int64, req model.UpdateItemRequest) (*model.Item, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	setParts := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if req.PictureURL != nil {
		args = append(args, *req.PictureURL)
		setParts = append(setParts, "picture_url = $"+strconv.Itoa(len(args)))
	}
	if req.Price != nil {
		args = append(args, *req.Price)
		setParts = append(setParts, "price = $"+strconv.Itoa(len(args)))
	}
	args = append(args, id)
	query := "UPDATE items SET " + strings.Join(setParts, ", ") +
		" WHERE id = $" + strconv.Itoa(len(args)) + itemReturning

	out, err := collectOne[model.Item](ctx, r.DB, query, args...)
	if err != nil {
		return nil, mapRowErr(err, model.ErrItemNotFound)
	}
	return out, nil
}

// SetChecklistStatus writes the status and the checked flag derived from it.
func (r *ItemRepo) SetChecklistStatus(ctx context.Context, id int64, status model.ChecklistStatus) (*model.Item, error) {
	if !status.Valid() {
		return nil, apperrors.ValidationField("status", "status must be one of: unchecked, checked, rejected")
	}
	out, err := collectOne[model.Item](ctx, r.DB,
		`UPDATE items SET checklist_status = $1, checked = $2 WHERE id = $3`+itemReturning,
		string(status), status.IsChecked(), id,
	)
	if err != nil {
		return nil, mapRowErr(err, model.ErrItemNotFound)
	}
	return out, nil
}

// Cancel marks an item cancelled. Cancelling twice is not an error.
func (r *ItemRepo) Cancel(ctx context.Context, id int64) (*model.Item, error) {
	out, err := collectOne[model.Item](ctx, r.DB,
		`UPDATE items SET cancelled = TRUE WHERE id = $1`+itemReturning, id)
	if err != nil {
		return nil, mapRowErr(err, model.ErrItemNotFound)
	}
	return out, nil
}

// Delete removes an item and, through the foreign key, its bids.
func (r *ItemRepo) Delete(ctx context.Context, id int64) (bool, error) {
	n, err := execAffected(ctx, r.DB, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete item: %w", apperrors.MapDBError(err))
	}
	return n > 0, nil
}

func itemColumns() []string {
	return []string{
		"id",
		"lot_id",
		"owner_username",
		"picture_url",
		"price",
		"cancelled",
		"checklist_status",
		"checked",
		"created_at",
	}
}
