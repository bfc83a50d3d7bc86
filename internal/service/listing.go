package service

import (
	"cmp"
	"context"
	"log/slog"

	"github.com/lotledger/lotledger/internal/core"
	"github.com/lotledger/lotledger/internal/data/cursor"
	"github.com/lotledger/lotledger/internal/domain/model"
	apperrors "github.com/lotledger/lotledger/internal/errors"
)

// ListSettings holds the knobs shared by services that page through stores.
type ListSettings struct {
	// PageSize defaults to cursor.DefaultPageSize.
	PageSize int
	Logger   *slog.Logger
}

func (s ListSettings) pageSize() int {
	if s.PageSize < 1 {
		return cursor.DefaultPageSize
	}
	return s.PageSize
}

func (s ListSettings) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// itemsWhere drains every item matching q through the cursor engine, ordered
// by creation time then id.
func itemsWhere(ctx context.Context, repo core.ItemRepository, q model.ItemPageQuery, pageSize int) ([]model.Item, error) {
	return cursor.FetchAll(ctx, cursor.Pager[model.Item]{
		Fetch: func(ctx context.Context, after *int64, limit int) ([]model.Item, error) {
			page := q
			page.After = after
			page.Limit = limit
			return repo.ListPage(ctx, page)
		},
		Cursor:   model.ItemID,
		PageSize: pageSize,
	}, compareItems)
}

func compareItems(a, b model.Item) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func requirePositiveID(field string, id int64) error {
	if id < 1 {
		return apperrors.ValidationField(field, field+" must be a positive integer")
	}
	return nil
}
