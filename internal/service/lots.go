package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lotledger/lotledger/internal/core"
	"github.com/lotledger/lotledger/internal/data/cursor"
	"github.com/lotledger/lotledger/internal/domain/lots"
	"github.com/lotledger/lotledger/internal/domain/model"
)

// LotServiceOptions groups dependencies for LotService.
type LotServiceOptions struct {
	Lots     core.LotRepository
	Items    core.ItemRepository
	Settings ListSettings
}

// LotService orchestrates lot CRUD and computes lot visibility.
type LotService struct {
	lots     core.LotRepository
	items    core.ItemRepository
	pageSize int
	logger   *slog.Logger
}

// NewLotService constructs a new LotService.
func NewLotService(opts LotServiceOptions) *LotService {
	if opts.Lots == nil {
		panic("LotRepository is required")
	}
	if opts.Items == nil {
		panic("ItemRepository is required")
	}
	return &LotService{
		lots:     opts.Lots,
		items:    opts.Items,
		pageSize: opts.Settings.pageSize(),
		logger:   opts.Settings.logger(),
	}
}

// ListVisible returns every lot that has no items or at least one item that
// is not cancelled, ordered by id. Only items of the listed lots are read.
func (s *LotService) ListVisible(ctx context.Context) ([]model.Lot, error) {
	candidates, err := cursor.FetchAll(ctx, cursor.Pager[model.Lot]{
		Fetch: func(ctx context.Context, after *int64, limit int) ([]model.Lot, error) {
			return s.lots.ListPage(ctx, model.PageQuery{After: after, Limit: limit})
		},
		Cursor:   model.LotID,
		PageSize: s.pageSize,
	}, cursor.ByID(model.LotID))
	if err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}
	if len(candidates) == 0 {
		return []model.Lot{}, nil
	}

	items, err := itemsWhere(ctx, s.items, model.ItemPageQuery{LotIDs: lots.LotIDs(candidates)}, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("list items for visibility: %w", err)
	}
	visible := lots.VisibleLots(candidates, items)
	s.logger.DebugContext(ctx, "computed visible lots", "candidates", len(candidates), "visible", len(visible))
	return visible, nil
}

// GetByID retrieves a lot by ID.
func (s *LotService) GetByID(ctx context.Context, id int64) (*model.Lot, error) {
	if err := requirePositiveID("id", id); err != nil {
		return nil, err
	}
	return s.lots.GetByID(ctx, id)
}

// Create validates and creates a lot.
func (s *LotService) Create(ctx context.Context, req *model.CreateLotRequest) (*model.Lot, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.lots.Create(ctx, req)
}

// Update validates and applies a partial update.
func (s *LotService) Update(ctx context.Context, id int64, req model.UpdateLotRequest) (*model.Lot, error) {
	if err := requirePositiveID("id", id); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.lots.Update(ctx, id, req)
}

// SetLocked locks or unlocks a lot. Locked lots accept no new items.
func (s *LotService) SetLocked(ctx context.Context, id int64, locked bool) (*model.Lot, error) {
	if err := requirePositiveID("id", id); err != nil {
		return nil, err
	}
	lot, err := s.lots.SetLocked(ctx, id, locked)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "lot lock changed", "lot_id", id, "locked", locked)
	return lot, nil
}

// Delete removes a lot. Lots that still hold items cannot be deleted.
func (s *LotService) Delete(ctx context.Context, id int64) (bool, error) {
	if err := requirePositiveID("id", id); err != nil {
		return false, err
	}
	return s.lots.Delete(ctx, id)
}
