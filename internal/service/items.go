package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lotledger/lotledger/internal/core"
	domainauth "github.com/lotledger/lotledger/internal/domain/auth"
	"github.com/lotledger/lotledger/internal/domain/lots"
	"github.com/lotledger/lotledger/internal/domain/model"
	apperrors "github.com/lotledger/lotledger/internal/errors"
)

// ItemServiceOptions groups dependencies for ItemService.
type ItemServiceOptions struct {
	Items    core.ItemRepository
	Lots     core.LotRepository
	Settings ListSettings
}

// ItemService serves item reads and writes. Every read that returns items
// passes them through lots.RedactItems for the requester.
type ItemService struct {
	items    core.ItemRepository
	lots     core.LotRepository
	pageSize int
	logger   *slog.Logger
}

// NewItemService constructs a new ItemService.
func NewItemService(opts ItemServiceOptions) *ItemService {
	if opts.Items == nil {
		panic("ItemRepository is required")
	}
	if opts.Lots == nil {
		panic("LotRepository is required")
	}
	return &ItemService{
		items:    opts.Items,
		lots:     opts.Lots,
		pageSize: opts.Settings.pageSize(),
		logger:   opts.Settings.logger(),
	}
}

// ListByLot returns every item of a lot, cancelled ones included.
func (s *ItemService) ListByLot(ctx context.Context, requester domainauth.Requester, lotID int64) ([]model.Item, error) {
	rows, err := s.lotItems(ctx, lotID)
	if err != nil {
		return nil, err
	}
	return lots.RedactItems(rows, requester), nil
}

// Mine returns the requester's full item history across lots.
func (s *ItemService) Mine(ctx context.Context, requester domainauth.Requester) ([]model.Item, error) {
	owner := requester.Username
	rows, err := itemsWhere(ctx, s.items, model.ItemPageQuery{Owner: &owner}, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("list owned items: %w", err)
	}
	return lots.RedactItems(rows, requester), nil
}

// Checklist returns the items of a lot that still need or have had review,
// which excludes cancelled items.
func (s *ItemService) Checklist(ctx context.Context, requester domainauth.Requester, lotID int64) ([]model.Item, error) {
	rows, err := s.lotItems(ctx, lotID)
	if err != nil {
		return nil, err
	}
	active := rows[:0:0]
	for _, it := range rows {
		if !it.Cancelled {
			active = append(active, it)
		}
	}
	return lots.RedactItems(active, requester), nil
}

func (s *ItemService) lotItems(ctx context.Context, lotID int64) ([]model.Item, error) {
	if err := requirePositiveID("lot_id", lotID); err != nil {
		return nil, err
	}
	if _, err := s.lots.GetByID(ctx, lotID); err != nil {
		return nil, err
	}
	rows, err := itemsWhere(ctx, s.items, model.ItemPageQuery{LotIDs: []int64{lotID}}, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("list lot items: %w", err)
	}
	return rows, nil
}

// Create adds an item to a lot on behalf of sess. The owner is always the
// session's username. Guest sessions are read-only.
func (s *ItemService) Create(ctx context.Context, sess *domainauth.Session, lotID int64, req model.CreateItemRequest) (*model.Item, error) {
	if sess == nil {
		return nil, domainauth.ErrUnauthenticated
	}
	if sess.IsGuest() {
		return nil, domainauth.ErrForbidden
	}
	owner := sess.Username
	req.LotID = lotID
	req.OwnerUsername = &owner
	if err := req.Validate(); err != nil {
		return nil, err
	}

	it, err := s.items.Create(ctx, &req)
	if err != nil {
		if errors.Is(err, model.ErrLotLocked) {
			return nil, apperrors.ValidationField("lot_id", "lot is locked and accepts no new items")
		}
		return nil, err
	}
	s.logger.InfoContext(ctx, "item created", "item_id", it.ID, "lot_id", lotID, "owner", owner)
	return it, nil
}

// Update validates and applies a partial update.
func (s *ItemService) Update(ctx context.Context, id int64, req model.UpdateItemRequest) (*model.Item, error) {
	if err := requirePositiveID("id", id); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.items.Update(ctx, id, req)
}

// Cancel marks an item cancelled. Cancelling is idempotent.
func (s *ItemService) Cancel(ctx context.Context, id int64) (*model.Item, error) {
	if err := requirePositiveID("id", id); err != nil {
		return nil, err
	}
	return s.items.Cancel(ctx, id)
}

// SetChecklist sets the review status; the checked flag follows it.
func (s *ItemService) SetChecklist(ctx context.Context, id int64, req model.SetChecklistRequest) (*model.Item, error) {
	if err := requirePositiveID("id", id); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.items.SetChecklistStatus(ctx, id, req.Status)
}

// Delete removes an item and its bids.
func (s *ItemService) Delete(ctx context.Context, id int64) (bool, error) {
	if err := requirePositiveID("id", id); err != nil {
		return false, err
	}
	return s.items.Delete(ctx, id)
}
