package service

import (
	"context"
	"fmt"

	"github.com/lotledger/lotledger/internal/core"
	"github.com/lotledger/lotledger/internal/data/cursor"
	"github.com/lotledger/lotledger/internal/domain/model"
)

// BidServiceOptions groups dependencies for BidService.
type BidServiceOptions struct {
	Bids     core.BidRepository
	Items    core.ItemRepository
	Settings ListSettings
}

// BidService records and lists bids on items.
type BidService struct {
	bids     core.BidRepository
	items    core.ItemRepository
	pageSize int
}

// NewBidService constructs a new BidService.
func NewBidService(opts BidServiceOptions) *BidService {
	if opts.Bids == nil {
		panic("BidRepository is required")
	}
	if opts.Items == nil {
		panic("ItemRepository is required")
	}
	return &BidService{bids: opts.Bids, items: opts.Items, pageSize: opts.Settings.pageSize()}
}

// ListByItem returns every bid on an item in the order they were placed.
func (s *BidService) ListByItem(ctx context.Context, itemID int64) ([]model.Bid, error) {
	if err := requirePositiveID("item_id", itemID); err != nil {
		return nil, err
	}
	if _, err := s.items.GetByID(ctx, itemID); err != nil {
		return nil, err
	}
	out, err := cursor.FetchAll(ctx, cursor.Pager[model.Bid]{
		Fetch: func(ctx context.Context, after *int64, limit int) ([]model.Bid, error) {
			return s.bids.ListPage(ctx, model.BidPageQuery{ItemID: itemID, PageQuery: model.PageQuery{After: after, Limit: limit}})
		},
		Cursor:   model.BidID,
		PageSize: s.pageSize,
	}, cursor.ByID(model.BidID))
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	return out, nil
}

// Create validates and records a bid.
func (s *BidService) Create(ctx context.Context, itemID int64, req model.CreateBidRequest) (*model.Bid, error) {
	req.ItemID = itemID
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.bids.Create(ctx, &req)
}
