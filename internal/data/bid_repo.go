package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lotledger/lotledger/internal/data/database"
	"github.com/lotledger/lotledger/internal/domain/model"
	apperrors "github.com/lotledger/lotledger/internal/errors"
)

// BidRepo provides database operations for bids.
type BidRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewBidRepo creates a new BidRepo using the system clock.
func NewBidRepo(db *sql.DB) *BidRepo {
	return &BidRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewBidRepoWithTimeProvider creates a new BidRepo with a custom time provider (useful for tests).
func NewBidRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *BidRepo {
	return &BidRepo{DB: db, timeProvider: tp}
}

// Create records a bid. A missing item yields model.ErrItemNotFound.
func (r *BidRepo) Create(ctx context.Context, req *model.CreateBidRequest) (*model.Bid, error) {
	if req == nil {
		return nil, ErrNilRequest
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	out, err := collectOne[model.Bid](ctx, r.DB, `
		INSERT INTO bids (item_id, bidder_name, amount, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, item_id, bidder_name, amount, created_at`,
		req.ItemID, req.BidderName, req.Amount, nowFrom(r.timeProvider),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, model.ErrItemNotFound
		}
		return nil, fmt.Errorf("create bid: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// ListPage returns one keyset page of an item's bids ordered by id.
func (r *BidRepo) ListPage(ctx context.Context, q model.BidPageQuery) ([]model.Bid, error) {
	query, args := database.BuildListQuery(database.NewListQueryOptions("bids",
		database.WithColumns("id", "item_id", "bidder_name", "amount", "created_at"),
		database.WithCondition(database.WhereCond("item_id", database.Equal, q.ItemID)),
		database.WithKeyset("id", q.After, pageLimit(q.Limit)),
	))
	rows, err := collectRows[model.Bid](ctx, r.DB, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", apperrors.MapDBError(err))
	}
	return rows, nil
}
