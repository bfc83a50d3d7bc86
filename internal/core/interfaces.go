package core

import (
	"context"

	domainauth "github.com/lotledger/lotledger/internal/domain/auth"
	"github.com/lotledger/lotledger/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// Services depend on these interfaces; internal/data provides the Postgres implementations.

// IdentityRepository defines the interface for identity data operations.
// Lookups return domainauth.ErrIdentityNotFound when no row matches.
type IdentityRepository interface {
	Create(ctx context.Context, in domainauth.NewIdentity) (*domainauth.Identity, error)
	GetByID(ctx context.Context, id int64) (*domainauth.Identity, error)
	GetByUsername(ctx context.Context, username string) (*domainauth.Identity, error)
	GetByExternalID(ctx context.Context, externalID string) (*domainauth.Identity, error)
	// ListPage returns identities ordered by id ascending.
	ListPage(ctx context.Context, q model.PageQuery) ([]domainauth.Identity, error)
	UpdateCredential(ctx context.Context, id int64, credential string) error
	UpdateMigrated(ctx context.Context, in domainauth.MigratedCredential) error
}

// LotRepository defines the interface for lot data operations.
type LotRepository interface {
	Create(ctx context.Context, req *model.CreateLotRequest) (*model.Lot, error)
	GetByID(ctx context.Context, id int64) (*model.Lot, error)
	ListPage(ctx context.Context, q model.PageQuery) ([]model.Lot, error)
	Update(ctx context.Context, id int64, req model.UpdateLotRequest) (*model.Lot, error)
	SetLocked(ctx context.Context, id int64, locked bool) (*model.Lot, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// ItemRepository defines the interface for item data operations.
// Every write derives the checked flag from the checklist status.
type ItemRepository interface {
	Create(ctx context.Context, req *model.CreateItemRequest) (*model.Item, error)
	GetByID(ctx context.Context, id int64) (*model.Item, error)
	ListPage(ctx context.Context, q model.ItemPageQuery) ([]model.Item, error)
	Update(ctx context.Context, id int64, req model.UpdateItemRequest) (*model.Item, error)
	SetChecklistStatus(ctx context.Context, id int64, status model.ChecklistStatus) (*model.Item, error)
	Cancel(ctx context.Context, id int64) (*model.Item, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// BidRepository defines the interface for bid data operations.
type BidRepository interface {
	Create(ctx context.Context, req *model.CreateBidRequest) (*model.Bid, error)
	ListPage(ctx context.Context, q model.BidPageQuery) ([]model.Bid, error)
}
