package devseed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lotledger/lotledger/internal/core"
	"github.com/lotledger/lotledger/internal/data"
	"github.com/lotledger/lotledger/internal/data/cryptoutil"
	domainauth "github.com/lotledger/lotledger/internal/domain/auth"
	"github.com/lotledger/lotledger/internal/domain/model"
	"github.com/lotledger/lotledger/internal/service"
)

// Services bundles the dependencies needed for development seeding.
type Services struct {
	identities core.IdentityRepository
	lotRepo    core.LotRepository
	identity   *service.IdentityService
	lots       *service.LotService
	items      *service.ItemService
	bids       *service.BidService
}

// NewServices constructs all required services for seeding using the provided DB.
// vault may be nil to use the default parameters.
func NewServices(db *sql.DB, vault *cryptoutil.Vault) Services {
	identities := data.NewIdentityRepo(db)
	lots := data.NewLotRepo(db)
	items := data.NewItemRepo(db)

	idOpts := service.IdentityServiceOptions{Identities: identities}
	if vault != nil {
		idOpts.Vault = vault
	}

	return Services{
		identities: identities,
		lotRepo:    lots,
		identity:   service.NewIdentityService(idOpts),
		lots:       service.NewLotService(service.LotServiceOptions{Lots: lots, Items: items}),
		items:      service.NewItemService(service.ItemServiceOptions{Items: items, Lots: lots}),
		bids:       service.NewBidService(service.BidServiceOptions{Bids: data.NewBidRepo(db), Items: items}),
	}
}

// Run executes the full development seeding workflow. It is safe to run
// repeatedly: existing identities are left alone and lots are only seeded
// into an empty database.
func Run(ctx context.Context, svcs Services, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	failures := seedIdentities(ctx, svcs, logger)
	failures += seedLegacyIdentity(ctx, svcs.identities, logger)
	if err := seedLots(ctx, svcs, logger); err != nil {
		return err
	}
	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

func stringPtr(s string) *string    { return &s }
func float64Ptr(f float64) *float64 { return &f }

func defaultIdentities() []domainauth.CreateIdentityRequest {
	return []domainauth.CreateIdentityRequest{
		{Username: "admin", DisplayNumber: 1, Role: domainauth.RoleAdmin, Password: "admin-dev-password", Email: stringPtr("admin@lotledger.test")},
		{Username: "manager", DisplayNumber: 2, Role: domainauth.RoleManager, Password: "manager-dev-password"},
		{Username: "seller1", DisplayNumber: 101, Role: domainauth.RoleViewer, Password: "seller1-dev-password"},
		{Username: "seller2", DisplayNumber: 102, Role: domainauth.RoleViewer, Password: "seller2-dev-password"},
	}
}

func seedIdentities(ctx context.Context, svcs Services, logger *slog.Logger) int {
	failures := 0
	for _, req := range defaultIdentities() {
		exists, err := identityExists(ctx, svcs.identities, req.Username)
		if err != nil {
			logger.ErrorContext(ctx, "failed to look up identity", "username", req.Username, "error", err)
			failures++
			continue
		}
		if exists {
			logger.InfoContext(ctx, "identity already exists", "username", req.Username)
			continue
		}
		if _, err := svcs.identity.Create(ctx, req); err != nil {
			logger.ErrorContext(ctx, "failed to create identity", "username", req.Username, "error", err)
			failures++
			continue
		}
		logger.InfoContext(ctx, "created identity", "username", req.Username, "role", req.Role)
	}
	return failures
}

// seedLegacyIdentity stores a plaintext credential directly so the login
// upgrade and credential migration paths have something to work on.
func seedLegacyIdentity(ctx context.Context, repo core.IdentityRepository, logger *slog.Logger) int {
	const username = "legacy"
	exists, err := identityExists(ctx, repo, username)
	if err != nil {
		logger.ErrorContext(ctx, "failed to look up identity", "username", username, "error", err)
		return 1
	}
	if exists {
		return 0
	}
	_, err = repo.Create(ctx, domainauth.NewIdentity{
		Username:      username,
		DisplayNumber: 199,
		Email:         stringPtr("legacy@lotledger.test"),
		Role:          domainauth.RoleViewer,
		Credential:    "legacy-dev-password",
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to create legacy identity", "error", err)
		return 1
	}
	logger.InfoContext(ctx, "created legacy plaintext identity", "username", username)
	return 0
}

func identityExists(ctx context.Context, repo core.IdentityRepository, username string) (bool, error) {
	_, err := repo.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domainauth.ErrIdentityNotFound):
		return false, nil
	default:
		return false, err
	}
}

type itemSeed struct {
	owner string
	url   string
	price float64
	bids  []model.CreateBidRequest
}

func seedLots(ctx context.Context, svcs Services, logger *slog.Logger) error {
	existing, err := svcs.lotRepo.ListPage(ctx, model.PageQuery{Limit: 1})
	if err != nil {
		return fmt.Errorf("list lots: %w", err)
	}
	if len(existing) > 0 {
		logger.InfoContext(ctx, "lots already present; skipping lot seed")
		return nil
	}

	spring, err := svcs.lots.Create(ctx, &model.CreateLotRequest{Name: "Spring Auction", Description: "Furniture and household goods"})
	if err != nil {
		return fmt.Errorf("create lot: %w", err)
	}
	if _, err = svcs.lots.Create(ctx, &model.CreateLotRequest{Name: "Garage Clearout"}); err != nil {
		return fmt.Errorf("create lot: %w", err)
	}

	seeds := []itemSeed{
		{owner: "seller1", url: "https://img.lotledger.test/chair.jpg", price: 40, bids: []model.CreateBidRequest{
			{BidderName: "walk-in 12", Amount: 45},
			{BidderName: "walk-in 7", Amount: 52.5},
		}},
		{owner: "seller1", url: "https://img.lotledger.test/lamp.jpg", price: 15},
		{owner: "seller2", url: "https://img.lotledger.test/mirror.jpg", price: 80},
	}
	for _, s := range seeds {
		owner := &domainauth.Session{Username: s.owner, Role: domainauth.RoleViewer}
		item, createErr := svcs.items.Create(ctx, owner, spring.ID, model.CreateItemRequest{
			PictureURL: s.url,
			Price:      float64Ptr(s.price),
		})
		if createErr != nil {
			return fmt.Errorf("create item for %s: %w", s.owner, createErr)
		}
		for _, bid := range s.bids {
			if _, bidErr := svcs.bids.Create(ctx, item.ID, bid); bidErr != nil {
				return fmt.Errorf("create bid on item %d: %w", item.ID, bidErr)
			}
		}
	}
	logger.InfoContext(ctx, "seeded lots and items", "lot_id", spring.ID, "items", len(seeds))
	return nil
}
