package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/lotledger/lotledger/internal/domain/auth"
	"github.com/lotledger/lotledger/internal/domain/model"
	apperrors "github.com/lotledger/lotledger/internal/errors"
	"github.com/lotledger/lotledger/internal/mocks"
)

func float64Ptr(v float64) *float64 { return &v }

func newItemService(t *testing.T, pageSize int) (*mocks.MockItemRepository, *mocks.MockLotRepository, *ItemService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	itemRepo := mocks.NewMockItemRepository(ctrl)
	lotRepo := mocks.NewMockLotRepository(ctrl)
	svc := NewItemService(ItemServiceOptions{
		Items:    itemRepo,
		Lots:     lotRepo,
		Settings: ListSettings{PageSize: pageSize},
	})
	return itemRepo, lotRepo, svc
}

// Scenario A: a viewer sees both rows but only their own price and owner.
func TestItemService_ListByLot_RedactsForViewer(t *testing.T) {
	itemRepo, lotRepo, svc := newItemService(t, 100)
	ctx := context.Background()

	lotRepo.EXPECT().GetByID(ctx, int64(7)).Return(&model.Lot{ID: 7}, nil)
	itemRepo.EXPECT().ListPage(ctx, model.ItemPageQuery{LotIDs: []int64{7}, PageQuery: model.PageQuery{Limit: 100}}).
		Return([]model.Item{
			{ID: 1, LotID: 7, OwnerUsername: strPtr("bob"), Price: float64Ptr(100)},
			{ID: 2, LotID: 7, OwnerUsername: strPtr("alice"), Price: float64Ptr(50)},
		}, nil)

	got, err := svc.ListByLot(ctx, domainauth.Requester{Username: "bob", Role: domainauth.RoleViewer}, 7)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "bob", *got[0].OwnerUsername)
	assert.Equal(t, 100.0, *got[0].Price)
	assert.Nil(t, got[1].OwnerUsername)
	assert.Nil(t, got[1].Price)
	assert.Equal(t, int64(2), got[1].ID)
}

func TestItemService_ListByLot_ManagerUnredacted(t *testing.T) {
	itemRepo, lotRepo, svc := newItemService(t, 100)
	ctx := context.Background()

	lotRepo.EXPECT().GetByID(ctx, int64(7)).Return(&model.Lot{ID: 7}, nil)
	itemRepo.EXPECT().ListPage(ctx, gomock.Any()).Return([]model.Item{
		{ID: 2, LotID: 7, OwnerUsername: strPtr("alice"), Price: float64Ptr(50)},
	}, nil)

	got, err := svc.ListByLot(ctx, domainauth.Requester{Username: "m1", Role: domainauth.RoleManager}, 7)
	require.NoError(t, err)
	assert.Equal(t, 50.0, *got[0].Price)
	assert.Equal(t, "alice", *got[0].OwnerUsername)
}

func TestItemService_ListByLot_UnknownLot(t *testing.T) {
	_, lotRepo, svc := newItemService(t, 100)
	lotRepo.EXPECT().GetByID(gomock.Any(), int64(9)).Return(nil, model.ErrLotNotFound)

	_, err := svc.ListByLot(context.Background(), domainauth.Requester{Role: domainauth.RoleAdmin}, 9)
	assert.ErrorIs(t, err, model.ErrLotNotFound)
}

// Scenario D: rows past the first page are not lost, and the result is
// ordered by creation time then id regardless of store order.
func TestItemService_Mine_PagesPastFirstPageAndSorts(t *testing.T) {
	itemRepo, _, svc := newItemService(t, 2)
	ctx := context.Background()
	owner := "v1"
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	gomock.InOrder(
		itemRepo.EXPECT().ListPage(ctx, model.ItemPageQuery{Owner: &owner, PageQuery: model.PageQuery{Limit: 2}}).
			Return([]model.Item{
				{ID: 1, OwnerUsername: &owner, CreatedAt: base.Add(time.Hour)},
				{ID: 2, OwnerUsername: &owner, CreatedAt: base},
			}, nil),
		itemRepo.EXPECT().ListPage(ctx, model.ItemPageQuery{Owner: &owner, PageQuery: model.PageQuery{After: int64Ptr(2), Limit: 2}}).
			Return([]model.Item{
				{ID: 3, OwnerUsername: &owner, CreatedAt: base},
				{ID: 4, OwnerUsername: &owner, CreatedAt: base.Add(time.Hour)},
			}, nil),
		itemRepo.EXPECT().ListPage(ctx, model.ItemPageQuery{Owner: &owner, PageQuery: model.PageQuery{After: int64Ptr(4), Limit: 2}}).
			Return([]model.Item{}, nil),
	)

	got, err := svc.Mine(ctx, domainauth.Requester{Username: owner, Role: domainauth.RoleViewer})
	require.NoError(t, err)

	ids := make([]int64, len(got))
	for i, it := range got {
		ids[i] = it.ID
	}
	assert.Equal(t, []int64{2, 3, 1, 4}, ids)
}

func TestItemService_Checklist_ExcludesCancelled(t *testing.T) {
	itemRepo, lotRepo, svc := newItemService(t, 100)
	ctx := context.Background()

	lotRepo.EXPECT().GetByID(ctx, int64(3)).Return(&model.Lot{ID: 3}, nil)
	itemRepo.EXPECT().ListPage(ctx, gomock.Any()).Return([]model.Item{
		{ID: 1, LotID: 3, ChecklistStatus: model.ChecklistChecked, Checked: true},
		{ID: 2, LotID: 3, Cancelled: true},
		{ID: 3, LotID: 3, ChecklistStatus: model.ChecklistRejected},
	}, nil)

	got, err := svc.Checklist(ctx, domainauth.Requester{Username: "m1", Role: domainauth.RoleManager}, 3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(3), got[1].ID)
}

func TestItemService_Create_OwnerFromSession(t *testing.T) {
	itemRepo, _, svc := newItemService(t, 100)
	ctx := context.Background()
	sess := &domainauth.Session{IdentityID: 2, Username: "v1", Role: domainauth.RoleViewer}

	itemRepo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, req *model.CreateItemRequest) (*model.Item, error) {
			require.NotNil(t, req.OwnerUsername)
			assert.Equal(t, "v1", *req.OwnerUsername)
			assert.Equal(t, int64(5), req.LotID)
			return &model.Item{ID: 9, LotID: req.LotID, OwnerUsername: req.OwnerUsername}, nil
		})

	it, err := svc.Create(ctx, sess, 5, model.CreateItemRequest{OwnerUsername: strPtr("someone-else"), Price: float64Ptr(3)})
	require.NoError(t, err)
	assert.Equal(t, int64(9), it.ID)
}

func TestItemService_Create_LockedLot(t *testing.T) {
	itemRepo, _, svc := newItemService(t, 100)
	itemRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, model.ErrLotLocked)

	_, err := svc.Create(context.Background(), &domainauth.Session{Username: "m1", Role: domainauth.RoleManager}, 5, model.CreateItemRequest{})
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "lot_id", apperrors.GetField(err))
}

func TestItemService_Create_Rejections(t *testing.T) {
	_, _, svc := newItemService(t, 100)
	ctx := context.Background()

	_, err := svc.Create(ctx, nil, 1, model.CreateItemRequest{})
	assert.ErrorIs(t, err, domainauth.ErrUnauthenticated)

	guest := &domainauth.Session{Username: domainauth.GuestUsername, Role: domainauth.RoleViewer, Guest: true}
	_, err = svc.Create(ctx, guest, 1, model.CreateItemRequest{})
	assert.ErrorIs(t, err, domainauth.ErrForbidden)

	staff := &domainauth.Session{Username: "m1", Role: domainauth.RoleManager}
	_, err = svc.Create(ctx, staff, 1, model.CreateItemRequest{Price: float64Ptr(-1)})
	assert.True(t, apperrors.IsValidation(err))
	_, err = svc.Create(ctx, staff, 0, model.CreateItemRequest{})
	assert.True(t, apperrors.IsValidation(err))
}

func TestItemService_SetChecklist(t *testing.T) {
	itemRepo, _, svc := newItemService(t, 100)
	ctx := context.Background()

	itemRepo.EXPECT().SetChecklistStatus(ctx, int64(4), model.ChecklistChecked).
		Return(&model.Item{ID: 4, ChecklistStatus: model.ChecklistChecked, Checked: true}, nil)
	it, err := svc.SetChecklist(ctx, 4, model.SetChecklistRequest{Status: " Checked "})
	require.NoError(t, err)
	assert.True(t, it.Checked)

	_, err = svc.SetChecklist(ctx, 4, model.SetChecklistRequest{Status: "approved"})
	assert.True(t, apperrors.IsValidation(err))
	_, err = svc.SetChecklist(ctx, 0, model.SetChecklistRequest{Status: model.ChecklistChecked})
	assert.True(t, apperrors.IsValidation(err))
}

func TestItemService_UpdateCancelDelete(t *testing.T) {
	itemRepo, _, svc := newItemService(t, 100)
	ctx := context.Background()

	_, err := svc.Update(ctx, 1, model.UpdateItemRequest{})
	assert.True(t, apperrors.IsValidation(err))

	itemRepo.EXPECT().Update(ctx, int64(1), model.UpdateItemRequest{Price: float64Ptr(12)}).
		Return(&model.Item{ID: 1, Price: float64Ptr(12)}, nil)
	_, err = svc.Update(ctx, 1, model.UpdateItemRequest{Price: float64Ptr(12)})
	require.NoError(t, err)

	itemRepo.EXPECT().Cancel(ctx, int64(1)).Return(&model.Item{ID: 1, Cancelled: true}, nil)
	it, err := svc.Cancel(ctx, 1)
	require.NoError(t, err)
	assert.True(t, it.Cancelled)

	itemRepo.EXPECT().Delete(ctx, int64(1)).Return(true, nil)
	ok, err := svc.Delete(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}
