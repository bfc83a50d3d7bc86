package model

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lotledger/lotledger/internal/errors"
)

func ptr[T any](v T) *T { return &v }

func TestParseChecklistStatus(t *testing.T) {
	s, err := ParseChecklistStatus(" Checked ")
	require.NoError(t, err)
	assert.Equal(t, ChecklistChecked, s)
	assert.True(t, s.IsChecked())
	assert.False(t, ChecklistRejected.IsChecked())
	assert.False(t, ChecklistUnchecked.IsChecked())

	_, err = ParseChecklistStatus("approved")
	assert.True(t, apperrors.IsValidation(err))
}

func TestCreateItemRequest_Validate(t *testing.T) {
	tests := []struct {
		name      string
		req       CreateItemRequest
		wantField string
	}{
		{name: "minimal", req: CreateItemRequest{LotID: 1}},
		{name: "with price and picture", req: CreateItemRequest{LotID: 1, PictureURL: "https://img.example/a.png", Price: ptr(12.5)}},
		{name: "zero price", req: CreateItemRequest{LotID: 1, Price: ptr(0.0)}},
		{name: "missing lot", req: CreateItemRequest{}, wantField: "lot_id"},
		{name: "negative price", req: CreateItemRequest{LotID: 1, Price: ptr(-1.0)}, wantField: "price"},
		{name: "NaN price", req: CreateItemRequest{LotID: 1, Price: ptr(math.NaN())}, wantField: "price"},
		{name: "infinite price", req: CreateItemRequest{LotID: 1, Price: ptr(math.Inf(1))}, wantField: "price"},
		{name: "sub-cent price", req: CreateItemRequest{LotID: 1, Price: ptr(12.345)}, wantField: "price"},
		{name: "price beyond column range", req: CreateItemRequest{LotID: 1, Price: ptr(1e11)}, wantField: "price"},
		{name: "cent precision price", req: CreateItemRequest{LotID: 1, Price: ptr(19.99)}},
		{name: "ftp picture", req: CreateItemRequest{LotID: 1, PictureURL: "ftp://x/y"}, wantField: "picture_url"},
		{name: "hostless picture", req: CreateItemRequest{LotID: 1, PictureURL: "https:///nohost"}, wantField: "picture_url"},
		{
			name:      "picture too long",
			req:       CreateItemRequest{LotID: 1, PictureURL: "https://x.example/" + strings.Repeat("a", 2048)},
			wantField: "picture_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Equal(t, tt.wantField, apperrors.GetField(err))
		})
	}
}

func TestUpdateItemRequest_Validate(t *testing.T) {
	var empty UpdateItemRequest
	assert.True(t, apperrors.IsValidation(empty.Validate()))

	req := UpdateItemRequest{PictureURL: ptr("  https://img.example/b.png ")}
	require.NoError(t, req.Validate())
	assert.Equal(t, "https://img.example/b.png", *req.PictureURL)

	bad := UpdateItemRequest{Price: ptr(-3.0)}
	assert.Equal(t, "price", apperrors.GetField(bad.Validate()))
}

func TestSetChecklistRequest_Validate(t *testing.T) {
	req := SetChecklistRequest{Status: "REJECTED"}
	require.NoError(t, req.Validate())
	assert.Equal(t, ChecklistRejected, req.Status)

	bad := SetChecklistRequest{Status: "done"}
	assert.Error(t, bad.Validate())
}

func TestLotRequests_Validate(t *testing.T) {
	create := CreateLotRequest{Name: "  Spring estate  "}
	require.NoError(t, create.Validate())
	assert.Equal(t, "Spring estate", create.Name)

	blank := CreateLotRequest{Name: "   "}
	assert.Equal(t, "name", apperrors.GetField(blank.Validate()))

	long := CreateLotRequest{Name: strings.Repeat("x", 256)}
	assert.Equal(t, "name", apperrors.GetField(long.Validate()))

	var noop UpdateLotRequest
	assert.True(t, apperrors.IsValidation(noop.Validate()))

	rename := UpdateLotRequest{Name: ptr(" Autumn ")}
	require.NoError(t, rename.Validate())
	assert.Equal(t, "Autumn", *rename.Name)
}

func TestCreateBidRequest_Validate(t *testing.T) {
	ok := CreateBidRequest{ItemID: 3, BidderName: " Dana ", Amount: 10}
	require.NoError(t, ok.Validate())
	assert.Equal(t, "Dana", ok.BidderName)

	for name, req := range map[string]CreateBidRequest{
		"zero amount":     {ItemID: 3, BidderName: "Dana", Amount: 0},
		"negative amount": {ItemID: 3, BidderName: "Dana", Amount: -1},
		"NaN amount":      {ItemID: 3, BidderName: "Dana", Amount: math.NaN()},
		"sub-cent amount": {ItemID: 3, BidderName: "Dana", Amount: 0.001},
		"no bidder":       {ItemID: 3, Amount: 5},
		"no item":         {BidderName: "Dana", Amount: 5},
	} {
		t.Run(name, func(t *testing.T) {
			assert.True(t, apperrors.IsValidation(req.Validate()))
		})
	}
}

func TestItemJSON_RedactedFieldsAreNull(t *testing.T) {
	body, err := json.Marshal(Item{ID: 1, LotID: 2})
	require.NoError(t, err)
	assert.Contains(t, string(body), `"price":null`)
	assert.Contains(t, string(body), `"owner_username":null`)
}

func TestCursorIDs(t *testing.T) {
	id, ok := ItemID(Item{ID: 4})
	assert.True(t, ok)
	assert.Equal(t, int64(4), id)

	_, ok = LotID(Lot{})
	assert.False(t, ok)
	_, ok = BidID(Bid{ID: -1})
	assert.False(t, ok)
}
