// Package testutil provides testing utilities and helpers for the lot ledger.
package testutil

import (
	"time"

	"github.com/lotledger/lotledger/internal/domain/model"
)

// ItemBuilder provides a fluent interface for building Item rows for testing.
type ItemBuilder struct {
	item model.Item
}

// NewItem creates an ItemBuilder for an active, unreviewed item.
func NewItem(id, lotID int64) *ItemBuilder {
	return &ItemBuilder{item: model.Item{
		ID:              id,
		LotID:           lotID,
		ChecklistStatus: model.ChecklistUnchecked,
		CreatedAt:       TestTime(),
	}}
}

// OwnedBy sets the owner and price.
func (b *ItemBuilder) OwnedBy(owner string, price float64) *ItemBuilder {
	b.item.OwnerUsername = StringPtr(owner)
	b.item.Price = Float64Ptr(price)
	return b
}

// Cancelled marks the item cancelled.
func (b *ItemBuilder) Cancelled() *ItemBuilder {
	b.item.Cancelled = true
	return b
}

// Reviewed sets the checklist status. The checked flag follows it.
func (b *ItemBuilder) Reviewed(status model.ChecklistStatus) *ItemBuilder {
	b.item.ChecklistStatus = status
	b.item.Checked = status.IsChecked()
	return b
}

// CreatedAt sets the creation time.
func (b *ItemBuilder) CreatedAt(t time.Time) *ItemBuilder {
	b.item.CreatedAt = t
	return b
}

// Build returns the item.
func (b *ItemBuilder) Build() model.Item {
	return b.item
}

// CreateRequest returns the matching create request for repository tests.
func (b *ItemBuilder) CreateRequest() *model.CreateItemRequest {
	return &model.CreateItemRequest{
		LotID:         b.item.LotID,
		OwnerUsername: b.item.OwnerUsername,
		PictureURL:    b.item.PictureURL,
		Price:         b.item.Price,
	}
}

// Lots builds lots with sequential ids starting at 1.
func Lots(n int) []model.Lot {
	out := make([]model.Lot, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, model.Lot{ID: int64(i), Name: "lot", CreatedAt: TestTime()})
	}
	return out
}
