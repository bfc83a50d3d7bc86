package model

import (
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/lotledger/lotledger/internal/errors"
)

const maxBidderNameLen = 255

// Bid records an offer made on an item.
type Bid struct {
	ID         int64     `json:"id"          db:"id"`
	ItemID     int64     `json:"item_id"     db:"item_id"`
	BidderName string    `json:"bidder_name" db:"bidder_name"`
	Amount     float64   `json:"amount"      db:"amount"`
	CreatedAt  time.Time `json:"created_at"  db:"created_at"`
}

// BidID returns the bid id for cursor pagination.
func BidID(b Bid) (int64, bool) { return b.ID, b.ID > 0 }

// CreateBidRequest represents parameters to record a Bid.
type CreateBidRequest struct {
	ItemID     int64   `json:"-"`
	BidderName string  `json:"bidder_name"`
	Amount     float64 `json:"amount"`
}

// Validate validates CreateBidRequest.
func (r *CreateBidRequest) Validate() error {
	if r.ItemID <= 0 {
		return apperrors.ValidationField("item_id", "item_id must be at least 1")
	}
	name := strings.TrimSpace(r.BidderName)
	if name == "" {
		return apperrors.ValidationField("bidder_name", "bidder_name is required and cannot be empty")
	}
	if utf8.RuneCountInString(name) > maxBidderNameLen {
		return apperrors.ValidationField("bidder_name", "bidder_name cannot exceed 255 characters")
	}
	r.BidderName = name
	return validateMoney("amount", r.Amount, false)
}
