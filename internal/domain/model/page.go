package model

import "errors"

// Sentinel errors returned by repositories and services.
var (
	ErrLotNotFound  = errors.New("lot not found")
	ErrItemNotFound = errors.New("item not found")
	ErrLotLocked    = errors.New("lot is locked")
)

// PageQuery is a keyset page request: rows with id > After, at most Limit.
type PageQuery struct {
	After *int64
	Limit int
}

// ItemPageQuery selects a page of items. LotIDs and Owner are optional
// filters; an empty non-nil LotIDs matches nothing.
type ItemPageQuery struct {
	PageQuery
	LotIDs []int64
	Owner  *string
}

// BidPageQuery selects a page of bids for one item.
type BidPageQuery struct {
	PageQuery
	ItemID int64
}
