package model

import (
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/lotledger/lotledger/internal/errors"
)

const maxPictureURLLen = 2048

// ChecklistStatus is the review state of an item.
type ChecklistStatus string

const (
	ChecklistUnchecked ChecklistStatus = "unchecked"
	ChecklistChecked   ChecklistStatus = "checked"
	ChecklistRejected  ChecklistStatus = "rejected"
)

// Valid reports whether the checklist status is supported.
func (s ChecklistStatus) Valid() bool {
	switch s {
	case ChecklistUnchecked, ChecklistChecked, ChecklistRejected:
		return true
	default:
		return false
	}
}

// ParseChecklistStatus normalizes a status string.
func ParseChecklistStatus(value string) (ChecklistStatus, error) {
	s := ChecklistStatus(strings.ToLower(strings.TrimSpace(value)))
	if !s.Valid() {
		return "", apperrors.ValidationField("status", "status must be one of: unchecked, checked, rejected")
	}
	return s, nil
}

// IsChecked is the only source of the Item.Checked flag.
func (s ChecklistStatus) IsChecked() bool { return s == ChecklistChecked }

// Item is a single entry within a lot. Price and OwnerUsername are optional
// and may be redacted before leaving the service layer.
type Item struct {
	ID              int64           `json:"id"                       db:"id"`
	LotID           int64           `json:"lot_id"                   db:"lot_id"`
	OwnerUsername   *string         `json:"owner_username"           db:"owner_username"`
	PictureURL      string          `json:"picture_url"              db:"picture_url"`
	Price           *float64        `json:"price"                    db:"price"`
	Cancelled       bool            `json:"cancelled"                db:"cancelled"`
	ChecklistStatus ChecklistStatus `json:"checklist_status"         db:"checklist_status"`
	Checked         bool            `json:"checked"                  db:"checked"`
	CreatedAt       time.Time       `json:"created_at"               db:"created_at"`
}

// ItemID returns the item id for cursor pagination.
func ItemID(i Item) (int64, bool) { return i.ID, i.ID > 0 }

// CreateItemRequest represents parameters to create an Item. OwnerUsername
// is filled from the caller's session, never from the request body.
type CreateItemRequest struct {
	LotID         int64    `json:"-"`
	OwnerUsername *string  `json:"-"`
	PictureURL    string   `json:"picture_url"`
	Price         *float64 `json:"price,omitempty"`
}

// UpdateItemRequest represents parameters to update an Item.
type UpdateItemRequest struct {
	PictureURL *string  `json:"picture_url,omitempty"`
	Price      *float64 `json:"price,omitempty"`
}

// SetChecklistRequest sets the checklist status of an Item.
type SetChecklistRequest struct {
	Status ChecklistStatus `json:"status"`
}

// Validate validates CreateItemRequest.
func (r *CreateItemRequest) Validate() error {
	if r.LotID <= 0 {
		return apperrors.ValidationField("lot_id", "lot_id must be at least 1")
	}
	pic, err := validatePictureURL(r.PictureURL)
	if err != nil {
		return err
	}
	r.PictureURL = pic
	return validatePrice(r.Price)
}

// HasUpdates reports whether any field is set.
func (r *UpdateItemRequest) HasUpdates() bool {
	return r.PictureURL != nil || r.Price != nil
}

// Validate validates UpdateItemRequest.
func (r *UpdateItemRequest) Validate() error {
	if !r.HasUpdates() {
		return apperrors.Validation("at least one field must be updated")
	}
	if r.PictureURL != nil {
		pic, err := validatePictureURL(*r.PictureURL)
		if err != nil {
			return err
		}
		r.PictureURL = &pic
	}
	return validatePrice(r.Price)
}

// Validate validates and normalizes SetChecklistRequest.
func (r *SetChecklistRequest) Validate() error {
	s, err := ParseChecklistStatus(string(r.Status))
	if err != nil {
		return err
	}
	r.Status = s
	return nil
}

func validatePrice(p *float64) error {
	if p == nil {
		return nil
	}
	return validateMoney("price", *p, true)
}

// validatePictureURL allows an empty value; otherwise it must be an
// absolute http(s) URL.
func validatePictureURL(raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", nil
	}
	if utf8.RuneCountInString(v) > maxPictureURLLen {
		return "", apperrors.ValidationField("picture_url", "picture_url cannot exceed 2048 characters")
	}
	u, err := url.Parse(v)
	if err != nil {
		return "", apperrors.ValidationField("picture_url", "picture_url must be a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", apperrors.ValidationField("picture_url", "picture_url must use http or https scheme")
	}
	if u.Host == "" {
		return "", apperrors.ValidationField("picture_url", "picture_url must have a valid host")
	}
	return v, nil
}
