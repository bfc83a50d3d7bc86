//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/lotledger/lotledger/internal/errors"
)

const (
	maxLotNameLen        = 255
	maxLotDescriptionLen = 4000
)

// Lot groups items offered together. Visibility is derived from its items
// and is never stored.
type Lot struct {
	ID          int64     `json:"id"          db:"id"`
	Name        string    `json:"name"        db:"name"`
	Description string    `json:"description" db:"description"`
	Locked      bool      `json:"locked"      db:"locked"`
	CreatedAt   time.Time `json:"created_at"  db:"created_at"`
}

// LotID returns the lot id for cursor pagination.
func LotID(l Lot) (int64, bool) { return l.ID, l.ID > 0 }

// CreateLotRequest represents parameters to create a Lot.
type CreateLotRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// UpdateLotRequest represents parameters to update a Lot.
type UpdateLotRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Validate validates and normalizes CreateLotRequest.
func (r *CreateLotRequest) Validate() error {
	name, err := validateLotName(r.Name)
	if err != nil {
		return err
	}
	r.Name = name
	if utf8.RuneCountInString(r.Description) > maxLotDescriptionLen {
		return apperrors.ValidationField("description", "description cannot exceed 4000 characters")
	}
	return nil
}

// HasUpdates reports whether any field is set.
func (r *UpdateLotRequest) HasUpdates() bool {
	return r.Name != nil || r.Description != nil
}

// Validate validates UpdateLotRequest, ensuring at least one field is set.
func (r *UpdateLotRequest) Validate() error {
	if !r.HasUpdates() {
		return apperrors.Validation("at least one field must be updated")
	}
	if r.Name != nil {
		name, err := validateLotName(*r.Name)
		if err != nil {
			return err
		}
		r.Name = &name
	}
	if r.Description != nil && utf8.RuneCountInString(*r.Description) > maxLotDescriptionLen {
		return apperrors.ValidationField("description", "description cannot exceed 4000 characters")
	}
	return nil
}

func validateLotName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", apperrors.ValidationField("name", "name is required and cannot be empty")
	}
	if utf8.RuneCountInString(name) > maxLotNameLen {
		return "", apperrors.ValidationField("name", "name cannot exceed 255 characters")
	}
	return name, nil
}
