package auth

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	apperrors "github.com/lotledger/lotledger/internal/errors"
)

const maxUsernameLen = 64

// IdentityID returns the identity id for cursor pagination.
func IdentityID(i Identity) (int64, bool) { return i.ID, i.ID > 0 }

// CreateIdentityRequest represents parameters to create an Identity.
// Password is hashed by the service before it reaches the store.
type CreateIdentityRequest struct {
	Username      string  `json:"username"`
	DisplayNumber int     `json:"display_number"`
	Email         *string `json:"email,omitempty"`
	Role          Role    `json:"role"`
	Password      string  `json:"password"`
}

// Validate validates and normalizes the request.
func (r *CreateIdentityRequest) Validate() error {
	name := strings.TrimSpace(r.Username)
	if name == "" {
		return apperrors.ValidationField("username", "username is required and cannot be empty")
	}
	if utf8.RuneCountInString(name) > maxUsernameLen {
		return apperrors.ValidationField("username", "username cannot exceed 64 characters")
	}
	if strings.EqualFold(name, GuestUsername) {
		return apperrors.ValidationField("username", "username is reserved")
	}
	r.Username = name

	role, err := ParseRole(string(r.Role))
	if err != nil {
		return apperrors.ValidationField("role", err.Error())
	}
	r.Role = role

	if r.DisplayNumber < 0 {
		return apperrors.ValidationField("display_number", "display_number must be non-negative")
	}
	if r.Password == "" {
		return apperrors.ValidationField("password", "password is required and cannot be empty")
	}
	if r.Email != nil {
		e := strings.TrimSpace(*r.Email)
		if _, err := mail.ParseAddress(e); err != nil {
			return apperrors.ValidationField("email", "email must be a valid address")
		}
		r.Email = &e
	}
	return nil
}

// NewIdentity is the record a repository persists for a new identity.
type NewIdentity struct {
	Username      string
	DisplayNumber int
	Email         *string
	Role          Role
	Credential    string
}

// MigratedCredential is written when an identity is moved to the external provider.
type MigratedCredential struct {
	IdentityID int64
	Credential string
	ExternalID string
}
