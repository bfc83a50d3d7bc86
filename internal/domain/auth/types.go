package auth

// Package auth contains domain-level types for authentication, sessions and
// role-based authorization. It is pure and free of framework/adapter concerns.

import (
	"fmt"
	"strings"
	"time"
)

// Role represents an application's authorization role.
// Keep string form for easy persistence and cookies.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleViewer  Role = "viewer"
)

// GuestUsername is the username carried by guest sessions.
const GuestUsername = "guest"

// ParseRole validates a role string.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("role must be one of: admin, manager, viewer (got %q)", s)
	}
	return r, nil
}

// Valid reports whether r is a recognized role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleViewer:
		return true
	default:
		return false
	}
}

// Identity is an authenticated principal as stored in the identities table.
// Credential holds the stored credential record (hashed or legacy plaintext);
// ExternalID is set once the identity has been migrated to the external provider.
type Identity struct {
	ID            int64     `db:"id"             json:"id"`
	Username      string    `db:"username"       json:"username"`
	DisplayNumber int       `db:"display_number" json:"display_number"`
	Email         *string   `db:"email"          json:"email,omitempty"`
	Role          Role      `db:"role"           json:"role"`
	Credential    *string   `db:"credential"     json:"-"`
	ExternalID    *string   `db:"external_id"    json:"external_id,omitempty"`
	CreatedAt     time.Time `db:"created_at"     json:"created_at"`
}

// HasCredential reports whether a non-empty credential record is stored.
func (i Identity) HasCredential() bool {
	return i.Credential != nil && *i.Credential != ""
}

// Session is the server-side record we persist for an authenticated user.
// Token is an opaque, unguessable identifier.
type Session struct {
	Token         string    `json:"token"`
	IdentityID    int64     `json:"identity_id"`
	Username      string    `json:"username"`
	DisplayNumber int       `json:"display_number"`
	Role          Role      `json:"role"`
	Guest         bool      `json:"guest,omitempty"`
	IssuedAt      time.Time `json:"issued_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	Revoked       bool      `json:"revoked,omitempty"`
}

// IsGuest returns true if the session belongs to the guest pseudo-identity.
func (s Session) IsGuest() bool { return s.Guest }

// Active reports whether the session can authenticate a request at now.
func (s Session) Active(now time.Time) bool {
	return !s.Revoked && now.Before(s.ExpiresAt)
}

// Requester is the minimal view of a caller used by read-path filters.
type Requester struct {
	Username string
	Role     Role
}

// Requester returns the requester view of the session.
func (s Session) Requester() Requester {
	return Requester{Username: s.Username, Role: s.Role}
}
