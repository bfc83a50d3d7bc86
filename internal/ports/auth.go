package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"errors"

	domainauth "github.com/lotledger/lotledger/internal/domain/auth"
)

// ErrSessionNotFound is returned by SessionStore.Get when no live record exists.
var ErrSessionNotFound = errors.New("session not found")

// BeginInput carries inputs for initiating an SSO flow.
type BeginInput struct {
	RedirectURL string
}

// ExchangeInput groups parameters for the code/token exchange.
type ExchangeInput struct {
	Code  string
	State string
	Nonce string
}

// ExternalIdentity is what an SSO provider asserts about the user.
type ExternalIdentity struct {
	Subject string
	Email   string
}

// AuthProvider initiates and completes an SSO flow against an IdP.
type AuthProvider interface {
	// Begin starts the login flow and returns the provider auth URL, an opaque state, and a nonce.
	Begin(ctx context.Context, in BeginInput) (authURL, state, nonce string, err error)

	// Exchange completes the login flow, verifying state and nonce.
	Exchange(ctx context.Context, in ExchangeInput) (ExternalIdentity, error)
}

// SessionStore persists and retrieves sessions.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	Get(ctx context.Context, token string) (domainauth.Session, error)
	// Revoke marks the session revoked. Revoking an unknown token is not an error.
	Revoke(ctx context.Context, token string) error
}

// IdentityProvider creates accounts in the external identity provider used
// for credential migration.
type IdentityProvider interface {
	// CreateIdentity registers email with password and returns the provider's id for it.
	CreateIdentity(ctx context.Context, email, password string) (externalID string, err error)
}
