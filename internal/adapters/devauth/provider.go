package devauth

// Package devauth provides a config-driven SSO provider for local development.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/lotledger/lotledger/internal/ports"
)

var _ ports.AuthProvider = (*Provider)(nil)

// Config controls the dev provider. Subject is required and must match the
// external id of a migrated identity for the callback to succeed.
type Config struct {
	Subject string
	Email   string
}

// Provider short-circuits the OIDC flow by redirecting straight back to the
// callback with locally generated state. Exchange only accepts states it
// issued and returns the configured subject.
type Provider struct {
	ext ports.ExternalIdentity

	mu     sync.Mutex
	issued map[string]string // state -> nonce
}

// NewProvider constructs a dev provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	subject := strings.TrimSpace(cfg.Subject)
	if subject == "" {
		return nil, errors.New("dev auth: Subject is required")
	}
	return &Provider{
		ext:    ports.ExternalIdentity{Subject: subject, Email: strings.TrimSpace(cfg.Email)},
		issued: make(map[string]string),
	}, nil
}

// Begin returns the callback URL with a fresh state and code attached.
func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (string, string, string, error) {
	if in.RedirectURL == "" {
		return "", "", "", errors.New("dev auth: redirect URL is required")
	}
	state, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}

	u, err := url.Parse(in.RedirectURL)
	if err != nil {
		return "", "", "", fmt.Errorf("parse redirect url: %w", err)
	}
	q := u.Query()
	q.Set("code", "dev")
	q.Set("state", state)
	u.RawQuery = q.Encode()

	p.mu.Lock()
	p.issued[state] = nonce
	p.mu.Unlock()
	return u.String(), state, nonce, nil
}

// Exchange consumes a state issued by Begin; the nonce must match.
func (p *Provider) Exchange(_ context.Context, in ports.ExchangeInput) (ports.ExternalIdentity, error) {
	p.mu.Lock()
	nonce, ok := p.issued[in.State]
	delete(p.issued, in.State)
	p.mu.Unlock()

	if !ok {
		return ports.ExternalIdentity{}, errors.New("dev auth: unknown state")
	}
	if nonce != in.Nonce {
		return ports.ExternalIdentity{}, errors.New("dev auth: nonce mismatch")
	}
	return p.ext, nil
}

func randomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	// Compute number of random bytes needed to produce at least n base64 URL chars
	b := make([]byte, (n*3+3)/4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:n], nil
}
