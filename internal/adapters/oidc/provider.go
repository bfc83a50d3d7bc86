package oidc

// Package oidc provides the OIDC single sign-on adapter used by identities
// that were migrated to the external provider.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/lotledger/lotledger/internal/ports"
)

var _ ports.AuthProvider = (*Provider)(nil)

// Provider implements ports.AuthProvider using OIDC/OAuth2.
type Provider struct {
	config       *oauth2.Config
	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier
}

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	DiscoveryURL string
	HTTPClient   *http.Client // Optional, defaults to a client with a 30s timeout
}

// DiscoveryDocument represents the OIDC discovery document.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
}

func (c ProviderConfig) validate() error {
	switch {
	case c.ClientID == "":
		return errors.New("client ID is required")
	case c.ClientSecret == "":
		return errors.New("client secret is required")
	case c.RedirectURL == "":
		return errors.New("redirect URL is required")
	case c.DiscoveryURL == "":
		return errors.New("discovery URL is required")
	}
	return nil
}

// NewProvider creates a new OIDC provider. It fetches the discovery
// document once.
func NewProvider(ctx context.Context, config ProviderConfig) (*Provider, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)

	issuer := strings.TrimSuffix(config.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	scopes := strings.Fields(config.Scope)
	if !slices.Contains(scopes, gooidc.ScopeOpenID) {
		scopes = append([]string{gooidc.ScopeOpenID}, scopes...)
	}

	return &Provider{
		oidcProvider: op,
		verifier:     op.Verifier(&gooidc.Config{ClientID: config.ClientID}),
		config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       scopes,
			Endpoint:     op.Endpoint(),
		},
	}, nil
}

func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (string, string, string, error) {
	if in.RedirectURL == "" {
		return "", "", "", errors.New("redirect URL is required")
	}
	state, err := randomToken(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomToken(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}

	authURL := p.config.AuthCodeURL(state, gooidc.Nonce(nonce))
	return authURL, state, nonce, nil
}

func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (ports.ExternalIdentity, error) {
	switch {
	case in.Code == "":
		return ports.ExternalIdentity{}, errors.New("authorization code is required")
	case in.State == "":
		return ports.ExternalIdentity{}, errors.New("state is required")
	case in.Nonce == "":
		return ports.ExternalIdentity{}, errors.New("nonce is required")
	}

	token, err := p.config.Exchange(ctx, in.Code)
	if err != nil {
		return ports.ExternalIdentity{}, fmt.Errorf("exchange code for token: %w", err)
	}
	rawID, err := idTokenFrom(token)
	if err != nil {
		return ports.ExternalIdentity{}, err
	}
	idTok, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return ports.ExternalIdentity{}, fmt.Errorf("verify id_token: %w", err)
	}
	if idTok.Nonce != in.Nonce {
		return ports.ExternalIdentity{}, errors.New("invalid nonce")
	}

	var claims struct {
		Email string `json:"email"`
	}
	if err := idTok.Claims(&claims); err != nil {
		return ports.ExternalIdentity{}, fmt.Errorf("parse id_token claims: %w", err)
	}
	return ports.ExternalIdentity{Subject: idTok.Subject, Email: claims.Email}, nil
}

func idTokenFrom(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	s, ok := tok.Extra("id_token").(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}

// randomToken returns a URL-safe random string of exactly length characters.
func randomToken(length int) (string, error) {
	b := make([]byte, (length*3+3)/4+1)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length], nil
}
