package devauth

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotledger/lotledger/internal/ports"
)

func TestNewProviderRequiresSubject(t *testing.T) {
	_, err := NewProvider(Config{Subject: "  "})
	require.Error(t, err)
}

func TestProvider_BeginAndExchange(t *testing.T) {
	prov, err := NewProvider(Config{Subject: "ext-42", Email: "dev@example.com"})
	require.NoError(t, err)

	authURL, state, nonce, err := prov.Begin(context.Background(), ports.BeginInput{RedirectURL: "http://localhost:8080/auth/sso/callback"})
	require.NoError(t, err)
	require.NotEmpty(t, state)
	require.NotEmpty(t, nonce)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, "/auth/sso/callback", u.Path)
	assert.Equal(t, state, u.Query().Get("state"))
	assert.Equal(t, "dev", u.Query().Get("code"))

	ext, err := prov.Exchange(context.Background(), ports.ExchangeInput{Code: "dev", State: state, Nonce: nonce})
	require.NoError(t, err)
	assert.Equal(t, "ext-42", ext.Subject)
	assert.Equal(t, "dev@example.com", ext.Email)

	// states are single use
	_, err = prov.Exchange(context.Background(), ports.ExchangeInput{Code: "dev", State: state, Nonce: nonce})
	require.Error(t, err)
}

func TestProvider_ExchangeRejectsWrongNonce(t *testing.T) {
	prov, err := NewProvider(Config{Subject: "ext-42"})
	require.NoError(t, err)

	_, state, _, err := prov.Begin(context.Background(), ports.BeginInput{RedirectURL: "/auth/sso/callback"})
	require.NoError(t, err)

	_, err = prov.Exchange(context.Background(), ports.ExchangeInput{Code: "dev", State: state, Nonce: "other"})
	require.Error(t, err)
}
