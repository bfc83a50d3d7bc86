package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotledger/lotledger/internal/adapters/memstore"
	domainauth "github.com/lotledger/lotledger/internal/domain/auth"
	mockauth "github.com/lotledger/lotledger/internal/mocks/auth"
	"github.com/lotledger/lotledger/internal/ports"
	"github.com/lotledger/lotledger/internal/service"
)

func newSSOHandlers(t *testing.T, provider ports.AuthProvider) *AuthHandlers {
	t.Helper()
	ext := "ext-1"
	identities := mockauth.NewIdentityStore(domainauth.Identity{
		Username:   "alice",
		Role:       domainauth.RoleManager,
		ExternalID: &ext,
	})
	svc := service.NewAuthService(service.AuthServiceOptions{
		Identities: identities,
		Sessions:   memstore.NewSessionStore(),
		Settings:   service.AuthSettings{SessionTTL: time.Hour, SSO: provider},
	})
	return &AuthHandlers{Svc: svc, SSOCallbackURL: "http://localhost:8080/auth/sso/callback"}
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAuthHandlers_SSOFlow(t *testing.T) {
	h := newSSOHandlers(t, mockauth.NewMockAuthProvider())

	rec := httptest.NewRecorder()
	h.SSOLogin(rec, httptest.NewRequest(http.MethodGet, "/auth/sso/login?redirect_uri=/api/lots", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://mock-idp/auth", rec.Header().Get("Location"))

	cookies := rec.Result().Cookies()
	state := cookieByName(cookies, "oauth_state")
	nonce := cookieByName(cookies, "oauth_nonce")
	redirect := cookieByName(cookies, "post_login_redirect")
	require.NotNil(t, state)
	require.NotNil(t, nonce)
	require.NotNil(t, redirect)
	assert.Equal(t, "state-1", state.Value)
	assert.Equal(t, "/api/lots", redirect.Value)

	req := httptest.NewRequest(http.MethodGet, "/auth/sso/callback?code=c&state=state-1", nil)
	req.AddCookie(state)
	req.AddCookie(nonce)
	req.AddCookie(redirect)
	rec = httptest.NewRecorder()
	h.SSOCallback(rec, req)

	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	assert.Equal(t, "/api/lots", rec.Header().Get("Location"))
	sess := cookieByName(rec.Result().Cookies(), DefaultSessionCookie)
	require.NotNil(t, sess)
	assert.NotEmpty(t, sess.Value)
}

func TestAuthHandlers_SSOCallbackRejectsStateMismatch(t *testing.T) {
	h := newSSOHandlers(t, mockauth.NewMockAuthProvider())

	req := httptest.NewRequest(http.MethodGet, "/auth/sso/callback?code=c&state=forged", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "state-1"})
	req.AddCookie(&http.Cookie{Name: "oauth_nonce", Value: "nonce-1"})
	rec := httptest.NewRecorder()
	h.SSOCallback(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_state", decodeError(t, rec).Error)
	assert.Nil(t, cookieByName(rec.Result().Cookies(), DefaultSessionCookie))
}

func TestAuthHandlers_SSOUnknownSubject(t *testing.T) {
	provider := mockauth.NewMockAuthProvider()
	provider.DefaultUser = ports.ExternalIdentity{Subject: "ext-unknown"}
	h := newSSOHandlers(t, provider)

	req := httptest.NewRequest(http.MethodGet, "/auth/sso/callback?code=c&state=s", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "s"})
	req.AddCookie(&http.Cookie{Name: "oauth_nonce", Value: "n"})
	rec := httptest.NewRecorder()
	h.SSOCallback(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "identity_not_found", decodeError(t, rec).Error)
}

func TestAuthHandlers_SSODisabled(t *testing.T) {
	h := newSSOHandlers(t, nil)

	rec := httptest.NewRecorder()
	h.SSOLogin(rec, httptest.NewRequest(http.MethodGet, "/auth/sso/login", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "sso_disabled", decodeError(t, rec).Error)
}

func TestSafeRedirectPath(t *testing.T) {
	tests := map[string]string{
		"":                     "/",
		"/api/lots":            "/api/lots",
		"/api/lots?x=1":        "/api/lots?x=1",
		"//evil.example":       "/",
		"https://evil.example": "/",
		"relative/path":        "/",
	}
	for in, want := range tests {
		assert.Equal(t, want, safeRedirectPath(in), "input %q", in)
	}
}
