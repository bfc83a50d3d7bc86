package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/lotledger/lotledger/internal/domain/auth"
	"github.com/lotledger/lotledger/internal/service"
)

// AuthServiceInterface defines the interface for auth service operations.
type AuthServiceInterface interface {
	Authenticator
	Login(ctx context.Context, identifier, password string) (*domainauth.Session, error)
	GuestLogin(ctx context.Context) (*domainauth.Session, error)
	Revoke(ctx context.Context, token string) error
	BeginSSO(ctx context.Context, redirectURL string) (*service.BeginSSOResult, error)
	CompleteSSO(ctx context.Context, in service.CompleteSSOInput) (*domainauth.Session, error)
}

var _ AuthServiceInterface = (*service.AuthService)(nil)

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc     AuthServiceInterface
	Cookies CookieSettings
	// SSOCallbackURL is handed to the provider when an SSO flow starts.
	SSOCallbackURL string
	Logger         *slog.Logger
}

// CookieSettings controls the attributes of cookies set by AuthHandlers.
type CookieSettings struct {
	Name   string
	Domain string
	// Secure forces the Secure attribute; requests over TLS get it regardless.
	Secure bool
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *AuthHandlers) cookieName() string {
	if h.Cookies.Name == "" {
		return DefaultSessionCookie
	}
	return h.Cookies.Name
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// sessionView is the client-facing shape of a session.
type sessionView struct {
	IdentityID    int64           `json:"identity_id"`
	Username      string          `json:"username"`
	DisplayNumber int             `json:"display_number"`
	Role          domainauth.Role `json:"role"`
	Guest         bool            `json:"guest"`
	ExpiresAt     time.Time       `json:"expires_at"`
}

func viewOf(s *domainauth.Session) sessionView {
	return sessionView{
		IdentityID:    s.IdentityID,
		Username:      s.Username,
		DisplayNumber: s.DisplayNumber,
		Role:          s.Role,
		Guest:         s.Guest,
		ExpiresAt:     s.ExpiresAt,
	}
}

// Login handles password login.
// POST /auth/login {"username": "...", "password": "..."}.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	sess, err := h.Svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.logger().InfoContext(r.Context(), "login rejected", "error", err)
		writeServiceError(w, r, h.logger(), err)
		return
	}
	h.writeSession(w, r, sess)
}

// Guest issues a read-only guest session when guest access is enabled.
// POST /auth/guest.
func (h *AuthHandlers) Guest(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Svc.GuestLogin(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	h.writeSession(w, r, sess)
}

func (h *AuthHandlers) writeSession(w http.ResponseWriter, r *http.Request, sess *domainauth.Session) {
	h.setSessionCookie(w, r, sess)
	WriteJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"token":   sess.Token,
		"session": viewOf(sess),
	})
}

// Logout revokes the caller's session if any. Unknown tokens succeed; a
// store failure is reported and the cookie is kept so the client can retry.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if token := TokenFromRequest(r, h.cookieName()); token != "" {
		if err := h.Svc.Revoke(r.Context(), token); err != nil {
			writeServiceError(w, r, h.logger(), err)
			return
		}
	}
	h.clearCookie(w, r, h.cookieName())
	WriteOK(w, http.StatusOK, "", nil)
}

// Status returns the current authentication status.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	token := TokenFromRequest(r, h.cookieName())
	if token == "" {
		WriteOK(w, http.StatusOK, "authenticated", false)
		return
	}
	sess, err := h.Svc.Authenticate(r.Context(), token)
	if err != nil {
		if !errors.Is(err, domainauth.ErrUnauthenticated) {
			writeServiceError(w, r, h.logger(), err)
			return
		}
		h.clearCookie(w, r, h.cookieName())
		WriteOK(w, http.StatusOK, "authenticated", false)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"ok":            true,
		"authenticated": true,
		"session":       viewOf(sess),
	})
}

// SSOLogin starts the single sign-on flow.
// GET /auth/sso/login?redirect_uri=<optional_redirect>.
func (h *AuthHandlers) SSOLogin(w http.ResponseWriter, r *http.Request) {
	redirectURI := safeRedirectPath(r.URL.Query().Get("redirect_uri"))

	result, err := h.Svc.BeginSSO(r.Context(), h.SSOCallbackURL)
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}

	h.setOAuthCookies(w, r, oauthCookieParams{State: result.State, Nonce: result.Nonce, RedirectURI: redirectURI})
	http.Redirect(w, r, result.AuthURL, http.StatusFound)
}

// SSOCallback completes the single sign-on flow.
// GET /auth/sso/callback?code=<code>&state=<state>.
func (h *AuthHandlers) SSOCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "validation",
			Err:     errors.New("code and state parameters are required"),
		})
		return
	}

	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value != state {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_state",
			Err:     errors.New("invalid or missing state parameter"),
		})
		return
	}
	nonceCookie, err := r.Cookie("oauth_nonce")
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_nonce",
			Err:     errors.New("missing nonce parameter"),
		})
		return
	}

	sess, err := h.Svc.CompleteSSO(r.Context(), service.CompleteSSOInput{
		Code:  code,
		State: state,
		Nonce: nonceCookie.Value,
	})
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}

	h.setSessionCookie(w, r, sess)
	h.clearCookie(w, r, "oauth_state")
	h.clearCookie(w, r, "oauth_nonce")
	http.Redirect(w, r, h.getPostLoginRedirect(w, r), http.StatusFound)
}

func (h *AuthHandlers) secure(r *http.Request) bool {
	return h.Cookies.Secure || r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// clearCookie clears a cookie by setting it to expire immediately.
// It mirrors the attributes used when setting cookies.
func (h *AuthHandlers) clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.Cookies.Domain,
		HttpOnly: true,
		Secure:   h.secure(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}

// oauthCookieParams groups values needed to set OAuth cookies (≤3 params rule).
type oauthCookieParams struct {
	State       string
	Nonce       string
	RedirectURI string
}

// setOAuthCookies stores OAuth state, nonce, and the post-login redirect for ten minutes.
func (h *AuthHandlers) setOAuthCookies(w http.ResponseWriter, r *http.Request, p oauthCookieParams) {
	for _, c := range []struct{ name, value string }{
		{"oauth_state", p.State},
		{"oauth_nonce", p.Nonce},
		{"post_login_redirect", p.RedirectURI},
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     c.name,
			Value:    c.value,
			Path:     "/",
			Domain:   h.Cookies.Domain,
			HttpOnly: true,
			Secure:   h.secure(r),
			SameSite: http.SameSiteLaxMode,
			MaxAge:   600,
		})
	}
}

// setSessionCookie writes the session cookie based on the session's expiry.
func (h *AuthHandlers) setSessionCookie(w http.ResponseWriter, r *http.Request, s *domainauth.Session) {
	maxAge := int(time.Until(s.ExpiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName(),
		Value:    s.Token,
		Path:     "/",
		Domain:   h.Cookies.Domain,
		HttpOnly: true,
		Secure:   h.secure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// getPostLoginRedirect returns the post-login redirect URL and clears the cookie.
func (h *AuthHandlers) getPostLoginRedirect(w http.ResponseWriter, r *http.Request) string {
	redirectURI := "/"
	if c, err := r.Cookie("post_login_redirect"); err == nil {
		redirectURI = safeRedirectPath(c.Value)
		h.clearCookie(w, r, "post_login_redirect")
	}
	return redirectURI
}

// safeRedirectPath ensures the provided redirect is a same-origin relative path
// starting with "/" and not an absolute URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(candidate, "//") {
		return "/"
	}
	return candidate
}
