package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lotledger/lotledger/internal/core"
	"github.com/lotledger/lotledger/internal/data/cryptoutil"
	domainauth "github.com/lotledger/lotledger/internal/domain/auth"
	"github.com/lotledger/lotledger/internal/observability/metrics"
	"github.com/lotledger/lotledger/internal/observability/statsd"
	"github.com/lotledger/lotledger/internal/ports"
)

const (
	sessionTokenBytes = 32
	defaultSessionTTL = 12 * time.Hour
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Identities core.IdentityRepository
	Sessions   ports.SessionStore
	Settings   AuthSettings
}

// AuthSettings holds the optional knobs of AuthService.
type AuthSettings struct {
	SessionTTL   time.Duration
	GuestEnabled bool
	// Vault defaults to cryptoutil.Default().
	Vault cryptoutil.Hasher
	// SSO enables BeginSSO/CompleteSSO when non-nil.
	SSO     ports.AuthProvider
	Metrics statsd.Sink
	Logger  *slog.Logger
	Now     func() time.Time
}

// AuthService issues, resolves and revokes sessions. Password logins go
// through the vault and upgrade legacy plaintext credentials on success.
type AuthService struct {
	identities core.IdentityRepository
	sessions   ports.SessionStore
	vault      cryptoutil.Hasher
	sso        ports.AuthProvider
	ttl        time.Duration
	guest      bool
	metrics    statsd.Sink
	logger     *slog.Logger
	now        func() time.Time
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	if opts.Identities == nil {
		panic("IdentityRepository is required")
	}
	if opts.Sessions == nil {
		panic("SessionStore is required")
	}
	s := opts.Settings
	svc := &AuthService{
		identities: opts.Identities,
		sessions:   opts.Sessions,
		vault:      s.Vault,
		sso:        s.SSO,
		ttl:        s.SessionTTL,
		guest:      s.GuestEnabled,
		metrics:    s.Metrics,
		logger:     s.Logger,
		now:        s.Now,
	}
	if svc.vault == nil {
		svc.vault = cryptoutil.Default()
	}
	if svc.ttl <= 0 {
		svc.ttl = defaultSessionTTL
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

// GuestEnabled reports whether GuestLogin may issue sessions.
func (s *AuthService) GuestEnabled() bool { return s.guest }

// SSOEnabled reports whether an SSO provider is configured.
func (s *AuthService) SSOEnabled() bool { return s.sso != nil }

// Login verifies identifier and password and issues a session.
//
// Failures are domainauth.ErrIdentityNotFound, domainauth.ErrCredentialMissing
// or domainauth.ErrInvalidCredentials. A legacy plaintext credential, or a
// record hashed with other cost parameters, is re-hashed and persisted once it
// verifies; failing to persist is logged and does not fail the login.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*domainauth.Session, error) {
	sess, upgraded, err := s.login(ctx, identifier, password)
	metrics.EmitLogin(s.metrics, metrics.LoginMetric{Method: metrics.MethodPassword, Upgraded: upgraded, Err: err})
	return sess, err
}

func (s *AuthService) login(ctx context.Context, identifier, password string) (*domainauth.Session, bool, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, false, domainauth.ErrIdentityNotFound
	}

	ident, err := s.identities.GetByUsername(ctx, identifier)
	if err != nil {
		if errors.Is(err, domainauth.ErrIdentityNotFound) {
			return nil, false, domainauth.ErrIdentityNotFound
		}
		return nil, false, fmt.Errorf("lookup identity: %w", err)
	}
	if !ident.HasCredential() {
		return nil, false, domainauth.ErrCredentialMissing
	}

	stored := *ident.Credential
	if !s.vault.Verify(password, stored) {
		return nil, false, domainauth.ErrInvalidCredentials
	}
	upgraded := false
	if s.vault.NeedsRehash(stored) {
		upgraded = s.upgradeCredential(ctx, ident.ID, password)
	}

	sess, err := s.issue(ctx, *ident, false)
	if err != nil {
		return nil, upgraded, err
	}
	s.logger.InfoContext(ctx, "login succeeded", "identity_id", ident.ID, "role", ident.Role)
	return sess, upgraded, nil
}

func (s *AuthService) upgradeCredential(ctx context.Context, id int64, password string) bool {
	record, err := s.vault.Hash(password)
	if err != nil {
		s.logger.ErrorContext(ctx, "hash legacy credential", "identity_id", id, "error", err)
		return false
	}
	if err := s.identities.UpdateCredential(ctx, id, record); err != nil {
		s.logger.ErrorContext(ctx, "persist upgraded credential", "identity_id", id, "error", err)
		return false
	}
	s.logger.InfoContext(ctx, "rehashed credential", "identity_id", id)
	return true
}

// GuestLogin issues a viewer session for the guest pseudo-identity.
func (s *AuthService) GuestLogin(ctx context.Context) (*domainauth.Session, error) {
	if !s.guest {
		metrics.EmitLogin(s.metrics, metrics.LoginMetric{Method: metrics.MethodGuest, Err: domainauth.ErrGuestDisabled})
		return nil, domainauth.ErrGuestDisabled
	}
	sess, err := s.issue(ctx, domainauth.Identity{Username: domainauth.GuestUsername, Role: domainauth.RoleViewer}, true)
	metrics.EmitLogin(s.metrics, metrics.LoginMetric{Method: metrics.MethodGuest, Err: err})
	return sess, err
}

func (s *AuthService) issue(ctx context.Context, ident domainauth.Identity, guest bool) (*domainauth.Session, error) {
	token, err := newSessionToken()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sess := domainauth.Session{
		Token:         token,
		IdentityID:    ident.ID,
		Username:      ident.Username,
		DisplayNumber: ident.DisplayNumber,
		Role:          ident.Role,
		Guest:         guest,
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.ttl),
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return &sess, nil
}

// Authenticate resolves token to a live session. Any failure to find a live
// session or its identity is domainauth.ErrUnauthenticated; store errors are
// returned wrapped so callers can tell an outage from a bad token.
//
// Non-guest sessions are re-checked against the identity store, and the
// returned session carries the identity's current role.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domainauth.Session, error) {
	if token == "" {
		return nil, domainauth.ErrUnauthenticated
	}
	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, ports.ErrSessionNotFound) {
			return nil, domainauth.ErrUnauthenticated
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if !sess.Active(s.now()) {
		return nil, domainauth.ErrUnauthenticated
	}
	if sess.IsGuest() {
		if !s.guest {
			return nil, domainauth.ErrUnauthenticated
		}
		return &sess, nil
	}

	ident, err := s.identities.GetByID(ctx, sess.IdentityID)
	if err != nil {
		if errors.Is(err, domainauth.ErrIdentityNotFound) {
			return nil, domainauth.ErrUnauthenticated
		}
		return nil, fmt.Errorf("lookup session identity: %w", err)
	}
	sess.Role = ident.Role
	sess.Username = ident.Username
	sess.DisplayNumber = ident.DisplayNumber
	return &sess, nil
}

// Revoke invalidates token. Unknown and already revoked tokens are not errors.
func (s *AuthService) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.Revoke(ctx, token); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// BeginSSOResult contains the redirect target and the values the caller must
// keep until the callback.
type BeginSSOResult struct {
	AuthURL string
	State   string
	Nonce   string
}

// BeginSSO starts an SSO flow for a migrated identity.
func (s *AuthService) BeginSSO(ctx context.Context, redirectURL string) (*BeginSSOResult, error) {
	if s.sso == nil {
		return nil, errSSODisabled
	}
	if redirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	authURL, state, nonce, err := s.sso.Begin(ctx, ports.BeginInput{RedirectURL: redirectURL})
	if err != nil {
		return nil, fmt.Errorf("begin sso flow: %w", err)
	}
	return &BeginSSOResult{AuthURL: authURL, State: state, Nonce: nonce}, nil
}

// CompleteSSOInput groups parameters for completing an SSO flow.
type CompleteSSOInput struct {
	Code  string
	State string
	Nonce string
}

// CompleteSSO exchanges the callback code, maps the provider subject to the
// identity carrying it as external id and issues a session. A subject with
// no matching identity is domainauth.ErrIdentityNotFound.
func (s *AuthService) CompleteSSO(ctx context.Context, in CompleteSSOInput) (*domainauth.Session, error) {
	sess, err := s.completeSSO(ctx, in)
	if !IsSSODisabled(err) {
		metrics.EmitLogin(s.metrics, metrics.LoginMetric{Method: metrics.MethodSSO, Err: err})
	}
	return sess, err
}

func (s *AuthService) completeSSO(ctx context.Context, in CompleteSSOInput) (*domainauth.Session, error) {
	if s.sso == nil {
		return nil, errSSODisabled
	}
	if in.Code == "" || in.State == "" || in.Nonce == "" {
		return nil, domainauth.ErrUnauthenticated
	}
	ext, err := s.sso.Exchange(ctx, ports.ExchangeInput(in))
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	ident, err := s.identities.GetByExternalID(ctx, ext.Subject)
	if err != nil {
		if errors.Is(err, domainauth.ErrIdentityNotFound) {
			return nil, domainauth.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("lookup identity by external id: %w", err)
	}
	sess, err := s.issue(ctx, *ident, false)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "sso login succeeded", "identity_id", ident.ID, "role", ident.Role)
	return sess, nil
}

var errSSODisabled = errors.New("single sign-on is not configured")

// IsSSODisabled reports whether err came from an SSO call on a service without a provider.
func IsSSODisabled(err error) bool { return errors.Is(err, errSSODisabled) }

// newSessionToken returns 32 random bytes encoded as unpadded base64url.
func newSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
