package config

import (
	"fmt"
	"strings"
	"time"
)

// SessionBackend selects where sessions are stored.
type SessionBackend string

const (
	// SessionBackendRedis stores sessions in Redis (shared across instances).
	SessionBackendRedis SessionBackend = "redis"
	// SessionBackendMemory keeps sessions in process memory (single instance, dev).
	SessionBackendMemory SessionBackend = "memory"
)

// UnmarshalText implements encoding.TextUnmarshaler for SessionBackend.
func (b *SessionBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "redis", "memory":
		*b = SessionBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid SessionBackend: %q (valid options: redis, memory)", v)
	}
}

// OAuthConfig contains OIDC configuration for single sign-on by migrated identities.
// SSO is disabled while DiscoveryURL is empty.
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"     envDefault:"lotledger"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/auth/sso/callback"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email"`
	DiscoveryURL string `env:"DISCOVERY_URL"`

	// DevSubject, in dev mode only, replaces the OIDC flow with a local
	// provider asserting this subject.
	DevSubject string `env:"DEV_SUBJECT"`
}

// Enabled reports whether enough is configured to run the OIDC flow.
func (o OAuthConfig) Enabled() bool {
	return o.DiscoveryURL != "" && o.ClientID != ""
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// SessionTTL is the lifetime of an issued session.
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"12h"`

	// SessionBackend selects the session store.
	SessionBackend SessionBackend `env:"SESSION_BACKEND" envDefault:"redis"`

	// SessionSweepInterval is how often the memory backend drops expired sessions.
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1m"`

	// GuestEnabled allows POST /auth/guest to issue viewer sessions without credentials.
	GuestEnabled bool `env:"GUEST_ACCESS_ENABLED" envDefault:"false"`

	// CookieName is the name of the session cookie.
	CookieName string `env:"SESSION_COOKIE_NAME" envDefault:"session_id"`

	SSO OAuthConfig `envPrefix:"OAUTH_"`

	Vault VaultConfig `envPrefix:"CREDENTIAL_SCRYPT_"`
}

// VaultConfig holds the scrypt cost parameters for stored credentials.
// Hashed records do not carry their parameters, so changing these makes
// existing hashed credentials unverifiable.
type VaultConfig struct {
	N      int `env:"N"       envDefault:"32768"`
	R      int `env:"R"       envDefault:"8"`
	P      int `env:"P"       envDefault:"1"`
	KeyLen int `env:"KEY_LEN" envDefault:"64"`
}

// Sanitize applies guardrails to auth configuration values.
func (a *AuthConfig) Sanitize() {
	if a.SessionTTL <= 0 {
		a.SessionTTL = 12 * time.Hour
	}
	if a.SessionSweepInterval <= 0 {
		a.SessionSweepInterval = time.Minute
	}
	if a.SessionBackend == "" {
		a.SessionBackend = SessionBackendRedis
	}
	a.CookieName = strings.TrimSpace(a.CookieName)
	if a.CookieName == "" {
		a.CookieName = "session_id"
	}
	a.SSO.DiscoveryURL = strings.TrimSpace(a.SSO.DiscoveryURL)
}
