package config

import (
	"strings"
	"time"
)

const (
	defaultPageSize = 1000
	maxPageSize     = 10000
)

// PaginationConfig controls how many rows a single store round trip fetches.
type PaginationConfig struct {
	PageSize int `env:"STORE_PAGE_SIZE" envDefault:"1000"`
}

// Sanitize clamps PageSize into [1, 10000]; non-positive values fall back to the default.
func (p *PaginationConfig) Sanitize() {
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
}

// MigrationConfig configures the external identity provider used by the
// credential migration.
type MigrationConfig struct {
	// ProviderURL is the user-creation endpoint of the identity provider.
	ProviderURL string `env:"PROVIDER_URL"`
	// ProviderAPIKey is sent as a bearer token.
	ProviderAPIKey string `env:"PROVIDER_API_KEY"`
	// ProviderIDPath is a JMESPath expression locating the new user's id in the response body.
	ProviderIDPath string `env:"PROVIDER_ID_PATH" envDefault:"id"`
	// EmailDomain builds username@domain for identities without an email. Empty disables the fallback.
	EmailDomain string        `env:"EMAIL_DOMAIN"`
	Timeout     time.Duration `env:"TIMEOUT"      envDefault:"10s"`
}

// Enabled reports whether a provider endpoint is configured.
func (m MigrationConfig) Enabled() bool {
	return m.ProviderURL != ""
}

// Sanitize trims values and applies defaults.
func (m *MigrationConfig) Sanitize() {
	m.ProviderURL = strings.TrimSpace(m.ProviderURL)
	m.ProviderIDPath = strings.TrimSpace(m.ProviderIDPath)
	if m.ProviderIDPath == "" {
		m.ProviderIDPath = "id"
	}
	m.EmailDomain = strings.TrimPrefix(strings.TrimSpace(m.EmailDomain), "@")
	if m.Timeout <= 0 {
		m.Timeout = 10 * time.Second
	}
}
