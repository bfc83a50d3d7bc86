// Package idp is the HTTP client for the external identity provider that
// credentials are migrated to.
package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/lotledger/lotledger/internal/ports"
)

const (
	defaultIDPath  = "id"
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 512
)

var _ ports.IdentityProvider = (*Client)(nil)

// Config configures the identity provider client.
type Config struct {
	// Endpoint receives POST requests that create a user.
	Endpoint string
	APIKey   string
	// IDPath is a JMESPath expression selecting the new user's id from the
	// response body, e.g. "id" or "data.user.uid".
	IDPath     string
	HTTPClient *http.Client
}

// Client creates users in the external identity provider.
type Client struct {
	endpoint string
	apiKey   string
	idPath   func(data any) (any, error)
	http     *http.Client
}

// NewClient validates cfg and compiles the id path.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("identity provider endpoint is required")
	}
	path := strings.TrimSpace(cfg.IDPath)
	if path == "" {
		path = defaultIDPath
	}
	compiled, err := jmespath.Compile(path)
	if err != nil {
		return nil, fmt.Errorf("compile id path %q: %w", path, err)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{endpoint: cfg.Endpoint, apiKey: cfg.APIKey, idPath: compiled.Search, http: hc}, nil
}

type createUserRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	EmailVerified bool   `json:"email_verified"`
}

// StatusError is returned when the provider answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("identity provider returned %d", e.StatusCode)
	}
	return fmt.Sprintf("identity provider returned %d: %s", e.StatusCode, e.Body)
}

// CreateIdentity registers email/password and returns the provider's id.
func (c *Client) CreateIdentity(ctx context.Context, email, password string) (string, error) {
	body, err := json.Marshal(createUserRequest{Email: email, Password: password, EmailVerified: true})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("identity provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return c.extractID(payload)
}

func (c *Client) extractID(payload any) (string, error) {
	v, err := c.idPath(payload)
	if err != nil {
		return "", fmt.Errorf("evaluate id path: %w", err)
	}
	switch id := v.(type) {
	case string:
		if id = strings.TrimSpace(id); id != "" {
			return id, nil
		}
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), nil
	}
	return "", errors.New("identity provider response has no id")
}
