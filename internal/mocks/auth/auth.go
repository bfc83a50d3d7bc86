package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/lotledger/lotledger/internal/core"
	domainauth "github.com/lotledger/lotledger/internal/domain/auth"
	"github.com/lotledger/lotledger/internal/domain/model"
	"github.com/lotledger/lotledger/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AuthProvider      = (*MockAuthProvider)(nil)
	_ ports.IdentityProvider  = (*FakeIdentityProvider)(nil)
	_ core.IdentityRepository = (*IdentityStore)(nil)
)

// MockAuthProvider simulates an OIDC IdP with deterministic state/nonce handling.
type MockAuthProvider struct {
	BeginFunc    func(ctx context.Context, in ports.BeginInput) (authURL, state, nonce string, err error)
	ExchangeFunc func(ctx context.Context, in ports.ExchangeInput) (ports.ExternalIdentity, error)

	AuthURL     string
	StatePrefix string
	NoncePrefix string
	DefaultUser ports.ExternalIdentity

	mu        sync.Mutex
	callCount int
}

// NewMockAuthProvider creates a MockAuthProvider with sensible defaults.
func NewMockAuthProvider() *MockAuthProvider {
	return &MockAuthProvider{
		AuthURL:     "https://mock-idp/auth",
		StatePrefix: "state",
		NoncePrefix: "nonce",
		DefaultUser: ports.ExternalIdentity{Subject: "ext-1", Email: "mock.user@example.com"},
	}
}

func (m *MockAuthProvider) Begin(ctx context.Context, in ports.BeginInput) (string, string, string, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, in)
	}

	m.mu.Lock()
	m.callCount++
	n := m.callCount
	m.mu.Unlock()

	authURL := cmpOr(m.AuthURL, "https://mock-idp/auth")
	state := fmt.Sprintf("%s-%d", cmpOr(m.StatePrefix, "state"), n)
	nonce := fmt.Sprintf("%s-%d", cmpOr(m.NoncePrefix, "nonce"), n)
	return authURL, state, nonce, nil
}

func (m *MockAuthProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (ports.ExternalIdentity, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}
	if m.DefaultUser.Subject == "" {
		return ports.ExternalIdentity{Subject: "ext-1", Email: "mock.user@example.com"}, nil
	}
	return m.DefaultUser, nil
}

func cmpOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// ProviderCall records one CreateIdentity invocation.
type ProviderCall struct {
	Email    string
	Password string
}

// FakeIdentityProvider assigns sequential external ids. Emails listed in
// Fail are rejected with the mapped error.
type FakeIdentityProvider struct {
	Fail map[string]error

	mu    sync.Mutex
	calls []ProviderCall
}

func (f *FakeIdentityProvider) CreateIdentity(_ context.Context, email, password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ProviderCall{Email: email, Password: password})
	if err, ok := f.Fail[email]; ok {
		return "", err
	}
	return fmt.Sprintf("ext-%d", len(f.calls)), nil
}

// Calls returns a copy of the recorded invocations.
func (f *FakeIdentityProvider) Calls() []ProviderCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// IdentityStore is an in-memory IdentityRepository. ListErrAfter, when
// positive, makes ListPage fail once that many rows have been served.
type IdentityStore struct {
	ListErr      error
	ListErrAfter int
	UpdateErr    error

	mu       sync.Mutex
	nextID   int64
	rows     map[int64]domainauth.Identity
	served   int
	ListCall int
}

// NewIdentityStore seeds a store with the given identities. Zero ids are assigned.
func NewIdentityStore(seed ...domainauth.Identity) *IdentityStore {
	s := &IdentityStore{rows: make(map[int64]domainauth.Identity)}
	for _, id := range seed {
		if id.ID == 0 {
			s.nextID++
			id.ID = s.nextID
		}
		s.nextID = max(s.nextID, id.ID)
		s.rows[id.ID] = id
	}
	return s
}

func (s *IdentityStore) Create(_ context.Context, in domainauth.NewIdentity) (*domainauth.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.Username == in.Username {
			return nil, errors.New("duplicate username")
		}
	}
	s.nextID++
	out := domainauth.Identity{
		ID:            s.nextID,
		Username:      in.Username,
		DisplayNumber: in.DisplayNumber,
		Email:         in.Email,
		Role:          in.Role,
		CreatedAt:     time.Now().UTC(),
	}
	if in.Credential != "" {
		c := in.Credential
		out.Credential = &c
	}
	s.rows[out.ID] = out
	return &out, nil
}

func (s *IdentityStore) GetByID(_ context.Context, id int64) (*domainauth.Identity, error) {
	return s.find(func(i domainauth.Identity) bool { return i.ID == id })
}

func (s *IdentityStore) GetByUsername(_ context.Context, username string) (*domainauth.Identity, error) {
	return s.find(func(i domainauth.Identity) bool { return i.Username == username })
}

func (s *IdentityStore) GetByExternalID(_ context.Context, externalID string) (*domainauth.Identity, error) {
	return s.find(func(i domainauth.Identity) bool { return i.ExternalID != nil && *i.ExternalID == externalID })
}

func (s *IdentityStore) find(match func(domainauth.Identity) bool) (*domainauth.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if match(r) {
			out := r
			return &out, nil
		}
	}
	return nil, domainauth.ErrIdentityNotFound
}

func (s *IdentityStore) ListPage(_ context.Context, q model.PageQuery) ([]domainauth.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ListCall++
	if s.ListErr != nil && s.served >= s.ListErrAfter {
		return nil, s.ListErr
	}

	ids := make([]int64, 0, len(s.rows))
	for id := range s.rows {
		if q.After == nil || id > *q.After {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	if q.Limit > 0 && len(ids) > q.Limit {
		ids = ids[:q.Limit]
	}
	out := make([]domainauth.Identity, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.rows[id])
	}
	s.served += len(out)
	return out, nil
}

func (s *IdentityStore) UpdateCredential(_ context.Context, id int64, credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpdateErr != nil {
		return s.UpdateErr
	}
	r, ok := s.rows[id]
	if !ok {
		return domainauth.ErrIdentityNotFound
	}
	r.Credential = &credential
	s.rows[id] = r
	return nil
}

func (s *IdentityStore) UpdateMigrated(_ context.Context, in domainauth.MigratedCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpdateErr != nil {
		return s.UpdateErr
	}
	r, ok := s.rows[in.IdentityID]
	if !ok || r.ExternalID != nil {
		return domainauth.ErrIdentityNotFound
	}
	cred, ext := in.Credential, in.ExternalID
	r.Credential, r.ExternalID = &cred, &ext
	s.rows[in.IdentityID] = r
	return nil
}

// Delete removes an identity, simulating an account deleted after login.
func (s *IdentityStore) Delete(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
}

// Snapshot returns the stored identity with the given id.
func (s *IdentityStore) Snapshot(id int64) (domainauth.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	return r, ok
}

// SetRole changes an identity's role in place.
func (s *IdentityStore) SetRole(id int64, role domainauth.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rows[id]; ok {
		r.Role = role
		s.rows[id] = r
	}
}
