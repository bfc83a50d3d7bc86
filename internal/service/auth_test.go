package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/lotledger/lotledger/internal/adapters/memstore"
	"github.com/lotledger/lotledger/internal/data/cryptoutil"
	domainauth "github.com/lotledger/lotledger/internal/domain/auth"
	"github.com/lotledger/lotledger/internal/mocks"
	mockauth "github.com/lotledger/lotledger/internal/mocks/auth"
	"github.com/lotledger/lotledger/internal/ports"
	"github.com/lotledger/lotledger/internal/testutil"
)

// testVault uses the cheapest valid scrypt parameters.
func testVault(t *testing.T) *cryptoutil.Vault {
	t.Helper()
	v, err := cryptoutil.NewVault(cryptoutil.Params{N: 2, R: 1, P: 1, KeyLen: 16})
	require.NoError(t, err)
	return v
}

type clock struct{ t time.Time }

func newClock() *clock { return &clock{t: time.Now()} }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func strPtr(s string) *string { return &s }

func hashed(t *testing.T, pw string) string {
	t.Helper()
	h, err := testVault(t).Hash(pw)
	require.NoError(t, err)
	return h
}

type authFixture struct {
	svc        *AuthService
	identities *mockauth.IdentityStore
	sessions   *memstore.SessionStore
	clock      *clock
}

func newAuthFixture(t *testing.T, settings AuthSettings, seed ...domainauth.Identity) authFixture {
	t.Helper()
	f := authFixture{
		identities: mockauth.NewIdentityStore(seed...),
		sessions:   memstore.NewSessionStore(),
		clock:      newClock(),
	}
	if settings.Vault == nil {
		settings.Vault = testVault(t)
	}
	settings.Now = f.clock.Now
	f.svc = NewAuthService(AuthServiceOptions{
		Identities: f.identities,
		Sessions:   f.sessions,
		Settings:   settings,
	})
	return f
}

func TestAuthService_Login_HashedCredential(t *testing.T) {
	f := newAuthFixture(t, AuthSettings{SessionTTL: time.Hour}, domainauth.Identity{
		Username:      "m1",
		DisplayNumber: 4,
		Role:          domainauth.RoleManager,
		Credential:    strPtr(hashed(t, "s3cret")),
	})
	ctx := context.Background()

	sess, err := f.svc.Login(ctx, "m1", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, int64(1), sess.IdentityID)
	assert.Equal(t, "m1", sess.Username)
	assert.Equal(t, 4, sess.DisplayNumber)
	assert.Equal(t, domainauth.RoleManager, sess.Role)
	assert.False(t, sess.Guest)
	assert.Equal(t, time.Hour, sess.ExpiresAt.Sub(sess.IssuedAt))
	assert.Len(t, sess.Token, 43, "32 bytes of unpadded base64url")
	assert.NotContains(t, sess.Token, "=")

	got, err := f.svc.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.Token, got.Token)
}

func TestAuthService_Login_TokensAreUnique(t *testing.T) {
	f := newAuthFixture(t, AuthSettings{}, domainauth.Identity{
		Username: "m1", Role: domainauth.RoleManager, Credential: strPtr("pw"),
	})
	seen := map[string]bool{}
	for range 5 {
		sess, err := f.svc.Login(context.Background(), "m1", "pw")
		require.NoError(t, err)
		assert.False(t, seen[sess.Token])
		seen[sess.Token] = true
	}
}

func TestAuthService_Login_Failures(t *testing.T) {
	f := newAuthFixture(t, AuthSettings{},
		domainauth.Identity{Username: "m1", Role: domainauth.RoleManager, Credential: strPtr(hashed(t, "right"))},
		domainauth.Identity{Username: "nocred", Role: domainauth.RoleViewer},
		domainauth.Identity{Username: "blank", Role: domainauth.RoleViewer, Credential: strPtr("")},
	)
	ctx := context.Background()

	tests := []struct {
		name       string
		identifier string
		password   string
		wantErr    error
	}{
		{name: "unknown identity", identifier: "ghost", password: "x", wantErr: domainauth.ErrIdentityNotFound},
		{name: "empty identifier", identifier: "  ", password: "x", wantErr: domainauth.ErrIdentityNotFound},
		{name: "no credential", identifier: "nocred", password: "x", wantErr: domainauth.ErrCredentialMissing},
		{name: "empty credential", identifier: "blank", password: "", wantErr: domainauth.ErrCredentialMissing},
		{name: "wrong password", identifier: "m1", password: "wrong", wantErr: domainauth.ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := f.svc.Login(ctx, tt.identifier, tt.password)
			assert.Nil(t, sess)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Zero(t, f.sessions.Len(), "failed logins must not create sessions")
}

func TestAuthService_Login_UpgradesLegacyCredential(t *testing.T) {
	f := newAuthFixture(t, AuthSettings{}, domainauth.Identity{
		Username: "v1", Role: domainauth.RoleViewer, Credential: strPtr("hunter2"),
	})
	ctx := context.Background()

	_, err := f.svc.Login(ctx, "v1", "hunter2")
	require.NoError(t, err)

	stored, ok := f.identities.Snapshot(1)
	require.True(t, ok)
	require.NotNil(t, stored.Credential)
	assert.True(t, cryptoutil.IsHashed(*stored.Credential))
	assert.NotContains(t, *stored.Credential, "hunter2")

	// The upgraded record still verifies.
	_, err = f.svc.Login(ctx, "v1", "hunter2")
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, "v1", "hunter3")
	assert.ErrorIs(t, err, domainauth.ErrInvalidCredentials)
}

func TestAuthService_Login_UpgradeFailureDoesNotFailLogin(t *testing.T) {
	f := newAuthFixture(t, AuthSettings{}, domainauth.Identity{
		Username: "v1", Role: domainauth.RoleViewer, Credential: strPtr("hunter2"),
	})
	f.identities.UpdateErr = errors.New("db down")

	sess, err := f.svc.Login(context.Background(), "v1", "hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)

	stored, _ := f.identities.Snapshot(1)
	assert.Equal(t, "hunter2", *stored.Credential)
}

func TestAuthService_Login_HashedCredentialIsNotRewritten(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockIdentityRepository(ctrl)
	record := hashed(t, "pw")

	repo.EXPECT().GetByUsername(gomock.Any(), "a1").Return(&domainauth.Identity{
		ID: 9, Username: "a1", Role: domainauth.RoleAdmin, Credential: &record,
	}, nil)
	repo.EXPECT().UpdateCredential(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	svc := NewAuthService(AuthServiceOptions{
		Identities: repo,
		Sessions:   memstore.NewSessionStore(),
		Settings:   AuthSettings{Vault: testVault(t)},
	})
	sess, err := svc.Login(context.Background(), "a1", "pw")
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleAdmin, sess.Role)
}

func TestAuthService_Login_RehashesRecordWithOldParams(t *testing.T) {
	old, err := cryptoutil.NewVault(cryptoutil.Params{N: 4, R: 2, P: 1, KeyLen: 32})
	require.NoError(t, err)
	record, err := old.Hash("pw")
	require.NoError(t, err)

	f := newAuthFixture(t, AuthSettings{}, domainauth.Identity{
		Username: "m1", Role: domainauth.RoleManager, Credential: &record,
	})
	ctx := context.Background()

	_, err = f.svc.Login(ctx, "m1", "pw")
	require.NoError(t, err)

	stored, ok := f.identities.Snapshot(1)
	require.True(t, ok)
	require.NotNil(t, stored.Credential)
	assert.NotEqual(t, record, *stored.Credential)
	assert.Contains(t, *stored.Credential, "$n=2,r=1,p=1,l=16$")
	assert.False(t, testVault(t).NeedsRehash(*stored.Credential))

	_, err = f.svc.Login(ctx, "m1", "pw")
	require.NoError(t, err)
}

func TestAuthService_Login_LookupError(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockIdentityRepository(ctrl)
	repo.EXPECT().GetByUsername(gomock.Any(), "a1").Return(nil, errors.New("connection reset"))

	svc := NewAuthService(AuthServiceOptions{Identities: repo, Sessions: memstore.NewSessionStore()})
	_, err := svc.Login(context.Background(), "a1", "pw")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domainauth.ErrIdentityNotFound)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestAuthService_Authenticate(t *testing.T) {
	f := newAuthFixture(t, AuthSettings{SessionTTL: time.Hour}, domainauth.Identity{
		Username: "m1", Role: domainauth.RoleManager, Credential: strPtr("pw"),
	})
	ctx := context.Background()

	t.Run("empty token", func(t *testing.T) {
		_, err := f.svc.Authenticate(ctx, "")
		assert.ErrorIs(t, err, domainauth.ErrUnauthenticated)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := f.svc.Authenticate(ctx, "nope")
		assert.ErrorIs(t, err, domainauth.ErrUnauthenticated)
	})

	t.Run("revoked", func(t *testing.T) {
		sess, err := f.svc.Login(ctx, "m1", "pw")
		require.NoError(t, err)
		require.NoError(t, f.svc.Revoke(ctx, sess.Token))
		_, err = f.svc.Authenticate(ctx, sess.Token)
		assert.ErrorIs(t, err, domainauth.ErrUnauthenticated)

		// Revoke is idempotent.
		require.NoError(t, f.svc.Revoke(ctx, sess.Token))
		require.NoError(t, f.svc.Revoke(ctx, "never-issued"))
		require.NoError(t, f.svc.Revoke(ctx, ""))
	})

	t.Run("expired", func(t *testing.T) {
		sess, err := f.svc.Login(ctx, "m1", "pw")
		require.NoError(t, err)
		f.clock.Advance(time.Hour)
		defer f.clock.Advance(-time.Hour)
		_, err = f.svc.Authenticate(ctx, sess.Token)
		assert.ErrorIs(t, err, domainauth.ErrUnauthenticated)
	})

	t.Run("role refreshed from identity", func(t *testing.T) {
		sess, err := f.svc.Login(ctx, "m1", "pw")
		require.NoError(t, err)
		f.identities.SetRole(1, domainauth.RoleViewer)
		defer f.identities.SetRole(1, domainauth.RoleManager)

		got, err := f.svc.Authenticate(ctx, sess.Token)
		require.NoError(t, err)
		assert.Equal(t, domainauth.RoleViewer, got.Role)
	})
}

// A session issued before its identity was deleted stops authenticating.
func TestAuthService_Authenticate_DeletedIdentity(t *testing.T) {
	f := newAuthFixture(t, AuthSettings{}, domainauth.Identity{
		Username: "m1", Role: domainauth.RoleManager, Credential: strPtr("pw"),
	})
	ctx := context.Background()

	sess, err := f.svc.Login(ctx, "m1", "pw")
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, sess.Token)
	require.NoError(t, err)

	f.identities.Delete(1)

	_, err = f.svc.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, domainauth.ErrUnauthenticated)
}

func TestAuthService_Authenticate_StoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockSessionStore(ctrl)
	store.EXPECT().Get(gomock.Any(), "tok").Return(domainauth.Session{}, errors.New("redis unavailable"))

	svc := NewAuthService(AuthServiceOptions{
		Identities: mockauth.NewIdentityStore(),
		Sessions:   store,
	})
	_, err := svc.Authenticate(context.Background(), "tok")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domainauth.ErrUnauthenticated)
}

func TestAuthService_GuestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		f := newAuthFixture(t, AuthSettings{})
		_, err := f.svc.GuestLogin(ctx)
		assert.ErrorIs(t, err, domainauth.ErrGuestDisabled)
	})

	t.Run("enabled", func(t *testing.T) {
		f := newAuthFixture(t, AuthSettings{GuestEnabled: true})
		sess, err := f.svc.GuestLogin(ctx)
		require.NoError(t, err)
		assert.True(t, sess.Guest)
		assert.Equal(t, int64(0), sess.IdentityID)
		assert.Equal(t, domainauth.GuestUsername, sess.Username)
		assert.Equal(t, domainauth.RoleViewer, sess.Role)

		got, err := f.svc.Authenticate(ctx, sess.Token)
		require.NoError(t, err)
		assert.True(t, got.IsGuest())
	})
}

func TestAuthService_GuestLogin_SkipsVault(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockIdentityRepository(ctrl)
	// No repository call is expected for guests, at login or on authenticate.
	svc := NewAuthService(AuthServiceOptions{
		Identities: repo,
		Sessions:   memstore.NewSessionStore(),
		Settings:   AuthSettings{GuestEnabled: true},
	})
	sess, err := svc.GuestLogin(context.Background())
	require.NoError(t, err)
	_, err = svc.Authenticate(context.Background(), sess.Token)
	require.NoError(t, err)
}

func TestAuthService_SSO(t *testing.T) {
	provider := mockauth.NewMockAuthProvider()
	provider.DefaultUser = ports.ExternalIdentity{Subject: "ext-7", Email: "m1@example.com"}

	f := newAuthFixture(t, AuthSettings{SSO: provider},
		domainauth.Identity{Username: "m1", Role: domainauth.RoleManager, ExternalID: strPtr("ext-7")},
	)
	ctx := context.Background()

	begin, err := f.svc.BeginSSO(ctx, "https://app.example.com/auth/sso/callback")
	require.NoError(t, err)
	assert.Equal(t, "state-1", begin.State)
	assert.Equal(t, "nonce-1", begin.Nonce)
	assert.True(t, strings.HasPrefix(begin.AuthURL, "https://mock-idp/"))

	sess, err := f.svc.CompleteSSO(ctx, CompleteSSOInput{Code: "c", State: begin.State, Nonce: begin.Nonce})
	require.NoError(t, err)
	assert.Equal(t, "m1", sess.Username)
	assert.Equal(t, domainauth.RoleManager, sess.Role)

	provider.DefaultUser.Subject = "ext-unknown"
	_, err = f.svc.CompleteSSO(ctx, CompleteSSOInput{Code: "c", State: "s", Nonce: "n"})
	assert.ErrorIs(t, err, domainauth.ErrIdentityNotFound)

	_, err = f.svc.CompleteSSO(ctx, CompleteSSOInput{Code: "c"})
	assert.ErrorIs(t, err, domainauth.ErrUnauthenticated)
}

func TestAuthService_SSODisabled(t *testing.T) {
	f := newAuthFixture(t, AuthSettings{})
	assert.False(t, f.svc.SSOEnabled())

	_, err := f.svc.BeginSSO(context.Background(), "https://x/cb")
	assert.True(t, IsSSODisabled(err))
	_, err = f.svc.CompleteSSO(context.Background(), CompleteSSOInput{Code: "c", State: "s", Nonce: "n"})
	assert.True(t, IsSSODisabled(err))
}

func TestNewAuthService_PanicsWithoutDeps(t *testing.T) {
	assert.Panics(t, func() { NewAuthService(AuthServiceOptions{Sessions: memstore.NewSessionStore()}) })
	assert.Panics(t, func() { NewAuthService(AuthServiceOptions{Identities: mockauth.NewIdentityStore()}) })
}

func TestAuthService_EmitsLoginMetrics(t *testing.T) {
	rec := &testutil.MetricsRecorder{}
	f := newAuthFixture(t, AuthSettings{Metrics: rec}, domainauth.Identity{
		Username: "v1", Role: domainauth.RoleViewer, Credential: strPtr("hunter2"),
	})
	ctx := context.Background()

	_, err := f.svc.Login(ctx, "v1", "hunter2")
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, "v1", "wrong")
	require.Error(t, err)
	_, err = f.svc.GuestLogin(ctx)
	require.ErrorIs(t, err, domainauth.ErrGuestDisabled)

	logins := rec.Counts("auth.login")
	require.Len(t, logins, 3)
	assert.Equal(t, map[string]string{"method": "password", "result": "success"}, logins[0].Tags)
	assert.Equal(t, "invalid_credentials", logins[1].Tags["error_class"])
	assert.Equal(t, "guest", logins[2].Tags["method"])
	assert.Equal(t, "guest_disabled", logins[2].Tags["error_class"])
	assert.Len(t, rec.Counts("auth.credential_upgraded"), 1)
}
