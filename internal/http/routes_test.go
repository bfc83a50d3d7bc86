package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/lotledger/lotledger/internal/adapters/memstore"
	"github.com/lotledger/lotledger/internal/data/cryptoutil"
	domainauth "github.com/lotledger/lotledger/internal/domain/auth"
	"github.com/lotledger/lotledger/internal/domain/model"
	"github.com/lotledger/lotledger/internal/mocks"
	mockauth "github.com/lotledger/lotledger/internal/mocks/auth"
	"github.com/lotledger/lotledger/internal/ports"
	"github.com/lotledger/lotledger/internal/service"
	"github.com/lotledger/lotledger/internal/testutil"
)

type apiFixture struct {
	handler    http.Handler
	vault      *cryptoutil.Vault
	identities *mockauth.IdentityStore
	lots       *mocks.MockLotRepository
	items      *mocks.MockItemRepository
	bids       *mocks.MockBidRepository
}

func newAPIFixture(t *testing.T, guestEnabled bool) *apiFixture {
	t.Helper()
	return newAPIFixtureWithSessions(t, guestEnabled, memstore.NewSessionStore())
}

func newAPIFixtureWithSessions(t *testing.T, guestEnabled bool, sessions ports.SessionStore) *apiFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	vault, err := cryptoutil.NewVault(cryptoutil.Params{N: 2, R: 1, P: 1, KeyLen: 16})
	require.NoError(t, err)

	f := &apiFixture{
		vault:      vault,
		identities: mockauth.NewIdentityStore(),
		lots:       mocks.NewMockLotRepository(ctrl),
		items:      mocks.NewMockItemRepository(ctrl),
		bids:       mocks.NewMockBidRepository(ctrl),
	}
	settings := service.ListSettings{PageSize: 100}
	authSvc := service.NewAuthService(service.AuthServiceOptions{
		Identities: f.identities,
		Sessions:   sessions,
		Settings: service.AuthSettings{
			SessionTTL:   time.Hour,
			GuestEnabled: guestEnabled,
			Vault:        vault,
		},
	})
	identitySvc := service.NewIdentityService(service.IdentityServiceOptions{
		Identities: f.identities,
		Vault:      vault,
	})
	f.handler = NewRouter(RouterServices{
		Auth:         authSvc,
		Lots:         service.NewLotService(service.LotServiceOptions{Lots: f.lots, Items: f.items, Settings: settings}),
		Items:        service.NewItemService(service.ItemServiceOptions{Items: f.items, Lots: f.lots, Settings: settings}),
		Bids:         service.NewBidService(service.BidServiceOptions{Bids: f.bids, Items: f.items, Settings: settings}),
		Identities:   identitySvc,
		MaxBodyBytes: 1 << 16,
	})
	return f
}

// addIdentity stores an identity whose password is hashed with the fixture vault.
func (f *apiFixture) addIdentity(t *testing.T, username string, role domainauth.Role, password string) {
	t.Helper()
	h, err := f.vault.Hash(password)
	require.NoError(t, err)
	_, err = f.identities.Create(context.Background(), domainauth.NewIdentity{
		Username:   username,
		Role:       role,
		Credential: h,
	})
	require.NoError(t, err)
}

func (f *apiFixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/auth/login", "", `{"username":"`+username+`","password":"`+password+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)
	return body.Token
}

type errorBody struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Field string `json:"field"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	assert.False(t, body.OK)
	return body
}

func TestRouter_ViewerSeesOnlyOwnPrices(t *testing.T) {
	f := newAPIFixture(t, false)
	f.addIdentity(t, "bob", domainauth.RoleViewer, "pw")
	token := f.login(t, "bob", "pw")

	f.lots.EXPECT().GetByID(gomock.Any(), int64(1)).Return(&model.Lot{ID: 1}, nil)
	f.items.EXPECT().ListPage(gomock.Any(), gomock.Any()).Return([]model.Item{
		testutil.NewItem(1, 1).OwnedBy("alice", 10).Build(),
		testutil.NewItem(2, 1).OwnedBy("bob", 20).Build(),
	}, nil)

	rec := f.do(t, http.MethodGet, "/api/lots/1/items", token, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"owner_username":null`)
	assert.Contains(t, rec.Body.String(), `"price":null`)

	var body struct {
		OK    bool         `json:"ok"`
		Items []model.Item `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.OK)
	require.Len(t, body.Items, 2)

	assert.Nil(t, body.Items[0].Price)
	assert.Nil(t, body.Items[0].OwnerUsername)
	require.NotNil(t, body.Items[1].Price)
	assert.InDelta(t, 20.0, *body.Items[1].Price, 0)
	require.NotNil(t, body.Items[1].OwnerUsername)
	assert.Equal(t, "bob", *body.Items[1].OwnerUsername)
}

func TestRouter_LegacyLoginUpgradesCredential(t *testing.T) {
	f := newAPIFixture(t, false)
	_, err := f.identities.Create(context.Background(), domainauth.NewIdentity{
		Username:   "alice",
		Role:       domainauth.RoleManager,
		Credential: "hunter2",
	})
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/auth/login", "", `{"username":"alice","password":"hunter2"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == DefaultSessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.NotEmpty(t, cookie.Value)

	stored, err := f.identities.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, stored.Credential)
	assert.True(t, cryptoutil.IsHashed(*stored.Credential))
	assert.True(t, f.vault.Verify("hunter2", *stored.Credential))

	// The upgraded record still accepts the same password.
	f.login(t, "alice", "hunter2")
}

func TestRouter_LoginFailures(t *testing.T) {
	f := newAPIFixture(t, false)
	f.addIdentity(t, "alice", domainauth.RoleManager, "right")
	_, err := f.identities.Create(context.Background(), domainauth.NewIdentity{Username: "nocred", Role: domainauth.RoleViewer})
	require.NoError(t, err)

	tests := []struct {
		name   string
		body   string
		status int
		kind   string
	}{
		{"wrong password", `{"username":"alice","password":"wrong"}`, http.StatusUnauthorized, "invalid_credentials"},
		{"unknown user", `{"username":"nobody","password":"x"}`, http.StatusUnauthorized, "identity_not_found"},
		{"no credential", `{"username":"nocred","password":"x"}`, http.StatusUnauthorized, "credential_missing"},
		{"empty body", ``, http.StatusBadRequest, "invalid_json"},
		{"unknown field", `{"username":"alice","password":"right","role":"admin"}`, http.StatusBadRequest, "invalid_json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/auth/login", "", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.kind, decodeError(t, rec).Error)
		})
	}
}

func TestRouter_PolicyEnforcement(t *testing.T) {
	f := newAPIFixture(t, false)
	f.addIdentity(t, "bob", domainauth.RoleViewer, "pw")
	f.addIdentity(t, "mia", domainauth.RoleManager, "pw")
	viewer := f.login(t, "bob", "pw")
	manager := f.login(t, "mia", "pw")

	t.Run("no token", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/lots", "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "unauthenticated", decodeError(t, rec).Error)
	})
	t.Run("unknown token", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/lots", "not-a-session", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
	t.Run("viewer on staff route", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/lots/1/checklist", viewer, "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "forbidden", decodeError(t, rec).Error)
	})
	t.Run("manager on admin route", func(t *testing.T) {
		rec := f.do(t, http.MethodDelete, "/api/lots/1", manager, "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("manager creates identity", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/admin/identities", manager, `{"username":"x","role":"viewer","password":"p"}`)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestRouter_InvalidPathIDs(t *testing.T) {
	f := newAPIFixture(t, false)
	f.addIdentity(t, "mia", domainauth.RoleManager, "pw")
	token := f.login(t, "mia", "pw")

	for _, raw := range []string{"abc", "0", "-1", "+1", "1.5", "1e3", "99999999999999999999"} {
		t.Run(raw, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/api/lots/"+raw, token, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, "validation", body.Error)
			assert.Equal(t, "id", body.Field)
		})
	}
}

func TestRouter_LogoutRevokesSession(t *testing.T) {
	f := newAPIFixture(t, false)
	f.addIdentity(t, "bob", domainauth.RoleViewer, "pw")
	token := f.login(t, "bob", "pw")

	rec := f.do(t, http.MethodGet, "/auth/status", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"authenticated":true`)

	for range 2 {
		rec = f.do(t, http.MethodPost, "/auth/logout", token, "")
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/auth/status", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"authenticated":false`)

	rec = f.do(t, http.MethodGet, "/api/items/mine", token, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// revokeFailingStore keeps sessions in memory but cannot revoke them.
type revokeFailingStore struct {
	*memstore.SessionStore
}

func (revokeFailingStore) Revoke(context.Context, string) error {
	return errors.New("redis: connection refused")
}

func TestRouter_LogoutReportsRevokeFailure(t *testing.T) {
	f := newAPIFixtureWithSessions(t, false, revokeFailingStore{memstore.NewSessionStore()})
	f.addIdentity(t, "bob", domainauth.RoleViewer, "pw")
	token := f.login(t, "bob", "pw")

	rec := f.do(t, http.MethodPost, "/auth/logout", token, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "upstream", decodeError(t, rec).Error)
	assert.Empty(t, rec.Result().Cookies())
	assert.NotContains(t, rec.Body.String(), "connection refused")

	rec = f.do(t, http.MethodGet, "/auth/status", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"authenticated":true`)
}

func TestRouter_Guest(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		f := newAPIFixture(t, false)
		rec := f.do(t, http.MethodPost, "/auth/guest", "", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "guest_disabled", decodeError(t, rec).Error)
	})

	t.Run("read only", func(t *testing.T) {
		f := newAPIFixture(t, true)
		rec := f.do(t, http.MethodPost, "/auth/guest", "", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var body struct {
			Token   string      `json:"token"`
			Session sessionView `json:"session"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.Session.Guest)
		assert.Equal(t, domainauth.RoleViewer, body.Session.Role)

		rec = f.do(t, http.MethodPost, "/api/lots/1/items", body.Token, `{"picture_url":"https://img.example/a.png"}`)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestRouter_CreateItemOwnedByCaller(t *testing.T) {
	f := newAPIFixture(t, false)
	f.addIdentity(t, "bob", domainauth.RoleViewer, "pw")
	token := f.login(t, "bob", "pw")

	f.items.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *model.CreateItemRequest) (*model.Item, error) {
			require.NotNil(t, req.OwnerUsername)
			assert.Equal(t, "bob", *req.OwnerUsername)
			assert.Equal(t, int64(7), req.LotID)
			return &model.Item{ID: 3, LotID: 7, OwnerUsername: req.OwnerUsername, Price: req.Price}, nil
		})

	rec := f.do(t, http.MethodPost, "/api/lots/7/items", token, `{"price":12.5}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"owner_username":"bob"`)
}

func TestRouter_CreateItemInLockedLot(t *testing.T) {
	f := newAPIFixture(t, false)
	f.addIdentity(t, "bob", domainauth.RoleViewer, "pw")
	token := f.login(t, "bob", "pw")

	f.items.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, model.ErrLotLocked)

	rec := f.do(t, http.MethodPost, "/api/lots/7/items", token, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "validation", body.Error)
	assert.Equal(t, "lot_id", body.Field)
}

func TestRouter_LotsListHidesCancelledLots(t *testing.T) {
	f := newAPIFixture(t, false)
	f.addIdentity(t, "bob", domainauth.RoleViewer, "pw")
	token := f.login(t, "bob", "pw")

	f.lots.EXPECT().ListPage(gomock.Any(), gomock.Any()).Return(testutil.Lots(2), nil)
	f.items.EXPECT().ListPage(gomock.Any(), gomock.Any()).Return([]model.Item{
		testutil.NewItem(10, 1).Cancelled().Build(),
		testutil.NewItem(11, 2).Build(),
	}, nil)

	rec := f.do(t, http.MethodGet, "/api/lots", token, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Lots []model.Lot `json:"lots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Lots, 1)
	assert.Equal(t, int64(2), body.Lots[0].ID)
}

func TestRouter_StoreFailureIsUpstream(t *testing.T) {
	f := newAPIFixture(t, false)
	f.addIdentity(t, "bob", domainauth.RoleViewer, "pw")
	token := f.login(t, "bob", "pw")

	f.lots.EXPECT().ListPage(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))

	rec := f.do(t, http.MethodGet, "/api/lots", token, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "upstream", body.Error)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestRouter_AdminLotOperations(t *testing.T) {
	f := newAPIFixture(t, false)
	f.addIdentity(t, "root", domainauth.RoleAdmin, "pw")
	token := f.login(t, "root", "pw")

	t.Run("delete missing lot", func(t *testing.T) {
		f.lots.EXPECT().Delete(gomock.Any(), int64(5)).Return(false, nil)
		rec := f.do(t, http.MethodDelete, "/api/lots/5", token, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
	t.Run("delete", func(t *testing.T) {
		f.lots.EXPECT().Delete(gomock.Any(), int64(6)).Return(true, nil)
		rec := f.do(t, http.MethodDelete, "/api/lots/6", token, "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
	t.Run("unlock", func(t *testing.T) {
		f.lots.EXPECT().SetLocked(gomock.Any(), int64(5), false).Return(&model.Lot{ID: 5}, nil)
		rec := f.do(t, http.MethodPost, "/api/lots/5/lock?locked=false", token, "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
	t.Run("lock with bad flag", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/lots/5/lock?locked=maybe", token, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "locked", decodeError(t, rec).Field)
	})
	t.Run("create identity", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/admin/identities", token,
			`{"username":"newbie","display_number":9,"role":"viewer","password":"pw2"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.NotContains(t, rec.Body.String(), "pw2")
		f.login(t, "newbie", "pw2")
	})
}

func TestRouter_Health(t *testing.T) {
	f := newAPIFixture(t, false)
	rec := f.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouter_MigrateCredentialsReconciles(t *testing.T) {
	vault, err := cryptoutil.NewVault(cryptoutil.Params{N: 2, R: 1, P: 1, KeyLen: 16})
	require.NoError(t, err)
	f := &apiFixture{vault: vault, identities: mockauth.NewIdentityStore()}
	provider := &mockauth.FakeIdentityProvider{}
	f.handler = NewRouter(RouterServices{
		Auth: service.NewAuthService(service.AuthServiceOptions{
			Identities: f.identities,
			Sessions:   memstore.NewSessionStore(),
			Settings:   service.AuthSettings{SessionTTL: time.Hour, Vault: vault},
		}),
		Migration: service.NewCredentialMigrationService(service.CredentialMigrationServiceOptions{
			Identities: f.identities,
			Provider:   provider,
			Settings:   service.MigrationSettings{Vault: vault},
		}),
		MaxBodyBytes: 1 << 16,
	})
	f.addIdentity(t, "root", domainauth.RoleAdmin, "pw")
	_, err = f.identities.Create(context.Background(), domainauth.NewIdentity{
		Username:   "alice",
		Email:      testutil.StringPtr("alice@example.com"),
		Role:       domainauth.RoleViewer,
		Credential: "hunter2",
	})
	require.NoError(t, err)
	token := f.login(t, "root", "pw")

	type runBody struct {
		OK           bool                    `json:"ok"`
		Report       service.MigrationReport `json:"report"`
		Reconcilable map[int64]string        `json:"reconcilable"`
	}
	run := func(body string) runBody {
		t.Helper()
		rec := f.do(t, http.MethodPost, "/api/admin/credentials/migrate", token, body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var out runBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		require.True(t, out.OK)
		return out
	}

	f.identities.UpdateErr = errors.New("deadlock detected")
	first := run("")
	assert.Equal(t, map[int64]string{2: "ext-1"}, first.Reconcilable)

	f.identities.UpdateErr = nil
	second := run(`{"known_external_ids":{"2":"ext-1"}}`)
	assert.Empty(t, second.Reconcilable)
	assert.Equal(t, 1, second.Report.Count(service.OutcomeMigrated))
	assert.Len(t, provider.Calls(), 1)

	alice, _ := f.identities.Snapshot(2)
	require.NotNil(t, alice.ExternalID)
	assert.Equal(t, "ext-1", *alice.ExternalID)
}
