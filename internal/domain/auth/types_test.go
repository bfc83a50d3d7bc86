package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_IsGuest(t *testing.T) {
	s := Session{Username: GuestUsername, Role: RoleViewer, Guest: true}
	if !s.IsGuest() {
		t.Fatalf("expected guest")
	}
	if (Session{Role: RoleViewer}).IsGuest() {
		t.Fatalf("did not expect guest")
	}
}

func TestSession_Active(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := Session{ExpiresAt: now.Add(time.Minute)}

	assert.True(t, s.Active(now))
	assert.False(t, s.Active(now.Add(time.Minute)), "expiry instant is not active")

	s.Revoked = true
	assert.False(t, s.Active(now))
}

func TestIdentity_HasCredential(t *testing.T) {
	empty := ""
	stored := "hunter2"

	assert.False(t, Identity{}.HasCredential())
	assert.False(t, Identity{Credential: &empty}.HasCredential())
	assert.True(t, Identity{Credential: &stored}.HasCredential())
}

func TestCreateIdentityRequest_Validate(t *testing.T) {
	email := " ann@example.com "
	req := CreateIdentityRequest{Username: "  ann ", Role: "Manager", Password: "pw", Email: &email}
	require.NoError(t, req.Validate())
	assert.Equal(t, "ann", req.Username)
	assert.Equal(t, RoleManager, req.Role)
	assert.Equal(t, "ann@example.com", *req.Email)

	tests := []struct {
		name string
		req  CreateIdentityRequest
	}{
		{name: "blank username", req: CreateIdentityRequest{Username: " ", Role: RoleViewer, Password: "pw"}},
		{name: "reserved username", req: CreateIdentityRequest{Username: "Guest", Role: RoleViewer, Password: "pw"}},
		{name: "bad role", req: CreateIdentityRequest{Username: "bob", Role: "owner", Password: "pw"}},
		{name: "negative display number", req: CreateIdentityRequest{Username: "bob", Role: RoleViewer, DisplayNumber: -1, Password: "pw"}},
		{name: "missing password", req: CreateIdentityRequest{Username: "bob", Role: RoleViewer}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.req.Validate())
		})
	}
}
