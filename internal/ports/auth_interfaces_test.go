package ports_test

import (
	"testing"

	"github.com/lotledger/lotledger/internal/adapters/idp"
	"github.com/lotledger/lotledger/internal/adapters/memstore"
	"github.com/lotledger/lotledger/internal/adapters/oidc"
	redisstore "github.com/lotledger/lotledger/internal/adapters/redis"
	"github.com/lotledger/lotledger/internal/mocks"
	fakes "github.com/lotledger/lotledger/internal/mocks/auth"
	"github.com/lotledger/lotledger/internal/ports"
)

// This test only verifies that adapters and test doubles conform to the ports at compile time.
func TestImplementationsSatisfyPorts(t *testing.T) {
	t.Helper()

	var _ ports.AuthProvider = (*oidc.Provider)(nil)
	var _ ports.AuthProvider = (*fakes.MockAuthProvider)(nil)
	var _ ports.AuthProvider = (*mocks.MockAuthProvider)(nil)

	var _ ports.SessionStore = (*redisstore.SessionStore)(nil)
	var _ ports.SessionStore = (*memstore.SessionStore)(nil)
	var _ ports.SessionStore = (*mocks.MockSessionStore)(nil)

	var _ ports.IdentityProvider = (*idp.Client)(nil)
	var _ ports.IdentityProvider = (*fakes.FakeIdentityProvider)(nil)
	var _ ports.IdentityProvider = (*mocks.MockIdentityProvider)(nil)
}
