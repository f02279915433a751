package ports_test

import (
	pgadapter "github.com/alumon/ui-gateway/internal/adapters/postgres"
	redisadapter "github.com/alumon/ui-gateway/internal/adapters/redis"
	"github.com/alumon/ui-gateway/internal/backend"
	"github.com/alumon/ui-gateway/internal/mocks"
	mocksauth "github.com/alumon/ui-gateway/internal/mocks/auth"
	"github.com/alumon/ui-gateway/internal/ports"
	"github.com/alumon/ui-gateway/internal/service"
)

// Compile-time checks that every adapter satisfies the port it is wired
// into. A build failure here means an interface changed without its
// implementations following.
var (
	_ ports.TokenStore    = (*redisadapter.TokenStore)(nil)
	_ ports.SessionLister = (*redisadapter.TokenStore)(nil)
	_ ports.LogoutBroker  = (*redisadapter.LogoutBroker)(nil)

	_ ports.TokenStore    = (*pgadapter.TokenStore)(nil)
	_ ports.SessionLister = (*pgadapter.TokenStore)(nil)
	_ ports.LogoutBroker  = (*pgadapter.TokenStore)(nil)

	_ ports.AuthBackend  = (*backend.AuthAPI)(nil)
	_ ports.ClaimDecoder = service.JWTClaimDecoder{}

	_ ports.TokenStore    = (*mocksauth.MemoryTokenStore)(nil)
	_ ports.SessionLister = (*mocksauth.MemoryTokenStore)(nil)
	_ ports.LogoutBroker  = (*mocksauth.MemoryLogoutBroker)(nil)
	_ ports.AuthBackend   = (*mocksauth.FakeAuthBackend)(nil)

	_ ports.TokenStore  = (*mocks.MockTokenStore)(nil)
	_ ports.AuthBackend = (*mocks.MockAuthBackend)(nil)
)
