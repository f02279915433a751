// Package mocks provides generated mock implementations for testing.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks
// for the auth ports. To regenerate after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	store := mocks.NewMockTokenStore(ctrl)
//	store.EXPECT().Clear(gomock.Any(), "sess-1").Return(nil)
package mocks

// Generate mock for TokenStore interface from internal/ports.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=token_store_mock.go github.com/alumon/ui-gateway/internal/ports TokenStore

// Generate mock for AuthBackend interface from internal/ports.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=auth_backend_mock.go github.com/alumon/ui-gateway/internal/ports AuthBackend
