package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"sync"

	domainauth "github.com/alumon/ui-gateway/internal/domain/auth"
	"github.com/alumon/ui-gateway/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.TokenStore    = (*MemoryTokenStore)(nil)
	_ ports.SessionLister = (*MemoryTokenStore)(nil)
	_ ports.LogoutBroker  = (*MemoryLogoutBroker)(nil)
	_ ports.AuthBackend   = (*FakeAuthBackend)(nil)
)

// MemoryTokenStore is an in-memory token store for unit tests. It mirrors
// the production stores' semantics: atomic saves, tolerant reads, and
// idempotent clears that notify an optional broker.
type MemoryTokenStore struct {
	mu      sync.Mutex
	bundles map[string]domainauth.TokenBundle

	// Broker receives logout events on Clear when set.
	Broker ports.LogoutBroker

	// SaveErr/ReadErr/ClearErr force failures when set.
	SaveErr  error
	ReadErr  error
	ClearErr error

	// Clears counts Clear invocations, including no-op clears.
	Clears int
}

// NewMemoryTokenStore creates an empty in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{bundles: make(map[string]domainauth.TokenBundle)}
}

func (m *MemoryTokenStore) Save(_ context.Context, sessionID string, bundle domainauth.TokenBundle) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if sessionID == "" {
		return errors.New("session ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bundles[sessionID] = bundle
	return nil
}

func (m *MemoryTokenStore) Read(_ context.Context, sessionID string) (domainauth.TokenBundle, error) {
	if m.ReadErr != nil {
		return domainauth.TokenBundle{}, m.ReadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bundles[sessionID], nil
}

func (m *MemoryTokenStore) Clear(ctx context.Context, sessionID string) error {
	if m.ClearErr != nil {
		return m.ClearErr
	}
	m.mu.Lock()
	m.Clears++
	delete(m.bundles, sessionID)
	m.mu.Unlock()

	if m.Broker != nil && sessionID != "" {
		return m.Broker.PublishLogout(ctx, ports.LogoutEvent{SessionID: sessionID})
	}
	return nil
}

func (m *MemoryTokenStore) ListSessions(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.bundles))
	for id := range m.bundles {
		ids = append(ids, id)
	}
	return ids, nil
}

// MemoryLogoutBroker is an in-process logout broker for unit tests.
type MemoryLogoutBroker struct {
	mu     sync.Mutex
	subs   map[int]chan ports.LogoutEvent
	nextID int

	// Events records every published event.
	Events []ports.LogoutEvent
}

// NewMemoryLogoutBroker creates an in-process broker.
func NewMemoryLogoutBroker() *MemoryLogoutBroker {
	return &MemoryLogoutBroker{subs: make(map[int]chan ports.LogoutEvent)}
}

func (b *MemoryLogoutBroker) PublishLogout(_ context.Context, event ports.LogoutEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Events = append(b.Events, event)
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			// Slow subscriber; drop rather than block the publisher.
		}
	}
	return nil
}

func (b *MemoryLogoutBroker) Subscribe(_ context.Context) (<-chan ports.LogoutEvent, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan ports.LogoutEvent, 16)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel, nil
}

// FakeAuthBackend simulates the monitoring backend's auth API with
// per-method override funcs and deterministic defaults.
type FakeAuthBackend struct {
	ObtainTokenFunc  func(ctx context.Context, creds ports.Credentials) (ports.TokenPair, *domainauth.Identity, error)
	RefreshTokenFunc func(ctx context.Context, refreshToken string) (ports.TokenPair, error)
	FetchUserFunc    func(ctx context.Context, accessToken string, userID int64) (*domainauth.Identity, error)
	RegisterFunc     func(ctx context.Context, req ports.RegistrationRequest) error

	// DefaultIdentity is returned by the default ObtainToken/FetchUser.
	DefaultIdentity domainauth.Identity

	// RefreshCalls counts RefreshToken invocations (including overrides).
	RefreshCalls int
	mu           sync.Mutex
}

// NewFakeAuthBackend creates a backend double with a plain active user.
func NewFakeAuthBackend() *FakeAuthBackend {
	return &FakeAuthBackend{
		DefaultIdentity: domainauth.Identity{
			ID:       1,
			Username: "operator1",
			Email:    "operator1@example.com",
			IsActive: true,
		},
	}
}

func (f *FakeAuthBackend) ObtainToken(ctx context.Context, creds ports.Credentials) (ports.TokenPair, *domainauth.Identity, error) {
	if f.ObtainTokenFunc != nil {
		return f.ObtainTokenFunc(ctx, creds)
	}
	identity := f.DefaultIdentity
	return ports.TokenPair{Access: "access-1", Refresh: "refresh-1"}, &identity, nil
}

func (f *FakeAuthBackend) RefreshToken(ctx context.Context, refreshToken string) (ports.TokenPair, error) {
	f.mu.Lock()
	f.RefreshCalls++
	f.mu.Unlock()
	if f.RefreshTokenFunc != nil {
		return f.RefreshTokenFunc(ctx, refreshToken)
	}
	return ports.TokenPair{Access: "access-2"}, nil
}

func (f *FakeAuthBackend) FetchUser(ctx context.Context, accessToken string, userID int64) (*domainauth.Identity, error) {
	if f.FetchUserFunc != nil {
		return f.FetchUserFunc(ctx, accessToken, userID)
	}
	identity := f.DefaultIdentity
	identity.ID = userID
	return &identity, nil
}

func (f *FakeAuthBackend) Register(ctx context.Context, req ports.RegistrationRequest) error {
	if f.RegisterFunc != nil {
		return f.RegisterFunc(ctx, req)
	}
	return nil
}
