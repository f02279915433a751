package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/alumon/ui-gateway/internal/domain/auth"
	"github.com/alumon/ui-gateway/internal/ports"
	"github.com/alumon/ui-gateway/internal/testutil"
)

type recordingBroker struct {
	events []ports.LogoutEvent
}

func (b *recordingBroker) PublishLogout(_ context.Context, event ports.LogoutEvent) error {
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBroker) Subscribe(context.Context) (<-chan ports.LogoutEvent, func(), error) {
	ch := make(chan ports.LogoutEvent)
	close(ch)
	return ch, func() {}, nil
}

func sampleBundle() domainauth.TokenBundle {
	return domainauth.TokenBundle{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		Identity: &domainauth.Identity{
			ID:       7,
			Username: "operator",
			IsStaff:  true,
			IsActive: true,
		},
		SavedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestTokenStore_SaveReadClear(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testutil.SetupTestRedis(t)
	broker := &recordingBroker{}
	store := NewTokenStore(TokenStoreOptions{
		Client: client,
		Broker: broker,
		TTL:    time.Hour,
	})
	ctx := context.Background()

	t.Run("save and read round-trip", func(t *testing.T) {
		bundle := sampleBundle()
		require.NoError(t, store.Save(ctx, "sess-1", bundle))

		got, err := store.Read(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, bundle.AccessToken, got.AccessToken)
		assert.Equal(t, bundle.RefreshToken, got.RefreshToken)
		require.NotNil(t, got.Identity)
		assert.Equal(t, "operator", got.Identity.Username)
		assert.True(t, got.Identity.IsStaff)
		assert.True(t, bundle.SavedAt.Equal(got.SavedAt))
	})

	t.Run("bundle carries the configured TTL", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "sess-ttl", sampleBundle()))

		ttl := client.TTL(ctx, "session:sess-ttl").Val()
		assert.True(t, ttl > 0 && ttl <= time.Hour)
	})

	t.Run("unknown session reads as empty bundle", func(t *testing.T) {
		got, err := store.Read(ctx, "missing")
		require.NoError(t, err)
		assert.True(t, got.IsEmpty())
	})

	t.Run("empty session ID rejected on save", func(t *testing.T) {
		require.Error(t, store.Save(ctx, "", sampleBundle()))
	})

	t.Run("clear removes the bundle and broadcasts", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "sess-2", sampleBundle()))
		broker.events = nil

		require.NoError(t, store.Clear(ctx, "sess-2"))

		got, err := store.Read(ctx, "sess-2")
		require.NoError(t, err)
		assert.True(t, got.IsEmpty())
		require.Len(t, broker.events, 1)
		assert.Equal(t, "sess-2", broker.events[0].SessionID)
	})

	t.Run("clearing an absent session is idempotent", func(t *testing.T) {
		require.NoError(t, store.Clear(ctx, "never-existed"))
	})
}

func TestTokenStore_ToleratesCorruptData(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testutil.SetupTestRedis(t)
	store := NewTokenStore(TokenStoreOptions{Client: client, TTL: time.Hour})
	ctx := context.Background()

	t.Run("corrupt value reads as empty bundle", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "session:corrupt", "{not json", time.Hour).Err())

		got, err := store.Read(ctx, "corrupt")
		require.NoError(t, err)
		assert.True(t, got.IsEmpty())
	})

	t.Run("corrupt identity keeps the tokens", func(t *testing.T) {
		payload := `{"access_token":"a","refresh_token":"r","identity":{"id":"not-a-number"},"saved_at":"2026-01-02T03:04:05Z"}`
		require.NoError(t, client.Set(ctx, "session:partial", payload, time.Hour).Err())

		got, err := store.Read(ctx, "partial")
		require.NoError(t, err)
		assert.Equal(t, "a", got.AccessToken)
		assert.Equal(t, "r", got.RefreshToken)
		assert.Nil(t, got.Identity)
	})
}

func TestTokenStore_ListSessions(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testutil.SetupTestRedis(t)
	store := NewTokenStore(TokenStoreOptions{Client: client, TTL: time.Hour})
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "list-a", sampleBundle()))
	require.NoError(t, store.Save(ctx, "list-b", sampleBundle()))

	// Keys outside the session prefix must not show up.
	require.NoError(t, client.Set(ctx, "other:key", "x", time.Hour).Err())

	ids, err := store.ListSessions(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"list-a", "list-b"}, ids)
}
