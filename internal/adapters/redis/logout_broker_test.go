package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumon/ui-gateway/internal/ports"
	"github.com/alumon/ui-gateway/internal/testutil"
)

func TestLogoutBroker_PublishSubscribe(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testutil.SetupTestRedis(t)
	broker := NewLogoutBrokerWithChannel(client, "test:logout")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, unsubscribe, err := broker.Subscribe(ctx)
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, broker.PublishLogout(ctx, ports.LogoutEvent{
		SessionID: "sess-9",
		Reason:    "revoked",
	}))

	select {
	case event := <-events:
		assert.Equal(t, "sess-9", event.SessionID)
		assert.Equal(t, "revoked", event.Reason)
	case <-ctx.Done():
		t.Fatal("timed out waiting for logout event")
	}
}

func TestLogoutBroker_DropsMalformedPayloads(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testutil.SetupTestRedis(t)
	broker := NewLogoutBrokerWithChannel(client, "test:logout:malformed")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, unsubscribe, err := broker.Subscribe(ctx)
	require.NoError(t, err)
	defer unsubscribe()

	// A garbage payload must not kill the subscription.
	require.NoError(t, client.Publish(ctx, "test:logout:malformed", "{broken").Err())
	require.NoError(t, broker.PublishLogout(ctx, ports.LogoutEvent{SessionID: "after-garbage"}))

	select {
	case event := <-events:
		assert.Equal(t, "after-garbage", event.SessionID)
	case <-ctx.Done():
		t.Fatal("timed out waiting for logout event")
	}
}

func TestLogoutBroker_UnsubscribeClosesChannel(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testutil.SetupTestRedis(t)
	broker := NewLogoutBroker(client)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, unsubscribe, err := broker.Subscribe(ctx)
	require.NoError(t, err)

	unsubscribe()

	select {
	case _, open := <-events:
		assert.False(t, open)
	case <-ctx.Done():
		t.Fatal("timed out waiting for channel close")
	}
}
