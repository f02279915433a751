package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alumon/ui-gateway/internal/ports"
)

const defaultLogoutChannel = "auth:logout"

// LogoutBroker distributes logout notifications over a Redis pub/sub
// channel so every gateway replica drops its cached view of a cleared
// session immediately.
type LogoutBroker struct {
	client  redis.UniversalClient
	channel string
}

// NewLogoutBroker creates a LogoutBroker on the default channel.
func NewLogoutBroker(client redis.UniversalClient) *LogoutBroker {
	return &LogoutBroker{client: client, channel: defaultLogoutChannel}
}

// NewLogoutBrokerWithChannel creates a LogoutBroker on a custom channel.
func NewLogoutBrokerWithChannel(client redis.UniversalClient, channel string) *LogoutBroker {
	if channel == "" {
		channel = defaultLogoutChannel
	}
	return &LogoutBroker{client: client, channel: channel}
}

func (b *LogoutBroker) PublishLogout(ctx context.Context, event ports.LogoutEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal logout event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish logout: %w", err)
	}
	return nil
}

// Subscribe returns a channel of logout events. Malformed payloads are
// dropped rather than killing the subscription. The returned cancel
// function closes the subscription and, eventually, the channel.
func (b *LogoutBroker) Subscribe(ctx context.Context) (<-chan ports.LogoutEvent, func(), error) {
	sub := b.client.Subscribe(ctx, b.channel)

	// Force the subscription to be established before we report success.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	events := make(chan ports.LogoutEvent)
	go func() {
		defer close(events)
		for msg := range sub.Channel() {
			var event ports.LogoutEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() { _ = sub.Close() }
	return events, cancel, nil
}
