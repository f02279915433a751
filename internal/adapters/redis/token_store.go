package redis

// Package redis provides Redis-based adapters for the gateway: the token
// store and the logout broker.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/alumon/ui-gateway/internal/domain/auth"
	"github.com/alumon/ui-gateway/internal/ports"
)

// storedBundle is the wire form of a token bundle. Identity is kept as a
// raw message so a corrupt snapshot can be tolerated without losing the
// tokens stored next to it.
type storedBundle struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	Identity     json.RawMessage `json:"identity,omitempty"`
	SavedAt      time.Time       `json:"saved_at"`
}

// TokenStore is a Redis-based token store for production use. Each
// session's bundle is one JSON value under a single key, so every Save is
// atomic from the reader's perspective and TTL semantics apply to the
// bundle as a whole.
type TokenStore struct {
	client redis.UniversalClient
	broker ports.LogoutBroker
	prefix string
	ttl    time.Duration
}

// TokenStoreOptions configures a TokenStore.
type TokenStoreOptions struct {
	Client redis.UniversalClient
	// Broker receives the logout notification on Clear. Optional.
	Broker ports.LogoutBroker
	// Prefix defaults to "session:".
	Prefix string
	// TTL bounds how long an untouched bundle survives. Defaults to 24h.
	TTL time.Duration
}

// NewTokenStore creates a new Redis-based token store.
func NewTokenStore(opts TokenStoreOptions) *TokenStore {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "session:"
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenStore{
		client: opts.Client,
		broker: opts.Broker,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *TokenStore) Save(ctx context.Context, sessionID string, bundle domainauth.TokenBundle) error {
	if sessionID == "" {
		return errors.New("session ID cannot be empty")
	}

	stored := storedBundle{
		AccessToken:  bundle.AccessToken,
		RefreshToken: bundle.RefreshToken,
		SavedAt:      bundle.SavedAt,
	}
	if stored.SavedAt.IsZero() {
		stored.SavedAt = time.Now().UTC()
	}
	if bundle.Identity != nil {
		raw, err := json.Marshal(bundle.Identity)
		if err != nil {
			return fmt.Errorf("marshal identity: %w", err)
		}
		stored.Identity = raw
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}

	return s.client.Set(ctx, s.prefix+sessionID, data, s.ttl).Err()
}

// Read returns whatever subset of the bundle is present. Corrupt stored
// data never fails the read: a corrupt identity snapshot comes back as an
// absent identity, and a corrupt value as an empty bundle.
func (s *TokenStore) Read(ctx context.Context, sessionID string) (domainauth.TokenBundle, error) {
	if sessionID == "" {
		return domainauth.TokenBundle{}, nil
	}

	data, err := s.client.Get(ctx, s.prefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.TokenBundle{}, nil
		}
		return domainauth.TokenBundle{}, fmt.Errorf("redis get: %w", err)
	}

	var stored storedBundle
	if unmarshalErr := json.Unmarshal([]byte(data), &stored); unmarshalErr != nil {
		return domainauth.TokenBundle{}, nil
	}

	bundle := domainauth.TokenBundle{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		SavedAt:      stored.SavedAt,
	}
	if len(stored.Identity) > 0 {
		var identity domainauth.Identity
		if idErr := json.Unmarshal(stored.Identity, &identity); idErr == nil {
			bundle.Identity = &identity
		}
	}

	return bundle, nil
}

// Clear removes the bundle and broadcasts the logout. Clearing an absent
// session is a no-op, so Clear is idempotent.
func (s *TokenStore) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := s.client.Del(ctx, s.prefix+sessionID).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}

	if s.broker != nil {
		if err := s.broker.PublishLogout(ctx, ports.LogoutEvent{SessionID: sessionID}); err != nil {
			return fmt.Errorf("publish logout: %w", err)
		}
	}
	return nil
}

// ListSessions enumerates live session IDs via SCAN, for the operator CLI.
func (s *TokenStore) ListSessions(ctx context.Context) ([]string, error) {
	var (
		ids    []string
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		for _, key := range keys {
			ids = append(ids, key[len(s.prefix):])
		}
		cursor = next
		if cursor == 0 {
			return ids, nil
		}
	}
}
