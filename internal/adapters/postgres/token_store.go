package postgres

// Package postgres provides a Postgres-backed token store for deployments
// without Redis. Bundles live in the sessions table; logout notifications
// ride on LISTEN/NOTIFY.

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	domainauth "github.com/alumon/ui-gateway/internal/domain/auth"
	apperrors "github.com/alumon/ui-gateway/internal/errors"
	"github.com/alumon/ui-gateway/internal/ports"
)

const logoutChannel = "auth_logout"

// TokenStore persists token bundles in the sessions table. A bundle is a
// single row, so saves are atomic, and Clear doubles as the logout
// broadcaster via pg_notify on the auth_logout channel.
type TokenStore struct {
	db  *sql.DB
	ttl time.Duration
}

// NewTokenStore creates a Postgres-backed token store. TTL bounds how long
// an untouched bundle survives; it defaults to 24h.
func NewTokenStore(db *sql.DB, ttl time.Duration) *TokenStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenStore{db: db, ttl: ttl}
}

func (s *TokenStore) Save(ctx context.Context, sessionID string, bundle domainauth.TokenBundle) error {
	if sessionID == "" {
		return errors.New("session ID cannot be empty")
	}

	savedAt := bundle.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now().UTC()
	}

	var identity []byte
	if bundle.Identity != nil {
		raw, err := json.Marshal(bundle.Identity)
		if err != nil {
			return fmt.Errorf("marshal identity: %w", err)
		}
		identity = raw
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, access_token, refresh_token, identity, saved_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			access_token  = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			identity      = EXCLUDED.identity,
			saved_at      = EXCLUDED.saved_at,
			expires_at    = EXCLUDED.expires_at
	`, sessionID, bundle.AccessToken, bundle.RefreshToken, identity, savedAt, savedAt.Add(s.ttl))
	if err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}

// Read returns whatever subset of the bundle is present. An expired or
// missing row is an empty bundle; a corrupt identity column is returned
// as an absent identity next to the intact tokens.
func (s *TokenStore) Read(ctx context.Context, sessionID string) (domainauth.TokenBundle, error) {
	if sessionID == "" {
		return domainauth.TokenBundle{}, nil
	}

	var (
		bundle   domainauth.TokenBundle
		identity []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT access_token, refresh_token, identity, saved_at
		FROM sessions
		WHERE id = $1 AND expires_at > now()
	`, sessionID).Scan(&bundle.AccessToken, &bundle.RefreshToken, &identity, &bundle.SavedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domainauth.TokenBundle{}, nil
		}
		return domainauth.TokenBundle{}, apperrors.MapDBError(err)
	}

	if len(identity) > 0 {
		var id domainauth.Identity
		if idErr := json.Unmarshal(identity, &id); idErr == nil {
			bundle.Identity = &id
		}
	}
	return bundle, nil
}

// Clear removes the bundle and notifies listeners. Idempotent: clearing
// an absent session still succeeds and still notifies, so a double logout
// cannot strand a subscriber.
func (s *TokenStore) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	event, err := json.Marshal(ports.LogoutEvent{SessionID: sessionID})
	if err != nil {
		return fmt.Errorf("marshal logout event: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID); err != nil {
		return apperrors.MapDBError(err)
	}
	if _, err := s.db.ExecContext(ctx, `SELECT pg_notify($1::text, $2::text)`, logoutChannel, string(event)); err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}

// ListSessions enumerates live session IDs for the operator CLI.
func (s *TokenStore) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM sessions WHERE expires_at > now() ORDER BY saved_at`)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			_ = cerr
		}
	}()

	var ids []string
	for rows.Next() {
		var id string
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, apperrors.MapDBError(scanErr)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PublishLogout broadcasts a logout event without touching stored rows,
// satisfying ports.LogoutBroker for bundles cleared elsewhere.
func (s *TokenStore) PublishLogout(ctx context.Context, event ports.LogoutEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal logout event: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `SELECT pg_notify($1::text, $2::text)`, logoutChannel, string(payload)); err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}

// Subscribe LISTENs on the logout channel using a dedicated pooled
// connection. Malformed payloads are dropped.
func (s *TokenStore) Subscribe(ctx context.Context) (<-chan ports.LogoutEvent, func(), error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("get conn from pool: %w", err)
	}

	quoted := pgx.Identifier{logoutChannel}.Sanitize()
	if _, execErr := conn.ExecContext(ctx, "LISTEN "+quoted); execErr != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("listen %s: %w", logoutChannel, execErr)
	}

	subCtx, cancelCtx := context.WithCancel(ctx)
	events := make(chan ports.LogoutEvent)

	go func() {
		defer close(events)
		defer func() {
			if cerr := conn.Close(); cerr != nil {
				_ = cerr
			}
		}()

		for {
			var payload string
			rawErr := conn.Raw(func(dc any) error {
				sc, ok := dc.(*stdlib.Conn)
				if !ok {
					return errors.New("unexpected driver connection type; expected *stdlib.Conn")
				}
				notification, notifyErr := sc.Conn().WaitForNotification(subCtx)
				if notifyErr != nil {
					return notifyErr
				}
				payload = notification.Payload
				return nil
			})
			if rawErr != nil {
				return
			}

			var event ports.LogoutEvent
			if unmarshalErr := json.Unmarshal([]byte(payload), &event); unmarshalErr != nil {
				continue
			}
			select {
			case events <- event:
			case <-subCtx.Done():
				return
			}
		}
	}()

	return events, cancelCtx, nil
}

// PurgeExpired removes expired session rows, returning how many were
// deleted. Called periodically by the operator CLI.
func (s *TokenStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, apperrors.MapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
