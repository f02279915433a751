package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alumon/ui-gateway/config"
	"github.com/alumon/ui-gateway/internal/bootstrap"
	domainauth "github.com/alumon/ui-gateway/internal/domain/auth"
	"github.com/alumon/ui-gateway/internal/ports"
)

// storeConnections bundles a constructed token store with the underlying
// connections so commands can close everything in one place.
type storeConnections struct {
	Tokens ports.TokenStore
	Broker ports.LogoutBroker

	db    *sql.DB
	redis redis.UniversalClient
}

func (c *storeConnections) Close() error {
	var closeErr error
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close db: %w", err))
		}
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close redis: %w", err))
		}
	}
	return closeErr
}

// connectStore builds the token store for the configured session store
// mode, connecting only the infrastructure that mode needs.
func connectStore(cmdCtx *commandContext) (*storeConnections, error) {
	conns := &storeConnections{}

	switch cmdCtx.Config.Session.StoreMode {
	case config.StoreModePostgres:
		db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
			DBConfig: cmdCtx.Config.Postgres,
			Logger:   cmdCtx.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("connect db: %w", err)
		}
		conns.db = db

	case config.StoreModeRedis:
		redisClient, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{
			RedisConfig: cmdCtx.Config.Redis,
			Logger:      cmdCtx.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		conns.redis = redisClient

	default:
		return nil, fmt.Errorf("unknown session store mode %q", cmdCtx.Config.Session.StoreMode)
	}

	tokens, broker, err := bootstrap.BuildTokenStore(bootstrap.StoreDeps{
		Config: cmdCtx.Config.Session,
		Redis:  conns.redis,
		DB:     conns.db,
	})
	if err != nil {
		if closeErr := conns.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		return nil, fmt.Errorf("build token store: %w", err)
	}

	conns.Tokens = tokens
	conns.Broker = broker
	return conns, nil
}

func runSessionsList(cmdCtx *commandContext, args []string) error {
	opts, err := parseSessionsListFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 2*time.Minute)
	defer cancel()

	conns, err := connectStore(cmdCtx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conns.Close(); cerr != nil {
			cmdCtx.Logger.Warn("close store connections failed", "error", cerr)
		}
	}()

	lister, ok := conns.Tokens.(ports.SessionLister)
	if !ok {
		return fmt.Errorf("store mode %q does not support session listing", cmdCtx.Config.Session.StoreMode)
	}

	ids, err := lister.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(ids) == 0 {
		return writeln(os.Stdout, "(no live sessions)")
	}
	if opts.Limit > 0 && len(ids) > opts.Limit {
		ids = ids[:opts.Limit]
	}

	return printSessionRows(ctx, conns.Tokens, ids)
}

func printSessionRows(ctx context.Context, tokens ports.TokenStore, ids []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(w, "SESSION ID\tUSERNAME\tROLE\tSAVED AT"); err != nil {
		return fmt.Errorf("write session header: %w", err)
	}

	for _, id := range ids {
		bundle, err := tokens.Read(ctx, id)
		if err != nil {
			if writeErr := writef(w, "%s\t(read failed: %v)\t\t\n", id, err); writeErr != nil {
				return fmt.Errorf("write session row: %w", writeErr)
			}
			continue
		}
		if bundle.IsEmpty() {
			// Expired between SCAN and read.
			continue
		}

		username := "(unknown)"
		if bundle.Identity != nil && bundle.Identity.Username != "" {
			username = bundle.Identity.Username
		}
		role := domainauth.Classify(bundle.Identity)
		savedAt := ""
		if !bundle.SavedAt.IsZero() {
			savedAt = bundle.SavedAt.UTC().Format(time.RFC3339)
		}

		if err := writef(w, "%s\t%s\t%s\t%s\n", id, username, role, savedAt); err != nil {
			return fmt.Errorf("write session row: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush session table: %w", err)
	}
	return nil
}

func runSessionRevoke(cmdCtx *commandContext, args []string) error {
	opts, err := parseSessionRevokeFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, time.Minute)
	defer cancel()

	conns, err := connectStore(cmdCtx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conns.Close(); cerr != nil {
			cmdCtx.Logger.Warn("close store connections failed", "error", cerr)
		}
	}()

	bundle, err := conns.Tokens.Read(ctx, opts.SessionID)
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}
	if bundle.IsEmpty() {
		return writef(os.Stdout, "Session %s not found or already expired\n", opts.SessionID)
	}

	username := "(unknown)"
	if bundle.Identity != nil && bundle.Identity.Username != "" {
		username = bundle.Identity.Username
	}

	if !opts.Yes {
		if err = confirmRevoke(opts.SessionID, username); err != nil {
			return err
		}
	}

	if err = conns.Tokens.Clear(ctx, opts.SessionID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}

	cmdCtx.Logger.Info("session revoked", "session_id", opts.SessionID, "username", username)
	return writef(os.Stdout, "Revoked session %s (%s); logout broadcast to all replicas\n", opts.SessionID, username)
}

func confirmRevoke(sessionID, username string) error {
	if err := writef(
		os.Stderr,
		"Revoke session %s belonging to %s? Type \"yes\" to continue: ",
		sessionID,
		username,
	); err != nil {
		return fmt.Errorf("print revoke prompt: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)
	resp, err := reader.ReadString('\n')
	if err != nil {
		return errors.New("aborted by user")
	}
	if strings.TrimSpace(resp) != "yes" {
		return errors.New("aborted by user")
	}
	return nil
}

// expiredPurger is implemented by stores that keep rows past expiry and
// need periodic cleanup.
type expiredPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

func runSessionsPurge(cmdCtx *commandContext, _ []string) error {
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 2*time.Minute)
	defer cancel()

	conns, err := connectStore(cmdCtx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conns.Close(); cerr != nil {
			cmdCtx.Logger.Warn("close store connections failed", "error", cerr)
		}
	}()

	purger, ok := conns.Tokens.(expiredPurger)
	if !ok {
		return writef(
			os.Stdout,
			"Store mode %q expires sessions automatically; nothing to purge\n",
			cmdCtx.Config.Session.StoreMode,
		)
	}

	purged, err := purger.PurgeExpired(ctx)
	if err != nil {
		return fmt.Errorf("purge expired sessions: %w", err)
	}

	cmdCtx.Logger.Info("expired sessions purged", "rows", purged)
	return writef(os.Stdout, "Purged %d expired session rows\n", purged)
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	if len(args) == 0 {
		_, err := fmt.Fprintln(w)
		return err
	}
	_, err := fmt.Fprintln(w, args...)
	return err
}
