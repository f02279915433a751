package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/alumon/ui-gateway/config"
	"github.com/alumon/ui-gateway/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "starting alumon ui gateway",
		"backend", cfg.Backend.BaseURL,
		"store_mode", string(cfg.Session.StoreMode),
		"addr", cfg.HTTP.Addr)

	db, redisClient, err := initInfrastructure(&cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() {
			if cerr := db.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close database failed", "error", cerr)
			}
		}()
	}
	if redisClient != nil {
		defer func() {
			if cerr := redisClient.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close redis failed", "error", cerr)
			}
		}()
	}

	tokens, broker, err := bootstrap.BuildTokenStore(bootstrap.StoreDeps{
		Config: cfg.Session,
		Redis:  redisClient,
		DB:     db,
	})
	if err != nil {
		return fmt.Errorf("build token store: %w", err)
	}

	sink, err := bootstrap.InitMetricsSink(cfg.Observability.Metrics, logger)
	if err != nil {
		return err
	}
	if sink != nil {
		defer func() {
			if cerr := sink.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close statsd client failed", "error", cerr)
			}
		}()
	}

	stack := bootstrap.BuildAuthStack(bootstrap.AuthStackDeps{
		Config: cfg,
		Tokens: tokens,
		Broker: broker,
		Sink:   sink,
		Logger: logger,
	})

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Subscribe the session cache to logout broadcasts before serving.
	if err = stack.Auth.Start(runCtx); err != nil {
		return fmt.Errorf("start auth service: %w", err)
	}

	server := bootstrap.StartHTTPServer(&bootstrap.HTTPServerConfig{
		Config: &cfg,
		Stack:  stack,
		Logger: logger,
	})

	<-runCtx.Done()
	logger.InfoContext(ctx, "shutdown signal received")

	return bootstrap.ShutdownHTTPServer(bootstrap.ShutdownConfig{
		Context: ctx,
		Server:  server,
		Timeout: cfg.HTTP.ShutdownTimeout,
		Logger:  logger,
	})
}

// initInfrastructure connects the storage backing the configured session
// store mode. Only the matching connection is established.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel support flexible.
func initInfrastructure(cfg *config.AppConfig, logger *slog.Logger) (*sql.DB, redis.UniversalClient, error) {
	switch cfg.Session.StoreMode {
	case config.StoreModePostgres:
		db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
			DBConfig:    cfg.Postgres,
			RedisConfig: cfg.Redis,
			Logger:      logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect db: %w", err)
		}
		return db, nil, nil

	case config.StoreModeRedis:
		redisClient, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{
			DBConfig:    cfg.Postgres,
			RedisConfig: cfg.Redis,
			Logger:      logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return nil, redisClient, nil

	default:
		return nil, nil, fmt.Errorf("unknown session store mode %q", cfg.Session.StoreMode)
	}
}
