package bootstrap

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/alumon/ui-gateway/config"
	pgadapter "github.com/alumon/ui-gateway/internal/adapters/postgres"
	redisadapter "github.com/alumon/ui-gateway/internal/adapters/redis"
	"github.com/alumon/ui-gateway/internal/backend"
	"github.com/alumon/ui-gateway/internal/observability/metrics"
	"github.com/alumon/ui-gateway/internal/observability/statsd"
	"github.com/alumon/ui-gateway/internal/ports"
	"github.com/alumon/ui-gateway/internal/service"
)

// StoreDeps carries the connections a token store may need. Only the one
// matching the configured store mode has to be non-nil.
type StoreDeps struct {
	Config config.SessionConfig
	Redis  redis.UniversalClient
	DB     *sql.DB
}

// BuildTokenStore selects and constructs the token store adapter for the
// configured mode. The returned broker distributes logout notifications
// through the same infrastructure the store lives on.
func BuildTokenStore(deps StoreDeps) (ports.TokenStore, ports.LogoutBroker, error) {
	switch deps.Config.StoreMode {
	case config.StoreModePostgres:
		if deps.DB == nil {
			return nil, nil, fmt.Errorf("store mode %q requires a database connection", deps.Config.StoreMode)
		}
		store := pgadapter.NewTokenStore(deps.DB, deps.Config.TTL)
		return store, store, nil

	case config.StoreModeRedis:
		if deps.Redis == nil {
			return nil, nil, fmt.Errorf("store mode %q requires a redis connection", deps.Config.StoreMode)
		}
		broker := redisadapter.NewLogoutBroker(deps.Redis)
		store := redisadapter.NewTokenStore(redisadapter.TokenStoreOptions{
			Client: deps.Redis,
			Broker: broker,
			Prefix: deps.Config.KeyPrefix,
			TTL:    deps.Config.TTL,
		})
		return store, broker, nil

	default:
		return nil, nil, fmt.Errorf("unknown store mode %q", deps.Config.StoreMode)
	}
}

// AuthStack bundles the constructed auth components handed to the HTTP
// server and the admin CLI.
type AuthStack struct {
	Auth     *service.AuthService
	Overview *service.OverviewService

	// BackendClient carries the bearer-attaching 401-refresh transport.
	BackendClient *http.Client

	Metrics *metrics.AuthMetrics
}

// AuthStackDeps groups inputs for BuildAuthStack.
type AuthStackDeps struct {
	Config config.AppConfig
	Tokens ports.TokenStore
	Broker ports.LogoutBroker
	Sink   statsd.Sink
	Logger *slog.Logger
}

// BuildAuthStack wires the backend client, refresh transport, and auth
// service together.
func BuildAuthStack(deps AuthStackDeps) *AuthStack {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	authMetrics := metrics.NewAuthMetrics(deps.Sink)
	authAPI := backend.NewAuthAPI(deps.Config.Backend.BaseURL, deps.Config.Backend.AuthTimeout)

	refresher := backend.NewRefresher(backend.RefresherOptions{
		Backend: authAPI,
		Tokens:  deps.Tokens,
		Timeout: deps.Config.Session.RefreshTimeout,
		Logger:  logger,
		Metrics: authMetrics,
	})
	client := backend.NewHTTPClient(deps.Tokens, refresher, logger, deps.Config.Backend.ProxyTimeout)

	authSvc := service.NewAuthService(service.AuthServiceOptions{
		Backend:  authAPI,
		Tokens:   deps.Tokens,
		Broker:   deps.Broker,
		Logger:   logger,
		Metrics:  authMetrics,
		CacheTTL: deps.Config.Session.CacheTTL,
	})

	overview := service.NewOverviewService(service.OverviewServiceOptions{
		Client:  client,
		BaseURL: deps.Config.Backend.BaseURL,
		Logger:  logger,
	})

	return &AuthStack{
		Auth:          authSvc,
		Overview:      overview,
		BackendClient: client,
		Metrics:       authMetrics,
	}
}

// InitMetricsSink builds the StatsD client when metrics are enabled. A nil
// return is valid and disables emission.
func InitMetricsSink(cfg config.ObservabilityMetricsConfig, logger *slog.Logger) (*statsd.Client, error) {
	if !cfg.IsEnabled() {
		return nil, nil
	}
	client, err := statsd.NewClient(statsd.Config{
		Enabled: true,
		Address: cfg.StatsdAddress,
		Prefix:  cfg.Prefix,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init statsd client: %w", err)
	}
	return client, nil
}
