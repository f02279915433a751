package httpx

import (
	"log/slog"
	"net/http"
	"time"

	domainauth "github.com/alumon/ui-gateway/internal/domain/auth"
	"github.com/alumon/ui-gateway/internal/observability/metrics"
	"github.com/alumon/ui-gateway/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth     *service.AuthService
	Overview *service.OverviewService

	// BackendClient carries the bearer-attaching transport; BackendBaseURL
	// is where proxied dashboard API calls go.
	BackendClient  *http.Client
	BackendBaseURL string

	CookieDomain string
	CookieTTL    time.Duration

	Metrics *metrics.AuthMetrics
	Logger  *slog.Logger
}

// NewRouter creates and configures the gateway's HTTP router: public auth
// endpoints, guarded dashboard summaries, and guarded backend proxies.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	authHandlers := &AuthHandlers{
		Svc:          services.Auth,
		CookieDomain: services.CookieDomain,
		CookieTTL:    services.CookieTTL,
		Logger:       logger,
	}
	dashboardHandlers := &DashboardHandlers{Overview: services.Overview, Logger: logger}
	proxyHandlers := &ProxyHandlers{
		Client:  services.BackendClient,
		BaseURL: services.BackendBaseURL,
		Logger:  logger,
	}

	guardCfg := GuardConfig{Resolver: services.Auth, Logger: logger, Metrics: services.Metrics}
	anyAuth := Guard(guardCfg, domainauth.RequireAuthenticated)
	userOnly := Guard(guardCfg, domainauth.RequireUser)
	staffOnly := Guard(guardCfg, domainauth.RequireStaff)
	adminOnly := Guard(guardCfg, domainauth.RequireAdmin)

	// Auth surface. Unguarded: login pages must reach it signed out.
	mux.Handle("POST /auth/login", http.HandlerFunc(authHandlers.LoginGeneric))
	mux.Handle("POST /auth/login/staff", http.HandlerFunc(authHandlers.LoginStaff))
	mux.Handle("POST /auth/login/admin", http.HandlerFunc(authHandlers.LoginAdmin))
	mux.Handle("POST /auth/logout", http.HandlerFunc(authHandlers.Logout))
	mux.Handle("GET /auth/status", http.HandlerFunc(authHandlers.Status))
	mux.Handle("POST /auth/register", http.HandlerFunc(authHandlers.Register))

	// Dashboard landing summaries, one per role area.
	mux.Handle("GET /dashboard", userOnly(http.HandlerFunc(dashboardHandlers.UserOverview)))
	mux.Handle("GET /staff-dashboard", staffOnly(http.HandlerFunc(dashboardHandlers.StaffOverview)))
	mux.Handle("GET /admin-dashboard", adminOnly(http.HandlerFunc(dashboardHandlers.AdminOverview)))

	// Session-scoped profile.
	mux.Handle("GET /api/auth/me", anyAuth(http.HandlerFunc(authHandlers.Profile)))

	// Backend proxies, subtree-matched so every method and nested path
	// forwards. Guards match the dashboard areas the resources belong to.
	forward := http.HandlerFunc(proxyHandlers.Forward)
	mux.Handle("/api/prediction/", anyAuth(forward))
	mux.Handle("/api/recommendation/", anyAuth(forward))
	mux.Handle("/api/waste/", anyAuth(forward))
	mux.Handle("/api/staff/", staffOnly(forward))
	mux.Handle("/api/admin-panel/", adminOnly(forward))

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	// Recover and Logging middleware are applied by bootstrap around the
	// returned router.
	return mux
}
