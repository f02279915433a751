package httpx

import (
	"context"
	"log/slog"
	"net/http"
)

// OverviewService builds per-dashboard summary documents.
type OverviewService interface {
	Overview(ctx context.Context, sessionID, dashboard string) (map[string]any, error)
}

// DashboardHandlers serves the JSON landing summaries behind the three
// dashboard routes. The guard in front of each route has already enforced
// the role, so handlers only differ by which summary they ask for.
type DashboardHandlers struct {
	Overview OverviewService
	Logger   *slog.Logger
}

// UserOverview serves GET /dashboard.
func (h *DashboardHandlers) UserOverview(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "user")
}

// StaffOverview serves GET /staff-dashboard.
func (h *DashboardHandlers) StaffOverview(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "staff")
}

// AdminOverview serves GET /admin-dashboard.
func (h *DashboardHandlers) AdminOverview(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "admin")
}

func (h *DashboardHandlers) serve(w http.ResponseWriter, r *http.Request, dashboard string) {
	sessionID := SessionIDFromRequestContext(r.Context())
	summary, err := h.Overview.Overview(r.Context(), sessionID, dashboard)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"dashboard": dashboard,
		"summary":   summary,
	})
}
