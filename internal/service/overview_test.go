package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumon/ui-gateway/internal/backend"
	domainauth "github.com/alumon/ui-gateway/internal/domain/auth"
	apperrors "github.com/alumon/ui-gateway/internal/errors"
	mockauth "github.com/alumon/ui-gateway/internal/mocks/auth"
)

func newOverviewFixture(t *testing.T, handler http.Handler) (*OverviewService, *mockauth.MemoryTokenStore, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := mockauth.NewMemoryTokenStore()
	refresher := backend.NewRefresher(backend.RefresherOptions{
		Backend: mockauth.NewFakeAuthBackend(),
		Tokens:  store,
	})
	client := backend.NewHTTPClient(store, refresher, nil, 5*time.Second)

	svc := NewOverviewService(OverviewServiceOptions{Client: client, BaseURL: srv.URL})
	return svc, store, srv
}

func seedOverviewSession(t *testing.T, store *mockauth.MemoryTokenStore) {
	t.Helper()
	require.NoError(t, store.Save(context.Background(), "sess-1", domainauth.TokenBundle{
		AccessToken:  "tok-1",
		RefreshToken: "ref-1",
		SavedAt:      time.Now().UTC(),
	}))
}

func TestOverviewUserDashboard(t *testing.T) {
	t.Parallel()

	svc, store, _ := newOverviewFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/prediction/", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"results":[
			{"id":1,"predicted_value":92.4,"created_at":"2026-08-29T10:00:00Z"},
			{"id":2,"predicted_value":88.1,"created_at":"2026-08-28T10:00:00Z"}
		]}`)
	}))
	seedOverviewSession(t, store)

	out, err := svc.Overview(context.Background(), "sess-1", "user")
	require.NoError(t, err)

	assert.Equal(t, 92.4, out["latest_prediction"])
	predictions, ok := out["predictions"].([]any)
	require.True(t, ok)
	require.Len(t, predictions, 2)
	first, ok := predictions[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), first["id"])
	assert.Equal(t, 92.4, first["value"])
}

func TestOverviewStaffDashboardAggregates(t *testing.T) {
	t.Parallel()

	svc, store, _ := newOverviewFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/waste/":
			_, _ = io.WriteString(w, `{"results":[{"id":1,"amount":1.5},{"id":2,"amount":2.5}]}`)
		case "/api/recommendation/":
			_, _ = io.WriteString(w, `{"results":[{"id":9,"title":"Lower bath temperature","created_at":"2026-08-29T08:00:00Z"}]}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	seedOverviewSession(t, store)

	out, err := svc.Overview(context.Background(), "sess-1", "staff")
	require.NoError(t, err)

	waste, ok := out["waste"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(4), waste["total"])

	recs, ok := out["recommendations"].([]any)
	require.True(t, ok)
	require.Len(t, recs, 1)
}

func TestOverviewSectionFailureIsIsolated(t *testing.T) {
	t.Parallel()

	svc, store, _ := newOverviewFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/admin-panel/users/":
			w.WriteHeader(http.StatusInternalServerError)
		case "/api/recommendation/":
			_, _ = io.WriteString(w, `{"results":[]}`)
		}
	}))
	seedOverviewSession(t, store)

	out, err := svc.Overview(context.Background(), "sess-1", "admin")
	require.NoError(t, err, "one failing section must not fail the whole overview")

	accounts, ok := out["accounts"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, string(apperrors.ErrCodeInternal), accounts["error"])
	assert.NotNil(t, out["recommendations"])
}

func TestOverviewUnknownDashboard(t *testing.T) {
	t.Parallel()

	svc, store, _ := newOverviewFixture(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	seedOverviewSession(t, store)

	_, err := svc.Overview(context.Background(), "sess-1", "superuser")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}
