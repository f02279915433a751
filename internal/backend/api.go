package backend

// Package backend is the HTTP client for the external monitoring REST
// backend. It owns the auth endpoints (token obtain/refresh, profile,
// registration), the bearer-attaching transport with its 401
// refresh-and-retry protocol, and the normalization of backend failures
// into the application error taxonomy.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/alumon/ui-gateway/internal/domain/auth"
	apperrors "github.com/alumon/ui-gateway/internal/errors"
	"github.com/alumon/ui-gateway/internal/ports"
)

const (
	tokenPath    = "/api/auth/token/"
	refreshPath  = "/api/auth/token/refresh/"
	usersPath    = "/api/auth/users/"
	registerPath = "/api/auth/register/"
)

// AuthAPI calls the backend's auth endpoints. It always uses a plain
// (non-intercepting) HTTP client: login, refresh, and registration calls
// must never recurse into the refresh protocol.
type AuthAPI struct {
	baseURL string
	client  *http.Client
}

// NewAuthAPI creates an AuthAPI for the given backend base URL.
func NewAuthAPI(baseURL string, timeout time.Duration) *AuthAPI {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &AuthAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

var _ ports.AuthBackend = (*AuthAPI)(nil)

// tokenResponse is the backend's token endpoint payload. The user record
// is included on obtain; refresh responses carry access and, when the
// backend rotates it, a new refresh token.
type tokenResponse struct {
	Access  string               `json:"access"`
	Refresh string               `json:"refresh"`
	User    *domainauth.Identity `json:"user"`
}

// ObtainToken exchanges credentials for a token pair.
func (a *AuthAPI) ObtainToken(ctx context.Context, creds ports.Credentials) (ports.TokenPair, *domainauth.Identity, error) {
	body := map[string]string{"username": creds.Username, "password": creds.Password}

	var resp tokenResponse
	if err := a.postJSON(ctx, tokenPath, body, &resp); err != nil {
		return ports.TokenPair{}, nil, err
	}
	if resp.Access == "" {
		return ports.TokenPair{}, nil, apperrors.Internal("token endpoint returned no access token")
	}
	return ports.TokenPair{Access: resp.Access, Refresh: resp.Refresh}, resp.User, nil
}

// RefreshToken exchanges a refresh token for a new access token.
func (a *AuthAPI) RefreshToken(ctx context.Context, refreshToken string) (ports.TokenPair, error) {
	var resp tokenResponse
	if err := a.postJSON(ctx, refreshPath, map[string]string{"refresh": refreshToken}, &resp); err != nil {
		return ports.TokenPair{}, err
	}
	if resp.Access == "" {
		return ports.TokenPair{}, apperrors.Internal("refresh endpoint returned no access token")
	}
	return ports.TokenPair{Access: resp.Access, Refresh: resp.Refresh}, nil
}

// FetchUser retrieves the full profile for a user id.
func (a *AuthAPI) FetchUser(ctx context.Context, accessToken string, userID int64) (*domainauth.Identity, error) {
	url := fmt.Sprintf("%s%s%d/", a.baseURL, usersPath, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, normalizeTransportError(err)
	}
	defer closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, normalizeStatusError(resp)
	}

	var identity domainauth.Identity
	if decodeErr := json.NewDecoder(resp.Body).Decode(&identity); decodeErr != nil {
		return nil, apperrors.Wrap(decodeErr, apperrors.ErrCodeInternal, "decode user profile")
	}
	return &identity, nil
}

// Register forwards a registration request. New accounts are created
// inactive and wait for administrator approval.
func (a *AuthAPI) Register(ctx context.Context, req ports.RegistrationRequest) error {
	return a.postJSON(ctx, registerPath, req, nil)
}

func (a *AuthAPI) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return normalizeTransportError(err)
	}
	defer closeBody(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return normalizeStatusError(resp)
	}

	if out == nil {
		return nil
	}
	if decodeErr := json.NewDecoder(resp.Body).Decode(out); decodeErr != nil {
		return apperrors.Wrap(decodeErr, apperrors.ErrCodeInternal, "decode response")
	}
	return nil
}

func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
