package httpx

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alumon/ui-gateway/internal/backend"
)

// maxProxyBodyBytes bounds buffered request bodies. Buffering is required
// so the transport can replay the body after a token refresh.
const maxProxyBodyBytes = 4 << 20

// ProxyHandlers forwards dashboard API calls to the monitoring backend
// through the bearer-attaching client, so every proxied request
// participates in the 401 refresh protocol of the caller's session.
type ProxyHandlers struct {
	Client  *http.Client
	BaseURL string
	Logger  *slog.Logger
}

func (h *ProxyHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Forward proxies the request as-is: same method, path, query, and body.
// The route guard in front of it has already resolved and admitted the
// session; its id rides the request context into the transport.
func (h *ProxyHandlers) Forward(w http.ResponseWriter, r *http.Request) {
	sessionID := SessionIDFromRequestContext(r.Context())

	url := strings.TrimRight(h.BaseURL, "/") + r.URL.Path
	if r.URL.RawQuery != "" {
		url += "?" + r.URL.RawQuery
	}

	var body io.Reader
	if r.Body != nil {
		buffered, err := io.ReadAll(io.LimitReader(r.Body, maxProxyBodyBytes+1))
		if err != nil {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "body_read_failed", Err: err})
			return
		}
		if len(buffered) > maxProxyBodyBytes {
			WriteError(w, ErrorParams{Code: http.StatusRequestEntityTooLarge, ErrCode: "body_too_large",
				Err: io.ErrShortBuffer})
			return
		}
		body = bytes.NewReader(buffered)
	}

	req, err := http.NewRequestWithContext(backend.WithSessionID(r.Context(), sessionID), r.Method, url, body)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "proxy_request_failed", Err: err})
		return
	}
	copyProxyHeaders(req.Header, r.Header)

	resp, err := h.Client.Do(req)
	if err != nil {
		h.logger().WarnContext(r.Context(), "backend proxy failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		WriteJSON(w, http.StatusBadGateway, map[string]string{
			"error":   "backend_unavailable",
			"message": "monitoring backend is unreachable",
		})
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		// Client went away mid-stream; nothing left to do.
		return
	}
}

// copyProxyHeaders forwards content negotiation headers only. Cookies stay
// at the gateway and Authorization is owned by the transport.
func copyProxyHeaders(dst, src http.Header) {
	for _, name := range []string{"Content-Type", "Accept", "Accept-Language"} {
		if v := src.Get(name); v != "" {
			dst.Set(name, v)
		}
	}
}
