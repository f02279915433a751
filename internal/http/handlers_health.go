package httpx

import (
	"io"
	"net/http"
)

const healthResponse = `{"status":"ok","service":"ui-gateway"}`

// healthHandler answers readiness and liveness probes. It reports only
// gateway process health; backend reachability is surfaced per request.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, healthResponse); err != nil {
		// Client connection is gone.
		return
	}
}
