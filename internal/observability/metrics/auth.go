package metrics

import (
	"time"

	apperrors "github.com/alumon/ui-gateway/internal/errors"
	"github.com/alumon/ui-gateway/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// AuthMetrics emits counters and timings for the auth flows. A nil
// receiver is valid and emits nothing, so call sites never need to
// guard.
type AuthMetrics struct {
	sink statsd.Sink
}

// NewAuthMetrics wraps a sink. A nil sink yields a no-op emitter.
func NewAuthMetrics(sink statsd.Sink) *AuthMetrics {
	if sink == nil {
		return nil
	}
	return &AuthMetrics{sink: sink}
}

// Login records a login attempt outcome for a dashboard.
func (m *AuthMetrics) Login(dashboard string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	tags := map[string]string{"dashboard": dashboard, "result": resultOf(err)}
	if code := apperrors.GetCode(err); code != "" {
		tags["error_code"] = string(code)
	}
	m.sink.Count("auth.login", 1, tags)
	if duration > 0 {
		m.sink.Timing("auth.login.duration", duration, CloneTags(tags))
	}
}

// RefreshIssued records a completed backend refresh call.
func (m *AuthMetrics) RefreshIssued() {
	if m == nil {
		return
	}
	m.sink.Count("auth.refresh.issued", 1, nil)
}

// RefreshCoalesced records a refresh caller that shared another
// caller's in-flight refresh instead of issuing its own.
func (m *AuthMetrics) RefreshCoalesced() {
	if m == nil {
		return
	}
	m.sink.Count("auth.refresh.coalesced", 1, nil)
}

// RefreshFailed records a refresh call the backend rejected.
func (m *AuthMetrics) RefreshFailed() {
	if m == nil {
		return
	}
	m.sink.Count("auth.refresh.failed", 1, nil)
}

// GuardRedirect records a route guard denial and where it sent the user.
func (m *AuthMetrics) GuardRedirect(requirement, role, target string) {
	if m == nil {
		return
	}
	m.sink.Count("auth.guard.redirect", 1, map[string]string{
		"requirement": requirement,
		"role":        role,
		"target":      target,
	})
}

// Logout records a session teardown.
func (m *AuthMetrics) Logout(reason string) {
	if m == nil {
		return
	}
	m.sink.Count("auth.logout", 1, map[string]string{"reason": reason})
}

func resultOf(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
