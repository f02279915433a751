package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	apperrors "github.com/alumon/ui-gateway/internal/errors"
)

// approvalDetail is the exact message the backend returns for accounts
// that registered but have not been activated by an administrator.
const approvalDetail = "Account not approved by admin yet"

// normalizeTransportError maps client-side transport failures. The
// backend never sent a response, so nothing here may be treated as a
// token problem.
func normalizeTransportError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Wrap(err, apperrors.ErrCodeTimeout, "backend request timed out")
	case errors.Is(err, context.Canceled):
		return apperrors.Wrap(err, apperrors.ErrCodeCanceled, "backend request canceled")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.Wrap(err, apperrors.ErrCodeTimeout, "backend request timed out")
	}
	return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "backend unreachable")
}

// errorBody is the shape of Django REST Framework error payloads. Field
// errors arrive as {"field": ["msg", ...]}, general errors as
// {"detail": "msg"}.
type errorBody struct {
	Detail string
	Fields map[string][]string
}

func decodeErrorBody(r io.Reader) errorBody {
	raw, err := io.ReadAll(io.LimitReader(r, 8192))
	if err != nil || len(raw) == 0 {
		return errorBody{}
	}

	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		return errorBody{}
	}

	body := errorBody{Fields: map[string][]string{}}
	for key, val := range generic {
		if key == "detail" {
			_ = json.Unmarshal(val, &body.Detail)
			continue
		}
		var msgs []string
		if err := json.Unmarshal(val, &msgs); err == nil {
			body.Fields[key] = msgs
			continue
		}
		var msg string
		if err := json.Unmarshal(val, &msg); err == nil {
			body.Fields[key] = []string{msg}
		}
	}
	return body
}

// normalizeStatusError maps a non-2xx backend response into the
// application error taxonomy. The response body is consumed.
func normalizeStatusError(resp *http.Response) error {
	body := decodeErrorBody(resp.Body)

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		msg := body.Detail
		if msg == "" {
			msg = "invalid credentials"
		}
		return apperrors.Unauthorized(msg)
	case http.StatusBadRequest:
		if strings.Contains(body.Detail, approvalDetail) {
			return apperrors.ApprovalPending(body.Detail)
		}
		if field, msgs := firstField(body.Fields); field != "" {
			return apperrors.ValidationField(field, strings.Join(msgs, "; "))
		}
		if body.Detail != "" {
			return apperrors.Validation(body.Detail)
		}
		return apperrors.Validation("invalid request")
	case http.StatusNotFound:
		return apperrors.NotFound("resource not found")
	case http.StatusConflict:
		msg := body.Detail
		if msg == "" {
			msg = "conflict"
		}
		return apperrors.Conflict(msg)
	default:
		return apperrors.Internal(fmt.Sprintf("backend returned status %d", resp.StatusCode))
	}
}

func firstField(fields map[string][]string) (string, []string) {
	// Stable preference order so tests and UI messages are predictable.
	for _, key := range []string{"username", "email", "password", "non_field_errors"} {
		if msgs, ok := fields[key]; ok && len(msgs) > 0 {
			return key, msgs
		}
	}
	for key, msgs := range fields {
		if len(msgs) > 0 {
			return key, msgs
		}
	}
	return "", nil
}
