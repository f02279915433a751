package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/alumon/ui-gateway/internal/backend"
	apperrors "github.com/alumon/ui-gateway/internal/errors"
)

// JMESPathEvaluator abstracts JMESPath operations for testability.
type JMESPathEvaluator interface {
	Validate(expr string) error
	Evaluate(expr string, data any) (any, error)
}

// jmespathLibEvaluator implements JMESPathEvaluator using go-jmespath.
type jmespathLibEvaluator struct{}

func (j jmespathLibEvaluator) Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := jmespath.Compile(expr)
	return err
}

func (j jmespathLibEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// overviewSection maps one backend resource onto one summary key via a
// JMESPath projection over the backend's JSON response.
type overviewSection struct {
	Key  string
	Path string
	Expr string
}

// Per-dashboard summary definitions. Expressions run against the raw
// backend payload, so the backend can evolve list shapes without a
// gateway type change.
var dashboardSections = map[string][]overviewSection{
	"user": {
		{Key: "predictions", Path: "/api/prediction/", Expr: "results[:10].{id: id, value: predicted_value, created_at: created_at}"},
		{Key: "latest_prediction", Path: "/api/prediction/", Expr: "results[0].predicted_value"},
	},
	"staff": {
		{Key: "waste", Path: "/api/waste/", Expr: "{total: sum(results[].amount || `[]`), recent: results[:10]}"},
		{Key: "recommendations", Path: "/api/recommendation/", Expr: "results[:10].{id: id, title: title, created_at: created_at}"},
	},
	"admin": {
		{Key: "accounts", Path: "/api/admin-panel/users/", Expr: "{total: length(results || `[]`), pending_approval: length(results[?is_active == `false`] || `[]`)}"},
		{Key: "recommendations", Path: "/api/recommendation/", Expr: "results[:10].{id: id, title: title, created_at: created_at}"},
	},
}

// OverviewServiceOptions groups dependencies for OverviewService.
type OverviewServiceOptions struct {
	// Client must carry the bearer-attaching transport so fetches run on
	// the caller's session and participate in the refresh protocol.
	Client    *http.Client
	BaseURL   string
	Evaluator JMESPathEvaluator
	Logger    *slog.Logger
}

// OverviewService aggregates backend resources into per-dashboard
// summaries. Each section is fetched with the caller's session tokens
// and reduced by a JMESPath projection; a section whose fetch fails is
// reported as an error entry rather than failing the whole overview.
type OverviewService struct {
	client  *http.Client
	baseURL string
	jems    JMESPathEvaluator
	logger  *slog.Logger
}

// NewOverviewService constructs a new OverviewService.
func NewOverviewService(opts OverviewServiceOptions) *OverviewService {
	jems := opts.Evaluator
	if jems == nil {
		jems = jmespathLibEvaluator{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OverviewService{
		client:  opts.Client,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		jems:    jems,
		logger:  logger,
	}
}

// Overview builds the summary document for one dashboard.
func (s *OverviewService) Overview(ctx context.Context, sessionID, dashboard string) (map[string]any, error) {
	sections, ok := dashboardSections[dashboard]
	if !ok {
		return nil, apperrors.NotFoundf("unknown dashboard %q", dashboard)
	}

	out := make(map[string]any, len(sections))
	fetched := make(map[string]any, len(sections))
	for _, section := range sections {
		data, ok := fetched[section.Path]
		if !ok {
			var err error
			data, err = s.fetch(ctx, sessionID, section.Path)
			if err != nil {
				s.logger.Warn("overview section fetch failed",
					"dashboard", dashboard, "section", section.Key, "error", err)
				out[section.Key] = map[string]any{"error": string(apperrors.GetCode(err))}
				continue
			}
			fetched[section.Path] = data
		}

		value, err := s.jems.Evaluate(section.Expr, data)
		if err != nil {
			return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "project section %q", section.Key)
		}
		out[section.Key] = value
	}
	return out, nil
}

func (s *OverviewService) fetch(ctx context.Context, sessionID, path string) (any, error) {
	req, err := http.NewRequestWithContext(backend.WithSessionID(ctx, sessionID), http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "backend unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, apperrors.Unauthorized("backend rejected session tokens")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Internalf("backend returned status %d", resp.StatusCode)
	}

	var data any
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&data); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "decode backend payload")
	}
	return data, nil
}
