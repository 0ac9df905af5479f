// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package api exposes matching, search and entity lookup over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/poiesic/screener/core"
	"github.com/poiesic/screener/matching"
	"github.com/poiesic/screener/metrics"
	"github.com/poiesic/screener/query"
)

// maxBodySize bounds match request bodies.
const maxBodySize = 10 << 20

// cacheControl is sent with cacheable read responses.
const cacheControl = "public, max-age=84600"

// Catalog resolves dataset names.
type Catalog interface {
	Dataset(name string) (*core.Dataset, error)
}

// Health reports index availability and contents.
type Health interface {
	Ping(ctx context.Context) error
	LoadStatus(ctx context.Context) (*core.IndexStatus, error)
}

// Server serves the HTTP API.
type Server struct {
	matcher  *matching.Matcher
	catalog  Catalog
	health   Health
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMetrics records request metrics and serves g at /metrics.
func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) error {
		s.metrics = m
		s.gatherer = g
		return nil
	}
}

// NewServer creates a new API server.
func NewServer(matcher *matching.Matcher, catalog Catalog, health Health, opts ...Option) (*Server, error) {
	if matcher == nil {
		return nil, ErrMatcherRequired
	}
	if catalog == nil {
		return nil, ErrCatalogRequired
	}
	if health == nil {
		return nil, ErrHealthRequired
	}

	s := &Server{
		matcher: matcher,
		catalog: catalog,
		health:  health,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(Trace)
	r.Use(AccessLog(s.logger, s.metrics))

	r.Post("/match/{dataset}", s.handleMatch)
	r.Get("/search/{dataset}", s.handleSearch)
	r.Get("/entities/{id}", s.handleEntity)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// MatchRequest is the body of a match request.
type MatchRequest struct {
	Queries map[string]core.Example `json:"queries"`
}

// MatchResponse holds one result per query key.
type MatchResponse struct {
	Responses map[string]*core.MatchResult `json:"responses"`
}

// handleMatch handles POST /match/{dataset}.
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dataset, err := s.catalog.Dataset(chi.URLParam(r, "dataset"))
	if err != nil {
		writeError(w, err)
		return
	}

	params := r.URL.Query()
	limit, err := intParam(params, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	fuzzy, err := boolParam(params, "fuzzy")
	if err != nil {
		writeError(w, err)
		return
	}

	var req MatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body: %w", errBadRequest, err))
		return
	}

	results, err := s.matcher.RunBatch(ctx, dataset, core.Batch(req.Queries), fuzzy, limit)
	if err != nil {
		s.logFailure(ctx, "match failed", err, "dataset", dataset.Name)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MatchResponse{Responses: results})
}

// handleSearch handles GET /search/{dataset}.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dataset, err := s.catalog.Dataset(chi.URLParam(r, "dataset"))
	if err != nil {
		writeError(w, err)
		return
	}

	params := r.URL.Query()
	req := query.TextRequest{
		Schema:  params.Get("schema"),
		Text:    params.Get("q"),
		Filters: query.Filters{},
	}
	for _, name := range query.FilterNames {
		if values := params[name]; len(values) > 0 {
			req.Filters[name] = values
		}
	}
	if req.Limit, err = intParam(params, "limit"); err != nil {
		writeError(w, err)
		return
	}
	if req.Offset, err = intParam(params, "offset"); err != nil {
		writeError(w, err)
		return
	}
	if req.Fuzzy, err = boolParam(params, "fuzzy"); err != nil {
		writeError(w, err)
		return
	}

	resp, err := s.matcher.Search(ctx, dataset, req)
	if err != nil {
		if errors.Is(err, core.ErrUnknownSchema) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: "Invalid schema"})
			return
		}
		s.logFailure(ctx, "search failed", err, "dataset", dataset.Name)
		writeError(w, err)
		return
	}
	w.Header().Set("Cache-Control", cacheControl)
	writeJSON(w, http.StatusOK, resp)
}

// handleEntity handles GET /entities/{id}. Merged IDs redirect to the
// canonical entity.
func (s *Server) handleEntity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	res, err := s.matcher.Fetch(ctx, id)
	if err != nil {
		if !errors.Is(err, core.ErrEntityNotFound) {
			s.logFailure(ctx, "fetch failed", err, "entity_id", id)
		}
		writeError(w, err)
		return
	}
	if res.Redirect() {
		http.Redirect(w, r, "/entities/"+url.PathEscape(res.Canonical), http.StatusTemporaryRedirect)
		return
	}
	s.logger.InfoContext(ctx, res.Entity.Caption, "action", "entity", "entity_id", id)
	w.Header().Set("Cache-Control", cacheControl)
	writeJSON(w, http.StatusOK, res.Entity)
}

// handleHealthz reports whether the index can be reached.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.health.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyResponse is the body of /readyz.
type ReadyResponse struct {
	Status      string     `json:"status"`
	Version     string     `json:"version,omitempty"`
	EntityCount int        `json:"entity_count"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// handleReadyz reports ready once the index holds entities.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.health.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{Status: "unavailable"})
		return
	}
	status, err := s.health.LoadStatus(ctx)
	if err != nil {
		s.logFailure(ctx, "loading index status", err)
		writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{Status: "unavailable"})
		return
	}
	if status == nil || status.EntityCount == 0 {
		writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{Status: "empty"})
		return
	}
	writeJSON(w, http.StatusOK, ReadyResponse{
		Status:      "ok",
		Version:     status.Version,
		EntityCount: status.EntityCount,
		UpdatedAt:   &status.UpdatedAt,
	})
}

// logFailure logs server-side failures; client errors are logged at debug.
func (s *Server) logFailure(ctx context.Context, msg string, err error, args ...any) {
	args = append(args, "err", err, "trace_id", TraceID(ctx))
	if statusFor(err) < http.StatusInternalServerError {
		s.logger.DebugContext(ctx, msg, args...)
		return
	}
	s.logger.ErrorContext(ctx, msg, args...)
}

func intParam(params url.Values, name string) (int, error) {
	raw := params.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, raw)
	}
	return n, nil
}

func boolParam(params url.Values, name string) (bool, error) {
	raw := params.Get(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, raw)
	}
	return b, nil
}
