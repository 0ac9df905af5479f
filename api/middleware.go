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

package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/poiesic/screener/metrics"
	"github.com/poiesic/screener/query"
)

// Context keys for request tracing.
type contextKeyTraceID struct{}
type contextKeyUserID struct{}

// TraceID returns the trace ID of the request, if any.
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyTraceID{}).(string)
	return id
}

// UserID returns the caller identity derived from the Authorization header.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyUserID{}).(string)
	return id
}

// Trace assigns every request a trace ID and derives a user ID from the
// Authorization header. Both are echoed as x-trace-id and x-user-id.
func Trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := strings.ReplaceAll(uuid.NewString(), "-", "")
		ctx := context.WithValue(r.Context(), contextKeyTraceID{}, traceID)
		w.Header().Set("x-trace-id", traceID)

		if userID := userFromAuthorization(r.Header.Get("Authorization")); userID != "" {
			ctx = context.WithValue(ctx, contextKeyUserID{}, userID)
			w.Header().Set("x-user-id", userID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// userFromAuthorization slugs the credential part of an Authorization header.
func userFromAuthorization(header string) string {
	header = strings.TrimSpace(header)
	if _, credential, ok := strings.Cut(header, " "); ok {
		header = credential
	}
	return slug(header)
}

// slug lowercases s and joins its letter and digit runs with dashes.
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range query.Fold(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
		default:
			dash = true
		}
	}
	return b.String()
}

// AccessLog logs one line per request and records its latency.
func AccessLog(logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			took := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.ObserveHTTP(r.Method, route, status, took)

			ctx := r.Context()
			logger.InfoContext(ctx, r.URL.Path,
				"action", "request",
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.RawQuery,
				"agent", r.UserAgent(),
				"referer", r.Referer(),
				"code", status,
				"took", took,
				"trace_id", TraceID(ctx),
				"user_id", UserID(ctx))
		})
	}
}
