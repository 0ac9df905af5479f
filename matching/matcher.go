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

// Package matching runs match batches and searches against the entity index.
package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/poiesic/screener/core"
	"github.com/poiesic/screener/entity"
	"github.com/poiesic/screener/metrics"
	"github.com/poiesic/screener/query"
	"github.com/poiesic/screener/storage"
)

// DefaultTimeout bounds a whole batch or search when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// EntityLookup resolves stored entities and referent redirects.
type EntityLookup interface {
	GetEntity(ctx context.Context, id string) (*core.Entity, error)
	ResolveReferent(ctx context.Context, id string) (string, error)
}

// Matcher normalizes examples, builds queries and runs them against the index.
type Matcher struct {
	normalizer *entity.Normalizer
	builder    *query.Builder
	index      storage.Index
	entities   EntityLookup
	timeout    time.Duration
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// Option configures a Matcher.
type Option func(*Matcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger
		return nil
	}
}

// WithTimeout bounds each batch or search. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(m *Matcher) error {
		if d < 0 {
			return fmt.Errorf("timeout must not be negative: %s", d)
		}
		m.timeout = d
		return nil
	}
}

// WithMetrics records batch and query metrics.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Matcher) error {
		m.metrics = mt
		return nil
	}
}

// WithEntityLookup enables Fetch.
func WithEntityLookup(lookup EntityLookup) Option {
	return func(m *Matcher) error {
		m.entities = lookup
		return nil
	}
}

// NewMatcher creates a new matcher.
func NewMatcher(normalizer *entity.Normalizer, builder *query.Builder, index storage.Index, opts ...Option) (*Matcher, error) {
	if normalizer == nil {
		return nil, ErrNormalizerRequired
	}
	if builder == nil {
		return nil, ErrBuilderRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}

	m := &Matcher{
		normalizer: normalizer,
		builder:    builder,
		index:      index,
		timeout:    DefaultTimeout,
		logger:     slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// RunBatch matches every example of the batch against dataset.
func (m *Matcher) RunBatch(ctx context.Context, dataset *core.Dataset, batch core.Batch, fuzzy bool, limit int) (map[string]*core.MatchResult, error) {
	return m.RunBatchWithMonitor(ctx, dataset, batch, fuzzy, limit, nil)
}

type batchEntry struct {
	key    string
	entity *core.Entity
	query  *query.MatchQuery
}

// RunBatchWithMonitor matches every example of the batch against dataset,
// reporting progress to monitor.
//
// All examples are normalized and turned into queries before any query is
// sent, so an unknown schema fails the batch without touching the index.
// Index queries then run concurrently. The first failure cancels the others
// and fails the whole batch; no partial results are returned.
func (m *Matcher) RunBatchWithMonitor(ctx context.Context, dataset *core.Dataset, batch core.Batch, fuzzy bool, limit int, monitor BatchMonitor) (results map[string]*core.MatchResult, err error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if err := core.ValidateBatch(batch); err != nil {
		m.metrics.IncrementOutcome("match", "client_error")
		return nil, err
	}
	if dataset == nil {
		return nil, query.ErrDatasetRequired
	}

	monitor.Start(dataset.Name, len(batch))
	defer func() {
		monitor.Finish(results, err)
		m.metrics.IncrementOutcome("match", outcome(err))
	}()
	m.metrics.ObserveBatchSize(len(batch))

	keys := make([]string, 0, len(batch))
	for key := range batch {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	entries := make([]batchEntry, 0, len(keys))
	for _, key := range keys {
		e, err := m.normalizer.NormalizeExample(batch[key])
		if err != nil {
			m.logger.Warn("invalid match query", "key", key, "schema", batch[key].Schema, "err", err)
			return nil, fmt.Errorf("query %q: %w", key, err)
		}
		monitor.Normalized(key, e)
		q, err := m.builder.MatchQuery(dataset, e, fuzzy, limit)
		if err != nil {
			return nil, fmt.Errorf("query %q: %w", key, err)
		}
		entries = append(entries, batchEntry{key: key, entity: e, query: q})
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	g, ctx := errgroup.WithContext(ctx)
	collected := make([]*core.MatchResult, len(entries))
	for i, e := range entries {
		g.Go(func() error {
			monitor.Dispatched(e.key, e.query)
			start := time.Now()
			rs, err := m.index.Execute(ctx, e.query)
			if err != nil {
				m.logQueryError(e.key, e.entity.Schema, err)
				return fmt.Errorf("query %q: %w", e.key, err)
			}
			m.metrics.ObserveQuery("match", time.Since(start), len(rs.Candidates))

			result := &core.MatchResult{Query: e.entity, Results: rs.Candidates, Total: rs.Total}
			if result.Results == nil {
				result.Results = []core.Candidate{}
			}
			m.logger.Info("match",
				"key", e.key,
				"dataset", dataset.Name,
				"schema", e.entity.Schema,
				"candidates", len(result.Results))
			monitor.Completed(e.key, result)
			collected[i] = result
			return nil
		})
	}

	// Wait for all goroutines with early cancellation on first failure
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results = make(map[string]*core.MatchResult, len(entries))
	for i, e := range entries {
		results[e.key] = collected[i]
	}
	return results, nil
}

// logQueryError logs index failures. Rejected queries indicate a bug in
// query construction and are logged as errors.
func (m *Matcher) logQueryError(key, schema string, err error) {
	switch {
	case errors.Is(err, core.ErrQueryRejected):
		m.logger.Error("index rejected query", "key", key, "schema", schema, "err", err)
	case errors.Is(err, context.Canceled):
		m.logger.Debug("match query cancelled", "key", key)
	default:
		m.logger.Warn("match query failed", "key", key, "schema", schema, "err", err)
	}
}

// outcome classifies an error for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, core.ErrUnknownSchema),
		errors.Is(err, core.ErrEmptyBatch),
		errors.Is(err, core.ErrUnknownDataset),
		errors.Is(err, core.ErrEntityNotFound):
		return "client_error"
	default:
		return "error"
	}
}
