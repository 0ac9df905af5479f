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

package indexer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/screener/core"
	"github.com/poiesic/screener/entity"
	"github.com/poiesic/screener/metrics"
	"github.com/poiesic/screener/query"
	"github.com/poiesic/screener/storage"
)

// maxLineSize bounds a single entity record.
const maxLineSize = 16 << 20

// Store is the part of the repository the indexer writes to.
type Store interface {
	storage.EntityStore
	storage.StatusStore
}

// Indexer loads entity records from a source into the index.
type Indexer struct {
	store          Store
	normalizer     *entity.Normalizer
	builder        *query.Builder
	pool           *ants.Pool
	batchSize      int
	maxAttempts    int
	retryDelay     time.Duration
	client         *http.Client
	progress       io.Writer
	reportInterval int
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

// Option configures an Indexer.
type Option func(*Indexer) error

// WithPoolSize sets the worker pool size for concurrent batch writes.
// Default is runtime.NumCPU(), with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(ix *Indexer) error {
		if size < 1 {
			size = 1
		}
		if ix.pool != nil {
			ix.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		ix.pool = pool
		return nil
	}
}

// WithBatchSize sets the number of records written per storage transaction.
// Default is 500.
func WithBatchSize(n int) Option {
	return func(ix *Indexer) error {
		if n < 1 {
			return fmt.Errorf("batch size must be positive: %d", n)
		}
		ix.batchSize = n
		return nil
	}
}

// WithRetry sets download retry attempts and the base backoff delay.
// Default is 3 attempts starting at one second.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(ix *Indexer) error {
		if maxAttempts < 1 {
			return ErrInvalidMaxAttempts
		}
		ix.maxAttempts = maxAttempts
		ix.retryDelay = baseDelay
		return nil
	}
}

// WithHTTPClient sets the client used for remote sources.
func WithHTTPClient(client *http.Client) Option {
	return func(ix *Indexer) error {
		if client != nil {
			ix.client = client
		}
		return nil
	}
}

// WithProgress reports progress to w every interval records.
func WithProgress(w io.Writer, interval int) Option {
	return func(ix *Indexer) error {
		ix.progress = w
		ix.reportInterval = interval
		return nil
	}
}

// WithMetrics records indexing metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(ix *Indexer) error {
		ix.metrics = m
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Indexer) error {
		if logger == nil {
			logger = slog.Default()
		}
		ix.logger = logger
		return nil
	}
}

// NewIndexer creates a new indexer.
func NewIndexer(store Store, normalizer *entity.Normalizer, builder *query.Builder, opts ...Option) (*Indexer, error) {
	if store == nil {
		return nil, ErrRepositoryRequired
	}
	if normalizer == nil {
		return nil, ErrNormalizerRequired
	}
	if builder == nil {
		return nil, ErrBuilderRequired
	}

	pool, err := ants.NewPool(max(runtime.NumCPU(), 1))
	if err != nil {
		return nil, err
	}

	ix := &Indexer{
		store:          store,
		normalizer:     normalizer,
		builder:        builder,
		pool:           pool,
		batchSize:      500,
		maxAttempts:    3,
		retryDelay:     time.Second,
		client:         &http.Client{Timeout: 10 * time.Minute},
		reportInterval: 1000,
		logger:         slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if err := opt(ix); err != nil {
			ix.Release()
			return nil, err
		}
	}

	return ix, nil
}

// Report summarizes an indexing run.
type Report struct {
	Version   string
	Indexed   int
	Skipped   int
	Unchanged bool
	Duration  time.Duration
}

// Index loads every record of the source at location. When the stored index
// version equals the source hash the run is a no-op, unless force is set.
// The previous index contents are cleared before loading. Records that
// cannot be parsed or have an unknown schema are skipped with a warning;
// storage failures abort the run.
func (ix *Indexer) Index(ctx context.Context, location string, force bool) (*Report, error) {
	if location == "" {
		return nil, ErrSourceRequired
	}
	start := time.Now()

	snap, err := ix.fetch(ctx, location)
	if err != nil {
		return nil, err
	}
	defer snap.remove()

	status, err := ix.store.LoadStatus(ctx)
	if err != nil {
		return nil, err
	}
	if !force && status != nil && status.Version == snap.version {
		ix.logger.Info("index up to date", "version", snap.version, "entities", status.EntityCount)
		return &Report{Version: snap.version, Unchanged: true, Duration: time.Since(start)}, nil
	}

	if err := ix.store.Clear(ctx); err != nil {
		return nil, fmt.Errorf("clearing index: %w", err)
	}

	f, err := os.Open(snap.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	defer f.Close()

	var tracker *ProgressTracker
	if ix.progress != nil {
		tracker = NewProgressTracker(ix.progress, snap.lines, ix.reportInterval)
		tracker.Start()
	}

	report := &Report{Version: snap.version}
	if err := ix.load(ctx, f, report, tracker); err != nil {
		return nil, err
	}
	if tracker != nil {
		tracker.Finish()
	}

	count, err := ix.store.CountEntities(ctx)
	if err != nil {
		return nil, err
	}
	if err := ix.store.SaveStatus(ctx, &core.IndexStatus{Version: snap.version, EntityCount: count}); err != nil {
		return nil, err
	}
	ix.metrics.SetIndexSize(count)

	report.Duration = time.Since(start)
	ix.logger.Info("index built",
		"source", location,
		"version", snap.version,
		"indexed", report.Indexed,
		"skipped", report.Skipped,
		"entities", count,
		"duration", report.Duration)
	return report, nil
}

// load reads records from r and writes them in batches on the pool.
func (ix *Indexer) load(ctx context.Context, r io.Reader, report *Report, tracker *ProgressTracker) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	submit := func(lines [][]byte) error {
		wg.Add(1)
		err := ix.pool.Submit(func() {
			defer wg.Done()
			indexed, skipped, err := ix.writeBatch(ctx, lines)
			mu.Lock()
			report.Indexed += indexed
			report.Skipped += skipped
			mu.Unlock()
			if err != nil {
				cancel(err)
				return
			}
			ix.metrics.AddIndexed(indexed)
			if tracker != nil {
				tracker.Increment(len(lines))
			}
		})
		if err != nil {
			wg.Done()
		}
		return err
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	batch := make([][]byte, 0, ix.batchSize)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		batch = append(batch, append([]byte(nil), line...))
		if len(batch) == ix.batchSize {
			if err := submit(batch); err != nil {
				cancel(err)
				break
			}
			batch = make([][]byte, 0, ix.batchSize)
		}
	}
	if err := scanner.Err(); err != nil {
		cancel(fmt.Errorf("%w: %w", ErrSourceUnavailable, err))
	}
	if len(batch) > 0 && ctx.Err() == nil {
		if err := submit(batch); err != nil {
			cancel(err)
		}
	}

	wg.Wait()
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	return nil
}

// writeBatch parses, cleans and stores one batch of records.
func (ix *Indexer) writeBatch(ctx context.Context, lines [][]byte) (indexed, skipped int, err error) {
	docs := make([]*query.Document, 0, len(lines))
	for _, line := range lines {
		doc, err := ix.document(line)
		if err != nil {
			ix.logger.Warn("skipping entity record", "err", err)
			skipped++
			continue
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return 0, skipped, nil
	}
	if err := ix.store.PutDocuments(ctx, docs...); err != nil {
		return 0, skipped, fmt.Errorf("writing documents: %w", err)
	}
	return len(docs), skipped, nil
}

func (ix *Indexer) document(line []byte) (*query.Document, error) {
	var record core.Entity
	if err := json.Unmarshal(line, &record); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidEntity, err)
	}
	cleaned, err := ix.normalizer.Clean(&record)
	if err != nil {
		return nil, fmt.Errorf("entity %q: %w", record.ID, err)
	}
	return ix.builder.Document(cleaned)
}

// Clear removes every entity and the index status.
func (ix *Indexer) Clear(ctx context.Context) error {
	if err := ix.store.Clear(ctx); err != nil {
		return err
	}
	ix.metrics.SetIndexSize(0)
	ix.logger.Info("index cleared")
	return nil
}

// Release releases the worker pool.
// The indexer should not be used after calling Release.
func (ix *Indexer) Release() {
	if ix.pool != nil {
		ix.pool.Release()
	}
}
