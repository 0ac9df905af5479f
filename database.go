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

// Package screener screens entities against sanctions and watch lists.
//
// A Database opens the on-disk index and hands out the components built on
// top of it:
//
//	db, err := screener.NewDatabase(config.NewConfig(config.WithIndexPath("data/index")))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	matcher, err := db.NewMatcher()
package screener

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/poiesic/screener/api"
	"github.com/poiesic/screener/config"
	"github.com/poiesic/screener/entity"
	"github.com/poiesic/screener/indexer"
	"github.com/poiesic/screener/matching"
	"github.com/poiesic/screener/metrics"
	"github.com/poiesic/screener/model"
	"github.com/poiesic/screener/query"
	"github.com/poiesic/screener/storage"
	"github.com/poiesic/screener/storage/badger"
)

type Database struct {
	config     *config.Config
	repo       storage.Repository
	model      *model.Model
	catalog    *config.Catalog
	normalizer *entity.Normalizer
	builder    *query.Builder
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	logger   *slog.Logger
	registry *prometheus.Registry
	inMemory bool
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRegistry registers metrics on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) DatabaseOption {
	return func(o *databaseOptions) {
		o.registry = reg
	}
}

// InMemory keeps the index in memory. IndexPath is ignored.
func InMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// NewDatabase validates cfg, loads the model and dataset catalog, and opens
// the index. A nil cfg uses config.DefaultConfig().
func NewDatabase(cfg *config.Config, opts ...DatabaseOption) (*Database, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	options := &databaseOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if options.registry == nil {
		options.registry = prometheus.NewRegistry()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m, err := loadModel(cfg.ModelPath)
	if err != nil {
		return nil, err
	}
	catalog, err := config.LoadCatalog(cfg.ManifestPath)
	if err != nil {
		return nil, err
	}
	normalizer, err := entity.NewNormalizer(m, entity.WithLogger(options.logger))
	if err != nil {
		return nil, err
	}
	builder, err := query.NewBuilder(m,
		query.WithMaxPage(cfg.MaxPage),
		query.WithDefaultLimits(cfg.MatchPage, cfg.SearchPage),
		query.WithLogger(options.logger))
	if err != nil {
		return nil, err
	}

	// Open backend
	var repo storage.Repository
	if options.inMemory {
		repo, err = badger.NewMemoryRepository(badger.WithLogger(options.logger))
	} else {
		repo, err = badger.NewRepository(cfg.IndexPath, badger.WithLogger(options.logger))
	}
	if err != nil {
		return nil, err
	}

	db := &Database{
		config:     cfg,
		repo:       repo,
		model:      m,
		catalog:    catalog,
		normalizer: normalizer,
		builder:    builder,
		registry:   options.registry,
		metrics:    metrics.New(options.registry),
		logger:     options.logger,
	}

	status, err := repo.LoadStatus(context.Background())
	if err != nil {
		repo.Close()
		return nil, err
	}
	if status != nil {
		db.metrics.SetIndexSize(status.EntityCount)
		db.logger.Info("index opened",
			"version", status.Version,
			"entities", status.EntityCount,
			"updated_at", status.UpdatedAt)
	}
	return db, nil
}

func loadModel(path string) (*model.Model, error) {
	if path == "" {
		return model.Default()
	}
	return model.LoadFile(path)
}

func (db *Database) Close() error {
	if err := db.repo.Close(); err != nil {
		db.logger.Error("error closing index", "err", err)
		return err
	}
	return nil
}

func (db *Database) Config() *config.Config {
	return db.config
}

func (db *Database) Repository() storage.Repository {
	return db.repo
}

func (db *Database) Model() *model.Model {
	return db.model
}

func (db *Database) Catalog() *config.Catalog {
	return db.catalog
}

func (db *Database) Metrics() *metrics.Metrics {
	return db.metrics
}

func (db *Database) Registry() *prometheus.Registry {
	return db.registry
}

// NewMatcher creates a matcher over the index. Options are applied after
// the configured timeout, metrics and logger.
func (db *Database) NewMatcher(opts ...matching.Option) (*matching.Matcher, error) {
	defaults := []matching.Option{
		matching.WithTimeout(db.config.RequestTimeout),
		matching.WithMetrics(db.metrics),
		matching.WithLogger(db.logger),
		matching.WithEntityLookup(db.repo),
	}
	return matching.NewMatcher(db.normalizer, db.builder, db.repo, append(defaults, opts...)...)
}

// NewIndexer creates an indexer writing to the index. The caller must
// Release it.
func (db *Database) NewIndexer(opts ...indexer.Option) (*indexer.Indexer, error) {
	defaults := []indexer.Option{
		indexer.WithPoolSize(db.config.IndexWorkers),
		indexer.WithMetrics(db.metrics),
		indexer.WithLogger(db.logger),
	}
	return indexer.NewIndexer(db.repo, db.normalizer, db.builder, append(defaults, opts...)...)
}

// NewServer creates the HTTP API over a new matcher.
func (db *Database) NewServer(opts ...api.Option) (*api.Server, error) {
	matcher, err := db.NewMatcher()
	if err != nil {
		return nil, err
	}
	defaults := []api.Option{
		api.WithLogger(db.logger),
		api.WithMetrics(db.metrics, db.registry),
	}
	return api.NewServer(matcher, db.catalog, db.repo, append(defaults, opts...)...)
}
