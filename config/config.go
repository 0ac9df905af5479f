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

// Package config holds service settings and the dataset catalog.
package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Config holds configuration for the screening service.
type Config struct {
	// IndexPath is the directory of the on-disk entity index.
	IndexPath string

	// ModelPath optionally points to a YAML model definition.
	// Empty uses the embedded model.
	ModelPath string

	// ManifestPath optionally points to a YAML dataset manifest.
	// Empty exposes a single "default" dataset covering everything.
	ManifestPath string

	// Addr is the HTTP listen address.
	// Default: ":8000"
	Addr string

	// MaxPage caps the number of results any query may request.
	// Default: 500
	MaxPage int

	// MatchPage is the number of candidates per match query when none is given.
	// Default: 5
	MatchPage int

	// SearchPage is the number of search results when no limit is given.
	// Default: 10
	SearchPage int

	// RequestTimeout bounds a whole match batch or search.
	// Default: 30s
	RequestTimeout time.Duration

	// IndexWorkers is the size of the indexing worker pool.
	// Default: number of CPUs
	IndexWorkers int

	// DataURL is the entity source used by reindex, a file path or http(s) URL.
	DataURL string
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithIndexPath sets the index directory.
func WithIndexPath(path string) ConfigOption {
	return func(c *Config) {
		c.IndexPath = path
	}
}

// WithModelPath sets the model definition file.
func WithModelPath(path string) ConfigOption {
	return func(c *Config) {
		c.ModelPath = path
	}
}

// WithManifestPath sets the dataset manifest file.
func WithManifestPath(path string) ConfigOption {
	return func(c *Config) {
		c.ManifestPath = path
	}
}

// WithAddr sets the HTTP listen address.
func WithAddr(addr string) ConfigOption {
	return func(c *Config) {
		c.Addr = addr
	}
}

// WithPages sets the page ceiling and the default match and search page sizes.
func WithPages(maxPage, matchPage, searchPage int) ConfigOption {
	return func(c *Config) {
		c.MaxPage = maxPage
		c.MatchPage = matchPage
		c.SearchPage = searchPage
	}
}

// WithRequestTimeout sets the per-request timeout.
func WithRequestTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.RequestTimeout = d
	}
}

// WithIndexWorkers sets the indexing pool size.
func WithIndexWorkers(n int) ConfigOption {
	return func(c *Config) {
		c.IndexWorkers = n
	}
}

// WithDataURL sets the entity source.
func WithDataURL(url string) ConfigOption {
	return func(c *Config) {
		c.DataURL = url
	}
}

// DefaultConfig returns a Config with defaults for a local deployment.
func DefaultConfig() *Config {
	return &Config{
		IndexPath:      "data/index",
		Addr:           ":8000",
		MaxPage:        500,
		MatchPage:      5,
		SearchPage:     10,
		RequestTimeout: 30 * time.Second,
		IndexWorkers:   runtime.NumCPU(),
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithIndexPath("/var/lib/screener"),
//	    WithPages(100, 5, 20),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize trims string settings and cleans file paths. A bare port such
// as "8000" becomes ":8000".
func (c *Config) Normalize() {
	c.IndexPath = cleanPath(c.IndexPath)
	c.ModelPath = cleanPath(c.ModelPath)
	c.ManifestPath = cleanPath(c.ManifestPath)
	c.DataURL = strings.TrimSpace(c.DataURL)

	c.Addr = strings.TrimSpace(c.Addr)
	if c.Addr != "" && !strings.Contains(c.Addr, ":") {
		c.Addr = ":" + c.Addr
	}
}

func cleanPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration first.
func (c *Config) Validate() error {
	c.Normalize()

	if c.IndexPath == "" {
		return fmt.Errorf("%w: IndexPath is required", ErrInvalidConfig)
	}
	if c.Addr == "" {
		return fmt.Errorf("%w: Addr is required", ErrInvalidConfig)
	}
	if c.MaxPage < 1 {
		return fmt.Errorf("%w: MaxPage must be positive", ErrInvalidConfig)
	}
	if c.MatchPage < 1 || c.MatchPage > c.MaxPage {
		return fmt.Errorf("%w: MatchPage must be between 1 and MaxPage", ErrInvalidConfig)
	}
	if c.SearchPage < 1 || c.SearchPage > c.MaxPage {
		return fmt.Errorf("%w: SearchPage must be between 1 and MaxPage", ErrInvalidConfig)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("%w: RequestTimeout must not be negative", ErrInvalidConfig)
	}
	if c.IndexWorkers < 1 {
		return fmt.Errorf("%w: IndexWorkers must be positive", ErrInvalidConfig)
	}
	return nil
}
