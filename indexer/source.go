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
	"context"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/go-crypt/x/blake2b"
)

// snapshot is a local copy of a source with its content hash.
type snapshot struct {
	path    string
	version string
	lines   int
	temp    bool
}

// remove deletes downloaded copies. Local sources are left alone.
func (s *snapshot) remove() {
	if s.temp {
		os.Remove(s.path)
	}
}

// isRemote reports whether location is an http(s) URL.
func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// lineCounter counts lines written through it.
type lineCounter struct {
	lines int
	last  byte
	size  int64
}

func (c *lineCounter) Write(p []byte) (int, error) {
	for _, b := range p {
		if b == '\n' {
			c.lines++
		}
	}
	if len(p) > 0 {
		c.last = p[len(p)-1]
		c.size += int64(len(p))
	}
	return len(p), nil
}

func (c *lineCounter) total() int {
	if c.size > 0 && c.last != '\n' {
		return c.lines + 1
	}
	return c.lines
}

func newHash() hash.Hash {
	h, _ := blake2b.New256(nil)
	return h
}

// fetch makes a local, hashed snapshot of location. Remote sources are
// downloaded to a temporary file with retries.
func (ix *Indexer) fetch(ctx context.Context, location string) (*snapshot, error) {
	if isRemote(location) {
		return ix.download(ctx, location)
	}

	f, err := os.Open(location)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	defer f.Close()

	h := newHash()
	counter := &lineCounter{}
	if _, err := io.Copy(io.MultiWriter(h, counter), f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	return &snapshot{
		path:    location,
		version: hex.EncodeToString(h.Sum(nil)),
		lines:   counter.total(),
	}, nil
}

func (ix *Indexer) download(ctx context.Context, url string) (*snapshot, error) {
	f, err := os.CreateTemp("", "screener-source-*.jsonl")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	snap := &snapshot{path: f.Name(), temp: true}
	err = RetryWithBackoff(ctx, func() error {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return Permanent(err)
		}
		if err := f.Truncate(0); err != nil {
			return Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return Permanent(err)
		}
		resp, err := ix.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("fetching %s: %s", url, resp.Status)
		case resp.StatusCode != http.StatusOK:
			return Permanent(fmt.Errorf("fetching %s: %s", url, resp.Status))
		}

		h := newHash()
		counter := &lineCounter{}
		if _, err := io.Copy(io.MultiWriter(f, h, counter), resp.Body); err != nil {
			return err
		}
		snap.version = hex.EncodeToString(h.Sum(nil))
		snap.lines = counter.total()
		return nil
	}, ix.maxAttempts, ix.retryDelay)
	if err != nil {
		snap.remove()
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	ix.logger.Debug("downloaded source", "url", url, "lines", snap.lines, "version", snap.version)
	return snap, nil
}
