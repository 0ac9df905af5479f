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

package matching

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/poiesic/screener/core"
	"github.com/poiesic/screener/query"
	"github.com/poiesic/screener/storage"
)

// FacetValue is one value of a facet with the number of matching entities.
type FacetValue struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// SearchResponse is the result of a free-text search.
type SearchResponse struct {
	Results []core.Candidate        `json:"results"`
	Total   int                     `json:"total"`
	Limit   int                     `json:"limit"`
	Offset  int                     `json:"offset"`
	Facets  map[string][]FacetValue `json:"facets"`
}

// Search runs a free-text search against dataset.
func (m *Matcher) Search(ctx context.Context, dataset *core.Dataset, req query.TextRequest) (*SearchResponse, error) {
	q, err := m.builder.TextQuery(dataset, req)
	if err != nil {
		m.metrics.IncrementOutcome("search", outcome(err))
		return nil, err
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	start := time.Now()
	rs, err := m.index.Execute(ctx, q)
	m.metrics.IncrementOutcome("search", outcome(err))
	if err != nil {
		m.logQueryError("search", req.Schema, err)
		return nil, err
	}
	m.metrics.ObserveQuery("search", time.Since(start), len(rs.Candidates))

	resp := &SearchResponse{
		Results: rs.Candidates,
		Total:   rs.Total,
		Limit:   q.Limit,
		Offset:  q.Offset,
		Facets:  make(map[string][]FacetValue, len(rs.Facets)),
	}
	if resp.Results == nil {
		resp.Results = []core.Candidate{}
	}
	for name, counts := range rs.Facets {
		resp.Facets[name] = sortFacet(counts)
	}

	m.logger.Info("search",
		"dataset", q.Dataset,
		"query", req.Text,
		"total", resp.Total)
	return resp, nil
}

// sortFacet orders facet values by count descending, then by name.
func sortFacet(counts map[string]int) []FacetValue {
	values := make([]FacetValue, 0, len(counts))
	for name, count := range counts {
		values = append(values, FacetValue{Name: name, Count: count})
	}
	slices.SortFunc(values, func(a, b FacetValue) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return values
}

// FetchResult is the outcome of Fetch. When the requested ID was merged
// into another entity, Canonical holds the ID to redirect to.
type FetchResult struct {
	Entity    *core.Entity
	Canonical string
}

// Redirect reports whether the requested ID is a referent of another entity.
func (r *FetchResult) Redirect() bool {
	return r.Canonical != ""
}

// Fetch retrieves an entity by ID. Referent IDs resolve to the entity they
// were merged into. Returns core.ErrEntityNotFound when neither exists.
func (m *Matcher) Fetch(ctx context.Context, id string) (*FetchResult, error) {
	if m.entities == nil {
		return nil, ErrEntityLookupRequired
	}

	e, err := m.entities.GetEntity(ctx, id)
	if err == nil {
		return &FetchResult{Entity: e}, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	canonical, err := m.entities.ResolveReferent(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", core.ErrEntityNotFound, id)
		}
		return nil, err
	}
	e, err = m.entities.GetEntity(ctx, canonical)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", core.ErrEntityNotFound, id)
		}
		return nil, err
	}
	m.logger.Debug("resolved referent", "id", id, "canonical", canonical)
	return &FetchResult{Entity: e, Canonical: canonical}, nil
}
