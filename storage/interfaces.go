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

package storage

import (
	"context"

	"github.com/poiesic/screener/core"
	"github.com/poiesic/screener/query"
)

// Index executes structured match queries against indexed entities.
type Index interface {
	// Execute runs a validated query and returns candidates ordered by
	// score descending, then by ID.
	// Returns core.ErrQueryRejected for malformed queries and
	// core.ErrIndexUnavailable when the index cannot be read.
	Execute(ctx context.Context, q *query.MatchQuery) (*core.ResultSet, error)

	// Ping reports whether the index can serve queries.
	// Returns core.ErrIndexUnavailable otherwise.
	Ping(ctx context.Context) error
}

// EntityStore provides operations for managing indexed entities.
type EntityStore interface {
	// PutDocuments stores documents and their postings. A document whose
	// entity ID already exists replaces the stored one, postings included.
	// Referents of each entity are recorded for redirect lookups.
	PutDocuments(ctx context.Context, docs ...*query.Document) error

	// GetEntity retrieves an entity by its canonical ID.
	// Returns ErrNotFound if the entity doesn't exist.
	GetEntity(ctx context.Context, id string) (*core.Entity, error)

	// ResolveReferent returns the canonical ID an entity was merged into.
	// Returns ErrNotFound if id is not a known referent.
	ResolveReferent(ctx context.Context, id string) (string, error)

	// CountEntities returns the number of stored entities.
	CountEntities(ctx context.Context) (int, error)

	// Clear removes all entities, postings and status.
	Clear(ctx context.Context) error
}

// StatusStore persists the state of the index.
type StatusStore interface {
	// SaveStatus stores the index status, stamping UpdatedAt.
	SaveStatus(ctx context.Context, status *core.IndexStatus) error

	// LoadStatus returns the stored status, or nil if the index was never built.
	LoadStatus(ctx context.Context) (*core.IndexStatus, error)
}

// Repository combines every storage operation.
type Repository interface {
	Index
	EntityStore
	StatusStore

	// Close closes the storage backend and releases resources.
	Close() error
}
