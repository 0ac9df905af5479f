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

// Package storage provides the storage abstraction layer for screener.
//
// This package defines the interfaces that decouple the entity index from
// the code that queries and fills it. The BadgerDB implementation lives in
// the badger subpackage.
//
// # Constructor Return Type Pattern
//
// Public constructors return interfaces to keep callers independent of the
// backend:
//
//	repo, err := badger.NewRepository(path)  // returns storage.Repository
//
// Internal helpers inside an implementation package may return concrete types.
//
// # Architecture
//
//   - Index: executes structured match queries
//   - EntityStore: stores documents, postings and referent redirects
//   - StatusStore: persists the index version and entity count
//   - Repository: all of the above plus Close
//
// # Usage
//
//	repo, err := badger.NewRepository("/path/to/index")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer repo.Close()
//
// Use in tests with in-memory storage:
//
//	repo, err := badger.NewMemoryRepository()
//
// # Serialization
//
// Documents and status records are stored in the mus binary format.
//
// # Thread Safety
//
// All implementations must be safe for concurrent use. Every method takes a
// context.Context; long scans stop when it is cancelled.
package storage
