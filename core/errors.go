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

package core

import "errors"

var (
	// ErrUnknownSchema indicates a schema name the model does not recognize.
	ErrUnknownSchema = errors.New("unknown schema")

	// ErrEmptyBatch indicates a match batch without any entries.
	ErrEmptyBatch = errors.New("no queries provided")

	// ErrIndexUnavailable indicates the entity index cannot be reached.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrQueryRejected indicates the index refused a malformed query.
	ErrQueryRejected = errors.New("query rejected")

	// ErrUnknownDataset indicates a dataset name missing from the catalog.
	ErrUnknownDataset = errors.New("unknown dataset")

	// ErrEntityNotFound indicates no indexed entity has the requested ID.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrInvalidEntity indicates an entity record failed validation.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrEmptyEntityID indicates the ID field is empty.
	ErrEmptyEntityID = errors.New("entity id cannot be empty")

	// ErrEmptySchema indicates the Schema field is empty.
	ErrEmptySchema = errors.New("schema cannot be empty")
)
