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
	"fmt"

	"github.com/poiesic/screener/core"
	"github.com/poiesic/screener/query"
)

// MarshalDocument serializes an index document to bytes.
func MarshalDocument(doc *query.Document) ([]byte, error) {
	if doc == nil || doc.Entity == nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, ErrInvalidDocument)
	}
	buf := make([]byte, DocumentMUS.Size(*doc))
	DocumentMUS.Marshal(*doc, buf)
	return buf, nil
}

// UnmarshalDocument deserializes an index document from bytes.
// Empty collections decode as nil, except properties which are always a map.
func UnmarshalDocument(data []byte) (*query.Document, error) {
	doc, n, err := DocumentMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if err := checkConsumed(data, n); err != nil {
		return nil, err
	}

	e := doc.Entity
	if e.Properties == nil {
		e.Properties = make(map[string][]string)
	}
	if len(e.Datasets) == 0 {
		e.Datasets = nil
	}
	if len(e.Referents) == 0 {
		e.Referents = nil
	}
	if len(doc.Filters) == 0 {
		doc.Filters = nil
	}
	if len(doc.Terms) == 0 {
		doc.Terms = nil
	}
	return &doc, nil
}

// MarshalStatus serializes an IndexStatus to bytes.
func MarshalStatus(status *core.IndexStatus) ([]byte, error) {
	if status == nil {
		return nil, fmt.Errorf("%w: status is nil", ErrSerializationFailed)
	}
	buf := make([]byte, IndexStatusMUS.Size(*status))
	IndexStatusMUS.Marshal(*status, buf)
	return buf, nil
}

// UnmarshalStatus deserializes an IndexStatus from bytes.
func UnmarshalStatus(data []byte) (*core.IndexStatus, error) {
	status, n, err := IndexStatusMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if err := checkConsumed(data, n); err != nil {
		return nil, err
	}
	return &status, nil
}

// checkConsumed rejects values followed by unread bytes.
func checkConsumed(data []byte, n int) error {
	if n != len(data) {
		return fmt.Errorf("%w: %d trailing bytes", ErrSerializationFailed, len(data)-n)
	}
	return nil
}
