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

import (
	"encoding/binary"
	"slices"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived 64-bit identifier.
type ID uint64

// IDFromContent hashes text into a stable 64-bit ID.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Example is a loosely structured description of an entity submitted by a client.
// It lives only for the duration of a request.
type Example struct {
	Schema     string              `json:"schema"`
	Properties map[string][]string `json:"properties"`
}

// Batch maps client-chosen correlation keys to examples.
type Batch map[string]Example

// Entity is the canonical form of an entity, either built from an Example or
// loaded from the index. Property values are deduplicated and kept in
// insertion order.
type Entity struct {
	ID         string              `json:"id"`
	Schema     string              `json:"schema"`
	Caption    string              `json:"caption,omitempty"`
	Properties map[string][]string `json:"properties"`
	Datasets   []string            `json:"datasets,omitempty"`
	Referents  []string            `json:"referents,omitempty"`
	Target     bool                `json:"target"`
}

// NewEntity creates an empty entity of the given schema.
func NewEntity(id, schema string) *Entity {
	return &Entity{
		ID:         id,
		Schema:     schema,
		Properties: make(map[string][]string),
	}
}

// Get returns the values of a property. The returned slice must not be modified.
func (e *Entity) Get(prop string) []string {
	return e.Properties[prop]
}

// Has reports whether the property has at least one value.
func (e *Entity) Has(prop string) bool {
	return len(e.Properties[prop]) > 0
}

// Add appends values to a property, skipping empty strings and duplicates.
// It returns the number of values actually added.
func (e *Entity) Add(prop string, values ...string) int {
	if e.Properties == nil {
		e.Properties = make(map[string][]string)
	}
	added := 0
	current := e.Properties[prop]
	for _, value := range values {
		if value == "" || slices.Contains(current, value) {
			continue
		}
		current = append(current, value)
		added++
	}
	if len(current) > 0 {
		e.Properties[prop] = current
	}
	return added
}

// PropertyNames returns the names of all populated properties, sorted.
func (e *Entity) PropertyNames() []string {
	names := make([]string, 0, len(e.Properties))
	for name, values := range e.Properties {
		if len(values) > 0 {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Clone returns a deep copy of the entity.
func (e *Entity) Clone() *Entity {
	c := &Entity{
		ID:        e.ID,
		Schema:    e.Schema,
		Caption:   e.Caption,
		Datasets:  slices.Clone(e.Datasets),
		Referents: slices.Clone(e.Referents),
		Target:    e.Target,
	}
	c.Properties = make(map[string][]string, len(e.Properties))
	for name, values := range e.Properties {
		c.Properties[name] = slices.Clone(values)
	}
	return c
}

// CountryHint records a country code inferred from a country-coded identifier.
type CountryHint struct {
	Property string
	Value    string
	Country  string
}

// Candidate is an indexed entity returned for a query, with its relevance score.
type Candidate struct {
	Entity
	Score float64 `json:"score"`
}

// ResultSet is the ranked output of a single index query.
type ResultSet struct {
	Total      int
	Candidates []Candidate
	Facets     map[string]map[string]int
}

// MatchResult is the response for one entry of a match batch.
type MatchResult struct {
	Query   *Entity     `json:"query"`
	Results []Candidate `json:"results"`
	Total   int         `json:"total"`
}

// Dataset names a source list or a collection of source lists.
type Dataset struct {
	Name     string   `json:"name"`
	Title    string   `json:"title,omitempty"`
	Children []string `json:"children,omitempty"`

	// Scope holds the names of the leaf datasets this dataset covers,
	// including itself when it has no children.
	Scope []string `json:"-"`
}

// IndexStatus describes the state of the entity index.
type IndexStatus struct {
	Version     string    `json:"version"`
	EntityCount int       `json:"entity_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}
