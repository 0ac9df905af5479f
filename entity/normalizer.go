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

// Package entity builds canonical entities from client examples and from
// stored records.
package entity

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/screener/core"
	"github.com/poiesic/screener/model"
)

// Normalizer turns raw property bags into canonical entities.
// It is safe for concurrent use.
type Normalizer struct {
	model  *model.Model
	steps  []Step
	logger *slog.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer) error

// WithLogger sets the logger. A nil logger selects slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(n *Normalizer) error {
		if logger == nil {
			logger = slog.Default()
		}
		n.logger = logger
		return nil
	}
}

// WithSteps replaces the enrichment pipeline.
func WithSteps(steps ...Step) Option {
	return func(n *Normalizer) error {
		n.steps = slices.Clone(steps)
		return nil
	}
}

// NewNormalizer creates a normalizer over the given model.
func NewNormalizer(m *model.Model, opts ...Option) (*Normalizer, error) {
	if m == nil {
		return nil, ErrModelRequired
	}
	n := &Normalizer{
		model:  m,
		steps:  DefaultSteps,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(n); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// Normalize builds a canonical entity from a schema name and a property bag.
// Only an unknown schema fails; undeclared properties are dropped with a
// warning. The entity ID is derived from the content, so identical input
// yields identical entities.
func (n *Normalizer) Normalize(schemaName string, properties map[string][]string) (*core.Entity, error) {
	d, err := n.Draft(schemaName, properties)
	if err != nil {
		return nil, err
	}
	return d.Entity, nil
}

// NormalizeExample is Normalize for a core.Example.
func (n *Normalizer) NormalizeExample(ex core.Example) (*core.Entity, error) {
	return n.Normalize(ex.Schema, ex.Properties)
}

// Draft runs the pipeline and returns the full draft, including what each
// step dropped or added.
func (n *Normalizer) Draft(schemaName string, properties map[string][]string) (*Draft, error) {
	schema, err := n.model.Schema(schemaName)
	if err != nil {
		return nil, err
	}

	d := &Draft{
		Schema: schema,
		Input:  properties,
		Entity: core.NewEntity("", schema.Name),
	}
	for _, step := range n.steps {
		step(d)
	}

	for _, name := range d.Dropped {
		n.logger.Warn("invalid example property",
			"schema", schema.Name,
			"prop", name,
			"values", len(properties[name]))
	}
	for _, hint := range d.Hints {
		n.logger.Debug("inferred country",
			"prop", hint.Property,
			"country", hint.Country)
	}

	d.Entity.ID = exampleID(d.Entity)
	d.Entity.Caption = Caption(schema, d.Entity)
	return d, nil
}

// Clean prepares a stored record for indexing: properties the schema does
// not declare are removed and the caption is filled in. No enrichment is
// applied. The input entity is not modified.
func (n *Normalizer) Clean(e *core.Entity) (*core.Entity, error) {
	if e == nil {
		return nil, ErrEntityRequired
	}
	if err := core.ValidateEntity(e); err != nil {
		return nil, err
	}
	schema, err := n.model.Schema(e.Schema)
	if err != nil {
		return nil, err
	}

	cleaned := core.NewEntity(e.ID, schema.Name)
	cleaned.Datasets = slices.Clone(e.Datasets)
	cleaned.Referents = slices.Clone(e.Referents)
	cleaned.Target = e.Target

	d := &Draft{Schema: schema, Input: e.Properties, Entity: cleaned}
	FilterDeclared(d)
	if len(d.Dropped) > 0 {
		n.logger.Debug("dropped undeclared properties",
			"id", e.ID,
			"schema", schema.Name,
			"props", d.Dropped)
	}

	cleaned.Caption = e.Caption
	if cleaned.Caption == "" {
		cleaned.Caption = Caption(schema, cleaned)
	}
	return cleaned, nil
}

// captionProps lists the properties a caption is taken from, in preference order.
var captionProps = []string{"name", "lastName", "firstName", "registrationNumber", "iban", "imoNumber"}

// Caption picks a display label for an entity, falling back to the schema label.
func Caption(schema *model.Schema, e *core.Entity) string {
	for _, prop := range captionProps {
		if values := e.Get(prop); len(values) > 0 {
			return values[0]
		}
	}
	if schema.Label != "" {
		return schema.Label
	}
	return schema.Name
}

// exampleID derives a stable ID from the schema and property values.
func exampleID(e *core.Entity) string {
	var b strings.Builder
	b.WriteString(e.Schema)
	for _, name := range e.PropertyNames() {
		b.WriteString("\x1f")
		b.WriteString(name)
		for _, value := range e.Get(name) {
			b.WriteString("\x1e")
			b.WriteString(value)
		}
	}
	return fmt.Sprintf("example-%016x", uint64(core.IDFromContent(b.String())))
}
