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

// Package model is the registry of entity schemata and property types.
//
// A Model is loaded once from a YAML definition and never mutated afterwards,
// so it can be shared by any number of goroutines without locking. The
// definition shipped with the binary is available through Default.
package model

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/poiesic/screener/core"
)

//go:embed schemata.yaml
var defaultDefinition []byte

var defaultModel = sync.OnceValues(func() (*Model, error) {
	return Load(defaultDefinition)
})

// Default returns the model built from the embedded definition.
func Default() (*Model, error) {
	return defaultModel()
}

// PropertyType is the semantic type of a property value.
type PropertyType struct {
	Name      string
	Matchable bool
	Strong    bool
	hint      hintRule
}

// CountryHint derives a country code from a value of this type.
// Types without a hint rule never produce one.
func (t *PropertyType) CountryHint(value string) (string, bool) {
	if t.hint == nil {
		return "", false
	}
	return t.hint(value)
}

// HasCountryHint reports whether values of this type encode a country.
func (t *PropertyType) HasCountryHint() bool {
	return t.hint != nil
}

// Property is a named, typed attribute declared by a schema.
type Property struct {
	Name string
	Type *PropertyType

	// Schema is the schema that declares the property.
	Schema *Schema
}

// Schema is an entity type definition.
type Schema struct {
	Name     string
	Label    string
	Abstract bool

	parents     []*Schema
	ancestors   map[string]struct{}
	properties  map[string]*Property
	descendants []*Schema
}

// Property returns the named property if the schema or one of its ancestors declares it.
func (s *Schema) Property(name string) (*Property, bool) {
	p, ok := s.properties[name]
	return p, ok
}

// Properties returns all declared properties, including inherited ones, sorted by name.
func (s *Schema) Properties() []*Property {
	props := make([]*Property, 0, len(s.properties))
	for _, p := range s.properties {
		props = append(props, p)
	}
	sort.Slice(props, func(i, j int) bool {
		return props[i].Name < props[j].Name
	})
	return props
}

// Parents returns the schemata this schema directly extends.
func (s *Schema) Parents() []*Schema {
	return slices.Clone(s.parents)
}

// IsA reports whether s is other or a subtype of other.
func (s *Schema) IsA(other *Schema) bool {
	if other == nil {
		return false
	}
	_, ok := s.ancestors[other.Name]
	return ok
}

// Descendants returns s and every schema that extends it, sorted by name.
func (s *Schema) Descendants() []*Schema {
	return slices.Clone(s.descendants)
}

// DescendantNames returns the names of Descendants.
func (s *Schema) DescendantNames() []string {
	names := make([]string, len(s.descendants))
	for i, d := range s.descendants {
		names[i] = d.Name
	}
	return names
}

// Model holds all schemata and property types.
type Model struct {
	types    map[string]*PropertyType
	schemata map[string]*Schema
}

// Schema resolves a schema by name.
// Returns core.ErrUnknownSchema if the model has no such schema.
func (m *Model) Schema(name string) (*Schema, error) {
	s, ok := m.schemata[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownSchema, name)
	}
	return s, nil
}

// Schemata returns every schema, sorted by name.
func (m *Model) Schemata() []*Schema {
	result := make([]*Schema, 0, len(m.schemata))
	for _, s := range m.schemata {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Type returns the named property type.
func (m *Model) Type(name string) (*PropertyType, bool) {
	t, ok := m.types[name]
	return t, ok
}

type typeDefinition struct {
	Matchable bool   `yaml:"matchable"`
	Strong    bool   `yaml:"strong"`
	Hint      string `yaml:"hint"`
}

type schemaDefinition struct {
	Label      string            `yaml:"label"`
	Abstract   bool              `yaml:"abstract"`
	Extends    []string          `yaml:"extends"`
	Properties map[string]string `yaml:"properties"`
}

type definition struct {
	Types    map[string]typeDefinition   `yaml:"types"`
	Schemata map[string]schemaDefinition `yaml:"schemata"`
}

// LoadFile reads a model definition from a YAML file.
func LoadFile(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading model: %w", err)
	}
	return Load(data)
}

// Load parses a YAML model definition and resolves inheritance.
func Load(data []byte) (*Model, error) {
	var def definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidModel, err)
	}
	if len(def.Schemata) == 0 {
		return nil, fmt.Errorf("%w: no schemata defined", ErrInvalidModel)
	}

	m := &Model{
		types:    make(map[string]*PropertyType, len(def.Types)),
		schemata: make(map[string]*Schema, len(def.Schemata)),
	}

	for name, td := range def.Types {
		t := &PropertyType{Name: name, Matchable: td.Matchable, Strong: td.Strong}
		if td.Hint != "" {
			rule, ok := hintRules[td.Hint]
			if !ok {
				return nil, fmt.Errorf("%w: %q on type %q", ErrUnknownHint, td.Hint, name)
			}
			t.hint = rule
		}
		m.types[name] = t
	}

	for name, sd := range def.Schemata {
		m.schemata[name] = &Schema{
			Name:       name,
			Label:      sd.Label,
			Abstract:   sd.Abstract,
			properties: make(map[string]*Property),
		}
	}

	for name, sd := range def.Schemata {
		s := m.schemata[name]
		for _, parentName := range sd.Extends {
			parent, ok := m.schemata[parentName]
			if !ok {
				return nil, fmt.Errorf("%w: schema %q extends unknown %q", ErrInvalidModel, name, parentName)
			}
			s.parents = append(s.parents, parent)
		}
		for propName, typeName := range sd.Properties {
			t, ok := m.types[typeName]
			if !ok {
				return nil, fmt.Errorf("%w: %q on %s:%s", ErrUnknownType, typeName, name, propName)
			}
			s.properties[propName] = &Property{Name: propName, Type: t, Schema: s}
		}
	}

	resolved := make(map[string]bool, len(m.schemata))
	for _, s := range m.schemata {
		if err := resolve(s, resolved, make(map[string]bool)); err != nil {
			return nil, err
		}
	}

	for _, s := range m.schemata {
		for _, candidate := range m.schemata {
			if candidate.IsA(s) {
				s.descendants = append(s.descendants, candidate)
			}
		}
		sort.Slice(s.descendants, func(i, j int) bool {
			return s.descendants[i].Name < s.descendants[j].Name
		})
	}

	return m, nil
}

// resolve fills in ancestors and inherited properties, parents first.
func resolve(s *Schema, resolved, visiting map[string]bool) error {
	if resolved[s.Name] {
		return nil
	}
	if visiting[s.Name] {
		return fmt.Errorf("%w: %s", ErrInheritanceCycle, s.Name)
	}
	visiting[s.Name] = true

	s.ancestors = map[string]struct{}{s.Name: {}}
	for _, parent := range s.parents {
		if err := resolve(parent, resolved, visiting); err != nil {
			return err
		}
		for name := range parent.ancestors {
			s.ancestors[name] = struct{}{}
		}
		for propName, prop := range parent.properties {
			if _, own := s.properties[propName]; !own {
				s.properties[propName] = prop
			}
		}
	}

	resolved[s.Name] = true
	return nil
}
