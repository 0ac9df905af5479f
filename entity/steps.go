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

package entity

import (
	"slices"
	"strings"

	"github.com/poiesic/screener/core"
	"github.com/poiesic/screener/model"
)

// nameParts lists the name-part properties in composition order.
var nameParts = []string{"firstName", "secondName", "middleName", "fatherName", "lastName"}

// maxComposedNames bounds the cartesian product of name parts.
const maxComposedNames = 64

// Draft is an entity under construction, passed through the enrichment steps
// in order. It records what each step did so the caller can report it.
type Draft struct {
	Schema *model.Schema

	// Input holds the raw property bag, consumed by FilterDeclared.
	Input map[string][]string

	Entity *core.Entity

	// Dropped lists input properties the schema does not declare, sorted.
	Dropped []string

	// Composed lists the names synthesized from name parts.
	Composed []string

	// Hints lists the countries inferred from country-coded values.
	Hints []core.CountryHint
}

// Step is one enrichment stage. Steps are pure functions of the draft.
type Step func(d *Draft)

// DefaultSteps is the enrichment pipeline applied to client examples.
var DefaultSteps = []Step{FilterDeclared, ComposeNames, InferCountries}

// FilterDeclared copies every input property the schema declares onto the
// entity. Values are trimmed and deduplicated; blank values are skipped.
// Undeclared properties are recorded in Dropped and never fail the draft.
func FilterDeclared(d *Draft) {
	names := make([]string, 0, len(d.Input))
	for name := range d.Input {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		if _, ok := d.Schema.Property(name); !ok {
			d.Dropped = append(d.Dropped, name)
			continue
		}
		for _, value := range d.Input[name] {
			d.Entity.Add(name, strings.TrimSpace(value))
		}
	}
}

// ComposeNames synthesizes full names from name parts when no name was
// supplied. Every combination of part values is joined in composition
// order; parts without values are skipped.
func ComposeNames(d *Draft) {
	if _, ok := d.Schema.Property("name"); !ok || d.Entity.Has("name") {
		return
	}

	composed := []string{""}
	for _, part := range nameParts {
		if _, ok := d.Schema.Property(part); !ok {
			continue
		}
		values := slices.Clone(d.Entity.Get(part))
		if len(values) == 0 {
			continue
		}
		slices.Sort(values)
		next := make([]string, 0, len(composed)*len(values))
		for _, prefix := range composed {
			for _, value := range values {
				if len(next) == maxComposedNames {
					break
				}
				next = append(next, prefix+" "+value)
			}
		}
		composed = next
	}

	for _, name := range composed {
		name = strings.Join(strings.Fields(name), " ")
		if name != "" && d.Entity.Add("name", name) > 0 {
			d.Composed = append(d.Composed, name)
		}
	}
}

// InferCountries adds the countries encoded in country-coded values, such
// as phone numbers and IBANs, unless the entity already carries them.
// Values synthesized by earlier steps are not scanned.
func InferCountries(d *Draft) {
	if _, ok := d.Schema.Property("country"); !ok {
		return
	}

	known := make(map[string]bool)
	for _, name := range d.Entity.PropertyNames() {
		prop, ok := d.Schema.Property(name)
		if !ok || prop.Type.Name != "country" {
			continue
		}
		for _, value := range d.Entity.Get(name) {
			known[strings.ToLower(value)] = true
		}
	}

	for _, name := range d.Entity.PropertyNames() {
		prop, ok := d.Schema.Property(name)
		if !ok || !prop.Type.HasCountryHint() {
			continue
		}
		for _, value := range d.Entity.Get(name) {
			if name == "name" && slices.Contains(d.Composed, value) {
				continue
			}
			country, ok := prop.Type.CountryHint(value)
			if !ok || known[country] {
				continue
			}
			known[country] = true
			d.Entity.Add("country", country)
			d.Hints = append(d.Hints, core.CountryHint{Property: name, Value: value, Country: country})
		}
	}
}
