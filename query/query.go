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

package query

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/poiesic/screener/core"
)

// Field names an index field a clause can address.
type Field string

const (
	FieldName            Field = "name"
	FieldNameKey         Field = "name_key"
	FieldNameNgram       Field = "name_ngram"
	FieldIdentifier      Field = "identifier"
	FieldIdentifierNgram Field = "identifier_ngram"
	FieldDate            Field = "date"
	FieldCountry         Field = "country"
	FieldPhone           Field = "phone"
	FieldEmail           Field = "email"
	FieldText            Field = "text"
)

var knownFields = map[Field]bool{
	FieldName: true, FieldNameKey: true, FieldNameNgram: true,
	FieldIdentifier: true, FieldIdentifierNgram: true, FieldDate: true,
	FieldCountry: true, FieldPhone: true, FieldEmail: true, FieldText: true,
}

// Clause weights.
const (
	BoostStrongIdentifier = 4.0
	BoostNameKey          = 3.0
	BoostContact          = 2.0
	BoostDate             = 1.5
	BoostNameToken        = 1.0
	BoostCountry          = 0.5
	BoostText             = 0.3

	// N-gram boosts are shared between all grams of one value.
	BoostNameNgrams       = 1.0
	BoostIdentifierNgrams = 1.5
)

// Filter names accepted by queries and counted as facets.
const (
	FilterCountries = "countries"
	FilterTopics    = "topics"
	FilterDatasets  = "datasets"
)

// FilterNames lists every supported filter in facet order.
var FilterNames = []string{FilterCountries, FilterTopics, FilterDatasets}

// Filters maps a filter name to its accepted values. A missing or empty
// list places no restriction.
type Filters map[string][]string

// Clause scores a candidate by Boost when it holds Value in Field.
type Clause struct {
	Field Field   `json:"field"`
	Value string  `json:"value"`
	Boost float64 `json:"boost"`
}

// MatchQuery is a structured query ready to be executed against the index.
// It is immutable once built.
type MatchQuery struct {
	Dataset string `json:"dataset"`

	// Scope lists the leaf datasets the queried dataset covers.
	// Candidates must belong to at least one of them.
	Scope []string `json:"scope,omitempty"`

	// Schemata holds the accepted candidate schemata: the queried schema and
	// all of its descendants.
	Schemata []string `json:"schemata"`

	Filters Filters  `json:"filters,omitempty"`
	Should  []Clause `json:"should,omitempty"`

	// MatchAll accepts every candidate within the filters, scored zero.
	// Otherwise a candidate must satisfy at least one Should clause.
	MatchAll bool `json:"match_all,omitempty"`

	Text   string   `json:"text,omitempty"`
	Fuzzy  bool     `json:"fuzzy"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
	Facets []string `json:"facets,omitempty"`

	// Entity is the canonical entity a match query was built from.
	Entity *core.Entity `json:"-"`
}

// Validate checks the query for structural problems the index cannot
// execute. Failures wrap core.ErrQueryRejected.
func (q *MatchQuery) Validate() error {
	if q == nil {
		return fmt.Errorf("%w: query is nil", core.ErrQueryRejected)
	}
	if len(q.Schemata) == 0 {
		return fmt.Errorf("%w: no schemata", core.ErrQueryRejected)
	}
	if q.Limit < 0 || q.Offset < 0 {
		return fmt.Errorf("%w: negative window %d/%d", core.ErrQueryRejected, q.Limit, q.Offset)
	}
	for _, c := range q.Should {
		if !knownFields[c.Field] {
			return fmt.Errorf("%w: unknown field %q", core.ErrQueryRejected, c.Field)
		}
		if strings.TrimSpace(c.Value) == "" {
			return fmt.Errorf("%w: empty value for %s", core.ErrQueryRejected, c.Field)
		}
		if c.Boost <= 0 || math.IsNaN(c.Boost) || math.IsInf(c.Boost, 0) {
			return fmt.Errorf("%w: invalid boost %v for %s", core.ErrQueryRejected, c.Boost, c.Field)
		}
	}
	for name := range q.Filters {
		if !isFilterName(name) {
			return fmt.Errorf("%w: unknown filter %q", core.ErrQueryRejected, name)
		}
	}
	for _, name := range q.Facets {
		if !isFilterName(name) {
			return fmt.Errorf("%w: unknown facet %q", core.ErrQueryRejected, name)
		}
	}
	return nil
}

func isFilterName(name string) bool {
	return slices.Contains(FilterNames, name)
}

// LimitWindow clamps a result window. A non-positive limit selects
// defaultLimit and limits above maxPage are cut to maxPage. Offsets are kept
// within [0, maxPage]. Nothing is ever rejected.
func LimitWindow(limit, offset, defaultLimit, maxPage int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPage {
		limit = maxPage
	}
	offset = max(0, min(offset, maxPage))
	return limit, offset
}
