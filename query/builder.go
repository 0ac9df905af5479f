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
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/screener/core"
	"github.com/poiesic/screener/model"
)

const (
	// DefaultMaxPage is the largest result window a query may request.
	DefaultMaxPage = 500

	// DefaultMatchLimit is the window used by match queries without a limit.
	DefaultMatchLimit = 5

	// DefaultSearchLimit is the window used by text queries without a limit.
	DefaultSearchLimit = 10

	// BaseSchema is used by text queries that name no schema.
	BaseSchema = "Thing"
)

// Builder turns entities and text into MatchQuery values. It holds no
// mutable state and may be shared between goroutines.
type Builder struct {
	model       *model.Model
	maxPage     int
	matchLimit  int
	searchLimit int
	logger      *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder) error

// WithMaxPage sets the result window ceiling.
func WithMaxPage(n int) Option {
	return func(b *Builder) error {
		if n <= 0 {
			return ErrInvalidMaxPage
		}
		b.maxPage = n
		return nil
	}
}

// WithDefaultLimits sets the windows used when a caller gives no limit.
// Zero values keep the current defaults.
func WithDefaultLimits(match, search int) Option {
	return func(b *Builder) error {
		if match > 0 {
			b.matchLimit = match
		}
		if search > 0 {
			b.searchLimit = search
		}
		return nil
	}
}

// WithLogger sets the logger. A nil logger selects slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
		return nil
	}
}

// NewBuilder creates a query builder over the given model.
func NewBuilder(m *model.Model, opts ...Option) (*Builder, error) {
	if m == nil {
		return nil, ErrModelRequired
	}
	b := &Builder{
		model:       m,
		maxPage:     DefaultMaxPage,
		matchLimit:  DefaultMatchLimit,
		searchLimit: DefaultSearchLimit,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// MaxPage returns the configured result window ceiling.
func (b *Builder) MaxPage() int {
	return b.maxPage
}

// MatchQuery builds a query for candidates resembling entity within dataset.
// Candidates are restricted to the entity's schema and its descendants. When
// fuzzy is set, n-gram clauses are added for names and identifiers.
func (b *Builder) MatchQuery(dataset *core.Dataset, entity *core.Entity, fuzzy bool, limit int) (*MatchQuery, error) {
	if dataset == nil {
		return nil, ErrDatasetRequired
	}
	if entity == nil {
		return nil, ErrEntityRequired
	}
	schema, err := b.model.Schema(entity.Schema)
	if err != nil {
		return nil, err
	}

	clauses := newClauseSet()
	for _, name := range entity.PropertyNames() {
		prop, ok := schema.Property(name)
		if !ok || !prop.Type.Matchable {
			continue
		}
		for _, value := range entity.Get(name) {
			addValueClauses(clauses, prop.Type, value, fuzzy)
		}
	}

	limit, _ = LimitWindow(limit, 0, b.matchLimit, b.maxPage)
	q := &MatchQuery{
		Dataset:  dataset.Name,
		Scope:    slices.Clone(dataset.Scope),
		Schemata: schema.DescendantNames(),
		Should:   clauses.sorted(),
		Fuzzy:    fuzzy,
		Limit:    limit,
		Entity:   entity,
	}
	b.logger.Debug("built match query",
		"dataset", q.Dataset,
		"schema", schema.Name,
		"clauses", len(q.Should),
		"fuzzy", fuzzy)
	return q, nil
}

// TextRequest describes a free-text search.
type TextRequest struct {
	// Schema restricts results to a schema and its descendants.
	// Empty selects BaseSchema.
	Schema  string
	Text    string
	Filters Filters
	Fuzzy   bool
	Limit   int
	Offset  int
}

// TextQuery builds a free-text query. Empty text matches every entity within
// the filters. Facets are requested for every filter.
func (b *Builder) TextQuery(dataset *core.Dataset, req TextRequest) (*MatchQuery, error) {
	if dataset == nil {
		return nil, ErrDatasetRequired
	}
	schemaName := req.Schema
	if schemaName == "" {
		schemaName = BaseSchema
	}
	schema, err := b.model.Schema(schemaName)
	if err != nil {
		return nil, err
	}

	clauses := newClauseSet()
	tokens := Tokenize(req.Text)
	for _, token := range tokens {
		clauses.add(FieldName, token, BoostNameToken)
		clauses.add(FieldText, token, BoostNameToken)
	}
	if key := NameKey(req.Text); key != "" {
		clauses.add(FieldNameKey, key, BoostNameKey)
		if req.Fuzzy {
			addNgramClauses(clauses, FieldNameNgram, key, BoostNameNgrams)
		}
	}

	limit, offset := LimitWindow(req.Limit, req.Offset, b.searchLimit, b.maxPage)
	q := &MatchQuery{
		Dataset:  dataset.Name,
		Scope:    slices.Clone(dataset.Scope),
		Schemata: schema.DescendantNames(),
		Filters:  cleanFilters(req.Filters),
		Should:   clauses.sorted(),
		MatchAll: len(tokens) == 0,
		Text:     req.Text,
		Fuzzy:    req.Fuzzy,
		Limit:    limit,
		Offset:   offset,
		Facets:   slices.Clone(FilterNames),
	}
	b.logger.Debug("built text query",
		"dataset", q.Dataset,
		"schema", schema.Name,
		"tokens", len(tokens),
		"fuzzy", req.Fuzzy)
	return q, nil
}

// addValueClauses emits the clauses for one property value according to
// its type.
func addValueClauses(set *clauseSet, t *model.PropertyType, value string, fuzzy bool) {
	switch {
	case t.Name == "name":
		for _, token := range Tokenize(value) {
			set.add(FieldName, token, BoostNameToken)
		}
		if key := NameKey(value); key != "" {
			set.add(FieldNameKey, key, BoostNameKey)
			if fuzzy {
				addNgramClauses(set, FieldNameNgram, key, BoostNameNgrams)
			}
		}
	case t.Strong:
		if key := IdentifierKey(value); key != "" {
			set.add(FieldIdentifier, key, BoostStrongIdentifier)
			if fuzzy {
				addNgramClauses(set, FieldIdentifierNgram, key, BoostIdentifierNgrams)
			}
		}
	case t.Name == "phone":
		if key := PhoneKey(value); key != "" {
			set.add(FieldPhone, key, BoostContact)
		}
	case t.Name == "email":
		if key := EmailKey(value); key != "" {
			set.add(FieldEmail, key, BoostContact)
		}
	case t.Name == "date":
		if keys := DateKeys(value); len(keys) > 0 {
			set.add(FieldDate, keys[0], BoostDate)
		}
	case t.Name == "country":
		if key := CountryKey(value); key != "" {
			set.add(FieldCountry, key, BoostCountry)
		}
	default:
		for _, token := range Tokenize(value) {
			set.add(FieldText, token, BoostText)
		}
	}
}

func addNgramClauses(set *clauseSet, field Field, key string, total float64) {
	grams := NGrams(key, ngramSize)
	if len(grams) == 0 {
		return
	}
	share := total / float64(len(grams))
	for _, g := range grams {
		set.add(field, g, share)
	}
}

// cleanFilters drops unknown filters and empty values, and normalizes
// country codes.
func cleanFilters(filters Filters) Filters {
	cleaned := make(Filters)
	for _, name := range FilterNames {
		var values []string
		for _, v := range filters[name] {
			v = strings.TrimSpace(v)
			if name == FilterCountries {
				v = CountryKey(v)
			}
			if v != "" && !slices.Contains(values, v) {
				values = append(values, v)
			}
		}
		if len(values) > 0 {
			cleaned[name] = values
		}
	}
	if len(cleaned) == 0 {
		return nil
	}
	return cleaned
}

type clauseKey struct {
	field Field
	value string
}

// clauseSet merges clauses on the same field and value, keeping the
// highest boost.
type clauseSet struct {
	clauses map[clauseKey]float64
}

func newClauseSet() *clauseSet {
	return &clauseSet{clauses: make(map[clauseKey]float64)}
}

func (s *clauseSet) add(field Field, value string, boost float64) {
	k := clauseKey{field: field, value: value}
	if boost > s.clauses[k] {
		s.clauses[k] = boost
	}
}

func (s *clauseSet) sorted() []Clause {
	out := make([]Clause, 0, len(s.clauses))
	for k, boost := range s.clauses {
		out = append(out, Clause{Field: k.field, Value: k.value, Boost: boost})
	}
	slices.SortFunc(out, func(a, b Clause) int {
		if c := cmp.Compare(a.Field, b.Field); c != 0 {
			return c
		}
		return cmp.Compare(a.Value, b.Value)
	})
	return out
}

// Document is an entity prepared for indexing: the terms it is found by and
// the values it is filtered and faceted on.
type Document struct {
	Entity  *core.Entity `json:"entity"`
	Filters Filters      `json:"filters,omitempty"`
	Terms   []Term       `json:"terms"`
}

// Term is one (field, value) pair an indexed entity can be found by.
type Term struct {
	Field Field  `json:"f"`
	Value string `json:"v"`
}

// Document prepares an entity for the index. Every declared property of a
// matchable type yields the terms the matching clause would address; all
// other textual values feed the text field.
func (b *Builder) Document(entity *core.Entity) (*Document, error) {
	if entity == nil {
		return nil, ErrEntityRequired
	}
	schema, err := b.model.Schema(entity.Schema)
	if err != nil {
		return nil, err
	}

	terms := make(map[Term]bool)
	add := func(field Field, value string) {
		if value != "" {
			terms[Term{Field: field, Value: value}] = true
		}
	}
	filters := Filters{}

	for _, name := range entity.PropertyNames() {
		prop, ok := schema.Property(name)
		if !ok {
			continue
		}
		for _, value := range entity.Get(name) {
			switch {
			case prop.Type.Name == "name":
				for _, token := range Tokenize(value) {
					add(FieldName, token)
					add(FieldText, token)
				}
				key := NameKey(value)
				add(FieldNameKey, key)
				for _, g := range NGrams(key, ngramSize) {
					add(FieldNameNgram, g)
				}
			case prop.Type.Strong:
				key := IdentifierKey(value)
				add(FieldIdentifier, key)
				for _, g := range NGrams(key, ngramSize) {
					add(FieldIdentifierNgram, g)
				}
			case prop.Type.Name == "phone":
				add(FieldPhone, PhoneKey(value))
			case prop.Type.Name == "email":
				add(FieldEmail, EmailKey(value))
			case prop.Type.Name == "date":
				for _, key := range DateKeys(value) {
					add(FieldDate, key)
				}
			case prop.Type.Name == "country":
				key := CountryKey(value)
				add(FieldCountry, key)
				filters[FilterCountries] = appendUnique(filters[FilterCountries], key)
			case prop.Type.Name == "topic":
				filters[FilterTopics] = appendUnique(filters[FilterTopics], strings.TrimSpace(value))
			case prop.Type.Name == "entity" || prop.Type.Name == "url":
			default:
				for _, token := range Tokenize(value) {
					add(FieldText, token)
				}
			}
		}
	}
	for _, ds := range entity.Datasets {
		filters[FilterDatasets] = appendUnique(filters[FilterDatasets], ds)
	}

	doc := &Document{Entity: entity, Terms: make([]Term, 0, len(terms))}
	if len(filters) > 0 {
		doc.Filters = filters
	}
	for t := range terms {
		doc.Terms = append(doc.Terms, t)
	}
	slices.SortFunc(doc.Terms, func(a, b Term) int {
		if c := cmp.Compare(a.Field, b.Field); c != 0 {
			return c
		}
		return cmp.Compare(a.Value, b.Value)
	})
	return doc, nil
}

func appendUnique(values []string, v string) []string {
	if v == "" || slices.Contains(values, v) {
		return values
	}
	return append(values, v)
}

// String renders the query for logs.
func (q *MatchQuery) String() string {
	return fmt.Sprintf("MatchQuery{dataset=%s schemata=%d clauses=%d limit=%d offset=%d}",
		q.Dataset, len(q.Schemata), len(q.Should), q.Limit, q.Offset)
}
