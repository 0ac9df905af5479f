package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/screener/core"
	"github.com/poiesic/screener/model"
)

func newTestBuilder(t *testing.T, opts ...Option) *Builder {
	t.Helper()
	m, err := model.Default()
	require.NoError(t, err)
	b, err := NewBuilder(m, opts...)
	require.NoError(t, err)
	return b
}

func testDataset() *core.Dataset {
	return &core.Dataset{Name: "sanctions", Scope: []string{"eu_fsf", "us_ofac"}}
}

func janeDoe() *core.Entity {
	e := core.NewEntity("q1", "Person")
	e.Add("name", "Jane Doe")
	e.Add("birthDate", "1975-04-21")
	e.Add("nationality", "US")
	e.Add("passportNumber", "X-1234567")
	e.Add("phone", "+1 202 555 0143")
	e.Add("notes", "met at conference")
	e.Add("address", "221 Baker Street")
	return e
}

func hasClause(clauses []Clause, field Field, value string) (Clause, bool) {
	for _, c := range clauses {
		if c.Field == field && c.Value == value {
			return c, true
		}
	}
	return Clause{}, false
}

func countField(clauses []Clause, field Field) int {
	n := 0
	for _, c := range clauses {
		if c.Field == field {
			n++
		}
	}
	return n
}

func TestNewBuilder(t *testing.T) {
	_, err := NewBuilder(nil)
	assert.ErrorIs(t, err, ErrModelRequired)

	m, err := model.Default()
	require.NoError(t, err)

	_, err = NewBuilder(m, WithMaxPage(0))
	assert.ErrorIs(t, err, ErrInvalidMaxPage)

	b, err := NewBuilder(m, WithMaxPage(50), WithLogger(nil))
	require.NoError(t, err)
	assert.Equal(t, 50, b.MaxPage())
}

func TestBuilder_MatchQuery(t *testing.T) {
	b := newTestBuilder(t)

	q, err := b.MatchQuery(testDataset(), janeDoe(), false, 0)
	require.NoError(t, err)
	require.NoError(t, q.Validate())

	assert.Equal(t, "sanctions", q.Dataset)
	assert.Equal(t, []string{"eu_fsf", "us_ofac"}, q.Scope)
	assert.Equal(t, []string{"Person"}, q.Schemata)
	assert.Equal(t, DefaultMatchLimit, q.Limit)
	assert.Equal(t, 0, q.Offset)
	assert.False(t, q.MatchAll)

	checks := []struct {
		field Field
		value string
		boost float64
	}{
		{FieldNameKey, "doejane", BoostNameKey},
		{FieldName, "jane", BoostNameToken},
		{FieldName, "doe", BoostNameToken},
		{FieldDate, "1975-04-21", BoostDate},
		{FieldCountry, "us", BoostCountry},
		{FieldIdentifier, "x1234567", BoostStrongIdentifier},
		{FieldPhone, "+12025550143", BoostContact},
		{FieldText, "baker", BoostText},
	}
	for _, c := range checks {
		got, ok := hasClause(q.Should, c.field, c.value)
		if assert.True(t, ok, "missing %s=%s", c.field, c.value) {
			assert.Equal(t, c.boost, got.Boost)
		}
	}

	_, ok := hasClause(q.Should, FieldText, "conference")
	assert.False(t, ok, "non-matchable properties add no clauses")
	assert.Zero(t, countField(q.Should, FieldNameNgram), "fuzzy clauses are opt-in")
	assert.Zero(t, countField(q.Should, FieldIdentifierNgram))
}

func TestBuilder_MatchQuery_Fuzzy(t *testing.T) {
	b := newTestBuilder(t)

	q, err := b.MatchQuery(testDataset(), janeDoe(), true, 0)
	require.NoError(t, err)
	require.NoError(t, q.Validate())
	assert.True(t, q.Fuzzy)

	var nameShare, idShare float64
	for _, c := range q.Should {
		switch c.Field {
		case FieldNameNgram:
			nameShare += c.Boost
		case FieldIdentifierNgram:
			idShare += c.Boost
		}
	}
	assert.InDelta(t, BoostNameNgrams, nameShare, 1e-9)
	assert.InDelta(t, BoostIdentifierNgrams, idShare, 1e-9)

	_, ok := hasClause(q.Should, FieldNameNgram, "doe")
	assert.True(t, ok)
}

func TestBuilder_MatchQuery_SchemaScope(t *testing.T) {
	b := newTestBuilder(t)

	e := core.NewEntity("q", "LegalEntity")
	e.Add("name", "Acme")
	q, err := b.MatchQuery(testDataset(), e, false, 0)
	require.NoError(t, err)
	assert.Contains(t, q.Schemata, "Person")
	assert.Contains(t, q.Schemata, "Company")
	assert.NotContains(t, q.Schemata, "Vessel")

	c := core.NewEntity("q", "Company")
	c.Add("name", "Acme")
	q, err = b.MatchQuery(testDataset(), c, false, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Company"}, q.Schemata)
}

func TestBuilder_MatchQuery_Errors(t *testing.T) {
	b := newTestBuilder(t)

	_, err := b.MatchQuery(nil, janeDoe(), false, 0)
	assert.ErrorIs(t, err, ErrDatasetRequired)

	_, err = b.MatchQuery(testDataset(), nil, false, 0)
	assert.ErrorIs(t, err, ErrEntityRequired)

	_, err = b.MatchQuery(testDataset(), core.NewEntity("q", "Spaceship"), false, 0)
	assert.True(t, errors.Is(err, core.ErrUnknownSchema))
}

func TestBuilder_LimitClamp(t *testing.T) {
	tests := []struct {
		name    string
		maxPage int
		limit   int
		want    int
	}{
		{"default", 500, 0, DefaultMatchLimit},
		{"negative", 500, -3, DefaultMatchLimit},
		{"within", 500, 25, 25},
		{"at max", 500, 500, 500},
		{"above max", 500, 10000, 500},
		{"small ceiling", 3, 10, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBuilder(t, WithMaxPage(tt.maxPage))
			q, err := b.MatchQuery(testDataset(), janeDoe(), false, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.Limit)
			assert.LessOrEqual(t, q.Limit, tt.maxPage)
		})
	}
}

func TestBuilder_MatchQuery_Deterministic(t *testing.T) {
	b := newTestBuilder(t)

	first, err := b.MatchQuery(testDataset(), janeDoe(), true, 10)
	require.NoError(t, err)
	second, err := b.MatchQuery(testDataset(), janeDoe(), true, 10)
	require.NoError(t, err)
	assert.Equal(t, first.Should, second.Should)
	assert.Equal(t, first.Schemata, second.Schemata)
}

func TestBuilder_TextQuery(t *testing.T) {
	b := newTestBuilder(t)

	q, err := b.TextQuery(testDataset(), TextRequest{
		Text: "Jane Doe",
		Filters: Filters{
			FilterCountries: {"US", " us ", ""},
			FilterTopics:    {},
			"colour":        {"red"},
		},
		Limit:  1000,
		Offset: -5,
	})
	require.NoError(t, err)
	require.NoError(t, q.Validate())

	assert.False(t, q.MatchAll)
	assert.Equal(t, Filters{FilterCountries: {"us"}}, q.Filters)
	assert.Equal(t, FilterNames, q.Facets)
	assert.Equal(t, DefaultMaxPage, q.Limit)
	assert.Equal(t, 0, q.Offset)
	assert.Contains(t, q.Schemata, "Person")
	assert.Contains(t, q.Schemata, "Vessel")

	_, ok := hasClause(q.Should, FieldNameKey, "doejane")
	assert.True(t, ok)
	_, ok = hasClause(q.Should, FieldText, "jane")
	assert.True(t, ok)
}

func TestBuilder_TextQuery_OffsetAboveMaximum(t *testing.T) {
	b := newTestBuilder(t, WithMaxPage(50))

	q, err := b.TextQuery(testDataset(), TextRequest{Text: "doe", Offset: 1_000_000})
	require.NoError(t, err)
	require.NoError(t, q.Validate())
	assert.Equal(t, 50, q.Offset)
}

func TestBuilder_TextQuery_Empty(t *testing.T) {
	b := newTestBuilder(t)

	q, err := b.TextQuery(testDataset(), TextRequest{Schema: "Company"})
	require.NoError(t, err)
	require.NoError(t, q.Validate())
	assert.True(t, q.MatchAll)
	assert.Empty(t, q.Should)
	assert.Nil(t, q.Filters)
	assert.Equal(t, DefaultSearchLimit, q.Limit)
	assert.Equal(t, []string{"Company"}, q.Schemata)

	_, err = b.TextQuery(testDataset(), TextRequest{Schema: "Spaceship"})
	assert.ErrorIs(t, err, core.ErrUnknownSchema)
}

func TestMatchQuery_Validate(t *testing.T) {
	valid := func() *MatchQuery {
		return &MatchQuery{
			Schemata: []string{"Person"},
			Should:   []Clause{{Field: FieldName, Value: "jane", Boost: 1}},
			Limit:    5,
		}
	}

	tests := []struct {
		name   string
		mutate func(q *MatchQuery)
	}{
		{"no schemata", func(q *MatchQuery) { q.Schemata = nil }},
		{"negative limit", func(q *MatchQuery) { q.Limit = -1 }},
		{"negative offset", func(q *MatchQuery) { q.Offset = -1 }},
		{"unknown field", func(q *MatchQuery) { q.Should[0].Field = "shoe_size" }},
		{"empty value", func(q *MatchQuery) { q.Should[0].Value = " " }},
		{"zero boost", func(q *MatchQuery) { q.Should[0].Boost = 0 }},
		{"unknown filter", func(q *MatchQuery) { q.Filters = Filters{"colour": {"red"}} }},
		{"unknown facet", func(q *MatchQuery) { q.Facets = []string{"colour"} }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := valid()
			tt.mutate(q)
			assert.ErrorIs(t, q.Validate(), core.ErrQueryRejected)
		})
	}

	var nilQuery *MatchQuery
	assert.ErrorIs(t, nilQuery.Validate(), core.ErrQueryRejected)
}

func TestLimitWindow(t *testing.T) {
	limit, offset := LimitWindow(0, -1, 10, 500)
	assert.Equal(t, 10, limit)
	assert.Equal(t, 0, offset)

	limit, offset = LimitWindow(800, 20, 10, 500)
	assert.Equal(t, 500, limit)
	assert.Equal(t, 20, offset)

	limit, offset = LimitWindow(10, 1_000_000, 10, 500)
	assert.Equal(t, 10, limit)
	assert.Equal(t, 500, offset)

	_, offset = LimitWindow(10, 500, 10, 500)
	assert.Equal(t, 500, offset)
}

func TestBuilder_Document(t *testing.T) {
	b := newTestBuilder(t)

	e := janeDoe()
	e.ID = "NK-1"
	e.Add("topics", "sanction")
	e.Add("sourceUrl", "https://example.org/jane")
	e.Datasets = []string{"us_ofac"}

	doc, err := b.Document(e)
	require.NoError(t, err)
	assert.Same(t, e, doc.Entity)

	want := []Term{
		{FieldNameKey, "doejane"},
		{FieldName, "jane"},
		{FieldNameNgram, "doe"},
		{FieldText, "jane"},
		{FieldText, "conference"},
		{FieldText, "baker"},
		{FieldIdentifier, "x1234567"},
		{FieldIdentifierNgram, "x12"},
		{FieldDate, "1975-04-21"},
		{FieldDate, "1975"},
		{FieldCountry, "us"},
		{FieldPhone, "+12025550143"},
	}
	for _, term := range want {
		assert.Contains(t, doc.Terms, term)
	}
	for _, term := range doc.Terms {
		assert.NotContains(t, term.Value, "example.org", "urls are not indexed")
	}

	assert.Equal(t, []string{"us"}, doc.Filters[FilterCountries])
	assert.Equal(t, []string{"sanction"}, doc.Filters[FilterTopics])
	assert.Equal(t, []string{"us_ofac"}, doc.Filters[FilterDatasets])

	// every clause a match query emits must address a term the document holds
	q, err := b.MatchQuery(testDataset(), janeDoe(), true, 0)
	require.NoError(t, err)
	for _, c := range q.Should {
		assert.Contains(t, doc.Terms, Term{Field: c.Field, Value: c.Value})
	}
}
