package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/screener/core"
	"github.com/poiesic/screener/query"
	"github.com/poiesic/screener/storage"
)

func newSearchFixture(t *testing.T) (*query.Builder, storage.Repository) {
	t.Helper()
	b := newBuilder(t)
	repo, err := NewMemoryIndex(makeDocs(t, b,
		entitySpec{
			id: "p1", schema: "Person",
			props: map[string][]string{
				"name":        {"Jane Doe"},
				"birthDate":   {"1975-04-21"},
				"nationality": {"us"},
				"topics":      {"sanction"},
			},
			datasets: []string{"us_ofac"},
		},
		entitySpec{
			id: "p2", schema: "Person",
			props:    map[string][]string{"name": {"Jane Smith"}, "nationality": {"gb"}},
			datasets: []string{"eu_fsf"},
		},
		entitySpec{
			id: "c1", schema: "Company",
			props: map[string][]string{
				"name":               {"Doe Holdings Ltd"},
				"jurisdiction":       {"us"},
				"registrationNumber": {"84BA99810"},
			},
			datasets: []string{"us_ofac"},
		},
		entitySpec{
			id: "v1", schema: "Vessel",
			props:    map[string][]string{"name": {"Jane"}},
			datasets: []string{"eu_fsf"},
		},
	)...)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return b, repo
}

var allDatasets = &core.Dataset{Name: "default", Scope: []string{"eu_fsf", "us_ofac"}}

func candidateIDs(rs *core.ResultSet) []string {
	ids := make([]string, len(rs.Candidates))
	for i, c := range rs.Candidates {
		ids[i] = c.ID
	}
	return ids
}

func example(schema string, props map[string][]string) *core.Entity {
	e := core.NewEntity("q", schema)
	for name, values := range props {
		e.Add(name, values...)
	}
	return e
}

func TestExecute_MatchByName(t *testing.T) {
	b, repo := newSearchFixture(t)

	q, err := b.MatchQuery(allDatasets, example("Person", map[string][]string{
		"name":      {"Jane Doe"},
		"birthDate": {"1975-04-21"},
	}), false, 10)
	require.NoError(t, err)

	rs, err := repo.Execute(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, candidateIDs(rs), "only persons, best match first")
	assert.Equal(t, 2, rs.Total)
	assert.Greater(t, rs.Candidates[0].Score, rs.Candidates[1].Score)
	assert.Equal(t, "Jane Doe", rs.Candidates[0].Get("name")[0])
}

func TestExecute_Scope(t *testing.T) {
	b, repo := newSearchFixture(t)

	eu := &core.Dataset{Name: "eu_fsf", Scope: []string{"eu_fsf"}}
	q, err := b.MatchQuery(eu, example("Person", map[string][]string{"name": {"Jane Doe"}}), false, 10)
	require.NoError(t, err)

	rs, err := repo.Execute(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, candidateIDs(rs))
}

func TestExecute_SchemaDescendants(t *testing.T) {
	b, repo := newSearchFixture(t)

	q, err := b.MatchQuery(allDatasets, example("LegalEntity", map[string][]string{"name": {"Doe"}}), false, 10)
	require.NoError(t, err)

	rs, err := repo.Execute(context.Background(), q)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p1", "c1"}, candidateIDs(rs))
}

func TestExecute_StrongIdentifier(t *testing.T) {
	b, repo := newSearchFixture(t)

	q, err := b.MatchQuery(allDatasets, example("Company", map[string][]string{
		"registrationNumber": {"84-BA-99810"},
	}), false, 10)
	require.NoError(t, err)

	rs, err := repo.Execute(context.Background(), q)
	require.NoError(t, err)
	require.Equal(t, []string{"c1"}, candidateIDs(rs))
	assert.GreaterOrEqual(t, rs.Candidates[0].Score, query.BoostStrongIdentifier)
}

func TestExecute_Fuzzy(t *testing.T) {
	b, repo := newSearchFixture(t)
	ctx := context.Background()
	typo := example("Person", map[string][]string{"name": {"Jane Dae"}})

	exact, err := b.MatchQuery(allDatasets, typo, false, 10)
	require.NoError(t, err)
	exactRS, err := repo.Execute(ctx, exact)
	require.NoError(t, err)

	fuzzy, err := b.MatchQuery(allDatasets, typo, true, 10)
	require.NoError(t, err)
	fuzzyRS, err := repo.Execute(ctx, fuzzy)
	require.NoError(t, err)

	score := func(rs *core.ResultSet, id string) float64 {
		for _, c := range rs.Candidates {
			if c.ID == id {
				return c.Score
			}
		}
		return 0
	}
	assert.Greater(t, score(fuzzyRS, "p1"), score(exactRS, "p1"))
	assert.Equal(t, "p1", fuzzyRS.Candidates[0].ID)
}

func TestExecute_NoMatchableValues(t *testing.T) {
	b, repo := newSearchFixture(t)

	q, err := b.MatchQuery(allDatasets, example("Person", map[string][]string{"notes": {"nothing useful"}}), false, 10)
	require.NoError(t, err)

	rs, err := repo.Execute(context.Background(), q)
	require.NoError(t, err)
	assert.Zero(t, rs.Total)
	assert.Empty(t, rs.Candidates)
}

func TestExecute_FiltersAndFacets(t *testing.T) {
	b, repo := newSearchFixture(t)

	q, err := b.TextQuery(allDatasets, query.TextRequest{
		Filters: query.Filters{query.FilterCountries: {"US"}},
	})
	require.NoError(t, err)

	rs, err := repo.Execute(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "p1"}, candidateIDs(rs), "match-all results are ordered by ID")
	assert.Equal(t, map[string]int{"us": 2}, rs.Facets[query.FilterCountries])
	assert.Equal(t, map[string]int{"us_ofac": 2}, rs.Facets[query.FilterDatasets])
	assert.Equal(t, map[string]int{"sanction": 1}, rs.Facets[query.FilterTopics])
}

func TestExecute_TextSearch(t *testing.T) {
	b, repo := newSearchFixture(t)

	q, err := b.TextQuery(allDatasets, query.TextRequest{Text: "jane"})
	require.NoError(t, err)

	rs, err := repo.Execute(context.Background(), q)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p1", "p2", "v1"}, candidateIDs(rs))
	assert.Equal(t, "v1", rs.Candidates[0].ID, "exact full-name key scores highest")
}

func TestExecute_Window(t *testing.T) {
	_, repo := newSearchFixture(t)
	ctx := context.Background()
	base := query.MatchQuery{
		Schemata: []string{"Person", "Company", "Vessel"},
		MatchAll: true,
	}

	tests := []struct {
		name   string
		limit  int
		offset int
		want   []string
	}{
		{"first page", 2, 0, []string{"c1", "p1"}},
		{"second page", 2, 2, []string{"p2", "v1"}},
		{"last item", 5, 3, []string{"v1"}},
		{"past the end", 5, 10, []string{}},
		{"zero limit", 0, 0, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := base
			q.Limit, q.Offset = tt.limit, tt.offset
			rs, err := repo.Execute(ctx, &q)
			require.NoError(t, err)
			assert.Equal(t, 4, rs.Total)
			assert.Equal(t, tt.want, candidateIDs(rs))
		})
	}
}

func TestExecute_Rejected(t *testing.T) {
	_, repo := newSearchFixture(t)

	_, err := repo.Execute(context.Background(), &query.MatchQuery{Limit: 5})
	assert.ErrorIs(t, err, core.ErrQueryRejected)
}

func TestExecute_Cancelled(t *testing.T) {
	_, repo := newSearchFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Execute(ctx, &query.MatchQuery{Schemata: []string{"Person"}, MatchAll: true, Limit: 5})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, core.ErrIndexUnavailable)
}
