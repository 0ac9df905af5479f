package badger

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/screener/core"
	"github.com/poiesic/screener/query"
)

type hit struct {
	doc   *query.Document
	score float64
}

// Execute runs a match query. Each Should clause adds its boost to every
// entity holding the addressed term; candidates are then filtered by schema,
// dataset scope and filters. Facets count filter values over all accepted
// candidates, before the result window is applied.
func (r *Repository) Execute(ctx context.Context, q *query.MatchQuery) (*core.ResultSet, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	schemata := make(map[string]bool, len(q.Schemata))
	for _, s := range q.Schemata {
		schemata[s] = true
	}

	var hits []hit
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		scores, err := collectScores(ctx, tx, q)
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(scores))
		for id := range scores {
			ids = append(ids, id)
		}
		slices.Sort(ids)

		for i, id := range ids {
			if i%256 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			doc, err := readDocument(tx, makeDocumentKey(id))
			if err != nil {
				return err
			}
			// postings can outlive a document only if a write was interrupted
			if doc == nil || !accepts(q, schemata, doc) {
				continue
			}
			hits = append(hits, hit{doc: doc, score: scores[id]})
		}
		return nil
	}, false)
	if err != nil {
		return nil, unavailable(err)
	}

	result := &core.ResultSet{
		Total:  len(hits),
		Facets: countFacets(q.Facets, hits),
	}

	slices.SortFunc(hits, func(a, b hit) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.doc.Entity.ID, b.doc.Entity.ID)
	})

	from := min(q.Offset, len(hits))
	to := min(from+q.Limit, len(hits))
	result.Candidates = make([]core.Candidate, 0, to-from)
	for _, h := range hits[from:to] {
		result.Candidates = append(result.Candidates, core.Candidate{Entity: *h.doc.Entity, Score: h.score})
	}

	r.logger.Debug("executed query",
		"dataset", q.Dataset,
		"clauses", len(q.Should),
		"total", result.Total,
		"returned", len(result.Candidates),
		"duration", time.Since(start))
	return result, nil
}

// collectScores sums clause boosts per entity ID.
func collectScores(ctx context.Context, tx *badger.Txn, q *query.MatchQuery) (map[string]float64, error) {
	scores := make(map[string]float64)
	if q.MatchAll {
		err := scanDocumentIDs(ctx, tx, func(id string) { scores[id] = 0 })
		return scores, err
	}

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	for _, clause := range q.Should {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		prefix := makePartialPostingKey(query.Term{Field: clause.Field, Value: clause.Value})
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			if id, ok := postingIDFromKey(prefix, iter.Item().Key()); ok {
				scores[id] += clause.Boost
			}
		}
		iter.Close()
	}
	return scores, nil
}

// accepts applies the schema, scope and filter restrictions.
func accepts(q *query.MatchQuery, schemata map[string]bool, doc *query.Document) bool {
	if !schemata[doc.Entity.Schema] {
		return false
	}
	if len(q.Scope) > 0 && !intersects(doc.Entity.Datasets, q.Scope) {
		return false
	}
	for name, accepted := range q.Filters {
		if len(accepted) == 0 {
			continue
		}
		if !intersects(doc.Filters[name], accepted) {
			return false
		}
	}
	return true
}

func intersects(values, accepted []string) bool {
	for _, v := range values {
		if slices.Contains(accepted, v) {
			return true
		}
	}
	return false
}

func countFacets(names []string, hits []hit) map[string]map[string]int {
	if len(names) == 0 {
		return nil
	}
	facets := make(map[string]map[string]int, len(names))
	for _, name := range names {
		counts := make(map[string]int)
		for _, h := range hits {
			for _, v := range h.doc.Filters[name] {
				counts[v]++
			}
		}
		facets[name] = counts
	}
	return facets
}
