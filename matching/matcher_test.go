package matching

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/screener/core"
	"github.com/poiesic/screener/entity"
	"github.com/poiesic/screener/model"
	"github.com/poiesic/screener/query"
)

// mockIndex is a testify mock of storage.Index.
type mockIndex struct {
	mock.Mock
}

func (m *mockIndex) Execute(ctx context.Context, q *query.MatchQuery) (*core.ResultSet, error) {
	args := m.Called(ctx, q)
	rs, _ := args.Get(0).(*core.ResultSet)
	return rs, args.Error(1)
}

func (m *mockIndex) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// funcIndex runs a function for every query.
type funcIndex func(ctx context.Context, q *query.MatchQuery) (*core.ResultSet, error)

func (f funcIndex) Execute(ctx context.Context, q *query.MatchQuery) (*core.ResultSet, error) {
	return f(ctx, q)
}

func (f funcIndex) Ping(ctx context.Context) error { return nil }

func newParts(t *testing.T) (*entity.Normalizer, *query.Builder) {
	t.Helper()
	m, err := model.Default()
	require.NoError(t, err)
	n, err := entity.NewNormalizer(m)
	require.NoError(t, err)
	b, err := query.NewBuilder(m)
	require.NoError(t, err)
	return n, b
}

func newTestMatcher(t *testing.T, index interface {
	Execute(context.Context, *query.MatchQuery) (*core.ResultSet, error)
	Ping(context.Context) error
}, opts ...Option) *Matcher {
	t.Helper()
	n, b := newParts(t)
	m, err := NewMatcher(n, b, index, opts...)
	require.NoError(t, err)
	return m
}

var testDataset = &core.Dataset{Name: "default", Scope: []string{"us_ofac"}}

func nameOf(q *query.MatchQuery) string {
	if names := q.Entity.Get("name"); len(names) > 0 {
		return names[0]
	}
	return ""
}

func TestNewMatcher(t *testing.T) {
	n, b := newParts(t)
	index := &mockIndex{}

	t.Run("valid configuration", func(t *testing.T) {
		m, err := NewMatcher(n, b, index)
		require.NoError(t, err)
		assert.NotNil(t, m)
		assert.Equal(t, DefaultTimeout, m.timeout)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		m, err := NewMatcher(n, b, index, WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, m.logger)
	})

	t.Run("negative timeout", func(t *testing.T) {
		_, err := NewMatcher(n, b, index, WithTimeout(-time.Second))
		assert.Error(t, err)
	})

	t.Run("nil normalizer", func(t *testing.T) {
		_, err := NewMatcher(nil, b, index)
		assert.Equal(t, ErrNormalizerRequired, err)
	})

	t.Run("nil builder", func(t *testing.T) {
		_, err := NewMatcher(n, nil, index)
		assert.Equal(t, ErrBuilderRequired, err)
	})

	t.Run("nil index", func(t *testing.T) {
		_, err := NewMatcher(n, b, nil)
		assert.Equal(t, ErrIndexRequired, err)
	})
}

func TestRunBatch_Correlation(t *testing.T) {
	index := &mockIndex{}
	index.On("Execute", mock.Anything, mock.MatchedBy(func(q *query.MatchQuery) bool {
		return nameOf(q) == "Jane Doe"
	})).Return(&core.ResultSet{
		Total:      1,
		Candidates: []core.Candidate{{Entity: *core.NewEntity("p1", "Person"), Score: 6.5}},
	}, nil).Once()
	index.On("Execute", mock.Anything, mock.MatchedBy(func(q *query.MatchQuery) bool {
		return nameOf(q) == "ACME Ltd"
	})).Return(&core.ResultSet{}, nil).Once()

	m := newTestMatcher(t, index)
	results, err := m.RunBatch(context.Background(), testDataset, core.Batch{
		"a": {Schema: "Person", Properties: map[string][]string{"firstName": {"Jane"}, "lastName": {"Doe"}}},
		"b": {Schema: "Company", Properties: map[string][]string{"name": {"ACME Ltd"}}},
	}, false, 0)
	require.NoError(t, err)

	require.Len(t, results, 2)
	require.Contains(t, results, "a")
	require.Contains(t, results, "b")

	a := results["a"]
	assert.Equal(t, "Person", a.Query.Schema)
	assert.Equal(t, []string{"Jane Doe"}, a.Query.Get("name"), "query echo shows enrichment")
	require.Len(t, a.Results, 1)
	assert.Equal(t, "p1", a.Results[0].ID)
	assert.Equal(t, 1, a.Total)

	b := results["b"]
	assert.Equal(t, "Company", b.Query.Schema)
	assert.NotNil(t, b.Results, "empty results serialize as a list")
	assert.Empty(t, b.Results)

	index.AssertExpectations(t)
}

func TestRunBatch_QueryShape(t *testing.T) {
	var seen *query.MatchQuery
	index := funcIndex(func(ctx context.Context, q *query.MatchQuery) (*core.ResultSet, error) {
		seen = q
		return &core.ResultSet{}, nil
	})
	n, _ := newParts(t)
	mdl, err := model.Default()
	require.NoError(t, err)
	b, err := query.NewBuilder(mdl, query.WithMaxPage(20))
	require.NoError(t, err)
	m, err := NewMatcher(n, b, index)
	require.NoError(t, err)

	_, err = m.RunBatch(context.Background(), testDataset, core.Batch{
		"q": {Schema: "Person", Properties: map[string][]string{"name": {"Jane Doe"}}},
	}, true, 1000)
	require.NoError(t, err)

	require.NotNil(t, seen)
	assert.Equal(t, 20, seen.Limit, "limit is clamped to the page ceiling")
	assert.True(t, seen.Fuzzy)
	assert.Equal(t, []string{"us_ofac"}, seen.Scope)
	assert.Equal(t, []string{"Person"}, seen.Schemata)
}

func TestRunBatch_EmptyBatch(t *testing.T) {
	index := &mockIndex{}
	m := newTestMatcher(t, index)

	for _, batch := range []core.Batch{nil, {}} {
		results, err := m.RunBatch(context.Background(), testDataset, batch, false, 0)
		assert.ErrorIs(t, err, core.ErrEmptyBatch)
		assert.Nil(t, results)
	}
	index.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestRunBatch_UnknownSchemaFailsBatch(t *testing.T) {
	index := &mockIndex{}
	m := newTestMatcher(t, index)

	results, err := m.RunBatch(context.Background(), testDataset, core.Batch{
		"a": {Schema: "Person", Properties: map[string][]string{"name": {"Jane Doe"}}},
		"b": {Schema: "Spaceship", Properties: map[string][]string{"name": {"Enterprise"}}},
		"c": {Schema: "Company", Properties: map[string][]string{"name": {"ACME"}}},
	}, false, 0)

	assert.ErrorIs(t, err, core.ErrUnknownSchema)
	assert.Contains(t, err.Error(), `"b"`)
	assert.Nil(t, results, "no partial results")
	index.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestRunBatch_IndexFailureCancelsSiblings(t *testing.T) {
	var mu sync.Mutex
	cancelled := 0
	index := funcIndex(func(ctx context.Context, q *query.MatchQuery) (*core.ResultSet, error) {
		if nameOf(q) == "Broken" {
			return nil, core.ErrIndexUnavailable
		}
		<-ctx.Done()
		mu.Lock()
		cancelled++
		mu.Unlock()
		return nil, ctx.Err()
	})
	m := newTestMatcher(t, index)

	results, err := m.RunBatch(context.Background(), testDataset, core.Batch{
		"a": {Schema: "Person", Properties: map[string][]string{"name": {"Jane Doe"}}},
		"b": {Schema: "Person", Properties: map[string][]string{"name": {"Broken"}}},
		"c": {Schema: "Person", Properties: map[string][]string{"name": {"John Roe"}}},
	}, false, 0)

	assert.ErrorIs(t, err, core.ErrIndexUnavailable)
	assert.Nil(t, results)
	mu.Lock()
	assert.Equal(t, 2, cancelled, "in-flight siblings observe cancellation")
	mu.Unlock()
}

func TestRunBatch_RunsConcurrently(t *testing.T) {
	const entries = 5
	var arrived sync.WaitGroup
	arrived.Add(entries)
	index := funcIndex(func(ctx context.Context, q *query.MatchQuery) (*core.ResultSet, error) {
		arrived.Done()
		// every query must be in flight before any can finish
		done := make(chan struct{})
		go func() {
			arrived.Wait()
			close(done)
		}()
		select {
		case <-done:
			return &core.ResultSet{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	m := newTestMatcher(t, index, WithTimeout(5*time.Second))

	batch := core.Batch{}
	for _, key := range []string{"a", "b", "c", "d", "e"} {
		batch[key] = core.Example{Schema: "Person", Properties: map[string][]string{"name": {"Person " + key}}}
	}
	results, err := m.RunBatch(context.Background(), testDataset, batch, false, 0)
	require.NoError(t, err)
	assert.Len(t, results, entries)
}

func TestRunBatch_CallerCancellation(t *testing.T) {
	index := funcIndex(func(ctx context.Context, q *query.MatchQuery) (*core.ResultSet, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	m := newTestMatcher(t, index)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	results, err := m.RunBatch(ctx, testDataset, core.Batch{
		"a": {Schema: "Person", Properties: map[string][]string{"name": {"Jane Doe"}}},
	}, false, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, results)
}

func TestRunBatch_Timeout(t *testing.T) {
	index := funcIndex(func(ctx context.Context, q *query.MatchQuery) (*core.ResultSet, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	m := newTestMatcher(t, index, WithTimeout(20*time.Millisecond))

	_, err := m.RunBatch(context.Background(), testDataset, core.Batch{
		"a": {Schema: "Person", Properties: map[string][]string{"name": {"Jane Doe"}}},
	}, false, 0)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRunBatch_NilDataset(t *testing.T) {
	m := newTestMatcher(t, &mockIndex{})
	_, err := m.RunBatch(context.Background(), nil, core.Batch{"a": {Schema: "Person"}}, false, 0)
	assert.ErrorIs(t, err, query.ErrDatasetRequired)
}

// recordingMonitor records monitor callbacks.
type recordingMonitor struct {
	mu         sync.Mutex
	started    int
	normalized []string
	dispatched []string
	completed  []string
	finished   bool
	finishErr  error
}

func (r *recordingMonitor) Start(_ string, entries int) { r.started = entries }
func (r *recordingMonitor) Normalized(key string, _ *core.Entity) {
	r.normalized = append(r.normalized, key)
}
func (r *recordingMonitor) Dispatched(key string, _ *query.MatchQuery) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatched = append(r.dispatched, key)
}
func (r *recordingMonitor) Completed(key string, _ *core.MatchResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, key)
}
func (r *recordingMonitor) Finish(_ map[string]*core.MatchResult, err error) {
	r.finished = true
	r.finishErr = err
}

func TestRunBatchWithMonitor(t *testing.T) {
	index := funcIndex(func(ctx context.Context, q *query.MatchQuery) (*core.ResultSet, error) {
		return &core.ResultSet{}, nil
	})
	m := newTestMatcher(t, index)
	monitor := &recordingMonitor{}

	_, err := m.RunBatchWithMonitor(context.Background(), testDataset, core.Batch{
		"b": {Schema: "Person", Properties: map[string][]string{"name": {"B"}}},
		"a": {Schema: "Person", Properties: map[string][]string{"name": {"A"}}},
	}, false, 0, monitor)
	require.NoError(t, err)

	assert.Equal(t, 2, monitor.started)
	assert.Equal(t, []string{"a", "b"}, monitor.normalized)
	assert.ElementsMatch(t, []string{"a", "b"}, monitor.dispatched)
	assert.ElementsMatch(t, []string{"a", "b"}, monitor.completed)
	assert.True(t, monitor.finished)
	assert.NoError(t, monitor.finishErr)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", outcome(nil))
	assert.Equal(t, "client_error", outcome(core.ErrUnknownSchema))
	assert.Equal(t, "client_error", outcome(core.ErrEmptyBatch))
	assert.Equal(t, "error", outcome(core.ErrIndexUnavailable))
	assert.Equal(t, "error", outcome(core.ErrQueryRejected))
}
