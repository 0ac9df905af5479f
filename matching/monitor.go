package matching

import (
	"github.com/poiesic/screener/core"
	"github.com/poiesic/screener/query"
)

// BatchMonitor provides hooks to observe a match batch.
// Dispatched and Completed are called from concurrent goroutines, so
// implementations must be safe for concurrent use.
type BatchMonitor interface {
	Start(dataset string, entries int)
	Normalized(key string, entity *core.Entity)
	Dispatched(key string, q *query.MatchQuery)
	Completed(key string, result *core.MatchResult)
	Finish(results map[string]*core.MatchResult, err error)
}

// noopMonitor is a no-op implementation of BatchMonitor
type noopMonitor struct{}

var _ BatchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ int)                             {}
func (n *noopMonitor) Normalized(_ string, _ *core.Entity)               {}
func (n *noopMonitor) Dispatched(_ string, _ *query.MatchQuery)          {}
func (n *noopMonitor) Completed(_ string, _ *core.MatchResult)           {}
func (n *noopMonitor) Finish(_ map[string]*core.MatchResult, _ error)    {}
