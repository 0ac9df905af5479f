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

// Package metrics holds the Prometheus instruments of the screening service.
// All methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for matching, search, indexing and HTTP.
type Metrics struct {
	// Entries per match batch
	BatchSize prometheus.Histogram

	// Index query latency by operation ("match", "search")
	QueryLatency *prometheus.HistogramVec

	// Candidates returned per index query
	Candidates prometheus.Histogram

	// Operation outcomes by operation and outcome ("ok", "client_error", "error")
	Outcomes *prometheus.CounterVec

	// Entities written by the indexer
	IndexedEntities prometheus.Counter

	// Entities currently in the index
	IndexSize prometheus.Gauge

	// HTTP request latency by route and status
	HTTPLatency *prometheus.HistogramVec
}

// New creates a Metrics instance registered with reg.
// A nil reg selects prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "screener_match_batch_size",
			Help:    "Number of entries per match batch",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		}),

		QueryLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "screener_index_query_duration_seconds",
			Help:    "Duration of index queries by operation",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),

		Candidates: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "screener_index_query_candidates",
			Help:    "Candidates returned per index query",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 500},
		}),

		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_operation_outcomes_total",
			Help: "Total operation outcomes by operation and outcome",
		}, []string{"operation", "outcome"}),

		IndexedEntities: factory.NewCounter(prometheus.CounterOpts{
			Name: "screener_indexed_entities_total",
			Help: "Total entities written to the index",
		}),

		IndexSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "screener_index_entities",
			Help: "Entities currently held by the index",
		}),

		HTTPLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "screener_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// ObserveBatchSize records the number of entries in a match batch.
func (m *Metrics) ObserveBatchSize(n int) {
	if m != nil {
		m.BatchSize.Observe(float64(n))
	}
}

// ObserveQuery records one index query.
func (m *Metrics) ObserveQuery(operation string, d time.Duration, candidates int) {
	if m != nil {
		m.QueryLatency.WithLabelValues(operation).Observe(d.Seconds())
		m.Candidates.Observe(float64(candidates))
	}
}

// IncrementOutcome records the outcome of an operation.
func (m *Metrics) IncrementOutcome(operation, outcome string) {
	if m != nil {
		m.Outcomes.WithLabelValues(operation, outcome).Inc()
	}
}

// AddIndexed records entities written by the indexer.
func (m *Metrics) AddIndexed(n int) {
	if m != nil {
		m.IndexedEntities.Add(float64(n))
	}
}

// SetIndexSize records the number of entities in the index.
func (m *Metrics) SetIndexSize(n int) {
	if m != nil {
		m.IndexSize.Set(float64(n))
	}
}

// ObserveHTTP records one HTTP request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m != nil {
		m.HTTPLatency.WithLabelValues(method, route, statusClass(status)).Observe(d.Seconds())
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
