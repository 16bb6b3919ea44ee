// Package metrics holds the Prometheus instruments of the repertoire service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "repertoire"

type Metrics struct {
	registry *prometheus.Registry

	positionsCreated prometheus.Counter
	positionsDeleted prometheus.Counter
	edgesCreated     prometheus.Counter
	edgesDeleted     prometheus.Counter
	edgesMerged      prometheus.Counter
	reviews          *prometheus.CounterVec
	sessions         *prometheus.GaugeVec
	cascadeSize      prometheus.Histogram
}

// New registers every instrument on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		positionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "positions_created_total",
			Help:      "Positions inserted into the graph",
		}),
		positionsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "positions_deleted_total",
			Help:      "Positions removed by cascades",
		}),
		edgesCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edges_created_total",
			Help:      "Moves inserted into the graph",
		}),
		edgesDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edges_deleted_total",
			Help:      "Moves removed once no opening owned them",
		}),
		edgesMerged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edges_merged_total",
			Help:      "Existing moves claimed by an additional opening",
		}),
		reviews: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reviews_total",
			Help:      "Scored training answers by outcome",
		}, []string{"result"}),
		sessions: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Open explorer and training sessions",
		}, []string{"kind"}),
		cascadeSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cascade_edges",
			Help:      "Edges visited by one opening removal cascade",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) PositionCreated() {
	if m != nil {
		m.positionsCreated.Inc()
	}
}

func (m *Metrics) PositionsDeleted(n int) {
	if m != nil {
		m.positionsDeleted.Add(float64(n))
	}
}

func (m *Metrics) EdgeCreated() {
	if m != nil {
		m.edgesCreated.Inc()
	}
}

func (m *Metrics) EdgeMerged() {
	if m != nil {
		m.edgesMerged.Inc()
	}
}

func (m *Metrics) EdgesDeleted(n int) {
	if m != nil {
		m.edgesDeleted.Add(float64(n))
	}
}

func (m *Metrics) CascadeVisited(n int) {
	if m != nil {
		m.cascadeSize.Observe(float64(n))
	}
}

func (m *Metrics) Review(correct bool) {
	if m == nil {
		return
	}
	result := "wrong"
	if correct {
		result = "correct"
	}
	m.reviews.WithLabelValues(result).Inc()
}

// SessionOpened and SessionClosed track the active session gauge per kind
func (m *Metrics) SessionOpened(kind string) {
	if m != nil {
		m.sessions.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) SessionClosed(kind string) {
	if m != nil {
		m.sessions.WithLabelValues(kind).Dec()
	}
}
