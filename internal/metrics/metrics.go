package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	SwipesProcessed *prometheus.CounterVec
	MutualMatches   prometheus.Counter
	MatchesRemoved  prometheus.Counter
	MessagesSent    prometheus.Counter
	PushesPublished *prometheus.CounterVec
	PushFailures    prometheus.Counter
	Reconciliations prometheus.Counter
}

// New creates a metrics set on its own registry so tests can build
// independent instances without collisions.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SwipesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swipes_processed_total",
				Help: "Total number of swipe decisions processed",
			},
			[]string{"outcome"},
		),
		MutualMatches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mutual_matches_total",
				Help: "Total number of mutual matches formed",
			},
		),
		MatchesRemoved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "matches_removed_total",
				Help: "Total number of matches unmatched or torn down",
			},
		),
		MessagesSent: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chat_messages_sent_total",
				Help: "Total number of chat messages accepted",
			},
		),
		PushesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pushes_published_total",
				Help: "Total number of push notifications handed to the dispatcher",
			},
			[]string{"type"},
		),
		PushFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "push_failures_total",
				Help: "Total number of push dispatch failures (best-effort, logged only)",
			},
		),
		Reconciliations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "reconciliation_repairs_total",
				Help: "Total number of records repaired by maintenance jobs",
			},
		),
	}

	m.registry.MustRegister(
		m.SwipesProcessed,
		m.MutualMatches,
		m.MatchesRemoved,
		m.MessagesSent,
		m.PushesPublished,
		m.PushFailures,
		m.Reconciliations,
	)

	return m
}

// Handler exposes the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
