// Package metrics holds the prometheus collectors for the synchronization core.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "freightsync"

// Lookup outcomes.
const (
	OutcomeHit    = "hit"
	OutcomeAttach = "attach"
	OutcomeMiss   = "miss"
	OutcomeSkip   = "skip"
)

// Eviction reasons.
const (
	EvictTTL        = "ttl"
	EvictInvalidate = "invalidate"
	EvictExplicit   = "explicit"
)

// Recorder groups every collector the core reports to. The fields are
// exported so tests can read them with prometheus/testutil.
type Recorder struct {
	Lookups       *prometheus.CounterVec
	Fetches       *prometheus.CounterVec
	Mutations     *prometheus.CounterVec
	Invalidations prometheus.Counter
	Refetches     prometheus.Counter
	Evictions     *prometheus.CounterVec
	Gate          *prometheus.CounterVec
}

// New registers the collectors on reg. Passing nil uses a private registry,
// which keeps tests and multiple containers from colliding.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Recorder{
		Lookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_lookups_total",
			Help:      "Query runs by resource and cache outcome.",
		}, []string{"resource", "outcome"}),
		Fetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_fetches_total",
			Help:      "Network fetches dispatched by the query engine.",
		}, []string{"resource", "result"}),
		Mutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Mutations executed by resource and result.",
		}, []string{"resource", "result"}),
		Invalidations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidated_keys_total",
			Help:      "Cache keys marked stale or evicted by tag invalidation.",
		}),
		Refetches: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_refetches_total",
			Help:      "Refetches enqueued for subscribed keys after invalidation.",
		}),
		Evictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Cache entries removed from the store.",
		}, []string{"reason"}),
		Gate: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_gate_transitions_total",
			Help:      "Session resolution gate transitions by target state.",
		}, []string{"state"}),
	}
}

func (r *Recorder) Lookup(resource, outcome string) {
	if r == nil {
		return
	}
	r.Lookups.WithLabelValues(resource, outcome).Inc()
}

func (r *Recorder) Fetch(resource string, err error) {
	if r == nil {
		return
	}
	r.Fetches.WithLabelValues(resource, result(err)).Inc()
}

func (r *Recorder) Mutation(resource string, err error) {
	if r == nil {
		return
	}
	r.Mutations.WithLabelValues(resource, result(err)).Inc()
}

func (r *Recorder) Invalidated(keys int) {
	if r == nil {
		return
	}
	r.Invalidations.Add(float64(keys))
}

func (r *Recorder) Refetch() {
	if r == nil {
		return
	}
	r.Refetches.Inc()
}

func (r *Recorder) Eviction(reason string) {
	if r == nil {
		return
	}
	r.Evictions.WithLabelValues(reason).Inc()
}

func (r *Recorder) GateTransition(state string) {
	if r == nil {
		return
	}
	r.Gate.WithLabelValues(state).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
