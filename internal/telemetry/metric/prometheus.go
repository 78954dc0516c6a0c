// Package metric provides Prometheus metrics for TokenGate.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// namespace prefixes every metric this package owns.
const namespace = "tokengate"

// Validation result label values.
const (
	ResultOK       = "ok"
	ResultRenewed  = "renewed"
	ResultNotFound = "not_found"
	ResultExpired  = "expired"
	ResultError    = "error"
)

// Renewal outcome label values.
const (
	OutcomeWon  = "won"
	OutcomeLost = "lost"
)

// Revocation scope label values.
const (
	ScopeToken = "token"
	ScopeUser  = "user"
)

// Sweep run status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Registry holds all lifecycle metrics, backed by a dedicated
// prometheus.Registry so independent instances never collide in tests.
type Registry struct {
	reg *prometheus.Registry

	// Lifecycle counters
	TokensIssued  prometheus.Counter
	Validations   *prometheus.CounterVec
	Renewals      *prometheus.CounterVec
	RevokedTokens *prometheus.CounterVec

	// Sweep metrics
	SweepRuns     *prometheus.CounterVec
	SweptTokens   prometheus.Counter
	SweepDuration prometheus.Histogram

	// Storage metrics
	StoreErrors *prometheus.CounterVec
}

// NewRegistry creates a registry with all lifecycle metrics registered,
// plus the standard Go runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,

		TokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Total number of tokens issued.",
		}),
		Validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Total number of token validations by result.",
		}, []string{"result"}),
		Renewals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renewals_total",
			Help:      "Total number of renewal attempts by outcome of the conditional update.",
		}, []string{"outcome"}),
		RevokedTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revoked_tokens_total",
			Help:      "Total number of tokens removed by revocation, by scope.",
		}, []string{"scope"}),

		SweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Total number of sweep runs by status.",
		}, []string{"status"}),
		SweptTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swept_tokens_total",
			Help:      "Total number of expired tokens removed by sweeps.",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of sweep runs.",
			Buckets:   prometheus.DefBuckets,
		}),

		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Total number of storage failures by operation.",
		}, []string{"op"}),
	}

	reg.MustRegister(
		r.TokensIssued,
		r.Validations,
		r.Renewals,
		r.RevokedTokens,
		r.SweepRuns,
		r.SweptTokens,
		r.SweepDuration,
		r.StoreErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// Prometheus exposes the underlying registry so stores can register
// their own collectors (the embedded backend bridges its internals).
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.reg
}

// MustRegister registers additional collectors.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.reg.MustRegister(cs...)
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
