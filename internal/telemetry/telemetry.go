package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LedgerAppends counts accepted ledger records by event name.
	LedgerAppends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kolibri_ledger_appends_total",
		Help: "Total ledger records appended, by event",
	}, []string{"event"})

	// LedgerFailures counts refused appends and integrity failures.
	LedgerFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kolibri_ledger_failures_total",
		Help: "Total ledger append or verification failures",
	})

	// Generations counts evolution generations run.
	Generations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kolibri_evolve_generations_total",
		Help: "Total evolution generations executed",
	})

	// Examples counts taught numeric examples.
	Examples = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kolibri_examples_total",
		Help: "Total numeric examples taught",
	})

	// Associations counts taught question/answer pairs.
	Associations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kolibri_associations_total",
		Help: "Total symbolic associations taught",
	})

	// Asks counts answered queries by outcome.
	Asks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kolibri_asks_total",
		Help: "Total queries answered, by outcome",
	}, []string{"outcome"})

	// FeedbackEvents counts user reinforcement signals by direction.
	FeedbackEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kolibri_feedback_total",
		Help: "Total feedback events, by direction",
	}, []string{"direction"})

	// MigrationsOut counts formulas pushed to peers.
	MigrationsOut = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kolibri_migrations_out_total",
		Help: "Total formulas shared with peers",
	})

	// MigrationsIn counts formulas folded in from peers.
	MigrationsIn = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kolibri_migrations_in_total",
		Help: "Total peer formulas folded into the population",
	})

	// BestFitness tracks the current rank-0 fitness.
	BestFitness = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kolibri_best_fitness",
		Help: "Fitness of the current best formula",
	})
)

// Handler exposes the default registry for the /metrics route.
func Handler() http.Handler {
	return promhttp.Handler()
}
